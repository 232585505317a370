// Package crs identifies coordinate reference systems by EPSG code and
// carries the unit metadata needed to decide whether distance-based
// operations are meaningful in a given system.
package crs

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Unit is the linear or angular unit of a coordinate system's axes.
type Unit string

const (
	UnitDegree Unit = "degree"
	UnitMeter  Unit = "meter"
	UnitFoot   Unit = "us-foot"
)

// CoordSystem identifies a coordinate reference system. Geographic systems
// carry angular (degree) units; buffering or measuring in them produces
// meaningless numbers, so callers must check Geographic before any
// distance-based operation.
type CoordSystem struct {
	EPSG       int
	Name       string
	Unit       Unit
	Geographic bool
}

// String returns the "EPSG:n" authority form accepted by ST_Transform.
func (c CoordSystem) String() string {
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// Equal reports whether two systems refer to the same EPSG code.
func (c CoordSystem) Equal(o CoordSystem) bool {
	return c.EPSG == o.EPSG
}

// named holds the systems looked up most often by the loader commands.
var named = map[int]CoordSystem{
	4326: {EPSG: 4326, Name: "WGS 84", Unit: UnitDegree, Geographic: true},
	4269: {EPSG: 4269, Name: "NAD83", Unit: UnitDegree, Geographic: true},
	4267: {EPSG: 4267, Name: "NAD27", Unit: UnitDegree, Geographic: true},
	3857: {EPSG: 3857, Name: "WGS 84 / Pseudo-Mercator", Unit: UnitMeter},
	3081: {EPSG: 3081, Name: "NAD83 / Texas State Mapping System", Unit: UnitMeter},
	3083: {EPSG: 3083, Name: "NAD83 / Texas Centric Albers Equal Area", Unit: UnitMeter},
	2277: {EPSG: 2277, Name: "NAD83 / Texas Central (ftUS)", Unit: UnitFoot},
	2278: {EPSG: 2278, Name: "NAD83 / Texas South Central (ftUS)", Unit: UnitFoot},
	5070: {EPSG: 5070, Name: "NAD83 / Conus Albers", Unit: UnitMeter},
}

// Lookup resolves an EPSG code to a CoordSystem. UTM zones are resolved by
// range; anything else must be in the named registry so unit metadata is
// always known before a distance operation runs.
func Lookup(epsg int) (CoordSystem, error) {
	if c, ok := named[epsg]; ok {
		return c, nil
	}
	switch {
	case epsg >= 32601 && epsg <= 32660:
		return CoordSystem{EPSG: epsg, Name: fmt.Sprintf("WGS 84 / UTM zone %dN", epsg-32600), Unit: UnitMeter}, nil
	case epsg >= 32701 && epsg <= 32760:
		return CoordSystem{EPSG: epsg, Name: fmt.Sprintf("WGS 84 / UTM zone %dS", epsg-32700), Unit: UnitMeter}, nil
	case epsg >= 26901 && epsg <= 26923:
		return CoordSystem{EPSG: epsg, Name: fmt.Sprintf("NAD83 / UTM zone %dN", epsg-26900), Unit: UnitMeter}, nil
	}
	return CoordSystem{}, eris.Errorf("crs: unknown EPSG code %d", epsg)
}

// MustLookup is Lookup for codes known at compile time.
func MustLookup(epsg int) CoordSystem {
	c, err := Lookup(epsg)
	if err != nil {
		panic(err)
	}
	return c
}

// prjSignatures maps substrings of ESRI .prj WKT to EPSG codes. Full WKT
// parsing is out of scope; these cover the projections the tool's datasets
// actually ship with.
var prjSignatures = []struct {
	substr string
	epsg   int
}{
	{"WGS_1984_Web_Mercator", 3857},
	{"Pseudo-Mercator", 3857},
	{"Texas_Centric_Mapping_System_Albers", 3083},
	{"Texas_State_Mapping_System", 3081},
	{"StatePlane_Texas_Central_FIPS_4203", 2277},
	{"StatePlane_Texas_South_Central_FIPS_4204", 2278},
	{"USA_Contiguous_Albers", 5070},
	{"Albers_Conic_Equal_Area", 5070},
	{"GCS_North_American_1983", 4269},
	{"NAD_1983", 4269},
	{"GCS_North_American_1927", 4267},
	{"GCS_WGS_1984", 4326},
	{"WGS 84", 4326},
	{"WGS_1984", 4326},
}

// SniffPRJ guesses the coordinate system from .prj WKT text. Returns false
// when the projection is not recognized; callers then fall back to an
// explicitly supplied code.
func SniffPRJ(wkt string) (CoordSystem, bool) {
	if zone, south, ok := sniffUTM(wkt); ok {
		base := 32600
		if south {
			base = 32700
		}
		if strings.Contains(wkt, "NAD_1983") || strings.Contains(wkt, "NAD83") {
			base = 26900
		}
		if c, err := Lookup(base + zone); err == nil {
			return c, true
		}
	}
	for _, sig := range prjSignatures {
		if strings.Contains(wkt, sig.substr) {
			return MustLookup(sig.epsg), true
		}
	}
	return CoordSystem{}, false
}

// sniffUTM extracts a UTM zone number from WKT projection names like
// "WGS_1984_UTM_Zone_14N".
func sniffUTM(wkt string) (zone int, south bool, ok bool) {
	idx := strings.Index(wkt, "UTM_Zone_")
	if idx < 0 {
		idx = strings.Index(wkt, "UTM zone ")
		if idx < 0 {
			return 0, false, false
		}
		idx += len("UTM zone ")
	} else {
		idx += len("UTM_Zone_")
	}
	end := idx
	for end < len(wkt) && wkt[end] >= '0' && wkt[end] <= '9' {
		end++
	}
	if end == idx {
		return 0, false, false
	}
	n := 0
	for _, ch := range wkt[idx:end] {
		n = n*10 + int(ch-'0')
	}
	if n < 1 || n > 60 {
		return 0, false, false
	}
	south = end < len(wkt) && (wkt[end] == 'S' || wkt[end] == 's')
	return n, south, true
}

const (
	wktGeogWGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	wktGeogNAD83 = `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	wktGeogNAD27 = `GEOGCS["GCS_North_American_1927",DATUM["D_North_American_1927",SPHEROID["Clarke_1866",6378206.4,294.9786982]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
)

// wktByEPSG holds ESRI-style WKT emitted alongside written shapefiles so
// downstream GIS tools pick up the projection. Every code in the named
// registry has an entry; UTM zones are generated from the zone formula in
// WKT, so a table whose code passed Lookup always writes a .prj that
// SniffPRJ reads back to the same code.
var wktByEPSG = map[int]string{
	4326: wktGeogWGS84,
	4269: wktGeogNAD83,
	4267: wktGeogNAD27,
	3857: `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",` + wktGeogWGS84 + `,PROJECTION["Mercator_Auxiliary_Sphere"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",0.0],PARAMETER["Standard_Parallel_1",0.0],PARAMETER["Auxiliary_Sphere_Type",0.0],UNIT["Meter",1.0]]`,
	3081: `PROJCS["NAD_1983_Texas_State_Mapping_System",` + wktGeogNAD83 + `,PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",1000000.0],PARAMETER["False_Northing",1000000.0],PARAMETER["Central_Meridian",-100.0],PARAMETER["Standard_Parallel_1",27.416666666666668],PARAMETER["Standard_Parallel_2",34.916666666666668],PARAMETER["Latitude_Of_Origin",31.166666666666668],UNIT["Meter",1.0]]`,
	3083: `PROJCS["NAD_1983_Texas_Centric_Mapping_System_Albers",` + wktGeogNAD83 + `,PROJECTION["Albers"],PARAMETER["False_Easting",1500000.0],PARAMETER["False_Northing",6000000.0],PARAMETER["Central_Meridian",-100.0],PARAMETER["Standard_Parallel_1",27.5],PARAMETER["Standard_Parallel_2",35.0],PARAMETER["Latitude_Of_Origin",18.0],UNIT["Meter",1.0]]`,
	2277: `PROJCS["NAD_1983_StatePlane_Texas_Central_FIPS_4203_Feet",` + wktGeogNAD83 + `,PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",2296583.333333333],PARAMETER["False_Northing",9842499.999999998],PARAMETER["Central_Meridian",-100.33333333333333],PARAMETER["Standard_Parallel_1",30.116666666666667],PARAMETER["Standard_Parallel_2",31.883333333333333],PARAMETER["Latitude_Of_Origin",29.666666666666668],UNIT["Foot_US",0.3048006096012192]]`,
	2278: `PROJCS["NAD_1983_StatePlane_Texas_South_Central_FIPS_4204_Feet",` + wktGeogNAD83 + `,PROJECTION["Lambert_Conformal_Conic"],PARAMETER["False_Easting",1968500.0],PARAMETER["False_Northing",13123333.333333332],PARAMETER["Central_Meridian",-99.0],PARAMETER["Standard_Parallel_1",28.383333333333333],PARAMETER["Standard_Parallel_2",30.283333333333332],PARAMETER["Latitude_Of_Origin",27.833333333333332],UNIT["Foot_US",0.3048006096012192]]`,
	5070: `PROJCS["USA_Contiguous_Albers_Equal_Area_Conic_USGS_version",` + wktGeogNAD83 + `,PROJECTION["Albers"],PARAMETER["False_Easting",0.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-96.0],PARAMETER["Standard_Parallel_1",29.5],PARAMETER["Standard_Parallel_2",45.5],PARAMETER["Latitude_Of_Origin",23.0],UNIT["Meter",1.0]]`,
}

// WKT returns ESRI WKT for the system, or false when the code is outside
// the set Lookup accepts.
func (c CoordSystem) WKT() (string, bool) {
	if s, ok := wktByEPSG[c.EPSG]; ok {
		return s, true
	}
	switch {
	case c.EPSG >= 32601 && c.EPSG <= 32660:
		return utmWKT(c.EPSG-32600, false, false), true
	case c.EPSG >= 32701 && c.EPSG <= 32760:
		return utmWKT(c.EPSG-32700, true, false), true
	case c.EPSG >= 26901 && c.EPSG <= 26923:
		return utmWKT(c.EPSG-26900, false, true), true
	}
	return "", false
}

// utmWKT builds the Transverse Mercator WKT for a UTM zone. Central
// meridian is zone*6-183; southern zones carry the 10,000 km false northing.
func utmWKT(zone int, south, nad83 bool) string {
	prefix, geogcs := "WGS_1984", wktGeogWGS84
	if nad83 {
		prefix, geogcs = "NAD_1983", wktGeogNAD83
	}
	hemi, northing := "N", "0.0"
	if south {
		hemi, northing = "S", "10000000.0"
	}
	return fmt.Sprintf(
		`PROJCS["%s_UTM_Zone_%d%s",%s,PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",%s],PARAMETER["Central_Meridian",%d.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`,
		prefix, zone, hemi, geogcs, northing, zone*6-183)
}
