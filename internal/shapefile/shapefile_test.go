package shapefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

func pointTable(t *testing.T, cs crs.CoordSystem) *geotable.GeoTable {
	t.Helper()
	tbl := geotable.New([]string{"name", "pop", "ratio", "active", "founded", geotable.GeometryColumn}, cs)
	recs := []geotable.Record{
		{
			Attrs: map[string]any{
				"name": "alpha", "pop": int64(1200), "ratio": 0.25,
				"active":  true,
				"founded": time.Date(1887, 4, 2, 0, 0, 0, 0, time.UTC),
			},
			Geom: geom.NewPointFlat(geom.XY, []float64{-97.7, 30.3}),
		},
		{
			Attrs: map[string]any{
				"name": "bravo", "pop": int64(450), "ratio": 1.5,
				"active":  false,
				"founded": time.Date(1920, 11, 30, 0, 0, 0, 0, time.UTC),
			},
			Geom: geom.NewPointFlat(geom.XY, []float64{-96.8, 32.8}),
		},
	}
	for _, r := range recs {
		require.NoError(t, tbl.Append(r))
	}
	return tbl
}

func TestRoundTrip_Points(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.shp")
	orig := pointTable(t, crs.MustLookup(4326))

	require.NoError(t, Write(orig, path))

	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		_, err := os.Stat(filepath.Join(dir, "cities"+ext))
		assert.NoError(t, err, "missing sidecar %s", ext)
	}

	got, err := Read(path, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, orig.Len(), got.Len())
	assert.Equal(t, 4326, got.CoordSystem().EPSG, "should sniff CRS from .prj")
	assert.ElementsMatch(t, orig.Columns(), got.Columns())

	for i, want := range orig.Records() {
		rec := got.Record(i)
		assert.Equal(t, want.Attrs["name"], rec.Attrs["name"])
		assert.Equal(t, want.Attrs["pop"], rec.Attrs["pop"])
		assert.InDelta(t, want.Attrs["ratio"].(float64), rec.Attrs["ratio"].(float64), 1e-6)
		// booleans are stored as single-character text in DBF
		if want.Attrs["active"].(bool) {
			assert.Equal(t, "T", rec.Attrs["active"])
		} else {
			assert.Equal(t, "F", rec.Attrs["active"])
		}

		wp := want.Geom.(*geom.Point)
		gp := rec.Geom.(*geom.Point)
		assert.InDelta(t, wp.X(), gp.X(), 1e-9)
		assert.InDelta(t, wp.Y(), gp.Y(), 1e-9)
	}
}

func TestRoundTrip_Polygon(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parcels.shp")

	tbl := geotable.New([]string{"id", geotable.GeometryColumn}, crs.MustLookup(32614))
	outer := []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0}
	hole := []float64{4, 4, 6, 4, 6, 6, 4, 6, 4, 4}
	poly := geom.NewPolygonFlat(geom.XY, append(append([]float64{}, outer...), hole...), []int{len(outer), len(outer) + len(hole)})
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{"id": int64(7)},
		Geom:  poly,
	}))

	require.NoError(t, Write(tbl, path))

	got, err := Read(path, ReadOptions{SourceEPSG: 32614})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())

	g, ok := got.Record(0).Geom.(*geom.Polygon)
	require.True(t, ok, "expected a polygon, got %T", got.Record(0).Geom)
	assert.Equal(t, 2, g.NumLinearRings(), "hole should survive the round trip")
	assert.Equal(t, 32614, got.CoordSystem().EPSG)
}

func TestRoundTrip_Line(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roads.shp")

	tbl := geotable.New([]string{"name", geotable.GeometryColumn}, crs.MustLookup(3857))
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{"name": "main"},
		Geom:  geom.NewLineStringFlat(geom.XY, []float64{0, 0, 100, 0, 100, 50}),
	}))

	require.NoError(t, Write(tbl, path))

	got, err := Read(path, ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())

	line, ok := got.Record(0).Geom.(*geom.LineString)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 100, 0, 100, 50}, line.FlatCoords())
	assert.Equal(t, 3857, got.CoordSystem().EPSG, "should sniff web mercator .prj")
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.shp"), ReadOptions{})
	assert.ErrorIs(t, err, geotable.ErrFileNotFound)

	_, err = Read("data.csv", ReadOptions{})
	assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat)
}

func TestWrite_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("non-spatial table", func(t *testing.T) {
		tbl := geotable.New([]string{"a"}, crs.MustLookup(4326))
		err := Write(tbl, filepath.Join(dir, "out.shp"))
		assert.ErrorIs(t, err, geotable.ErrWriteError)
	})

	t.Run("nil geometry", func(t *testing.T) {
		tbl := pointTable(t, crs.MustLookup(4326))
		require.NoError(t, tbl.Append(geotable.Record{Attrs: map[string]any{"name": "ghost"}}))
		err := Write(tbl, filepath.Join(dir, "out.shp"))
		assert.ErrorIs(t, err, geotable.ErrWriteError)
	})

	t.Run("mixed shape types", func(t *testing.T) {
		tbl := pointTable(t, crs.MustLookup(4326))
		require.NoError(t, tbl.Append(geotable.Record{
			Attrs: map[string]any{"name": "road"},
			Geom:  geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}),
		}))
		err := Write(tbl, filepath.Join(dir, "out.shp"))
		assert.ErrorIs(t, err, geotable.ErrWriteError)
	})

	t.Run("wrong extension", func(t *testing.T) {
		tbl := pointTable(t, crs.MustLookup(4326))
		err := Write(tbl, filepath.Join(dir, "out.geojson"))
		assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat)
	})
}

func TestWrite_DoesNotClobberOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keep.shp")
	require.NoError(t, os.WriteFile(path, []byte("sentinel"), 0o644))

	bad := pointTable(t, crs.MustLookup(4326))
	require.NoError(t, bad.Append(geotable.Record{Attrs: map[string]any{"name": "ghost"}}))
	require.Error(t, Write(bad, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(data), "failed write must leave destination untouched")
}

func TestWrite_SidecarNaming(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(pointTable(t, crs.MustLookup(4326)), filepath.Join(dir, "cities.shp")))

	// go-shp names its DBF component without the dot separator; the staged
	// rename must leave only properly named sidecars behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"cities.shp", "cities.shx", "cities.dbf", "cities.prj"}, names)
}

func TestWrite_OverwriteRemovesStalePRJ(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.shp")

	require.NoError(t, Write(pointTable(t, crs.MustLookup(4326)), path))
	_, err := os.Stat(filepath.Join(dir, "grid.prj"))
	require.NoError(t, err)

	// a system outside the registry has no WKT to emit
	local := crs.CoordSystem{EPSG: 27700, Name: "OSGB36 / British National Grid", Unit: crs.UnitMeter}
	tbl := geotable.New([]string{"name", geotable.GeometryColumn}, local)
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{"name": "origin"},
		Geom:  geom.NewPointFlat(geom.XY, []float64{400000, 100000}),
	}))
	require.NoError(t, Write(tbl, path))

	_, err = os.Stat(filepath.Join(dir, "grid.prj"))
	assert.True(t, os.IsNotExist(err), "stale .prj from the previous dataset must not survive")
}

func TestShapeConversion_MultiGeometries(t *testing.T) {
	mp := geom.NewMultiPointFlat(geom.XY, []float64{1, 2, 3, 4})
	s, _, err := geomToShape(mp)
	require.NoError(t, err)
	require.NotNil(t, s)
	back, err := shapeToGeom(s)
	require.NoError(t, err)
	assert.Equal(t, mp.FlatCoords(), back.(*geom.MultiPoint).FlatCoords())

	mls := geom.NewMultiLineString(geom.XY)
	require.NoError(t, mls.Push(geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 0})))
	require.NoError(t, mls.Push(geom.NewLineStringFlat(geom.XY, []float64{5, 5, 6, 6})))
	s, _, err = geomToShape(mls)
	require.NoError(t, err)
	back, err = shapeToGeom(s)
	require.NoError(t, err)
	gotMLS, ok := back.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 2, gotMLS.NumLineStrings())
}

func TestFieldNameTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.shp")

	tbl := geotable.New([]string{"a_very_long_column_name", geotable.GeometryColumn}, crs.MustLookup(4326))
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{"a_very_long_column_name": "x"},
		Geom:  geom.NewPointFlat(geom.XY, []float64{1, 1}),
	}))
	require.NoError(t, Write(tbl, path))

	got, err := Read(path, ReadOptions{})
	require.NoError(t, err)
	assert.Contains(t, got.AttributeColumns(), "a_very_lon")
}
