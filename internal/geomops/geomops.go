// Package geomops implements planar geometric operations over go-geom
// geometries: buffering, spatial predicates, and area. All operations assume
// coordinates in a consistent linear-unit system; table-level entry points
// enforce that by inspecting the table's coordinate system first.
package geomops

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/geotable"
)

// onSegmentEps bounds the perpendicular distance under which a point counts
// as lying on a segment.
const onSegmentEps = 1e-9

type bbox struct {
	minX, minY, maxX, maxY float64
}

func boundsOf(flat []float64) bbox {
	b := bbox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i+1 < len(flat); i += 2 {
		b.minX = math.Min(b.minX, flat[i])
		b.maxX = math.Max(b.maxX, flat[i])
		b.minY = math.Min(b.minY, flat[i+1])
		b.maxY = math.Max(b.maxY, flat[i+1])
	}
	return b
}

func (b bbox) intersects(o bbox) bool {
	return b.minX <= o.maxX && o.minX <= b.maxX && b.minY <= o.maxY && o.minY <= b.maxY
}

// segment is a directed edge (x1,y1)->(x2,y2).
type segment [4]float64

// polygon is an exterior ring followed by hole rings, each as flat xy pairs
// with the first vertex repeated at the end.
type polygon struct {
	rings [][]float64
}

// parts is a geometry decomposed into testable primitives. Ring edges are
// duplicated into segs so segment-level tests cover polygon boundaries.
type parts struct {
	points []segment // only first pair used
	segs   []segment
	polys  []polygon
	bounds bbox
}

func (p *parts) addPoint(x, y float64) {
	p.points = append(p.points, segment{x, y})
}

func (p *parts) addLine(flat []float64) {
	for i := 0; i+3 < len(flat); i += 2 {
		p.segs = append(p.segs, segment{flat[i], flat[i+1], flat[i+2], flat[i+3]})
	}
	if len(flat) == 2 {
		// single-vertex line degenerates to a point
		p.addPoint(flat[0], flat[1])
	}
}

func (p *parts) addPolygon(poly *geom.Polygon) {
	pg := polygon{}
	for r := 0; r < poly.NumLinearRings(); r++ {
		flat := poly.LinearRing(r).FlatCoords()
		pg.rings = append(pg.rings, flat)
		p.addLine(flat)
	}
	p.polys = append(p.polys, pg)
}

// decompose flattens any supported geometry into points, segments and
// polygons for predicate evaluation.
func decompose(g geom.T) (parts, error) {
	var p parts
	if g == nil {
		return p, eris.Wrap(geotable.ErrInvalidGeometry, "geomops: nil geometry")
	}
	switch t := g.(type) {
	case *geom.Point:
		if len(t.FlatCoords()) >= 2 {
			p.addPoint(t.X(), t.Y())
		}
	case *geom.MultiPoint:
		flat := t.FlatCoords()
		for i := 0; i+1 < len(flat); i += t.Stride() {
			p.addPoint(flat[i], flat[i+1])
		}
	case *geom.LineString:
		p.addLine(t.FlatCoords())
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			p.addLine(t.LineString(i).FlatCoords())
		}
	case *geom.Polygon:
		p.addPolygon(t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			p.addPolygon(t.Polygon(i))
		}
	default:
		return p, eris.Errorf("geomops: unsupported geometry type %T", g)
	}
	p.bounds = boundsOf(g.FlatCoords())
	return p, nil
}

// testPoints returns representative coordinates of every primitive, used for
// containment checks.
func (p *parts) testPoints() []segment {
	out := append([]segment(nil), p.points...)
	for _, s := range p.segs {
		out = append(out, segment{s[0], s[1]}, segment{s[2], s[3]})
	}
	return out
}

func cross(ox, oy, ax, ay, bx, by float64) float64 {
	return (ax-ox)*(by-oy) - (ay-oy)*(bx-ox)
}

// pointOnSegment reports whether (px,py) lies on the segment within
// tolerance.
func pointOnSegment(px, py float64, s segment) bool {
	dx, dy := s[2]-s[0], s[3]-s[1]
	segLen := math.Hypot(dx, dy)
	if segLen == 0 {
		return math.Hypot(px-s[0], py-s[1]) <= onSegmentEps
	}
	// perpendicular distance
	d := math.Abs(cross(s[0], s[1], s[2], s[3], px, py)) / segLen
	if d > onSegmentEps {
		return false
	}
	// projection parameter within [0,1]
	tp := ((px-s[0])*dx + (py-s[1])*dy) / (segLen * segLen)
	return tp >= -onSegmentEps && tp <= 1+onSegmentEps
}

// segmentsIntersect reports whether two segments share any point, including
// endpoint touches and collinear overlap.
func segmentsIntersect(a, b segment) bool {
	d1 := cross(b[0], b[1], b[2], b[3], a[0], a[1])
	d2 := cross(b[0], b[1], b[2], b[3], a[2], a[3])
	d3 := cross(a[0], a[1], a[2], a[3], b[0], b[1])
	d4 := cross(a[0], a[1], a[2], a[3], b[2], b[3])

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	return pointOnSegment(a[0], a[1], b) ||
		pointOnSegment(a[2], a[3], b) ||
		pointOnSegment(b[0], b[1], a) ||
		pointOnSegment(b[2], b[3], a)
}

// segmentsCrossProperly reports whether two segments cross at a single
// interior point of both. Endpoint touches and collinear overlaps are not
// proper crossings.
func segmentsCrossProperly(a, b segment) bool {
	d1 := cross(b[0], b[1], b[2], b[3], a[0], a[1])
	d2 := cross(b[0], b[1], b[2], b[3], a[2], a[3])
	d3 := cross(a[0], a[1], a[2], a[3], b[0], b[1])
	d4 := cross(a[0], a[1], a[2], a[3], b[2], b[3])
	return d1*d2 < 0 && d3*d4 < 0
}

// pointInRing applies even-odd ray casting against a single closed ring.
func pointInRing(px, py float64, ring []float64) bool {
	inside := false
	n := len(ring) / 2
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[2*i], ring[2*i+1]
		xj, yj := ring[2*j], ring[2*j+1]
		if (yi > py) != (yj > py) &&
			px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// pointInPolygon reports whether the point is inside the polygon or on its
// boundary, holes excluded by even-odd counting.
func pointInPolygon(px, py float64, pg polygon) bool {
	for _, ring := range pg.rings {
		for i := 0; i+3 < len(ring); i += 2 {
			if pointOnSegment(px, py, segment{ring[i], ring[i+1], ring[i+2], ring[i+3]}) {
				return true
			}
		}
	}
	in := false
	for _, ring := range pg.rings {
		if pointInRing(px, py, ring) {
			in = !in
		}
	}
	return in
}

func samePoint(a, b segment) bool {
	return math.Hypot(a[0]-b[0], a[1]-b[1]) <= onSegmentEps
}
