package shapefile

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/geotable"
)

// shapeToGeom converts a go-shp shape to a go-geom geometry. Returns nil for
// nil or empty shapes.
func shapeToGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil:
		return nil, nil

	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil

	case *shp.MultiPoint:
		flat := make([]float64, 0, len(s.Points)*2)
		for _, p := range s.Points {
			flat = append(flat, p.X, p.Y)
		}
		return geom.NewMultiPointFlat(geom.XY, flat), nil

	case *shp.PolyLine:
		return polyLineToGeom(s), nil

	case *shp.Polygon:
		return polygonToGeom(s), nil
	}
	return nil, eris.Errorf("shapefile: unsupported shape type %T", shape)
}

// polyLineToGeom converts a shapefile PolyLine: single-part lines become a
// LineString, multi-part ones a MultiLineString.
func polyLineToGeom(pl *shp.PolyLine) geom.T {
	if pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}
	parts := splitParts(pl.Parts, pl.Points)
	if len(parts) == 1 {
		return geom.NewLineStringFlat(geom.XY, parts[0])
	}
	mls := geom.NewMultiLineString(geom.XY)
	for _, flat := range parts {
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			continue
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToGeom converts a shapefile Polygon, grouping rings by winding:
// clockwise rings open a new polygon, counterclockwise rings become holes of
// the polygon opened last (the shapefile spec's ring convention).
func polygonToGeom(p *shp.Polygon) geom.T {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	var current *geom.Polygon
	for _, flat := range splitParts(p.Parts, p.Points) {
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if ringArea(flat) < 0 || current == nil {
			// clockwise in shapefile convention: an exterior ring
			current = geom.NewPolygon(geom.XY)
			if err := current.Push(ring); err != nil {
				current = nil
				continue
			}
			polys = append(polys, current)
			continue
		}
		_ = current.Push(ring)
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			continue
		}
	}
	return mp
}

// splitParts slices a shapefile part-indexed point array into flat
// coordinate runs.
func splitParts(partIdx []int32, points []shp.Point) [][]float64 {
	var out [][]float64
	for i := range partIdx {
		start := partIdx[i]
		end := int32(len(points))
		if i+1 < len(partIdx) {
			end = partIdx[i+1]
		}
		if end <= start {
			continue
		}
		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, points[j].X, points[j].Y)
		}
		out = append(out, flat)
	}
	return out
}

// geomToShape converts a go-geom geometry to the go-shp shape and shape type
// it serializes as.
func geomToShape(g geom.T) (shp.Shape, shp.ShapeType, error) {
	switch t := g.(type) {
	case *geom.Point:
		if len(t.FlatCoords()) < 2 {
			return nil, shp.NULL, eris.Wrap(geotable.ErrInvalidGeometry, "shapefile: empty point")
		}
		return &shp.Point{X: t.X(), Y: t.Y()}, shp.POINT, nil

	case *geom.MultiPoint:
		flat := t.FlatCoords()
		if len(flat) == 0 {
			return nil, shp.NULL, eris.Wrap(geotable.ErrInvalidGeometry, "shapefile: empty multipoint")
		}
		pts := make([]shp.Point, 0, len(flat)/t.Stride())
		for i := 0; i+1 < len(flat); i += t.Stride() {
			pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
		}
		mp := &shp.MultiPoint{NumPoints: int32(len(pts)), Points: pts}
		mp.Box = boxOf(pts)
		return mp, shp.MULTIPOINT, nil

	case *geom.LineString:
		parts := [][]shp.Point{coordsToPoints(t.FlatCoords())}
		if len(parts[0]) == 0 {
			return nil, shp.NULL, eris.Wrap(geotable.ErrInvalidGeometry, "shapefile: empty linestring")
		}
		return shp.NewPolyLine(parts), shp.POLYLINE, nil

	case *geom.MultiLineString:
		var parts [][]shp.Point
		for i := 0; i < t.NumLineStrings(); i++ {
			parts = append(parts, coordsToPoints(t.LineString(i).FlatCoords()))
		}
		if len(parts) == 0 {
			return nil, shp.NULL, eris.Wrap(geotable.ErrInvalidGeometry, "shapefile: empty multilinestring")
		}
		return shp.NewPolyLine(parts), shp.POLYLINE, nil

	case *geom.Polygon:
		parts := polygonParts(t)
		if len(parts) == 0 {
			return nil, shp.NULL, eris.Wrap(geotable.ErrInvalidGeometry, "shapefile: empty polygon")
		}
		pl := shp.NewPolyLine(parts)
		poly := shp.Polygon(*pl)
		return &poly, shp.POLYGON, nil

	case *geom.MultiPolygon:
		var parts [][]shp.Point
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, polygonParts(t.Polygon(i))...)
		}
		if len(parts) == 0 {
			return nil, shp.NULL, eris.Wrap(geotable.ErrInvalidGeometry, "shapefile: empty multipolygon")
		}
		pl := shp.NewPolyLine(parts)
		poly := shp.Polygon(*pl)
		return &poly, shp.POLYGON, nil
	}
	return nil, shp.NULL, eris.Errorf("shapefile: unsupported geometry type %T", g)
}

// polygonParts returns the polygon's rings with shapefile winding: exterior
// clockwise, holes counterclockwise.
func polygonParts(p *geom.Polygon) [][]shp.Point {
	var parts [][]shp.Point
	for r := 0; r < p.NumLinearRings(); r++ {
		flat := closedRing(p.LinearRing(r).FlatCoords())
		if len(flat) < 8 {
			continue
		}
		a := ringArea(flat)
		wantClockwise := r == 0
		if (a < 0) != wantClockwise {
			flat = reverseRing(flat)
		}
		parts = append(parts, coordsToPoints(flat))
	}
	return parts
}

func coordsToPoints(flat []float64) []shp.Point {
	pts := make([]shp.Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		pts = append(pts, shp.Point{X: flat[i], Y: flat[i+1]})
	}
	return pts
}

// closedRing returns the ring with its first vertex repeated at the end,
// copying when it has to grow.
func closedRing(flat []float64) []float64 {
	n := len(flat)
	if n >= 4 && (flat[0] != flat[n-2] || flat[1] != flat[n-1]) {
		out := make([]float64, n, n+2)
		copy(out, flat)
		return append(out, flat[0], flat[1])
	}
	return flat
}

func reverseRing(flat []float64) []float64 {
	n := len(flat) / 2
	out := make([]float64, len(flat))
	for i := 0; i < n; i++ {
		out[2*i] = flat[len(flat)-2*(i+1)]
		out[2*i+1] = flat[len(flat)-2*(i+1)+1]
	}
	return out
}

// ringArea is the signed shoelace area; positive means counterclockwise.
func ringArea(flat []float64) float64 {
	var s float64
	n := len(flat) / 2
	for i := 0; i < n-1; i++ {
		s += flat[2*i]*flat[2*i+3] - flat[2*i+2]*flat[2*i+1]
	}
	return s / 2
}

func boxOf(pts []shp.Point) shp.Box {
	b := shp.Box{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, p := range pts {
		b.MinX = math.Min(b.MinX, p.X)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}
