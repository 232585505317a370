package geomops

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/geotable"
)

// DefaultQuadSegs is the number of arc segments per quarter circle used to
// approximate round joins and caps, matching the GEOS default.
const DefaultQuadSegs = 8

// Buffer returns the offset polygon at the given distance around g: points
// become circles, lines become capsules with round caps, polygons grow
// outward with round joins at convex vertices and bevel joins at reflex
// ones, holes shrink and are dropped when they collapse. The distance is in
// the units of g's coordinates; callers working with tables must reproject
// out of geographic systems first (see BufferTable).
func Buffer(g geom.T, dist float64, quadSegs int) (geom.T, error) {
	if dist < 0 {
		return nil, eris.Errorf("geomops: buffer distance must be non-negative, got %v", dist)
	}
	if quadSegs <= 0 {
		quadSegs = DefaultQuadSegs
	}
	if g == nil || len(g.FlatCoords()) == 0 {
		return nil, eris.Wrap(geotable.ErrInvalidGeometry, "geomops: buffer of empty geometry")
	}
	if dist == 0 {
		return g, nil
	}

	switch t := g.(type) {
	case *geom.Point:
		return circlePolygon(t.X(), t.Y(), dist, quadSegs), nil

	case *geom.MultiPoint:
		mp := geom.NewMultiPolygon(geom.XY)
		flat := t.FlatCoords()
		for i := 0; i+1 < len(flat); i += t.Stride() {
			if err := mp.Push(circlePolygon(flat[i], flat[i+1], dist, quadSegs)); err != nil {
				return nil, eris.Wrap(err, "geomops: buffer multipoint")
			}
		}
		return mp, nil

	case *geom.LineString:
		return bufferLine(t.FlatCoords(), dist, quadSegs)

	case *geom.MultiLineString:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumLineStrings(); i++ {
			p, err := bufferLine(t.LineString(i).FlatCoords(), dist, quadSegs)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(p); err != nil {
				return nil, eris.Wrap(err, "geomops: buffer multilinestring")
			}
		}
		return mp, nil

	case *geom.Polygon:
		return bufferPolygon(t, dist, quadSegs)

	case *geom.MultiPolygon:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < t.NumPolygons(); i++ {
			p, err := bufferPolygon(t.Polygon(i), dist, quadSegs)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(p); err != nil {
				return nil, eris.Wrap(err, "geomops: buffer multipolygon")
			}
		}
		return mp, nil
	}
	return nil, eris.Errorf("geomops: cannot buffer %T", g)
}

// circlePolygon builds a closed ring approximating the circle of radius r
// around (cx, cy).
func circlePolygon(cx, cy, r float64, quadSegs int) *geom.Polygon {
	n := 4 * quadSegs
	flat := make([]float64, 0, (n+1)*2)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		flat = append(flat, cx+r*math.Cos(a), cy+r*math.Sin(a))
	}
	flat = append(flat, flat[0], flat[1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// appendArc appends points along the circle of radius r around (cx, cy),
// sweeping from angle a0 by delta radians (sign gives direction). The
// endpoint at a0+delta is included, a0 itself is not.
func appendArc(dst []float64, cx, cy, r, a0, delta float64, quadSegs int) []float64 {
	step := math.Pi / (2 * float64(quadSegs))
	n := int(math.Ceil(math.Abs(delta) / step))
	if n < 1 {
		n = 1
	}
	for i := 1; i <= n; i++ {
		a := a0 + delta*float64(i)/float64(n)
		dst = append(dst, cx+r*math.Cos(a), cy+r*math.Sin(a))
	}
	return dst
}

// normAngle wraps an angle difference into (-pi, pi].
func normAngle(d float64) float64 {
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}

// leftNormal returns the unit normal pointing left of travel from (x1,y1) to
// (x2,y2), or false for a zero-length segment.
func leftNormal(x1, y1, x2, y2 float64) (float64, float64, bool) {
	dx, dy := x2-x1, y2-y1
	l := math.Hypot(dx, dy)
	if l == 0 {
		return 0, 0, false
	}
	return -dy / l, dx / l, true
}

// dedupe removes consecutive duplicate vertices from a flat coordinate list.
func dedupe(flat []float64) []float64 {
	out := flat[:0:0]
	for i := 0; i+1 < len(flat); i += 2 {
		n := len(out)
		if n >= 2 && flat[i] == out[n-2] && flat[i+1] == out[n-1] {
			continue
		}
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

// bufferLine builds the capsule polygon around an open polyline: offset the
// left side walking forward, round cap at the end, offset the left side of
// the reversed walk, round cap back at the start.
func bufferLine(flat []float64, d float64, quadSegs int) (*geom.Polygon, error) {
	flat = dedupe(flat)
	if len(flat) < 2 {
		return nil, eris.Wrap(geotable.ErrInvalidGeometry, "geomops: buffer of empty line")
	}
	if len(flat) == 2 {
		return circlePolygon(flat[0], flat[1], d, quadSegs), nil
	}

	var out []float64
	out = offsetSide(out, flat, d, quadSegs)

	// end cap: half circle around the last vertex
	n := len(flat)
	nx, ny, _ := leftNormal(flat[n-4], flat[n-3], flat[n-2], flat[n-1])
	a0 := math.Atan2(ny, nx)
	out = appendArc(out, flat[n-2], flat[n-1], d, a0, -math.Pi, quadSegs)

	rev := reverseFlat(flat)
	out = offsetSide(out, rev, d, quadSegs)

	// start cap
	nx, ny, _ = leftNormal(rev[n-4], rev[n-3], rev[n-2], rev[n-1])
	a0 = math.Atan2(ny, nx)
	out = appendArc(out, rev[n-2], rev[n-1], d, a0, -math.Pi, quadSegs)

	out = closeRing(dedupe(out))
	if signedArea(out) < 0 {
		out = reverseFlat(out)
	}
	return geom.NewPolygonFlat(geom.XY, out, []int{len(out)}), nil
}

// offsetSide appends the left-hand offset of the polyline, with round joins
// at turns away from the offset side.
func offsetSide(dst, flat []float64, d float64, quadSegs int) []float64 {
	n := len(flat)
	var prevNx, prevNy float64
	havePrev := false
	for i := 0; i+3 < n; i += 2 {
		nx, ny, ok := leftNormal(flat[i], flat[i+1], flat[i+2], flat[i+3])
		if !ok {
			continue
		}
		if havePrev {
			// join at the shared vertex: arc along the shorter sweep
			a0 := math.Atan2(prevNy, prevNx)
			delta := normAngle(math.Atan2(ny, nx) - a0)
			if math.Abs(delta) > 1e-12 {
				dst = appendArc(dst, flat[i], flat[i+1], d, a0, delta, quadSegs)
			}
		} else {
			dst = append(dst, flat[i]+nx*d, flat[i+1]+ny*d)
		}
		dst = append(dst, flat[i+2]+nx*d, flat[i+3]+ny*d)
		prevNx, prevNy = nx, ny
		havePrev = true
	}
	return dst
}

// bufferPolygon grows the exterior ring outward and shrinks holes inward,
// dropping holes that collapse.
func bufferPolygon(p *geom.Polygon, d float64, quadSegs int) (*geom.Polygon, error) {
	if p.NumLinearRings() == 0 {
		return nil, eris.Wrap(geotable.ErrInvalidGeometry, "geomops: buffer of empty polygon")
	}

	ext := dedupe(openRing(p.LinearRing(0).FlatCoords()))
	if len(ext) < 6 {
		return nil, eris.Wrap(geotable.ErrInvalidGeometry, "geomops: buffer of degenerate ring")
	}
	// normalize exterior to counterclockwise so right normals point outward
	if signedArea(closeRing(ext)) < 0 {
		ext = reverseFlat(ext)
	}

	out := geom.NewPolygon(geom.XY)
	extRing := offsetRing(ext, d, quadSegs)
	if err := out.Push(geom.NewLinearRingFlat(geom.XY, extRing)); err != nil {
		return nil, eris.Wrap(err, "geomops: buffer exterior ring")
	}

	for r := 1; r < p.NumLinearRings(); r++ {
		hole := dedupe(openRing(p.LinearRing(r).FlatCoords()))
		if len(hole) < 6 {
			continue
		}
		// normalize holes clockwise; the same right-normal offset then moves
		// the hole boundary toward the hole interior, shrinking it
		if signedArea(closeRing(hole)) > 0 {
			hole = reverseFlat(hole)
		}
		origArea := math.Abs(signedArea(closeRing(hole)))
		shrunk := offsetRing(hole, d, quadSegs)
		newArea := signedArea(shrunk)
		// hole survives only if it kept its orientation and actually shrank
		if newArea >= 0 || math.Abs(newArea) >= origArea || math.Abs(newArea) < 1e-12 {
			continue
		}
		if err := out.Push(geom.NewLinearRingFlat(geom.XY, shrunk)); err != nil {
			return nil, eris.Wrap(err, "geomops: buffer hole ring")
		}
	}
	return out, nil
}

// offsetRing walks a closed ring (given open, without the repeated last
// vertex) and offsets every edge along its right normal, with round joins at
// convex vertices and bevel joins at reflex ones. Returns a closed ring.
func offsetRing(open []float64, d float64, quadSegs int) []float64 {
	n := len(open) / 2
	var out []float64
	for i := 0; i < n; i++ {
		x1, y1 := open[2*i], open[2*i+1]
		x2, y2 := open[2*((i+1)%n)], open[2*((i+1)%n)+1]
		ln, lm, ok := leftNormal(x1, y1, x2, y2)
		if !ok {
			continue
		}
		// right normal of travel
		nx, ny := -ln, -lm

		// join arc at x1,y1 between the previous edge's normal and this one.
		// With outward normals on a counterclockwise walk the sweep is
		// positive exactly at convex vertices; reflex vertices get a bevel.
		px, py := open[2*((i-1+n)%n)], open[2*((i-1+n)%n)+1]
		pln, plm, ok := leftNormal(px, py, x1, y1)
		if ok {
			pnx, pny := -pln, -plm
			a0 := math.Atan2(pny, pnx)
			delta := normAngle(math.Atan2(ny, nx) - a0)
			if delta > 1e-12 {
				out = appendArc(out, x1, y1, d, a0, delta, quadSegs)
			} else {
				out = append(out, x1+pnx*d, y1+pny*d, x1+nx*d, y1+ny*d)
			}
		}
		out = append(out, x1+nx*d, y1+ny*d, x2+nx*d, y2+ny*d)
	}
	return closeRing(dedupe(out))
}

// openRing strips the repeated closing vertex when present.
func openRing(flat []float64) []float64 {
	n := len(flat)
	if n >= 4 && flat[0] == flat[n-2] && flat[1] == flat[n-1] {
		return flat[:n-2]
	}
	return flat
}

// closeRing returns a ring with the first vertex repeated at the end,
// copying rather than growing the input since rings from go-geom share their
// backing array.
func closeRing(flat []float64) []float64 {
	n := len(flat)
	if n >= 4 && (flat[0] != flat[n-2] || flat[1] != flat[n-1]) {
		out := make([]float64, n, n+2)
		copy(out, flat)
		return append(out, flat[0], flat[1])
	}
	return flat
}

func reverseFlat(flat []float64) []float64 {
	n := len(flat) / 2
	out := make([]float64, len(flat))
	for i := 0; i < n; i++ {
		out[2*i] = flat[len(flat)-2*(i+1)]
		out[2*i+1] = flat[len(flat)-2*(i+1)+1]
	}
	return out
}

// signedArea computes the shoelace area of a closed ring; positive for
// counterclockwise winding.
func signedArea(ring []float64) float64 {
	var s float64
	n := len(ring) / 2
	for i := 0; i < n-1; i++ {
		s += ring[2*i]*ring[2*i+3] - ring[2*i+2]*ring[2*i+1]
	}
	return s / 2
}
