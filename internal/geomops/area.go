package geomops

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Area returns the planar area of a polygonal geometry in squared coordinate
// units: exterior rings minus holes, summed over multipolygon parts. Points
// and lines have zero area.
func Area(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonArea(t)
	case *geom.MultiPolygon:
		var sum float64
		for i := 0; i < t.NumPolygons(); i++ {
			sum += polygonArea(t.Polygon(i))
		}
		return sum
	}
	return 0
}

func polygonArea(p *geom.Polygon) float64 {
	if p.NumLinearRings() == 0 {
		return 0
	}
	a := math.Abs(signedArea(closeRing(p.LinearRing(0).FlatCoords())))
	for r := 1; r < p.NumLinearRings(); r++ {
		a -= math.Abs(signedArea(closeRing(p.LinearRing(r).FlatCoords())))
	}
	return a
}
