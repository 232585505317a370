package geomops

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/geotable"
)

func square(x, y, side float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x, y,
		x + side, y,
		x + side, y + side,
		x, y + side,
		x, y,
	}, []int{10})
}

func TestBuffer_PointIsCircle(t *testing.T) {
	p := geom.NewPointFlat(geom.XY, []float64{100, 200})

	g, err := Buffer(p, 10, DefaultQuadSegs)
	require.NoError(t, err)

	poly, ok := g.(*geom.Polygon)
	require.True(t, ok)

	// every vertex at radius distance from the center
	flat := poly.LinearRing(0).FlatCoords()
	for i := 0; i+1 < len(flat); i += 2 {
		r := math.Hypot(flat[i]-100, flat[i+1]-200)
		assert.InDelta(t, 10, r, 1e-9)
	}

	// area approaches pi*r^2 from below
	area := Area(g)
	assert.Less(t, area, math.Pi*100)
	assert.Greater(t, area, math.Pi*100*0.98)
}

func TestBuffer_PolygonAreaGrows(t *testing.T) {
	tests := []struct {
		name string
		dist float64
	}{
		{"zero", 0},
		{"small", 0.5},
		{"large", 100},
	}
	sq := square(0, 0, 10)
	orig := Area(sq)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Buffer(sq, tt.dist, DefaultQuadSegs)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, Area(g), orig)
		})
	}
}

func TestBuffer_SquareGeometry(t *testing.T) {
	g, err := Buffer(square(0, 0, 10), 2, DefaultQuadSegs)
	require.NoError(t, err)

	// square side 10 buffered by 2: area between the bevel lower bound and
	// the exact round-join value 100 + 4*10*2 + pi*4
	area := Area(g)
	assert.Greater(t, area, 100+80.0)
	assert.Less(t, area, 100+80+math.Pi*4+1e-6)

	// contains the original square
	ok, err := Relate(square(0, 0, 10), g, Within)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuffer_PolygonWithHole(t *testing.T) {
	p := geom.NewPolygon(geom.XY)
	require.NoError(t, p.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		0, 0, 20, 0, 20, 20, 0, 20, 0, 0,
	})))
	require.NoError(t, p.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		8, 8, 8, 12, 12, 12, 12, 8, 8, 8,
	})))
	orig := Area(p)
	require.InDelta(t, 400-16, orig, 1e-9)

	g, err := Buffer(p, 1, DefaultQuadSegs)
	require.NoError(t, err)
	out := g.(*geom.Polygon)

	// hole shrinks but survives a 1-unit buffer
	assert.Equal(t, 2, out.NumLinearRings())
	assert.GreaterOrEqual(t, Area(g), orig)

	// a 3-unit buffer swallows the 4x4 hole entirely
	g, err = Buffer(p, 3, DefaultQuadSegs)
	require.NoError(t, err)
	assert.Equal(t, 1, g.(*geom.Polygon).NumLinearRings())
}

func TestBuffer_LineCapsule(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0})

	g, err := Buffer(ls, 2, DefaultQuadSegs)
	require.NoError(t, err)

	// capsule area: rectangle 10x4 plus a full circle of radius 2
	area := Area(g)
	assert.InDelta(t, 40+math.Pi*4, area, 0.5)

	// original endpoints are inside
	for _, pt := range [][]float64{{0, 0}, {10, 0}, {5, 1.5}} {
		ok, err := Relate(geom.NewPointFlat(geom.XY, pt), g, Within)
		require.NoError(t, err)
		assert.True(t, ok, "point %v", pt)
	}
}

func TestBuffer_BentLineContainsVertices(t *testing.T) {
	ls := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0, 10, 10})

	g, err := Buffer(ls, 1, DefaultQuadSegs)
	require.NoError(t, err)

	for _, pt := range [][]float64{{0, 0}, {10, 0}, {10, 10}, {5, 0}, {10, 5}} {
		ok, err := Relate(geom.NewPointFlat(geom.XY, pt), g, Within)
		require.NoError(t, err)
		assert.True(t, ok, "point %v", pt)
	}
}

func TestBuffer_Errors(t *testing.T) {
	sq := square(0, 0, 1)

	_, err := Buffer(sq, -1, DefaultQuadSegs)
	assert.Error(t, err)

	_, err = Buffer(geom.NewPointFlat(geom.XY, nil), 1, DefaultQuadSegs)
	require.Error(t, err)
	assert.ErrorIs(t, err, geotable.ErrInvalidGeometry)

	_, err = Buffer(nil, 1, DefaultQuadSegs)
	assert.Error(t, err)
}

func TestBuffer_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(0, 0, 2)))
	require.NoError(t, mp.Push(square(10, 10, 2)))

	g, err := Buffer(mp, 0.5, DefaultQuadSegs)
	require.NoError(t, err)
	out, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, out.NumPolygons())
	assert.GreaterOrEqual(t, Area(g), Area(mp))
}
