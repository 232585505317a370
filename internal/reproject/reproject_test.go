package reproject

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

var (
	wgs84       = crs.MustLookup(4326)
	webMercator = crs.MustLookup(3857)
	utm14N      = crs.MustLookup(32614)
)

func austinTable(t *testing.T) *geotable.GeoTable {
	t.Helper()
	tbl := geotable.New([]string{"name", geotable.GeometryColumn}, wgs84)
	pts := []struct {
		name string
		x, y float64
	}{
		{"austin", -97.7431, 30.2672},
		{"dallas", -96.7970, 32.7767},
		{"houston", -95.3698, 29.7604},
	}
	for _, p := range pts {
		require.NoError(t, tbl.Append(geotable.Record{
			Attrs: map[string]any{"name": p.name},
			Geom:  geom.NewPointFlat(geom.XY, []float64{p.x, p.y}),
		}))
	}
	return tbl
}

func TestGeometries_WebMercator(t *testing.T) {
	gs := []geom.T{geom.NewPointFlat(geom.XY, []float64{0, 0})}

	out, err := Geometries(context.Background(), gs, wgs84, webMercator)
	require.NoError(t, err)
	require.Len(t, out, 1)

	p := out[0].(*geom.Point)
	assert.InDelta(t, 0, p.X(), 1e-6)
	assert.InDelta(t, 0, p.Y(), 1e-6)
}

func TestGeometries_PreservesNilSlots(t *testing.T) {
	gs := []geom.T{
		geom.NewPointFlat(geom.XY, []float64{-97.7, 30.3}),
		nil,
		geom.NewPointFlat(geom.XY, []float64{-96.8, 32.8}),
	}

	out, err := Geometries(context.Background(), gs, wgs84, webMercator)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NotNil(t, out[0])
	assert.Nil(t, out[1])
	assert.NotNil(t, out[2])
}

func TestTable_UpdatesCoordSystem(t *testing.T) {
	tbl := austinTable(t)

	got, err := Table(context.Background(), tbl, webMercator)
	require.NoError(t, err)
	assert.Equal(t, 3857, got.CoordSystem().EPSG)
	assert.Equal(t, tbl.Len(), got.Len())

	// attributes carried through untouched
	assert.Equal(t, "austin", got.Record(0).Value("name"))

	// austin is west of the meridian and north of the equator
	p := got.Record(0).Geom.(*geom.Point)
	assert.Negative(t, p.X())
	assert.Positive(t, p.Y())
	// web mercator coordinates are meters, far outside the degree range
	assert.Less(t, p.X(), -1e6)
}

func TestTable_NoopWhenAlreadyInTarget(t *testing.T) {
	tbl := austinTable(t)
	got, err := Table(context.Background(), tbl, wgs84)
	require.NoError(t, err)
	assert.Same(t, tbl, got)
}

// Reprojecting via an intermediate system must agree with the direct
// transformation within floating-point tolerance.
func TestTable_CompositionConsistency(t *testing.T) {
	tbl := austinTable(t)
	ctx := context.Background()

	viaMercator, err := Table(ctx, tbl, webMercator)
	require.NoError(t, err)
	indirect, err := Table(ctx, viaMercator, utm14N)
	require.NoError(t, err)

	direct, err := Table(ctx, tbl, utm14N)
	require.NoError(t, err)

	require.Equal(t, direct.Len(), indirect.Len())
	for i := 0; i < direct.Len(); i++ {
		dp := direct.Record(i).Geom.(*geom.Point)
		ip := indirect.Record(i).Geom.(*geom.Point)
		assert.InDelta(t, dp.X(), ip.X(), 1e-3)
		assert.InDelta(t, dp.Y(), ip.Y(), 1e-3)
	}
}

// Round trip out of and back into the source system returns the original
// coordinates within tolerance.
func TestGeometries_RoundTrip(t *testing.T) {
	orig := geom.NewLineStringFlat(geom.XY, []float64{-97.7, 30.3, -96.8, 32.8})
	ctx := context.Background()

	fwd, err := Geometries(ctx, []geom.T{orig}, wgs84, utm14N)
	require.NoError(t, err)
	back, err := Geometries(ctx, fwd, utm14N, wgs84)
	require.NoError(t, err)

	got := back[0].(*geom.LineString)
	want := orig.FlatCoords()
	for i, v := range got.FlatCoords() {
		assert.InDelta(t, want[i], v, 1e-6)
	}
}
