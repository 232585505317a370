package geojsonio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

func sampleTable(t *testing.T) *geotable.GeoTable {
	t.Helper()
	tbl := geotable.New([]string{"name", "pop", geotable.GeometryColumn}, crs.MustLookup(4326))
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{"name": "alpha", "pop": int64(1200)},
		Geom:  geom.NewPointFlat(geom.XY, []float64{-97.7, 30.3}),
	}))
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{"name": "bravo", "pop": int64(450)},
		Geom: geom.NewPolygonFlat(geom.XY,
			[]float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}, []int{10}),
	}))
	return tbl
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.geojson")
	orig := sampleTable(t)

	require.NoError(t, Write(orig, path))

	got, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, orig.Len(), got.Len())
	assert.Equal(t, 4326, got.CoordSystem().EPSG)
	assert.ElementsMatch(t, []string{"name", "pop"}, got.AttributeColumns())

	first := got.Record(0)
	assert.Equal(t, "alpha", first.Attrs["name"])
	assert.Equal(t, int64(1200), first.Attrs["pop"], "whole numbers should decode as int64")
	p, ok := first.Geom.(*geom.Point)
	require.True(t, ok)
	assert.InDelta(t, -97.7, p.X(), 1e-9)
	assert.InDelta(t, 30.3, p.Y(), 1e-9)

	poly, ok := got.Record(1).Geom.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
}

func TestWrite_RejectsNonWGS84(t *testing.T) {
	tbl := geotable.New([]string{geotable.GeometryColumn}, crs.MustLookup(3857))
	require.NoError(t, tbl.Append(geotable.Record{
		Attrs: map[string]any{},
		Geom:  geom.NewPointFlat(geom.XY, []float64{0, 0}),
	}))
	err := Write(tbl, filepath.Join(t.TempDir(), "out.geojson"))
	assert.ErrorIs(t, err, geotable.ErrCoordSystemMismatch)
}

func TestWrite_Errors(t *testing.T) {
	dir := t.TempDir()

	err := Write(geotable.New([]string{"a"}, crs.MustLookup(4326)), filepath.Join(dir, "x.geojson"))
	assert.ErrorIs(t, err, geotable.ErrWriteError, "non-spatial table")

	err = Write(sampleTable(t), filepath.Join(dir, "x.shp"))
	assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat, "wrong extension")
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.geojson"))
	assert.ErrorIs(t, err, geotable.ErrFileNotFound)

	_, err = Read(filepath.Join(dir, "data.csv"))
	assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat)

	garbled := filepath.Join(dir, "bad.geojson")
	require.NoError(t, os.WriteFile(garbled, []byte("{not json"), 0o644))
	_, err = Read(garbled)
	assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat)
}

func TestRead_SparseProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.geojson")
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"a":1}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{"b":"x"}}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.AttributeColumns(), "columns are the union of property keys")
	assert.Nil(t, got.Record(0).Attrs["b"])
	assert.Nil(t, got.Record(1).Attrs["a"])
}
