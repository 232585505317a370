package xlsxio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	orig := geotable.New([]string{"name", "pop", "ratio", "active", geotable.GeometryColumn}, crs.MustLookup(4326))
	require.NoError(t, orig.Append(geotable.Record{
		Attrs: map[string]any{"name": "alpha", "pop": int64(1200), "ratio": 0.25, "active": true},
		Geom:  geom.NewPointFlat(geom.XY, []float64{-97.7, 30.3}),
	}))
	require.NoError(t, orig.Append(geotable.Record{
		Attrs: map[string]any{"name": "bravo", "pop": int64(450), "ratio": 1.5, "active": false},
		Geom:  geom.NewPointFlat(geom.XY, []float64{-96.8, 32.8}),
	}))

	require.NoError(t, Write(orig, path))

	got, err := Read(path, ReadOptions{})
	require.NoError(t, err)

	assert.False(t, got.HasGeometry(), "geometry does not survive xlsx export")
	assert.Equal(t, []string{"name", "pop", "ratio", "active"}, got.AttributeColumns())
	require.Equal(t, 2, got.Len())

	first := got.Record(0)
	assert.Equal(t, "alpha", first.Attrs["name"])
	assert.Equal(t, int64(1200), first.Attrs["pop"])
	assert.InDelta(t, 0.25, first.Attrs["ratio"].(float64), 1e-9)
	assert.Equal(t, true, first.Attrs["active"])
}

func TestWrite_NonSpatialTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attrs.xlsx")
	tbl := geotable.New([]string{"k", "v"}, crs.MustLookup(4326))
	require.NoError(t, tbl.Append(geotable.Record{Attrs: map[string]any{"k": "a", "v": int64(1)}}))
	require.NoError(t, tbl.Append(geotable.Record{Attrs: map[string]any{"k": "b", "v": nil}}))

	require.NoError(t, Write(tbl, path))

	got, err := Read(path, ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Nil(t, got.Record(1).Attrs["v"], "empty cells read back as nil")
}

func TestWrite_WrongExtension(t *testing.T) {
	tbl := geotable.New([]string{"k"}, crs.MustLookup(4326))
	err := Write(tbl, filepath.Join(t.TempDir(), "out.csv"))
	assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.xlsx"), ReadOptions{})
	assert.ErrorIs(t, err, geotable.ErrFileNotFound)

	_, err = Read("table.csv", ReadOptions{})
	assert.ErrorIs(t, err, geotable.ErrUnsupportedFormat)
}

func TestRead_SheetSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.xlsx")
	tbl := geotable.New([]string{"k"}, crs.MustLookup(4326))
	require.NoError(t, tbl.Append(geotable.Record{Attrs: map[string]any{"k": "a"}}))
	require.NoError(t, Write(tbl, path))

	_, err := Read(path, ReadOptions{SheetName: "nope"})
	assert.Error(t, err)

	_, err = Read(path, ReadOptions{SheetIndex: 5})
	assert.Error(t, err)

	got, err := Read(path, ReadOptions{SheetName: "data"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}
