package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geojsonio"
	"github.com/sells-group/geotable/internal/geotable"
	"github.com/sells-group/geotable/internal/reproject"
	"github.com/sells-group/geotable/internal/shapefile"
	"github.com/sells-group/geotable/internal/xlsxio"
)

// LoadOptions configures LoadTable.
type LoadOptions struct {
	// SourceEPSG overrides the detected coordinate system.
	SourceEPSG int
	// DefaultEPSG applies when nothing identifies the source system.
	DefaultEPSG int
	// TargetEPSG reprojects the table right after loading when nonzero.
	TargetEPSG int
}

// Format names the file format a path implies, for catalog records and
// dispatch. Returns "" for unsupported extensions.
func Format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return "shapefile"
	case ".geojson", ".json":
		return "geojson"
	case ".xlsx":
		return "xlsx"
	}
	return ""
}

// LoadTable reads a dataset, dispatching on file extension, and optionally
// reprojects it in the same step.
func LoadTable(ctx context.Context, path string, opts LoadOptions) (*geotable.GeoTable, error) {
	var (
		t   *geotable.GeoTable
		err error
	)
	switch Format(path) {
	case "shapefile":
		t, err = shapefile.Read(path, shapefile.ReadOptions{
			SourceEPSG:   opts.SourceEPSG,
			FallbackEPSG: opts.DefaultEPSG,
		})
	case "geojson":
		t, err = geojsonio.Read(path)
	case "xlsx":
		t, err = xlsxio.Read(path, xlsxio.ReadOptions{})
	default:
		return nil, eris.Wrapf(geotable.ErrUnsupportedFormat, "pipeline: load %s", path)
	}
	if err != nil {
		return nil, err
	}

	if opts.TargetEPSG != 0 && t.HasGeometry() {
		target, err := crs.Lookup(opts.TargetEPSG)
		if err != nil {
			return nil, err
		}
		return reproject.Table(ctx, t, target)
	}
	return t, nil
}

// StoreTable writes a table, dispatching on file extension. GeoJSON output
// requires the table to already be in EPSG:4326.
func StoreTable(t *geotable.GeoTable, path string) error {
	switch Format(path) {
	case "shapefile":
		return shapefile.Write(t, path)
	case "geojson":
		return geojsonio.Write(t, path)
	case "xlsx":
		return xlsxio.Write(t, path)
	}
	return eris.Wrapf(geotable.ErrUnsupportedFormat, "pipeline: store %s", path)
}
