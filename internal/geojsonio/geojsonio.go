// Package geojsonio reads and writes GeoTables as GeoJSON FeatureCollections.
// GeoJSON coordinates are WGS84 by definition, so reads produce EPSG:4326
// tables and writes reject anything else.
package geojsonio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

// Read loads a GeoJSON FeatureCollection into a spatial GeoTable tagged
// EPSG:4326. Columns are the union of all feature property keys.
func Read(path string) (*geotable.GeoTable, error) {
	if !hasGeoJSONExt(path) {
		return nil, eris.Wrapf(geotable.ErrUnsupportedFormat, "geojsonio: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(geotable.ErrFileNotFound, "geojsonio: %s", path)
		}
		return nil, eris.Wrapf(err, "geojsonio: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(geotable.ErrUnsupportedFormat, "geojsonio: parse %s: %v", path, err)
	}

	colSet := map[string]struct{}{}
	for _, f := range fc.Features {
		for k := range f.Properties {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet)+1)
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	cols = append(cols, geotable.GeometryColumn)

	table := geotable.New(cols, crs.MustLookup(4326))
	for i, f := range fc.Features {
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = normalizeValue(v)
		}
		if err := table.Append(geotable.Record{Attrs: attrs, Geom: f.Geometry}); err != nil {
			return nil, eris.Wrapf(err, "geojsonio: feature %d", i)
		}
	}

	zap.L().Debug("geojsonio: loaded",
		zap.String("path", path),
		zap.Int("records", table.Len()),
	)
	return table, nil
}

// Write serializes a spatial table as a GeoJSON FeatureCollection. The table
// must already be in EPSG:4326; reproject first otherwise. The file is
// written to a temp sibling and renamed into place.
func Write(t *geotable.GeoTable, path string) error {
	if !hasGeoJSONExt(path) {
		return eris.Wrapf(geotable.ErrUnsupportedFormat, "geojsonio: %s", path)
	}
	if !t.HasGeometry() {
		return eris.Wrap(geotable.ErrWriteError, "geojsonio: table has no geometry column")
	}
	if cs := t.CoordSystem(); cs.EPSG != 4326 {
		return eris.Wrapf(geotable.ErrCoordSystemMismatch,
			"geojsonio: GeoJSON requires EPSG:4326, table is in %s", cs)
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, t.Len())}
	for _, rec := range t.Records() {
		props := make(map[string]any, len(rec.Attrs))
		for k, v := range rec.Attrs {
			props[k] = v
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   rec.Geom,
			Properties: props,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "geojsonio: marshal: %v", err)
	}

	if err := atomicWrite(path, data); err != nil {
		return err
	}
	zap.L().Debug("geojsonio: wrote",
		zap.String("path", path),
		zap.Int("records", t.Len()),
	)
	return nil
}

func hasGeoJSONExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

// normalizeValue maps encoding/json's decode types onto table value types:
// whole-number floats become int64 so filters compare them as integers.
func normalizeValue(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".geotable-*")
	if err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "geojsonio: temp file: %v", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(geotable.ErrWriteError, "geojsonio: write: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "geojsonio: close: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "geojsonio: rename: %v", err)
	}
	return nil
}
