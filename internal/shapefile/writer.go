package shapefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geotable/internal/geotable"
)

// maxFieldNameLen is the DBF limit on field names.
const maxFieldNameLen = 10

// Write serializes a spatial table to a shapefile. All sidecar files (.shx,
// .dbf, and .prj when the coordinate system has a known WKT) are produced in
// a temporary directory and renamed into place only after every component
// has been written, so a failure never leaves a partially overwritten
// destination.
func Write(t *geotable.GeoTable, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return eris.Wrapf(geotable.ErrUnsupportedFormat, "shapefile: %s", path)
	}
	if !t.HasGeometry() {
		return eris.Wrap(geotable.ErrWriteError, "shapefile: table has no geometry column")
	}

	shapes, shapeType, err := convertShapes(t)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(path), ".geotable-*")
	if err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "shapefile: temp dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	tmpShp := filepath.Join(tmpDir, base+".shp")

	if err := writeComponents(t, shapes, shapeType, tmpShp); err != nil {
		return err
	}

	// go-shp derives the DBF path by trimming ".shp" including the dot, so
	// the component lands at <base>dbf. Stage it under the proper name.
	if err := os.Rename(filepath.Join(tmpDir, base+"dbf"), filepath.Join(tmpDir, base+".dbf")); err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "shapefile: stage .dbf: %v", err)
	}

	dstBase := strings.TrimSuffix(path, filepath.Ext(path))

	exts := []string{".shp", ".shx", ".dbf"}
	cs := t.CoordSystem()
	if wkt, ok := cs.WKT(); ok {
		prj := filepath.Join(tmpDir, base+".prj")
		if err := os.WriteFile(prj, []byte(wkt), 0o644); err != nil {
			return eris.Wrapf(geotable.ErrWriteError, "shapefile: write .prj: %v", err)
		}
		exts = append(exts, ".prj")
	} else {
		zap.L().Warn("shapefile: no WKT for coordinate system, skipping .prj",
			zap.String("crs", cs.String()))
		// An overwrite must not leave the previous dataset's sidecar behind.
		if err := os.Remove(dstBase + ".prj"); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(geotable.ErrWriteError, "shapefile: remove stale .prj: %v", err)
		}
	}
	for _, ext := range exts {
		if err := os.Rename(filepath.Join(tmpDir, base+ext), dstBase+ext); err != nil {
			return eris.Wrapf(geotable.ErrWriteError, "shapefile: rename %s: %v", ext, err)
		}
	}

	zap.L().Debug("shapefile: wrote",
		zap.String("path", path),
		zap.Int("records", t.Len()),
		zap.String("crs", cs.String()),
	)
	return nil
}

// convertShapes converts every geometry up front so type mismatches surface
// before any file is created. Shapefiles hold a single shape type per file.
func convertShapes(t *geotable.GeoTable) ([]shp.Shape, shp.ShapeType, error) {
	shapes := make([]shp.Shape, t.Len())
	var shapeType shp.ShapeType
	for i, rec := range t.Records() {
		if rec.Geom == nil {
			return nil, shp.NULL, eris.Wrapf(geotable.ErrWriteError,
				"shapefile: record %d has no geometry", i)
		}
		s, st, err := geomToShape(rec.Geom)
		if err != nil {
			return nil, shp.NULL, err
		}
		if i == 0 {
			shapeType = st
		} else if st != shapeType {
			return nil, shp.NULL, eris.Wrapf(geotable.ErrWriteError,
				"shapefile: mixed shape types %v and %v", shapeType, st)
		}
		shapes[i] = s
	}
	if len(shapes) == 0 {
		return nil, shp.NULL, eris.Wrap(geotable.ErrWriteError, "shapefile: table is empty")
	}
	return shapes, shapeType, nil
}

func writeComponents(t *geotable.GeoTable, shapes []shp.Shape, shapeType shp.ShapeType, tmpShp string) error {
	w, err := shp.Create(tmpShp, shapeType)
	if err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "shapefile: create %s: %v", tmpShp, err)
	}
	defer w.Close()

	cols := t.AttributeColumns()
	if err := w.SetFields(buildFields(t, cols)); err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "shapefile: set fields: %v", err)
	}

	for i, rec := range t.Records() {
		w.Write(shapes[i])
		for f, col := range cols {
			v := rec.Attrs[col]
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(i, f, dbfValue(v)); err != nil {
				return eris.Wrapf(geotable.ErrWriteError,
					"shapefile: record %d field %s: %v", i, col, err)
			}
		}
	}
	return nil
}

// buildFields infers DBF field descriptors from each column's first non-nil
// value. Names longer than the DBF limit are truncated.
func buildFields(t *geotable.GeoTable, cols []string) []shp.Field {
	fields := make([]shp.Field, 0, len(cols))
	for _, col := range cols {
		name := col
		if len(name) > maxFieldNameLen {
			zap.L().Warn("shapefile: truncating field name",
				zap.String("column", col))
			name = name[:maxFieldNameLen]
		}
		fields = append(fields, fieldFor(name, firstValue(t, col)))
	}
	return fields
}

func fieldFor(name string, sample any) shp.Field {
	switch sample.(type) {
	case int64, int:
		return shp.NumberField(name, 18)
	case float64:
		return shp.FloatField(name, 19, 6)
	case time.Time:
		return shp.DateField(name)
	case bool:
		return shp.StringField(name, 1)
	default:
		return shp.StringField(name, 254)
	}
}

func firstValue(t *geotable.GeoTable, col string) any {
	for _, rec := range t.Records() {
		if v := rec.Attrs[col]; v != nil {
			return v
		}
	}
	return nil
}

// dbfValue maps a table value onto the types go-shp's attribute writer
// accepts.
func dbfValue(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int, float64, string:
		return x
	case bool:
		if x {
			return "T"
		}
		return "F"
	case time.Time:
		return x.Format("20060102")
	default:
		return fmt.Sprint(x)
	}
}
