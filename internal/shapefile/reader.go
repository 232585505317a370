package shapefile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

// ReadOptions controls how a shapefile is loaded.
type ReadOptions struct {
	// SourceEPSG overrides coordinate system detection. When zero the .prj
	// sidecar is sniffed.
	SourceEPSG int
	// FallbackEPSG applies when there is no override and no recognizable
	// .prj. Zero means EPSG:4326.
	FallbackEPSG int
}

// Read loads a shapefile and its DBF attributes into a GeoTable. DBF values
// are typed by field descriptor: N and F become numbers, D dates, L booleans,
// everything else text.
func Read(path string, opts ReadOptions) (*geotable.GeoTable, error) {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return nil, eris.Wrapf(geotable.ErrUnsupportedFormat, "shapefile: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(geotable.ErrFileNotFound, "shapefile: %s", path)
		}
		return nil, eris.Wrapf(err, "shapefile: stat %s", path)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	cs, err := resolveCoordSystem(path, opts)
	if err != nil {
		return nil, err
	}

	fields := reader.Fields()
	cols := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		cols = append(cols, strings.TrimRight(f.String(), "\x00"))
	}
	cols = append(cols, geotable.GeometryColumn)

	table := geotable.New(cols, cs)

	decoder := charmap.ISO8859_1.NewDecoder()
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		attrs := make(map[string]any, len(fields))
		for i, f := range fields {
			name := strings.TrimRight(f.String(), "\x00")
			raw := strings.TrimRight(reader.Attribute(i), "\x00")
			raw = strings.TrimSpace(raw)
			if raw == "" {
				attrs[name] = nil
				continue
			}
			v, convErr := typedValue(f, raw, decoder)
			if convErr != nil {
				skipped++
				attrs[name] = nil
				continue
			}
			attrs[name] = v
		}

		g, convErr := shapeToGeom(shape)
		if convErr != nil {
			return nil, convErr
		}

		if err := table.Append(geotable.Record{Attrs: attrs, Geom: g}); err != nil {
			return nil, err
		}
	}

	if skipped > 0 {
		zap.L().Debug("shapefile: attribute values failed to parse",
			zap.String("path", path),
			zap.Int("values", skipped),
		)
	}
	zap.L().Debug("shapefile: loaded",
		zap.String("path", path),
		zap.Int("records", table.Len()),
		zap.String("crs", cs.String()),
	)
	return table, nil
}

// resolveCoordSystem picks the table's coordinate system: explicit override,
// then the .prj sidecar, then the configured fallback.
func resolveCoordSystem(path string, opts ReadOptions) (crs.CoordSystem, error) {
	if opts.SourceEPSG != 0 {
		return crs.Lookup(opts.SourceEPSG)
	}
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if wkt, err := os.ReadFile(prj); err == nil {
		if cs, ok := crs.SniffPRJ(string(wkt)); ok {
			return cs, nil
		}
		zap.L().Warn("shapefile: unrecognized .prj, using fallback",
			zap.String("path", prj))
	}
	if opts.FallbackEPSG != 0 {
		return crs.Lookup(opts.FallbackEPSG)
	}
	return crs.MustLookup(4326), nil
}

// typedValue converts a raw DBF attribute to a Go value based on the field
// descriptor type byte.
func typedValue(f shp.Field, raw string, decoder *encoding.Decoder) (any, error) {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n, nil
			}
		}
		return strconv.ParseFloat(raw, 64)
	case 'F':
		return strconv.ParseFloat(raw, 64)
	case 'D':
		return time.Parse("20060102", raw)
	case 'L':
		switch raw {
		case "T", "t", "Y", "y":
			return true, nil
		case "F", "f", "N", "n":
			return false, nil
		case "?":
			return nil, nil
		}
		return nil, eris.Errorf("shapefile: invalid logical value %q", raw)
	default:
		s, err := decoder.String(raw)
		if err != nil {
			return raw, nil
		}
		return s, nil
	}
}
