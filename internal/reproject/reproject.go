// Package reproject transforms geometries between coordinate reference
// systems. The projection math is delegated to the DuckDB spatial extension:
// geometries go in as WKB, run through ST_Transform, and are decoded back.
// Builds tagged duckdb_arrow ship the batch through an Arrow record view;
// the default build binds each geometry through the database/sql driver.
package reproject

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

// Table returns a new table with every geometry reprojected into the target
// system and the table's coordinate system tag updated. Attribute columns
// are untouched. A no-op when the table is already in the target system.
func Table(ctx context.Context, t *geotable.GeoTable, target crs.CoordSystem) (*geotable.GeoTable, error) {
	if !t.HasGeometry() {
		return nil, eris.New("reproject: table has no geometry column")
	}
	if t.CoordSystem().Equal(target) {
		return t, nil
	}

	gs, err := Geometries(ctx, t.Geometries(), t.CoordSystem(), target)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("reproject: table transformed",
		zap.String("from", t.CoordSystem().String()),
		zap.String("to", target.String()),
		zap.Int("rows", t.Len()),
	)

	return t.WithGeometries(gs, target)
}

// Geometries transforms each geometry from one system to another,
// point-by-point, preserving positions of nil entries. Axis order is forced
// to x/y (lon/lat) on both sides.
func Geometries(ctx context.Context, gs []geom.T, from, to crs.CoordSystem) ([]geom.T, error) {
	// collect non-nil geometries as WKB, remembering their row positions
	rowIdx := make([]int, 0, len(gs))
	blobs := make([][]byte, 0, len(gs))
	for i, g := range gs {
		if g == nil {
			continue
		}
		data, err := wkb.Marshal(g, wkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "reproject: encode WKB for row %d", i)
		}
		rowIdx = append(rowIdx, i)
		blobs = append(blobs, data)
	}

	out := make([]geom.T, len(gs))
	if len(blobs) == 0 {
		return out, nil
	}

	transformed, err := transformWKB(ctx, blobs, from, to)
	if err != nil {
		return nil, err
	}
	if len(transformed) != len(blobs) {
		return nil, eris.Errorf("reproject: got %d geometries back, want %d", len(transformed), len(blobs))
	}

	for k, data := range transformed {
		g, err := wkb.Unmarshal(data)
		if err != nil {
			return nil, eris.Wrapf(err, "reproject: decode WKB for row %d", rowIdx[k])
		}
		out[rowIdx[k]] = g
	}
	return out, nil
}

