//go:build !duckdb_arrow

package reproject

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geotable/internal/crs"
)

// transformWKB runs ST_Transform over the blobs one statement execution at a
// time through the database/sql driver. Slower than the Arrow view used
// under the duckdb_arrow build tag, but keeps the default build whole.
func transformWKB(ctx context.Context, blobs [][]byte, from, to crs.CoordSystem) ([][]byte, error) {
	c, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, eris.Wrap(err, "reproject: open duckdb connector")
	}
	defer c.Close()

	db := sql.OpenDB(c)
	defer db.Close()
	if _, err := db.ExecContext(ctx, "INSTALL spatial; LOAD spatial;"); err != nil {
		return nil, eris.Wrap(err, "reproject: load spatial extension")
	}

	stmt, err := db.PrepareContext(ctx, fmt.Sprintf(
		`SELECT ST_AsWKB(ST_Transform(ST_GeomFromWKB(?::BLOB), '%s', '%s', always_xy := true))`,
		from.String(), to.String(),
	))
	if err != nil {
		return nil, eris.Wrap(err, "reproject: prepare transform")
	}
	defer stmt.Close()

	out := make([][]byte, 0, len(blobs))
	for i, b := range blobs {
		var data []byte
		if err := stmt.QueryRowContext(ctx, b).Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "reproject: transform %s to %s (row %d)", from.String(), to.String(), i)
		}
		if len(data) == 0 {
			return nil, eris.Errorf("reproject: null geometry in result row %d", i)
		}
		out = append(out, data)
	}
	return out, nil
}
