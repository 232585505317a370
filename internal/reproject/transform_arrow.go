//go:build duckdb_arrow

package reproject

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/duckdb/duckdb-go/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geotable/internal/crs"
)

// transformWKB runs ST_Transform over the whole batch through an Arrow
// record view. Requires the duckdb_arrow build tag, which duckdb-go gates
// its Arrow interface behind.
func transformWKB(ctx context.Context, blobs [][]byte, from, to crs.CoordSystem) ([][]byte, error) {
	c, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, eris.Wrap(err, "reproject: open duckdb connector")
	}
	defer c.Close()

	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reproject: connect")
	}
	defer conn.Close()

	db := sql.OpenDB(c)
	defer db.Close()
	if _, err := db.ExecContext(ctx, "INSTALL spatial; LOAD spatial;"); err != nil {
		return nil, eris.Wrap(err, "reproject: load spatial extension")
	}

	ar, err := duckdb.NewArrowFromConn(conn)
	if err != nil {
		return nil, eris.Wrap(err, "reproject: arrow interface")
	}

	rec := buildWKBRecord(blobs)
	defer rec.Release()

	rr, err := array.NewRecordReader(rec.Schema(), []arrow.RecordBatch{rec})
	if err != nil {
		return nil, eris.Wrap(err, "reproject: record reader")
	}
	defer rr.Release()

	release, err := ar.RegisterView(rr, "geoms")
	if err != nil {
		return nil, eris.Wrap(err, "reproject: register arrow view")
	}
	defer release()

	query := fmt.Sprintf(
		`SELECT idx, ST_AsWKB(ST_Transform(ST_GeomFromWKB(geom), '%s', '%s', always_xy := true)) AS geom
		 FROM geoms ORDER BY idx`,
		from.String(), to.String(),
	)

	reader, err := ar.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "reproject: transform %s to %s", from.String(), to.String())
	}
	defer reader.Release()

	out := make([][]byte, 0, len(blobs))
	for reader.Next() {
		batch := reader.RecordBatch()
		col, ok := batch.Column(1).(*array.Binary)
		if !ok {
			return nil, eris.Errorf("reproject: unexpected result column type %T", batch.Column(1))
		}
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				return nil, eris.Errorf("reproject: null geometry in result row %d", len(out))
			}
			data := make([]byte, len(col.Value(i)))
			copy(data, col.Value(i))
			out = append(out, data)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "reproject: read transform results")
	}
	return out, nil
}

// buildWKBRecord assembles the (idx BIGINT, geom BLOB) Arrow batch DuckDB
// reads the geometries from.
func buildWKBRecord(blobs [][]byte) arrow.RecordBatch {
	pool := memory.NewGoAllocator()

	schema := arrow.NewSchema(
		[]arrow.Field{
			{Name: "idx", Type: arrow.PrimitiveTypes.Int64},
			{Name: "geom", Type: arrow.BinaryTypes.Binary},
		},
		nil,
	)

	idxBuilder := array.NewInt64Builder(pool)
	geomBuilder := array.NewBinaryBuilder(pool, arrow.BinaryTypes.Binary)
	defer idxBuilder.Release()
	defer geomBuilder.Release()

	for i, b := range blobs {
		idxBuilder.Append(int64(i))
		geomBuilder.Append(b)
	}

	idxArr := idxBuilder.NewArray()
	geomArr := geomBuilder.NewArray()
	defer idxArr.Release()
	defer geomArr.Release()

	return array.NewRecordBatch(schema, []arrow.Array{idxArr, geomArr}, int64(len(blobs)))
}
