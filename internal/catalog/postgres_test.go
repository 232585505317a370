package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_RecordDataset(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO datasets`).
		WithArgs(pgxmock.AnyArg(), "/data/cities.shp", "shapefile", 4326, 120, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	d, err := s.RecordDataset(context.Background(), Dataset{
		Path: "/data/cities.shp", Format: "shapefile", EPSG: 4326, Records: 120,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDataset_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, path, format, epsg, records, created_at FROM datasets WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDataset(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get dataset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDatasets(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, path, format, epsg, records, created_at FROM datasets WHERE format = \$1`).
		WithArgs("geojson").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "path", "format", "epsg", "records", "created_at"}).
			AddRow("d1", "/b.geojson", "geojson", 4326, 2, now))

	out, err := s.ListDatasets(context.Background(), DatasetFilter{Format: "geojson"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/b.geojson", out[0].Path)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordOperation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO operations`).
		WithArgs(pgxmock.AnyArg(), "d1", "transform", pgxmock.AnyArg(), "ok", "",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	op, err := s.RecordOperation(context.Background(), Operation{
		DatasetID: "d1",
		Kind:      OpTransform,
		Detail:    map[string]any{"target_epsg": 3857},
	})
	require.NoError(t, err)
	assert.Equal(t, OpStatusOK, op.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOperations(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	errMsg := "disk full"

	mock.ExpectQuery(`SELECT id, dataset_id, kind, detail, status, error, started_at, finished_at`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "dataset_id", "kind", "detail", "status", "error", "started_at", "finished_at"}).
			AddRow("o1", "d1", "store", []byte(nil), "failed", &errMsg, now, now))

	ops, err := s.ListOperations(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpStore, ops[0].Kind)
	assert.Equal(t, OpStatusFailed, ops[0].Status)
	assert.Equal(t, "disk full", ops[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
