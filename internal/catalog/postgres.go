package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the catalog uses; mock pools satisfy it
// for testing.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	path       TEXT NOT NULL,
	format     TEXT NOT NULL,
	epsg       INTEGER NOT NULL,
	records    INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS operations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset_id  TEXT NOT NULL REFERENCES datasets(id),
	kind        TEXT NOT NULL,
	detail      JSONB,
	status      TEXT NOT NULL DEFAULT 'ok',
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_datasets_format ON datasets(format);
CREATE INDEX IF NOT EXISTS idx_datasets_path ON datasets(path);
CREATE INDEX IF NOT EXISTS idx_operations_dataset_id ON operations(dataset_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RecordDataset(ctx context.Context, d Dataset) (*Dataset, error) {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (id, path, format, epsg, records, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.Path, d.Format, d.EPSG, d.Records, d.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert dataset")
	}
	return &d, nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, path, format, epsg, records, created_at FROM datasets WHERE id = $1`, id)

	var d Dataset
	if err := row.Scan(&d.ID, &d.Path, &d.Format, &d.EPSG, &d.Records, &d.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "postgres: get dataset %s", id)
	}
	return &d, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context, filter DatasetFilter) ([]Dataset, error) {
	query := `SELECT id, path, format, epsg, records, created_at FROM datasets`
	var args []any
	if filter.Format != "" {
		args = append(args, filter.Format)
		query += ` WHERE format = $1`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.ID, &d.Path, &d.Format, &d.EPSG, &d.Records, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list datasets")
}

func (s *PostgresStore) RecordOperation(ctx context.Context, op Operation) (*Operation, error) {
	op.ID = uuid.New().String()
	if op.Status == "" {
		op.Status = OpStatusOK
	}
	if op.FinishedAt.IsZero() {
		op.FinishedAt = time.Now().UTC()
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = op.FinishedAt
	}

	var detail []byte
	if len(op.Detail) > 0 {
		b, err := json.Marshal(op.Detail)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal detail")
		}
		detail = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO operations (id, dataset_id, kind, detail, status, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		op.ID, op.DatasetID, string(op.Kind), detail, string(op.Status), op.Error,
		op.StartedAt, op.FinishedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert operation")
	}
	return &op, nil
}

func (s *PostgresStore) ListOperations(ctx context.Context, datasetID string) ([]Operation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, dataset_id, kind, detail, status, error, started_at, finished_at
		 FROM operations WHERE dataset_id = $1 ORDER BY started_at`, datasetID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list operations %s", datasetID)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		var kind, status string
		var detail []byte
		var opErr *string
		if err := rows.Scan(&op.ID, &op.DatasetID, &kind, &detail, &status,
			&opErr, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan operation")
		}
		op.Kind = OpKind(kind)
		op.Status = OpStatus(status)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &op.Detail); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal detail")
			}
		}
		if opErr != nil {
			op.Error = *opErr
		}
		out = append(out, op)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list operations")
}
