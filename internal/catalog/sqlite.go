package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	path       TEXT NOT NULL,
	format     TEXT NOT NULL,
	epsg       INTEGER NOT NULL,
	records    INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS operations (
	id          TEXT PRIMARY KEY,
	dataset_id  TEXT NOT NULL REFERENCES datasets(id),
	kind        TEXT NOT NULL,
	detail      TEXT,
	status      TEXT NOT NULL DEFAULT 'ok',
	error       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_datasets_format ON datasets(format);
CREATE INDEX IF NOT EXISTS idx_datasets_path ON datasets(path);
CREATE INDEX IF NOT EXISTS idx_operations_dataset_id ON operations(dataset_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordDataset(ctx context.Context, d Dataset) (*Dataset, error) {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, path, format, epsg, records, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Path, d.Format, d.EPSG, d.Records, d.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert dataset")
	}
	return &d, nil
}

func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, format, epsg, records, created_at FROM datasets WHERE id = ?`, id)

	var d Dataset
	if err := row.Scan(&d.ID, &d.Path, &d.Format, &d.EPSG, &d.Records, &d.CreatedAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dataset %s", id)
	}
	return &d, nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context, filter DatasetFilter) ([]Dataset, error) {
	query := `SELECT id, path, format, epsg, records, created_at FROM datasets`
	var args []any
	if filter.Format != "" {
		query += ` WHERE format = ?`
		args = append(args, filter.Format)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.ID, &d.Path, &d.Format, &d.EPSG, &d.Records, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list datasets")
}

func (s *SQLiteStore) RecordOperation(ctx context.Context, op Operation) (*Operation, error) {
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

	detail, err := marshalDetail(op.Detail)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal detail")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO operations (id, dataset_id, kind, detail, status, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.DatasetID, string(op.Kind), detail, string(op.Status), op.Error,
		op.StartedAt, op.FinishedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert operation")
	}
	return &op, nil
}

func (s *SQLiteStore) ListOperations(ctx context.Context, datasetID string) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset_id, kind, detail, status, error, started_at, finished_at
		 FROM operations WHERE dataset_id = ? ORDER BY started_at`, datasetID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list operations %s", datasetID)
	}
	defer rows.Close()

	var out []Operation
	for rows.Next() {
		var op Operation
		var kind, status string
		var detail, opErr sql.NullString
		if err := rows.Scan(&op.ID, &op.DatasetID, &kind, &detail, &status,
			&opErr, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan operation")
		}
		op.Kind = OpKind(kind)
		op.Status = OpStatus(status)
		if detail.Valid && detail.String != "" {
			if err := json.Unmarshal([]byte(detail.String), &op.Detail); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal detail")
			}
		}
		op.Error = opErr.String
		out = append(out, op)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list operations")
}

func marshalDetail(detail map[string]any) (string, error) {
	if len(detail) == 0 {
		return "", nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
