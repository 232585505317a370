// Package catalog persists a record of processed datasets and the pipeline
// operations applied to them, backed by SQLite for local use or Postgres for
// shared deployments.
package catalog

import (
	"context"
	"time"
)

// OpKind names a pipeline stage recorded against a dataset.
type OpKind string

const (
	OpLoad      OpKind = "load"
	OpClean     OpKind = "clean"
	OpTransform OpKind = "transform"
	OpQuery     OpKind = "query"
	OpStore     OpKind = "store"
)

// OpStatus is the outcome of a recorded operation.
type OpStatus string

const (
	OpStatusOK     OpStatus = "ok"
	OpStatusFailed OpStatus = "failed"
)

// Dataset describes a file the pipeline has loaded or written.
type Dataset struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Format    string    `json:"format"`
	EPSG      int       `json:"epsg"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// Operation is one pipeline stage applied to a dataset. Detail holds
// stage-specific parameters (buffer distance, filter condition, target EPSG).
type Operation struct {
	ID         string         `json:"id"`
	DatasetID  string         `json:"dataset_id"`
	Kind       OpKind         `json:"kind"`
	Detail     map[string]any `json:"detail,omitempty"`
	Status     OpStatus       `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// DatasetFilter specifies criteria for listing datasets.
type DatasetFilter struct {
	Format string `json:"format,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the dataset catalog.
type Store interface {
	RecordDataset(ctx context.Context, d Dataset) (*Dataset, error)
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	ListDatasets(ctx context.Context, filter DatasetFilter) ([]Dataset, error)

	RecordOperation(ctx context.Context, op Operation) (*Operation, error)
	ListOperations(ctx context.Context, datasetID string) ([]Operation, error)

	Migrate(ctx context.Context) error
	Close() error
}
