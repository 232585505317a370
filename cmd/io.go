package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geotable/internal/catalog"
	"github.com/sells-group/geotable/internal/geotable"
	"github.com/sells-group/geotable/internal/pipeline"
)

// openCatalog builds the configured catalog store, or nil when cataloging is
// off.
func openCatalog(ctx context.Context) (catalog.Store, error) {
	var (
		st  catalog.Store
		err error
	)
	switch cfg.Catalog.Driver {
	case "off":
		return nil, nil
	case "postgres":
		st, err = catalog.NewPostgres(ctx, cfg.Catalog.DatabaseURL, nil)
	default:
		st, err = catalog.NewSQLite(cfg.Catalog.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// loadTable reads a dataset and records it in the catalog. Returns the table
// and the catalog dataset id ("" when cataloging is off).
func loadTable(ctx context.Context, st catalog.Store, path string, opts pipeline.LoadOptions) (*geotable.GeoTable, string, error) {
	if opts.DefaultEPSG == 0 {
		opts.DefaultEPSG = cfg.Convert.DefaultEPSG
	}
	t, err := pipeline.LoadTable(ctx, path, opts)
	if err != nil {
		return nil, "", err
	}

	var datasetID string
	if st != nil {
		d, recErr := st.RecordDataset(ctx, catalog.Dataset{
			Path:    path,
			Format:  pipeline.Format(path),
			EPSG:    t.CoordSystem().EPSG,
			Records: t.Len(),
		})
		if recErr != nil {
			zap.L().Warn("catalog record failed", zap.Error(recErr))
		} else {
			datasetID = d.ID
		}
	}
	return t, datasetID, nil
}

// storeTable writes a dataset and records the store operation against the
// loaded dataset.
func storeTable(ctx context.Context, st catalog.Store, datasetID string, t *geotable.GeoTable, path string) error {
	started := time.Now().UTC()
	err := pipeline.StoreTable(t, path)
	recordOp(ctx, st, datasetID, catalog.Operation{
		Kind:      catalog.OpStore,
		Detail:    map[string]any{"path": path},
		StartedAt: started,
	}, err)
	return err
}

// recordOp files an operation outcome in the catalog, logging rather than
// failing when the catalog itself errors.
func recordOp(ctx context.Context, st catalog.Store, datasetID string, op catalog.Operation, opErr error) {
	if st == nil || datasetID == "" {
		return
	}
	op.DatasetID = datasetID
	op.Status = catalog.OpStatusOK
	if opErr != nil {
		op.Status = catalog.OpStatusFailed
		op.Error = opErr.Error()
	}
	op.FinishedAt = time.Now().UTC()
	if _, err := st.RecordOperation(ctx, op); err != nil {
		zap.L().Warn("catalog record failed", zap.Error(err))
	}
}
