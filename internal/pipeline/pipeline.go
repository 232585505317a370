// Package pipeline runs the declarative Load → Clean → Transform → Query →
// Store sequence over GeoTables, with optional catalog recording.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geotable/internal/catalog"
	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geomops"
	"github.com/sells-group/geotable/internal/geotable"
	"github.com/sells-group/geotable/internal/reproject"
)

// Spec is a declarative pipeline definition. Load is required; the remaining
// stages run in order when present.
type Spec struct {
	Name      string         `yaml:"name"`
	Load      LoadStep       `yaml:"load"`
	Clean     *CleanStep     `yaml:"clean,omitempty"`
	Transform *TransformStep `yaml:"transform,omitempty"`
	Query     *QueryStep     `yaml:"query,omitempty"`
	Store     *StoreStep     `yaml:"store,omitempty"`
}

// LoadStep reads the input dataset.
type LoadStep struct {
	Path       string `yaml:"path"`
	SourceEPSG int    `yaml:"source_epsg,omitempty"`
}

// CleanStep drops columns and filters rows by an attribute condition.
type CleanStep struct {
	DropColumns []string `yaml:"drop_columns,omitempty"`
	Where       string   `yaml:"where,omitempty"` // "col,op,value"
}

// TransformStep reprojects and/or buffers geometries. Buffering requires a
// projected coordinate system.
type TransformStep struct {
	TargetEPSG     int     `yaml:"target_epsg,omitempty"`
	BufferDistance float64 `yaml:"buffer_distance,omitempty"`
	QuadSegs       int     `yaml:"quad_segs,omitempty"`
}

// QueryStep keeps rows whose geometry relates to a reference geometry. The
// reference comes from the first feature of RefPath or from inline WKT; WKT
// references must carry RefEPSG.
type QueryStep struct {
	Predicate string `yaml:"predicate"`
	RefPath   string `yaml:"ref_path,omitempty"`
	RefWKT    string `yaml:"ref_wkt,omitempty"`
	RefEPSG   int    `yaml:"ref_epsg,omitempty"`
}

// StoreStep writes the result.
type StoreStep struct {
	Path string `yaml:"path"`
}

// ParseFile reads and validates a YAML pipeline definition.
func ParseFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(geotable.ErrFileNotFound, "pipeline: %s", path)
		}
		return nil, eris.Wrapf(err, "pipeline: read %s", path)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, eris.Wrapf(err, "pipeline: parse %s", path)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the definition for missing or conflicting fields.
func (s *Spec) Validate() error {
	if s.Load.Path == "" {
		return eris.New("pipeline: load.path is required")
	}
	if s.Query != nil {
		if s.Query.Predicate == "" {
			return eris.New("pipeline: query.predicate is required")
		}
		if (s.Query.RefPath == "") == (s.Query.RefWKT == "") {
			return eris.New("pipeline: query needs exactly one of ref_path or ref_wkt")
		}
		if s.Query.RefWKT != "" && s.Query.RefEPSG == 0 {
			return eris.New("pipeline: query.ref_epsg is required with ref_wkt")
		}
	}
	if s.Transform != nil && s.Transform.BufferDistance < 0 {
		return eris.New("pipeline: transform.buffer_distance must be >= 0")
	}
	return nil
}

// Runner executes pipelines, recording each stage in the catalog when one is
// configured.
type Runner struct {
	Catalog catalog.Store // optional

	datasetID string
	log       *zap.Logger
}

func NewRunner(store catalog.Store) *Runner {
	return &Runner{
		Catalog: store,
		log:     zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run executes the pipeline and returns the resulting table. The table is
// returned even when there is no store step, so callers can inspect it.
func (r *Runner) Run(ctx context.Context, spec *Spec) (*geotable.GeoTable, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	t, err := r.runStage(ctx, catalog.OpLoad, map[string]any{"path": spec.Load.Path},
		func() (*geotable.GeoTable, error) {
			return LoadTable(ctx, spec.Load.Path, LoadOptions{SourceEPSG: spec.Load.SourceEPSG})
		})
	if err != nil {
		return nil, err
	}
	if r.datasetID, err = r.recordDataset(ctx, spec.Load.Path, t); err != nil {
		return nil, err
	}

	if spec.Clean != nil {
		t, err = r.runStage(ctx, catalog.OpClean,
			map[string]any{"drop": spec.Clean.DropColumns, "where": spec.Clean.Where},
			func() (*geotable.GeoTable, error) { return applyClean(t, spec.Clean) })
		if err != nil {
			return nil, err
		}
	}

	if spec.Transform != nil {
		t, err = r.runStage(ctx, catalog.OpTransform,
			map[string]any{
				"target_epsg":     spec.Transform.TargetEPSG,
				"buffer_distance": spec.Transform.BufferDistance,
			},
			func() (*geotable.GeoTable, error) { return applyTransform(ctx, t, spec.Transform) })
		if err != nil {
			return nil, err
		}
	}

	if spec.Query != nil {
		t, err = r.runStage(ctx, catalog.OpQuery,
			map[string]any{"predicate": spec.Query.Predicate},
			func() (*geotable.GeoTable, error) { return applyQuery(ctx, t, spec.Query) })
		if err != nil {
			return nil, err
		}
	}

	if spec.Store != nil {
		_, err = r.runStage(ctx, catalog.OpStore,
			map[string]any{"path": spec.Store.Path},
			func() (*geotable.GeoTable, error) {
				return t, StoreTable(t, spec.Store.Path)
			})
		if err != nil {
			return nil, err
		}
	}

	r.log.Info("pipeline complete",
		zap.String("name", spec.Name),
		zap.Int("records", t.Len()),
		zap.String("crs", t.CoordSystem().String()),
	)
	return t, nil
}

func applyClean(t *geotable.GeoTable, step *CleanStep) (*geotable.GeoTable, error) {
	if len(step.DropColumns) > 0 {
		dropped, err := t.DropColumns(step.DropColumns...)
		if err != nil {
			return nil, err
		}
		t = dropped
	}
	if step.Where != "" {
		cond, err := geotable.ParseCondition(step.Where)
		if err != nil {
			return nil, err
		}
		t = t.FilterRows(cond.Predicate())
	}
	return t, nil
}

func applyTransform(ctx context.Context, t *geotable.GeoTable, step *TransformStep) (*geotable.GeoTable, error) {
	if step.TargetEPSG != 0 {
		target, err := crs.Lookup(step.TargetEPSG)
		if err != nil {
			return nil, err
		}
		reprojected, err := reproject.Table(ctx, t, target)
		if err != nil {
			return nil, err
		}
		t = reprojected
	}
	if step.BufferDistance > 0 {
		quadSegs := step.QuadSegs
		if quadSegs <= 0 {
			quadSegs = geomops.DefaultQuadSegs
		}
		buffered, err := geomops.BufferTable(t, step.BufferDistance, quadSegs)
		if err != nil {
			return nil, err
		}
		t = buffered
	}
	return t, nil
}

func applyQuery(ctx context.Context, t *geotable.GeoTable, step *QueryStep) (*geotable.GeoTable, error) {
	pred, err := geomops.ParsePredicate(step.Predicate)
	if err != nil {
		return nil, err
	}
	ref, refCS, err := loadReference(ctx, step)
	if err != nil {
		return nil, err
	}
	return geomops.FilterSpatial(t, ref, refCS, pred)
}

// loadReference resolves the query stage's reference geometry: the first
// feature of a file, or inline WKT tagged with an explicit EPSG.
func loadReference(ctx context.Context, step *QueryStep) (geom.T, crs.CoordSystem, error) {
	if step.RefWKT != "" {
		g, err := wkt.Unmarshal(step.RefWKT)
		if err != nil {
			return nil, crs.CoordSystem{}, eris.Wrap(err, "pipeline: parse ref wkt")
		}
		cs, err := crs.Lookup(step.RefEPSG)
		if err != nil {
			return nil, crs.CoordSystem{}, err
		}
		return g, cs, nil
	}

	refTable, err := LoadTable(ctx, step.RefPath, LoadOptions{})
	if err != nil {
		return nil, crs.CoordSystem{}, err
	}
	if !refTable.HasGeometry() || refTable.Len() == 0 {
		return nil, crs.CoordSystem{}, eris.Wrapf(geotable.ErrInvalidGeometry,
			"pipeline: reference %s has no geometry", step.RefPath)
	}
	return refTable.Record(0).Geom, refTable.CoordSystem(), nil
}

// runStage times one stage and records its outcome in the catalog before
// propagating any error.
func (r *Runner) runStage(ctx context.Context, kind catalog.OpKind, detail map[string]any,
	fn func() (*geotable.GeoTable, error),
) (*geotable.GeoTable, error) {
	started := time.Now().UTC()
	t, err := fn()

	op := catalog.Operation{
		DatasetID: r.datasetID,
		Kind:      kind,
		Detail:    detail,
		Status:    catalog.OpStatusOK,
		StartedAt: started,
	}
	if err != nil {
		op.Status = catalog.OpStatusFailed
		op.Error = err.Error()
	}
	op.FinishedAt = time.Now().UTC()

	if r.Catalog != nil && r.datasetID != "" {
		if _, recErr := r.Catalog.RecordOperation(ctx, op); recErr != nil {
			r.log.Warn("catalog record failed", zap.Error(recErr))
		}
	}
	if err != nil {
		return nil, err
	}

	r.log.Debug("stage complete",
		zap.String("stage", string(kind)),
		zap.Int("records", t.Len()),
		zap.Duration("took", op.FinishedAt.Sub(started)),
	)
	return t, nil
}

func (r *Runner) recordDataset(ctx context.Context, path string, t *geotable.GeoTable) (string, error) {
	if r.Catalog == nil {
		return "", nil
	}
	d, err := r.Catalog.RecordDataset(ctx, catalog.Dataset{
		Path:    path,
		Format:  Format(path),
		EPSG:    t.CoordSystem().EPSG,
		Records: t.Len(),
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: record dataset")
	}
	return d.ID, nil
}
