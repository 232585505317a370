// Package geotable implements the tabular-geometry data model: an ordered
// sequence of records with typed attribute columns, an optional geometry per
// record, and a coordinate system tag covering every geometry in the table.
package geotable

import (
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/crs"
)

// GeometryColumn is the reserved column name under which a record's geometry
// appears in Columns() and in serialized output.
const GeometryColumn = "SHAPE"

// Record maps attribute column names to scalar values (string, float64,
// int64, bool, time.Time or nil) plus an optional geometry.
type Record struct {
	Attrs map[string]any
	Geom  geom.T
}

// Value returns the attribute value for col, or nil when absent.
func (r Record) Value(col string) any {
	return r.Attrs[col]
}

// GeoTable is an ordered collection of records sharing a column set and a
// coordinate system. Every geometry in the table is interpreted under that
// system; the tag only changes together with the geometries (WithGeometries),
// never by relabeling.
type GeoTable struct {
	cols    []string
	cs      crs.CoordSystem
	hasGeom bool
	recs    []Record
	index   map[any]int
	indexBy string
}

// New creates an empty table with the given column order. Including the
// reserved GeometryColumn in cols marks the table as spatial; it is kept out
// of the attribute column list.
func New(cols []string, cs crs.CoordSystem) *GeoTable {
	t := &GeoTable{cs: cs}
	for _, c := range cols {
		if c == GeometryColumn {
			t.hasGeom = true
			continue
		}
		t.cols = append(t.cols, c)
	}
	return t
}

// Columns returns the column names in order, with the reserved geometry
// column appended when the table is spatial.
func (t *GeoTable) Columns() []string {
	out := slices.Clone(t.cols)
	if t.hasGeom {
		out = append(out, GeometryColumn)
	}
	return out
}

// AttributeColumns returns the non-geometry column names in order.
func (t *GeoTable) AttributeColumns() []string {
	return slices.Clone(t.cols)
}

// HasGeometry reports whether the table carries a geometry column.
func (t *GeoTable) HasGeometry() bool { return t.hasGeom }

// CoordSystem returns the coordinate system every geometry is expressed in.
func (t *GeoTable) CoordSystem() crs.CoordSystem { return t.cs }

// Len returns the number of records.
func (t *GeoTable) Len() int { return len(t.recs) }

// Record returns the record at position i.
func (t *GeoTable) Record(i int) Record { return t.recs[i] }

// Records returns the underlying record slice in original order. Treat it as
// read-only; mutating operations return new tables instead.
func (t *GeoTable) Records() []Record { return t.recs }

// Append adds a record. Attribute keys must be a subset of the table's
// columns and geometry is only accepted on spatial tables.
func (t *GeoTable) Append(rec Record) error {
	for k := range rec.Attrs {
		if !slices.Contains(t.cols, k) {
			return eris.Errorf("geotable: record has unknown column %q", k)
		}
	}
	if rec.Geom != nil && !t.hasGeom {
		return eris.New("geotable: record carries geometry but table has no geometry column")
	}
	t.recs = append(t.recs, rec)
	t.index = nil
	return nil
}

// DropColumns returns a new table without the named columns. Dropping the
// reserved geometry column strips geometry from every record. Unknown names
// are an error. Row order is preserved and the receiver is unmodified.
func (t *GeoTable) DropColumns(names ...string) (*GeoTable, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if n != GeometryColumn && !slices.Contains(t.cols, n) {
			return nil, eris.Errorf("geotable: drop: unknown column %q", n)
		}
		drop[n] = true
	}

	out := &GeoTable{cs: t.cs, hasGeom: t.hasGeom && !drop[GeometryColumn]}
	for _, c := range t.cols {
		if !drop[c] {
			out.cols = append(out.cols, c)
		}
	}
	for _, rec := range t.recs {
		nr := Record{Attrs: make(map[string]any, len(out.cols))}
		for _, c := range out.cols {
			if v, ok := rec.Attrs[c]; ok {
				nr.Attrs[c] = v
			}
		}
		if out.hasGeom {
			nr.Geom = rec.Geom
		}
		out.recs = append(out.recs, nr)
	}
	return out, nil
}

// SelectColumns returns a new table with only the named columns, in the
// given order. The geometry column may be included by name.
func (t *GeoTable) SelectColumns(names ...string) (*GeoTable, error) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if n != GeometryColumn && !slices.Contains(t.cols, n) {
			return nil, eris.Errorf("geotable: select: unknown column %q", n)
		}
		keep[n] = true
	}

	out := &GeoTable{cs: t.cs, hasGeom: t.hasGeom && keep[GeometryColumn]}
	for _, n := range names {
		if n != GeometryColumn {
			out.cols = append(out.cols, n)
		}
	}
	for _, rec := range t.recs {
		nr := Record{Attrs: make(map[string]any, len(out.cols))}
		for _, c := range out.cols {
			if v, ok := rec.Attrs[c]; ok {
				nr.Attrs[c] = v
			}
		}
		if out.hasGeom {
			nr.Geom = rec.Geom
		}
		out.recs = append(out.recs, nr)
	}
	return out, nil
}

// FilterRows returns a new table containing the records for which pred is
// true, preserving original order. Pure: the receiver is unmodified.
func (t *GeoTable) FilterRows(pred func(Record) bool) *GeoTable {
	out := &GeoTable{cols: slices.Clone(t.cols), cs: t.cs, hasGeom: t.hasGeom}
	for _, rec := range t.recs {
		if pred(rec) {
			out.recs = append(out.recs, rec)
		}
	}
	return out
}

// Geometries returns the geometry of every record in row order, nil where a
// record has none.
func (t *GeoTable) Geometries() []geom.T {
	gs := make([]geom.T, len(t.recs))
	for i, rec := range t.recs {
		gs[i] = rec.Geom
	}
	return gs
}

// WithGeometries returns a new table with the same attributes and the given
// geometries, tagged with the given coordinate system. This is the only way
// the coordinate system tag changes: reprojection supplies transformed
// geometries together with the new tag.
func (t *GeoTable) WithGeometries(gs []geom.T, cs crs.CoordSystem) (*GeoTable, error) {
	if len(gs) != len(t.recs) {
		return nil, eris.Errorf("geotable: geometry count %d does not match row count %d", len(gs), len(t.recs))
	}
	out := &GeoTable{cols: slices.Clone(t.cols), cs: cs, hasGeom: true}
	for i, rec := range t.recs {
		out.recs = append(out.recs, Record{Attrs: rec.Attrs, Geom: gs[i]})
	}
	return out, nil
}

// SetIndex builds a lookup index over the given column. Duplicate or nil key
// values are an error; the index is invalidated by Append.
func (t *GeoTable) SetIndex(col string) error {
	if !slices.Contains(t.cols, col) {
		return eris.Errorf("geotable: index: unknown column %q", col)
	}
	idx := make(map[any]int, len(t.recs))
	for i, rec := range t.recs {
		k := rec.Attrs[col]
		if k == nil {
			return eris.Errorf("geotable: index: nil value in column %q at row %d", col, i)
		}
		if _, dup := idx[k]; dup {
			return eris.Errorf("geotable: index: duplicate key %v in column %q", k, col)
		}
		idx[k] = i
	}
	t.index = idx
	t.indexBy = col
	return nil
}

// Lookup returns the record whose index-column value equals key. SetIndex
// must have been called first.
func (t *GeoTable) Lookup(key any) (Record, bool) {
	if t.index == nil {
		return Record{}, false
	}
	i, ok := t.index[key]
	if !ok {
		return Record{}, false
	}
	return t.recs[i], true
}
