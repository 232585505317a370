package geomops

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

// BufferTable buffers every geometry in the table by dist, expressed in the
// table's linear unit. Tables in a geographic (degree) system are rejected
// up front: a radius in degrees is not a distance, and the mismatch must
// surface as an error rather than a silently wrong result. Records without
// geometry pass through unchanged.
func BufferTable(t *geotable.GeoTable, dist float64, quadSegs int) (*geotable.GeoTable, error) {
	if !t.HasGeometry() {
		return nil, eris.New("geomops: table has no geometry column")
	}
	if cs := t.CoordSystem(); cs.Geographic {
		return nil, eris.Wrapf(geotable.ErrCoordSystemMismatch,
			"geomops: buffer requires a projected coordinate system, table is in %s (%s)", cs.String(), cs.Unit)
	}

	gs := make([]geom.T, t.Len())
	for i := 0; i < t.Len(); i++ {
		g := t.Record(i).Geom
		if g == nil {
			continue
		}
		buffered, err := Buffer(g, dist, quadSegs)
		if err != nil {
			return nil, eris.Wrapf(err, "geomops: buffer row %d", i)
		}
		gs[i] = buffered
	}
	return t.WithGeometries(gs, t.CoordSystem())
}

// FilterSpatial returns the records whose geometry satisfies pred against
// the reference geometry, preserving original order. The reference must be
// expressed in the table's coordinate system; refCS declares which one it is
// in. Records without geometry satisfy only disjoint.
func FilterSpatial(t *geotable.GeoTable, ref geom.T, refCS crs.CoordSystem, pred Predicate) (*geotable.GeoTable, error) {
	if !t.HasGeometry() {
		return nil, eris.New("geomops: table has no geometry column")
	}
	if !t.CoordSystem().Equal(refCS) {
		return nil, eris.Wrapf(geotable.ErrCoordSystemMismatch,
			"geomops: table is in %s but reference geometry is in %s", t.CoordSystem().String(), refCS.String())
	}

	var filterErr error
	out := t.FilterRows(func(rec geotable.Record) bool {
		if filterErr != nil {
			return false
		}
		if rec.Geom == nil {
			return pred == Disjoint
		}
		ok, err := Relate(rec.Geom, ref, pred)
		if err != nil {
			filterErr = err
			return false
		}
		return ok
	})
	if filterErr != nil {
		return nil, eris.Wrap(filterErr, "geomops: spatial filter")
	}
	return out, nil
}
