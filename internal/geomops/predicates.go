package geomops

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Predicate is a binary spatial relationship kind.
type Predicate string

const (
	Intersects Predicate = "intersects"
	Disjoint   Predicate = "disjoint"
	Within     Predicate = "within"
	Contains   Predicate = "contains"
)

// ParsePredicate resolves the CLI/pipeline spelling of a predicate.
func ParsePredicate(s string) (Predicate, error) {
	switch Predicate(strings.ToLower(strings.TrimSpace(s))) {
	case Intersects:
		return Intersects, nil
	case Disjoint:
		return Disjoint, nil
	case Within:
		return Within, nil
	case Contains:
		return Contains, nil
	}
	return "", eris.Errorf("geomops: unknown predicate %q", s)
}

// Relate evaluates pred between two geometries. Disjoint is the exact
// negation of Intersects, so the two partition any record set.
func Relate(a, b geom.T, pred Predicate) (bool, error) {
	pa, err := decompose(a)
	if err != nil {
		return false, err
	}
	pb, err := decompose(b)
	if err != nil {
		return false, err
	}

	switch pred {
	case Intersects:
		return intersects(pa, pb), nil
	case Disjoint:
		return !intersects(pa, pb), nil
	case Within:
		return within(pa, pb), nil
	case Contains:
		return within(pb, pa), nil
	}
	return false, eris.Errorf("geomops: unknown predicate %q", pred)
}

// intersects reports whether the two geometries share at least one point.
func intersects(a, b parts) bool {
	if !a.bounds.intersects(b.bounds) {
		return false
	}

	// point/point and point/segment contact
	for _, p := range a.points {
		for _, q := range b.points {
			if samePoint(p, q) {
				return true
			}
		}
		for _, s := range b.segs {
			if pointOnSegment(p[0], p[1], s) {
				return true
			}
		}
	}
	for _, q := range b.points {
		for _, s := range a.segs {
			if pointOnSegment(q[0], q[1], s) {
				return true
			}
		}
	}

	// boundary crossings (covers line/line, line/polygon, polygon/polygon
	// boundary contact since ring edges are in segs)
	for _, s := range a.segs {
		for _, u := range b.segs {
			if segmentsIntersect(s, u) {
				return true
			}
		}
	}

	// containment without boundary contact
	for _, pg := range b.polys {
		for _, tp := range a.testPoints() {
			if pointInPolygon(tp[0], tp[1], pg) {
				return true
			}
		}
	}
	for _, pg := range a.polys {
		for _, tp := range b.testPoints() {
			if pointInPolygon(tp[0], tp[1], pg) {
				return true
			}
		}
	}

	return false
}

// within reports whether a lies entirely inside b (boundary contact
// allowed). For polygonal b this is: every representative point of a inside
// b, and no proper boundary crossing. For lower-dimensional b, containment
// degenerates to point/segment coverage.
func within(a, b parts) bool {
	if len(a.points) == 0 && len(a.segs) == 0 {
		return false
	}

	if len(b.polys) > 0 {
		for _, tp := range a.testPoints() {
			if !inAnyPolygon(tp, b.polys) {
				return false
			}
		}
		// a segment leaving and re-entering a concave region must cross the
		// boundary properly; reject those
		for _, s := range a.segs {
			for _, u := range b.segs {
				if segmentsCrossProperly(s, u) {
					return false
				}
			}
		}
		return true
	}

	if len(a.polys) > 0 {
		// a polygon cannot lie within a lower-dimensional geometry
		return false
	}

	if len(b.segs) > 0 {
		for _, p := range a.points {
			if !onAnySegment(p, b.segs) {
				return false
			}
		}
		for _, s := range a.segs {
			if !segmentCovered(s, b.segs) {
				return false
			}
		}
		return true
	}

	// b is points only: a must be points coinciding with them
	if len(a.segs) > 0 {
		return false
	}
	for _, p := range a.points {
		found := false
		for _, q := range b.points {
			if samePoint(p, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func inAnyPolygon(p segment, polys []polygon) bool {
	for _, pg := range polys {
		if pointInPolygon(p[0], p[1], pg) {
			return true
		}
	}
	return false
}

func onAnySegment(p segment, segs []segment) bool {
	for _, s := range segs {
		if pointOnSegment(p[0], p[1], s) {
			return true
		}
	}
	return false
}

// segmentCovered reports whether s lies along a single segment of cover.
// Chains spanning multiple collinear segments are not stitched; that level
// of generality has not been needed.
func segmentCovered(s segment, cover []segment) bool {
	for _, u := range cover {
		if pointOnSegment(s[0], s[1], u) && pointOnSegment(s[2], s[3], u) {
			return true
		}
	}
	return false
}
