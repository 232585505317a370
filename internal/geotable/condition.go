package geotable

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Op is a comparison operator usable in declarative row conditions.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpLt       Op = "lt"
	OpLe       Op = "le"
	OpGt       Op = "gt"
	OpGe       Op = "ge"
	OpContains Op = "contains"
)

var validOps = map[Op]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true,
	OpGt: true, OpGe: true, OpContains: true,
}

// Condition is a typed attribute predicate over a single column, the
// declarative form of FilterRows used by the CLI and pipeline files.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

// ParseCondition parses the "column,op,value" flag form. The value literal is
// coerced with ParseScalar.
func ParseCondition(s string) (Condition, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return Condition{}, eris.Errorf("geotable: condition %q: want column,op,value", s)
	}
	op := Op(strings.ToLower(strings.TrimSpace(parts[1])))
	if !validOps[op] {
		return Condition{}, eris.Errorf("geotable: condition %q: unknown operator %q", s, parts[1])
	}
	col := strings.TrimSpace(parts[0])
	if col == "" {
		return Condition{}, eris.Errorf("geotable: condition %q: empty column", s)
	}
	return Condition{Column: col, Op: op, Value: ParseScalar(strings.TrimSpace(parts[2]))}, nil
}

// Match evaluates the condition against a record. Null values and
// incomparable types never match, mirroring SQL three-valued logic collapsed
// to false.
func (c Condition) Match(r Record) bool {
	v := r.Value(c.Column)
	if v == nil {
		return false
	}

	if c.Op == OpContains {
		s, ok := v.(string)
		sub, ok2 := c.Value.(string)
		return ok && ok2 && strings.Contains(s, sub)
	}

	cmp, err := Compare(v, c.Value)
	if err != nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

// Predicate adapts the condition for GeoTable.FilterRows.
func (c Condition) Predicate() func(Record) bool {
	return c.Match
}
