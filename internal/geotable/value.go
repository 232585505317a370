package geotable

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Float coerces a scalar attribute value to float64. Integers widen; strings
// and other types do not.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	}
	return 0, false
}

// Compare orders two scalar values of compatible kinds. Numbers compare
// numerically (mixed int/float allowed), strings lexically, times
// chronologically.
func Compare(a, b any) (int, error) {
	if af, ok := Float(a); ok {
		bf, ok := Float(b)
		if !ok {
			return 0, eris.Errorf("geotable: cannot compare number with %T", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, eris.Errorf("geotable: cannot compare string with %T", b)
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, eris.Errorf("geotable: cannot compare time with %T", b)
		}
		return x.Compare(y), nil
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, eris.Errorf("geotable: cannot compare bool with %T", b)
		}
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		}
		return 1, nil
	}
	return 0, eris.Errorf("geotable: unsupported value type %T", a)
}

// ParseScalar converts CLI/pipeline string literals into the scalar type they
// look like: integer, float, bool, then plain string.
func ParseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
