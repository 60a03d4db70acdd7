package shvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize converts sharding values into a small set of canonical Go types:
// signed and unsigned integers become int64 (uint64 above MaxInt64 stays
// uint64), floats become float64 and byte slices become strings.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUnsigned(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUnsigned(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

func normalizeUnsigned(x uint64) any {
	if x <= math.MaxInt64 {
		return int64(x)
	}
	return x
}

// ToInt64 converts integral values (and integral numeric strings) to int64.
func ToInt64(v any) (int64, error) {
	switch x := Normalize(v).(type) {
	case int64:
		return x, nil
	case uint64:
		return 0, fmt.Errorf("value %d overflows int64", x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("value %v is not integral", x)
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", x)
		}
		return n, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value of type %T is not an integer", v)
}

// Compare orders a and b. ok is false when the values are not comparable.
func Compare(a, b any) (int, bool) {
	a, b = Normalize(a), Normalize(b)
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), true
		case uint64:
			return -1, true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case uint64:
		switch y := b.(type) {
		case uint64:
			return cmpOrdered(x, y), true
		case int64:
			return 1, true
		case float64:
			return cmpOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmpOrdered(x, y), true
		case int64:
			return cmpOrdered(x, float64(y)), true
		case uint64:
			return cmpOrdered(x, float64(y)), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			if x == y {
				return 0, true
			}
			if !x {
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | uint64 | float64](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Equal reports whether a and b denote the same sharding value.
// Incomparable values are equal only when their printed forms match.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return fmt.Sprint(Normalize(a)) == fmt.Sprint(Normalize(b))
}

// Contains reports whether v is one of vals.
func Contains(vals []any, v any) bool {
	for _, x := range vals {
		if Equal(x, v) {
			return true
		}
	}
	return false
}
