// Package condition reduces a predicate tree to the values a single sharding
// column can take.
package condition

import (
	"fmt"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
)

// Condition is one alternative: a set of exact values, or a range when Range
// is not nil.
type Condition struct {
	Values []any
	Range  *shvalue.Range
}

func (c Condition) String() string {
	if c.Range != nil {
		return c.Range.String()
	}
	items := make([]string, len(c.Values))
	for i, v := range c.Values {
		items[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(items, ", ") + "}"
}

// Result is a disjunction of conditions. Unresolved means the predicate does
// not restrict the column; no conditions and not Unresolved means the
// predicate can never hold.
type Result struct {
	Unresolved bool
	Conditions []Condition
}

func Unresolved() Result {
	return Result{Unresolved: true}
}

func Exact(vals ...any) Result {
	return Result{Conditions: []Condition{{Values: vals}}}
}

func InRange(r shvalue.Range) Result {
	return Result{Conditions: []Condition{{Range: &r}}}
}

func (r Result) Contradiction() bool {
	return !r.Unresolved && len(r.Conditions) == 0
}

// SingleValue returns the only value the column can take, if there is one.
func (r Result) SingleValue() (any, bool) {
	if r.Unresolved || len(r.Conditions) != 1 {
		return nil, false
	}
	c := r.Conditions[0]
	if c.Range != nil || len(c.Values) != 1 {
		return nil, false
	}
	return c.Values[0], true
}

// ExactValues flattens the result into distinct values. ok is false when any
// alternative is a range or the result is unresolved.
func (r Result) ExactValues() ([]any, bool) {
	if r.Unresolved {
		return nil, false
	}
	var out []any
	for _, c := range r.Conditions {
		if c.Range != nil {
			return nil, false
		}
		for _, v := range c.Values {
			if !shvalue.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out, true
}

func (r Result) String() string {
	if r.Unresolved {
		return "unresolved"
	}
	if len(r.Conditions) == 0 {
		return "none"
	}
	parts := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " | ")
}

// And intersects two results. An unresolved side does not restrict the
// other.
func And(a, b Result) Result {
	if a.Unresolved {
		return b
	}
	if b.Unresolved {
		return a
	}
	var out Result
	for _, x := range a.Conditions {
		for _, y := range b.Conditions {
			if c, ok := intersect(x, y); ok {
				out.Conditions = append(out.Conditions, c)
			}
		}
	}
	return out
}

// Or unions two results. If either side is unresolved the union is too.
func Or(a, b Result) Result {
	if a.Unresolved || b.Unresolved {
		return Unresolved()
	}
	conds := make([]Condition, 0, len(a.Conditions)+len(b.Conditions))
	conds = append(conds, a.Conditions...)
	conds = append(conds, b.Conditions...)
	return Result{Conditions: conds}
}

func intersect(x, y Condition) (Condition, bool) {
	switch {
	case x.Range != nil && y.Range != nil:
		r, ok := x.Range.Intersect(*y.Range)
		if !ok {
			return Condition{}, false
		}
		return Condition{Range: &r}, true
	case x.Range != nil:
		return filterByRange(y.Values, *x.Range)
	case y.Range != nil:
		return filterByRange(x.Values, *y.Range)
	}
	var vals []any
	for _, v := range x.Values {
		if shvalue.Contains(y.Values, v) && !shvalue.Contains(vals, v) {
			vals = append(vals, v)
		}
	}
	return Condition{Values: vals}, len(vals) > 0
}

func filterByRange(vals []any, r shvalue.Range) (Condition, bool) {
	var out []any
	for _, v := range vals {
		if r.Contains(v) {
			out = append(out, v)
		}
	}
	return Condition{Values: out}, len(out) > 0
}
