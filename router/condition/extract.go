package condition

import (
	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/router/statement"
)

// Matcher reports whether a column reference denotes the column of interest.
type Matcher func(ref statement.ColumnRef) bool

// ValueMapper rewrites an exact value into its stored form before it is
// used for sharding.
type ValueMapper func(v any) (any, error)

// Extractor walks a predicate tree for one column.
type Extractor struct {
	Match  Matcher
	Params []any
	// Map, when set, is applied to every exact value. Range predicates on a
	// mapped column are unresolved: order is not preserved by the mapping.
	Map ValueMapper
}

func (e *Extractor) Extract(expr statement.Expr) (Result, error) {
	switch v := expr.(type) {
	case nil:
		return Unresolved(), nil
	case statement.And:
		l, err := e.Extract(v.Left)
		if err != nil {
			return Result{}, err
		}
		r, err := e.Extract(v.Right)
		if err != nil {
			return Result{}, err
		}
		return And(l, r), nil
	case statement.Or:
		l, err := e.Extract(v.Left)
		if err != nil {
			return Result{}, err
		}
		r, err := e.Extract(v.Right)
		if err != nil {
			return Result{}, err
		}
		return Or(l, r), nil
	case statement.Compare:
		return e.compare(v)
	case statement.In:
		return e.in(v)
	case statement.Between:
		return e.between(v)
	}
	return Unresolved(), nil
}

var flipped = map[string]string{
	"=": "=", "<": ">", "<=": ">=", ">": "<", ">=": "<=",
}

func (e *Extractor) compare(c statement.Compare) (Result, error) {
	op := c.Op
	col, other := c.Left, c.Right
	if !e.isColumn(col) {
		col, other = c.Right, c.Left
		if !e.isColumn(col) {
			return Unresolved(), nil
		}
		f, ok := flipped[op]
		if !ok {
			return Unresolved(), nil
		}
		op = f
	}

	val, ok, err := e.value(other)
	if err != nil || !ok {
		return Unresolved(), err
	}

	switch op {
	case "=":
		mapped, err := e.mapValue(val)
		if err != nil {
			return Result{}, err
		}
		return Exact(mapped), nil
	case "<", "<=":
		if e.Map != nil {
			return Unresolved(), nil
		}
		return InRange(shvalue.AtMost(val, op == "<=")), nil
	case ">", ">=":
		if e.Map != nil {
			return Unresolved(), nil
		}
		return InRange(shvalue.AtLeast(val, op == ">=")), nil
	}
	return Unresolved(), nil
}

func (e *Extractor) in(in statement.In) (Result, error) {
	if in.Not || !e.isColumn(in.Expr) {
		return Unresolved(), nil
	}
	var vals []any
	for _, item := range in.List {
		v, ok, err := e.value(item)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Unresolved(), nil
		}
		mapped, err := e.mapValue(v)
		if err != nil {
			return Result{}, err
		}
		if !shvalue.Contains(vals, mapped) {
			vals = append(vals, mapped)
		}
	}
	if len(vals) == 0 {
		return Result{}, nil
	}
	return Exact(vals...), nil
}

func (e *Extractor) between(b statement.Between) (Result, error) {
	if b.Not || e.Map != nil || !e.isColumn(b.Expr) {
		return Unresolved(), nil
	}
	lo, okLo, err := e.value(b.Low)
	if err != nil {
		return Result{}, err
	}
	hi, okHi, err := e.value(b.High)
	if err != nil {
		return Result{}, err
	}
	if !okLo || !okHi {
		return Unresolved(), nil
	}
	r := shvalue.Closed(lo, hi)
	if r.Empty() {
		return Result{}, nil
	}
	return InRange(r), nil
}

func (e *Extractor) isColumn(expr statement.Expr) bool {
	ref, ok := expr.(statement.ColumnRef)
	return ok && e.Match(ref)
}

// value resolves a literal or parameter. SQL NULL never matches a
// comparison, so it reports ok=false.
func (e *Extractor) value(expr statement.Expr) (any, bool, error) {
	v, ok, err := statement.ValueOf(expr, e.Params)
	if err != nil || !ok || v == nil {
		return nil, false, err
	}
	return v, true, nil
}

func (e *Extractor) mapValue(v any) (any, error) {
	if e.Map == nil {
		return v, nil
	}
	return e.Map(v)
}
