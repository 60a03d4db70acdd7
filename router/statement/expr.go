package statement

import (
	"fmt"
	"strings"
)

type Expr interface {
	iExpr()
}

type ColumnRef struct {
	// Table is the qualifier as written: a table name, an alias or empty.
	Table string
	Name  string
}

// Literal holds a constant. A nil Value is SQL NULL.
type Literal struct {
	Value any
}

// Param references Statement.Params by zero-based index.
type Param struct {
	Index int
}

type Compare struct {
	Op    string
	Left  Expr
	Right Expr
}

type In struct {
	Expr Expr
	List []Expr
	Not  bool
}

type Between struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

type And struct {
	Left, Right Expr
}

type Or struct {
	Left, Right Expr
}

type Not struct {
	Arg Expr
}

// Opaque is any expression the router does not interpret, such as a
// function call or a subquery.
type Opaque struct {
	Text string
}

func (ColumnRef) iExpr() {}
func (Literal) iExpr()   {}
func (Param) iExpr()     {}
func (Compare) iExpr()   {}
func (In) iExpr()        {}
func (Between) iExpr()   {}
func (And) iExpr()       {}
func (Or) iExpr()        {}
func (Not) iExpr()       {}
func (Opaque) iExpr()    {}

// ErrMissingParam is returned for a Param beyond the bound parameter list.
type ErrMissingParam struct {
	Index int
}

func (e ErrMissingParam) Error() string {
	return fmt.Sprintf("no value bound for parameter $%d", e.Index+1)
}

// ValueOf resolves literals and parameters. ok is false for any other
// expression.
func ValueOf(e Expr, params []any) (any, bool, error) {
	switch v := e.(type) {
	case Literal:
		return v.Value, true, nil
	case Param:
		if v.Index < 0 || v.Index >= len(params) {
			return nil, false, ErrMissingParam{Index: v.Index}
		}
		return params[v.Index], true, nil
	}
	return nil, false, nil
}

// SameValueSource reports whether a and b are the same parameter, or
// resolve to equal constant values.
func SameValueSource(a, b Expr, params []any, equal func(x, y any) bool) bool {
	pa, okA := a.(Param)
	pb, okB := b.(Param)
	if okA && okB && pa.Index == pb.Index {
		return true
	}
	va, okA, errA := ValueOf(a, params)
	vb, okB, errB := ValueOf(b, params)
	if errA != nil || errB != nil || !okA || !okB {
		return false
	}
	return equal(va, vb)
}

// Conjuncts flattens a tree of AND nodes.
func Conjuncts(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if a, ok := e.(And); ok {
		return append(Conjuncts(a.Left), Conjuncts(a.Right)...)
	}
	return []Expr{e}
}

// Format renders an expression for diagnostics.
func Format(e Expr) string {
	switch v := e.(type) {
	case nil:
		return ""
	case ColumnRef:
		if v.Table != "" {
			return v.Table + "." + v.Name
		}
		return v.Name
	case Literal:
		if v.Value == nil {
			return "NULL"
		}
		if s, ok := v.Value.(string); ok {
			return "'" + strings.ReplaceAll(s, "'", "''") + "'"
		}
		return fmt.Sprint(v.Value)
	case Param:
		return fmt.Sprintf("$%d", v.Index+1)
	case Compare:
		return Format(v.Left) + " " + v.Op + " " + Format(v.Right)
	case In:
		items := make([]string, len(v.List))
		for i, it := range v.List {
			items[i] = Format(it)
		}
		op := " IN "
		if v.Not {
			op = " NOT IN "
		}
		return Format(v.Expr) + op + "(" + strings.Join(items, ", ") + ")"
	case Between:
		op := " BETWEEN "
		if v.Not {
			op = " NOT BETWEEN "
		}
		return Format(v.Expr) + op + Format(v.Low) + " AND " + Format(v.High)
	case And:
		return "(" + Format(v.Left) + " AND " + Format(v.Right) + ")"
	case Or:
		return "(" + Format(v.Left) + " OR " + Format(v.Right) + ")"
	case Not:
		return "NOT " + Format(v.Arg)
	case Opaque:
		return v.Text
	}
	return fmt.Sprintf("%v", e)
}
