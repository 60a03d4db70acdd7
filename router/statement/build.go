package statement

// Helpers for assembling expressions in code.

func Col(qualifier, name string) ColumnRef {
	return ColumnRef{Table: qualifier, Name: name}
}

func Lit(v any) Literal {
	return Literal{Value: v}
}

func P(index int) Param {
	return Param{Index: index}
}

func Eq(l, r Expr) Compare {
	return Compare{Op: "=", Left: l, Right: r}
}

func Cmp(op string, l, r Expr) Compare {
	return Compare{Op: op, Left: l, Right: r}
}

func InList(e Expr, list ...Expr) In {
	return In{Expr: e, List: list}
}

// AllOf joins exprs with AND; it returns nil for an empty list.
func AllOf(exprs ...Expr) Expr {
	return fold(exprs, func(l, r Expr) Expr { return And{Left: l, Right: r} })
}

// AnyOf joins exprs with OR; it returns nil for an empty list.
func AnyOf(exprs ...Expr) Expr {
	return fold(exprs, func(l, r Expr) Expr { return Or{Left: l, Right: r} })
}

func fold(exprs []Expr, join func(l, r Expr) Expr) Expr {
	var res Expr
	for _, e := range exprs {
		if res == nil {
			res = e
			continue
		}
		res = join(res, e)
	}
	return res
}

// Values wraps constants as a row of literals.
func Values(vals ...any) []Expr {
	row := make([]Expr, len(vals))
	for i, v := range vals {
		row[i] = Lit(v)
	}
	return row
}
