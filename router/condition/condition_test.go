package condition_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/router/condition"
	"github.com/apache/shardingsphere-sub091/router/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderID(ref statement.ColumnRef) bool {
	return strings.EqualFold(ref.Name, "order_id") && (ref.Table == "" || ref.Table == "o")
}

var col = statement.Col("o", "order_id")

func TestExtract(t *testing.T) {
	params := []any{int64(5), int64(9)}

	for _, tt := range []struct {
		name string
		expr statement.Expr
		exp  string
	}{
		{name: "no predicate", expr: nil, exp: "unresolved"},
		{name: "equality", expr: statement.Eq(col, statement.Lit(7)), exp: "{7}"},
		{name: "reversed equality", expr: statement.Eq(statement.P(0), col), exp: "{5}"},
		{name: "in list", expr: statement.InList(col, statement.Lit(1), statement.Lit(2), statement.Lit(1)), exp: "{1, 2}"},
		{name: "not in", expr: statement.In{Expr: col, List: []statement.Expr{statement.Lit(1)}, Not: true}, exp: "unresolved"},
		{name: "between", expr: statement.Between{Expr: col, Low: statement.P(0), High: statement.P(1)}, exp: "[5, 9]"},
		{name: "empty between", expr: statement.Between{Expr: col, Low: statement.Lit(9), High: statement.Lit(5)}, exp: "none"},
		{name: "greater", expr: statement.Cmp(">", col, statement.Lit(3)), exp: "(3, +inf)"},
		{name: "flipped less", expr: statement.Cmp("<", statement.Lit(3), col), exp: "(3, +inf)"},
		{name: "not equal", expr: statement.Cmp("<>", col, statement.Lit(3)), exp: "unresolved"},
		{name: "null", expr: statement.Eq(col, statement.Lit(nil)), exp: "unresolved"},
		{name: "column to column", expr: statement.Eq(col, statement.Col("i", "order_id")), exp: "unresolved"},
		{name: "other column", expr: statement.Eq(statement.Col("", "user_id"), statement.Lit(1)), exp: "unresolved"},
		{name: "function", expr: statement.Eq(col, statement.Opaque{Text: "abs(-7)"}), exp: "unresolved"},
		{name: "not", expr: statement.Not{Arg: statement.Eq(col, statement.Lit(7))}, exp: "unresolved"},
		{
			name: "and with other column",
			expr: statement.AllOf(statement.Eq(statement.Col("", "user_id"), statement.Lit(1)), statement.Eq(col, statement.Lit(7))),
			exp:  "{7}",
		},
		{
			name: "and intersects",
			expr: statement.AllOf(
				statement.InList(col, statement.Lit(1), statement.Lit(2), statement.Lit(3)),
				statement.InList(col, statement.Lit(2), statement.Lit(3), statement.Lit(4)),
			),
			exp: "{2, 3}",
		},
		{
			name: "and with range",
			expr: statement.AllOf(
				statement.InList(col, statement.Lit(1), statement.Lit(5), statement.Lit(10)),
				statement.Between{Expr: col, Low: statement.Lit(2), High: statement.Lit(8)},
			),
			exp: "{5}",
		},
		{
			name: "range and range",
			expr: statement.AllOf(statement.Cmp(">=", col, statement.Lit(3)), statement.Cmp("<", col, statement.Lit(6))),
			exp:  "[3, 6)",
		},
		{
			name: "contradiction",
			expr: statement.AllOf(statement.Eq(col, statement.Lit(1)), statement.Eq(col, statement.Lit(2))),
			exp:  "none",
		},
		{
			name: "or unions",
			expr: statement.AnyOf(statement.Eq(col, statement.Lit(1)), statement.Eq(col, statement.Lit(2))),
			exp:  "{1} | {2}",
		},
		{
			name: "or escalates",
			expr: statement.AnyOf(statement.Eq(col, statement.Lit(1)), statement.Eq(statement.Col("", "user_id"), statement.Lit(2))),
			exp:  "unresolved",
		},
		{
			name: "and over or",
			expr: statement.AllOf(
				statement.AnyOf(statement.Eq(col, statement.Lit(1)), statement.Eq(col, statement.Lit(2))),
				statement.Cmp(">", col, statement.Lit(1)),
			),
			exp: "{2}",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := &condition.Extractor{Match: orderID, Params: params}
			res, err := e.Extract(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.exp, res.String())
		})
	}
}

func TestExtractMissingParam(t *testing.T) {
	e := &condition.Extractor{Match: orderID}
	_, err := e.Extract(statement.Eq(col, statement.P(0)))
	assert.ErrorIs(t, err, statement.ErrMissingParam{Index: 0})
}

func TestExtractWithMapper(t *testing.T) {
	assert := assert.New(t)

	e := &condition.Extractor{
		Match: orderID,
		Map:   func(v any) (any, error) { return "enc(" + v.(string) + ")", nil },
	}
	res, err := e.Extract(statement.InList(col, statement.Lit("a"), statement.Lit("b")))
	assert.NoError(err)
	assert.Equal("{enc(a), enc(b)}", res.String())

	res, err = e.Extract(statement.Cmp(">", col, statement.Lit("a")))
	assert.NoError(err)
	assert.True(res.Unresolved, "ranges over encrypted values cannot be resolved")

	failing := &condition.Extractor{
		Match: orderID,
		Map:   func(any) (any, error) { return nil, errors.New("no encryptor") },
	}
	_, err = failing.Extract(statement.Eq(col, statement.Lit("a")))
	assert.EqualError(err, "no encryptor")
}

func TestResultAccessors(t *testing.T) {
	assert := assert.New(t)

	v, ok := condition.Exact(7).SingleValue()
	assert.True(ok)
	assert.Equal(7, v)

	_, ok = condition.Exact(1, 2).SingleValue()
	assert.False(ok)
	_, ok = condition.InRange(shvalue.Closed(1, 2)).SingleValue()
	assert.False(ok)

	vals, ok := condition.Or(condition.Exact(1, 2), condition.Exact(int64(2), 3)).ExactValues()
	assert.True(ok)
	assert.Equal([]any{1, 2, 3}, vals)

	_, ok = condition.Unresolved().ExactValues()
	assert.False(ok)
	assert.True(condition.Result{}.Contradiction())
	assert.False(condition.Unresolved().Contradiction())
}
