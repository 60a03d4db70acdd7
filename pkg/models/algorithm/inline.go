package algorithm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/apache/shardingsphere-sub091/pkg/models/hashfunction"
	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

// inline evaluates a template such as "t_order_${order_id % 4}". Each ${...}
// segment is an arithmetic expression over the sharding column.
type inline struct {
	source   string
	literals []string
	exprs    []*govaluate.EvaluableExpression
}

var inlineFunctions = map[string]govaluate.ExpressionFunction{
	"mod": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("mod expects 2 arguments, got %d", len(args))
		}
		a, err := shvalue.ToInt64(args[0])
		if err != nil {
			return nil, err
		}
		b, err := shvalue.ToInt64(args[1])
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("mod by zero")
		}
		return float64(((a % b) + b) % b), nil
	},
	"hash": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("hash expects 1 argument, got %d", len(args))
		}
		h, err := hashfunction.ApplyMurmurHashFunction(fmt.Sprint(args[0]), hashfunction.ColumnTypeVarcharHashed)
		if err != nil {
			return nil, err
		}
		return float64(h), nil
	},
}

func newInline(props map[string]string) (Algorithm, error) {
	src := props["algorithm-expression"]
	if src == "" {
		return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "%s algorithm requires property %q", TypeInline, "algorithm-expression")
	}
	in := &inline{source: src}
	rest := src
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			in.literals = append(in.literals, rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "unterminated ${ in inline expression %q", src)
		}
		in.literals = append(in.literals, rest[:start])
		body := strings.TrimSpace(rest[start+2 : start+end])
		e, err := govaluate.NewEvaluableExpressionWithFunctions(body, inlineFunctions)
		if err != nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "inline expression %q: %v", body, err)
		}
		in.exprs = append(in.exprs, e)
		rest = rest[start+end+1:]
	}
	if len(in.exprs) == 0 {
		return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "inline expression %q references no column", src)
	}
	return in, nil
}

func (in *inline) Type() string {
	return TypeInline
}

func (in *inline) evaluate(column string, value any) (string, error) {
	param := shvalue.Normalize(value)
	switch v := param.(type) {
	case int64:
		param = float64(v)
	case uint64:
		param = float64(v)
	}
	params := map[string]any{column: param}

	var sb strings.Builder
	for i, lit := range in.literals {
		sb.WriteString(lit)
		if i >= len(in.exprs) {
			continue
		}
		res, err := in.exprs[i].Evaluate(params)
		if err != nil {
			return "", srerror.Newf(srerror.SRUNS_BAD_SHARDING_VALUE,
				"%s expression %q cannot be evaluated for %s=%v: %v", TypeInline, in.source, column, value, err)
		}
		sb.WriteString(formatInline(res))
	}
	return sb.String(), nil
}

func formatInline(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(v)
}

func (in *inline) DoSharding(targets []string, column string, value any) (string, error) {
	name, err := in.evaluate(column, value)
	if err != nil {
		return "", err
	}
	for _, t := range targets {
		if strings.EqualFold(t, name) {
			return t, nil
		}
	}
	return "", srerror.Newf(srerror.SRCFG_SHARD_OUT_OF_RANGE,
		"inline expression %q produced %q which is not an available target", in.source, name)
}

// DoRangeSharding cannot invert an arbitrary expression, so every target is
// a candidate.
func (in *inline) DoRangeSharding(targets []string, _ string, _ shvalue.Range) ([]string, error) {
	return targets, nil
}
