package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandInline expands inline expressions into the list of names they
// denote. Segments are written ${a..b} for an integer range or ${[x, y]} for
// an explicit list; several segments produce their cartesian product. The
// alternative opener $->{ is accepted as well.
//
//	ExpandInline("ds_${0..1}.t_${[a, b]}") == [ds_0.t_a ds_0.t_b ds_1.t_a ds_1.t_b]
func ExpandInline(expr string) ([]string, error) {
	expr = strings.ReplaceAll(expr, "$->{", "${")
	results := []string{""}
	rest := expr
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			results = appendSuffix(results, rest)
			return results, nil
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, fmt.Errorf("unterminated ${ in %q", expr)
		}
		results = appendSuffix(results, rest[:start])

		choices, err := expandSegment(strings.TrimSpace(rest[start+2 : start+end]))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", expr, err)
		}
		next := make([]string, 0, len(results)*len(choices))
		for _, r := range results {
			for _, c := range choices {
				next = append(next, r+c)
			}
		}
		results = next
		rest = rest[start+end+1:]
	}
}

// ExpandInlineList expands every entry and concatenates the results.
func ExpandInlineList(exprs []string) ([]string, error) {
	var out []string
	for _, e := range exprs {
		names, err := ExpandInline(e)
		if err != nil {
			return nil, err
		}
		out = append(out, names...)
	}
	return out, nil
}

func appendSuffix(results []string, s string) []string {
	for i := range results {
		results[i] += s
	}
	return results
}

func expandSegment(seg string) ([]string, error) {
	if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
		var out []string
		for _, item := range strings.Split(seg[1:len(seg)-1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `'"`)
			if item == "" {
				continue
			}
			out = append(out, item)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list segment")
		}
		return out, nil
	}

	lo, hi, ok := strings.Cut(seg, "..")
	if !ok {
		return nil, fmt.Errorf("segment %q is neither a range nor a list", seg)
	}
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fmt.Errorf("bad range start %q", lo)
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return nil, fmt.Errorf("bad range end %q", hi)
	}
	if to < from {
		return nil, fmt.Errorf("range %d..%d is descending", from, to)
	}
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out, nil
}
