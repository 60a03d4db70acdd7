package shvalue

import "fmt"

// Bound is one end of a Range. A nil Bound means the side is unbounded.
type Bound struct {
	Value     any
	Inclusive bool
}

type Range struct {
	Lower *Bound
	Upper *Bound
}

func Closed(lo, hi any) Range {
	return Range{
		Lower: &Bound{Value: lo, Inclusive: true},
		Upper: &Bound{Value: hi, Inclusive: true},
	}
}

func AtLeast(v any, inclusive bool) Range {
	return Range{Lower: &Bound{Value: v, Inclusive: inclusive}}
}

func AtMost(v any, inclusive bool) Range {
	return Range{Upper: &Bound{Value: v, Inclusive: inclusive}}
}

func (r Range) Bounded() bool {
	return r.Lower != nil && r.Upper != nil
}

// Contains reports whether v lies within r. Values that cannot be compared
// to a bound are treated as contained.
func (r Range) Contains(v any) bool {
	if r.Lower != nil {
		if c, ok := Compare(v, r.Lower.Value); ok && (c < 0 || (c == 0 && !r.Lower.Inclusive)) {
			return false
		}
	}
	if r.Upper != nil {
		if c, ok := Compare(v, r.Upper.Value); ok && (c > 0 || (c == 0 && !r.Upper.Inclusive)) {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of r and o; ok is false when it is empty.
func (r Range) Intersect(o Range) (Range, bool) {
	res := Range{
		Lower: tighterLower(r.Lower, o.Lower),
		Upper: tighterUpper(r.Upper, o.Upper),
	}
	return res, !res.Empty()
}

// Empty reports whether the range provably contains no value.
func (r Range) Empty() bool {
	if !r.Bounded() {
		return false
	}
	c, ok := Compare(r.Lower.Value, r.Upper.Value)
	if !ok {
		return false
	}
	return c > 0 || (c == 0 && !(r.Lower.Inclusive && r.Upper.Inclusive))
}

func tighterLower(a, b *Bound) *Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	c, ok := Compare(a.Value, b.Value)
	switch {
	case !ok:
		return a
	case c > 0:
		return a
	case c < 0:
		return b
	}
	return &Bound{Value: a.Value, Inclusive: a.Inclusive && b.Inclusive}
}

func tighterUpper(a, b *Bound) *Bound {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	c, ok := Compare(a.Value, b.Value)
	switch {
	case !ok:
		return a
	case c < 0:
		return a
	case c > 0:
		return b
	}
	return &Bound{Value: a.Value, Inclusive: a.Inclusive && b.Inclusive}
}

func (r Range) String() string {
	lo, hi := "(-inf", "+inf)"
	if r.Lower != nil {
		br := "("
		if r.Lower.Inclusive {
			br = "["
		}
		lo = fmt.Sprintf("%s%v", br, r.Lower.Value)
	}
	if r.Upper != nil {
		br := ")"
		if r.Upper.Inclusive {
			br = "]"
		}
		hi = fmt.Sprintf("%v%s", r.Upper.Value, br)
	}
	return lo + ", " + hi
}
