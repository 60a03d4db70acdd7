package algorithm

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

// boundaryRange splits the integer line at ascending boundaries: with
// boundaries 10,20 shard 0 holds v < 10, shard 1 holds 10 <= v < 20 and
// shard 2 holds v >= 20.
type boundaryRange struct {
	bounds []int64
}

func newBoundaryRange(props map[string]string) (Algorithm, error) {
	raw := props["sharding-ranges"]
	if strings.TrimSpace(raw) == "" {
		return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "%s algorithm requires property %q", TypeBoundaryRange, "sharding-ranges")
	}
	var bounds []int64
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "bad boundary %q in %q", part, raw)
		}
		if len(bounds) > 0 && n <= bounds[len(bounds)-1] {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "boundaries must be strictly ascending: %q", raw)
		}
		bounds = append(bounds, n)
	}
	return &boundaryRange{bounds: bounds}, nil
}

func (b *boundaryRange) Type() string {
	return TypeBoundaryRange
}

func (b *boundaryRange) index(v int64) int64 {
	return int64(sort.Search(len(b.bounds), func(i int) bool { return b.bounds[i] > v }))
}

func (b *boundaryRange) DoSharding(targets []string, column string, value any) (string, error) {
	v, err := shvalue.ToInt64(value)
	if err != nil {
		return "", badValue(TypeBoundaryRange, column, value, err)
	}
	idx := b.index(v)
	t, ok := TargetBySuffix(targets, idx)
	if !ok {
		return "", outOfRange(TypeBoundaryRange, idx, column)
	}
	return t, nil
}

func (b *boundaryRange) DoRangeSharding(targets []string, column string, rng shvalue.Range) ([]string, error) {
	lo, hi := int64(0), int64(len(b.bounds))
	if rng.Lower != nil {
		v, err := shvalue.ToInt64(rng.Lower.Value)
		if err != nil {
			return targets, nil
		}
		lo = b.index(v)
	}
	if rng.Upper != nil {
		v, err := shvalue.ToInt64(rng.Upper.Value)
		if err != nil {
			return targets, nil
		}
		if !rng.Upper.Inclusive && v != math.MinInt64 {
			v--
		}
		hi = b.index(v)
	}
	idx := map[int64]struct{}{}
	for i := lo; i <= hi; i++ {
		idx[i] = struct{}{}
	}
	return collect(TypeBoundaryRange, column, targets, idx)
}
