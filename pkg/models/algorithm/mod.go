package algorithm

import (
	"fmt"
	"math"

	"github.com/apache/shardingsphere-sub091/pkg/models/hashfunction"
	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

// mod shards integral values by value % sharding-count.
type mod struct {
	count int64
}

func newMod(props map[string]string) (Algorithm, error) {
	n, err := shardingCount(TypeMod, props)
	if err != nil {
		return nil, err
	}
	return &mod{count: n}, nil
}

func (m *mod) Type() string {
	return TypeMod
}

func (m *mod) index(v int64) int64 {
	return ((v % m.count) + m.count) % m.count
}

func (m *mod) DoSharding(targets []string, column string, value any) (string, error) {
	v, err := shvalue.ToInt64(value)
	if err != nil {
		return "", badValue(TypeMod, column, value, err)
	}
	idx := m.index(v)
	t, ok := TargetBySuffix(targets, idx)
	if !ok {
		return "", outOfRange(TypeMod, idx, column)
	}
	return t, nil
}

// DoRangeSharding enumerates short closed integer ranges; anything wider than
// one full cycle, open, non-integral or holding no integer hits every target.
func (m *mod) DoRangeSharding(targets []string, column string, rng shvalue.Range) ([]string, error) {
	if !rng.Bounded() {
		return targets, nil
	}
	lo, errLo := shvalue.ToInt64(rng.Lower.Value)
	hi, errHi := shvalue.ToInt64(rng.Upper.Value)
	if errLo != nil || errHi != nil {
		return targets, nil
	}
	if !rng.Lower.Inclusive {
		if lo == math.MaxInt64 {
			return targets, nil
		}
		lo++
	}
	if !rng.Upper.Inclusive {
		if hi == math.MinInt64 {
			return targets, nil
		}
		hi--
	}
	if hi < lo {
		return targets, nil
	}
	// width in uint64 so that MinInt64..MaxInt64 does not wrap
	if uint64(hi)-uint64(lo) >= uint64(m.count)-1 {
		return targets, nil
	}
	idx := map[int64]struct{}{}
	for v := lo; ; v++ {
		idx[m.index(v)] = struct{}{}
		if v == hi {
			break
		}
	}
	return collect(TypeMod, column, targets, idx)
}

// hashMod shards by hash(value) % sharding-count.
type hashMod struct {
	count int64
	hf    hashfunction.HashFunctionType
}

func newHashMod(props map[string]string) (Algorithm, error) {
	n, err := shardingCount(TypeHashMod, props)
	if err != nil {
		return nil, err
	}
	name := props["hash-function"]
	if name == "" {
		name = "murmur"
	}
	hf, err := hashfunction.HashFunctionByName(name)
	if err != nil {
		return nil, srerror.New(srerror.SRCFG_INVALID_RULE, err.Error())
	}
	return &hashMod{count: n, hf: hf}, nil
}

func (h *hashMod) Type() string {
	return TypeHashMod
}

func (h *hashMod) DoSharding(targets []string, column string, value any) (string, error) {
	v := shvalue.Normalize(value)
	ctype := hashfunction.ColumnTypeVarcharHashed
	switch v.(type) {
	case int64:
		ctype = hashfunction.ColumnTypeInteger
	case uint64:
		ctype = hashfunction.ColumnTypeUinteger
	case string:
	default:
		v = fmt.Sprint(v)
	}
	hashed, err := hashfunction.ApplyHashFunction(v, ctype, h.hf)
	if err != nil {
		return "", badValue(TypeHashMod, column, value, err)
	}
	var sum uint64
	switch x := hashed.(type) {
	case uint64:
		sum = x
	case int64:
		sum = uint64(x)
	default:
		s, err := shvalue.ToInt64(x)
		if err != nil {
			return "", badValue(TypeHashMod, column, value, err)
		}
		sum = uint64(s)
	}
	idx := int64(sum % uint64(h.count))
	t, ok := TargetBySuffix(targets, idx)
	if !ok {
		return "", outOfRange(TypeHashMod, idx, column)
	}
	return t, nil
}

func (h *hashMod) DoRangeSharding(targets []string, _ string, _ shvalue.Range) ([]string, error) {
	return targets, nil
}
