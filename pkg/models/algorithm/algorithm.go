package algorithm

import (
	"strconv"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
)

const (
	TypeMod           = "MOD"
	TypeHashMod       = "HASH_MOD"
	TypeInline        = "INLINE"
	TypeBoundaryRange = "BOUNDARY_RANGE"
)

// Algorithm maps a sharding value to one of the available targets, which are
// data source names or physical table names depending on the strategy.
//
// DoSharding must return a member of targets; the caller treats anything else
// as a configuration error. DoRangeSharding returns a subset of targets.
type Algorithm interface {
	Type() string
	DoSharding(targets []string, column string, value any) (string, error)
	DoRangeSharding(targets []string, column string, rng shvalue.Range) ([]string, error)
}

type Factory func(props map[string]string) (Algorithm, error)

var registry = map[string]Factory{
	TypeMod:           newMod,
	TypeHashMod:       newHashMod,
	TypeInline:        newInline,
	TypeBoundaryRange: newBoundaryRange,
}

// Register installs a custom algorithm type. It is not safe to call
// concurrently with New.
func Register(typ string, f Factory) {
	registry[strings.ToUpper(typ)] = f
}

func New(typ string, props map[string]string) (Algorithm, error) {
	f, ok := registry[strings.ToUpper(typ)]
	if !ok {
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "unknown sharding algorithm type %q", typ)
	}
	return f(props)
}

// TargetBySuffix returns the target whose trailing decimal digits equal idx,
// so that "t_order_3" and "ds_3" both answer for shard 3.
func TargetBySuffix(targets []string, idx int64) (string, bool) {
	for _, t := range targets {
		if n, ok := numericSuffix(t); ok && n == idx {
			return t, true
		}
	}
	return "", false
}

func numericSuffix(s string) (int64, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func shardingCount(typ string, props map[string]string) (int64, error) {
	s, ok := props["sharding-count"]
	if !ok {
		return 0, srerror.Newf(srerror.SRCFG_INVALID_RULE, "%s algorithm requires property %q", typ, "sharding-count")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, srerror.Newf(srerror.SRCFG_INVALID_RULE, "%s sharding-count must be a positive integer, got %q", typ, s)
	}
	return n, nil
}

func outOfRange(typ string, idx int64, column string) error {
	return srerror.Newf(srerror.SRCFG_SHARD_OUT_OF_RANGE,
		"%s algorithm computed shard %d for column %q, but no target carries that suffix", typ, idx, column)
}

func badValue(typ, column string, value any, err error) error {
	return srerror.Newf(srerror.SRUNS_BAD_SHARDING_VALUE,
		"%s sharding on column %q cannot use value %v (%T): %v", typ, column, value, value, err)
}

// collect maps every shard index in indexes to its target, preserving the
// order of targets and dropping duplicates.
func collect(typ, column string, targets []string, indexes map[int64]struct{}) ([]string, error) {
	found := map[string]struct{}{}
	for idx := range indexes {
		t, ok := TargetBySuffix(targets, idx)
		if !ok {
			return nil, outOfRange(typ, idx, column)
		}
		found[t] = struct{}{}
	}
	var out []string
	for _, t := range targets {
		if _, ok := found[t]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
