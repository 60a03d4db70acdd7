package loadbalance

import "github.com/apache/shardingsphere-sub091/pkg/session"

type roundRobin struct {
	cache *Cache
}

func NewRoundRobin(cache *Cache) Selector {
	if cache == nil {
		cache = NewCache()
	}
	return &roundRobin{cache: cache}
}

func (r *roundRobin) Type() string {
	return TypeRoundRobin
}

// Select cycles through readTargets. The counter is unsigned, so wrap-around
// never produces a negative index.
func (r *roundRobin) Select(group, writeTarget string, readTargets []string, _ *session.TransactionConnectionContext) (string, error) {
	if len(readTargets) == 0 {
		return writeTarget, nil
	}
	n := r.cache.counter(group).Inc() - 1
	return readTargets[n%uint64(len(readTargets))], nil
}
