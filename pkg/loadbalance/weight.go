package loadbalance

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/session"
)

const (
	// infiniteWeight stands in for +Inf so normalization stays finite.
	infiniteWeight  = 1e9
	weightTolerance = 1e-4
)

type weight struct {
	weights map[string]float64
	cache   *Cache
	float   func() float64
}

func newWeight(props map[string]string, cache *Cache) (Selector, error) {
	weights := make(map[string]float64, len(props))
	for target, s := range props {
		w, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "weight of %q is not a number: %q", target, s)
		}
		weights[target] = w
	}
	return NewWeight(weights, cache, nil)
}

// NewWeight returns a selector drawing targets proportionally to weights.
// Targets without a weight never get picked. A nil float uses the global
// source.
func NewWeight(weights map[string]float64, cache *Cache, float func() float64) (Selector, error) {
	for target, w := range weights {
		if w < 0 {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "weight of %q is negative", target)
		}
	}
	if cache == nil {
		cache = NewCache()
	}
	if float == nil {
		float = rand.Float64
	}
	return &weight{weights: weights, cache: cache, float: float}, nil
}

func (w *weight) Type() string {
	return TypeWeight
}

// Validate computes the cumulative table for a group's read targets,
// surfacing configuration errors before the first statement is routed.
func (w *weight) Validate(readTargets []string) error {
	_, err := cumulativeWeights(w.weights, readTargets)
	return err
}

func (w *weight) Select(group, writeTarget string, readTargets []string, _ *session.TransactionConnectionContext) (string, error) {
	if len(readTargets) == 0 {
		return writeTarget, nil
	}
	var cdf []float64
	if v, ok := w.cache.weights.Load(group); ok && len(v.([]float64)) == len(readTargets) {
		cdf = v.([]float64)
	} else {
		computed, err := cumulativeWeights(w.weights, readTargets)
		if err != nil {
			return "", err
		}
		v, _ := w.cache.weights.LoadOrStore(group, computed)
		cdf = v.([]float64)
	}

	r := w.float()
	idx := sort.Search(len(cdf), func(i int) bool { return cdf[i] > r })
	if idx >= len(readTargets) {
		idx = len(readTargets) - 1
	}
	return readTargets[idx], nil
}

func cumulativeWeights(weights map[string]float64, readTargets []string) ([]float64, error) {
	raw := make([]float64, len(readTargets))
	var total float64
	for i, t := range readTargets {
		w := weights[t]
		switch {
		case math.IsNaN(w):
			w = 1
		case math.IsInf(w, 1):
			w = infiniteWeight
		}
		raw[i] = w
		total += w
	}
	if total <= 0 {
		return nil, srerror.New(srerror.SRCFG_WEIGHT_SUM, "read targets have no positive weight")
	}

	cdf := make([]float64, len(raw))
	var acc float64
	for i, w := range raw {
		acc += w / total
		cdf[i] = acc
	}
	if math.Abs(acc-1) > weightTolerance {
		return nil, srerror.Newf(srerror.SRCFG_WEIGHT_SUM, "normalized weights sum to %v", acc)
	}
	return cdf, nil
}
