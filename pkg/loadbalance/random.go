package loadbalance

import (
	"math/rand/v2"

	"github.com/apache/shardingsphere-sub091/pkg/session"
)

type random struct {
	intN func(n int) int
}

// NewRandom returns a uniform selector. A nil intN uses the global source.
func NewRandom(intN func(n int) int) Selector {
	if intN == nil {
		intN = rand.IntN
	}
	return &random{intN: intN}
}

func (r *random) Type() string {
	return TypeRandom
}

func (r *random) Select(_, writeTarget string, readTargets []string, _ *session.TransactionConnectionContext) (string, error) {
	if len(readTargets) == 0 {
		return writeTarget, nil
	}
	return readTargets[r.intN(len(readTargets))], nil
}
