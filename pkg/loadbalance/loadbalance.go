package loadbalance

import (
	"strings"
	"sync"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/session"
	"go.uber.org/atomic"
)

const (
	TypeRoundRobin = "ROUND_ROBIN"
	TypeRandom     = "RANDOM"
	TypeWeight     = "WEIGHT"
)

//go:generate mockgen -source=./loadbalance.go -destination=../mock/loadbalance/mock_loadbalance.go -package=mock

// Selector picks one read target of a read/write-split group.
// An empty read list yields the write target.
type Selector interface {
	Type() string
	Select(group, writeTarget string, readTargets []string, tx *session.TransactionConnectionContext) (string, error)
}

// Validator is implemented by selectors that can check their configuration
// against a group's read targets up front.
type Validator interface {
	Validate(readTargets []string) error
}

// Cache holds the shared mutable state of selectors: round-robin counters and
// weight tables, both keyed by group name. One Cache lives as long as the
// rule snapshot it was created for.
type Cache struct {
	counters sync.Map // group -> *atomic.Uint64
	weights  sync.Map // group -> []float64
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) counter(group string) *atomic.Uint64 {
	if v, ok := c.counters.Load(group); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := c.counters.LoadOrStore(group, atomic.NewUint64(0))
	return v.(*atomic.Uint64)
}

type Factory func(props map[string]string, cache *Cache) (Selector, error)

var registry = map[string]Factory{
	TypeRoundRobin: func(_ map[string]string, cache *Cache) (Selector, error) {
		return NewRoundRobin(cache), nil
	},
	TypeRandom: func(map[string]string, *Cache) (Selector, error) {
		return NewRandom(nil), nil
	},
	TypeWeight: newWeight,
}

// Register installs a custom selector type. It is not safe to call
// concurrently with New.
func Register(typ string, f Factory) {
	registry[strings.ToUpper(typ)] = f
}

func New(typ string, props map[string]string, cache *Cache) (Selector, error) {
	if typ == "" {
		typ = TypeRoundRobin
	}
	f, ok := registry[strings.ToUpper(typ)]
	if !ok {
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "unknown load balancer type %q", typ)
	}
	return f(props, cache)
}
