package rulemgr

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	"github.com/apache/shardingsphere-sub091/pkg/loadbalance"
	"github.com/apache/shardingsphere-sub091/pkg/models/encrypt"
	"github.com/apache/shardingsphere-sub091/pkg/models/rwsplit"
	"github.com/apache/shardingsphere-sub091/pkg/models/shrule"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/srlog"
	"go.uber.org/atomic"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Snapshot is an immutable, fully resolved rule set. Routing reads one
// snapshot for the whole statement.
type Snapshot struct {
	Sharding           *shrule.ShardingRule
	Encrypt            *encrypt.Rule
	Transformer        *encrypt.Transformer
	ReadwriteSplitting *rwsplit.Rule

	// SingleTables maps unsharded tables to their logical data source.
	SingleTables map[string]string

	// DataSources are the declared physical data sources.
	DataSources []string
	// LogicalDataSources are what data nodes refer to: read/write split
	// groups plus physical sources outside any group, sorted.
	LogicalDataSources []string
	DefaultDataSource  string
}

// SingleTableDataSource returns the data source of an unsharded table.
func (s *Snapshot) SingleTableDataSource(table string) (string, bool) {
	ds, ok := s.SingleTables[strings.ToLower(table)]
	return ds, ok
}

// Build resolves cfg into a snapshot, failing on any inconsistency.
func Build(cfg *config.RulesCfg) (*Snapshot, error) {
	physical, err := config.ExpandInlineList(cfg.DataSources)
	if err != nil {
		return nil, srerror.New(srerror.SRCFG_INVALID_RULE, err.Error())
	}
	if len(physical) == 0 {
		return nil, srerror.New(srerror.SRCFG_INVALID_RULE, "no data sources declared")
	}
	physicalSet := map[string]struct{}{}
	for _, ds := range physical {
		if _, ok := physicalSet[ds]; ok {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "data source %q declared twice", ds)
		}
		physicalSet[ds] = struct{}{}
	}

	rw, err := rwsplit.RuleFromConfig(cfg.ReadwriteSplitting, physicalSet, loadbalance.NewCache())
	if err != nil {
		return nil, err
	}

	logicalSet := map[string]struct{}{}
	members := rw.PhysicalMembers()
	for _, ds := range physical {
		if _, ok := members[ds]; !ok {
			logicalSet[ds] = struct{}{}
		}
	}
	for name := range rw.Groups {
		logicalSet[name] = struct{}{}
	}
	logical := maps.Keys(logicalSet)
	slices.Sort(logical)

	sharding, err := shrule.ShardingRuleFromConfig(cfg.Sharding, logicalSet)
	if err != nil {
		return nil, err
	}

	single := map[string]string{}
	for table, ds := range cfg.SingleTables {
		t := strings.ToLower(table)
		if _, ok := logicalSet[ds]; !ok {
			return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_DATASOURCE, "single table %q references unknown data source %q", table, ds)
		}
		if sharding.IsSharded(t) || sharding.IsBroadcast(t) {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "table %q is declared both single and sharded or broadcast", table)
		}
		single[t] = ds
	}

	enc, err := encrypt.RuleFromConfig(cfg.Encrypt)
	if err != nil {
		return nil, err
	}

	def := cfg.DefaultDataSource
	if def == "" {
		def = logical[0]
	}
	if _, ok := logicalSet[def]; !ok {
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_DATASOURCE, "default data source %q is not declared", def)
	}

	return &Snapshot{
		Sharding:           sharding,
		Encrypt:            enc,
		Transformer:        encrypt.NewTransformer(enc),
		ReadwriteSplitting: rw,
		SingleTables:       single,
		DataSources:        physical,
		LogicalDataSources: logical,
		DefaultDataSource:  def,
	}, nil
}

type RulesMgr interface {
	Current() *Snapshot
	Reload(cfg *config.RulesCfg) error
}

type RulesMgrImpl struct {
	current atomic.Pointer[Snapshot]
}

var _ RulesMgr = &RulesMgrImpl{}

// Current returns the active snapshot, or nil before the first load.
func (m *RulesMgrImpl) Current() *Snapshot {
	return m.current.Load()
}

// Reload swaps in a snapshot built from cfg. On error the previous snapshot
// stays active.
func (m *RulesMgrImpl) Reload(cfg *config.RulesCfg) error {
	snap, err := Build(cfg)
	if err != nil {
		srlog.Zero.Warn().Err(err).Msg("rules reload rejected, keeping previous snapshot")
		return err
	}
	if cfg.LogLevel != "" {
		if err := srlog.UpdateZeroLogLevel(cfg.LogLevel); err != nil {
			return srerror.New(srerror.SRCFG_INVALID_RULE, err.Error())
		}
	}
	m.current.Store(snap)

	srlog.Zero.Info().
		Int("sharded tables", len(snap.Sharding.Tables)).
		Strs("data sources", snap.LogicalDataSources).
		Msg("rules snapshot loaded")
	return nil
}

func NewMgr(cfg *config.RulesCfg) (RulesMgr, error) {
	m := &RulesMgrImpl{}
	if err := m.Reload(cfg); err != nil {
		return nil, err
	}
	return m, nil
}
