package shrule

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	"github.com/apache/shardingsphere-sub091/pkg/keygen"
	"github.com/apache/shardingsphere-sub091/pkg/models/algorithm"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ShardingRuleFromConfig builds the sharding rule. knownDataSources are the
// logical data source names data nodes may reference.
func ShardingRuleFromConfig(cfg *config.ShardingCfg, knownDataSources map[string]struct{}) (*ShardingRule, error) {
	if cfg == nil {
		return NewShardingRule(nil, nil, nil), nil
	}

	algorithms := map[string]algorithm.Algorithm{}
	for name, ac := range cfg.Algorithms {
		if ac == nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "sharding algorithm %q has no definition", name)
		}
		a, err := algorithm.New(ac.Type, ac.Props)
		if err != nil {
			return nil, err
		}
		algorithms[name] = a
	}

	generators := map[string]keygen.Generator{}
	for name, gc := range cfg.KeyGenerators {
		if gc == nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "key generator %q has no definition", name)
		}
		g, err := keygen.New(gc.Type, gc.Props)
		if err != nil {
			return nil, err
		}
		generators[name] = g
	}

	names := maps.Keys(cfg.Tables)
	slices.Sort(names)

	var tables []*TableRule
	for _, name := range names {
		tr, err := tableRuleFromConfig(name, cfg.Tables[name], cfg, algorithms, generators, knownDataSources)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tr)
	}

	rule := NewShardingRule(tables, cfg.BindingTables, cfg.BroadcastTables)
	for _, g := range rule.BindingGroups {
		if err := checkBindingGroup(rule, g); err != nil {
			return nil, err
		}
	}
	for b := range rule.BroadcastTables {
		if rule.IsSharded(b) {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "table %q is both sharded and broadcast", b)
		}
	}
	return rule, nil
}

func tableRuleFromConfig(
	name string,
	tc *config.ShardingTableCfg,
	cfg *config.ShardingCfg,
	algorithms map[string]algorithm.Algorithm,
	generators map[string]keygen.Generator,
	knownDataSources map[string]struct{},
) (*TableRule, error) {
	if tc == nil {
		return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "sharded table %q has no definition", name)
	}
	expanded, err := config.ExpandInlineList(tc.ActualDataNodes)
	if err != nil {
		return nil, srerror.New(srerror.SRCFG_INVALID_RULE, err.Error())
	}
	if len(expanded) == 0 {
		return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "sharded table %q has no actual data nodes", name)
	}

	nodes := make([]DataNode, 0, len(expanded))
	seen := map[DataNode]struct{}{}
	for _, s := range expanded {
		n, err := ParseDataNode(s)
		if err != nil {
			return nil, srerror.New(srerror.SRCFG_INVALID_RULE, err.Error())
		}
		if _, ok := knownDataSources[n.DataSource]; !ok {
			return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_DATASOURCE, "table %q references unknown data source %q", name, n.DataSource)
		}
		if _, ok := seen[n]; ok {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "table %q lists data node %s twice", name, n)
		}
		seen[n] = struct{}{}
		nodes = append(nodes, n)
	}

	tr := NewTableRule(name, nodes)
	if tr.DatabaseStrategy, err = strategyFromConfig(name, tc.DatabaseStrategy, cfg.DefaultDatabaseStrategy, algorithms); err != nil {
		return nil, err
	}
	if tr.TableStrategy, err = strategyFromConfig(name, tc.TableStrategy, cfg.DefaultTableStrategy, algorithms); err != nil {
		return nil, err
	}

	if kg := tc.KeyGenerateStrategy; kg != nil {
		g, ok := generators[kg.Generator]
		if !ok {
			return nil, srerror.Newf(srerror.SRCFG_NO_KEY_GENERATOR, "table %q references unknown key generator %q", name, kg.Generator)
		}
		if kg.Column == "" {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "table %q key generate strategy has no column", name)
		}
		tr.KeyGenerateColumn = strings.ToLower(kg.Column)
		tr.KeyGenerator = g
	}
	return tr, nil
}

func strategyFromConfig(table string, sc, fallback *config.StrategyCfg, algorithms map[string]algorithm.Algorithm) (*Strategy, error) {
	if sc == nil {
		sc = fallback
	}
	if sc == nil || sc.None {
		return nil, nil
	}
	if sc.Column == "" {
		return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "table %q strategy has no sharding column", table)
	}
	a, ok := algorithms[sc.Algorithm]
	if !ok {
		return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "table %q references unknown sharding algorithm %q", table, sc.Algorithm)
	}
	return &Strategy{Column: strings.ToLower(sc.Column), Algorithm: a}, nil
}

// checkBindingGroup requires every member to be sharded and to spread its
// physical tables over the same data sources in the same counts, so that
// shard indexes line up.
func checkBindingGroup(rule *ShardingRule, group []string) error {
	if len(group) < 2 {
		return srerror.Newf(srerror.SRCFG_INVALID_RULE, "binding group %v needs at least two tables", group)
	}
	primary, ok := rule.TableRule(group[0])
	if !ok {
		return srerror.Newf(srerror.SRCFG_UNKNOWN_TABLE, "binding table %q is not sharded", group[0])
	}
	for _, name := range group[1:] {
		tr, ok := rule.TableRule(name)
		if !ok {
			return srerror.Newf(srerror.SRCFG_UNKNOWN_TABLE, "binding table %q is not sharded", name)
		}
		if len(tr.ActualDataSources()) != len(primary.ActualDataSources()) {
			return srerror.Newf(srerror.SRCFG_BINDING_MISMATCH, "binding tables %q and %q span different data sources", primary.LogicTable, name)
		}
		for _, ds := range primary.ActualDataSources() {
			if len(tr.ActualTables(ds)) != len(primary.ActualTables(ds)) {
				return srerror.Newf(srerror.SRCFG_BINDING_MISMATCH,
					"binding tables %q and %q hold a different number of shards on %q", primary.LogicTable, name, ds)
			}
		}
	}
	return nil
}
