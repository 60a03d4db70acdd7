package rwsplit

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	"github.com/apache/shardingsphere-sub091/pkg/loadbalance"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/session"
	"github.com/apache/shardingsphere-sub091/pkg/srlog"
)

// TransactionalReadStrategy decides where reads inside a transaction go.
type TransactionalReadStrategy string

const (
	// Fixed pins the first chosen replica for the rest of the transaction.
	Fixed = TransactionalReadStrategy("FIXED")
	// Dynamic asks the load balancer for every read.
	Dynamic = TransactionalReadStrategy("DYNAMIC")
	// Primary sends transactional reads to the write target.
	Primary = TransactionalReadStrategy("PRIMARY")
)

func ParseTransactionalReadStrategy(s string) (TransactionalReadStrategy, error) {
	switch v := TransactionalReadStrategy(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return Fixed, nil
	case Fixed, Dynamic, Primary:
		return v, nil
	}
	return "", srerror.Newf(srerror.SRCFG_INVALID_RULE, "unknown transactional read query strategy %q", s)
}

type Group struct {
	Name            string
	WriteDataSource string
	ReadDataSources []string
	TxReadStrategy  TransactionalReadStrategy

	selector loadbalance.Selector
	pinned   loadbalance.Selector
}

func NewGroup(name, write string, reads []string, strategy TransactionalReadStrategy, selector loadbalance.Selector) *Group {
	return &Group{
		Name:            name,
		WriteDataSource: write,
		ReadDataSources: reads,
		TxReadStrategy:  strategy,
		selector:        selector,
		pinned:          loadbalance.NewTransactionPinned(selector),
	}
}

// Route chooses the physical data source for one statement.
func (g *Group) Route(readOnly bool, tx *session.TransactionConnectionContext) (string, error) {
	target, reason, err := g.route(readOnly, tx)
	if err != nil {
		return "", err
	}
	srlog.Zero.Debug().
		Str("group", g.Name).
		Str("target", target).
		Str("reason", reason).
		Msg("read/write split decision")
	return target, nil
}

func (g *Group) route(readOnly bool, tx *session.TransactionConnectionContext) (string, string, error) {
	switch {
	case !readOnly:
		return g.WriteDataSource, "write statement", nil
	case tx.TargetSessionAttrs().ForcesWrite():
		return g.WriteDataSource, "target session attrs", nil
	case len(g.ReadDataSources) == 0:
		return g.WriteDataSource, "no read targets", nil
	}

	if tx.InTransaction() {
		if tx.WriteRouted() {
			return g.WriteDataSource, "transaction already wrote", nil
		}
		switch g.TxReadStrategy {
		case Primary:
			return g.WriteDataSource, "primary transactional reads", nil
		case Dynamic:
			t, err := g.selector.Select(g.Name, g.WriteDataSource, g.ReadDataSources, tx)
			return t, "dynamic transactional read", err
		default:
			t, err := g.pinned.Select(g.Name, g.WriteDataSource, g.ReadDataSources, tx)
			return t, "pinned transactional read", err
		}
	}

	t, err := g.selector.Select(g.Name, g.WriteDataSource, g.ReadDataSources, tx)
	return t, "load balanced read", err
}

type Rule struct {
	Groups map[string]*Group
}

func NewRule(groups ...*Group) *Rule {
	r := &Rule{Groups: map[string]*Group{}}
	for _, g := range groups {
		r.Groups[g.Name] = g
	}
	return r
}

func (r *Rule) Group(name string) (*Group, bool) {
	if r == nil {
		return nil, false
	}
	g, ok := r.Groups[name]
	return g, ok
}

// PhysicalMembers lists every data source used as a writer or reader.
func (r *Rule) PhysicalMembers() map[string]struct{} {
	out := map[string]struct{}{}
	if r == nil {
		return out
	}
	for _, g := range r.Groups {
		out[g.WriteDataSource] = struct{}{}
		for _, rd := range g.ReadDataSources {
			out[rd] = struct{}{}
		}
	}
	return out
}

// RuleFromConfig resolves load balancers once, at load time. physical holds
// the declared physical data sources.
func RuleFromConfig(cfg *config.ReadwriteSplittingCfg, physical map[string]struct{}, cache *loadbalance.Cache) (*Rule, error) {
	if cfg == nil {
		return NewRule(), nil
	}
	var groups []*Group
	for name, gc := range cfg.Groups {
		if gc == nil {
			return nil, srerror.Newf(srerror.SRCFG_INVALID_RULE, "read/write split group %q has no definition", name)
		}
		if _, ok := physical[gc.WriteDataSource]; !ok {
			return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_DATASOURCE, "group %q write data source %q is not declared", name, gc.WriteDataSource)
		}
		reads, err := config.ExpandInlineList(gc.ReadDataSources)
		if err != nil {
			return nil, srerror.New(srerror.SRCFG_INVALID_RULE, err.Error())
		}
		for _, rd := range reads {
			if _, ok := physical[rd]; !ok {
				return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_DATASOURCE, "group %q read data source %q is not declared", name, rd)
			}
		}
		strategy, err := ParseTransactionalReadStrategy(gc.TransactionalReadQueryStrategy)
		if err != nil {
			return nil, err
		}

		var lb config.AlgorithmCfg
		if gc.LoadBalancer != "" {
			c, ok := cfg.LoadBalancers[gc.LoadBalancer]
			if !ok || c == nil {
				return nil, srerror.Newf(srerror.SRCFG_UNKNOWN_ALGORITHM, "group %q references unknown load balancer %q", name, gc.LoadBalancer)
			}
			lb = *c
		}
		selector, err := loadbalance.New(lb.Type, lb.Props, cache)
		if err != nil {
			return nil, err
		}
		if v, ok := selector.(loadbalance.Validator); ok {
			if err := v.Validate(reads); err != nil {
				return nil, srerror.Newf(srerror.SRCFG_WEIGHT_SUM, "group %q: %v", name, err)
			}
		}
		groups = append(groups, NewGroup(name, gc.WriteDataSource, reads, strategy, selector))
	}
	return NewRule(groups...), nil
}
