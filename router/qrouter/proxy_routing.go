package qrouter

import (
	"context"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/shrule"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/rulemgr"
	"github.com/apache/shardingsphere-sub091/pkg/session"
	"github.com/apache/shardingsphere-sub091/pkg/srlog"
	"github.com/apache/shardingsphere-sub091/router/condition"
	"github.com/apache/shardingsphere-sub091/router/rmeta"
	"github.com/apache/shardingsphere-sub091/router/route"
	"github.com/apache/shardingsphere-sub091/router/statement"
	"github.com/apache/shardingsphere-sub091/router/validator"
	"github.com/pkg/errors"
)

// Route computes where stmt runs under snap. tx is the session's transaction
// context and may be nil for statements issued outside a session.
func Route(ctx context.Context, snap *rulemgr.Snapshot, stmt *statement.Statement, tx *session.TransactionConnectionContext) (*route.RouteContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rm := rmeta.NewRoutingMetadataContext(stmt, snap)
	if err := validator.PreValidate(rm); err != nil {
		return nil, err
	}

	rc := route.NewRouteContext()
	if err := planRoute(rm, rc); err != nil {
		return nil, err
	}
	if err := recordEncryptRewrites(rm, rc); err != nil {
		return nil, err
	}
	if err := decorateReadwriteSplit(rm, rc, tx); err != nil {
		return nil, err
	}
	rc.Sort()

	if err := validator.PostValidate(stmt, rc); err != nil {
		return nil, err
	}

	srlog.Zero.Debug().
		Str("kind", stmt.Kind.String()).
		Strs("tables", stmt.AllTableNames()).
		Int("units", len(rc.Units)).
		Strs("data sources", rc.ActualDataSources()).
		Msg("statement routed")
	return rc, nil
}

type tableClasses struct {
	sharded   []string
	broadcast []string
	single    []string
}

func classifyTables(snap *rulemgr.Snapshot, names []string) (tableClasses, error) {
	var cls tableClasses
	for _, n := range names {
		switch {
		case snap.Sharding.IsSharded(n):
			cls.sharded = append(cls.sharded, n)
		case snap.Sharding.IsBroadcast(n):
			cls.broadcast = append(cls.broadcast, n)
		default:
			if _, ok := snap.SingleTableDataSource(n); !ok {
				return cls, srerror.Newf(srerror.SRCFG_UNKNOWN_TABLE, "table %q is not configured as sharded, broadcast or single", n)
			}
			cls.single = append(cls.single, n)
		}
	}
	return cls, nil
}

func identity(names []string) []route.RouteMapper {
	out := make([]route.RouteMapper, len(names))
	for i, n := range names {
		out[i] = route.NewRouteMapper(n, n)
	}
	return out
}

func addUnit(rc *route.RouteContext, ds string, tables ...route.RouteMapper) error {
	_, err := rc.AddUnit(route.NewRouteUnit(route.NewRouteMapper(ds, ds), tables...))
	return err
}

func planRoute(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext) error {
	stmt := rm.Stmt
	names := stmt.AllTableNames()
	cls, err := classifyTables(rm.Snap, names)
	if err != nil {
		return err
	}

	switch {
	case len(names) == 0:
		if stmt.Kind == statement.KindDDL {
			return routeBroadcast(rm, rc, nil)
		}
		srlog.Zero.Debug().Str("data_source", rm.Snap.DefaultDataSource).Msg("statement without tables goes to the default data source")
		return addUnit(rc, rm.Snap.DefaultDataSource)
	case stmt.Kind == statement.KindDDL:
		return routeDDL(rm, rc, cls)
	case len(cls.sharded) > 0:
		return routeSharded(rm, rc, cls)
	case len(cls.single) > 0:
		return routeSingle(rm, rc, cls)
	}
	return routeBroadcast(rm, rc, cls.broadcast)
}

// routeBroadcast sends the statement to every logical data source.
func routeBroadcast(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, tables []string) error {
	for _, ds := range rm.Snap.LogicalDataSources {
		if err := addUnit(rc, ds, identity(tables)...); err != nil {
			return err
		}
	}
	return nil
}

func singleDataSource(snap *rulemgr.Snapshot, single []string) (string, error) {
	var ds string
	for _, t := range single {
		d, _ := snap.SingleTableDataSource(t)
		if ds != "" && d != ds {
			return "", srerror.Newf(srerror.SRUNS_CROSS_DATASOURCE,
				"single tables %s live on different data sources", strings.Join(single, ", "))
		}
		ds = d
	}
	return ds, nil
}

func routeSingle(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, cls tableClasses) error {
	ds, err := singleDataSource(rm.Snap, cls.single)
	if err != nil {
		return err
	}
	srlog.Zero.Debug().Strs("tables", cls.single).Str("data_source", ds).Msg("routing single tables")
	return addUnit(rc, ds, identity(append(cls.single, cls.broadcast...))...)
}

// routeDDL sends schema changes to every node of each table.
func routeDDL(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, cls tableClasses) error {
	for _, t := range cls.sharded {
		tr, _ := rm.Snap.Sharding.TableRule(t)
		for _, n := range tr.DataNodes {
			if err := addUnit(rc, n.DataSource, route.NewRouteMapper(t, n.Table)); err != nil {
				return err
			}
		}
	}
	if len(cls.broadcast) > 0 {
		if err := routeBroadcast(rm, rc, cls.broadcast); err != nil {
			return err
		}
	}
	for _, t := range cls.single {
		ds, _ := rm.Snap.SingleTableDataSource(t)
		if err := addUnit(rc, ds, route.NewRouteMapper(t, t)); err != nil {
			return err
		}
	}
	return nil
}

func routeSharded(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, cls tableClasses) error {
	snap := rm.Snap
	stmt := rm.Stmt
	primary := cls.sharded[0]
	tr, _ := snap.Sharding.TableRule(primary)

	if !snap.Sharding.AreBound(cls.sharded) {
		return srerror.Newf(srerror.SRUNS_CROSS_TABLE,
			"%s over sharded tables %s which are not binding tables", stmt.Kind, strings.Join(cls.sharded, ", "))
	}

	var singleDS string
	if len(cls.single) > 0 {
		var err error
		if singleDS, err = singleDataSource(snap, cls.single); err != nil {
			return err
		}
	}

	var nodes []shrule.DataNode
	var err error
	if stmt.Kind == statement.KindInsert && stmt.InsertSelect == nil {
		nodes, err = routeInsertRows(rm, rc, tr)
	} else {
		nodes, err = routeByConditions(rm, tr)
	}
	if err != nil {
		return err
	}

	for _, n := range nodes {
		tables := []route.RouteMapper{route.NewRouteMapper(primary, n.Table)}
		idx := tr.TableIndex(n.DataSource, n.Table)
		for _, m := range cls.sharded[1:] {
			mr, _ := snap.Sharding.TableRule(m)
			actual := mr.ActualTables(n.DataSource)
			if idx < 0 || idx >= len(actual) {
				return srerror.Newf(srerror.SRCFG_BINDING_MISMATCH,
					"binding table %s has no shard at index %d on %s to match %s", m, idx, n.DataSource, n)
			}
			tables = append(tables, route.NewRouteMapper(m, actual[idx]))
		}
		tables = append(tables, identity(cls.broadcast)...)
		if singleDS != "" {
			if singleDS != n.DataSource {
				return srerror.Newf(srerror.SRUNS_CROSS_DATASOURCE,
					"single tables %s on %s joined with %s routed to %s",
					strings.Join(cls.single, ", "), singleDS, primary, n.DataSource)
			}
			tables = append(tables, identity(cls.single)...)
		}

		srlog.Zero.Debug().
			Str("table", primary).
			Str("data_source", n.DataSource).
			Str("target", n.Table).
			Msg("routing sharded table")
		if err := addUnit(rc, n.DataSource, tables...); err != nil {
			return err
		}
	}
	return nil
}

// conditionsFor resolves the values a sharding column takes in the
// statement. INSERT ... SELECT takes them from the SELECT.
func conditionsFor(rm *rmeta.RoutingMetadataContext, table, column string) (condition.Result, error) {
	stmt := rm.Stmt
	if stmt.Kind == statement.KindInsert && stmt.InsertSelect != nil {
		sharded := rm.Snap.Sharding.ShardedTables(stmt.InsertSelect.TableNames())
		if len(sharded) == 0 {
			return condition.Unresolved(), nil
		}
		return conditionsFor(rm.Nested(stmt.InsertSelect), sharded[0], column)
	}
	return rm.ShardingConditions(table, column)
}

func routeByConditions(rm *rmeta.RoutingMetadataContext, tr *shrule.TableRule) ([]shrule.DataNode, error) {
	dsRes, tblRes := condition.Unresolved(), condition.Unresolved()
	var err error
	if s := tr.DatabaseStrategy; s != nil {
		if dsRes, err = conditionsFor(rm, tr.LogicTable, s.Column); err != nil {
			return nil, err
		}
	}
	if s := tr.TableStrategy; s != nil {
		if tblRes, err = conditionsFor(rm, tr.LogicTable, s.Column); err != nil {
			return nil, err
		}
	}
	return resolveNodes(tr, dsRes, tblRes)
}

// routeInsertRows routes every VALUES row on its own, generating missing
// keys first: the generated key may be the sharding column.
func routeInsertRows(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, tr *shrule.TableRule) ([]shrule.DataNode, error) {
	stmt := rm.Stmt
	rows := len(stmt.InsertRows)
	if rows == 0 {
		rows = 1
	}

	var nodes []shrule.DataNode
	seen := map[shrule.DataNode]struct{}{}
	for row := 0; row < rows; row++ {
		generated := map[string]any{}
		if col := tr.KeyGenerateColumn; col != "" && tr.KeyGenerator != nil {
			gen, err := needsGeneratedKey(rm, row, col)
			if err != nil {
				return nil, err
			}
			if gen {
				key, err := tr.KeyGenerator.NextKey(tr.LogicTable)
				if err != nil {
					return nil, srerror.Newf(srerror.SR_UNEXPECTED, "generate key for %s.%s: %v", tr.LogicTable, col, err)
				}
				generated[strings.ToLower(col)] = key
				rc.AddGeneratedKey(row, col, key)
			}
		}

		dsRes, err := rowConditions(rm, tr, tr.DatabaseStrategy, row, generated)
		if err != nil {
			return nil, err
		}
		tblRes, err := rowConditions(rm, tr, tr.TableStrategy, row, generated)
		if err != nil {
			return nil, err
		}
		matched, err := resolveNodes(tr, dsRes, tblRes)
		if err != nil {
			return nil, err
		}
		if len(matched) != 1 {
			return nil, srerror.Newf(srerror.SRUNS_NO_SHARDING_VALUE,
				"INSERT into %s row %d matches %d data nodes instead of one", tr.LogicTable, row, len(matched))
		}
		n := matched[0]
		rc.RouteRow(row, n.DataSource, n.Table)
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// needsGeneratedKey reports whether the row omits the key column or sets it
// to NULL.
func needsGeneratedKey(rm *rmeta.RoutingMetadataContext, row int, column string) (bool, error) {
	if rm.Stmt.InsertColumnIndex(column) < 0 {
		return true, nil
	}
	v, ok, err := rm.InsertValue(row, column)
	if err != nil {
		return false, err
	}
	return ok && v == nil, nil
}

func rowConditions(rm *rmeta.RoutingMetadataContext, tr *shrule.TableRule, s *shrule.Strategy, row int, generated map[string]any) (condition.Result, error) {
	if s == nil {
		return condition.Unresolved(), nil
	}
	v, ok := generated[strings.ToLower(s.Column)]
	if !ok {
		var err error
		if v, ok, err = rm.InsertValue(row, s.Column); err != nil {
			return condition.Result{}, err
		}
	}
	if !ok || v == nil {
		return condition.Result{}, srerror.Newf(srerror.SRUNS_NO_SHARDING_VALUE,
			"INSERT into %s row %d has no value for sharding column %s", tr.LogicTable, row, s.Column)
	}
	if m := rm.ValueMapper(tr.LogicTable, s.Column); m != nil {
		mapped, err := m(v)
		if err != nil {
			return condition.Result{}, err
		}
		v = mapped
	}
	return condition.Exact(v), nil
}

// resolveNodes intersects the data sources chosen by the database strategy
// with the tables chosen by the table strategy.
func resolveNodes(tr *shrule.TableRule, dsRes, tblRes condition.Result) ([]shrule.DataNode, error) {
	dataSources, err := shardTargets(tr.LogicTable, tr.DatabaseStrategy, tr.ActualDataSources(), dsRes)
	if err != nil {
		return nil, err
	}
	tables, err := shardTargets(tr.LogicTable, tr.TableStrategy, tr.AllActualTables(), tblRes)
	if err != nil {
		return nil, err
	}
	wanted := map[string]struct{}{}
	for _, t := range tables {
		wanted[t] = struct{}{}
	}

	var nodes []shrule.DataNode
	for _, ds := range dataSources {
		for _, t := range tr.ActualTables(ds) {
			if _, ok := wanted[t]; ok {
				nodes = append(nodes, shrule.DataNode{DataSource: ds, Table: t})
			}
		}
	}
	if len(nodes) == 0 {
		return nil, srerror.Newf(srerror.SRCFG_SHARD_OUT_OF_RANGE,
			"no data node of %s lies on data sources %s with tables %s",
			tr.LogicTable, strings.Join(dataSources, ", "), strings.Join(tables, ", "))
	}
	return nodes, nil
}

// shardTargets evaluates one strategy. Without a strategy, or when the
// predicate does not restrict the column, every target is kept. A
// contradictory predicate keeps every target as well: no shard may be
// skipped on a guess.
func shardTargets(table string, s *shrule.Strategy, targets []string, res condition.Result) ([]string, error) {
	if s == nil || res.Unresolved {
		return targets, nil
	}
	if res.Contradiction() {
		srlog.Zero.Debug().Str("table", table).Str("column", s.Column).Msg("contradictory predicate, routing to every target")
		return targets, nil
	}

	member := map[string]struct{}{}
	for _, t := range targets {
		member[t] = struct{}{}
	}
	found := map[string]struct{}{}
	check := func(t string) error {
		if _, ok := member[t]; !ok {
			return srerror.Newf(srerror.SRCFG_SHARD_OUT_OF_RANGE,
				"%s algorithm on %s.%s chose %q, which is not a configured target", s.Algorithm.Type(), table, s.Column, t)
		}
		found[t] = struct{}{}
		return nil
	}

	for _, c := range res.Conditions {
		if c.Range != nil {
			ts, err := s.Algorithm.DoRangeSharding(targets, s.Column, *c.Range)
			if err != nil {
				return nil, errors.Wrapf(err, "route %s", table)
			}
			for _, t := range ts {
				if err := check(t); err != nil {
					return nil, err
				}
			}
			continue
		}
		for _, v := range c.Values {
			t, err := s.Algorithm.DoSharding(targets, s.Column, v)
			if err != nil {
				return nil, errors.Wrapf(err, "route %s", table)
			}
			if err := check(t); err != nil {
				return nil, err
			}
		}
	}

	if len(found) == 0 {
		srlog.Zero.Debug().Str("table", table).Str("column", s.Column).Msg("conditions select no target, routing to every target")
		return targets, nil
	}

	var out []string
	for _, t := range targets {
		if _, ok := found[t]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// decorateReadwriteSplit replaces group names by the physical data source
// chosen for this statement. All units of one group share the choice.
func decorateReadwriteSplit(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, tx *session.TransactionConnectionContext) error {
	readOnly := rm.Stmt.ReadOnly()
	chosen := map[string]string{}
	for i := range rc.Units {
		u := &rc.Units[i]
		g, ok := rm.Snap.ReadwriteSplitting.Group(u.DataSource.Logical)
		if !ok {
			continue
		}
		target, ok := chosen[g.Name]
		if !ok {
			var err error
			if target, err = g.Route(readOnly, tx); err != nil {
				return err
			}
			chosen[g.Name] = target
		}
		u.DataSource.Actual = target
	}
	if !readOnly && tx.InTransaction() {
		tx.MarkWriteRouted()
	}
	return nil
}
