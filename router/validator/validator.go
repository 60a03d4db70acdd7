// Package validator rejects statements the router cannot execute correctly.
// Validators never rewrite the statement.
package validator

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/shvalue"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/srlog"
	"github.com/apache/shardingsphere-sub091/router/condition"
	"github.com/apache/shardingsphere-sub091/router/rmeta"
	"github.com/apache/shardingsphere-sub091/router/route"
	"github.com/apache/shardingsphere-sub091/router/statement"
)

type StatementValidator interface {
	// PreValidate runs before routing.
	PreValidate(rm *rmeta.RoutingMetadataContext) error
	// PostValidate inspects the produced route.
	PostValidate(stmt *statement.Statement, rc *route.RouteContext) error
}

// ValidatorFor returns the validator of a statement kind, or nil when the
// kind needs no checks.
func ValidatorFor(kind statement.Kind) StatementValidator {
	switch kind {
	case statement.KindInsert:
		return insertValidator{}
	case statement.KindUpdate:
		return updateValidator{}
	case statement.KindDelete:
		return deleteValidator{}
	case statement.KindSelect:
		return selectValidator{}
	}
	return nil
}

func PreValidate(rm *rmeta.RoutingMetadataContext) error {
	v := ValidatorFor(rm.Stmt.Kind)
	if v == nil {
		return nil
	}
	if err := v.PreValidate(rm); err != nil {
		srlog.Zero.Debug().
			Err(err).
			Str("kind", rm.Stmt.Kind.String()).
			Strs("tables", rm.Stmt.TableNames()).
			Msg("statement rejected before routing")
		return err
	}
	return nil
}

func PostValidate(stmt *statement.Statement, rc *route.RouteContext) error {
	v := ValidatorFor(stmt.Kind)
	if v == nil {
		return nil
	}
	if err := v.PostValidate(stmt, rc); err != nil {
		srlog.Zero.Debug().
			Err(err).
			Str("kind", stmt.Kind.String()).
			Int("units", len(rc.Units)).
			Msg("statement rejected after routing")
		return err
	}
	return nil
}

// checkBound rejects statements over several sharded tables that are not
// all in one binding group.
func checkBound(rm *rmeta.RoutingMetadataContext) error {
	sharded := rm.Snap.Sharding.ShardedTables(rm.Stmt.TableNames())
	if rm.Snap.Sharding.AreBound(sharded) {
		return nil
	}
	return srerror.Newf(srerror.SRUNS_CROSS_TABLE,
		"%s over sharded tables %s which are not binding tables", rm.Stmt.Kind, strings.Join(sharded, ", "))
}

// checkLimit rejects a row count limit that would be applied per shard.
func checkLimit(stmt *statement.Statement, rc *route.RouteContext) error {
	if stmt.Limit == nil || stmt.Limit.Count == nil || len(rc.Units) <= 1 {
		return nil
	}
	return srerror.Newf(srerror.SRUNS_MULTI_SHARD_LIMIT,
		"%s with LIMIT on %s routed to %d targets", stmt.Kind, strings.Join(stmt.TableNames(), ", "), len(rc.Units))
}

// assignmentTable resolves the table an assignment writes to.
func assignmentTable(rm *rmeta.RoutingMetadataContext, a statement.Assignment) (string, bool) {
	if a.Column.Table == "" {
		names := rm.Stmt.TableNames()
		if len(names) == 0 {
			return "", false
		}
		return names[0], true
	}
	t, err := rm.ResolveRelationByAlias(a.Column.Table)
	return t, err == nil
}

type insertValidator struct{}

func (insertValidator) PreValidate(rm *rmeta.RoutingMetadataContext) error {
	stmt := rm.Stmt
	if stmt.InsertSelect == nil {
		if err := checkBound(rm); err != nil {
			return err
		}
	}

	for _, a := range stmt.OnDuplicateKeyUpdate {
		table, ok := assignmentTable(rm, a)
		if ok && rm.Snap.Sharding.IsShardingColumn(table, a.Column.Name) {
			return srerror.Newf(srerror.SRUNS_DUPLICATE_KEY_UPDATE,
				"INSERT ... ON DUPLICATE KEY UPDATE assigns sharding column %s.%s", table, a.Column.Name)
		}
	}

	if stmt.InsertSelect != nil {
		return validateInsertSelect(rm)
	}
	return nil
}

func validateInsertSelect(rm *rmeta.RoutingMetadataContext) error {
	stmt := rm.Stmt
	names := stmt.TableNames()
	if len(names) == 0 {
		return nil
	}
	target := names[0]
	tr, ok := rm.Snap.Sharding.TableRule(target)
	if !ok {
		return nil
	}

	if col := tr.KeyGenerateColumn; col != "" && tr.KeyGenerator != nil {
		if !insertSelectCovers(stmt, col) {
			return srerror.Newf(srerror.SRUNS_MISSING_GENERATED,
				"INSERT ... SELECT into %s must supply generated key column %s", target, col)
		}
	}

	tables := []string{target}
	for _, t := range rm.Snap.Sharding.ShardedTables(stmt.InsertSelect.AllTableNames()) {
		if t != target {
			tables = append(tables, t)
		}
	}
	if !rm.Snap.Sharding.AreBound(tables) {
		return srerror.Newf(srerror.SRUNS_INSERT_SELECT_TABLES,
			"INSERT ... SELECT between %s which are neither the same table nor binding tables", strings.Join(tables, ", "))
	}
	return nil
}

func insertSelectCovers(stmt *statement.Statement, column string) bool {
	if len(stmt.InsertColumns) > 0 {
		return stmt.InsertColumnIndex(column) >= 0
	}
	for _, p := range stmt.InsertSelect.Projection {
		if p == "*" || strings.EqualFold(p, column) {
			return true
		}
		if _, name, ok := strings.Cut(p, "."); ok && (name == "*" || strings.EqualFold(name, column)) {
			return true
		}
	}
	return false
}

func (insertValidator) PostValidate(*statement.Statement, *route.RouteContext) error {
	return nil
}

type updateValidator struct{}

func (updateValidator) PreValidate(rm *rmeta.RoutingMetadataContext) error {
	if err := checkBound(rm); err != nil {
		return err
	}
	for _, a := range rm.Stmt.Assignments {
		table, ok := assignmentTable(rm, a)
		if !ok || !rm.Snap.Sharding.IsShardingColumn(table, a.Column.Name) {
			continue
		}
		if !assignsImpliedValue(rm, table, a) {
			return srerror.Newf(srerror.SRUNS_SHARDING_KEY_UPDATE,
				"UPDATE changes sharding column %s.%s to a value other than the one in WHERE", table, a.Column.Name)
		}
	}
	return nil
}

// assignsImpliedValue reports whether WHERE pins the column to exactly the
// assigned value, by equal constants or the same parameter.
func assignsImpliedValue(rm *rmeta.RoutingMetadataContext, table string, a statement.Assignment) bool {
	match := rm.ColumnMatcher(table, a.Column.Name)
	for _, c := range statement.Conjuncts(rm.Stmt.Where) {
		cmp, ok := c.(statement.Compare)
		if !ok || cmp.Op != "=" {
			continue
		}
		var other statement.Expr
		switch {
		case isColumn(cmp.Left, match):
			other = cmp.Right
		case isColumn(cmp.Right, match):
			other = cmp.Left
		default:
			continue
		}
		if statement.SameValueSource(a.Value, other, rm.Params(), shvalue.Equal) {
			return true
		}
	}
	return false
}

func isColumn(e statement.Expr, match condition.Matcher) bool {
	ref, ok := e.(statement.ColumnRef)
	return ok && match(ref)
}

func (updateValidator) PostValidate(stmt *statement.Statement, rc *route.RouteContext) error {
	return checkLimit(stmt, rc)
}

type deleteValidator struct{}

func (deleteValidator) PreValidate(rm *rmeta.RoutingMetadataContext) error {
	return checkBound(rm)
}

func (deleteValidator) PostValidate(stmt *statement.Statement, rc *route.RouteContext) error {
	return checkLimit(stmt, rc)
}

type selectValidator struct{}

func (selectValidator) PreValidate(rm *rmeta.RoutingMetadataContext) error {
	if err := checkBound(rm); err != nil {
		return err
	}
	return validateSubqueries(rm)
}

// validateSubqueries requires sharded subquery tables to be bound to the
// outer tables, and their resolved sharding values to overlap the outer
// ones.
func validateSubqueries(rm *rmeta.RoutingMetadataContext) error {
	outer := rm.Snap.Sharding.ShardedTables(rm.Stmt.TableNames())
	if len(outer) == 0 {
		return nil
	}
	primary := outer[0]
	tr, _ := rm.Snap.Sharding.TableRule(primary)

	for _, sq := range rm.Stmt.Subqueries {
		inner := rm.Nested(sq)
		sharded := rm.Snap.Sharding.ShardedTables(sq.AllTableNames())
		if len(sharded) == 0 {
			continue
		}
		if !rm.Snap.Sharding.AreBound(append([]string{primary}, sharded...)) {
			return srerror.Newf(srerror.SRUNS_SUBQUERY_MISMATCH,
				"subquery over %s is not bound to %s", strings.Join(sharded, ", "), primary)
		}
		for _, col := range tr.ShardingColumns() {
			outerRes, err := rm.ShardingConditions(primary, col)
			if err != nil {
				return err
			}
			innerRes, err := inner.ShardingConditions(sharded[0], col)
			if err != nil {
				return err
			}
			if disjoint(outerRes, innerRes) {
				return srerror.Newf(srerror.SRUNS_SUBQUERY_MISMATCH,
					"subquery sharding values %s on %s differ from outer values %s", innerRes, col, outerRes)
			}
		}
	}
	return nil
}

func disjoint(a, b condition.Result) bool {
	if a.Unresolved || b.Unresolved || a.Contradiction() || b.Contradiction() {
		return false
	}
	return condition.And(a, b).Contradiction()
}

func (selectValidator) PostValidate(*statement.Statement, *route.RouteContext) error {
	return nil
}
