// Package rmeta resolves the column references and values of one statement
// against the active rule snapshot.
package rmeta

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/rulemgr"
	"github.com/apache/shardingsphere-sub091/pkg/srlog"
	"github.com/apache/shardingsphere-sub091/router/condition"
	"github.com/apache/shardingsphere-sub091/router/statement"
)

type RoutingMetadataContext struct {
	Stmt *statement.Statement
	Snap *rulemgr.Snapshot

	// Rels are the tables referenced at this statement level. Columns are
	// always considered in the context of their table, so that
	// SELECT * FROM a JOIN b WHERE a.c1 = 1 AND b.c2 = 2
	// is routed by a.c1 for a and by b.c2 for b.
	Rels map[string]struct{}

	// TableAliases maps a lower-cased alias to its table.
	TableAliases map[string]string

	params []any
}

func NewRoutingMetadataContext(stmt *statement.Statement, snap *rulemgr.Snapshot) *RoutingMetadataContext {
	rm := &RoutingMetadataContext{
		Stmt:         stmt,
		Snap:         snap,
		Rels:         map[string]struct{}{},
		TableAliases: map[string]string{},
		params:       stmt.Params,
	}
	for _, t := range stmt.Tables {
		name := strings.ToLower(t.Name)
		rm.Rels[name] = struct{}{}
		if t.Alias != "" {
			rm.TableAliases[strings.ToLower(t.Alias)] = name
		}
	}
	return rm
}

// Params are shared by the statement and its nested statements.
func (rm *RoutingMetadataContext) Params() []any {
	return rm.params
}

// Nested returns the metadata context of a subquery or INSERT source, bound
// to the same snapshot and parameters. stmt itself is left untouched.
func (rm *RoutingMetadataContext) Nested(stmt *statement.Statement) *RoutingMetadataContext {
	nested := NewRoutingMetadataContext(stmt, rm.Snap)
	if nested.params == nil {
		nested.params = rm.params
	}
	return nested
}

// ResolveRelationByAlias maps a column qualifier to a table. An empty
// qualifier resolves only when the statement references one table.
func (rm *RoutingMetadataContext) ResolveRelationByAlias(alias string) (string, error) {
	if alias == "" {
		if len(rm.Rels) != 1 {
			return "", srerror.New(srerror.SRUNS_CROSS_TABLE, "unqualified column is ambiguous across several tables")
		}
		for t := range rm.Rels {
			return t, nil
		}
	}
	a := strings.ToLower(alias)
	if t, ok := rm.TableAliases[a]; ok {
		return t, nil
	}
	if _, ok := rm.Rels[a]; ok {
		return a, nil
	}
	return "", srerror.Newf(srerror.SRCFG_UNKNOWN_TABLE, "column qualifier %q matches no table of the statement", alias)
}

// bindingMembers returns table plus the tables of this statement bound to it
// that shard on column.
func (rm *RoutingMetadataContext) bindingMembers(table, column string) map[string]struct{} {
	members := map[string]struct{}{table: {}}
	group, ok := rm.Snap.Sharding.BindingGroup(table)
	if !ok {
		return members
	}
	for _, m := range group {
		if _, in := rm.Rels[m]; in && rm.Snap.Sharding.IsShardingColumn(m, column) {
			members[m] = struct{}{}
		}
	}
	return members
}

// ColumnMatcher matches references to column of table. A condition on the
// same column of a bound table of the statement also matches: binding tables
// share their sharding values. Unqualified references match any table of the
// statement.
func (rm *RoutingMetadataContext) ColumnMatcher(table, column string) condition.Matcher {
	table = strings.ToLower(table)
	members := rm.bindingMembers(table, column)
	return func(ref statement.ColumnRef) bool {
		if !strings.EqualFold(ref.Name, column) {
			return false
		}
		if ref.Table == "" {
			_, ok := rm.Rels[table]
			return ok
		}
		resolved, err := rm.ResolveRelationByAlias(ref.Table)
		if err != nil {
			return false
		}
		_, ok := members[resolved]
		return ok
	}
}

// ValueMapper returns the mapping of a plaintext predicate value to its
// stored form for an encrypted column queried by cipher, or nil.
func (rm *RoutingMetadataContext) ValueMapper(table, column string) condition.ValueMapper {
	tr := rm.Snap.Transformer
	if !rm.Snap.Encrypt.IsEncrypted(table, column) || !tr.QueryWithCipher(table, column) {
		return nil
	}
	return func(v any) (any, error) {
		_, mapped, ok, err := tr.QueryValue(table, column, v)
		if err != nil || !ok {
			return v, err
		}
		return mapped, nil
	}
}

// ShardingConditions reduces the WHERE clause of the statement to the values
// column of table can take.
func (rm *RoutingMetadataContext) ShardingConditions(table, column string) (condition.Result, error) {
	return rm.ConditionsOf(rm.Stmt.Where, table, column)
}

// ConditionsOf reduces expr to the values column of table can take.
func (rm *RoutingMetadataContext) ConditionsOf(expr statement.Expr, table, column string) (condition.Result, error) {
	ex := &condition.Extractor{
		Match:  rm.ColumnMatcher(table, column),
		Params: rm.Params(),
		Map:    rm.ValueMapper(table, column),
	}
	res, err := ex.Extract(expr)
	if err != nil {
		return condition.Result{}, err
	}
	srlog.Zero.Debug().
		Str("table", table).
		Str("column", column).
		Str("conditions", res.String()).
		Msg("extracted sharding conditions")
	return res, nil
}

// InsertValue resolves the value of column in INSERT row. ok is false when
// the column is absent from the column list or the value is not a constant
// or parameter.
func (rm *RoutingMetadataContext) InsertValue(row int, column string) (any, bool, error) {
	idx := rm.Stmt.InsertColumnIndex(column)
	if idx < 0 || row >= len(rm.Stmt.InsertRows) || idx >= len(rm.Stmt.InsertRows[row]) {
		return nil, false, nil
	}
	return statement.ValueOf(rm.Stmt.InsertRows[row][idx], rm.Params())
}
