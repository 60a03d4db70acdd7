package qrouter

import (
	"strings"

	"github.com/apache/shardingsphere-sub091/router/rmeta"
	"github.com/apache/shardingsphere-sub091/router/route"
	"github.com/apache/shardingsphere-sub091/router/statement"
)

// recordEncryptRewrites lists the stored values that replace plaintext in
// written values and in predicates on encrypted columns.
func recordEncryptRewrites(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext) error {
	stmt := rm.Stmt
	names := stmt.TableNames()

	switch stmt.Kind {
	case statement.KindInsert:
		if len(names) == 0 {
			break
		}
		table := names[0]
		for ci, col := range stmt.InsertColumns {
			if !rm.Snap.Encrypt.IsEncrypted(table, col) {
				continue
			}
			for row, values := range stmt.InsertRows {
				if ci >= len(values) {
					continue
				}
				if err := rewriteWritten(rm, rc, route.ClauseValues, row, table, col, values[ci]); err != nil {
					return err
				}
			}
		}
		if err := rewriteAssignments(rm, rc, route.ClauseOnDuplicate, stmt.OnDuplicateKeyUpdate); err != nil {
			return err
		}
	case statement.KindUpdate:
		if err := rewriteAssignments(rm, rc, route.ClauseSet, stmt.Assignments); err != nil {
			return err
		}
	}

	pos := 0
	if err := rewritePredicates(rm, rc, stmt.Where, &pos); err != nil {
		return err
	}
	for _, nested := range stmt.Nested() {
		if err := rewritePredicates(rm.Nested(nested), rc, nested.Where, &pos); err != nil {
			return err
		}
	}
	return nil
}

func rewriteAssignments(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, clause route.Clause, assignments []statement.Assignment) error {
	for i, a := range assignments {
		table, ok := encryptedTable(rm, a.Column)
		if !ok {
			continue
		}
		if err := rewriteWritten(rm, rc, clause, i, table, a.Column.Name, a.Value); err != nil {
			return err
		}
	}
	return nil
}

// rewriteWritten records the cipher value and, when configured, the
// assisted query value of one written value. Expressions that are not
// constants are left to the database.
func rewriteWritten(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, clause route.Clause, pos int, table, column string, expr statement.Expr) error {
	v, ok, err := statement.ValueOf(expr, rm.Params())
	if err != nil || !ok {
		return err
	}
	col, _ := rm.Snap.Encrypt.Column(table, column)
	tr := rm.Snap.Transformer

	cipher, err := tr.EncryptForWrite(table, column, []any{v})
	if err != nil {
		return err
	}
	rc.AddRewrite(route.Rewrite{
		Clause:      clause,
		Position:    pos,
		Table:       table,
		LogicColumn: strings.ToLower(column),
		Column:      col.CipherColumn,
		Value:       cipher[0],
	})

	if col.AssistedQueryColumn == "" {
		return nil
	}
	assisted, err := tr.AssistedQueryValue(table, column, v)
	if err != nil {
		return err
	}
	rc.AddRewrite(route.Rewrite{
		Clause:      clause,
		Position:    pos,
		Table:       table,
		LogicColumn: strings.ToLower(column),
		Column:      col.AssistedQueryColumn,
		Value:       assisted,
	})
	return nil
}

// encryptedTable finds the table of an encrypted column reference. An
// unqualified reference belongs to the first statement table encrypting a
// column of that name.
func encryptedTable(rm *rmeta.RoutingMetadataContext, ref statement.ColumnRef) (string, bool) {
	if ref.Table != "" {
		t, err := rm.ResolveRelationByAlias(ref.Table)
		return t, err == nil && rm.Snap.Encrypt.IsEncrypted(t, ref.Name)
	}
	for _, t := range rm.Stmt.TableNames() {
		if rm.Snap.Encrypt.IsEncrypted(t, ref.Name) {
			return t, true
		}
	}
	return "", false
}

func rewritePredicates(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, expr statement.Expr, pos *int) error {
	switch v := expr.(type) {
	case statement.And:
		if err := rewritePredicates(rm, rc, v.Left, pos); err != nil {
			return err
		}
		return rewritePredicates(rm, rc, v.Right, pos)
	case statement.Or:
		if err := rewritePredicates(rm, rc, v.Left, pos); err != nil {
			return err
		}
		return rewritePredicates(rm, rc, v.Right, pos)
	case statement.Not:
		return rewritePredicates(rm, rc, v.Arg, pos)
	case statement.Compare:
		if ref, ok := v.Left.(statement.ColumnRef); ok {
			return rewritePredicate(rm, rc, ref, v.Right, pos)
		}
		if ref, ok := v.Right.(statement.ColumnRef); ok {
			return rewritePredicate(rm, rc, ref, v.Left, pos)
		}
	case statement.In:
		ref, ok := v.Expr.(statement.ColumnRef)
		if !ok {
			return nil
		}
		for _, item := range v.List {
			if err := rewritePredicate(rm, rc, ref, item, pos); err != nil {
				return err
			}
		}
	}
	return nil
}

func rewritePredicate(rm *rmeta.RoutingMetadataContext, rc *route.RouteContext, ref statement.ColumnRef, expr statement.Expr, pos *int) error {
	table, ok := encryptedTable(rm, ref)
	if !ok {
		return nil
	}
	v, ok, err := statement.ValueOf(expr, rm.Params())
	if err != nil || !ok || v == nil {
		return err
	}
	physical, stored, ok, err := rm.Snap.Transformer.QueryValue(table, ref.Name, v)
	if err != nil || !ok {
		return err
	}
	rc.AddRewrite(route.Rewrite{
		Clause:      route.ClauseWhere,
		Position:    *pos,
		Table:       table,
		LogicColumn: strings.ToLower(ref.Name),
		Column:      physical,
		Value:       stored,
	})
	*pos++
	return nil
}
