package qrouter_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/apache/shardingsphere-sub091/pkg/config"
	mockkeygen "github.com/apache/shardingsphere-sub091/pkg/mock/keygen"
	"github.com/apache/shardingsphere-sub091/pkg/models/algorithm"
	"github.com/apache/shardingsphere-sub091/pkg/models/encrypt"
	"github.com/apache/shardingsphere-sub091/pkg/models/rwsplit"
	"github.com/apache/shardingsphere-sub091/pkg/models/shrule"
	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"github.com/apache/shardingsphere-sub091/pkg/rulemgr"
	"github.com/apache/shardingsphere-sub091/pkg/session"
	"github.com/apache/shardingsphere-sub091/router/qrouter"
	"github.com/apache/shardingsphere-sub091/router/route"
	"github.com/apache/shardingsphere-sub091/router/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

func loadRules(t *testing.T) *config.RulesCfg {
	t.Helper()
	cfg, err := config.LoadRulesCfg("../../pkg/config/testdata/rules.yaml")
	require.NoError(t, err)
	cfg.LogLevel = ""
	return cfg
}

func snapshot(t *testing.T) *rulemgr.Snapshot {
	t.Helper()
	snap, err := rulemgr.Build(loadRules(t))
	require.NoError(t, err)
	return snap
}

func tables(names ...string) []statement.TableRef {
	out := make([]statement.TableRef, len(names))
	for i, n := range names {
		out[i] = statement.TableRef{Name: n}
	}
	return out
}

func selectOrder(where statement.Expr, params ...any) *statement.Statement {
	return &statement.Statement{
		Kind:   statement.KindSelect,
		Tables: tables("t_order"),
		Where:  where,
		Params: params,
	}
}

var orderID = statement.Col("", "order_id")

// nodes renders units as logical data source and tables.
func nodes(rc *route.RouteContext) []string {
	var out []string
	for _, u := range rc.Units {
		s := u.DataSource.Logical + ":"
		for i, t := range u.Tables {
			if i > 0 {
				s += ","
			}
			s += t.Actual
		}
		out = append(out, s)
	}
	return out
}

func TestRouteSelect(t *testing.T) {
	snap := snapshot(t)

	for _, tt := range []struct {
		name string
		stmt *statement.Statement
		exp  []string
	}{
		{
			name: "equality",
			stmt: selectOrder(statement.Eq(orderID, statement.Lit(int64(7)))),
			exp:  []string{"ds_1:t_order_3"},
		},
		{
			name: "parameter",
			stmt: selectOrder(statement.Eq(orderID, statement.P(0)), int64(4)),
			exp:  []string{"ds_0:t_order_0"},
		},
		{
			name: "in list",
			stmt: selectOrder(statement.InList(orderID, statement.Lit(int64(1)), statement.Lit(int64(2)), statement.Lit(int64(5)))),
			exp:  []string{"ds_0:t_order_1", "ds_1:t_order_2"},
		},
		{
			name: "or",
			stmt: selectOrder(statement.AnyOf(
				statement.Eq(orderID, statement.Lit(int64(0))),
				statement.Eq(orderID, statement.Lit(int64(3))),
			)),
			exp: []string{"ds_0:t_order_0", "ds_1:t_order_3"},
		},
		{
			name: "or with unresolved side",
			stmt: selectOrder(statement.AnyOf(
				statement.Eq(orderID, statement.Lit(int64(0))),
				statement.Eq(statement.Col("", "status"), statement.Lit("x")),
			)),
			exp: []string{"ds_0:t_order_0", "ds_0:t_order_1", "ds_1:t_order_2", "ds_1:t_order_3"},
		},
		{
			name: "between",
			stmt: selectOrder(statement.Between{Expr: orderID, Low: statement.Lit(int64(1)), High: statement.Lit(int64(2))}),
			exp:  []string{"ds_0:t_order_1", "ds_1:t_order_2"},
		},
		{
			name: "wide range",
			stmt: selectOrder(statement.Cmp(">", orderID, statement.Lit(int64(100)))),
			exp:  []string{"ds_0:t_order_0", "ds_0:t_order_1", "ds_1:t_order_2", "ds_1:t_order_3"},
		},
		{
			name: "between int64 limits",
			stmt: selectOrder(statement.Between{
				Expr: orderID,
				Low:  statement.Lit(int64(math.MinInt64)),
				High: statement.Lit(int64(math.MaxInt64)),
			}),
			exp: []string{"ds_0:t_order_0", "ds_0:t_order_1", "ds_1:t_order_2", "ds_1:t_order_3"},
		},
		{
			name: "range without integers",
			stmt: selectOrder(statement.AllOf(
				statement.Cmp(">", orderID, statement.Lit(int64(5))),
				statement.Cmp("<", orderID, statement.Lit(int64(6))),
			)),
			exp: []string{"ds_0:t_order_0", "ds_0:t_order_1", "ds_1:t_order_2", "ds_1:t_order_3"},
		},
		{
			name: "contradiction",
			stmt: selectOrder(statement.AllOf(
				statement.Eq(orderID, statement.Lit(int64(1))),
				statement.Eq(orderID, statement.Lit(int64(2))),
			)),
			exp: []string{"ds_0:t_order_0", "ds_0:t_order_1", "ds_1:t_order_2", "ds_1:t_order_3"},
		},
		{
			name: "no predicate",
			stmt: selectOrder(nil),
			exp:  []string{"ds_0:t_order_0", "ds_0:t_order_1", "ds_1:t_order_2", "ds_1:t_order_3"},
		},
		{
			name: "binding join",
			stmt: &statement.Statement{
				Kind:   statement.KindSelect,
				Tables: []statement.TableRef{{Name: "t_order", Alias: "o"}, {Name: "t_order_item", Alias: "i"}},
				Where: statement.AllOf(
					statement.Eq(statement.Col("o", "order_id"), statement.Col("i", "order_id")),
					statement.Eq(statement.Col("i", "order_id"), statement.Lit(int64(2))),
				),
			},
			exp: []string{"ds_1:t_order_2,t_order_item_2"},
		},
		{
			name: "with broadcast table",
			stmt: &statement.Statement{
				Kind:   statement.KindSelect,
				Tables: tables("t_order", "t_dict"),
				Where:  statement.Eq(orderID, statement.Lit(int64(1))),
			},
			exp: []string{"ds_0:t_order_1,t_dict"},
		},
		{
			name: "with single table on the same data source",
			stmt: &statement.Statement{
				Kind:   statement.KindSelect,
				Tables: tables("t_order", "t_config"),
				Where:  statement.Eq(orderID, statement.Lit(int64(3))),
			},
			exp: []string{"ds_1:t_order_3,t_config"},
		},
		{
			name: "subquery on binding table",
			stmt: &statement.Statement{
				Kind:   statement.KindSelect,
				Tables: tables("t_order"),
				Where:  statement.Eq(orderID, statement.Lit(int64(1))),
				Subqueries: []*statement.Statement{{
					Kind:   statement.KindSelect,
					Tables: tables("t_order_item"),
				}},
			},
			exp: []string{"ds_0:t_order_1,t_order_item_1"},
		},
		{
			name: "broadcast only",
			stmt: &statement.Statement{Kind: statement.KindSelect, Tables: tables("t_dict")},
			exp:  []string{"ds_0:t_dict", "ds_1:t_dict"},
		},
		{
			name: "single only",
			stmt: &statement.Statement{Kind: statement.KindSelect, Tables: tables("T_CONFIG", "t_dict")},
			exp:  []string{"ds_1:t_config,t_dict"},
		},
		{
			name: "no tables",
			stmt: &statement.Statement{Kind: statement.KindSelect},
			exp:  []string{"ds_0:"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := qrouter.Route(context.Background(), snap, tt.stmt, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.exp, nodes(rc))
		})
	}
}

func TestRouteDecoratesReplicas(t *testing.T) {
	assert := assert.New(t)
	snap := snapshot(t)

	rc, err := qrouter.Route(context.Background(), snap, selectOrder(nil), nil)
	require.NoError(t, err)
	require.Len(t, rc.Units, 4)

	// One replica per group for the whole statement.
	assert.Equal(rc.Units[0].DataSource.Actual, rc.Units[1].DataSource.Actual)
	assert.Equal(rc.Units[2].DataSource.Actual, rc.Units[3].DataSource.Actual)
	assert.Contains([]string{"ds_0_replica_0", "ds_0_replica_1"}, rc.Units[0].DataSource.Actual)
	assert.Contains([]string{"ds_1_replica_0", "ds_1_replica_1"}, rc.Units[2].DataSource.Actual)

	locked := selectOrder(statement.Eq(orderID, statement.Lit(int64(1))))
	locked.LockForUpdate = true
	rc, err = qrouter.Route(context.Background(), snap, locked, nil)
	require.NoError(t, err)
	assert.Equal([]string{"ds_0"}, rc.ActualDataSources())

	rc, err = qrouter.Route(context.Background(), snap, &statement.Statement{Kind: statement.KindOther}, nil)
	require.NoError(t, err)
	assert.Equal([]string{"ds_0"}, rc.ActualDataSources())
}

func TestRouteIsStable(t *testing.T) {
	snap := snapshot(t)
	stmt := selectOrder(statement.InList(orderID, statement.Lit(int64(3)), statement.Lit(int64(0)), statement.Lit(int64(2))))

	first, err := qrouter.Route(context.Background(), snap, stmt, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := qrouter.Route(context.Background(), snap, stmt, nil)
		require.NoError(t, err)
		assert.Equal(t, nodes(first), nodes(again))
	}
}

func TestRouteInsert(t *testing.T) {
	assert := assert.New(t)
	snap := snapshot(t)

	rc, err := qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:          statement.KindInsert,
		Tables:        tables("t_order"),
		InsertColumns: []string{"order_id", "status"},
		InsertRows: [][]statement.Expr{
			statement.Values(int64(5), "a"),
			{statement.P(0), statement.Lit("b")},
			statement.Values(int64(9), "c"),
		},
		Params: []any{int64(6)},
	}, nil)
	require.NoError(t, err)

	assert.Equal([]string{"ds_0:t_order_1", "ds_1:t_order_2"}, nodes(rc))
	assert.Equal([]string{"ds_0", "ds_1"}, rc.ActualDataSources())
	assert.Equal([]route.RowRoute{
		{Row: 0, DataSource: "ds_0", Table: "t_order_1"},
		{Row: 1, DataSource: "ds_1", Table: "t_order_2"},
		{Row: 2, DataSource: "ds_0", Table: "t_order_1"},
	}, rc.InsertRowRoutes)
	assert.Empty(rc.GeneratedKeys)
}

func TestRouteInsertGeneratesKey(t *testing.T) {
	assert := assert.New(t)
	snap := snapshot(t)

	rc, err := qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:          statement.KindInsert,
		Tables:        tables("t_order"),
		InsertColumns: []string{"status"},
		InsertRows:    [][]statement.Expr{statement.Values("a")},
	}, nil)
	require.NoError(t, err)

	require.Len(t, rc.GeneratedKeys, 1)
	key := rc.GeneratedKeys[0]
	assert.Equal("order_id", key.Column)
	id, ok := key.Value.(int64)
	require.True(t, ok)

	require.Len(t, rc.InsertRowRoutes, 1)
	assert.Equal(fmt.Sprintf("t_order_%d", id%4), rc.InsertRowRoutes[0].Table)
}

func TestRouteInsertErrors(t *testing.T) {
	snap := snapshot(t)

	for _, tt := range []struct {
		name string
		stmt *statement.Statement
		code string
	}{
		{
			name: "sharding value is an expression",
			stmt: &statement.Statement{
				Kind:          statement.KindInsert,
				Tables:        tables("t_order_item"),
				InsertColumns: []string{"order_id"},
				InsertRows:    [][]statement.Expr{{statement.Opaque{Text: "nextval('s')"}}},
			},
			code: srerror.SRUNS_NO_SHARDING_VALUE,
		},
		{
			name: "sharding column missing without generator",
			stmt: &statement.Statement{
				Kind:          statement.KindInsert,
				Tables:        tables("t_order_item"),
				InsertColumns: []string{"item_id"},
				InsertRows:    [][]statement.Expr{statement.Values(int64(1))},
			},
			code: srerror.SRUNS_NO_SHARDING_VALUE,
		},
		{
			name: "sharding column is not a number",
			stmt: &statement.Statement{
				Kind:          statement.KindInsert,
				Tables:        tables("t_order_item"),
				InsertColumns: []string{"order_id"},
				InsertRows:    [][]statement.Expr{statement.Values("abc")},
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qrouter.Route(context.Background(), snap, tt.stmt, nil)
			require.Error(t, err)
			if tt.code != "" {
				assert.True(t, srerror.HasCode(err, tt.code), "got %v", err)
			}
		})
	}
}

// mockedSnapshot routes t_order by MOD over two data sources and four
// tables, with a mocked key generator.
func mockedSnapshot(t *testing.T, gen *mockkeygen.MockGenerator) *rulemgr.Snapshot {
	t.Helper()
	dsMod, err := algorithm.New(algorithm.TypeMod, map[string]string{"sharding-count": "2"})
	require.NoError(t, err)
	tblMod, err := algorithm.New(algorithm.TypeMod, map[string]string{"sharding-count": "4"})
	require.NoError(t, err)

	tr := shrule.NewTableRule("t_order", []shrule.DataNode{
		{DataSource: "ds_0", Table: "t_order_0"},
		{DataSource: "ds_0", Table: "t_order_2"},
		{DataSource: "ds_1", Table: "t_order_1"},
		{DataSource: "ds_1", Table: "t_order_3"},
	})
	tr.DatabaseStrategy = &shrule.Strategy{Column: "user_id", Algorithm: dsMod}
	tr.TableStrategy = &shrule.Strategy{Column: "order_id", Algorithm: tblMod}
	tr.KeyGenerateColumn = "order_id"
	tr.KeyGenerator = gen

	enc := encrypt.NewRule()
	return &rulemgr.Snapshot{
		Sharding:           shrule.NewShardingRule([]*shrule.TableRule{tr}, nil, nil),
		Encrypt:            enc,
		Transformer:        encrypt.NewTransformer(enc),
		ReadwriteSplitting: rwsplit.NewRule(),
		SingleTables:       map[string]string{},
		DataSources:        []string{"ds_0", "ds_1"},
		LogicalDataSources: []string{"ds_0", "ds_1"},
		DefaultDataSource:  "ds_0",
	}
}

func TestRouteInsertKeyBeforeStrategy(t *testing.T) {
	assert := assert.New(t)

	ctrl := gomock.NewController(t)
	gen := mockkeygen.NewMockGenerator(ctrl)
	gen.EXPECT().NextKey("t_order").Return(int64(10), nil)
	gen.EXPECT().NextKey("t_order").Return(int64(13), nil)

	snap := mockedSnapshot(t, gen)
	rc, err := qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:          statement.KindInsert,
		Tables:        tables("t_order"),
		InsertColumns: []string{"user_id", "order_id"},
		InsertRows: [][]statement.Expr{
			statement.Values(int64(2), nil),
			statement.Values(int64(3), int64(7)),
			statement.Values(int64(5), nil),
		},
	}, nil)
	require.NoError(t, err)

	assert.Equal([]route.GeneratedKey{
		{Row: 0, Column: "order_id", Value: int64(10)},
		{Row: 2, Column: "order_id", Value: int64(13)},
	}, rc.GeneratedKeys)
	assert.Equal([]route.RowRoute{
		{Row: 0, DataSource: "ds_0", Table: "t_order_2"},
		{Row: 1, DataSource: "ds_1", Table: "t_order_3"},
		{Row: 2, DataSource: "ds_1", Table: "t_order_1"},
	}, rc.InsertRowRoutes)
	assert.Equal([]string{"ds_0:t_order_2", "ds_1:t_order_1", "ds_1:t_order_3"}, nodes(rc))
}

func TestRouteDatabaseAndTableStrategies(t *testing.T) {
	ctrl := gomock.NewController(t)
	snap := mockedSnapshot(t, mockkeygen.NewMockGenerator(ctrl))

	for _, tt := range []struct {
		name string
		expr statement.Expr
		exp  []string
		code string
	}{
		{
			name: "both columns",
			expr: statement.AllOf(statement.Eq(statement.Col("", "user_id"), statement.Lit(int64(1))), statement.Eq(orderID, statement.Lit(int64(3)))),
			exp:  []string{"ds_1:t_order_3"},
		},
		{
			name: "database column only",
			expr: statement.Eq(statement.Col("", "user_id"), statement.Lit(int64(4))),
			exp:  []string{"ds_0:t_order_0", "ds_0:t_order_2"},
		},
		{
			name: "table column only",
			expr: statement.Eq(orderID, statement.Lit(int64(2))),
			exp:  []string{"ds_0:t_order_2"},
		},
		{
			name: "columns disagree with the layout",
			expr: statement.AllOf(statement.Eq(statement.Col("", "user_id"), statement.Lit(int64(0))), statement.Eq(orderID, statement.Lit(int64(1)))),
			code: srerror.SRCFG_SHARD_OUT_OF_RANGE,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := qrouter.Route(context.Background(), snap, selectOrder(tt.expr), nil)
			if tt.code != "" {
				assert.True(t, srerror.HasCode(err, tt.code), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.exp, nodes(rc))
		})
	}
}

func TestRouteBindingMismatch(t *testing.T) {
	cfg := loadRules(t)
	cfg.Sharding.Tables["t_order_item"].ActualDataNodes = []string{"ds_0.t_order_item_${0..1}", "ds_1.t_order_item_2"}
	cfg.Sharding.BindingTables = nil
	snap, err := rulemgr.Build(cfg)
	require.NoError(t, err)

	// Bind the tables after building: the layouts no longer line up.
	snap.Sharding = shrule.NewShardingRule(
		[]*shrule.TableRule{snap.Sharding.Tables["t_order"], snap.Sharding.Tables["t_order_item"]},
		[][]string{{"t_order", "t_order_item"}}, []string{"t_dict"})

	_, err = qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:   statement.KindSelect,
		Tables: tables("t_order", "t_order_item"),
		Where:  statement.Eq(statement.Col("t_order", "order_id"), statement.Lit(int64(3))),
	}, nil)
	assert.True(t, srerror.HasCode(err, srerror.SRCFG_BINDING_MISMATCH), "got %v", err)
}

func TestRouteErrors(t *testing.T) {
	snap := snapshot(t)

	for _, tt := range []struct {
		name string
		stmt *statement.Statement
		code string
	}{
		{
			name: "unknown table",
			stmt: &statement.Statement{Kind: statement.KindSelect, Tables: tables("t_missing")},
			code: srerror.SRCFG_UNKNOWN_TABLE,
		},
		{
			name: "unknown table in subquery",
			stmt: &statement.Statement{
				Kind:       statement.KindSelect,
				Tables:     tables("t_order"),
				Subqueries: []*statement.Statement{{Kind: statement.KindSelect, Tables: tables("t_missing")}},
			},
			code: srerror.SRCFG_UNKNOWN_TABLE,
		},
		{
			name: "single tables on two data sources",
			stmt: &statement.Statement{Kind: statement.KindSelect, Tables: tables("t_config", "t_user")},
			code: srerror.SRUNS_CROSS_DATASOURCE,
		},
		{
			name: "single table away from the shard",
			stmt: &statement.Statement{
				Kind:   statement.KindSelect,
				Tables: tables("t_order", "t_config"),
				Where:  statement.Eq(orderID, statement.Lit(int64(1))),
			},
			code: srerror.SRUNS_CROSS_DATASOURCE,
		},
		{
			name: "delete with limit on many shards",
			stmt: &statement.Statement{
				Kind:   statement.KindDelete,
				Tables: tables("t_order"),
				Limit:  &statement.Limit{Count: statement.Lit(int64(1))},
			},
			code: srerror.SRUNS_MULTI_SHARD_LIMIT,
		},
		{
			name: "sharding value of wrong type",
			stmt: selectOrder(statement.Eq(orderID, statement.Lit("abc"))),
			code: srerror.SRUNS_BAD_SHARDING_VALUE,
		},
		{
			name: "update sharding key",
			stmt: &statement.Statement{
				Kind:        statement.KindUpdate,
				Tables:      tables("t_order"),
				Assignments: []statement.Assignment{{Column: orderID, Value: statement.Lit(int64(2))}},
				Where:       statement.Eq(orderID, statement.Lit(int64(1))),
			},
			code: srerror.SRUNS_SHARDING_KEY_UPDATE,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qrouter.Route(context.Background(), snap, tt.stmt, nil)
			assert.True(t, srerror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestRouteDeleteWithLimitOnOneShard(t *testing.T) {
	rc, err := qrouter.Route(context.Background(), snapshot(t), &statement.Statement{
		Kind:   statement.KindDelete,
		Tables: tables("t_order"),
		Where:  statement.Eq(orderID, statement.Lit(int64(1))),
		Limit:  &statement.Limit{Count: statement.Lit(int64(1))},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ds_0:t_order_1"}, nodes(rc))
	assert.Equal(t, []string{"ds_0"}, rc.ActualDataSources())
}

func TestRouteDDL(t *testing.T) {
	rc, err := qrouter.Route(context.Background(), snapshot(t), &statement.Statement{
		Kind:   statement.KindDDL,
		Tables: tables("t_order", "t_dict"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ds_0:t_dict", "ds_0:t_order_0", "ds_0:t_order_1",
		"ds_1:t_dict", "ds_1:t_order_2", "ds_1:t_order_3",
	}, nodes(rc))

	rc, err = qrouter.Route(context.Background(), snapshot(t), &statement.Statement{Kind: statement.KindDDL}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ds_0", "ds_1"}, rc.ActualDataSources())
}

func TestRouteEncrypted(t *testing.T) {
	assert := assert.New(t)
	snap := snapshot(t)

	cipher, err := snap.Transformer.EncryptForWrite("t_user", "phone", []any{"13800000000"})
	require.NoError(t, err)
	assisted, err := snap.Transformer.AssistedQueryValue("t_user", "phone", "13800000000")
	require.NoError(t, err)

	rc, err := qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:          statement.KindInsert,
		Tables:        tables("t_user"),
		InsertColumns: []string{"id", "phone"},
		InsertRows:    [][]statement.Expr{{statement.Lit(int64(1)), statement.P(0)}},
		Params:        []any{"13800000000"},
	}, nil)
	require.NoError(t, err)
	assert.Equal([]string{"ds_0:t_user"}, nodes(rc))
	assert.Equal([]route.Rewrite{
		{Clause: route.ClauseValues, Position: 0, Table: "t_user", LogicColumn: "phone", Column: "phone_cipher", Value: cipher[0]},
		{Clause: route.ClauseValues, Position: 0, Table: "t_user", LogicColumn: "phone", Column: "phone_assisted", Value: assisted},
	}, rc.Rewrites)

	rc, err = qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:   statement.KindSelect,
		Tables: []statement.TableRef{{Name: "t_user", Alias: "u"}},
		Where: statement.AllOf(
			statement.Eq(statement.Col("u", "phone"), statement.Lit("13800000000")),
			statement.Eq(statement.Col("u", "name"), statement.Lit("bob")),
		),
	}, nil)
	require.NoError(t, err)
	assert.Equal([]route.Rewrite{
		{Clause: route.ClauseWhere, Position: 0, Table: "t_user", LogicColumn: "phone", Column: "phone_assisted", Value: assisted},
	}, rc.Rewrites)

	rc, err = qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:        statement.KindUpdate,
		Tables:      tables("t_user"),
		Assignments: []statement.Assignment{{Column: statement.Col("", "phone"), Value: statement.Lit(nil)}},
		Where:       statement.Eq(statement.Col("", "id"), statement.Lit(int64(1))),
	}, nil)
	require.NoError(t, err)
	assert.Equal([]route.Rewrite{
		{Clause: route.ClauseSet, Position: 0, Table: "t_user", LogicColumn: "phone", Column: "phone_cipher", Value: nil},
		{Clause: route.ClauseSet, Position: 0, Table: "t_user", LogicColumn: "phone", Column: "phone_assisted", Value: nil},
	}, rc.Rewrites)
}

func TestRouteReadWriteSplitInTransaction(t *testing.T) {
	assert := assert.New(t)
	snap := snapshot(t)

	tx := session.NewTransactionConnectionContext()
	tx.Begin()

	read := selectOrder(statement.Eq(orderID, statement.Lit(int64(1))))

	// FIXED: the first read pins a replica for the transaction.
	rc, err := qrouter.Route(context.Background(), snap, read, tx)
	require.NoError(t, err)
	pinned := rc.Units[0].DataSource.Actual
	assert.Contains([]string{"ds_0_replica_0", "ds_0_replica_1"}, pinned)
	for i := 0; i < 3; i++ {
		rc, err = qrouter.Route(context.Background(), snap, read, tx)
		require.NoError(t, err)
		assert.Equal(pinned, rc.Units[0].DataSource.Actual)
	}

	rc, err = qrouter.Route(context.Background(), snap, &statement.Statement{
		Kind:        statement.KindUpdate,
		Tables:      tables("t_order"),
		Assignments: []statement.Assignment{{Column: statement.Col("", "status"), Value: statement.Lit("x")}},
		Where:       statement.Eq(orderID, statement.Lit(int64(1))),
	}, tx)
	require.NoError(t, err)
	assert.Equal([]string{"ds_0"}, rc.ActualDataSources())
	assert.True(tx.WriteRouted())

	// Read your writes.
	rc, err = qrouter.Route(context.Background(), snap, read, tx)
	require.NoError(t, err)
	assert.Equal([]string{"ds_0"}, rc.ActualDataSources())

	tx.Commit()
	assert.False(tx.WriteRouted())
	rc, err = qrouter.Route(context.Background(), snap, read, tx)
	require.NoError(t, err)
	assert.NotEqual("ds_0", rc.Units[0].DataSource.Actual)
}

func TestRouteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qrouter.Route(ctx, snapshot(t), selectOrder(nil), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProxyQrouter(t *testing.T) {
	assert := assert.New(t)

	_, err := qrouter.NewQrouter(nil)
	assert.Error(err)

	empty, err := qrouter.NewQrouter(&rulemgr.RulesMgrImpl{})
	require.NoError(t, err)
	_, err = empty.Route(context.Background(), selectOrder(nil), nil)
	assert.Error(err)

	mgr, err := rulemgr.NewMgr(loadRules(t))
	require.NoError(t, err)
	qr, err := qrouter.NewQrouter(mgr)
	require.NoError(t, err)
	assert.Same(mgr, qr.Mgr())

	rc, err := qr.Route(context.Background(), selectOrder(statement.Eq(orderID, statement.Lit(int64(7)))), nil)
	require.NoError(t, err)
	assert.Equal([]string{"ds_1:t_order_3"}, nodes(rc))
}

func TestRouteLeavesStatementUntouched(t *testing.T) {
	snap := snapshot(t)
	sub := &statement.Statement{Kind: statement.KindSelect, Tables: tables("t_order_item")}
	stmt := &statement.Statement{
		Kind:       statement.KindSelect,
		Tables:     tables("t_order"),
		Where:      statement.Eq(orderID, statement.P(0)),
		Params:     []any{int64(1)},
		Subqueries: []*statement.Statement{sub},
	}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			rc, err := qrouter.Route(context.Background(), snap, stmt, nil)
			if err != nil {
				return err
			}
			if got := nodes(rc); len(got) != 1 || got[0] != "ds_0:t_order_1,t_order_item_1" {
				return fmt.Errorf("unexpected route %v", got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Nil(t, sub.Params)
}
