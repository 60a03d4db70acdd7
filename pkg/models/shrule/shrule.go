package shrule

import (
	"fmt"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/keygen"
	"github.com/apache/shardingsphere-sub091/pkg/models/algorithm"
)

// DataNode is one physical table on one data source.
type DataNode struct {
	DataSource string
	Table      string
}

func (n DataNode) String() string {
	return n.DataSource + "." + n.Table
}

// ParseDataNode splits "ds.table".
func ParseDataNode(s string) (DataNode, error) {
	ds, tbl, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || ds == "" || tbl == "" || strings.Contains(tbl, ".") {
		return DataNode{}, fmt.Errorf("data node %q is not of the form <data source>.<table>", s)
	}
	return DataNode{DataSource: ds, Table: tbl}, nil
}

// Strategy binds a sharding column to an algorithm.
type Strategy struct {
	Column    string
	Algorithm algorithm.Algorithm
}

type TableRule struct {
	LogicTable string
	DataNodes  []DataNode

	// A nil strategy routes to every candidate.
	DatabaseStrategy *Strategy
	TableStrategy    *Strategy

	KeyGenerateColumn string
	KeyGenerator      keygen.Generator

	dataSources []string
	tablesByDS  map[string][]string
	allTables   []string
}

// NewTableRule indexes the data nodes of a logical table.
func NewTableRule(logic string, nodes []DataNode) *TableRule {
	tr := &TableRule{
		LogicTable: strings.ToLower(logic),
		DataNodes:  nodes,
		tablesByDS: map[string][]string{},
	}
	seenTable := map[string]struct{}{}
	for _, n := range nodes {
		if _, ok := tr.tablesByDS[n.DataSource]; !ok {
			tr.dataSources = append(tr.dataSources, n.DataSource)
		}
		tr.tablesByDS[n.DataSource] = append(tr.tablesByDS[n.DataSource], n.Table)
		if _, ok := seenTable[n.Table]; !ok {
			seenTable[n.Table] = struct{}{}
			tr.allTables = append(tr.allTables, n.Table)
		}
	}
	return tr
}

// ActualDataSources lists the data sources holding the table, in declaration
// order.
func (tr *TableRule) ActualDataSources() []string {
	return tr.dataSources
}

func (tr *TableRule) ActualTables(ds string) []string {
	return tr.tablesByDS[ds]
}

// AllActualTables lists every distinct physical table name.
func (tr *TableRule) AllActualTables() []string {
	return tr.allTables
}

// TableIndex is the position of table among the physical tables of ds, or
// -1.
func (tr *TableRule) TableIndex(ds, table string) int {
	for i, t := range tr.tablesByDS[ds] {
		if t == table {
			return i
		}
	}
	return -1
}

func (tr *TableRule) IsShardingColumn(column string) bool {
	for _, s := range []*Strategy{tr.DatabaseStrategy, tr.TableStrategy} {
		if s != nil && strings.EqualFold(s.Column, column) {
			return true
		}
	}
	return false
}

// ShardingColumns lists the distinct sharding columns, database first.
func (tr *TableRule) ShardingColumns() []string {
	var out []string
	for _, s := range []*Strategy{tr.DatabaseStrategy, tr.TableStrategy} {
		if s == nil {
			continue
		}
		col := strings.ToLower(s.Column)
		if len(out) == 1 && out[0] == col {
			continue
		}
		out = append(out, col)
	}
	return out
}

type ShardingRule struct {
	Tables          map[string]*TableRule
	BindingGroups   [][]string
	BroadcastTables map[string]struct{}

	bindingIndex map[string]int
}

func NewShardingRule(tables []*TableRule, bindingGroups [][]string, broadcast []string) *ShardingRule {
	r := &ShardingRule{
		Tables:          map[string]*TableRule{},
		BroadcastTables: map[string]struct{}{},
		bindingIndex:    map[string]int{},
	}
	for _, t := range tables {
		r.Tables[t.LogicTable] = t
	}
	for i, g := range bindingGroups {
		group := make([]string, len(g))
		for j, name := range g {
			group[j] = strings.ToLower(strings.TrimSpace(name))
			r.bindingIndex[group[j]] = i
		}
		r.BindingGroups = append(r.BindingGroups, group)
	}
	for _, b := range broadcast {
		r.BroadcastTables[strings.ToLower(b)] = struct{}{}
	}
	return r
}

func (r *ShardingRule) TableRule(name string) (*TableRule, bool) {
	if r == nil {
		return nil, false
	}
	tr, ok := r.Tables[strings.ToLower(name)]
	return tr, ok
}

func (r *ShardingRule) IsSharded(name string) bool {
	_, ok := r.TableRule(name)
	return ok
}

func (r *ShardingRule) IsBroadcast(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.BroadcastTables[strings.ToLower(name)]
	return ok
}

// BindingGroup returns the binding group that contains name.
func (r *ShardingRule) BindingGroup(name string) ([]string, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.bindingIndex[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return r.BindingGroups[i], true
}

// AreBound reports whether all given sharded tables belong to one binding
// group. A single table is trivially bound.
func (r *ShardingRule) AreBound(tables []string) bool {
	if len(tables) <= 1 {
		return true
	}
	first, ok := r.bindingIndex[strings.ToLower(tables[0])]
	if !ok {
		return false
	}
	for _, t := range tables[1:] {
		if i, ok := r.bindingIndex[strings.ToLower(t)]; !ok || i != first {
			return false
		}
	}
	return true
}

// ShardedTables filters names down to the sharded tables, preserving order.
func (r *ShardingRule) ShardedTables(names []string) []string {
	var out []string
	for _, n := range names {
		if r.IsSharded(n) {
			out = append(out, strings.ToLower(n))
		}
	}
	return out
}

func (r *ShardingRule) IsShardingColumn(table, column string) bool {
	tr, ok := r.TableRule(table)
	return ok && tr.IsShardingColumn(column)
}
