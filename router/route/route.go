// Package route holds the result of routing one statement: which physical
// data sources and tables it runs against.
package route

import (
	"fmt"
	"strings"

	"github.com/apache/shardingsphere-sub091/pkg/models/srerror"
	"golang.org/x/exp/slices"
)

// RouteMapper pairs a logical name with the physical name it resolved to.
type RouteMapper struct {
	Logical string
	Actual  string
}

func NewRouteMapper(logical, actual string) RouteMapper {
	return RouteMapper{Logical: logical, Actual: actual}
}

func (m RouteMapper) String() string {
	if m.Logical == m.Actual {
		return m.Actual
	}
	return m.Logical + " -> " + m.Actual
}

// RouteUnit is one physical data source with the tables to touch there.
type RouteUnit struct {
	DataSource RouteMapper
	Tables     []RouteMapper
}

func NewRouteUnit(ds RouteMapper, tables ...RouteMapper) RouteUnit {
	return RouteUnit{DataSource: ds, Tables: tables}
}

// ActualTable returns the physical table a logical table maps to in u.
func (u RouteUnit) ActualTable(logical string) (string, bool) {
	for _, t := range u.Tables {
		if strings.EqualFold(t.Logical, logical) {
			return t.Actual, true
		}
	}
	return "", false
}

func (u RouteUnit) key() string {
	var sb strings.Builder
	sb.WriteString(u.DataSource.Logical)
	sb.WriteByte('/')
	sb.WriteString(u.DataSource.Actual)
	for _, t := range u.Tables {
		sb.WriteByte('|')
		sb.WriteString(t.Logical)
		sb.WriteByte('=')
		sb.WriteString(t.Actual)
	}
	return sb.String()
}

func (u RouteUnit) tablesKey() string {
	names := make([]string, len(u.Tables))
	for i, t := range u.Tables {
		names[i] = t.Actual
	}
	return strings.Join(names, ",")
}

// RowRoute is the data node one INSERT row was routed to. DataSource is the
// logical data source.
type RowRoute struct {
	Row        int
	DataSource string
	Table      string
}

// GeneratedKey is a key assigned by the router to an INSERT row that did not
// supply one.
type GeneratedKey struct {
	Row    int
	Column string
	Value  any
}

type Clause string

const (
	ClauseValues      = Clause("VALUES")
	ClauseSet         = Clause("SET")
	ClauseWhere       = Clause("WHERE")
	ClauseOnDuplicate = Clause("ON DUPLICATE KEY UPDATE")
)

// Rewrite replaces one logical plaintext value with its stored form in a
// physical column. Position is the INSERT row for VALUES and the occurrence
// order otherwise.
type Rewrite struct {
	Clause      Clause
	Position    int
	Table       string
	LogicColumn string
	Column      string
	Value       any
}

type RouteContext struct {
	Units           []RouteUnit
	InsertRowRoutes []RowRoute
	GeneratedKeys   []GeneratedKey
	Rewrites        []Rewrite

	seen map[string]struct{}
}

func NewRouteContext() *RouteContext {
	return &RouteContext{seen: map[string]struct{}{}}
}

// AddUnit appends u unless an identical unit is already present. A unit
// mapping one logical table twice is rejected.
func (rc *RouteContext) AddUnit(u RouteUnit) (bool, error) {
	logical := map[string]struct{}{}
	for _, t := range u.Tables {
		l := strings.ToLower(t.Logical)
		if _, ok := logical[l]; ok {
			return false, srerror.Newf(srerror.SR_UNEXPECTED,
				"route unit on %s maps logical table %s more than once", u.DataSource.Actual, t.Logical)
		}
		logical[l] = struct{}{}
	}
	if rc.seen == nil {
		rc.seen = map[string]struct{}{}
	}
	k := u.key()
	if _, ok := rc.seen[k]; ok {
		return false, nil
	}
	rc.seen[k] = struct{}{}
	rc.Units = append(rc.Units, u)
	return true, nil
}

// Sort orders units by logical data source, then physical tables, then
// physical data source. Replica choice is random, so ordering by it first
// would make repeated routing unstable.
func (rc *RouteContext) Sort() {
	slices.SortStableFunc(rc.Units, func(a, b RouteUnit) int {
		if c := strings.Compare(a.DataSource.Logical, b.DataSource.Logical); c != 0 {
			return c
		}
		if c := strings.Compare(a.tablesKey(), b.tablesKey()); c != 0 {
			return c
		}
		return strings.Compare(a.DataSource.Actual, b.DataSource.Actual)
	})
}

// ActualDataSources lists the distinct physical data sources in unit order.
func (rc *RouteContext) ActualDataSources() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, u := range rc.Units {
		if _, ok := seen[u.DataSource.Actual]; ok {
			continue
		}
		seen[u.DataSource.Actual] = struct{}{}
		out = append(out, u.DataSource.Actual)
	}
	return out
}

// IsSingleUnit reports whether the statement runs against exactly one unit.
func (rc *RouteContext) IsSingleUnit() bool {
	return len(rc.Units) == 1
}

// RouteRow records the data node of an INSERT row.
func (rc *RouteContext) RouteRow(row int, ds, table string) {
	rc.InsertRowRoutes = append(rc.InsertRowRoutes, RowRoute{Row: row, DataSource: ds, Table: table})
}

func (rc *RouteContext) AddGeneratedKey(row int, column string, value any) {
	rc.GeneratedKeys = append(rc.GeneratedKeys, GeneratedKey{Row: row, Column: column, Value: value})
}

func (rc *RouteContext) AddRewrite(r Rewrite) {
	rc.Rewrites = append(rc.Rewrites, r)
}

// Explain renders the route in a stable text form.
func (rc *RouteContext) Explain() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "route units: %d\n", len(rc.Units))
	for _, u := range rc.Units {
		sb.WriteString("  ")
		sb.WriteString(u.DataSource.Logical)
		if u.DataSource.Actual != u.DataSource.Logical {
			fmt.Fprintf(&sb, " (%s)", u.DataSource.Actual)
		}
		sb.WriteString(":")
		for i, t := range u.Tables {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" ")
			sb.WriteString(t.String())
		}
		sb.WriteString("\n")
	}
	if len(rc.InsertRowRoutes) > 0 {
		sb.WriteString("insert rows:\n")
		for _, r := range rc.InsertRowRoutes {
			fmt.Fprintf(&sb, "  #%d -> %s.%s\n", r.Row, r.DataSource, r.Table)
		}
	}
	if len(rc.GeneratedKeys) > 0 {
		sb.WriteString("generated keys:\n")
		for _, k := range rc.GeneratedKeys {
			fmt.Fprintf(&sb, "  #%d %s = %v\n", k.Row, k.Column, k.Value)
		}
	}
	if len(rc.Rewrites) > 0 {
		sb.WriteString("rewrites:\n")
		for _, r := range rc.Rewrites {
			fmt.Fprintf(&sb, "  %s #%d %s.%s -> %s = %v\n", r.Clause, r.Position, r.Table, r.LogicColumn, r.Column, r.Value)
		}
	}
	return sb.String()
}
