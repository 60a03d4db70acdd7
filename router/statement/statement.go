// Package statement holds the already-parsed, schema-bound statement the
// router consumes. Producing it from SQL text is the job of an external
// parser and binder.
package statement

import "strings"

type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindDDL
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindDDL:
		return "DDL"
	}
	return "OTHER"
}

type TableRef struct {
	Name  string
	Alias string
}

type Assignment struct {
	Column ColumnRef
	Value  Expr
}

type Limit struct {
	Count  Expr
	Offset Expr
}

type Statement struct {
	Kind   Kind
	Tables []TableRef
	Where  Expr

	// UPDATE ... SET
	Assignments []Assignment

	// INSERT
	InsertColumns        []string
	InsertRows           [][]Expr
	InsertSelect         *Statement
	OnDuplicateKeyUpdate []Assignment

	// SELECT
	Projection    []string
	Subqueries    []*Statement
	Limit         *Limit
	LockForUpdate bool

	// Params are the bound parameter values, shared with nested statements.
	Params []any
}

// ReadOnly reports whether the statement may be served by a read target.
func (s *Statement) ReadOnly() bool {
	return s.Kind == KindSelect && !s.LockForUpdate
}

// IsDML reports whether the statement modifies rows.
func (s *Statement) IsDML() bool {
	switch s.Kind {
	case KindInsert, KindUpdate, KindDelete:
		return true
	}
	return false
}

// TableNames returns the distinct lower-cased tables referenced at the top
// level, in order of first appearance.
func (s *Statement) TableNames() []string {
	var out []string
	seen := map[string]struct{}{}
	for _, t := range s.Tables {
		appendUnique(&out, seen, t.Name)
	}
	return out
}

// AllTableNames includes tables of subqueries and of INSERT ... SELECT.
func (s *Statement) AllTableNames() []string {
	var out []string
	seen := map[string]struct{}{}
	s.walk(func(st *Statement) {
		for _, t := range st.Tables {
			appendUnique(&out, seen, t.Name)
		}
	})
	return out
}

// Nested returns the subqueries and the INSERT source, recursively.
func (s *Statement) Nested() []*Statement {
	var out []*Statement
	s.walk(func(st *Statement) {
		if st != s {
			out = append(out, st)
		}
	})
	return out
}

func (s *Statement) walk(f func(*Statement)) {
	f(s)
	if s.InsertSelect != nil {
		s.InsertSelect.walk(f)
	}
	for _, sq := range s.Subqueries {
		sq.walk(f)
	}
}

// ResolveTable maps an alias or a table name used as a column qualifier to
// the lower-cased table name; ok is false when nothing matches.
func (s *Statement) ResolveTable(qualifier string) (string, bool) {
	q := strings.ToLower(qualifier)
	for _, t := range s.Tables {
		if strings.ToLower(t.Alias) == q && t.Alias != "" {
			return strings.ToLower(t.Name), true
		}
	}
	for _, t := range s.Tables {
		if strings.ToLower(t.Name) == q {
			return q, true
		}
	}
	return "", false
}

// InsertColumnIndex returns the position of column in the INSERT column list.
func (s *Statement) InsertColumnIndex(column string) int {
	for i, c := range s.InsertColumns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

func appendUnique(out *[]string, seen map[string]struct{}, name string) {
	n := strings.ToLower(name)
	if _, ok := seen[n]; ok {
		return
	}
	seen[n] = struct{}{}
	*out = append(*out, n)
}
