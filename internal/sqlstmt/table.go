package sqlstmt

import "github.com/roach88/relq/internal/ir"

// JoinSemantics selects inner or left (outer) semantics for a table.
// For sub-statement tables it picks CROSS APPLY vs OUTER APPLY.
type JoinSemantics int

const (
	Inner JoinSemantics = iota
	Left
)

// Table is one FROM entry: its TableInfo, the semantics used to combine it
// with the preceding tables, and the joins navigating from it.
//
// Tables are assembled during preparation (where a builder may still swap
// Info) and treated as immutable afterwards.
type Table struct {
	Info          TableInfo
	JoinSemantics JoinSemantics
	Joins         []*Join
}

// NewTable returns a table with inner semantics and no joins.
func NewTable(info TableInfo) *Table {
	return &Table{Info: info, JoinSemantics: Inner}
}

// ItemType returns the type of the table's items.
func (t *Table) ItemType() ir.Type { return t.Info.ItemType() }

// Alias returns the table alias, or "" when unresolved.
func (t *Table) Alias() string { return t.Info.Alias() }

// IsResolved reports whether the table and all its joins are resolved.
func (t *Table) IsResolved() bool {
	switch t.Info.(type) {
	case *ResolvedSimpleTableInfo, *ResolvedSubStatementTableInfo:
	default:
		return false
	}
	for _, j := range t.Joins {
		if !j.IsResolved() {
			return false
		}
	}
	return true
}

// TableInfo describes what a table reads from.
//
// This is a sealed interface - only types in this package implement it.
//
// TableInfo types:
//   - UnresolvedTableInfo: a mapped entity type not yet mapped to storage
//   - UnresolvedCollectionJoinInfo: items of a collection navigation member
//   - ResolvedSimpleTableInfo: a concrete table with an alias
//   - ResolvedSubStatementTableInfo: a nested statement with an alias
type TableInfo interface {
	tableInfoNode() // Marker method - seals interface to this package
	ItemType() ir.Type
	Alias() string
}

// UnresolvedTableInfo is a mapped entity type before resolution.
type UnresolvedTableInfo struct {
	Typ ir.Type
}

// UnresolvedCollectionJoinInfo reads the items of a collection navigation
// (c.Assistants). Source is the navigating expression.
type UnresolvedCollectionJoinInfo struct {
	Source Expression
	Member string
	Typ    ir.Type // item type
}

// ResolvedSimpleTableInfo is a concrete table.
type ResolvedSimpleTableInfo struct {
	Typ        ir.Type
	Schema     string
	Name       string
	TableAlias string
}

// ResolvedSubStatementTableInfo is a nested statement used as a table.
// TableAlias is empty until resolution assigns one.
type ResolvedSubStatementTableInfo struct {
	TableAlias string
	Statement  *Statement
}

func (*UnresolvedTableInfo) tableInfoNode()           {}
func (*UnresolvedCollectionJoinInfo) tableInfoNode()  {}
func (*ResolvedSimpleTableInfo) tableInfoNode()       {}
func (*ResolvedSubStatementTableInfo) tableInfoNode() {}

func (i *UnresolvedTableInfo) ItemType() ir.Type          { return i.Typ }
func (i *UnresolvedCollectionJoinInfo) ItemType() ir.Type { return i.Typ }
func (i *ResolvedSimpleTableInfo) ItemType() ir.Type      { return i.Typ }

// ItemType is the element type of the nested statement's data.
func (i *ResolvedSubStatementTableInfo) ItemType() ir.Type {
	return i.Statement.DataInfo.ItemType()
}

func (*UnresolvedTableInfo) Alias() string             { return "" }
func (*UnresolvedCollectionJoinInfo) Alias() string    { return "" }
func (i *ResolvedSimpleTableInfo) Alias() string       { return i.TableAlias }
func (i *ResolvedSubStatementTableInfo) Alias() string { return i.TableAlias }

// Cardinality of a navigation member.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

// JoinInfo describes a join before or after resolution.
//
// This is a sealed interface - only types in this package implement it.
type JoinInfo interface {
	joinInfoNode() // Marker method - seals interface to this package
}

// UnresolvedJoinInfo is a navigation from Origin through Member.
type UnresolvedJoinInfo struct {
	Origin      *Entity
	Member      string
	Cardinality Cardinality
}

// ResolvedJoinInfo is a concrete joined table and its ON condition.
type ResolvedJoinInfo struct {
	Foreign   *ResolvedSimpleTableInfo
	Condition Expression
}

func (*UnresolvedJoinInfo) joinInfoNode() {}
func (*ResolvedJoinInfo) joinInfoNode()   {}

// Join is a LEFT OUTER JOIN reached by navigating Member. Joins holds the
// joins navigating onward from the joined table.
type Join struct {
	Member string
	Info   JoinInfo
	Joins  []*Join
}

// Alias returns the joined table's alias, or "" when unresolved.
func (j *Join) Alias() string {
	if r, ok := j.Info.(*ResolvedJoinInfo); ok {
		return r.Foreign.TableAlias
	}
	return ""
}

// IsResolved reports whether the join and its nested joins are resolved.
func (j *Join) IsResolved() bool {
	if _, ok := j.Info.(*ResolvedJoinInfo); !ok {
		return false
	}
	for _, n := range j.Joins {
		if !n.IsResolved() {
			return false
		}
	}
	return true
}
