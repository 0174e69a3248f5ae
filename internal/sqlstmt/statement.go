package sqlstmt

import "github.com/roach88/relq/internal/ir"

// Statement is one immutable SELECT.
//
// RowNumberSelector and CurrentRowNumberOffset are set on statements that
// page through a wrapped sub-statement with ROW_NUMBER: the selector is the
// ordinal column and the offset is the Skip count already applied.
type Statement struct {
	SelectProjection       Expression
	SqlTables              []*Table
	WhereCondition         Expression
	GroupByExpression      Expression
	Orderings              []Ordering
	TopExpression          Expression
	IsDistinctQuery        bool
	RowNumberSelector      Expression
	CurrentRowNumberOffset Expression
	SetOperations          []*SetOperation
	DataInfo               DataInfo
}

// HasTop reports whether a TOP clause is present.
func (s *Statement) HasTop() bool { return s.TopExpression != nil }

// HasPaging reports whether the statement pages with ROW_NUMBER.
func (s *Statement) HasPaging() bool { return s.RowNumberSelector != nil }

// Direction is an ordering direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String returns "ASC" or "DESC".
func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// Ordering is one ORDER BY key.
type Ordering struct {
	Expression Expression
	Direction  Direction
}

// SetOperationKind is a SQL set operator.
type SetOperationKind string

const (
	Union     SetOperationKind = "UNION"
	UnionAll  SetOperationKind = "UNION ALL"
	Intersect SetOperationKind = "INTERSECT"
	Except    SetOperationKind = "EXCEPT"
)

// SetOperation combines the statement with another one.
type SetOperation struct {
	Kind      SetOperationKind
	Statement *Statement
}

// Parameter is a bound command parameter.
type Parameter struct {
	Name  string
	Value any
}

// DataInfo describes the shape of a statement's result.
//
// This is a sealed interface - only types in this package implement it.
//
// DataInfo types:
//   - StreamedSequence: zero or more items
//   - StreamedScalar: exactly one value (aggregates, Any, All, Contains)
//   - StreamedSingle: at most one item (First, Single, Last)
type DataInfo interface {
	dataInfoNode() // Marker method - seals interface to this package
	DataType() ir.Type
	ItemType() ir.Type
}

// StreamedSequence is a sequence of Item values.
type StreamedSequence struct {
	Item ir.Type
}

// StreamedScalar is one scalar value.
type StreamedScalar struct {
	Typ ir.Type
}

// StreamedSingle is at most one item.
type StreamedSingle struct {
	Typ                    ir.Type
	ReturnDefaultWhenEmpty bool
}

func (*StreamedSequence) dataInfoNode() {}
func (*StreamedScalar) dataInfoNode()   {}
func (*StreamedSingle) dataInfoNode()   {}

func (d *StreamedSequence) DataType() ir.Type { return ir.SequenceOf(d.Item) }
func (d *StreamedScalar) DataType() ir.Type   { return d.Typ }
func (d *StreamedSingle) DataType() ir.Type   { return d.Typ }

func (d *StreamedSequence) ItemType() ir.Type { return d.Item }
func (d *StreamedScalar) ItemType() ir.Type   { return d.Typ }
func (d *StreamedSingle) ItemType() ir.Type   { return d.Typ }
