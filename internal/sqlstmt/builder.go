package sqlstmt

import (
	"errors"
	"slices"
)

// Builder is the mutable form of a Statement.
//
// A builder is owned by exactly one in-flight compilation. Build freezes the
// current state into a new Statement; the builder can keep being mutated
// afterwards without affecting statements it produced.
type Builder struct {
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

// NewBuilder returns a builder initialized from stmt; nil yields an empty builder.
func NewBuilder(stmt *Statement) *Builder {
	if stmt == nil {
		return &Builder{}
	}
	return &Builder{
		SelectProjection:       stmt.SelectProjection,
		SqlTables:              slices.Clone(stmt.SqlTables),
		WhereCondition:         stmt.WhereCondition,
		GroupByExpression:      stmt.GroupByExpression,
		Orderings:              slices.Clone(stmt.Orderings),
		TopExpression:          stmt.TopExpression,
		IsDistinctQuery:        stmt.IsDistinctQuery,
		RowNumberSelector:      stmt.RowNumberSelector,
		CurrentRowNumberOffset: stmt.CurrentRowNumberOffset,
		SetOperations:          slices.Clone(stmt.SetOperations),
		DataInfo:               stmt.DataInfo,
	}
}

// ErrIncompleteStatement is returned by Build when projection or data info
// is missing.
var ErrIncompleteStatement = errors.New("statement needs a projection and data info")

// Build freezes the builder into a Statement.
func (b *Builder) Build() (*Statement, error) {
	if b.SelectProjection == nil || b.DataInfo == nil {
		return nil, ErrIncompleteStatement
	}
	return &Statement{
		SelectProjection:       b.SelectProjection,
		SqlTables:              slices.Clone(b.SqlTables),
		WhereCondition:         b.WhereCondition,
		GroupByExpression:      b.GroupByExpression,
		Orderings:              slices.Clone(b.Orderings),
		TopExpression:          b.TopExpression,
		IsDistinctQuery:        b.IsDistinctQuery,
		RowNumberSelector:      b.RowNumberSelector,
		CurrentRowNumberOffset: b.CurrentRowNumberOffset,
		SetOperations:          slices.Clone(b.SetOperations),
		DataInfo:               b.DataInfo,
	}, nil
}

// GetStatementAndReset freezes the builder and clears every field except
// DataInfo, so the caller can start an enclosing statement.
func (b *Builder) GetStatementAndReset() (*Statement, error) {
	stmt, err := b.Build()
	if err != nil {
		return nil, err
	}
	*b = Builder{DataInfo: b.DataInfo}
	return stmt, nil
}

// AddWhereCondition ANDs p onto the where condition.
func (b *Builder) AddWhereCondition(p Expression) {
	b.WhereCondition = And(b.WhereCondition, p)
}

// AddTable appends a table.
func (b *Builder) AddTable(t *Table) {
	b.SqlTables = append(b.SqlTables, t)
}

// HasTop reports whether a TOP clause is present.
func (b *Builder) HasTop() bool { return b.TopExpression != nil }

// HasPaging reports whether row-number paging is present.
func (b *Builder) HasPaging() bool { return b.RowNumberSelector != nil }
