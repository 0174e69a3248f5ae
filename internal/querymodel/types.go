package querymodel

import "github.com/roach88/relq/internal/ir"

// QueryModel is one query: sources, body clauses, a selector and the result
// operators applied to the selected sequence.
//
// Processing order is fixed: MainFromClause, BodyClauses in order,
// SelectClause, then ResultOperators in order.
type QueryModel struct {
	MainFromClause  *MainFromClause
	BodyClauses     []BodyClause
	SelectClause    *SelectClause
	ResultOperators []ResultOperator
}

// ResultType returns the static type produced by the query: the sequence of
// selected items, or the scalar type of the last value-producing operator.
func (m *QueryModel) ResultType() ir.Type {
	var t ir.Type
	if m.SelectClause != nil && m.SelectClause.Selector != nil {
		t = ir.SequenceOf(m.SelectClause.Selector.Type())
	}
	for _, op := range m.ResultOperators {
		t = op.resultType(t)
	}
	return t
}

// QuerySource is a clause that introduces items into the query.
//
// This is a sealed interface - only types in this package implement it.
//
// QuerySource types:
//   - MainFromClause: the first source of a query
//   - AdditionalFromClause: a further source (cross product / navigation)
//   - JoinClause: an inner equi-join source
type QuerySource interface {
	querySourceNode() // Marker method - seals interface to this package
	ItemName() string
	ItemType() ir.Type
}

// BodyClause is a clause between the main from-clause and the select clause.
//
// This is a sealed interface - only types in this package implement it.
type BodyClause interface {
	bodyClauseNode() // Marker method - seals interface to this package
}

// MainFromClause is the first source of a query.
//
// FromExpression is usually a Table (root sequence) or a SubQuery; it may also
// be a collection-valued Member for sub-queries over a navigation
// (from a in c.Assistants).
type MainFromClause struct {
	Name           string
	Type           ir.Type // item type
	FromExpression Expr
}

func (*MainFromClause) querySourceNode() {}

// ItemName implements QuerySource.
func (c *MainFromClause) ItemName() string { return c.Name }

// ItemType implements QuerySource.
func (c *MainFromClause) ItemType() ir.Type { return c.Type }

// AdditionalFromClause adds a further source, producing the cross product
// with everything before it.
type AdditionalFromClause struct {
	Name           string
	Type           ir.Type
	FromExpression Expr
}

func (*AdditionalFromClause) querySourceNode() {}
func (*AdditionalFromClause) bodyClauseNode()  {}

// ItemName implements QuerySource.
func (c *AdditionalFromClause) ItemName() string { return c.Name }

// ItemType implements QuerySource.
func (c *AdditionalFromClause) ItemType() ir.Type { return c.Type }

// JoinClause is an inner equi-join of InnerSequence on
// OuterKeySelector == InnerKeySelector. Compound keys are expressed with New
// on both sides.
type JoinClause struct {
	Name             string
	Type             ir.Type
	InnerSequence    Expr
	OuterKeySelector Expr
	InnerKeySelector Expr
}

func (*JoinClause) querySourceNode() {}
func (*JoinClause) bodyClauseNode()  {}

// ItemName implements QuerySource.
func (c *JoinClause) ItemName() string { return c.Name }

// ItemType implements QuerySource.
func (c *JoinClause) ItemType() ir.Type { return c.Type }

// WhereClause filters items by a boolean predicate.
type WhereClause struct {
	Predicate Expr
}

func (*WhereClause) bodyClauseNode() {}

// OrderByClause orders items. When several order-by clauses appear, the
// later clause has precedence (its orderings come first).
type OrderByClause struct {
	Orderings []Ordering
}

func (*OrderByClause) bodyClauseNode() {}

// Direction is an ordering direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// String returns "asc" or "desc".
func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Ordering is one sort key of an OrderByClause.
type Ordering struct {
	Expression Expr
	Direction  Direction
}

// SelectClause projects each item.
type SelectClause struct {
	Selector Expr
}
