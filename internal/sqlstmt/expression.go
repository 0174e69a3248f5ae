package sqlstmt

import "github.com/roach88/relq/internal/ir"

// Expression is a node of the statement tree.
//
// This is a sealed interface - only types in this package implement it.
// Stages dispatch on it with exhaustive type switches.
type Expression interface {
	expressionNode() // Marker method - seals interface to this package
	Type() ir.Type
	String() string
}

// Column is a column of a table or sub-statement.
//
// Name is the column name at TableAlias. Field is the logical member name
// used for entity materialization and output aliases; it equals Name for
// base table columns and differs for columns referenced through a
// sub-statement (Name "Key_ID", Field "ID").
type Column struct {
	Typ          ir.Type
	TableAlias   string
	Name         string
	Field        string
	IsPrimaryKey bool
}

// OutputField returns Field, or Name when Field is empty.
func (c *Column) OutputField() string {
	if c.Field != "" {
		return c.Field
	}
	return c.Name
}

// Entity is a value spanning several columns with a designated identity.
// Identity columns are always members of Columns; a compound identity has
// more than one.
type Entity struct {
	Typ        ir.Type
	TableAlias string
	Identity   []*Column
	Columns    []*Column
}

// EntityConstant is an in-memory entity value; only its identity values take
// part in SQL.
type EntityConstant struct {
	Typ            ir.Type
	Value          any
	IdentityValues []any
}

// Constant is a value bound as a command parameter.
type Constant struct {
	Typ   ir.Type
	Value any
}

// Literal is a value rendered inline (NULL, numbers, strings, 1/0).
type Literal struct {
	Typ   ir.Type
	Value any
}

// Keyword is a Literal value rendered verbatim, such as the datepart of DATEADD.
type Keyword string

// BinaryOperator is a SQL binary operator.
type BinaryOperator string

const (
	OpEqual          BinaryOperator = "="
	OpNotEqual       BinaryOperator = "<>"
	OpLessThan       BinaryOperator = "<"
	OpLessOrEqual    BinaryOperator = "<="
	OpGreaterThan    BinaryOperator = ">"
	OpGreaterOrEqual BinaryOperator = ">="
	OpAnd            BinaryOperator = "AND"
	OpOr             BinaryOperator = "OR"
	OpAdd            BinaryOperator = "+"
	OpSubtract       BinaryOperator = "-"
	OpMultiply       BinaryOperator = "*"
	OpDivide         BinaryOperator = "/"
	OpModulo         BinaryOperator = "%"
)

// IsComparison reports whether op compares two values.
func (op BinaryOperator) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		return true
	}
	return false
}

// IsLogical reports whether op combines two predicates.
func (op BinaryOperator) IsLogical() bool { return op == OpAnd || op == OpOr }

// Binary is a binary operator application.
type Binary struct {
	Op    BinaryOperator
	Left  Expression
	Right Expression
	Typ   ir.Type
}

// UnaryOperator is a SQL unary operator.
type UnaryOperator string

const (
	OpNot    UnaryOperator = "NOT"
	OpNegate UnaryOperator = "-"
)

// Unary is a unary operator application.
type Unary struct {
	Op      UnaryOperator
	Operand Expression
	Typ     ir.Type
}

// IsNull is "operand IS NULL".
type IsNull struct{ Operand Expression }

// IsNotNull is "operand IS NOT NULL".
type IsNotNull struct{ Operand Expression }

// FunctionCall is a scalar SQL function call.
type FunctionCall struct {
	Typ  ir.Type
	Name string
	Args []Expression
}

// AggregationFunc is a SQL aggregate function.
type AggregationFunc string

const (
	AggCount    AggregationFunc = "COUNT"
	AggCountBig AggregationFunc = "COUNT_BIG"
	AggSum      AggregationFunc = "SUM"
	AggAverage  AggregationFunc = "AVG"
	AggMin      AggregationFunc = "MIN"
	AggMax      AggregationFunc = "MAX"
)

// Aggregation is an aggregate call. A nil Operand means "*".
type Aggregation struct {
	Typ     ir.Type
	Func    AggregationFunc
	Operand Expression
}

// Exists is "EXISTS(operand)". Only existence of rows matters, so the inner
// projection may hold values that are invalid elsewhere.
type Exists struct{ Operand Expression }

// In is "item IN set"; Set is a SubStatement or a Collection.
type In struct {
	Item Expression
	Set  Expression
}

// Like is "item LIKE pattern ESCAPE escape".
type Like struct {
	Item    Expression
	Pattern Expression
	Escape  string
}

// Convert is "CONVERT(sqlType, operand)".
type Convert struct {
	Typ     ir.Type
	SQLType string
	Operand Expression
}

// RowNumber is "ROW_NUMBER() OVER (ORDER BY orderings)".
type RowNumber struct{ Orderings []Ordering }

// When is one arm of a Case.
type When struct {
	When Expression
	Then Expression
}

// Case is "CASE WHEN .. THEN .. [ELSE ..] END".
type Case struct {
	Typ   ir.Type
	Cases []When
	Else  Expression
}

// GroupingSelect is the projection of a grouped statement: the grouping key,
// the element projection and the aggregations computed per group.
// Aggregations are named a0, a1, ... in order of registration.
type GroupingSelect struct {
	Typ          ir.Type
	Key          Expression
	Element      Expression
	Aggregations []*Named
}

// Named gives a projected value an explicit output name.
type Named struct {
	Name string
	Expr Expression
}

// SubStatement embeds a statement as an expression.
type SubStatement struct{ Statement *Statement }

// Collection is an in-memory list of values for IN.
type Collection struct {
	Typ   ir.Type
	Items []Expression
}

// ConvertedBoolean marks an integer 0/1 value that stands for a boolean
// where native boolean values are not valid.
type ConvertedBoolean struct{ Expr Expression }

// New constructs an object from named members. Members and Args are parallel.
type New struct {
	Typ     ir.Type
	Members []string
	Args    []Expression
}

// TableRef is the current item of a table before resolution.
type TableRef struct{ Table *Table }

// MemberRef is member access before resolution.
type MemberRef struct {
	Source Expression
	Member string
	Typ    ir.Type
}

// EntityRefMember is a navigation from an entity to a single related entity
// that has not been joined yet.
type EntityRefMember struct {
	Typ    ir.Type
	Origin *Entity
	Member string
}

// TypeCheck tests whether Operand is of type Desired.
type TypeCheck struct {
	Operand Expression
	Desired ir.Type
}

// MethodPlaceholder is a method call no transformer handled. Generation
// accepts it only in the top-level projection with a registered in-memory
// evaluator.
type MethodPlaceholder struct {
	Typ       ir.Type
	Signature string
	Name      string
	Object    Expression
	Args      []Expression
}

func (*Column) expressionNode()            {}
func (*Entity) expressionNode()            {}
func (*EntityConstant) expressionNode()    {}
func (*Constant) expressionNode()          {}
func (*Literal) expressionNode()           {}
func (*Binary) expressionNode()            {}
func (*Unary) expressionNode()             {}
func (*IsNull) expressionNode()            {}
func (*IsNotNull) expressionNode()         {}
func (*FunctionCall) expressionNode()      {}
func (*Aggregation) expressionNode()       {}
func (*Exists) expressionNode()            {}
func (*In) expressionNode()                {}
func (*Like) expressionNode()              {}
func (*Convert) expressionNode()           {}
func (*RowNumber) expressionNode()         {}
func (*Case) expressionNode()              {}
func (*GroupingSelect) expressionNode()    {}
func (*Named) expressionNode()             {}
func (*SubStatement) expressionNode()      {}
func (*Collection) expressionNode()        {}
func (*ConvertedBoolean) expressionNode()  {}
func (*New) expressionNode()               {}
func (*TableRef) expressionNode()          {}
func (*MemberRef) expressionNode()         {}
func (*EntityRefMember) expressionNode()   {}
func (*TypeCheck) expressionNode()         {}
func (*MethodPlaceholder) expressionNode() {}

func (e *Column) Type() ir.Type            { return e.Typ }
func (e *Entity) Type() ir.Type            { return e.Typ }
func (e *EntityConstant) Type() ir.Type    { return e.Typ }
func (e *Constant) Type() ir.Type          { return e.Typ }
func (e *Literal) Type() ir.Type           { return e.Typ }
func (e *Binary) Type() ir.Type            { return e.Typ }
func (e *Unary) Type() ir.Type             { return e.Typ }
func (*IsNull) Type() ir.Type              { return ir.Bool }
func (*IsNotNull) Type() ir.Type           { return ir.Bool }
func (e *FunctionCall) Type() ir.Type      { return e.Typ }
func (e *Aggregation) Type() ir.Type       { return e.Typ }
func (*Exists) Type() ir.Type              { return ir.Bool }
func (*In) Type() ir.Type                  { return ir.Bool }
func (*Like) Type() ir.Type                { return ir.Bool }
func (e *Convert) Type() ir.Type           { return e.Typ }
func (*RowNumber) Type() ir.Type           { return ir.Int64 }
func (e *Case) Type() ir.Type              { return e.Typ }
func (e *GroupingSelect) Type() ir.Type    { return e.Typ }
func (e *Named) Type() ir.Type             { return e.Expr.Type() }
func (e *SubStatement) Type() ir.Type      { return e.Statement.DataInfo.DataType() }
func (e *Collection) Type() ir.Type        { return e.Typ }
func (e *New) Type() ir.Type               { return e.Typ }
func (e *TableRef) Type() ir.Type          { return e.Table.ItemType() }
func (e *MemberRef) Type() ir.Type         { return e.Typ }
func (e *EntityRefMember) Type() ir.Type   { return e.Typ }
func (*TypeCheck) Type() ir.Type           { return ir.Bool }
func (e *MethodPlaceholder) Type() ir.Type { return e.Typ }

// Type is a boolean with the nullability of the wrapped value.
func (e *ConvertedBoolean) Type() ir.Type {
	t := ir.Bool
	t.Nullable = e.Expr.Type().Nullable
	return t
}

// IdentityColumns returns the identity of e as expressions.
func (e *Entity) IdentityColumns() []Expression {
	out := make([]Expression, len(e.Identity))
	for i, c := range e.Identity {
		out[i] = c
	}
	return out
}

// Arg returns the argument bound to member name.
func (e *New) Arg(name string) (Expression, bool) {
	for i, m := range e.Members {
		if m == name {
			return e.Args[i], true
		}
	}
	return nil, false
}

// IsPredicate reports whether e is a genuine SQL predicate (valid in WHERE
// without comparison against 1).
func IsPredicate(e Expression) bool {
	switch e := e.(type) {
	case *Binary:
		return e.Op.IsComparison() || e.Op.IsLogical()
	case *Unary:
		return e.Op == OpNot
	case *IsNull, *IsNotNull, *Exists, *In, *Like, *TypeCheck:
		return true
	}
	return false
}

// IsComplex reports whether e spans more than one SQL value.
func IsComplex(e Expression) bool {
	switch e := e.(type) {
	case *Entity, *New, *GroupingSelect:
		return true
	case *Named:
		return IsComplex(e.Expr)
	}
	return false
}

// Helpers for building common nodes.

// NewBinary builds a binary node, typing comparisons and logical operators
// as booleans.
func NewBinary(op BinaryOperator, left, right Expression) *Binary {
	typ := left.Type()
	if op.IsComparison() || op.IsLogical() {
		typ = ir.Bool
	}
	return &Binary{Op: op, Left: left, Right: right, Typ: typ}
}

// And combines predicates with AND, skipping nils. Returns nil when all are nil.
func And(predicates ...Expression) Expression {
	var out Expression
	for _, p := range predicates {
		if p == nil {
			continue
		}
		if out == nil {
			out = p
			continue
		}
		out = NewBinary(OpAnd, out, p)
	}
	return out
}

// Not negates a predicate.
func Not(p Expression) *Unary {
	return &Unary{Op: OpNot, Operand: p, Typ: ir.Bool}
}

// IntLiteral returns an inline integer literal.
func IntLiteral(v int) *Literal {
	return &Literal{Typ: ir.Int, Value: v}
}

// SQLTypeName returns the T-SQL type used to CONVERT a value to t.
func SQLTypeName(t ir.Type) string {
	switch t.Kind {
	case ir.KindString:
		return "NVARCHAR(MAX)"
	case ir.KindInt:
		return "INT"
	case ir.KindInt64:
		return "BIGINT"
	case ir.KindFloat:
		return "FLOAT"
	case ir.KindDecimal:
		return "DECIMAL(38,18)"
	case ir.KindBool:
		return "BIT"
	case ir.KindTime:
		return "DATETIME2"
	case ir.KindUUID:
		return "UNIQUEIDENTIFIER"
	}
	return ""
}

// NullLiteral returns an inline NULL of type t.
func NullLiteral(t ir.Type) *Literal {
	return &Literal{Typ: t.AsNullable(), Value: nil}
}
