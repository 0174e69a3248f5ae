package querymodel

import (
	"strings"

	"github.com/roach88/relq/internal/ir"
)

// Expr is an input expression.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the preparation stage.
//
// Expr types:
//   - Table: a root queryable sequence of mapped entities
//   - QuerySourceRef: the current item of a named query source
//   - ItemRef: the current item inside a result operator lambda
//   - Member: member access (column, navigation, or object member)
//   - Constant: an in-memory value (scalar, collection, or entity)
//   - Binary, Unary: operators
//   - Call: a method call, dispatched to method transformers
//   - SubQuery: a nested query model
//   - Conditional: test ? a : b
//   - New: object construction with named members
type Expr interface {
	exprNode() // Marker method - seals interface to this package
	Type() ir.Type
	String() string
}

// Table is a root queryable over all stored entities of a type.
type Table struct {
	Entity ir.Type
}

func (*Table) exprNode() {}

// Type returns a sequence of the entity type.
func (e *Table) Type() ir.Type { return ir.SequenceOf(e.Entity) }

// QuerySourceRef references the current item of the query source with the
// given item name.
type QuerySourceRef struct {
	Name string
	Typ  ir.Type
}

func (*QuerySourceRef) exprNode() {}

// Type implements Expr.
func (e *QuerySourceRef) Type() ir.Type { return e.Typ }

// ItemRef references the current item inside a result operator lambda.
type ItemRef struct {
	Typ ir.Type
}

func (*ItemRef) exprNode() {}

// Type implements Expr.
func (e *ItemRef) Type() ir.Type { return e.Typ }

// Member is member access on Object.
type Member struct {
	Object Expr
	Name   string
	Typ    ir.Type
}

func (*Member) exprNode() {}

// Type implements Expr.
func (e *Member) Type() ir.Type { return e.Typ }

// Constant is an in-memory value captured by the query.
//
// Value may be a scalar, a []any collection (for Contains), an entity value
// (map[string]any keyed by member name) or nil.
type Constant struct {
	Value any
	Typ   ir.Type
}

func (*Constant) exprNode() {}

// Type implements Expr.
func (e *Constant) Type() ir.Type { return e.Typ }

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpEqual          BinaryOp = "=="
	OpNotEqual       BinaryOp = "!="
	OpLessThan       BinaryOp = "<"
	OpLessOrEqual    BinaryOp = "<="
	OpGreaterThan    BinaryOp = ">"
	OpGreaterOrEqual BinaryOp = ">="
	OpAndAlso        BinaryOp = "&&"
	OpOrElse         BinaryOp = "||"
	OpAdd            BinaryOp = "+"
	OpSubtract       BinaryOp = "-"
	OpMultiply       BinaryOp = "*"
	OpDivide         BinaryOp = "/"
	OpModulo         BinaryOp = "%"
	OpCoalesce       BinaryOp = "??"
)

// IsComparison reports whether op yields a boolean from two values.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		return true
	}
	return false
}

// IsLogical reports whether op combines two predicates.
func (op BinaryOp) IsLogical() bool {
	return op == OpAndAlso || op == OpOrElse
}

func (op BinaryOp) valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual,
		OpAndAlso, OpOrElse, OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo, OpCoalesce:
		return true
	}
	return false
}

// Binary is a binary operator application.
// Typ may be left empty; it then derives from the operator and operands.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Typ   ir.Type
}

func (*Binary) exprNode() {}

// Type implements Expr.
func (e *Binary) Type() ir.Type {
	if e.Op.IsComparison() || e.Op.IsLogical() {
		return ir.Bool
	}
	if e.Typ.Kind != ir.KindUnknown {
		return e.Typ
	}
	if e.Op == OpCoalesce {
		return e.Right.Type()
	}
	return e.Left.Type()
}

// UnaryOp is a unary operator.
type UnaryOp string

const (
	OpNot     UnaryOp = "!"
	OpNegate  UnaryOp = "-"
	OpConvert UnaryOp = "convert"
)

// Unary is a unary operator application. For OpConvert, Typ is the target type.
type Unary struct {
	Op      UnaryOp
	Operand Expr
	Typ     ir.Type
}

func (*Unary) exprNode() {}

// Type implements Expr.
func (e *Unary) Type() ir.Type {
	switch e.Op {
	case OpNot:
		return ir.Bool
	case OpConvert:
		return e.Typ
	}
	return e.Operand.Type()
}

// MethodRef identifies a method for transformer lookup.
//
// Lookup order: exact signature, then declared attribute, then name.
type MethodRef struct {
	DeclaringType string
	Name          string
	ParamTypes    []string
	Attribute     string
}

// Signature returns "DeclaringType.Name(P1,P2)".
func (m MethodRef) Signature() string {
	return m.DeclaringType + "." + m.Name + "(" + strings.Join(m.ParamTypes, ",") + ")"
}

// Call is a method call. Object is nil for static methods.
type Call struct {
	Object Expr
	Method MethodRef
	Args   []Expr
	Typ    ir.Type
}

func (*Call) exprNode() {}

// Type implements Expr.
func (e *Call) Type() ir.Type { return e.Typ }

// SubQuery nests a query model inside an expression or a from-clause.
type SubQuery struct {
	Model *QueryModel
}

func (*SubQuery) exprNode() {}

// Type returns the result type of the nested model.
func (e *SubQuery) Type() ir.Type { return e.Model.ResultType() }

// Conditional is test ? IfTrue : IfFalse.
type Conditional struct {
	Test    Expr
	IfTrue  Expr
	IfFalse Expr
}

func (*Conditional) exprNode() {}

// Type implements Expr.
func (e *Conditional) Type() ir.Type { return e.IfTrue.Type() }

// New constructs an object. Members and Args are parallel.
type New struct {
	TypeName string
	Members  []string
	Args     []Expr
}

func (*New) exprNode() {}

// Type implements Expr.
func (e *New) Type() ir.Type { return ir.Object(e.TypeName) }

// Arg returns the argument bound to member name.
func (e *New) Arg(name string) (Expr, bool) {
	for i, m := range e.Members {
		if m == name {
			return e.Args[i], true
		}
	}
	return nil, false
}
