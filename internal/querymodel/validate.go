package querymodel

import (
	"fmt"
)

// ValidationResult contains the pre-compilation analysis of a query model.
type ValidationResult struct {
	// IsCompilable is false when the model has a shape the compiler is
	// known to reject. True does not guarantee compilation succeeds: mapping
	// resolution and method transformers are not consulted here.
	IsCompilable bool

	// Warnings lists every problem found, in traversal order.
	Warnings []string
}

// Validate checks a query model for structural problems:
//  1. Missing sources, selectors or operator arguments
//  2. Query source references that name no visible source
//  3. ItemRef used outside a result operator lambda
//  4. Result operators without a SQL translation (Reverse, Aggregate)
//  5. Last without any ordering
//
// Validate is a pure function with no side effects.
func Validate(model *QueryModel) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateModel(model, nil)

	return ValidationResult{
		IsCompilable: len(v.warnings) == 0,
		Warnings:     v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// scope is the chain of visible query source names.
type scope struct {
	names  map[string]bool
	parent *scope
}

func (s *scope) has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return true
		}
	}
	return false
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateModel(m *QueryModel, parent *scope) {
	if m == nil {
		v.addWarning("nil query model")
		return
	}
	sc := &scope{names: map[string]bool{}, parent: parent}

	if m.MainFromClause == nil {
		v.addWarning("query model has no main from clause")
	} else {
		// The from expression is evaluated in the enclosing scope.
		v.validateExpr(m.MainFromClause.FromExpression, parent, false)
		sc.names[m.MainFromClause.Name] = true
	}

	hasOrdering := false
	for i, c := range m.BodyClauses {
		switch c := c.(type) {
		case *AdditionalFromClause:
			v.validateExpr(c.FromExpression, sc, false)
			v.declare(sc, c.Name)
		case *JoinClause:
			v.validateExpr(c.InnerSequence, parent, false)
			v.validateExpr(c.OuterKeySelector, sc, false)
			v.declare(sc, c.Name)
			v.validateExpr(c.InnerKeySelector, sc, false)
		case *WhereClause:
			v.validateExpr(c.Predicate, sc, false)
		case *OrderByClause:
			if len(c.Orderings) == 0 {
				v.addWarning("body clause %d: order by without orderings", i)
			}
			for _, o := range c.Orderings {
				v.validateExpr(o.Expression, sc, false)
			}
			hasOrdering = true
		case nil:
			v.addWarning("body clause %d is nil", i)
		default:
			v.addWarning("body clause %d: unknown clause type %T", i, c)
		}
	}

	if m.SelectClause == nil || m.SelectClause.Selector == nil {
		v.addWarning("query model has no selector")
	} else {
		v.validateExpr(m.SelectClause.Selector, sc, false)
	}

	for _, op := range m.ResultOperators {
		v.validateOperator(op, sc, hasOrdering)
	}
}

func (v *validator) declare(sc *scope, name string) {
	if sc.names[name] {
		v.addWarning("query source %q declared twice", name)
	}
	sc.names[name] = true
}

func (v *validator) validateOperator(op ResultOperator, sc *scope, hasOrdering bool) {
	switch op := op.(type) {
	case *Take:
		v.requireArg(op, op.Count, sc)
	case *Skip:
		v.requireArg(op, op.Count, sc)
	case *Contains:
		v.requireArg(op, op.Item, sc)
	case *Union:
		v.requireArg(op, op.Source2, sc)
	case *Concat:
		v.requireArg(op, op.Source2, sc)
	case *Intersect:
		v.requireArg(op, op.Source2, sc)
	case *Except:
		v.requireArg(op, op.Source2, sc)
	case *All:
		if op.Predicate == nil {
			v.addWarning("%s: missing predicate", op)
			return
		}
		v.validateExpr(op.Predicate, sc, true)
	case *GroupBy:
		if op.KeySelector == nil {
			v.addWarning("%s: missing key selector", op)
			return
		}
		v.validateExpr(op.KeySelector, sc, true)
		if op.ElementSelector != nil {
			v.validateExpr(op.ElementSelector, sc, true)
		}
	case *Last:
		if !hasOrdering {
			v.addWarning("%s requires an ordering", op)
		}
	case *Reverse, *Aggregate:
		v.addWarning("%s has no SQL translation", op)
	case nil:
		v.addWarning("nil result operator")
	}
}

func (v *validator) requireArg(op ResultOperator, arg Expr, sc *scope) {
	if arg == nil {
		v.addWarning("%s: missing argument", op)
		return
	}
	v.validateExpr(arg, sc, false)
}

// validateExpr recursively validates an expression. inLambda reports whether
// ItemRef is meaningful at this position.
func (v *validator) validateExpr(e Expr, sc *scope, inLambda bool) {
	switch e := e.(type) {
	case nil:
		v.addWarning("nil expression")
	case *Table:
		if !e.Entity.IsEntity() {
			v.addWarning("table over non-entity type %s", e.Entity)
		}
	case *QuerySourceRef:
		if !sc.has(e.Name) {
			v.addWarning("reference to unknown query source %q", e.Name)
		}
	case *ItemRef:
		if !inLambda {
			v.addWarning("item reference outside a result operator lambda")
		}
	case *Member:
		v.validateExpr(e.Object, sc, inLambda)
	case *Constant:
	case *Binary:
		if !e.Op.valid() {
			v.addWarning("unknown binary operator %q", e.Op)
		}
		v.validateExpr(e.Left, sc, inLambda)
		v.validateExpr(e.Right, sc, inLambda)
	case *Unary:
		v.validateExpr(e.Operand, sc, inLambda)
	case *Call:
		if e.Object != nil {
			v.validateExpr(e.Object, sc, inLambda)
		}
		for _, a := range e.Args {
			v.validateExpr(a, sc, inLambda)
		}
	case *SubQuery:
		v.validateModel(e.Model, sc)
	case *Conditional:
		v.validateExpr(e.Test, sc, inLambda)
		v.validateExpr(e.IfTrue, sc, inLambda)
		v.validateExpr(e.IfFalse, sc, inLambda)
	case *New:
		if len(e.Members) != len(e.Args) {
			v.addWarning("new %s: %d members but %d arguments", e.TypeName, len(e.Members), len(e.Args))
		}
		for _, a := range e.Args {
			v.validateExpr(a, sc, inLambda)
		}
	default:
		v.addWarning("unknown expression type %T", e)
	}
}
