package resolve

import (
	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlstmt"
)

// ExpressionContext is what a position in a statement requires.
//
// T-SQL has no boolean values: predicates are only valid where a condition
// is expected, and bit columns are not predicates. ApplyContext converts
// between the two forms.
type ExpressionContext int

const (
	// ValueRequired accepts any value, including entities and objects.
	ValueRequired ExpressionContext = iota
	// SingleValueRequired accepts exactly one SQL value.
	SingleValueRequired
	// PredicateRequired accepts a condition.
	PredicateRequired
)

func (c ExpressionContext) String() string {
	switch c {
	case SingleValueRequired:
		return "single value"
	case PredicateRequired:
		return "predicate"
	}
	return "value"
}

// ApplyContext makes e valid in context c, converting nested expressions
// for the positions they occupy. Applying a context twice changes nothing.
func ApplyContext(e sqlstmt.Expression, c ExpressionContext) (sqlstmt.Expression, error) {
	if e == nil {
		return nil, nil
	}
	x, err := applyChildren(e)
	if err != nil {
		return nil, err
	}
	switch c {
	case PredicateRequired:
		return toPredicate(x)
	case SingleValueRequired:
		if sqlstmt.IsComplex(x) {
			return nil, ir.UnsupportedExpression(x, "a single value is required, %s spans several columns", x.Type())
		}
	}
	return toValue(x), nil
}

// ApplyStatementContext applies contexts to every expression of stmt and
// the statements nested in it. stmt itself is returned when nothing changed.
func ApplyStatementContext(stmt *sqlstmt.Statement) (*sqlstmt.Statement, error) {
	return applyStatement(stmt, ValueRequired)
}

func applyStatement(stmt *sqlstmt.Statement, projection ExpressionContext) (*sqlstmt.Statement, error) {
	b := sqlstmt.NewBuilder(stmt)
	changed := false
	apply := func(dst *sqlstmt.Expression, c ExpressionContext) error {
		x, err := ApplyContext(*dst, c)
		if err != nil {
			return err
		}
		if x != *dst {
			*dst = x
			changed = true
		}
		return nil
	}

	if err := apply(&b.SelectProjection, projection); err != nil {
		return nil, err
	}
	for i, t := range b.SqlTables {
		nt, err := applyTable(t)
		if err != nil {
			return nil, err
		}
		if nt != t {
			b.SqlTables[i] = nt
			changed = true
		}
	}
	if err := apply(&b.WhereCondition, PredicateRequired); err != nil {
		return nil, err
	}
	if err := apply(&b.GroupByExpression, ValueRequired); err != nil {
		return nil, err
	}
	for i := range b.Orderings {
		if err := apply(&b.Orderings[i].Expression, ValueRequired); err != nil {
			return nil, err
		}
	}
	if err := apply(&b.TopExpression, SingleValueRequired); err != nil {
		return nil, err
	}
	if err := apply(&b.RowNumberSelector, SingleValueRequired); err != nil {
		return nil, err
	}
	if err := apply(&b.CurrentRowNumberOffset, SingleValueRequired); err != nil {
		return nil, err
	}
	for i, op := range b.SetOperations {
		ns, err := applyStatement(op.Statement, projection)
		if err != nil {
			return nil, err
		}
		if ns != op.Statement {
			b.SetOperations[i] = &sqlstmt.SetOperation{Kind: op.Kind, Statement: ns}
			changed = true
		}
	}

	if !changed {
		return stmt, nil
	}
	return b.Build()
}

func applyTable(t *sqlstmt.Table) (*sqlstmt.Table, error) {
	info := t.Info
	changed := false
	if sub, ok := t.Info.(*sqlstmt.ResolvedSubStatementTableInfo); ok {
		ns, err := applyStatement(sub.Statement, ValueRequired)
		if err != nil {
			return nil, err
		}
		if ns != sub.Statement {
			info = &sqlstmt.ResolvedSubStatementTableInfo{TableAlias: sub.TableAlias, Statement: ns}
			changed = true
		}
	}
	joins, joinsChanged, err := applyJoins(t.Joins)
	if err != nil {
		return nil, err
	}
	if !changed && !joinsChanged {
		return t, nil
	}
	return &sqlstmt.Table{Info: info, JoinSemantics: t.JoinSemantics, Joins: joins}, nil
}

func applyJoins(joins []*sqlstmt.Join) ([]*sqlstmt.Join, bool, error) {
	out := make([]*sqlstmt.Join, len(joins))
	changed := false
	for i, j := range joins {
		out[i] = j
		r, ok := j.Info.(*sqlstmt.ResolvedJoinInfo)
		if !ok {
			continue
		}
		cond, err := ApplyContext(r.Condition, PredicateRequired)
		if err != nil {
			return nil, false, err
		}
		nested, nestedChanged, err := applyJoins(j.Joins)
		if err != nil {
			return nil, false, err
		}
		if cond != r.Condition || nestedChanged {
			out[i] = &sqlstmt.Join{
				Member: j.Member,
				Info:   &sqlstmt.ResolvedJoinInfo{Foreign: r.Foreign, Condition: cond},
				Joins:  nested,
			}
			changed = true
		}
	}
	return out, changed, nil
}

// applyChildren applies the contexts e imposes on its children.
func applyChildren(e sqlstmt.Expression) (sqlstmt.Expression, error) {
	switch e := e.(type) {
	case *sqlstmt.Binary:
		if e.Op.IsLogical() {
			return rewriteIn(e, PredicateRequired)
		}
		return rewriteIn(e, SingleValueRequired)

	case *sqlstmt.Unary:
		if e.Op == sqlstmt.OpNot {
			return rewriteIn(e, PredicateRequired)
		}
		return rewriteIn(e, SingleValueRequired)

	case *sqlstmt.Case:
		children := sqlstmt.Children(e)
		out := make([]sqlstmt.Expression, len(children))
		for i, c := range children {
			ctx := SingleValueRequired
			if i < 2*len(e.Cases) && i%2 == 0 {
				ctx = PredicateRequired
			}
			x, err := ApplyContext(c, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return sqlstmt.WithChildren(e, out), nil

	case *sqlstmt.ConvertedBoolean:
		inner, err := applyChildren(e.Expr)
		if err != nil {
			return nil, err
		}
		return sqlstmt.WithChildren(e, []sqlstmt.Expression{inner}), nil

	case *sqlstmt.Exists:
		sub, ok := e.Operand.(*sqlstmt.SubStatement)
		if !ok {
			return rewriteIn(e, ValueRequired)
		}
		ns, err := applyStatement(sub.Statement, ValueRequired)
		if err != nil || ns == sub.Statement {
			return e, err
		}
		return &sqlstmt.Exists{Operand: &sqlstmt.SubStatement{Statement: ns}}, nil

	case *sqlstmt.In:
		item, err := ApplyContext(e.Item, SingleValueRequired)
		if err != nil {
			return nil, err
		}
		set := e.Set
		if sub, ok := set.(*sqlstmt.SubStatement); ok {
			ns, err := applyStatement(sub.Statement, SingleValueRequired)
			if err != nil {
				return nil, err
			}
			if ns != sub.Statement {
				set = &sqlstmt.SubStatement{Statement: ns}
			}
		} else if set, err = ApplyContext(set, ValueRequired); err != nil {
			return nil, err
		}
		if item == e.Item && set == e.Set {
			return e, nil
		}
		return &sqlstmt.In{Item: item, Set: set}, nil

	case *sqlstmt.SubStatement:
		ns, err := applyStatement(e.Statement, SingleValueRequired)
		if err != nil || ns == e.Statement {
			return e, err
		}
		return &sqlstmt.SubStatement{Statement: ns}, nil

	case *sqlstmt.New, *sqlstmt.Named, *sqlstmt.GroupingSelect, *sqlstmt.MethodPlaceholder, *sqlstmt.RowNumber:
		return rewriteIn(e, ValueRequired)
	}
	return rewriteIn(e, SingleValueRequired)
}

func rewriteIn(e sqlstmt.Expression, c ExpressionContext) (sqlstmt.Expression, error) {
	return sqlstmt.RewriteChildren(e, func(child sqlstmt.Expression) (sqlstmt.Expression, error) {
		return ApplyContext(child, c)
	})
}

// toValue turns booleans into 0/1 values.
func toValue(e sqlstmt.Expression) sqlstmt.Expression {
	switch x := e.(type) {
	case *sqlstmt.ConvertedBoolean, *sqlstmt.Named, *sqlstmt.MethodPlaceholder:
		return e
	case *sqlstmt.Literal:
		if b, ok := x.Value.(bool); ok {
			return &sqlstmt.ConvertedBoolean{Expr: bitLiteral(b)}
		}
	}
	if sqlstmt.IsPredicate(e) {
		return &sqlstmt.ConvertedBoolean{Expr: predicateValue(e)}
	}
	if e.Type().IsBool() {
		return &sqlstmt.ConvertedBoolean{Expr: e}
	}
	return e
}

// predicateValue is CASE WHEN p THEN 1 ELSE 0 END. Predicates are never
// nullable: an unknown comparison reads as 0.
func predicateValue(p sqlstmt.Expression) sqlstmt.Expression {
	return &sqlstmt.Case{
		Typ:   ir.Int,
		Cases: []sqlstmt.When{{When: p, Then: bitLiteral(true)}},
		Else:  bitLiteral(false),
	}
}

// toPredicate turns boolean values into conditions by comparing with 1.
func toPredicate(e sqlstmt.Expression) (sqlstmt.Expression, error) {
	switch x := e.(type) {
	case *sqlstmt.ConvertedBoolean:
		return sqlstmt.NewBinary(sqlstmt.OpEqual, x, bitLiteral(true)), nil
	case *sqlstmt.Literal:
		if b, ok := x.Value.(bool); ok {
			return sqlstmt.NewBinary(sqlstmt.OpEqual, bitLiteral(true), bitLiteral(b)), nil
		}
	}
	if sqlstmt.IsPredicate(e) {
		return e, nil
	}
	if e.Type().IsBool() {
		return sqlstmt.NewBinary(sqlstmt.OpEqual, &sqlstmt.ConvertedBoolean{Expr: e}, bitLiteral(true)), nil
	}
	return nil, ir.UnsupportedExpression(e, "a predicate is required, got %s", e.Type())
}

func bitLiteral(b bool) *sqlstmt.Literal {
	if b {
		return sqlstmt.IntLiteral(1)
	}
	return sqlstmt.IntLiteral(0)
}
