package prepare

import (
	"fmt"
	"slices"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlstmt"
)

var binaryOps = map[querymodel.BinaryOp]sqlstmt.BinaryOperator{
	querymodel.OpEqual:          sqlstmt.OpEqual,
	querymodel.OpNotEqual:       sqlstmt.OpNotEqual,
	querymodel.OpLessThan:       sqlstmt.OpLessThan,
	querymodel.OpLessOrEqual:    sqlstmt.OpLessOrEqual,
	querymodel.OpGreaterThan:    sqlstmt.OpGreaterThan,
	querymodel.OpGreaterOrEqual: sqlstmt.OpGreaterOrEqual,
	querymodel.OpAndAlso:        sqlstmt.OpAnd,
	querymodel.OpOrElse:         sqlstmt.OpOr,
	querymodel.OpAdd:            sqlstmt.OpAdd,
	querymodel.OpSubtract:       sqlstmt.OpSubtract,
	querymodel.OpMultiply:       sqlstmt.OpMultiply,
	querymodel.OpDivide:         sqlstmt.OpDivide,
	querymodel.OpModulo:         sqlstmt.OpModulo,
}

// expr translates an input expression in scope sc.
func (s *stage) expr(e querymodel.Expr, sc *scope) (sqlstmt.Expression, error) {
	switch e := e.(type) {
	case *querymodel.QuerySourceRef:
		if x, ok := sc.lookup(e.Name); ok {
			return x, nil
		}
		return nil, ir.UnsupportedExpression(e, "unknown query source %q", e.Name)

	case *querymodel.ItemRef:
		if x, ok := sc.currentItem(); ok {
			return x, nil
		}
		return nil, ir.UnsupportedExpression(e, "item reference outside an operator")

	case *querymodel.Member:
		return s.member(e, sc)

	case *querymodel.Constant:
		return constant(e.Value, e.Typ), nil

	case *querymodel.Binary:
		return s.binary(e, sc)

	case *querymodel.Unary:
		return s.unary(e, sc)

	case *querymodel.Call:
		return s.call(e, sc)

	case *querymodel.SubQuery:
		return s.subQuery(e, sc)

	case *querymodel.Conditional:
		test, err := s.expr(e.Test, sc)
		if err != nil {
			return nil, err
		}
		ifTrue, err := s.expr(e.IfTrue, sc)
		if err != nil {
			return nil, err
		}
		ifFalse, err := s.expr(e.IfFalse, sc)
		if err != nil {
			return nil, err
		}
		return &sqlstmt.Case{Typ: e.Type(), Cases: []sqlstmt.When{{When: test, Then: ifTrue}}, Else: ifFalse}, nil

	case *querymodel.New:
		args := make([]sqlstmt.Expression, len(e.Args))
		for i, a := range e.Args {
			x, err := s.expr(a, sc)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", e.Members[i], err)
			}
			args[i] = x
		}
		return &sqlstmt.New{Typ: e.Type(), Members: slices.Clone(e.Members), Args: args}, nil

	case *querymodel.Table:
		stmt, err := s.sequenceStatement(e, sc)
		if err != nil {
			return nil, err
		}
		return &sqlstmt.SubStatement{Statement: stmt}, nil
	}
	return nil, ir.UnsupportedExpression(e, "unknown expression %T", e)
}

func (s *stage) member(e *querymodel.Member, sc *scope) (sqlstmt.Expression, error) {
	obj, err := s.expr(e.Object, sc)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *sqlstmt.New:
		if arg, ok := o.Arg(e.Name); ok {
			return arg, nil
		}
		return nil, ir.UnsupportedExpression(e, "%s has no member %s", o.Typ, e.Name)
	case *sqlstmt.GroupingSelect:
		if e.Name == "Key" {
			return o.Key, nil
		}
	}

	t := obj.Type()
	switch {
	case t.Kind == ir.KindString && e.Name == "Length":
		return &sqlstmt.FunctionCall{Typ: ir.Int, Name: "LEN", Args: []sqlstmt.Expression{obj}}, nil
	case isScalar(t) && t.Nullable && e.Name == "HasValue":
		return &sqlstmt.IsNotNull{Operand: obj}, nil
	case isScalar(t) && t.Nullable && e.Name == "Value":
		return obj, nil
	}
	return &sqlstmt.MemberRef{Source: obj, Member: e.Name, Typ: e.Typ}, nil
}

func isScalar(t ir.Type) bool {
	switch t.Kind {
	case ir.KindEntity, ir.KindObject, ir.KindSequence, ir.KindGrouping, ir.KindUnknown:
		return false
	}
	return true
}

// constant turns an in-memory value into a parameter, an inline literal
// (NULL and booleans) or a collection of them.
func constant(v any, t ir.Type) sqlstmt.Expression {
	switch v := v.(type) {
	case nil:
		return sqlstmt.NullLiteral(t)
	case bool:
		return &sqlstmt.Literal{Typ: ir.Bool, Value: v}
	case []any:
		items := make([]sqlstmt.Expression, len(v))
		for i, item := range v {
			items[i] = constant(item, t.ElemType())
		}
		return &sqlstmt.Collection{Typ: t, Items: items}
	}
	return &sqlstmt.Constant{Typ: t, Value: v}
}

func isNullLiteral(e sqlstmt.Expression) bool {
	l, ok := e.(*sqlstmt.Literal)
	return ok && l.Value == nil
}

func (s *stage) binary(e *querymodel.Binary, sc *scope) (sqlstmt.Expression, error) {
	left, err := s.expr(e.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := s.expr(e.Right, sc)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case querymodel.OpEqual, querymodel.OpNotEqual:
		operand := left
		switch {
		case isNullLiteral(right):
		case isNullLiteral(left):
			operand = right
		default:
			return sqlstmt.NewBinary(binaryOps[e.Op], left, right), nil
		}
		if e.Op == querymodel.OpEqual {
			return &sqlstmt.IsNull{Operand: operand}, nil
		}
		return &sqlstmt.IsNotNull{Operand: operand}, nil

	case querymodel.OpCoalesce:
		return &sqlstmt.FunctionCall{Typ: e.Type(), Name: "COALESCE", Args: []sqlstmt.Expression{left, right}}, nil
	}

	op, ok := binaryOps[e.Op]
	if !ok {
		return nil, ir.UnsupportedExpression(e, "unknown operator %s", e.Op)
	}
	if op.IsComparison() || op.IsLogical() {
		return sqlstmt.NewBinary(op, left, right), nil
	}
	return &sqlstmt.Binary{Op: op, Left: left, Right: right, Typ: e.Type()}, nil
}

func (s *stage) unary(e *querymodel.Unary, sc *scope) (sqlstmt.Expression, error) {
	operand, err := s.expr(e.Operand, sc)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case querymodel.OpNot:
		return sqlstmt.Not(operand), nil
	case querymodel.OpNegate:
		return &sqlstmt.Unary{Op: sqlstmt.OpNegate, Operand: operand, Typ: e.Type()}, nil
	case querymodel.OpConvert:
		if operand.Type().Kind == e.Typ.Kind {
			return operand, nil
		}
		sqlType := sqlstmt.SQLTypeName(e.Typ)
		if sqlType == "" {
			return nil, ir.UnsupportedExpression(e, "no SQL conversion to %s", e.Typ)
		}
		return &sqlstmt.Convert{Typ: e.Typ, SQLType: sqlType, Operand: operand}, nil
	}
	return nil, ir.UnsupportedExpression(e, "unknown operator %s", e.Op)
}

// call dispatches a method call to its transformer. Calls without one become
// placeholders, left for in-memory evaluation at the top-level projection.
func (s *stage) call(e *querymodel.Call, sc *scope) (sqlstmt.Expression, error) {
	mc := &MethodCall{Method: e.Method, Typ: e.Typ, Node: e}
	if e.Object != nil {
		obj, err := s.expr(e.Object, sc)
		if err != nil {
			return nil, err
		}
		mc.Object = obj
	}
	for _, a := range e.Args {
		x, err := s.expr(a, sc)
		if err != nil {
			return nil, err
		}
		mc.Args = append(mc.Args, x)
	}
	if fn, ok := s.methods.Lookup(e.Method); ok {
		return fn(mc)
	}
	s.log.Debug("no method transformer", "method", e.Method.Signature())
	return placeholder(mc), nil
}

// subQuery prepares a nested query used as a value. A statement without
// tables (the result of Any, All or Contains) is inlined as its projection.
func (s *stage) subQuery(e *querymodel.SubQuery, sc *scope) (sqlstmt.Expression, error) {
	if x, ok, err := s.groupAggregate(e.Model, sc); ok || err != nil {
		return x, err
	}
	stmt, err := s.model(e.Model, sc)
	if err != nil {
		return nil, err
	}
	if len(stmt.SqlTables) == 0 && stmt.WhereCondition == nil && !stmt.HasTop() && len(stmt.SetOperations) == 0 {
		return stmt.SelectProjection, nil
	}
	return &sqlstmt.SubStatement{Statement: stmt}, nil
}

// groupAggregate handles an aggregate over the elements of a group
// (from x in g select x.Salary => Sum). The aggregation is added to the
// grouped statement's projection and read back by name, so it is computed
// per group by the GROUP BY itself.
func (s *stage) groupAggregate(m *querymodel.QueryModel, sc *scope) (sqlstmt.Expression, bool, error) {
	if m.MainFromClause == nil {
		return nil, false, nil
	}
	src, ok := m.MainFromClause.FromExpression.(*querymodel.QuerySourceRef)
	if !ok {
		return nil, false, nil
	}
	target, _ := sc.lookup(src.Name)
	ref, ok := target.(*sqlstmt.TableRef)
	if !ok {
		return nil, false, nil
	}
	info, ok := ref.Table.Info.(*sqlstmt.ResolvedSubStatementTableInfo)
	if !ok {
		return nil, false, nil
	}
	grouping, ok := info.Statement.SelectProjection.(*sqlstmt.GroupingSelect)
	if !ok {
		return nil, false, nil
	}

	if len(m.BodyClauses) > 0 || len(m.ResultOperators) != 1 {
		return nil, true, ir.UnsupportedExpression(m, "elements of a group can only be aggregated directly")
	}
	op := m.ResultOperators[0]
	var operand sqlstmt.Expression
	switch op.Kind() {
	case querymodel.KindCount, querymodel.KindLongCount:
	case querymodel.KindSum, querymodel.KindAverage, querymodel.KindMin, querymodel.KindMax:
		elemScope := newScope(sc)
		elemScope.sources[m.MainFromClause.Name] = grouping.Element
		x, err := s.expr(m.SelectClause.Selector, elemScope)
		if err != nil {
			return nil, true, err
		}
		operand = x
	default:
		return nil, true, ir.UnsupportedExpression(m, "elements of a group can only be aggregated, not %s", op.Kind())
	}
	agg, err := aggregation(op, operand)
	if err != nil {
		return nil, true, err
	}

	name := fmt.Sprintf("a%d", len(grouping.Aggregations))
	updated := &sqlstmt.GroupingSelect{
		Typ:          grouping.Typ,
		Key:          grouping.Key,
		Element:      grouping.Element,
		Aggregations: append(slices.Clone(grouping.Aggregations), &sqlstmt.Named{Name: name, Expr: agg}),
	}
	b := sqlstmt.NewBuilder(info.Statement)
	b.SelectProjection = updated
	stmt, err := b.Build()
	if err != nil {
		return nil, true, err
	}
	ref.Table.Info = &sqlstmt.ResolvedSubStatementTableInfo{TableAlias: info.TableAlias, Statement: stmt}
	s.log.Debug("pushed aggregate into grouping", "name", name, "operator", string(op.Kind()))
	return &sqlstmt.MemberRef{Source: ref, Member: name, Typ: agg.Type()}, true, nil
}
