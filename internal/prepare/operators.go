package prepare

import (
	"fmt"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlstmt"
)

// operatorHandler applies one result operator to the statement under construction.
type operatorHandler func(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error

var operatorHandlers map[querymodel.OperatorKind]operatorHandler

func init() {
	operatorHandlers = map[querymodel.OperatorKind]operatorHandler{
		querymodel.KindTake:           handleTake,
		querymodel.KindSkip:           handleSkip,
		querymodel.KindDistinct:       handleDistinct,
		querymodel.KindCount:          handleAggregate,
		querymodel.KindLongCount:      handleAggregate,
		querymodel.KindSum:            handleAggregate,
		querymodel.KindAverage:        handleAggregate,
		querymodel.KindMin:            handleAggregate,
		querymodel.KindMax:            handleAggregate,
		querymodel.KindContains:       handleContains,
		querymodel.KindUnion:          handleSetOperation,
		querymodel.KindConcat:         handleSetOperation,
		querymodel.KindIntersect:      handleSetOperation,
		querymodel.KindExcept:         handleSetOperation,
		querymodel.KindOfType:         handleOfType,
		querymodel.KindCast:           handleCast,
		querymodel.KindFirst:          handleTop,
		querymodel.KindSingle:         handleTop,
		querymodel.KindLast:           handleTop,
		querymodel.KindAny:            handleAny,
		querymodel.KindAll:            handleAll,
		querymodel.KindGroupBy:        handleGroupBy,
		querymodel.KindDefaultIfEmpty: handleDefaultIfEmpty,
	}
}

var setOperationKinds = map[querymodel.OperatorKind]sqlstmt.SetOperationKind{
	querymodel.KindUnion:     sqlstmt.Union,
	querymodel.KindConcat:    sqlstmt.UnionAll,
	querymodel.KindIntersect: sqlstmt.Intersect,
	querymodel.KindExcept:    sqlstmt.Except,
}

// wrapOnConflict moves the statement into a subquery when the policy says
// kind cannot be applied to it directly.
func (s *stage) wrapOnConflict(kind querymodel.OperatorKind, b *sqlstmt.Builder) error {
	c := conflicts(kind, b)
	if c == 0 {
		return nil
	}
	s.log.Debug("wrapping statement into subquery", "operator", string(kind), "conflicts", c.String())
	return s.moveToSubStatement(b)
}

func handleTake(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error {
	count, err := s.expr(op.(*querymodel.Take).Count, sc)
	if err != nil {
		return err
	}
	if b.HasPaging() && !b.HasTop() && len(b.SetOperations) == 0 {
		// Skip(n).Take(m) pages by row number: n < Value <= n + m.
		upper := sqlstmt.NewBinary(sqlstmt.OpAdd, b.CurrentRowNumberOffset, count)
		b.AddWhereCondition(sqlstmt.NewBinary(sqlstmt.OpLessOrEqual, b.RowNumberSelector, upper))
		return nil
	}
	if err := s.wrapOnConflict(querymodel.KindTake, b); err != nil {
		return err
	}
	b.TopExpression = count
	return nil
}

// handleSkip pages with ROW_NUMBER: the statement becomes a subquery
// projecting its items as Key and the row number as Value, and the outer
// statement filters Value > count ordered by Value.
func handleSkip(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error {
	count, err := s.expr(op.(*querymodel.Skip).Count, sc)
	if err != nil {
		return err
	}
	if b.IsDistinctQuery || b.GroupByExpression != nil || len(b.SetOperations) > 0 || b.HasPaging() {
		s.log.Debug("wrapping statement into subquery", "operator", string(querymodel.KindSkip), "conflicts", features(b).String())
		if err := s.moveToSubStatement(b); err != nil {
			return err
		}
	}

	original := b.SelectProjection
	itemType := b.DataInfo.ItemType()
	orderings := b.Orderings
	if len(orderings) == 0 {
		orderings = []sqlstmt.Ordering{{Expression: sqlstmt.IntLiteral(1), Direction: sqlstmt.Ascending}}
	}
	b.SelectProjection = &sqlstmt.New{
		Typ:     ir.Object("KeyValue"),
		Members: []string{"Key", "Value"},
		Args:    []sqlstmt.Expression{original, &sqlstmt.RowNumber{Orderings: orderings}},
	}
	if !b.HasTop() {
		b.Orderings = nil
	}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: b.SelectProjection.Type()}

	inner, err := b.GetStatementAndReset()
	if err != nil {
		return err
	}
	table := sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: inner})
	ref := &sqlstmt.TableRef{Table: table}
	rowNumber := &sqlstmt.MemberRef{Source: ref, Member: "Value", Typ: ir.Int64}

	b.AddTable(table)
	b.SelectProjection = &sqlstmt.MemberRef{Source: ref, Member: "Key", Typ: original.Type()}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: itemType}
	b.RowNumberSelector = rowNumber
	b.CurrentRowNumberOffset = count
	b.AddWhereCondition(sqlstmt.NewBinary(sqlstmt.OpGreaterThan, rowNumber, count))
	b.Orderings = []sqlstmt.Ordering{{Expression: rowNumber, Direction: sqlstmt.Ascending}}
	return nil
}

// endPaging keeps the row-number filter of a Skip in place but detaches it
// from b, so the next Take becomes TOP over the rows b now produces.
func endPaging(b *sqlstmt.Builder) {
	b.RowNumberSelector = nil
	b.CurrentRowNumberOffset = nil
}

func handleDistinct(s *stage, _ querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	if err := s.wrapOnConflict(querymodel.KindDistinct, b); err != nil {
		return err
	}
	b.IsDistinctQuery = true
	return nil
}

func handleAggregate(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	if err := s.wrapOnConflict(op.Kind(), b); err != nil {
		return err
	}
	agg, err := aggregation(op, b.SelectProjection)
	if err != nil {
		return err
	}
	if len(b.Orderings) > 0 {
		s.log.Debug("dropping orderings under aggregate", "operator", string(op.Kind()))
	}
	b.Orderings = nil
	endPaging(b)
	b.SelectProjection = agg
	b.DataInfo = &sqlstmt.StreamedScalar{Typ: agg.Type()}
	return nil
}

// aggregation builds the aggregate for op over operand.
func aggregation(op querymodel.ResultOperator, operand sqlstmt.Expression) (sqlstmt.Expression, error) {
	switch op.Kind() {
	case querymodel.KindCount:
		return &sqlstmt.Aggregation{Typ: ir.Int, Func: sqlstmt.AggCount}, nil
	case querymodel.KindLongCount:
		return &sqlstmt.Aggregation{Typ: ir.Int64, Func: sqlstmt.AggCountBig}, nil
	case querymodel.KindSum:
		return &sqlstmt.Aggregation{Typ: operand.Type(), Func: sqlstmt.AggSum, Operand: operand}, nil
	case querymodel.KindMin:
		return &sqlstmt.Aggregation{Typ: operand.Type().AsNullable(), Func: sqlstmt.AggMin, Operand: operand}, nil
	case querymodel.KindMax:
		return &sqlstmt.Aggregation{Typ: operand.Type().AsNullable(), Func: sqlstmt.AggMax, Operand: operand}, nil
	case querymodel.KindAverage:
		typ := operand.Type()
		if typ.IsIntegral() {
			operand = &sqlstmt.Convert{Typ: ir.Float, SQLType: sqlstmt.SQLTypeName(ir.Float), Operand: operand}
			typ = ir.Float
		}
		return &sqlstmt.Aggregation{Typ: typ, Func: sqlstmt.AggAverage, Operand: operand}, nil
	}
	return nil, ir.UnsupportedOperator(op, "%s is not an aggregate", op.Kind())
}

func handleContains(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error {
	item, err := s.expr(op.(*querymodel.Contains).Item, sc)
	if err != nil {
		return err
	}
	inner, err := s.finishForNesting(b)
	if err != nil {
		return err
	}
	b.SelectProjection = &sqlstmt.In{Item: item, Set: &sqlstmt.SubStatement{Statement: inner}}
	b.DataInfo = &sqlstmt.StreamedScalar{Typ: ir.Bool}
	return nil
}

func handleAny(s *stage, _ querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	inner, err := s.finishForNesting(b)
	if err != nil {
		return err
	}
	b.SelectProjection = &sqlstmt.Exists{Operand: &sqlstmt.SubStatement{Statement: inner}}
	b.DataInfo = &sqlstmt.StreamedScalar{Typ: ir.Bool}
	return nil
}

// handleAll rewrites All(p) as NOT EXISTS(... WHERE NOT p).
func handleAll(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error {
	if b.HasTop() || len(b.SetOperations) > 0 {
		if err := s.moveToSubStatement(b); err != nil {
			return err
		}
	}
	p, err := s.expr(op.(*querymodel.All).Predicate, sc.withItem(b.SelectProjection))
	if err != nil {
		return err
	}
	b.AddWhereCondition(sqlstmt.Not(p))
	inner, err := s.finishForNesting(b)
	if err != nil {
		return err
	}
	b.SelectProjection = sqlstmt.Not(&sqlstmt.Exists{Operand: &sqlstmt.SubStatement{Statement: inner}})
	b.DataInfo = &sqlstmt.StreamedScalar{Typ: ir.Bool}
	return nil
}

// finishForNesting freezes b for use inside EXISTS or IN and resets it.
// Orderings are kept only when they select the TOP rows.
func (s *stage) finishForNesting(b *sqlstmt.Builder) (*sqlstmt.Statement, error) {
	if !b.HasTop() {
		b.Orderings = nil
	}
	return b.GetStatementAndReset()
}

func handleSetOperation(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error {
	var source2 querymodel.Expr
	switch o := op.(type) {
	case *querymodel.Union:
		source2 = o.Source2
	case *querymodel.Concat:
		source2 = o.Source2
	case *querymodel.Intersect:
		source2 = o.Source2
	case *querymodel.Except:
		source2 = o.Source2
	}
	right, err := s.sequenceStatement(source2, sc)
	if err != nil {
		return err
	}
	right, err = s.normalizeSetOperand(right, op.Kind())
	if err != nil {
		return err
	}

	if err := s.wrapOnConflict(op.Kind(), b); err != nil {
		return err
	}
	if len(b.Orderings) > 0 {
		s.log.Warn("dropping ORDER BY of set operation operand", "operator", string(op.Kind()), "side", "left")
		b.Orderings = nil
	}
	b.SetOperations = append(b.SetOperations, &sqlstmt.SetOperation{Kind: setOperationKinds[op.Kind()], Statement: right})
	return nil
}

// normalizeSetOperand makes stmt valid as the right side of a set operation:
// a TOP statement keeps its orderings inside a subquery, any other statement
// loses them.
func (s *stage) normalizeSetOperand(stmt *sqlstmt.Statement, kind querymodel.OperatorKind) (*sqlstmt.Statement, error) {
	if len(stmt.Orderings) == 0 {
		return stmt, nil
	}
	b := sqlstmt.NewBuilder(stmt)
	if stmt.HasTop() {
		if err := s.moveToSubStatement(b); err != nil {
			return nil, err
		}
	}
	if len(b.Orderings) > 0 {
		s.log.Warn("dropping ORDER BY of set operation operand", "operator", string(kind), "side", "right")
		b.Orderings = nil
	}
	return b.Build()
}

// sequenceStatement prepares a sequence expression (a table or a subquery)
// as a statement of its own.
func (s *stage) sequenceStatement(e querymodel.Expr, sc *scope) (*sqlstmt.Statement, error) {
	switch e := e.(type) {
	case *querymodel.SubQuery:
		return s.model(e.Model, sc)
	case *querymodel.Table:
		b := sqlstmt.NewBuilder(nil)
		table := sqlstmt.NewTable(&sqlstmt.UnresolvedTableInfo{Typ: e.Entity})
		b.AddTable(table)
		b.SelectProjection = &sqlstmt.TableRef{Table: table}
		b.DataInfo = &sqlstmt.StreamedSequence{Item: e.Entity}
		return b.Build()
	}
	return nil, ir.UnsupportedExpression(e, "set operation source must be a table or a subquery")
}

// handleOfType filters on the item's type. A statement that already pages
// keeps its row-number filter but stops paging, so a later Take counts the
// filtered rows.
func handleOfType(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	if err := s.wrapOnConflict(querymodel.KindOfType, b); err != nil {
		return err
	}
	searched := op.(*querymodel.OfType).SearchedType
	endPaging(b)
	b.AddWhereCondition(&sqlstmt.TypeCheck{Operand: b.SelectProjection, Desired: searched})
	b.DataInfo = &sqlstmt.StreamedSequence{Item: searched}
	return nil
}

func handleCast(_ *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	b.DataInfo = &sqlstmt.StreamedSequence{Item: op.(*querymodel.Cast).CastType}
	return nil
}

// handleTop covers First (TOP 1), Single (TOP 2, so a second row can be
// detected) and Last (reversed orderings, TOP 1).
func handleTop(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	if err := s.wrapOnConflict(op.Kind(), b); err != nil {
		return err
	}
	itemType := b.DataInfo.ItemType()
	var top int
	var orDefault bool
	switch o := op.(type) {
	case *querymodel.First:
		top, orDefault = 1, o.ReturnDefaultWhenEmpty
	case *querymodel.Single:
		top, orDefault = 2, o.ReturnDefaultWhenEmpty
	case *querymodel.Last:
		if len(b.Orderings) == 0 {
			return ir.UnsupportedOperator(op, "Last requires an ordering")
		}
		reversed := make([]sqlstmt.Ordering, len(b.Orderings))
		for i, o := range b.Orderings {
			reversed[i] = sqlstmt.Ordering{Expression: o.Expression, Direction: o.Direction.Reverse()}
		}
		b.Orderings = reversed
		top, orDefault = 1, o.ReturnDefaultWhenEmpty
	}
	b.TopExpression = sqlstmt.IntLiteral(top)
	b.DataInfo = &sqlstmt.StreamedSingle{Typ: itemType, ReturnDefaultWhenEmpty: orDefault}
	return nil
}

func handleGroupBy(s *stage, op querymodel.ResultOperator, b *sqlstmt.Builder, sc *scope) error {
	g := op.(*querymodel.GroupBy)
	if err := s.wrapOnConflict(querymodel.KindGroupBy, b); err != nil {
		return err
	}
	itemScope := sc.withItem(b.SelectProjection)
	key, err := s.expr(g.KeySelector, itemScope)
	if err != nil {
		return err
	}
	element := b.SelectProjection
	if g.ElementSelector != nil {
		element, err = s.expr(g.ElementSelector, itemScope)
		if err != nil {
			return err
		}
	}
	if len(b.Orderings) > 0 {
		s.log.Debug("dropping orderings under GROUP BY")
	}
	b.Orderings = nil
	endPaging(b)
	b.GroupByExpression = key
	b.SelectProjection = &sqlstmt.GroupingSelect{
		Typ:     ir.GroupingOf(key.Type(), element.Type()),
		Key:     key,
		Element: element,
	}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: b.SelectProjection.Type()}
	return nil
}

// handleDefaultIfEmpty outer-applies the statement to a one-row table, so an
// empty result still produces one row whose values are all NULL.
func handleDefaultIfEmpty(s *stage, _ querymodel.ResultOperator, b *sqlstmt.Builder, _ *scope) error {
	itemType := b.DataInfo.ItemType()
	if !b.HasTop() {
		b.Orderings = nil
	}
	inner, err := b.GetStatementAndReset()
	if err != nil {
		return err
	}
	one, err := oneRowStatement()
	if err != nil {
		return err
	}
	table := sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: inner})
	table.JoinSemantics = sqlstmt.Left

	b.AddTable(sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: one}))
	b.AddTable(table)
	b.SelectProjection = &sqlstmt.TableRef{Table: table}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: itemType.AsNullable()}
	return nil
}

// oneRowStatement is "SELECT NULL AS [Empty]".
func oneRowStatement() (*sqlstmt.Statement, error) {
	b := sqlstmt.NewBuilder(nil)
	b.SelectProjection = &sqlstmt.Named{Name: "Empty", Expr: sqlstmt.NullLiteral(ir.Null)}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: ir.Null}
	return b.Build()
}

// moveToSubStatement turns the current statement into a subquery of a new,
// empty statement that selects everything from it. Orderings without TOP move
// to the outer statement; with TOP they stay inside (they select the rows)
// and are repeated outside. Either way the outer statement reads them
// through extra projected members Order0, Order1, ...
func (s *stage) moveToSubStatement(b *sqlstmt.Builder) error {
	original := b.SelectProjection
	itemType := b.DataInfo.ItemType()
	orderings := b.Orderings
	carried := len(orderings) > 0 && b.GroupByExpression == nil && len(b.SetOperations) == 0

	if carried {
		members := []string{"Key"}
		args := []sqlstmt.Expression{original}
		for i, o := range orderings {
			members = append(members, fmt.Sprintf("Order%d", i))
			args = append(args, o.Expression)
		}
		b.SelectProjection = &sqlstmt.New{Typ: ir.Object("Ordered"), Members: members, Args: args}
	}
	if !b.HasTop() {
		b.Orderings = nil
	}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: b.SelectProjection.Type()}

	inner, err := b.GetStatementAndReset()
	if err != nil {
		return err
	}
	table := sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: inner})
	ref := &sqlstmt.TableRef{Table: table}
	b.AddTable(table)
	b.DataInfo = &sqlstmt.StreamedSequence{Item: itemType}

	if !carried {
		b.SelectProjection = ref
		return nil
	}
	b.SelectProjection = &sqlstmt.MemberRef{Source: ref, Member: "Key", Typ: original.Type()}
	for i, o := range orderings {
		b.Orderings = append(b.Orderings, sqlstmt.Ordering{
			Expression: &sqlstmt.MemberRef{Source: ref, Member: fmt.Sprintf("Order%d", i), Typ: o.Expression.Type()},
			Direction:  o.Direction,
		})
	}
	return nil
}
