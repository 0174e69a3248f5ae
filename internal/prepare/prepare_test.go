package prepare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlstmt"
)

var (
	cookType    = ir.Entity("Cook")
	kitchenType = ir.Entity("Kitchen")
)

func cookRef() *querymodel.QuerySourceRef {
	return &querymodel.QuerySourceRef{Name: "c", Typ: cookType}
}

func field(obj querymodel.Expr, name string, t ir.Type) *querymodel.Member {
	return &querymodel.Member{Object: obj, Name: name, Typ: t}
}

func str(v string) *querymodel.Constant {
	return &querymodel.Constant{Value: v, Typ: ir.String}
}

func num(v int) *querymodel.Constant {
	return &querymodel.Constant{Value: v, Typ: ir.Int}
}

// cookQuery is "from c in Cooks [clauses] select selector => ops".
func cookQuery(selector querymodel.Expr, clauses []querymodel.BodyClause, ops ...querymodel.ResultOperator) *querymodel.QueryModel {
	return &querymodel.QueryModel{
		MainFromClause:  &querymodel.MainFromClause{Name: "c", Type: cookType, FromExpression: &querymodel.Table{Entity: cookType}},
		BodyClauses:     clauses,
		SelectClause:    &querymodel.SelectClause{Selector: selector},
		ResultOperators: ops,
	}
}

func orderByName(dir querymodel.Direction) *querymodel.OrderByClause {
	return &querymodel.OrderByClause{Orderings: []querymodel.Ordering{{Expression: field(cookRef(), "Name", ir.String), Direction: dir}}}
}

func prepare(t *testing.T, m *querymodel.QueryModel) *sqlstmt.Statement {
	t.Helper()
	stmt, err := Prepare(m, &Context{})
	require.NoError(t, err)
	return stmt
}

func subStatement(t *testing.T, table *sqlstmt.Table) *sqlstmt.Statement {
	t.Helper()
	info, ok := table.Info.(*sqlstmt.ResolvedSubStatementTableInfo)
	require.True(t, ok, "expected sub-statement table, got %T", table.Info)
	return info.Statement
}

func TestPrepare_WhereAndSelect(t *testing.T) {
	where := &querymodel.WhereClause{Predicate: &querymodel.Binary{
		Op: querymodel.OpEqual, Left: field(cookRef(), "Name", ir.String), Right: str("Huber"),
	}}
	stmt := prepare(t, cookQuery(field(cookRef(), "FirstName", ir.String), []querymodel.BodyClause{where}))

	assert.Equal(t,
		"SELECT TABLE-REF(Cook).FirstName FROM TABLE(Cook) WHERE (TABLE-REF(Cook).Name = @('Huber'))",
		stmt.String())
	assert.Equal(t, &sqlstmt.StreamedSequence{Item: ir.String}, stmt.DataInfo)
}

func TestPrepare_NullComparisonBecomesIsNull(t *testing.T) {
	where := &querymodel.WhereClause{Predicate: &querymodel.Binary{
		Op: querymodel.OpNotEqual, Left: &querymodel.Constant{Typ: ir.Null}, Right: field(cookRef(), "Name", ir.String),
	}}
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{where}))

	require.IsType(t, &sqlstmt.IsNotNull{}, stmt.WhereCondition)
	assert.Equal(t, "(TABLE-REF(Cook).Name IS NOT NULL)", stmt.WhereCondition.String())
}

func TestPrepare_LaterOrderingsTakePrecedence(t *testing.T) {
	byFirstName := &querymodel.OrderByClause{Orderings: []querymodel.Ordering{
		{Expression: field(cookRef(), "FirstName", ir.String), Direction: querymodel.Descending},
	}}
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending), byFirstName}))

	require.Len(t, stmt.Orderings, 2)
	assert.Equal(t, "TABLE-REF(Cook).FirstName", stmt.Orderings[0].Expression.String())
	assert.Equal(t, sqlstmt.Descending, stmt.Orderings[0].Direction)
	assert.Equal(t, "TABLE-REF(Cook).Name", stmt.Orderings[1].Expression.String())
}

func TestPrepare_TakeThenDistinctWraps(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.Take{Count: num(5)}, &querymodel.Distinct{}))

	assert.True(t, stmt.IsDistinctQuery)
	assert.Nil(t, stmt.TopExpression)
	require.Len(t, stmt.SqlTables, 1)

	inner := subStatement(t, stmt.SqlTables[0])
	assert.False(t, inner.IsDistinctQuery)
	assert.Equal(t, "@(5)", inner.TopExpression.String())

	ref, ok := stmt.SelectProjection.(*sqlstmt.TableRef)
	require.True(t, ok)
	assert.Same(t, stmt.SqlTables[0], ref.Table)
}

func TestPrepare_DistinctThenTakeDoesNotWrap(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.Distinct{}, &querymodel.Take{Count: num(5)}))

	assert.True(t, stmt.IsDistinctQuery)
	assert.NotNil(t, stmt.TopExpression)
	require.Len(t, stmt.SqlTables, 1)
	assert.IsType(t, &sqlstmt.UnresolvedTableInfo{}, stmt.SqlTables[0].Info)
}

func TestPrepare_SkipTakePagesByRowNumber(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending)},
		&querymodel.Skip{Count: num(10)}, &querymodel.Take{Count: num(5)}))

	require.Len(t, stmt.SqlTables, 1)
	inner := subStatement(t, stmt.SqlTables[0])
	assert.Equal(t,
		"SELECT new KeyValue(Key = TABLE-REF(Cook), Value = ROW_NUMBER() OVER (ORDER BY TABLE-REF(Cook).Name ASC)) FROM TABLE(Cook)",
		inner.String())

	assert.Equal(t, "TABLE-REF(KeyValue).Key", stmt.SelectProjection.String())
	assert.Equal(t,
		"((TABLE-REF(KeyValue).Value > @(10)) AND (TABLE-REF(KeyValue).Value <= (@(10) + @(5))))",
		stmt.WhereCondition.String())
	require.Len(t, stmt.Orderings, 1)
	assert.Equal(t, "TABLE-REF(KeyValue).Value", stmt.Orderings[0].Expression.String())
	assert.True(t, stmt.HasPaging())
	assert.Equal(t, &sqlstmt.StreamedSequence{Item: cookType}, stmt.DataInfo)
}

func TestPrepare_TakeThenOfTypeWraps(t *testing.T) {
	chef := ir.Entity("Chef")
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.Take{Count: num(5)}, &querymodel.OfType{SearchedType: chef}))

	assert.Nil(t, stmt.TopExpression)
	require.Len(t, stmt.SqlTables, 1)
	inner := subStatement(t, stmt.SqlTables[0])
	assert.Equal(t, "@(5)", inner.TopExpression.String())
	assert.Nil(t, inner.WhereCondition)

	check, ok := stmt.WhereCondition.(*sqlstmt.TypeCheck)
	require.True(t, ok, "expected type check, got %T", stmt.WhereCondition)
	assert.Equal(t, chef, check.Desired)
	assert.Equal(t, &sqlstmt.StreamedSequence{Item: chef}, stmt.DataInfo)
}

func TestPrepare_TakeAfterPagedFilterIsTop(t *testing.T) {
	byName := field(&querymodel.ItemRef{Typ: cookType}, "Name", ir.String)
	tests := []struct {
		name string
		op   querymodel.ResultOperator
	}{
		{"group by", &querymodel.GroupBy{KeySelector: byName}},
		{"of type", &querymodel.OfType{SearchedType: ir.Entity("Chef")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending)},
				&querymodel.Skip{Count: num(2)}, tt.op, &querymodel.Take{Count: num(3)}))

			assert.False(t, stmt.HasPaging())
			require.NotNil(t, stmt.TopExpression)
			assert.Equal(t, "@(3)", stmt.TopExpression.String())
			assert.Contains(t, stmt.WhereCondition.String(), "(TABLE-REF(KeyValue).Value > @(2))")
			assert.NotContains(t, stmt.WhereCondition.String(), "<=")
		})
	}
}

func TestPrepare_SkipWithoutOrderingUsesConstant(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.Skip{Count: num(3)}))

	inner := subStatement(t, stmt.SqlTables[0])
	kv := inner.SelectProjection.(*sqlstmt.New)
	rn := kv.Args[1].(*sqlstmt.RowNumber)
	require.Len(t, rn.Orderings, 1)
	assert.Equal(t, sqlstmt.IntLiteral(1), rn.Orderings[0].Expression)
}

func TestPrepare_CountDropsOrderings(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending)}, &querymodel.Count{}))

	assert.Empty(t, stmt.Orderings)
	assert.Equal(t, "COUNT(*)", stmt.SelectProjection.String())
	assert.Equal(t, &sqlstmt.StreamedScalar{Typ: ir.Int}, stmt.DataInfo)
}

func TestPrepare_AggregateAfterTakeWraps(t *testing.T) {
	stmt := prepare(t, cookQuery(field(cookRef(), "ID", ir.Int), nil, &querymodel.Take{Count: num(5)}, &querymodel.Sum{}))

	require.Len(t, stmt.SqlTables, 1)
	inner := subStatement(t, stmt.SqlTables[0])
	assert.NotNil(t, inner.TopExpression)
	assert.Equal(t, "SUM(TABLE-REF(int))", stmt.SelectProjection.String())
}

func TestPrepare_AverageOfIntegerConvertsToFloat(t *testing.T) {
	stmt := prepare(t, cookQuery(field(cookRef(), "ID", ir.Int), nil, &querymodel.Average{}))

	assert.Equal(t, "AVG(CONVERT(FLOAT, TABLE-REF(Cook).ID))", stmt.SelectProjection.String())
	assert.Equal(t, ir.Float, stmt.SelectProjection.Type())
}

func TestPrepare_FirstSingleLast(t *testing.T) {
	first := prepare(t, cookQuery(cookRef(), nil, &querymodel.First{ReturnDefaultWhenEmpty: true}))
	assert.Equal(t, "1", first.TopExpression.String())
	assert.Equal(t, &sqlstmt.StreamedSingle{Typ: cookType, ReturnDefaultWhenEmpty: true}, first.DataInfo)

	single := prepare(t, cookQuery(cookRef(), nil, &querymodel.Single{}))
	assert.Equal(t, "2", single.TopExpression.String())

	last := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending)}, &querymodel.Last{}))
	assert.Equal(t, "1", last.TopExpression.String())
	assert.Equal(t, sqlstmt.Descending, last.Orderings[0].Direction)
}

func TestPrepare_LastWithoutOrderingFails(t *testing.T) {
	_, err := Prepare(cookQuery(cookRef(), nil, &querymodel.Last{}), &Context{})
	assert.Equal(t, ir.ErrCodeUnsupportedOperator, ir.CodeOf(err))
}

func TestPrepare_UnsupportedOperators(t *testing.T) {
	for _, op := range []querymodel.ResultOperator{&querymodel.Reverse{}, &querymodel.Aggregate{Func: num(1)}} {
		t.Run(string(op.Kind()), func(t *testing.T) {
			_, err := Prepare(cookQuery(cookRef(), nil, op), &Context{})
			require.Error(t, err)
			assert.Equal(t, ir.ErrCodeUnsupportedOperator, ir.CodeOf(err))
		})
	}
}

func TestPrepare_TopLevelAnyHasNoTables(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending)}, &querymodel.Any{}))

	assert.Empty(t, stmt.SqlTables)
	exists, ok := stmt.SelectProjection.(*sqlstmt.Exists)
	require.True(t, ok)
	inner := exists.Operand.(*sqlstmt.SubStatement).Statement
	assert.Empty(t, inner.Orderings, "orderings are dropped inside EXISTS")
	assert.Equal(t, &sqlstmt.StreamedScalar{Typ: ir.Bool}, stmt.DataInfo)
}

func TestPrepare_AllNegatesPredicate(t *testing.T) {
	pred := &querymodel.Binary{Op: querymodel.OpGreaterThan, Left: field(&querymodel.ItemRef{Typ: cookType}, "ID", ir.Int), Right: num(0)}
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.All{Predicate: pred}))

	assert.Equal(t,
		"NOT (EXISTS((SELECT TABLE-REF(Cook) FROM TABLE(Cook) WHERE NOT ((TABLE-REF(Cook).ID > @(0))))))",
		stmt.SelectProjection.String())
}

func TestPrepare_NestedAnyIsInlined(t *testing.T) {
	assistantType := cookType
	sub := &querymodel.QueryModel{
		MainFromClause: &querymodel.MainFromClause{Name: "a", Type: assistantType,
			FromExpression: field(cookRef(), "Assistants", ir.SequenceOf(assistantType))},
		SelectClause:    &querymodel.SelectClause{Selector: &querymodel.QuerySourceRef{Name: "a", Typ: assistantType}},
		ResultOperators: []querymodel.ResultOperator{&querymodel.Any{}},
	}
	where := &querymodel.WhereClause{Predicate: &querymodel.SubQuery{Model: sub}}
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{where}))

	exists, ok := stmt.WhereCondition.(*sqlstmt.Exists)
	require.True(t, ok, "table-less subquery is inlined, got %T", stmt.WhereCondition)
	inner := exists.Operand.(*sqlstmt.SubStatement).Statement
	require.Len(t, inner.SqlTables, 1)
	join, ok := inner.SqlTables[0].Info.(*sqlstmt.UnresolvedCollectionJoinInfo)
	require.True(t, ok)
	assert.Equal(t, "Assistants", join.Member)
	assert.Same(t, stmt.SqlTables[0], join.Source.(*sqlstmt.TableRef).Table, "correlated to the outer table")
}

func TestPrepare_ContainsOnCollection(t *testing.T) {
	ids := &querymodel.Constant{Value: []any{1, 2, 3}, Typ: ir.SequenceOf(ir.Int)}
	call := &querymodel.Call{
		Object: ids,
		Method: querymodel.MethodRef{DeclaringType: "sequence", Name: "Contains", ParamTypes: []string{"int"}},
		Args:   []querymodel.Expr{field(cookRef(), "ID", ir.Int)},
		Typ:    ir.Bool,
	}
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{&querymodel.WhereClause{Predicate: call}}))

	assert.Equal(t, "TABLE-REF(Cook).ID IN (@(1), @(2), @(3))", stmt.WhereCondition.String())
}

func TestPrepare_StartsWithEscapesWildcards(t *testing.T) {
	call := &querymodel.Call{
		Object: field(cookRef(), "Name", ir.String),
		Method: querymodel.MethodRef{DeclaringType: "string", Name: "StartsWith", ParamTypes: []string{"string"}},
		Args:   []querymodel.Expr{str("50%_off")},
		Typ:    ir.Bool,
	}
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{&querymodel.WhereClause{Predicate: call}}))

	like, ok := stmt.WhereCondition.(*sqlstmt.Like)
	require.True(t, ok)
	assert.Equal(t, `50\%\_off%`, like.Pattern.(*sqlstmt.Constant).Value)
	assert.Equal(t, `\`, like.Escape)
}

func TestPrepare_UnknownMethodBecomesPlaceholder(t *testing.T) {
	call := &querymodel.Call{
		Object: field(cookRef(), "Name", ir.String),
		Method: querymodel.MethodRef{DeclaringType: "string", Name: "ToUpperInvariant"},
		Typ:    ir.String,
	}
	stmt := prepare(t, cookQuery(call, nil))

	p, ok := stmt.SelectProjection.(*sqlstmt.MethodPlaceholder)
	require.True(t, ok)
	assert.Equal(t, "string.ToUpperInvariant()", p.Signature)
}

func TestPrepare_UnionDropsUnpagedOrderings(t *testing.T) {
	second := cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Descending)})
	stmt := prepare(t, cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Ascending)},
		&querymodel.Union{Source2: &querymodel.SubQuery{Model: second}}))

	assert.Empty(t, stmt.Orderings)
	require.Len(t, stmt.SetOperations, 1)
	assert.Equal(t, sqlstmt.Union, stmt.SetOperations[0].Kind)
	assert.Empty(t, stmt.SetOperations[0].Statement.Orderings)
}

func TestPrepare_UnionKeepsTopOrderingsInSubquery(t *testing.T) {
	second := cookQuery(cookRef(), []querymodel.BodyClause{orderByName(querymodel.Descending)}, &querymodel.Take{Count: num(3)})
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.Concat{Source2: &querymodel.SubQuery{Model: second}}))

	right := stmt.SetOperations[0].Statement
	assert.Equal(t, sqlstmt.UnionAll, stmt.SetOperations[0].Kind)
	assert.Empty(t, right.Orderings)
	inner := subStatement(t, right.SqlTables[0])
	assert.NotNil(t, inner.TopExpression)
	assert.Len(t, inner.Orderings, 1)
}

func TestPrepare_GroupByAggregatePushdown(t *testing.T) {
	grouped := cookQuery(cookRef(), nil, &querymodel.GroupBy{KeySelector: field(&querymodel.ItemRef{Typ: cookType}, "Name", ir.String)})
	groupType := ir.GroupingOf(ir.String, cookType)
	g := &querymodel.QuerySourceRef{Name: "g", Typ: groupType}
	count := &querymodel.QueryModel{
		MainFromClause:  &querymodel.MainFromClause{Name: "x", Type: cookType, FromExpression: g},
		SelectClause:    &querymodel.SelectClause{Selector: &querymodel.QuerySourceRef{Name: "x", Typ: cookType}},
		ResultOperators: []querymodel.ResultOperator{&querymodel.Count{}},
	}
	outer := &querymodel.QueryModel{
		MainFromClause: &querymodel.MainFromClause{Name: "g", Type: groupType, FromExpression: &querymodel.SubQuery{Model: grouped}},
		SelectClause: &querymodel.SelectClause{Selector: &querymodel.New{
			TypeName: "NameCount",
			Members:  []string{"Name", "Count"},
			Args:     []querymodel.Expr{field(g, "Key", ir.String), &querymodel.SubQuery{Model: count}},
		}},
	}
	stmt := prepare(t, outer)

	inner := subStatement(t, stmt.SqlTables[0])
	gs, ok := inner.SelectProjection.(*sqlstmt.GroupingSelect)
	require.True(t, ok)
	require.Len(t, gs.Aggregations, 1)
	assert.Equal(t, "COUNT(*) AS a0", gs.Aggregations[0].String())
	assert.Equal(t, "TABLE-REF(Cook).Name", inner.GroupByExpression.String())

	n := stmt.SelectProjection.(*sqlstmt.New)
	assert.Equal(t, "Key", n.Args[0].(*sqlstmt.MemberRef).Member)
	assert.Equal(t, "a0", n.Args[1].(*sqlstmt.MemberRef).Member)
}

func TestPrepare_JoinClauseAddsEquality(t *testing.T) {
	k := &querymodel.QuerySourceRef{Name: "k", Typ: kitchenType}
	join := &querymodel.JoinClause{
		Name:             "k",
		Type:             kitchenType,
		InnerSequence:    &querymodel.Table{Entity: kitchenType},
		OuterKeySelector: field(cookRef(), "KitchenID", ir.Int),
		InnerKeySelector: field(k, "ID", ir.Int),
	}
	stmt := prepare(t, cookQuery(field(k, "Name", ir.String), []querymodel.BodyClause{join}))

	require.Len(t, stmt.SqlTables, 2)
	assert.Equal(t, "(TABLE-REF(Cook).KitchenID = TABLE-REF(Kitchen).ID)", stmt.WhereCondition.String())
}

func TestPrepare_DefaultIfEmptyOuterApplies(t *testing.T) {
	stmt := prepare(t, cookQuery(cookRef(), nil, &querymodel.DefaultIfEmpty{}))

	require.Len(t, stmt.SqlTables, 2)
	empty := subStatement(t, stmt.SqlTables[0])
	assert.Equal(t, "SELECT NULL AS Empty", empty.String())
	assert.Equal(t, sqlstmt.Left, stmt.SqlTables[1].JoinSemantics)
}

func TestPrepare_GroupingSourceWithoutAggregateFails(t *testing.T) {
	groupType := ir.GroupingOf(ir.String, cookType)
	grouped := cookQuery(cookRef(), nil, &querymodel.GroupBy{KeySelector: field(&querymodel.ItemRef{Typ: cookType}, "Name", ir.String)})
	elements := &querymodel.QueryModel{
		MainFromClause: &querymodel.MainFromClause{Name: "x", Type: cookType, FromExpression: &querymodel.QuerySourceRef{Name: "g", Typ: groupType}},
		SelectClause:   &querymodel.SelectClause{Selector: &querymodel.QuerySourceRef{Name: "x", Typ: cookType}},
	}
	outer := &querymodel.QueryModel{
		MainFromClause: &querymodel.MainFromClause{Name: "g", Type: groupType, FromExpression: &querymodel.SubQuery{Model: grouped}},
		SelectClause:   &querymodel.SelectClause{Selector: &querymodel.SubQuery{Model: elements}},
	}

	_, err := Prepare(outer, &Context{})
	assert.Equal(t, ir.ErrCodeUnsupportedExpression, ir.CodeOf(err))
}

func TestMethodRegistry_LookupOrder(t *testing.T) {
	r := NewMethodRegistry()
	hit := func(tag string) MethodTransformer {
		return func(*MethodCall) (sqlstmt.Expression, error) {
			return &sqlstmt.Literal{Typ: ir.String, Value: tag}, nil
		}
	}
	r.RegisterSignature("string.Pad(int)", hit("signature"))
	r.RegisterAttribute("sql:function", hit("attribute"))
	r.RegisterName("Pad", hit("name"))

	cases := []struct {
		ref  querymodel.MethodRef
		want string
	}{
		{querymodel.MethodRef{DeclaringType: "string", Name: "Pad", ParamTypes: []string{"int"}, Attribute: "sql:function"}, "signature"},
		{querymodel.MethodRef{DeclaringType: "string", Name: "Pad", ParamTypes: []string{"string"}, Attribute: "sql:function"}, "attribute"},
		{querymodel.MethodRef{DeclaringType: "string", Name: "Pad"}, "name"},
	}
	for _, tc := range cases {
		fn, ok := r.Lookup(tc.ref)
		require.True(t, ok, tc.ref.Signature())
		out, _ := fn(&MethodCall{})
		assert.Equal(t, tc.want, out.(*sqlstmt.Literal).Value)
	}

	_, ok := r.Lookup(querymodel.MethodRef{Name: "Other"})
	assert.False(t, ok)
}

func TestConflicts(t *testing.T) {
	b := sqlstmt.NewBuilder(nil)
	assert.Zero(t, conflicts(querymodel.KindDistinct, b))

	b.TopExpression = sqlstmt.IntLiteral(1)
	assert.Equal(t, featTop, conflicts(querymodel.KindDistinct, b))
	assert.Equal(t, featTop, conflicts(querymodel.KindCount, b))
	assert.Zero(t, conflicts(querymodel.KindContains, b))

	assert.Equal(t, featTop, conflicts(querymodel.KindOfType, b))

	b.IsDistinctQuery = true
	assert.Equal(t, "top|distinct", conflicts(querymodel.KindGroupBy, b).String())
	assert.Equal(t, featTop, conflicts(querymodel.KindOfType, b))
}
