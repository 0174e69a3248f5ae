package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlstmt"
	"github.com/roach88/relq/internal/testutil"
)

func table(name string) *sqlstmt.Table {
	return sqlstmt.NewTable(&sqlstmt.UnresolvedTableInfo{Typ: ir.Entity(name)})
}

func ref(t *sqlstmt.Table) *sqlstmt.TableRef { return &sqlstmt.TableRef{Table: t} }

func member(src sqlstmt.Expression, name string, typ ir.Type) *sqlstmt.MemberRef {
	return &sqlstmt.MemberRef{Source: src, Member: name, Typ: typ}
}

func statement(t *testing.T, projection, where sqlstmt.Expression, tables ...*sqlstmt.Table) *sqlstmt.Statement {
	t.Helper()
	b := sqlstmt.NewBuilder(nil)
	b.SelectProjection = projection
	b.WhereCondition = where
	for _, tb := range tables {
		b.AddTable(tb)
	}
	b.DataInfo = &sqlstmt.StreamedSequence{Item: projection.Type()}
	stmt, err := b.Build()
	require.NoError(t, err)
	return stmt
}

func newContext() *Context {
	return NewContext(testutil.KitchenResolver(), nil)
}

func resolve(t *testing.T, stmt *sqlstmt.Statement) *sqlstmt.Statement {
	t.Helper()
	out, err := Resolve(stmt, newContext())
	require.NoError(t, err)
	return out
}

func TestResolve_MembersBecomeColumns(t *testing.T) {
	cook := table("Cook")
	stmt := statement(t,
		member(ref(cook), "FirstName", ir.String),
		sqlstmt.NewBinary(sqlstmt.OpEqual, member(ref(cook), "Name", ir.String), &sqlstmt.Constant{Typ: ir.String, Value: "Huber"}),
		cook)

	out := resolve(t, stmt)
	assert.Equal(t, "SELECT [t0].[FirstName] FROM [CookTable] AS [t0] WHERE ([t0].[Name] = @('Huber'))", out.String())
	assert.True(t, IsResolved(out))
	assert.False(t, IsResolved(stmt))
}

func TestResolve_ResolvedInputIsReturnedAsIs(t *testing.T) {
	cook := table("Cook")
	out := resolve(t, statement(t, member(ref(cook), "Name", ir.String), nil, cook))

	again, err := Resolve(out, newContext())
	require.NoError(t, err)
	assert.Same(t, out, again)
}

func TestResolve_TableItemIsEntity(t *testing.T) {
	cook := table("Cook")
	out := resolve(t, statement(t, ref(cook), nil, cook))

	entity, ok := out.SelectProjection.(*sqlstmt.Entity)
	require.True(t, ok)
	assert.Equal(t, "t0", entity.TableAlias)
	require.Len(t, entity.Identity, 1)
	assert.Equal(t, "[t0].[ID]", entity.Identity[0].String())
}

func TestResolve_NavigationIsJoinedOnce(t *testing.T) {
	cook := table("Cook")
	kitchen := member(ref(cook), "Kitchen", ir.Entity("Kitchen"))
	stmt := statement(t,
		&sqlstmt.New{
			Typ:     ir.Object("Result"),
			Members: []string{"A", "B"},
			Args:    []sqlstmt.Expression{member(kitchen, "Name", ir.String), member(kitchen, "RoomNumber", ir.Int)},
		},
		nil, cook)

	out := resolve(t, stmt)
	assert.Equal(t,
		"SELECT new Result(A = [t1].[Name], B = [t1].[RoomNumber]) FROM [CookTable] AS [t0] "+
			"LEFT OUTER JOIN [KitchenTable] AS [t1] ON ([t0].[KitchenID] = [t1].[ID])",
		out.String())
	assert.Len(t, out.SqlTables[0].Joins, 1)
}

func TestResolve_ChainedNavigationsNest(t *testing.T) {
	cook := table("Cook")
	restaurant := member(member(ref(cook), "Kitchen", ir.Entity("Kitchen")), "Restaurant", ir.Entity("Restaurant"))
	out := resolve(t, statement(t, member(restaurant, "Name", ir.String), nil, cook))

	assert.Equal(t,
		"SELECT [t2].[Name] FROM [CookTable] AS [t0] "+
			"LEFT OUTER JOIN [KitchenTable] AS [t1] ON ([t0].[KitchenID] = [t1].[ID]) "+
			"LEFT OUTER JOIN [RestaurantTable] AS [t2] ON ([t1].[RestaurantID] = [t2].[ID])",
		out.String())
	require.Len(t, out.SqlTables[0].Joins, 1)
	assert.Len(t, out.SqlTables[0].Joins[0].Joins, 1)
}

func TestResolve_IdentityComparison(t *testing.T) {
	kitchenConst := &sqlstmt.Constant{Typ: ir.Entity("Kitchen"), Value: map[string]any{"ID": 5}}
	knifeConst := &sqlstmt.Constant{Typ: ir.Entity("Knife"), Value: map[string]any{"ID": 1, "ClassID": "a"}}

	tests := []struct {
		name  string
		where func(cook *sqlstmt.Table) sqlstmt.Expression
		want  string
	}{
		{
			name: "foreign key instead of join",
			where: func(cook *sqlstmt.Table) sqlstmt.Expression {
				return sqlstmt.NewBinary(sqlstmt.OpEqual, member(ref(cook), "Kitchen", ir.Entity("Kitchen")), kitchenConst)
			},
			want: "([t0].[KitchenID] = @(5))",
		},
		{
			name: "compound identity",
			where: func(cook *sqlstmt.Table) sqlstmt.Expression {
				return sqlstmt.NewBinary(sqlstmt.OpEqual, member(ref(cook), "Knife", ir.Entity("Knife")), knifeConst)
			},
			want: "(([t0].[KnifeID] = @(1)) AND ([t0].[KnifeClassID] = @('a')))",
		},
		{
			name: "compound inequality",
			where: func(cook *sqlstmt.Table) sqlstmt.Expression {
				return sqlstmt.NewBinary(sqlstmt.OpNotEqual, member(ref(cook), "Knife", ir.Entity("Knife")), knifeConst)
			},
			want: "NOT ((([t0].[KnifeID] = @(1)) AND ([t0].[KnifeClassID] = @('a'))))",
		},
		{
			name: "entity against itself",
			where: func(cook *sqlstmt.Table) sqlstmt.Expression {
				return sqlstmt.NewBinary(sqlstmt.OpNotEqual, ref(cook), ref(cook))
			},
			want: "([t0].[ID] <> [t0].[ID])",
		},
		{
			name: "navigation is null",
			where: func(cook *sqlstmt.Table) sqlstmt.Expression {
				return &sqlstmt.IsNull{Operand: member(ref(cook), "Kitchen", ir.Entity("Kitchen"))}
			},
			want: "([t0].[KitchenID] IS NULL)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cook := table("Cook")
			out := resolve(t, statement(t, member(ref(cook), "Name", ir.String), tt.where(cook), cook))
			assert.Equal(t, tt.want, out.WhereCondition.String())
			assert.Empty(t, out.SqlTables[0].Joins)
		})
	}
}

func TestResolve_IdentityThroughJoin(t *testing.T) {
	cook := table("Cook")
	where := &sqlstmt.IsNotNull{Operand: member(ref(cook), "Substitution", ir.Entity("Cook"))}
	out := resolve(t, statement(t, member(ref(cook), "Name", ir.String), where, cook))

	assert.Equal(t,
		"SELECT [t0].[Name] FROM [CookTable] AS [t0] "+
			"LEFT OUTER JOIN [CookTable] AS [t1] ON ([t0].[ID] = [t1].[SubstitutedID]) "+
			"WHERE ([t1].[ID] IS NOT NULL)",
		out.String())
}

func TestResolve_SubStatementTableIsAliasedFirst(t *testing.T) {
	cook := table("Cook")
	inner := statement(t, member(ref(cook), "Name", ir.String), nil, cook)
	q := sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: inner})

	out := resolve(t, statement(t, ref(q), nil, q))
	assert.Equal(t, "SELECT [q0].[value] FROM (SELECT [t1].[Name] FROM [CookTable] AS [t1]) AS [q0]", out.String())
}

func TestResolve_CollectionSource(t *testing.T) {
	cook := table("Cook")
	assistants := sqlstmt.NewTable(&sqlstmt.UnresolvedCollectionJoinInfo{
		Source: ref(cook),
		Member: "Assistants",
		Typ:    ir.Entity("Cook"),
	})
	where := sqlstmt.NewBinary(sqlstmt.OpEqual, member(ref(assistants), "Name", ir.String), &sqlstmt.Constant{Typ: ir.String, Value: "x"})
	out := resolve(t, statement(t, member(ref(assistants), "Name", ir.String), where, cook, assistants))

	assert.Equal(t,
		"SELECT [t1].[Name] FROM [CookTable] AS [t0], [CookTable] AS [t1] "+
			"WHERE (([t0].[ID] = [t1].[AssistedID]) AND ([t1].[Name] = @('x')))",
		out.String())
}

func TestResolve_SingleEntityIsOuterApplied(t *testing.T) {
	kitchen := table("Kitchen")
	cook := table("Cook")
	b := sqlstmt.NewBuilder(nil)
	b.SelectProjection = ref(cook)
	b.AddTable(cook)
	b.WhereCondition = sqlstmt.NewBinary(sqlstmt.OpEqual, member(ref(cook), "KitchenID", ir.Int.AsNullable()), member(ref(kitchen), "ID", ir.Int))
	b.TopExpression = sqlstmt.IntLiteral(1)
	b.DataInfo = &sqlstmt.StreamedSingle{Typ: ir.Entity("Cook"), ReturnDefaultWhenEmpty: true}
	first, err := b.Build()
	require.NoError(t, err)

	stmt := statement(t, member(&sqlstmt.SubStatement{Statement: first}, "Name", ir.String), nil, kitchen)
	out := resolve(t, stmt)

	assert.Equal(t, "[q1].[Name]", out.SelectProjection.String())
	require.Len(t, out.SqlTables, 2)
	applied := out.SqlTables[1]
	assert.Equal(t, sqlstmt.Left, applied.JoinSemantics)
	assert.Equal(t, "q1", applied.Alias())
	sub := applied.Info.(*sqlstmt.ResolvedSubStatementTableInfo)
	assert.Equal(t, "([t2].[KitchenID] = [t0].[ID])", sub.Statement.WhereCondition.String())
}

func TestResolve_ScalarSubStatementStaysNested(t *testing.T) {
	kitchen := table("Kitchen")
	cook := table("Cook")
	b := sqlstmt.NewBuilder(nil)
	b.SelectProjection = member(ref(cook), "Name", ir.String)
	b.AddTable(cook)
	b.TopExpression = sqlstmt.IntLiteral(1)
	b.DataInfo = &sqlstmt.StreamedSingle{Typ: ir.String}
	first, err := b.Build()
	require.NoError(t, err)

	out := resolve(t, statement(t, &sqlstmt.SubStatement{Statement: first}, nil, kitchen))
	assert.Equal(t, "SELECT (SELECT TOP (1) [t1].[Name] FROM [CookTable] AS [t1]) FROM [KitchenTable] AS [t0]", out.String())
}

func TestResolve_SequenceIsNotAValue(t *testing.T) {
	kitchen := table("Kitchen")
	cook := table("Cook")
	names := statement(t, member(ref(cook), "Name", ir.String), nil, cook)

	_, err := Resolve(statement(t, &sqlstmt.SubStatement{Statement: names}, nil, kitchen), newContext())
	assert.True(t, ir.IsUnsupported(err))
}

func TestResolve_InOverEntities(t *testing.T) {
	cook := table("Cook")
	other := table("Cook")
	set := statement(t, ref(other), nil, other)
	where := &sqlstmt.In{Item: ref(cook), Set: &sqlstmt.SubStatement{Statement: set}}

	out := resolve(t, statement(t, member(ref(cook), "Name", ir.String), where, cook))
	assert.Equal(t, "[t0].[ID] IN (SELECT [t1].[ID] FROM [CookTable] AS [t1])", out.WhereCondition.String())

	knife := table("Knife")
	knives := table("Knife")
	where = &sqlstmt.In{Item: ref(knife), Set: &sqlstmt.SubStatement{Statement: statement(t, ref(knives), nil, knives)}}
	_, err := Resolve(statement(t, member(ref(knife), "Sharpness", ir.Float), where, knife), newContext())
	assert.True(t, ir.IsUnsupported(err), "compound identities cannot use IN")
}

func TestResolve_InOverEntityConstants(t *testing.T) {
	cook := table("Cook")
	where := &sqlstmt.In{
		Item: member(ref(cook), "Kitchen", ir.Entity("Kitchen")),
		Set: &sqlstmt.Collection{Typ: ir.SequenceOf(ir.Entity("Kitchen")), Items: []sqlstmt.Expression{
			&sqlstmt.Constant{Typ: ir.Entity("Kitchen"), Value: map[string]any{"ID": 1}},
			&sqlstmt.Constant{Typ: ir.Entity("Kitchen"), Value: map[string]any{"ID": 2}},
		}},
	}
	out := resolve(t, statement(t, member(ref(cook), "Name", ir.String), where, cook))
	assert.Equal(t, "[t0].[KitchenID] IN (@(1), @(2))", out.WhereCondition.String())
}

func TestResolve_TypeCheck(t *testing.T) {
	cook := table("Cook")
	where := &sqlstmt.TypeCheck{Operand: ref(cook), Desired: ir.Entity("Chef")}
	out := resolve(t, statement(t, member(ref(cook), "Name", ir.String), where, cook))
	assert.Equal(t, "([t0].[Type] = @('Chef'))", out.WhereCondition.String())
}

func TestResolve_GroupingMembers(t *testing.T) {
	cook := table("Cook")
	key := member(ref(cook), "Name", ir.String)
	b := sqlstmt.NewBuilder(nil)
	b.AddTable(cook)
	b.SelectProjection = &sqlstmt.GroupingSelect{
		Typ:     ir.GroupingOf(ir.String, ir.Entity("Cook")),
		Key:     key,
		Element: ref(cook),
		Aggregations: []*sqlstmt.Named{
			{Name: "a0", Expr: &sqlstmt.Aggregation{Typ: ir.Int, Func: sqlstmt.AggCount}},
		},
	}
	b.GroupByExpression = key
	b.DataInfo = &sqlstmt.StreamedSequence{Item: ir.GroupingOf(ir.String, ir.Entity("Cook"))}
	grouped, err := b.Build()
	require.NoError(t, err)

	q := sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: grouped})
	projection := &sqlstmt.New{
		Typ:     ir.Object("Result"),
		Members: []string{"Name", "Count"},
		Args:    []sqlstmt.Expression{member(ref(q), "Key", ir.String), member(ref(q), "a0", ir.Int)},
	}
	out := resolve(t, statement(t, projection, nil, q))
	assert.Equal(t, "new Result(Name = [q0].[key], Count = [q0].[a0])", out.SelectProjection.String())

	projection.Args[1] = member(ref(q), "a7", ir.Int)
	_, err = Resolve(statement(t, projection, nil, q), newContext())
	assert.True(t, ir.IsUnsupported(err))
}

func TestResolve_Failures(t *testing.T) {
	oven := table("Oven")
	_, err := Resolve(statement(t, ref(oven), nil, oven), newContext())
	assert.True(t, ir.IsMappingFailure(err))

	cook := table("Cook")
	_, err = Resolve(statement(t, member(ref(cook), "Missing", ir.String), nil, cook), newContext())
	assert.True(t, ir.IsMappingFailure(err))

	stray := table("Cook")
	_, err = Resolve(statement(t, ref(stray), nil, cook), newContext())
	assert.True(t, ir.IsUnsupported(err), "a table outside the statement is not in scope")
}

func TestResolve_BooleanContexts(t *testing.T) {
	starred := func(cook *sqlstmt.Table) sqlstmt.Expression {
		return member(ref(cook), "IsStarredCook", ir.Bool)
	}

	cook := table("Cook")
	out := resolve(t, statement(t, starred(cook), starred(cook), cook))
	assert.Equal(t,
		"SELECT CONVERTED_BOOL([t0].[IsStarredCook]) FROM [CookTable] AS [t0] WHERE (CONVERTED_BOOL([t0].[IsStarredCook]) = 1)",
		out.String())

	cook = table("Cook")
	isHuber := sqlstmt.NewBinary(sqlstmt.OpEqual, member(ref(cook), "Name", ir.String), &sqlstmt.Constant{Typ: ir.String, Value: "Huber"})
	out = resolve(t, statement(t, isHuber, &sqlstmt.Literal{Typ: ir.Bool, Value: true}, cook))
	assert.Equal(t,
		"SELECT CONVERTED_BOOL(CASE WHEN ([t0].[Name] = @('Huber')) THEN 1 ELSE 0 END) FROM [CookTable] AS [t0] WHERE (1 = 1)",
		out.String())
}

func TestApplyContext_PredicateOverNullableOperandsIsTwoValued(t *testing.T) {
	name := &sqlstmt.Constant{Typ: ir.String.AsNullable(), Value: "Huber"}
	p := sqlstmt.Not(sqlstmt.NewBinary(sqlstmt.OpEqual, name, &sqlstmt.Constant{Typ: ir.String, Value: "Lux"}))
	require.False(t, p.Type().Nullable)

	out, err := ApplyContext(p, ValueRequired)
	require.NoError(t, err)
	converted, ok := out.(*sqlstmt.ConvertedBoolean)
	require.True(t, ok, "expected converted boolean, got %T", out)
	c, ok := converted.Expr.(*sqlstmt.Case)
	require.True(t, ok, "expected CASE, got %T", converted.Expr)

	require.Len(t, c.Cases, 1)
	assert.Equal(t, p.String(), c.Cases[0].When.String())
	assert.Equal(t, sqlstmt.IntLiteral(0), c.Else)
	assert.Equal(t, ir.Int, c.Typ)
}
