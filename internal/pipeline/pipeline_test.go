package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/prepare"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlgen"
	"github.com/roach88/relq/internal/sqlstmt"
	"github.com/roach88/relq/internal/testutil"
)

func decode(t *testing.T, doc string) *querymodel.QueryModel {
	t.Helper()
	m, err := querymodel.Decode(strings.NewReader(doc), testutil.KitchenSchema())
	require.NoError(t, err)
	return m
}

func compile(t *testing.T, doc string, opts ...Option) *sqlgen.Command {
	t.Helper()
	cmd, err := Compile(decode(t, doc), testutil.KitchenResolver(), opts...)
	require.NoError(t, err)
	return cmd
}

func args(cmd *sqlgen.Command) map[string]any {
	out := map[string]any{}
	for _, p := range cmd.Parameters {
		out[p.Name] = p.Value
	}
	return out
}

const byName = `
from: {name: c, table: Cook}
clauses:
  - where: {op: "==", left: {path: c.Name}, right: {const: Huber}}
select: {path: c.FirstName}
`

func TestCompile_FilterByName(t *testing.T) {
	cmd := compile(t, byName)

	assert.Equal(t,
		"SELECT [t0].[FirstName] AS [value] FROM [CookTable] AS [t0] WHERE ([t0].[Name] = @1)",
		cmd.Text)
	assert.Equal(t, []sqlstmt.Parameter{{Name: "@1", Value: "Huber"}}, cmd.Parameters)
	assert.Equal(t, &sqlstmt.StreamedSequence{Item: ir.String}, cmd.DataInfo)
	assert.Equal(t, &projection.ReadValue{Index: 0, Type: ir.String}, cmd.Projection)
}

func TestCompile_SkipPagesByRowNumber(t *testing.T) {
	cmd := compile(t, `
from: {name: c, table: Cook}
clauses:
  - orderby: [{expr: {path: c.Name}}]
select: {path: c.Name}
operators:
  - skip: {const: 100}
`)

	assert.Equal(t,
		"SELECT [q0].[Key] AS [value] FROM ("+
			"SELECT [t1].[Name] AS [Key], ROW_NUMBER() OVER (ORDER BY [t1].[Name] ASC) AS [Value] FROM [CookTable] AS [t1]"+
			") AS [q0] WHERE ([q0].[Value] > @1) ORDER BY [q0].[Value] ASC",
		cmd.Text)
	assert.Equal(t, []sqlstmt.Parameter{{Name: "@1", Value: 100}}, cmd.Parameters)
}

func TestCompile_UnionDropsOrderings(t *testing.T) {
	cmd := compile(t, `
from: {name: c, table: Cook}
clauses:
  - orderby: [{expr: {path: c.Name}}]
select: {path: c.Name}
operators:
  - union:
      subquery:
        from: {name: k, table: Kitchen}
        clauses:
          - orderby: [{expr: {path: k.Name}, desc: true}]
        select: {path: k.Name}
`)

	assert.True(t, strings.HasPrefix(cmd.Text, "SELECT [t0].[Name] AS [value] FROM [CookTable] AS [t0] UNION (SELECT "), cmd.Text)
	assert.Contains(t, cmd.Text, "FROM [KitchenTable] AS [t")
	assert.True(t, strings.HasSuffix(cmd.Text, ")"), cmd.Text)
	assert.NotContains(t, cmd.Text, "ORDER BY")
}

func TestCompile_ContainsOverConstants(t *testing.T) {
	tests := []struct {
		name   string
		values string
		where  string
		params int
	}{
		{"three values", "[1, 2, 3]", "[t0].[ID] IN (@1, @2, @3)", 3},
		{"empty", "[]", "[t0].[ID] IN (SELECT NULL WHERE 1 = 0)", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := compile(t, `
from: {name: c, table: Cook}
clauses:
  - where: {call: Contains, on: {const: `+tt.values+`}, args: [{path: c.ID}]}
select: {path: c.FirstName}
`)
			assert.Equal(t,
				"SELECT [t0].[FirstName] AS [value] FROM [CookTable] AS [t0] WHERE "+tt.where,
				cmd.Text)
			assert.Len(t, cmd.Parameters, tt.params)
		})
	}
}

func TestCompile_RepeatedNavigationJoinsOnce(t *testing.T) {
	cmd := compile(t, `
from: {name: c, table: Cook}
clauses:
  - where: {op: "==", left: {path: c.Kitchen.Restaurant.Name}, right: {const: Lux}}
select: {path: c.Kitchen.Restaurant.Name}
`)

	assert.Equal(t,
		"SELECT [t2].[Name] AS [value] FROM [CookTable] AS [t0] "+
			"LEFT OUTER JOIN [KitchenTable] AS [t1] ON ([t0].[KitchenID] = [t1].[ID]) "+
			"LEFT OUTER JOIN [RestaurantTable] AS [t2] ON ([t1].[RestaurantID] = [t2].[ID]) "+
			"WHERE ([t2].[Name] = @1)",
		cmd.Text)
	assert.Equal(t, 2, strings.Count(cmd.Text, "LEFT OUTER JOIN"))
}

func TestCompile_Deterministic(t *testing.T) {
	doc := `
from: {name: c, table: Cook}
clauses:
  - where: {op: "&&", left: {op: "==", left: {path: c.Name}, right: {const: Huber}}, right: {op: "==", left: {path: c.FirstName}, right: {const: Huber}}}
  - orderby: [{expr: {path: c.Kitchen.Name}}]
select: {new: Result, members: {Name: {path: c.Name}, Kitchen: {path: c.Kitchen.Name}}}
operators:
  - take: {const: 10}
`
	first := compile(t, doc)
	second := compile(t, doc)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Parameters, second.Parameters)
	assert.Equal(t, ir.MustFingerprint(first.Text, first.Args()), ir.MustFingerprint(second.Text, second.Args()))
}

func TestCompile_ParametersFollowTextOrder(t *testing.T) {
	cmd := compile(t, `
from: {name: c, table: Cook}
clauses:
  - where: {op: "&&", left: {op: "==", left: {path: c.Name}, right: {const: Huber}}, right: {op: "==", left: {path: c.FirstName}, right: {const: Huber}}}
select: {path: c.ID}
operators:
  - take: {const: 5}
`)

	// TOP comes first in the text, so its count is @1.
	assert.Equal(t,
		"SELECT TOP (@1) [t0].[ID] AS [value] FROM [CookTable] AS [t0] WHERE (([t0].[Name] = @2) AND ([t0].[FirstName] = @3))",
		cmd.Text)
	assert.Equal(t, map[string]any{"@1": 5, "@2": "Huber", "@3": "Huber"}, args(cmd))
	assert.Equal(t, []any{5, "Huber", "Huber"}, cmd.Args())
}

func TestCompile_BooleansNeverDoubleConvert(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "column as predicate",
			doc: `
from: {name: c, table: Cook}
clauses:
  - where: {path: c.IsFullTimeCook}
select: {path: c.IsStarredCook}
`,
			want: "SELECT [t0].[IsStarredCook] AS [value] FROM [CookTable] AS [t0] WHERE ([t0].[IsFullTimeCook] = 1)",
		},
		{
			name: "predicate as value",
			doc: `
from: {name: c, table: Cook}
select: {op: "==", left: {path: c.Name}, right: {const: Huber}}
`,
			want: "SELECT CASE WHEN ([t0].[Name] = @1) THEN 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := compile(t, tt.doc)
			assert.True(t, strings.HasPrefix(cmd.Text, tt.want), cmd.Text)
			assert.NotContains(t, cmd.Text, "CASE WHEN CASE WHEN")
		})
	}
}

func TestCompile_CompoundIdentityStaysTogether(t *testing.T) {
	cmd := compile(t, `
from: {name: c, table: Cook}
select: {path: c.Knife}
`)

	knife, ok := cmd.Projection.(*projection.ReadEntity)
	require.True(t, ok, "projection %T", cmd.Projection)
	assert.Equal(t, len(knife.Columns), projection.Reads(knife))
	// Two key columns: the join matches both, ANDed.
	assert.Equal(t, 2, strings.Count(cmd.Text, " = "), cmd.Text)
	assert.Contains(t, cmd.Text, ") AND (")

	keys := 0
	for _, c := range knife.Columns {
		if c.IsPrimaryKey {
			keys++
		}
	}
	assert.Equal(t, 2, keys)
}

func TestCompile_MethodTransformers(t *testing.T) {
	doc := `
from: {name: c, table: Cook}
select: {call: Soundex, on: {path: c.Name}, type: string}
`
	_, err := Compile(decode(t, doc), testutil.KitchenResolver())
	require.Error(t, err)
	assert.Equal(t, ir.ErrCodeUnsupportedMethodCall, ir.CodeOf(err))

	cmd := compile(t, doc, WithMethodTransformers(func(r *prepare.MethodRegistry) {
		r.RegisterName("Soundex", func(call *prepare.MethodCall) (sqlstmt.Expression, error) {
			return &sqlstmt.FunctionCall{Typ: ir.String, Name: "SOUNDEX", Args: []sqlstmt.Expression{call.Object}}, nil
		})
	}))
	assert.Equal(t, "SELECT SOUNDEX([t0].[Name]) AS [value] FROM [CookTable] AS [t0]", cmd.Text)

	_, ok := prepare.DefaultMethods().Lookup(querymodel.MethodRef{Name: "Soundex"})
	assert.False(t, ok, "defaults must not change")
}

func TestCompile_Evaluators(t *testing.T) {
	cmd := compile(t, `
from: {name: c, table: Cook}
select: {call: ToUpperInvariant, on: {path: c.Name}, type: string}
`, WithEvaluators(projection.StringEvaluators()))

	assert.Equal(t, "SELECT [t0].[Name] AS [Object] FROM [CookTable] AS [t0]", cmd.Text)
	require.IsType(t, &projection.Evaluate{}, cmd.Projection)

	v, err := projection.Materialize(cmd.Projection, row{"huber"})
	require.NoError(t, err)
	assert.Equal(t, "HUBER", v)
}

func TestCompile_Failures(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		mapping bool
	}{
		{
			name:    "unmapped entity",
			doc:     "from: {name: o, table: Oven}\n",
			mapping: true,
		},
		{
			name: "rejected operator",
			doc:  "from: {name: c, table: Cook}\noperators:\n  - reverse\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Compile(decode(t, tt.doc), testutil.KitchenResolver())
			require.Error(t, err)
			assert.Nil(t, cmd)
			assert.Equal(t, tt.mapping, ir.IsMappingFailure(err))
			assert.Equal(t, !tt.mapping, ir.IsUnsupported(err))
		})
	}
}

func TestCompile_LogsFingerprint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cmd := compile(t, byName, WithLogger(logger))

	out := buf.String()
	assert.Contains(t, out, "msg=\"prepared statement\"")
	assert.Contains(t, out, "msg=\"resolved statement\"")
	assert.Contains(t, out, "fingerprint="+ir.MustFingerprint(cmd.Text, cmd.Args()))
	assert.Contains(t, out, "parameters=1")
}

func TestCompileAll(t *testing.T) {
	models := []*querymodel.QueryModel{
		decode(t, byName),
		decode(t, "from: {name: k, table: Kitchen}\nselect: {path: k.Name}\n"),
		decode(t, byName),
	}

	cmds, err := CompileAll(context.Background(), models, testutil.KitchenResolver(), WithWorkers(2))
	require.NoError(t, err)
	require.Len(t, cmds, 3)

	// Every compilation numbers its own aliases from zero.
	assert.Equal(t, "SELECT [t0].[Name] AS [value] FROM [KitchenTable] AS [t0]", cmds[1].Text)
	assert.Equal(t, cmds[0].Text, cmds[2].Text)
}

func TestCompileAll_ReportsFailingQuery(t *testing.T) {
	models := []*querymodel.QueryModel{
		decode(t, byName),
		decode(t, "from: {name: o, table: Oven}\n"),
	}

	_, err := CompileAll(context.Background(), models, testutil.KitchenResolver())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query 1:")
	assert.True(t, ir.IsMappingFailure(err))
}

// row is a RowAccessor over in-memory values.
type row []any

func (r row) GetValue(index int, _ ir.Type) (any, error) { return r[index], nil }

func (r row) GetEntity(typ ir.Type, columns []projection.ColumnRef) (any, error) {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = r[c.Index]
	}
	return projection.BuildEntity(typ, columns, values), nil
}
