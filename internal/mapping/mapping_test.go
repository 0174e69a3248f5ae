package mapping_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/mapping"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/sqlstmt"
	"github.com/roach88/relq/internal/testutil"
)

func TestDecodeYAML_Conventions(t *testing.T) {
	s := testutil.KitchenSchema()

	knife, ok := s.Entity("Knife")
	require.True(t, ok)
	assert.Equal(t, "Knives", knife.Table, "empty table name defaults to the plural")
	assert.Len(t, knife.Keys(), 2)

	chef, ok := s.Entity("Chef")
	require.True(t, ok)
	assert.Equal(t, "CookTable", chef.Table, "derived types share the base table")
	cols := chef.AllColumns()
	assert.Equal(t, "ID", cols[0].Member)
	assert.Equal(t, "LetterOfRecommendation", cols[len(cols)-1].Member)

	cook, _ := s.Entity("Cook")
	for _, c := range cook.AllColumns() {
		if c.Member == "CookType" {
			assert.Equal(t, "Type", c.Column)
		}
		if c.Member == "Name" {
			assert.Equal(t, "Name", c.Column, "column defaults to the member name")
		}
	}
}

func TestSchema_MemberType(t *testing.T) {
	s := testutil.KitchenSchema()
	cook := ir.Entity("Cook")

	tests := []struct {
		member string
		want   string
	}{
		{"Name", "string"},
		{"Salary", "decimal?"},
		{"IsStarredCook", "bool"},
		{"Kitchen", "Kitchen"},
		{"Assistants", "seq<Cook>"},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			typ, ok := s.MemberType(cook, tt.member)
			require.True(t, ok)
			assert.Equal(t, tt.want, typ.String())
		})
	}

	_, ok := s.MemberType(cook, "Missing")
	assert.False(t, ok)
	_, ok = s.MemberType(ir.String, "Length")
	assert.False(t, ok)

	typ, ok := s.MemberType(ir.Entity("Chef"), "Kitchen")
	require.True(t, ok, "navigations are inherited")
	assert.Equal(t, "Kitchen", typ.String())
}

func TestDecodeYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown key",
			doc:  "entities:\n  - name: A\n    tabel: X\n",
			want: "tabel",
		},
		{
			name: "no key column",
			doc:  "entities:\n  - name: A\n    columns:\n      - {member: Name, type: string}\n",
			want: "no key column",
		},
		{
			name: "unknown target",
			doc: "entities:\n  - name: A\n    columns:\n      - {member: ID, type: int, key: true}\n" +
				"    navigations:\n      - {member: B, target: B, foreign_key: [ID]}\n",
			want: "unknown target B",
		},
		{
			name: "collection without target key",
			doc: "entities:\n  - name: A\n    columns:\n      - {member: ID, type: int, key: true}\n" +
				"    navigations:\n      - {member: Items, target: A, many: true, foreign_key: [ID]}\n",
			want: "needs target_key",
		},
		{
			name: "unknown column type",
			doc:  "entities:\n  - name: A\n    columns:\n      - {member: ID, type: blob, key: true}\n",
			want: "unknown column type",
		},
		{
			name: "derived without discriminator value",
			doc: "entities:\n  - name: A\n    discriminator: Kind\n    columns:\n" +
				"      - {member: ID, type: int, key: true}\n      - {member: Kind, type: string}\n" +
				"  - name: B\n    base: A\n    columns: []\n",
			want: "discriminator_value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapping.DecodeYAML(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const kitchenCUE = `
entities: {
	Kitchen: {
		table: "KitchenTable"
		columns: {
			ID: {type: "int", key: true}
			Name: {type: "string"}
			RestaurantID: {type: "int", nullable: true}
		}
		navigations: Restaurant: {target: "Restaurant", foreign_key: ["RestaurantID"]}
	}
	Restaurant: {
		columns: {
			ID: {type: "int", key: true}
		}
	}
}
`

func TestCompileCUE(t *testing.T) {
	v := cuecontext.New().CompileString(kitchenCUE)
	s, err := mapping.CompileCUE(v)
	require.NoError(t, err)

	kitchen, ok := s.Entity("Kitchen")
	require.True(t, ok)
	members := make([]string, 0, 3)
	for _, c := range kitchen.AllColumns() {
		members = append(members, c.Member)
	}
	assert.Equal(t, []string{"ID", "Name", "RestaurantID"}, members, "declaration order is kept")

	restaurant, _ := s.Entity("Restaurant")
	assert.Equal(t, "Restaurants", restaurant.Table)

	typ, ok := s.MemberType(ir.Entity("Kitchen"), "Restaurant")
	require.True(t, ok)
	assert.Equal(t, "Restaurant", typ.String())
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	cuePath := filepath.Join(dir, "kitchen.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte(kitchenCUE), 0o644))
	s, err := mapping.Load(cuePath)
	require.NoError(t, err)
	_, ok := s.Entity("Kitchen")
	assert.True(t, ok)

	yamlPath := filepath.Join(dir, "kitchen.yaml")
	require.NoError(t, os.WriteFile(yamlPath, testutil.KitchenYAML(), 0o644))
	s, err = mapping.Load(yamlPath)
	require.NoError(t, err)
	_, ok = s.Entity("Chef")
	assert.True(t, ok)

	_, err = mapping.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestCompileCUE_RejectsWrongKinds(t *testing.T) {
	v := cuecontext.New().CompileString(`entities: Kitchen: columns: ID: {type: 1}`)
	_, err := mapping.CompileCUE(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string")

	v = cuecontext.New().CompileString(`tables: {}`)
	_, err = mapping.CompileCUE(v)
	var loadErr *mapping.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "entities", loadErr.Field)
}

func TestMarshal_RoundTrips(t *testing.T) {
	out, err := mapping.Marshal(testutil.KitchenSchema())
	require.NoError(t, err)

	again, err := mapping.DecodeYAML(strings.NewReader(string(out)))
	require.NoError(t, err)
	assert.Len(t, again.Entities, len(testutil.KitchenSchema().Entities))
}

func resolveTable(t *testing.T, r *mapping.Resolver, ids *sqlstmt.UniqueIdentifierGenerator, name string) *sqlstmt.Entity {
	t.Helper()
	info, err := r.ResolveSimpleTableInfo(&sqlstmt.UnresolvedTableInfo{Typ: ir.Entity(name)}, ids)
	require.NoError(t, err)
	e, err := r.ResolveSimpleTableEntity(info)
	require.NoError(t, err)
	return e
}

func TestResolver_Tables(t *testing.T) {
	r := testutil.KitchenResolver()
	ids := sqlstmt.NewUniqueIdentifierGenerator()

	info, err := r.ResolveSimpleTableInfo(&sqlstmt.UnresolvedTableInfo{Typ: ir.Entity("Cook")}, ids)
	require.NoError(t, err)
	assert.Equal(t, "CookTable", info.Name)
	assert.Equal(t, "t0", info.TableAlias)

	kitchen := resolveTable(t, r, ids, "Kitchen")
	assert.Equal(t, "t1", kitchen.TableAlias)
	require.Len(t, kitchen.Identity, 1)
	assert.Equal(t, "[t1].[ID]", kitchen.Identity[0].String())
	assert.True(t, kitchen.Identity[0].IsPrimaryKey)

	_, err = r.ResolveSimpleTableInfo(&sqlstmt.UnresolvedTableInfo{Typ: ir.Entity("Oven")}, ids)
	assert.True(t, ir.IsMappingFailure(err))
}

func TestResolver_ResolveMember(t *testing.T) {
	r := testutil.KitchenResolver()
	cook := resolveTable(t, r, sqlstmt.NewUniqueIdentifierGenerator(), "Cook")

	x, err := r.ResolveMember(cook, "CookType")
	require.NoError(t, err)
	assert.Equal(t, "[t0].[Type]", x.String())

	x, err = r.ResolveMember(cook, "Kitchen")
	require.NoError(t, err)
	ref, ok := x.(*sqlstmt.EntityRefMember)
	require.True(t, ok)
	assert.Equal(t, "Kitchen", ref.Typ.Name)

	_, err = r.ResolveMember(cook, "Assistants")
	assert.True(t, ir.IsUnsupported(err))

	_, err = r.ResolveMember(cook, "Missing")
	assert.True(t, ir.IsMappingFailure(err))
}

func TestResolver_ResolveJoinInfo(t *testing.T) {
	r := testutil.KitchenResolver()
	ids := sqlstmt.NewUniqueIdentifierGenerator()
	cook := resolveTable(t, r, ids, "Cook")

	tests := []struct {
		member      string
		cardinality sqlstmt.Cardinality
		table       string
		condition   string
	}{
		{"Kitchen", sqlstmt.CardinalityOne, "KitchenTable", "([t0].[KitchenID] = [t1].[ID])"},
		{"Substitution", sqlstmt.CardinalityOne, "CookTable", "([t0].[ID] = [t2].[SubstitutedID])"},
		{"Knife", sqlstmt.CardinalityOne, "Knives", "(([t0].[KnifeID] = [t3].[ID]) AND ([t0].[KnifeClassID] = [t3].[ClassID]))"},
		{"Assistants", sqlstmt.CardinalityMany, "CookTable", "([t0].[ID] = [t4].[AssistedID])"},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			info, err := r.ResolveJoinInfo(&sqlstmt.UnresolvedJoinInfo{Origin: cook, Member: tt.member, Cardinality: tt.cardinality}, ids)
			require.NoError(t, err)
			assert.Equal(t, tt.table, info.Foreign.Name)
			assert.Equal(t, tt.condition, info.Condition.String())
		})
	}

	_, err := r.ResolveJoinInfo(&sqlstmt.UnresolvedJoinInfo{Origin: cook, Member: "Kitchen", Cardinality: sqlstmt.CardinalityMany}, ids)
	assert.True(t, ir.IsMappingFailure(err))
}

func TestResolver_TryResolveOptimizedIdentity(t *testing.T) {
	r := testutil.KitchenResolver()
	cook := resolveTable(t, r, sqlstmt.NewUniqueIdentifierGenerator(), "Cook")

	ids, ok := r.TryResolveOptimizedIdentity(&sqlstmt.EntityRefMember{Typ: ir.Entity("Kitchen"), Origin: cook, Member: "Kitchen"})
	require.True(t, ok)
	require.Len(t, ids, 1)
	assert.Equal(t, "[t0].[KitchenID]", ids[0].String())

	_, ok = r.TryResolveOptimizedIdentity(&sqlstmt.EntityRefMember{Typ: ir.Entity("Cook"), Origin: cook, Member: "Substitution"})
	assert.False(t, ok, "the key is stored in the target")
}

func TestResolver_ResolveConstant(t *testing.T) {
	r := testutil.KitchenResolver()

	x, err := r.ResolveConstant(&sqlstmt.Constant{Typ: ir.Entity("Kitchen"), Value: map[string]any{"ID": 5, "Name": "Main"}})
	require.NoError(t, err)
	ec, ok := x.(*sqlstmt.EntityConstant)
	require.True(t, ok)
	assert.Equal(t, []any{5}, ec.IdentityValues)

	x, err = r.ResolveConstant(&sqlstmt.Constant{
		Typ:   ir.Entity("Knife"),
		Value: &projection.EntityValue{TypeName: "Knife", Fields: map[string]any{"ID": 1, "ClassID": "chef"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{1, "chef"}, x.(*sqlstmt.EntityConstant).IdentityValues)

	_, err = r.ResolveConstant(&sqlstmt.Constant{Typ: ir.Entity("Kitchen"), Value: map[string]any{"Name": "Main"}})
	assert.True(t, ir.IsMappingFailure(err))

	_, err = r.ResolveConstant(&sqlstmt.Constant{Typ: ir.Entity("Kitchen"), Value: 5})
	assert.True(t, ir.IsMappingFailure(err))
}

func TestResolver_ResolveConstant_UUIDKey(t *testing.T) {
	doc := "entities:\n  - name: Tag\n    columns:\n      - {member: ID, type: uuid, key: true}\n"
	s, err := mapping.DecodeYAML(strings.NewReader(doc))
	require.NoError(t, err)
	r := mapping.NewResolver(s)

	id := uuid.MustParse("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	for _, v := range []any{id, "6BA7B810-9DAD-11D1-80B4-00C04FD430C8"} {
		x, err := r.ResolveConstant(&sqlstmt.Constant{Typ: ir.Entity("Tag"), Value: map[string]any{"ID": v}})
		require.NoError(t, err)
		assert.Equal(t, []any{"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}, x.(*sqlstmt.EntityConstant).IdentityValues)
	}

	_, err = r.ResolveConstant(&sqlstmt.Constant{Typ: ir.Entity("Tag"), Value: map[string]any{"ID": "nope"}})
	assert.True(t, ir.IsMappingFailure(err))
}

func TestResolver_ResolveTypeCheck(t *testing.T) {
	r := testutil.KitchenResolver()
	cook := resolveTable(t, r, sqlstmt.NewUniqueIdentifierGenerator(), "Cook")

	x, err := r.ResolveTypeCheck(cook, ir.Entity("Chef"))
	require.NoError(t, err)
	assert.Equal(t, "([t0].[Type] = @('Chef'))", x.String())

	x, err = r.ResolveTypeCheck(cook, ir.Entity("Cook"))
	require.NoError(t, err)
	assert.Equal(t, "1", x.String(), "a cook is always a cook")

	x, err = r.ResolveTypeCheck(cook, ir.Entity("Kitchen"))
	require.NoError(t, err)
	assert.Equal(t, "0", x.String())

	_, err = r.ResolveTypeCheck(&sqlstmt.Constant{Typ: ir.Int, Value: 1}, ir.Entity("Chef"))
	assert.True(t, ir.IsUnsupported(err))
}

func TestResolver_Describe(t *testing.T) {
	out := testutil.KitchenResolver().Describe()
	assert.Contains(t, out, "Knife -> Knives\n")
	assert.Contains(t, out, `Chef -> CookTable (Cook, CookType = "Chef")`)
}
