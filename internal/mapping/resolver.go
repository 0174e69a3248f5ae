package mapping

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/sqlstmt"
)

// Resolver resolves statements against a Schema. It holds no per-compilation
// state.
type Resolver struct {
	schema *Schema
}

// NewResolver returns a resolver for schema.
func NewResolver(schema *Schema) *Resolver {
	return &Resolver{schema: schema}
}

// Schema returns the schema the resolver reads.
func (r *Resolver) Schema() *Schema { return r.schema }

func (r *Resolver) entity(t ir.Type) (*EntitySpec, error) {
	if t.Kind != ir.KindEntity {
		return nil, ir.MappingFailure(t, "%s is not a mapped type", t)
	}
	e, ok := r.schema.Entity(t.Name)
	if !ok {
		return nil, ir.MappingFailure(t, "type %s is not mapped", t.Name)
	}
	return e, nil
}

// ResolveSimpleTableInfo maps an entity type onto its table.
func (r *Resolver) ResolveSimpleTableInfo(info *sqlstmt.UnresolvedTableInfo, ids *sqlstmt.UniqueIdentifierGenerator) (*sqlstmt.ResolvedSimpleTableInfo, error) {
	e, err := r.entity(info.Typ)
	if err != nil {
		return nil, err
	}
	return r.tableInfo(e, ids), nil
}

func (r *Resolver) tableInfo(e *EntitySpec, ids *sqlstmt.UniqueIdentifierGenerator) *sqlstmt.ResolvedSimpleTableInfo {
	return &sqlstmt.ResolvedSimpleTableInfo{
		Typ:        ir.Entity(e.Name),
		Schema:     e.Schema,
		Name:       e.Table,
		TableAlias: ids.GetUniqueIdentifier(sqlstmt.TablePrefix),
	}
}

// ResolveSimpleTableEntity returns the entity read from a table: every
// mapped column, with the key columns as identity.
func (r *Resolver) ResolveSimpleTableEntity(info *sqlstmt.ResolvedSimpleTableInfo) (*sqlstmt.Entity, error) {
	e, err := r.entity(info.Typ)
	if err != nil {
		return nil, err
	}
	out := &sqlstmt.Entity{Typ: info.Typ, TableAlias: info.TableAlias}
	for _, c := range e.AllColumns() {
		col := columnAt(info.TableAlias, c)
		out.Columns = append(out.Columns, col)
		if c.Key {
			out.Identity = append(out.Identity, col)
		}
	}
	return out, nil
}

func columnAt(alias string, c ColumnSpec) *sqlstmt.Column {
	return &sqlstmt.Column{
		Typ:          c.irType(),
		TableAlias:   alias,
		Name:         c.Column,
		Field:        c.Member,
		IsPrimaryKey: c.Key,
	}
}

// entityColumn finds the column of entity holding member. Columns are
// matched by logical field so that entities read through a sub-statement
// resolve the same way as table entities.
func entityColumn(entity *sqlstmt.Entity, member string) (*sqlstmt.Column, bool) {
	for _, c := range entity.Columns {
		if c.OutputField() == member {
			return c, true
		}
	}
	return nil, false
}

// ResolveMember resolves a scalar member to its column and a single
// navigation to an EntityRefMember.
func (r *Resolver) ResolveMember(entity *sqlstmt.Entity, member string) (sqlstmt.Expression, error) {
	e, err := r.entity(entity.Typ)
	if err != nil {
		return nil, err
	}
	if _, ok := e.column(member); ok {
		c, ok := entityColumn(entity, member)
		if !ok {
			return nil, ir.MappingFailure(entity, "member %s.%s is not projected", e.Name, member)
		}
		return c, nil
	}
	if n, ok := e.navigation(member); ok {
		if n.Many {
			return nil, ir.UnsupportedExpression(entity, "collection %s.%s can only be used as a query source", e.Name, member)
		}
		return &sqlstmt.EntityRefMember{Typ: ir.Entity(n.Target), Origin: entity, Member: member}, nil
	}
	return nil, ir.MappingFailure(entity, "type %s has no member %s", e.Name, member)
}

// ResolveJoinInfo maps a navigation onto the target table and the ON
// condition linking it to the origin.
func (r *Resolver) ResolveJoinInfo(info *sqlstmt.UnresolvedJoinInfo, ids *sqlstmt.UniqueIdentifierGenerator) (*sqlstmt.ResolvedJoinInfo, error) {
	origin, err := r.entity(info.Origin.Typ)
	if err != nil {
		return nil, err
	}
	n, ok := origin.navigation(info.Member)
	if !ok {
		return nil, ir.MappingFailure(info.Origin, "type %s has no navigation %s", origin.Name, info.Member)
	}
	if n.Many != (info.Cardinality == sqlstmt.CardinalityMany) {
		return nil, ir.MappingFailure(info.Origin, "navigation %s.%s has the wrong cardinality", origin.Name, info.Member)
	}
	target, err := r.entity(ir.Entity(n.Target))
	if err != nil {
		return nil, err
	}

	foreign := r.tableInfo(target, ids)
	var parts []sqlstmt.Expression
	if len(n.ForeignKey) > 0 {
		for i, key := range target.Keys() {
			fk, ok := entityColumn(info.Origin, n.ForeignKey[i])
			if !ok {
				return nil, ir.MappingFailure(info.Origin, "foreign key %s.%s is not projected", origin.Name, n.ForeignKey[i])
			}
			parts = append(parts, sqlstmt.NewBinary(sqlstmt.OpEqual, fk, columnAt(foreign.TableAlias, key)))
		}
	} else {
		for i, key := range origin.Keys() {
			id, ok := entityColumn(info.Origin, key.Member)
			if !ok {
				return nil, ir.MappingFailure(info.Origin, "key %s.%s is not projected", origin.Name, key.Member)
			}
			tk, _ := target.column(n.TargetKey[i])
			parts = append(parts, sqlstmt.NewBinary(sqlstmt.OpEqual, id, columnAt(foreign.TableAlias, tk)))
		}
	}
	return &sqlstmt.ResolvedJoinInfo{Foreign: foreign, Condition: sqlstmt.And(parts...)}, nil
}

// TryResolveOptimizedIdentity returns the foreign key columns of the origin
// when the navigation is stored there, which avoids joining the target just
// to read its identity.
func (r *Resolver) TryResolveOptimizedIdentity(ref *sqlstmt.EntityRefMember) ([]sqlstmt.Expression, bool) {
	origin, err := r.entity(ref.Origin.Typ)
	if err != nil {
		return nil, false
	}
	n, ok := origin.navigation(ref.Member)
	if !ok || n.Many || len(n.ForeignKey) == 0 {
		return nil, false
	}
	out := make([]sqlstmt.Expression, len(n.ForeignKey))
	for i, m := range n.ForeignKey {
		c, ok := entityColumn(ref.Origin, m)
		if !ok {
			return nil, false
		}
		out[i] = c
	}
	return out, true
}

// ResolveConstant turns an in-memory entity into an EntityConstant carrying
// its identity values. Accepted values are *projection.EntityValue,
// *projection.Object and map[string]any keyed by member name.
func (r *Resolver) ResolveConstant(c *sqlstmt.Constant) (sqlstmt.Expression, error) {
	e, err := r.entity(c.Typ)
	if err != nil {
		return nil, err
	}
	var get func(string) (any, bool)
	switch v := c.Value.(type) {
	case *projection.EntityValue:
		get = func(m string) (any, bool) { x, ok := v.Fields[m]; return x, ok }
	case *projection.Object:
		get = v.Get
	case map[string]any:
		get = func(m string) (any, bool) { x, ok := v[m]; return x, ok }
	default:
		return nil, ir.MappingFailure(c, "cannot read the identity of %T", c.Value)
	}

	out := &sqlstmt.EntityConstant{Typ: c.Typ, Value: c.Value}
	for _, key := range e.Keys() {
		v, ok := get(key.Member)
		if !ok {
			return nil, ir.MappingFailure(c, "constant of type %s has no key %s", e.Name, key.Member)
		}
		v, err := identityValue(key, v)
		if err != nil {
			return nil, ir.MappingFailure(c, "key %s: %v", key.Member, err)
		}
		out.IdentityValues = append(out.IdentityValues, v)
	}
	return out, nil
}

// identityValue normalizes a key value for binding. UUID keys are bound in
// their canonical string form.
func identityValue(key ColumnSpec, v any) (any, error) {
	if key.irType().Kind != ir.KindUUID {
		return v, nil
	}
	switch id := v.(type) {
	case uuid.UUID:
		return id.String(), nil
	case string:
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		return parsed.String(), nil
	}
	return nil, fmt.Errorf("expected a UUID, got %T", v)
}

// ResolveTypeCheck tests the discriminator of expr against desired and the
// types derived from it.
func (r *Resolver) ResolveTypeCheck(expr sqlstmt.Expression, desired ir.Type) (sqlstmt.Expression, error) {
	entity, ok := expr.(*sqlstmt.Entity)
	if !ok {
		return nil, ir.UnsupportedExpression(expr, "type checks need an entity")
	}
	actual, err := r.entity(entity.Typ)
	if err != nil {
		return nil, err
	}
	want, err := r.entity(desired)
	if err != nil {
		return nil, err
	}
	if actual.isA(want.Name) {
		return &sqlstmt.Literal{Typ: ir.Bool, Value: true}, nil
	}
	if !want.isA(actual.Name) {
		return &sqlstmt.Literal{Typ: ir.Bool, Value: false}, nil
	}

	disc, ok := entityColumn(entity, want.root().Discriminator)
	if !ok {
		return nil, ir.MappingFailure(entity, "discriminator %s is not projected", want.root().Discriminator)
	}
	values := want.discriminatorValues()
	if len(values) == 1 {
		return sqlstmt.NewBinary(sqlstmt.OpEqual, disc, &sqlstmt.Constant{Typ: disc.Typ, Value: values[0]}), nil
	}
	items := make([]sqlstmt.Expression, len(values))
	for i, v := range values {
		items[i] = &sqlstmt.Constant{Typ: disc.Typ, Value: v}
	}
	return &sqlstmt.In{Item: disc, Set: &sqlstmt.Collection{Typ: ir.SequenceOf(disc.Typ), Items: items}}, nil
}

// Describe renders the mapped entities, one per line, for diagnostics.
func (r *Resolver) Describe() string {
	var b strings.Builder
	for _, e := range r.schema.Entities {
		fmt.Fprintf(&b, "%s -> %s", e.Name, e.Table)
		if e.Base != "" {
			fmt.Fprintf(&b, " (%s, %s = %q)", e.Base, e.root().Discriminator, e.DiscriminatorValue)
		}
		b.WriteString("\n")
	}
	return b.String()
}
