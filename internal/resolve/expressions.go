package resolve

import (
	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlstmt"
)

// value resolves e for a position that needs a value: a navigation still
// pending after resolution is joined.
func (s *stage) value(e sqlstmt.Expression, f *frame) (sqlstmt.Expression, error) {
	x, err := s.expr(e, f)
	if err != nil {
		return nil, err
	}
	if ref, ok := x.(*sqlstmt.EntityRefMember); ok {
		return s.join(ref)
	}
	return x, nil
}

// expr resolves e. The result may be an EntityRefMember; identity
// comparisons use it without joining.
func (s *stage) expr(e sqlstmt.Expression, f *frame) (sqlstmt.Expression, error) {
	if e == nil {
		return nil, nil
	}
	switch e := e.(type) {
	case *sqlstmt.TableRef:
		return s.tableRef(e)

	case *sqlstmt.MemberRef:
		src, err := s.value(e.Source, f)
		if err != nil {
			return nil, err
		}
		return s.member(e, src)

	case *sqlstmt.Constant:
		if !e.Typ.IsEntity() {
			return e, nil
		}
		x, err := s.ctx.Resolver.ResolveConstant(e)
		if err != nil {
			return nil, mappingError(e, err)
		}
		return x, nil

	case *sqlstmt.TypeCheck:
		operand, err := s.value(e.Operand, f)
		if err != nil {
			return nil, err
		}
		x, err := s.ctx.Resolver.ResolveTypeCheck(operand, e.Desired)
		if err != nil {
			return nil, mappingError(e, err)
		}
		return x, nil

	case *sqlstmt.Binary:
		if e.Op != sqlstmt.OpEqual && e.Op != sqlstmt.OpNotEqual {
			break
		}
		left, err := s.expr(e.Left, f)
		if err != nil {
			return nil, err
		}
		right, err := s.expr(e.Right, f)
		if err != nil {
			return nil, err
		}
		if left.Type().IsEntity() || right.Type().IsEntity() {
			return s.identityComparison(e, left, right)
		}
		return sqlstmt.WithChildren(e, []sqlstmt.Expression{left, right}), nil

	case *sqlstmt.IsNull:
		return s.nullCheck(e, e.Operand, true, f)

	case *sqlstmt.IsNotNull:
		return s.nullCheck(e, e.Operand, false, f)

	case *sqlstmt.In:
		return s.in(e, f)

	case *sqlstmt.Exists:
		sub, ok := e.Operand.(*sqlstmt.SubStatement)
		if !ok {
			break
		}
		inner, err := s.statement(sub.Statement)
		if err != nil {
			return nil, err
		}
		return &sqlstmt.Exists{Operand: &sqlstmt.SubStatement{Statement: inner}}, nil

	case *sqlstmt.SubStatement:
		return s.subStatement(e, f)
	}

	return sqlstmt.RewriteChildren(e, func(c sqlstmt.Expression) (sqlstmt.Expression, error) {
		return s.value(c, f)
	})
}

func (s *stage) tableRef(e *sqlstmt.TableRef) (sqlstmt.Expression, error) {
	t, ok := s.ctx.tables[e.Table]
	if !ok {
		return nil, ir.UnsupportedExpression(e, "table is not in scope")
	}
	switch info := t.Info.(type) {
	case *sqlstmt.ResolvedSimpleTableInfo:
		entity, err := s.ctx.Resolver.ResolveSimpleTableEntity(info)
		if err != nil {
			return nil, mappingError(e, err)
		}
		return entity, nil
	case *sqlstmt.ResolvedSubStatementTableInfo:
		return sqlstmt.ReferenceProjection(info.TableAlias, info.Statement.SelectProjection)
	}
	return nil, ir.UnsupportedExpression(e, "table is not resolved")
}

// member resolves e against its resolved source.
func (s *stage) member(e *sqlstmt.MemberRef, src sqlstmt.Expression) (sqlstmt.Expression, error) {
	switch src := src.(type) {
	case *sqlstmt.Entity:
		x, err := s.ctx.Resolver.ResolveMember(src, e.Member)
		if err != nil {
			return nil, mappingError(e, err)
		}
		return x, nil

	case *sqlstmt.New:
		if arg, ok := src.Arg(e.Member); ok {
			return arg, nil
		}

	case *sqlstmt.GroupingSelect:
		if e.Member == "Key" {
			return src.Key, nil
		}
		for _, a := range src.Aggregations {
			if a.Name == e.Member {
				return a.Expr, nil
			}
		}

	case *sqlstmt.Named:
		return s.member(e, src.Expr)
	}
	return nil, ir.UnsupportedExpression(e, "cannot resolve member %s on %s", e.Member, src)
}

// subStatement resolves a nested statement used as a value. A single-row
// statement projecting more than one value cannot be a scalar subquery; it
// is moved into an OUTER APPLY table of the enclosing statement and read
// back through its projection.
func (s *stage) subStatement(e *sqlstmt.SubStatement, f *frame) (sqlstmt.Expression, error) {
	switch e.Statement.DataInfo.(type) {
	case *sqlstmt.StreamedSequence:
		return nil, ir.UnsupportedExpression(e, "a sequence cannot be used as a value")
	case *sqlstmt.StreamedSingle:
		if !spansColumns(e.Statement.SelectProjection) {
			break
		}
		alias := s.ctx.Identifiers.GetUniqueIdentifier(sqlstmt.SubQueryPrefix)
		inner, err := s.statement(e.Statement)
		if err != nil {
			return nil, err
		}
		f.applied = append(f.applied, &sqlstmt.Table{
			Info:          &sqlstmt.ResolvedSubStatementTableInfo{TableAlias: alias, Statement: inner},
			JoinSemantics: sqlstmt.Left,
		})
		s.ctx.Logger.Debug("outer applying single-row statement", "alias", alias)
		return sqlstmt.ReferenceProjection(alias, inner.SelectProjection)
	}

	inner, err := s.statement(e.Statement)
	if err != nil {
		return nil, err
	}
	return &sqlstmt.SubStatement{Statement: inner}, nil
}

// spansColumns reports whether an unresolved projection resolves to more
// than one column.
func spansColumns(e sqlstmt.Expression) bool {
	switch e.Type().Kind {
	case ir.KindEntity, ir.KindObject, ir.KindGrouping:
		return true
	}
	return sqlstmt.IsComplex(e)
}

// identity returns the identity values of an entity-valued expression.
// Navigations use the foreign key of the origin when the resolver allows,
// otherwise they are joined.
func (s *stage) identity(e sqlstmt.Expression) ([]sqlstmt.Expression, error) {
	switch e := e.(type) {
	case *sqlstmt.Entity:
		return e.IdentityColumns(), nil
	case *sqlstmt.EntityRefMember:
		if ids, ok := s.ctx.Resolver.TryResolveOptimizedIdentity(e); ok {
			return ids, nil
		}
		entity, err := s.join(e)
		if err != nil {
			return nil, err
		}
		return entity.IdentityColumns(), nil
	}
	return nil, ir.UnsupportedExpression(e, "%s has no identity", e.Type())
}

// constantIdentity binds the identity values of c as parameters typed like
// the identity they are compared with.
func constantIdentity(c *sqlstmt.EntityConstant, like []sqlstmt.Expression) []sqlstmt.Expression {
	out := make([]sqlstmt.Expression, len(c.IdentityValues))
	for i, v := range c.IdentityValues {
		var typ ir.Type
		if i < len(like) {
			typ = like[i].Type()
		}
		if v == nil {
			out[i] = sqlstmt.NullLiteral(typ)
			continue
		}
		out[i] = &sqlstmt.Constant{Typ: typ, Value: v}
	}
	return out
}

func (s *stage) identities(left, right sqlstmt.Expression) ([]sqlstmt.Expression, []sqlstmt.Expression, error) {
	lc, lConst := left.(*sqlstmt.EntityConstant)
	rc, rConst := right.(*sqlstmt.EntityConstant)
	var l, r []sqlstmt.Expression
	var err error
	if !lConst {
		if l, err = s.identity(left); err != nil {
			return nil, nil, err
		}
	}
	if !rConst {
		if r, err = s.identity(right); err != nil {
			return nil, nil, err
		}
	}
	if lConst {
		l = constantIdentity(lc, r)
	}
	if rConst {
		r = constantIdentity(rc, l)
	}
	return l, r, nil
}

// identityComparison compares two entities by identity. Compound identities
// compare column by column.
func (s *stage) identityComparison(e *sqlstmt.Binary, left, right sqlstmt.Expression) (sqlstmt.Expression, error) {
	l, r, err := s.identities(left, right)
	if err != nil {
		return nil, err
	}
	if len(l) != len(r) || len(l) == 0 {
		return nil, ir.UnsupportedExpression(e, "identities of %s and %s do not match", left.Type(), right.Type())
	}
	if len(l) == 1 {
		return sqlstmt.NewBinary(e.Op, l[0], r[0]), nil
	}
	parts := make([]sqlstmt.Expression, len(l))
	for i := range l {
		parts[i] = sqlstmt.NewBinary(sqlstmt.OpEqual, l[i], r[i])
	}
	if e.Op == sqlstmt.OpNotEqual {
		return sqlstmt.Not(sqlstmt.And(parts...)), nil
	}
	return sqlstmt.And(parts...), nil
}

// nullCheck resolves IS [NOT] NULL; an entity is null when its whole
// identity is.
func (s *stage) nullCheck(e, operand sqlstmt.Expression, isNull bool, f *frame) (sqlstmt.Expression, error) {
	x, err := s.expr(operand, f)
	if err != nil {
		return nil, err
	}
	if !x.Type().IsEntity() {
		return sqlstmt.WithChildren(e, []sqlstmt.Expression{x}), nil
	}
	ids, err := s.identity(x)
	if err != nil {
		return nil, err
	}
	if len(ids) == 1 {
		if isNull {
			return &sqlstmt.IsNull{Operand: ids[0]}, nil
		}
		return &sqlstmt.IsNotNull{Operand: ids[0]}, nil
	}
	parts := make([]sqlstmt.Expression, len(ids))
	for i, id := range ids {
		parts[i] = &sqlstmt.IsNull{Operand: id}
	}
	if isNull {
		return sqlstmt.And(parts...), nil
	}
	return sqlstmt.Not(sqlstmt.And(parts...)), nil
}

// in resolves "item IN set". Entities take part through their identity,
// which must be a single column.
func (s *stage) in(e *sqlstmt.In, f *frame) (sqlstmt.Expression, error) {
	item, err := s.expr(e.Item, f)
	if err != nil {
		return nil, err
	}
	entity := item.Type().IsEntity()
	if entity {
		ids, err := s.identity(item)
		if err != nil {
			return nil, err
		}
		if len(ids) != 1 {
			return nil, ir.UnsupportedExpression(e, "IN needs a single identity column, %s has %d", item.Type(), len(ids))
		}
		item = ids[0]
	}

	switch set := e.Set.(type) {
	case *sqlstmt.SubStatement:
		inner, err := s.statement(set.Statement)
		if err != nil {
			return nil, err
		}
		if entity {
			projected, ok := inner.SelectProjection.(*sqlstmt.Entity)
			if !ok || len(projected.Identity) != 1 {
				return nil, ir.UnsupportedExpression(e, "IN needs a single identity column")
			}
			b := sqlstmt.NewBuilder(inner)
			b.SelectProjection = projected.Identity[0]
			if inner, err = b.Build(); err != nil {
				return nil, err
			}
		}
		return &sqlstmt.In{Item: item, Set: &sqlstmt.SubStatement{Statement: inner}}, nil

	case *sqlstmt.Collection:
		items := make([]sqlstmt.Expression, len(set.Items))
		for i, c := range set.Items {
			x, err := s.value(c, f)
			if err != nil {
				return nil, err
			}
			if ec, ok := x.(*sqlstmt.EntityConstant); ok && entity {
				ids := constantIdentity(ec, []sqlstmt.Expression{item})
				if len(ids) != 1 {
					return nil, ir.UnsupportedExpression(e, "IN needs a single identity column")
				}
				x = ids[0]
			}
			items[i] = x
		}
		return &sqlstmt.In{Item: item, Set: &sqlstmt.Collection{Typ: set.Typ, Items: items}}, nil
	}
	return nil, ir.UnsupportedExpression(e, "IN needs a sub-statement or a collection")
}
