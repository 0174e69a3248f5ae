package resolve

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlstmt"
)

// ErrDanglingJoin is returned when a navigation was joined from an alias that
// no statement in the tree owns.
var ErrDanglingJoin = errors.New("join has no owning table")

type stage struct {
	ctx *Context
}

// frame collects what resolving the expressions of one statement adds to
// that statement: OUTER APPLY tables for single-row sub-statements and the
// conditions of collection joins.
type frame struct {
	applied    []*sqlstmt.Table
	conditions []sqlstmt.Expression
}

// Resolve maps stmt onto storage and applies boolean contexts.
//
// Table aliases are assigned top-down from ctx.Identifiers: a statement's
// tables are numbered before anything nested in them. A statement that is
// already resolved is returned unchanged.
func Resolve(stmt *sqlstmt.Statement, ctx *Context) (*sqlstmt.Statement, error) {
	if IsResolved(stmt) {
		return ApplyStatementContext(stmt)
	}
	ctx.init()
	s := &stage{ctx: ctx}
	out, err := s.statement(stmt)
	if err != nil {
		return nil, err
	}
	if len(ctx.pending) > 0 {
		aliases := maps.Keys(ctx.pending)
		slices.Sort(aliases)
		return nil, fmt.Errorf("%w: %v", ErrDanglingJoin, aliases)
	}
	return ApplyStatementContext(out)
}

// IsResolved reports whether stmt, everything nested in it included, has no
// unresolved tables or references left.
func IsResolved(stmt *sqlstmt.Statement) bool {
	if !tablesResolved(stmt) {
		return false
	}
	resolved := true
	sqlstmt.InspectStatement(stmt, func(e sqlstmt.Expression) bool {
		switch e := e.(type) {
		case *sqlstmt.TableRef, *sqlstmt.MemberRef, *sqlstmt.EntityRefMember, *sqlstmt.TypeCheck:
			resolved = false
		case *sqlstmt.Constant:
			if e.Typ.IsEntity() {
				resolved = false
			}
		case *sqlstmt.SubStatement:
			if !tablesResolved(e.Statement) {
				resolved = false
			}
		}
		return resolved
	})
	return resolved
}

func tablesResolved(stmt *sqlstmt.Statement) bool {
	for _, t := range stmt.SqlTables {
		if !t.IsResolved() || t.Alias() == "" {
			return false
		}
		if sub, ok := t.Info.(*sqlstmt.ResolvedSubStatementTableInfo); ok && !tablesResolved(sub.Statement) {
			return false
		}
	}
	for _, op := range stmt.SetOperations {
		if !tablesResolved(op.Statement) {
			return false
		}
	}
	return true
}

// statement resolves one statement. Tables come first so that their aliases
// precede those of joins and nested statements found in expressions.
func (s *stage) statement(stmt *sqlstmt.Statement) (*sqlstmt.Statement, error) {
	f := &frame{}
	b := sqlstmt.NewBuilder(stmt)

	b.SqlTables = b.SqlTables[:0:0]
	for _, t := range stmt.SqlTables {
		rt, err := s.table(t, f)
		if err != nil {
			return nil, err
		}
		b.SqlTables = append(b.SqlTables, rt)
	}

	var err error
	if b.SelectProjection, err = s.value(stmt.SelectProjection, f); err != nil {
		return nil, err
	}
	if b.WhereCondition, err = s.value(stmt.WhereCondition, f); err != nil {
		return nil, err
	}
	if b.GroupByExpression, err = s.value(stmt.GroupByExpression, f); err != nil {
		return nil, err
	}
	for i, o := range stmt.Orderings {
		x, err := s.value(o.Expression, f)
		if err != nil {
			return nil, err
		}
		b.Orderings[i] = sqlstmt.Ordering{Expression: x, Direction: o.Direction}
	}
	if b.TopExpression, err = s.value(stmt.TopExpression, f); err != nil {
		return nil, err
	}
	if b.RowNumberSelector, err = s.value(stmt.RowNumberSelector, f); err != nil {
		return nil, err
	}
	if b.CurrentRowNumberOffset, err = s.value(stmt.CurrentRowNumberOffset, f); err != nil {
		return nil, err
	}
	for i, op := range stmt.SetOperations {
		rs, err := s.statement(op.Statement)
		if err != nil {
			return nil, err
		}
		b.SetOperations[i] = &sqlstmt.SetOperation{Kind: op.Kind, Statement: rs}
	}

	b.WhereCondition = sqlstmt.And(append(f.conditions, b.WhereCondition)...)
	b.SqlTables = append(b.SqlTables, f.applied...)
	for i, t := range b.SqlTables {
		b.SqlTables[i] = s.attachJoins(t)
	}
	return b.Build()
}

// table resolves a FROM entry. Each prepared table is resolved once; later
// references find it in the context.
func (s *stage) table(t *sqlstmt.Table, f *frame) (*sqlstmt.Table, error) {
	if r, ok := s.ctx.tables[t]; ok {
		return r, nil
	}

	var info sqlstmt.TableInfo
	switch i := t.Info.(type) {
	case *sqlstmt.UnresolvedTableInfo:
		ri, err := s.ctx.Resolver.ResolveSimpleTableInfo(i, s.ctx.Identifiers)
		if err != nil {
			return nil, mappingError(i.Typ, err)
		}
		info = ri

	case *sqlstmt.UnresolvedCollectionJoinInfo:
		src, err := s.value(i.Source, f)
		if err != nil {
			return nil, err
		}
		origin, ok := src.(*sqlstmt.Entity)
		if !ok {
			return nil, ir.UnsupportedExpression(i.Source, "collection %s must be navigated from an entity", i.Member)
		}
		ji, err := s.ctx.Resolver.ResolveJoinInfo(&sqlstmt.UnresolvedJoinInfo{
			Origin:      origin,
			Member:      i.Member,
			Cardinality: sqlstmt.CardinalityMany,
		}, s.ctx.Identifiers)
		if err != nil {
			return nil, mappingError(origin, err)
		}
		info = ji.Foreign
		f.conditions = append(f.conditions, ji.Condition)

	case *sqlstmt.ResolvedSubStatementTableInfo:
		alias := i.TableAlias
		if alias == "" {
			alias = s.ctx.Identifiers.GetUniqueIdentifier(sqlstmt.SubQueryPrefix)
		}
		inner, err := s.statement(i.Statement)
		if err != nil {
			return nil, err
		}
		info = &sqlstmt.ResolvedSubStatementTableInfo{TableAlias: alias, Statement: inner}

	case *sqlstmt.ResolvedSimpleTableInfo:
		info = i
	}

	r := &sqlstmt.Table{Info: info, JoinSemantics: t.JoinSemantics, Joins: slices.Clone(t.Joins)}
	s.ctx.tables[t] = r
	return r, nil
}

// join returns the entity reached by navigating ref, creating the join on
// first use. The join is queued under the origin alias and attached when the
// statement owning that alias is finished.
func (s *stage) join(ref *sqlstmt.EntityRefMember) (*sqlstmt.Entity, error) {
	key := joinKey(ref.Origin.TableAlias, ref.Member)
	if e, ok := s.ctx.joined[key]; ok {
		return e, nil
	}
	info, err := s.ctx.Resolver.ResolveJoinInfo(&sqlstmt.UnresolvedJoinInfo{
		Origin:      ref.Origin,
		Member:      ref.Member,
		Cardinality: sqlstmt.CardinalityOne,
	}, s.ctx.Identifiers)
	if err != nil {
		return nil, mappingError(ref, err)
	}
	resolved, err := s.ctx.Resolver.ResolveSimpleTableEntity(info.Foreign)
	if err != nil {
		return nil, mappingError(ref, err)
	}
	// A left join may find no row.
	entity := *resolved
	entity.Typ = ref.Typ.AsNullable()

	s.ctx.pending[ref.Origin.TableAlias] = append(s.ctx.pending[ref.Origin.TableAlias],
		&sqlstmt.Join{Member: ref.Member, Info: info})
	s.ctx.joined[key] = &entity
	s.ctx.Logger.Debug("joined navigation",
		"origin", ref.Origin.TableAlias,
		"member", ref.Member,
		"alias", info.Foreign.TableAlias)
	return &entity, nil
}

func (s *stage) attachJoins(t *sqlstmt.Table) *sqlstmt.Table {
	joins := s.takeJoins(t.Alias())
	if len(joins) == 0 {
		return t
	}
	return &sqlstmt.Table{
		Info:          t.Info,
		JoinSemantics: t.JoinSemantics,
		Joins:         append(slices.Clone(t.Joins), joins...),
	}
}

// takeJoins removes the joins queued under alias, along with the joins
// navigating onward from them.
func (s *stage) takeJoins(alias string) []*sqlstmt.Join {
	joins := s.ctx.pending[alias]
	delete(s.ctx.pending, alias)
	for _, j := range joins {
		j.Joins = append(j.Joins, s.takeJoins(j.Alias())...)
	}
	return joins
}

// mappingError keeps compile errors from the resolver and wraps anything
// else as a mapping failure.
func mappingError(node fmt.Stringer, err error) error {
	if ir.CodeOf(err) != "" {
		return err
	}
	return ir.MappingFailure(node, "%v", err)
}
