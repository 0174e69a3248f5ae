// Package prepare translates an input query model into an unresolved
// statement tree.
//
// Preparation walks the model in its fixed processing order: the main
// from-clause, the body clauses, the select clause, then the result operators.
// Each result operator is applied by a handler from a table keyed by operator
// kind. When an operator cannot be combined with what the statement already
// contains (TOP followed by DISTINCT, for example), the statement is first
// moved into a subquery; see policy.go.
//
// Output statements still reference tables and members by type and name.
// Mapping them onto storage is the job of the resolve package.
package prepare

import (
	"log/slog"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlstmt"
)

type stage struct {
	log     *slog.Logger
	methods *MethodRegistry
}

// Prepare translates model into an unresolved statement.
//
// Errors are *ir.CompileError values: UnsupportedOperator for result
// operators without a handler, UnsupportedExpression for shapes that have no
// statement form.
func Prepare(model *querymodel.QueryModel, ctx *Context) (*sqlstmt.Statement, error) {
	s := &stage{log: ctx.logger(), methods: ctx.methods()}
	return s.model(model, nil)
}

// model prepares one query model. parent is the scope of the enclosing query
// for subqueries, nil at top level.
func (s *stage) model(m *querymodel.QueryModel, parent *scope) (*sqlstmt.Statement, error) {
	b, sc, err := s.body(m, parent)
	if err != nil {
		return nil, err
	}
	for _, op := range m.ResultOperators {
		handler, ok := operatorHandlers[op.Kind()]
		if !ok {
			return nil, ir.UnsupportedOperator(op, "%s has no SQL translation", op.Kind())
		}
		if err := handler(s, op, b, sc); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// body prepares the sources, body clauses and select clause of m.
func (s *stage) body(m *querymodel.QueryModel, parent *scope) (*sqlstmt.Builder, *scope, error) {
	if m.MainFromClause == nil || m.SelectClause == nil || m.SelectClause.Selector == nil {
		return nil, nil, ir.UnsupportedExpression(m, "query needs a from clause and a select clause")
	}
	sc := newScope(parent)
	b := sqlstmt.NewBuilder(nil)

	if err := s.addSource(b, sc, m.MainFromClause.Name, m.MainFromClause.FromExpression); err != nil {
		return nil, nil, err
	}

	for _, clause := range m.BodyClauses {
		switch c := clause.(type) {
		case *querymodel.AdditionalFromClause:
			if err := s.addSource(b, sc, c.Name, c.FromExpression); err != nil {
				return nil, nil, err
			}

		case *querymodel.JoinClause:
			if err := s.addSource(b, sc, c.Name, c.InnerSequence); err != nil {
				return nil, nil, err
			}
			outer, err := s.expr(c.OuterKeySelector, sc)
			if err != nil {
				return nil, nil, err
			}
			inner, err := s.expr(c.InnerKeySelector, sc)
			if err != nil {
				return nil, nil, err
			}
			b.AddWhereCondition(joinCondition(outer, inner))

		case *querymodel.WhereClause:
			p, err := s.expr(c.Predicate, sc)
			if err != nil {
				return nil, nil, err
			}
			b.AddWhereCondition(p)

		case *querymodel.OrderByClause:
			// Later orderings take precedence.
			orderings := make([]sqlstmt.Ordering, 0, len(c.Orderings)+len(b.Orderings))
			for _, o := range c.Orderings {
				x, err := s.expr(o.Expression, sc)
				if err != nil {
					return nil, nil, err
				}
				dir := sqlstmt.Ascending
				if o.Direction == querymodel.Descending {
					dir = sqlstmt.Descending
				}
				orderings = append(orderings, sqlstmt.Ordering{Expression: x, Direction: dir})
			}
			b.Orderings = append(orderings, b.Orderings...)
		}
	}

	projection, err := s.expr(m.SelectClause.Selector, sc)
	if err != nil {
		return nil, nil, err
	}
	b.SelectProjection = projection
	b.DataInfo = &sqlstmt.StreamedSequence{Item: m.SelectClause.Selector.Type()}
	return b, sc, nil
}

// addSource adds the table for a from-expression and binds name to its item.
func (s *stage) addSource(b *sqlstmt.Builder, sc *scope, name string, from querymodel.Expr) error {
	table, err := s.sourceTable(from, sc)
	if err != nil {
		return err
	}
	b.AddTable(table)
	sc.sources[name] = &sqlstmt.TableRef{Table: table}
	return nil
}

func (s *stage) sourceTable(from querymodel.Expr, sc *scope) (*sqlstmt.Table, error) {
	switch e := from.(type) {
	case *querymodel.Table:
		return sqlstmt.NewTable(&sqlstmt.UnresolvedTableInfo{Typ: e.Entity}), nil

	case *querymodel.SubQuery:
		stmt, err := s.model(e.Model, sc)
		if err != nil {
			return nil, err
		}
		if _, ok := stmt.DataInfo.(*sqlstmt.StreamedSequence); !ok {
			return nil, ir.UnsupportedExpression(e, "a subquery used as a source must produce a sequence")
		}
		return sqlstmt.NewTable(&sqlstmt.ResolvedSubStatementTableInfo{Statement: stmt}), nil

	case *querymodel.Member:
		if !e.Typ.IsSequence() {
			return nil, ir.UnsupportedExpression(e, "member %s is not a collection", e.Name)
		}
		source, err := s.expr(e.Object, sc)
		if err != nil {
			return nil, err
		}
		return sqlstmt.NewTable(&sqlstmt.UnresolvedCollectionJoinInfo{
			Source: source,
			Member: e.Name,
			Typ:    e.Typ.ElemType(),
		}), nil

	case *querymodel.QuerySourceRef:
		if e.Typ.Kind == ir.KindGrouping {
			return nil, ir.UnsupportedExpression(e, "elements of a group can only be aggregated")
		}
	case *querymodel.Constant:
		return nil, ir.UnsupportedExpression(e, "an in-memory collection cannot be a query source")
	}
	return nil, ir.UnsupportedExpression(from, "unsupported query source")
}

// joinCondition equates join keys; compound keys compare member by member.
func joinCondition(outer, inner sqlstmt.Expression) sqlstmt.Expression {
	on, ok1 := outer.(*sqlstmt.New)
	in, ok2 := inner.(*sqlstmt.New)
	if ok1 && ok2 && len(on.Args) == len(in.Args) {
		parts := make([]sqlstmt.Expression, len(on.Args))
		for i := range on.Args {
			parts[i] = sqlstmt.NewBinary(sqlstmt.OpEqual, on.Args[i], in.Args[i])
		}
		return sqlstmt.And(parts...)
	}
	return sqlstmt.NewBinary(sqlstmt.OpEqual, outer, inner)
}
