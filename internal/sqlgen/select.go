package sqlgen

import (
	"fmt"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/sqlstmt"
)

// selectList writes the columns of a SELECT list and counts them.
//
// Output names follow sqlstmt.ColumnAlias and sqlstmt.ScalarName, the same
// rules ReferenceProjection uses to read a sub-statement from outside.
type selectList struct {
	g     *generator
	top   bool
	index int
}

// item writes the columns of e named under prefix and returns the
// projection reading them.
func (l *selectList) item(e sqlstmt.Expression, prefix string) (projection.Projection, error) {
	switch e := e.(type) {
	case *sqlstmt.Named:
		return l.item(e.Expr, sqlstmt.ColumnAlias(prefix, e.Name))

	case *sqlstmt.Entity:
		out := &projection.ReadEntity{Type: e.Typ}
		for _, c := range e.Columns {
			field := c.OutputField()
			idx := l.next()
			l.g.column(c)
			if alias := sqlstmt.ColumnAlias(prefix, field); alias != c.Name {
				l.g.write(" AS " + quote(alias))
			}
			out.Columns = append(out.Columns, projection.ColumnRef{
				Index:        idx,
				Field:        field,
				Type:         c.Typ,
				IsPrimaryKey: c.IsPrimaryKey,
			})
		}
		return out, nil

	case *sqlstmt.New:
		out := &projection.Construct{TypeName: e.Typ.String(), Members: e.Members}
		for i, a := range e.Args {
			p, err := l.item(a, sqlstmt.ColumnAlias(prefix, e.Members[i]))
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, p)
		}
		return out, nil

	case *sqlstmt.GroupingSelect:
		if l.top {
			return nil, ir.UnsupportedExpression(e, "groupings cannot be read from a result row")
		}
		if _, err := l.item(e.Key, sqlstmt.ColumnAlias(prefix, sqlstmt.GroupingKeyName)); err != nil {
			return nil, err
		}
		for _, a := range e.Aggregations {
			if _, err := l.item(a.Expr, sqlstmt.ColumnAlias(prefix, a.Name)); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case *sqlstmt.MethodPlaceholder:
		return l.method(e, prefix)
	}

	idx := l.next()
	if err := l.g.expr(e); err != nil {
		return nil, err
	}
	l.g.write(" AS " + quote(sqlstmt.ScalarName(prefix)))
	return &projection.ReadValue{Index: idx, Type: e.Type()}, nil
}

// method selects the operands of a method call without SQL translation and
// evaluates the call in memory on each row.
func (l *selectList) method(e *sqlstmt.MethodPlaceholder, prefix string) (projection.Projection, error) {
	if !l.top {
		return nil, ir.UnsupportedMethodCall(e, "method %s has no SQL translation", e.Name)
	}
	fn, ok := l.g.evaluators.Lookup(e.Signature, e.Name)
	if !ok {
		return nil, ir.UnsupportedMethodCall(e, "method %s has no SQL translation and no in-memory evaluator", e.Name)
	}
	out := &projection.Evaluate{Name: e.Name, Fn: fn}
	if e.Object != nil {
		p, err := l.item(e.Object, sqlstmt.ColumnAlias(prefix, "Object"))
		if err != nil {
			return nil, err
		}
		out.Object = p
	}
	for i, a := range e.Args {
		p, err := l.item(a, sqlstmt.ColumnAlias(prefix, fmt.Sprintf("Arg%d", i)))
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, p)
	}
	return out, nil
}

// next writes the separator before a column and returns the column index.
func (l *selectList) next() int {
	if l.index > 0 {
		l.g.write(", ")
	}
	l.index++
	return l.index - 1
}
