package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/sqlstmt"
)

// expr writes e in a position that takes one SQL value or predicate.
func (g *generator) expr(e sqlstmt.Expression) error {
	switch e := e.(type) {
	case *sqlstmt.Column:
		g.column(e)

	case *sqlstmt.Constant:
		g.param(e.Value)

	case *sqlstmt.Literal:
		g.write(literal(e.Value))

	case *sqlstmt.Binary:
		g.write("(")
		if err := g.expr(e.Left); err != nil {
			return err
		}
		g.write(" " + string(e.Op) + " ")
		if err := g.expr(e.Right); err != nil {
			return err
		}
		g.write(")")

	case *sqlstmt.Unary:
		if e.Op == sqlstmt.OpNot {
			g.write("NOT (")
			if err := g.expr(e.Operand); err != nil {
				return err
			}
			g.write(")")
			break
		}
		g.write(string(e.Op))
		return g.expr(e.Operand)

	case *sqlstmt.IsNull:
		return g.wrapped("(", e.Operand, " IS NULL)")

	case *sqlstmt.IsNotNull:
		return g.wrapped("(", e.Operand, " IS NOT NULL)")

	case *sqlstmt.FunctionCall:
		g.write(e.Name + "(")
		if err := g.list(e.Args); err != nil {
			return err
		}
		g.write(")")

	case *sqlstmt.Aggregation:
		if e.Operand == nil {
			g.write(string(e.Func) + "(*)")
			break
		}
		return g.wrapped(string(e.Func)+"(", e.Operand, ")")

	case *sqlstmt.Exists:
		sub, ok := e.Operand.(*sqlstmt.SubStatement)
		if !ok {
			return ir.UnsupportedExpression(e, "EXISTS needs a sub-statement")
		}
		g.write("EXISTS(")
		if _, err := g.statement(sub.Statement, false); err != nil {
			return err
		}
		g.write(")")

	case *sqlstmt.In:
		return g.in(e)

	case *sqlstmt.Like:
		if err := g.expr(e.Item); err != nil {
			return err
		}
		g.write(" LIKE ")
		if err := g.expr(e.Pattern); err != nil {
			return err
		}
		if e.Escape != "" {
			g.write(" ESCAPE " + literal(e.Escape))
		}

	case *sqlstmt.Convert:
		return g.wrapped("CONVERT("+e.SQLType+", ", e.Operand, ")")

	case *sqlstmt.RowNumber:
		g.write("ROW_NUMBER() OVER (ORDER BY ")
		if err := g.orderings(e.Orderings); err != nil {
			return err
		}
		g.write(")")

	case *sqlstmt.Case:
		g.write("CASE")
		for _, w := range e.Cases {
			if err := g.wrapped(" WHEN ", w.When, " THEN "); err != nil {
				return err
			}
			if err := g.expr(w.Then); err != nil {
				return err
			}
		}
		if e.Else != nil {
			if err := g.wrapped(" ELSE ", e.Else, ""); err != nil {
				return err
			}
		}
		g.write(" END")

	case *sqlstmt.SubStatement:
		g.write("(")
		if _, err := g.statement(e.Statement, false); err != nil {
			return err
		}
		g.write(")")

	case *sqlstmt.Collection:
		g.write("(")
		if err := g.list(e.Items); err != nil {
			return err
		}
		g.write(")")

	case *sqlstmt.ConvertedBoolean:
		return g.expr(e.Expr)

	case *sqlstmt.Named:
		return g.expr(e.Expr)

	case *sqlstmt.Entity, *sqlstmt.New, *sqlstmt.GroupingSelect:
		return ir.UnsupportedExpression(e, "%s spans several columns where a single value is required", e.Type())

	case *sqlstmt.MethodPlaceholder:
		return ir.UnsupportedMethodCall(e, "method %s has no SQL translation", e.Name)

	case *sqlstmt.TableRef, *sqlstmt.MemberRef, *sqlstmt.EntityRefMember, *sqlstmt.TypeCheck, *sqlstmt.EntityConstant:
		return ir.UnsupportedExpression(e, "expression is not resolved")

	case nil:
		return fmt.Errorf("missing expression")

	default:
		return ir.UnsupportedExpression(e, "%T has no SQL text", e)
	}
	return nil
}

func (g *generator) wrapped(before string, e sqlstmt.Expression, after string) error {
	g.write(before)
	if err := g.expr(e); err != nil {
		return err
	}
	g.write(after)
	return nil
}

func (g *generator) column(c *sqlstmt.Column) {
	if c.TableAlias != "" {
		g.write(quote(c.TableAlias) + ".")
	}
	g.write(quote(c.Name))
}

// in writes "item IN set". An empty collection renders as a subquery
// without rows; T-SQL rejects an empty IN list.
func (g *generator) in(e *sqlstmt.In) error {
	if err := g.expr(e.Item); err != nil {
		return err
	}
	g.write(" IN ")
	switch set := e.Set.(type) {
	case *sqlstmt.Collection:
		if len(set.Items) == 0 {
			g.write("(SELECT NULL WHERE 1 = 0)")
			return nil
		}
		return g.expr(set)
	case *sqlstmt.SubStatement:
		return g.expr(set)
	}
	return ir.UnsupportedExpression(e, "IN needs a sub-statement or a collection")
}

// literal renders an inline value.
func literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case sqlstmt.Keyword:
		return string(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case time.Time:
		return "'" + v.Format("2006-01-02T15:04:05.000") + "'"
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	}
	return fmt.Sprintf("%v", v)
}
