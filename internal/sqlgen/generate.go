// Package sqlgen renders resolved statements as T-SQL.
//
// Generation is one left-to-right walk over the statement. The walk writes
// the command text, numbers parameters @1..@n in the order it meets them and,
// for the top-level SELECT list, builds the projection that reads each row
// back. Because text and projection come out of the same walk, a column's
// position in the text is always the index its projection reads.
//
// CRITICAL: Constant values are never interpolated. Every Constant becomes a
// parameter, and repeated values get distinct parameters.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/projection"
	"github.com/roach88/relq/internal/sqlstmt"
)

// Command is a compiled query.
type Command struct {
	// Text is the T-SQL command text.
	Text string

	// Parameters are the bound values, named @1..@n in text order.
	Parameters []sqlstmt.Parameter

	// Projection reads one result row.
	Projection projection.Projection

	// DataInfo is the shape of the result: a sequence, a scalar or a
	// single item.
	DataInfo sqlstmt.DataInfo
}

// Args returns the parameter values in positional order.
func (c *Command) Args() []any {
	out := make([]any, len(c.Parameters))
	for i, p := range c.Parameters {
		out[i] = p.Value
	}
	return out
}

// Options configures generation.
type Options struct {
	// Evaluators run method calls without a SQL translation in memory. A
	// method placeholder in the top-level projection needs an evaluator;
	// anywhere else it is an error.
	Evaluators *projection.EvaluatorRegistry
}

type generator struct {
	b          strings.Builder
	params     []sqlstmt.Parameter
	evaluators *projection.EvaluatorRegistry
}

// Generate renders stmt, which must be resolved.
func Generate(stmt *sqlstmt.Statement, opts Options) (*Command, error) {
	g := &generator{evaluators: opts.Evaluators}
	p, err := g.statement(stmt, true)
	if err != nil {
		return nil, err
	}
	return &Command{
		Text:       g.b.String(),
		Parameters: g.params,
		Projection: p,
		DataInfo:   stmt.DataInfo,
	}, nil
}

func (g *generator) write(s string) { g.b.WriteString(s) }

// statement writes one SELECT. top marks the outermost statement, whose
// SELECT list produces the row projection.
func (g *generator) statement(s *sqlstmt.Statement, top bool) (projection.Projection, error) {
	g.write("SELECT ")
	if s.IsDistinctQuery {
		g.write("DISTINCT ")
	}
	if s.TopExpression != nil {
		g.write("TOP (")
		if err := g.expr(s.TopExpression); err != nil {
			return nil, fmt.Errorf("generate top: %w", err)
		}
		g.write(") ")
	}

	list := &selectList{g: g, top: top}
	p, err := list.item(s.SelectProjection, "")
	if err != nil {
		return nil, fmt.Errorf("generate select: %w", err)
	}
	if list.index == 0 {
		// A projection without columns still needs a SELECT list.
		g.write("NULL AS [" + sqlstmt.DefaultValueName + "]")
	}

	if err := g.tables(s.SqlTables); err != nil {
		return nil, fmt.Errorf("generate from: %w", err)
	}
	if s.WhereCondition != nil {
		g.write(" WHERE ")
		if err := g.expr(s.WhereCondition); err != nil {
			return nil, fmt.Errorf("generate where: %w", err)
		}
	}
	if s.GroupByExpression != nil {
		g.write(" GROUP BY ")
		if err := g.list(flatten(s.GroupByExpression)); err != nil {
			return nil, fmt.Errorf("generate group by: %w", err)
		}
	}
	if len(s.Orderings) > 0 {
		g.write(" ORDER BY ")
		if err := g.orderings(s.Orderings); err != nil {
			return nil, fmt.Errorf("generate order by: %w", err)
		}
	}
	for _, op := range s.SetOperations {
		g.write(" " + string(op.Kind) + " (")
		if _, err := g.statement(op.Statement, false); err != nil {
			return nil, err
		}
		g.write(")")
	}
	return p, nil
}

// tables writes the FROM clause. The first table follows FROM; simple tables
// after it are cross joined and sub-statements are applied, OUTER APPLY for
// left semantics.
func (g *generator) tables(tables []*sqlstmt.Table) error {
	for i, t := range tables {
		_, sub := t.Info.(*sqlstmt.ResolvedSubStatementTableInfo)
		switch {
		case i == 0:
			g.write(" FROM ")
		case sub && t.JoinSemantics == sqlstmt.Left:
			g.write(" OUTER APPLY ")
		case sub:
			g.write(" CROSS APPLY ")
		default:
			g.write(" CROSS JOIN ")
		}
		if err := g.table(t); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) table(t *sqlstmt.Table) error {
	switch info := t.Info.(type) {
	case *sqlstmt.ResolvedSimpleTableInfo:
		g.simpleTable(info)
	case *sqlstmt.ResolvedSubStatementTableInfo:
		g.write("(")
		if _, err := g.statement(info.Statement, false); err != nil {
			return err
		}
		g.write(") AS " + quote(info.TableAlias))
	default:
		return ir.UnsupportedExpression(t, "table is not resolved")
	}
	for _, j := range t.Joins {
		if err := g.join(j); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) simpleTable(info *sqlstmt.ResolvedSimpleTableInfo) {
	if info.Schema != "" {
		g.write(quote(info.Schema) + ".")
	}
	g.write(quote(info.Name) + " AS " + quote(info.TableAlias))
}

func (g *generator) join(j *sqlstmt.Join) error {
	info, ok := j.Info.(*sqlstmt.ResolvedJoinInfo)
	if !ok {
		return fmt.Errorf("join %s is not resolved", j.Member)
	}
	g.write(" LEFT OUTER JOIN ")
	g.simpleTable(info.Foreign)
	g.write(" ON ")
	if err := g.expr(info.Condition); err != nil {
		return err
	}
	for _, n := range j.Joins {
		if err := g.join(n); err != nil {
			return err
		}
	}
	return nil
}

// orderings writes an ORDER BY list. Entities and objects order by all of
// their columns. A constant key is wrapped in a subquery since T-SQL rejects
// constant ORDER BY expressions.
func (g *generator) orderings(orderings []sqlstmt.Ordering) error {
	first := true
	for _, o := range orderings {
		for _, e := range flatten(o.Expression) {
			if !first {
				g.write(", ")
			}
			first = false
			if isConstant(e) {
				g.write("(SELECT ")
				if err := g.expr(e); err != nil {
					return err
				}
				g.write(")")
			} else if err := g.expr(e); err != nil {
				return err
			}
			g.write(" " + o.Direction.String())
		}
	}
	return nil
}

func isConstant(e sqlstmt.Expression) bool {
	switch e := e.(type) {
	case *sqlstmt.Literal, *sqlstmt.Constant:
		return true
	case *sqlstmt.ConvertedBoolean:
		return isConstant(e.Expr)
	}
	return false
}

// flatten spreads multi-column values into their columns.
func flatten(e sqlstmt.Expression) []sqlstmt.Expression {
	switch e := e.(type) {
	case *sqlstmt.Entity:
		out := make([]sqlstmt.Expression, len(e.Columns))
		for i, c := range e.Columns {
			out[i] = c
		}
		return out
	case *sqlstmt.New:
		var out []sqlstmt.Expression
		for _, a := range e.Args {
			out = append(out, flatten(a)...)
		}
		return out
	case *sqlstmt.Named:
		return flatten(e.Expr)
	}
	return []sqlstmt.Expression{e}
}

func (g *generator) list(es []sqlstmt.Expression) error {
	for i, e := range es {
		if i > 0 {
			g.write(", ")
		}
		if err := g.expr(e); err != nil {
			return err
		}
	}
	return nil
}

// param binds v as the next parameter and writes its name.
func (g *generator) param(v any) {
	name := "@" + strconv.Itoa(len(g.params)+1)
	g.params = append(g.params, sqlstmt.Parameter{Name: name, Value: v})
	g.write(name)
}

// quote bracket-quotes an identifier. Names are NFC-normalized so that
// equal names always render identically.
func quote(name string) string {
	return "[" + strings.ReplaceAll(norm.NFC.String(name), "]", "]]") + "]"
}
