package querymodel

import (
	"fmt"
	"strings"
)

// String renders the model as a single line, e.g.
// "from c in Table<Cook> where ([c].Name == "Huber") select [c].FirstName => Take(5)".
func (m *QueryModel) String() string {
	var b strings.Builder
	if m.MainFromClause != nil {
		fmt.Fprintf(&b, "from %s in %s", m.MainFromClause.Name, exprString(m.MainFromClause.FromExpression))
	}
	for _, c := range m.BodyClauses {
		b.WriteByte(' ')
		b.WriteString(clauseString(c))
	}
	if m.SelectClause != nil {
		b.WriteString(" select ")
		b.WriteString(exprString(m.SelectClause.Selector))
	}
	for _, op := range m.ResultOperators {
		b.WriteString(" => ")
		b.WriteString(op.String())
	}
	return b.String()
}

func clauseString(c BodyClause) string {
	switch c := c.(type) {
	case *AdditionalFromClause:
		return fmt.Sprintf("from %s in %s", c.Name, exprString(c.FromExpression))
	case *JoinClause:
		return fmt.Sprintf("join %s in %s on %s equals %s", c.Name, exprString(c.InnerSequence),
			exprString(c.OuterKeySelector), exprString(c.InnerKeySelector))
	case *WhereClause:
		return "where " + exprString(c.Predicate)
	case *OrderByClause:
		parts := make([]string, len(c.Orderings))
		for i, o := range c.Orderings {
			parts[i] = exprString(o.Expression) + " " + o.Direction.String()
		}
		return "orderby " + strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%T", c)
}

func exprString(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = exprString(e)
	}
	return strings.Join(parts, ", ")
}

func (e *Table) String() string          { return "Table<" + e.Entity.String() + ">" }
func (e *QuerySourceRef) String() string { return "[" + e.Name + "]" }
func (e *ItemRef) String() string        { return "[item]" }
func (e *Member) String() string         { return exprString(e.Object) + "." + e.Name }
func (e *SubQuery) String() string       { return "{" + e.Model.String() + "}" }

func (e *Constant) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = (&Constant{Value: item}).String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", e.Value)
}

func (e *Binary) String() string {
	return "(" + exprString(e.Left) + " " + string(e.Op) + " " + exprString(e.Right) + ")"
}

func (e *Unary) String() string {
	if e.Op == OpConvert {
		return "Convert(" + exprString(e.Operand) + ", " + e.Typ.String() + ")"
	}
	return string(e.Op) + exprString(e.Operand)
}

func (e *Call) String() string {
	target := e.Method.DeclaringType
	if e.Object != nil {
		target = exprString(e.Object)
	}
	return target + "." + e.Method.Name + "(" + exprList(e.Args) + ")"
}

func (e *Conditional) String() string {
	return "IIF(" + exprString(e.Test) + ", " + exprString(e.IfTrue) + ", " + exprString(e.IfFalse) + ")"
}

func (e *New) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = e.Members[i] + " = " + exprString(a)
	}
	return "new " + e.TypeName + "(" + strings.Join(parts, ", ") + ")"
}

func (o *Take) String() string     { return "Take(" + exprString(o.Count) + ")" }
func (o *Skip) String() string     { return "Skip(" + exprString(o.Count) + ")" }
func (*Distinct) String() string   { return "Distinct()" }
func (*Count) String() string      { return "Count()" }
func (*LongCount) String() string  { return "LongCount()" }
func (*Sum) String() string        { return "Sum()" }
func (*Average) String() string    { return "Average()" }
func (*Min) String() string        { return "Min()" }
func (*Max) String() string        { return "Max()" }
func (o *Contains) String() string { return "Contains(" + exprString(o.Item) + ")" }
func (o *Union) String() string    { return "Union(" + exprString(o.Source2) + ")" }
func (o *Concat) String() string   { return "Concat(" + exprString(o.Source2) + ")" }
func (o *Intersect) String() string {
	return "Intersect(" + exprString(o.Source2) + ")"
}
func (o *Except) String() string        { return "Except(" + exprString(o.Source2) + ")" }
func (o *OfType) String() string        { return "OfType<" + o.SearchedType.String() + ">()" }
func (o *Cast) String() string          { return "Cast<" + o.CastType.String() + ">()" }
func (o *First) String() string         { return orDefault("First", o.ReturnDefaultWhenEmpty) }
func (o *Last) String() string          { return orDefault("Last", o.ReturnDefaultWhenEmpty) }
func (o *Single) String() string        { return orDefault("Single", o.ReturnDefaultWhenEmpty) }
func (*Any) String() string             { return "Any()" }
func (o *All) String() string           { return "All(" + exprString(o.Predicate) + ")" }
func (*DefaultIfEmpty) String() string  { return "DefaultIfEmpty()" }
func (*Reverse) String() string         { return "Reverse()" }
func (o *Aggregate) String() string     { return "Aggregate(" + exprString(o.Func) + ")" }

func (o *GroupBy) String() string {
	if o.ElementSelector == nil {
		return "GroupBy(" + exprString(o.KeySelector) + ")"
	}
	return "GroupBy(" + exprString(o.KeySelector) + ", " + exprString(o.ElementSelector) + ")"
}

func orDefault(name string, orDefault bool) string {
	if orDefault {
		return name + "OrDefault()"
	}
	return name + "()"
}
