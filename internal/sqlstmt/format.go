package sqlstmt

import (
	"fmt"
	"strings"
)

// Format renders e for diagnostics; nil renders as "<nil>".
func Format(e Expression) string {
	if e == nil {
		return "<nil>"
	}
	return e.String()
}

func formatList(es []Expression) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = Format(e)
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case Keyword:
		return string(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	}
	return fmt.Sprintf("%v", v)
}

func formatOrderings(orderings []Ordering) string {
	parts := make([]string, len(orderings))
	for i, o := range orderings {
		parts[i] = Format(o.Expression) + " " + o.Direction.String()
	}
	return strings.Join(parts, ", ")
}

func (e *Column) String() string {
	if e.TableAlias == "" {
		return "[" + e.Name + "]"
	}
	return "[" + e.TableAlias + "].[" + e.Name + "]"
}

func (e *Entity) String() string {
	cols := make([]Expression, len(e.Columns))
	for i, c := range e.Columns {
		cols[i] = c
	}
	return "ENTITY(" + e.Typ.String() + ": " + formatList(cols) + ")"
}

func (e *EntityConstant) String() string {
	return "ENTITY(" + e.Typ.String() + " = " + fmt.Sprintf("%v", e.IdentityValues) + ")"
}

func (e *Constant) String() string { return "@(" + formatValue(e.Value) + ")" }
func (e *Literal) String() string  { return formatValue(e.Value) }

func (e *Binary) String() string {
	return "(" + Format(e.Left) + " " + string(e.Op) + " " + Format(e.Right) + ")"
}

func (e *Unary) String() string {
	if e.Op == OpNot {
		return "NOT (" + Format(e.Operand) + ")"
	}
	return string(e.Op) + Format(e.Operand)
}

func (e *IsNull) String() string    { return "(" + Format(e.Operand) + " IS NULL)" }
func (e *IsNotNull) String() string { return "(" + Format(e.Operand) + " IS NOT NULL)" }

func (e *FunctionCall) String() string { return e.Name + "(" + formatList(e.Args) + ")" }

func (e *Aggregation) String() string {
	if e.Operand == nil {
		return string(e.Func) + "(*)"
	}
	return string(e.Func) + "(" + Format(e.Operand) + ")"
}

func (e *Exists) String() string { return "EXISTS(" + Format(e.Operand) + ")" }
func (e *In) String() string     { return Format(e.Item) + " IN " + Format(e.Set) }

func (e *Like) String() string {
	return Format(e.Item) + " LIKE " + Format(e.Pattern) + " ESCAPE '" + e.Escape + "'"
}

func (e *Convert) String() string {
	return "CONVERT(" + e.SQLType + ", " + Format(e.Operand) + ")"
}

func (e *RowNumber) String() string {
	return "ROW_NUMBER() OVER (ORDER BY " + formatOrderings(e.Orderings) + ")"
}

func (e *Case) String() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, w := range e.Cases {
		b.WriteString(" WHEN " + Format(w.When) + " THEN " + Format(w.Then))
	}
	if e.Else != nil {
		b.WriteString(" ELSE " + Format(e.Else))
	}
	b.WriteString(" END")
	return b.String()
}

func (e *GroupingSelect) String() string {
	aggs := make([]Expression, len(e.Aggregations))
	for i, a := range e.Aggregations {
		aggs[i] = a
	}
	return "GROUPING(KEY: " + Format(e.Key) + ", ELEMENT: " + Format(e.Element) +
		", AGGREGATIONS: (" + formatList(aggs) + "))"
}

func (e *Named) String() string        { return Format(e.Expr) + " AS " + e.Name }
func (e *SubStatement) String() string { return "(" + e.Statement.String() + ")" }
func (e *Collection) String() string   { return "(" + formatList(e.Items) + ")" }

func (e *ConvertedBoolean) String() string { return "CONVERTED_BOOL(" + Format(e.Expr) + ")" }

func (e *New) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = e.Members[i] + " = " + Format(a)
	}
	return "new " + e.Typ.String() + "(" + strings.Join(parts, ", ") + ")"
}

func (e *TableRef) String() string {
	if alias := e.Table.Alias(); alias != "" {
		return "TABLE-REF(" + alias + ")"
	}
	return "TABLE-REF(" + e.Table.ItemType().String() + ")"
}

func (e *MemberRef) String() string { return Format(e.Source) + "." + e.Member }

func (e *EntityRefMember) String() string {
	return "[" + e.Origin.TableAlias + "]." + e.Member
}

func (e *TypeCheck) String() string {
	return Format(e.Operand) + " IS " + e.Desired.String()
}

func (e *MethodPlaceholder) String() string {
	target := ""
	if e.Object != nil {
		target = Format(e.Object) + "."
	}
	return target + e.Name + "(" + formatList(e.Args) + ")"
}

// String renders the statement as approximate SQL for diagnostics. The
// generation stage owns the exact text.
func (s *Statement) String() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.IsDistinctQuery {
		b.WriteString("DISTINCT ")
	}
	if s.TopExpression != nil {
		b.WriteString("TOP (" + Format(s.TopExpression) + ") ")
	}
	b.WriteString(Format(s.SelectProjection))
	for i, t := range s.SqlTables {
		if i == 0 {
			b.WriteString(" FROM ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	if s.WhereCondition != nil {
		b.WriteString(" WHERE " + Format(s.WhereCondition))
	}
	if s.GroupByExpression != nil {
		b.WriteString(" GROUP BY " + Format(s.GroupByExpression))
	}
	if len(s.Orderings) > 0 {
		b.WriteString(" ORDER BY " + formatOrderings(s.Orderings))
	}
	for _, op := range s.SetOperations {
		b.WriteString(" " + string(op.Kind) + " (" + op.Statement.String() + ")")
	}
	return b.String()
}

// String renders the table and its joins for diagnostics.
func (t *Table) String() string {
	var b strings.Builder
	switch info := t.Info.(type) {
	case *UnresolvedTableInfo:
		b.WriteString("TABLE(" + info.Typ.String() + ")")
	case *UnresolvedCollectionJoinInfo:
		b.WriteString("TABLE(" + Format(info.Source) + "." + info.Member + ")")
	case *ResolvedSimpleTableInfo:
		b.WriteString("[" + info.Name + "] AS [" + info.TableAlias + "]")
	case *ResolvedSubStatementTableInfo:
		b.WriteString("(" + info.Statement.String() + ") AS [" + info.TableAlias + "]")
	}
	for _, j := range t.Joins {
		writeJoin(&b, j)
	}
	return b.String()
}

func writeJoin(b *strings.Builder, j *Join) {
	switch info := j.Info.(type) {
	case *UnresolvedJoinInfo:
		b.WriteString(" JOIN " + info.Origin.TableAlias + "." + info.Member)
	case *ResolvedJoinInfo:
		b.WriteString(" LEFT OUTER JOIN [" + info.Foreign.Name + "] AS [" + info.Foreign.TableAlias +
			"] ON " + Format(info.Condition))
	}
	for _, n := range j.Joins {
		writeJoin(b, n)
	}
}
