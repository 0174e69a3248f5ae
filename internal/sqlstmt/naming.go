package sqlstmt

import "github.com/roach88/relq/internal/ir"

// Output names of projected values.
//
// A projection is named positionally: an unnamed scalar is "value", members
// of New and Named values extend the prefix with "_<member>", and entity
// columns are "<prefix>_<field>" (or just the field at top level). The
// generation stage writes select lists with these names and ReferenceProjection
// reads sub-statement columns back with the same names, so the two agree.
const (
	DefaultValueName = "value"
	GroupingKeyName  = "key"
)

// ColumnAlias joins a projection prefix and a field name.
func ColumnAlias(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "_" + field
}

// ScalarName returns the output name of a scalar projected under prefix.
func ScalarName(prefix string) string {
	if prefix == "" {
		return DefaultValueName
	}
	return prefix
}

// ReferenceProjection returns the expression that reads, from outside, the
// values projected by a sub-statement aliased alias. Entities stay entities
// (identity included), New stays New, and scalars become columns.
func ReferenceProjection(alias string, projection Expression) (Expression, error) {
	return reference(alias, "", projection)
}

func reference(alias, prefix string, e Expression) (Expression, error) {
	switch e := e.(type) {
	case *Named:
		return reference(alias, ColumnAlias(prefix, e.Name), e.Expr)

	case *Entity:
		out := &Entity{Typ: e.Typ, TableAlias: alias}
		byColumn := map[*Column]*Column{}
		for _, c := range e.Columns {
			ref := &Column{
				Typ:          c.Typ,
				TableAlias:   alias,
				Name:         ColumnAlias(prefix, c.OutputField()),
				Field:        c.OutputField(),
				IsPrimaryKey: c.IsPrimaryKey,
			}
			byColumn[c] = ref
			out.Columns = append(out.Columns, ref)
		}
		for _, id := range e.Identity {
			out.Identity = append(out.Identity, byColumn[id])
		}
		return out, nil

	case *New:
		out := &New{Typ: e.Typ, Members: e.Members, Args: make([]Expression, len(e.Args))}
		for i, a := range e.Args {
			r, err := reference(alias, ColumnAlias(prefix, e.Members[i]), a)
			if err != nil {
				return nil, err
			}
			out.Args[i] = r
		}
		return out, nil

	case *GroupingSelect:
		key, err := reference(alias, ColumnAlias(prefix, GroupingKeyName), e.Key)
		if err != nil {
			return nil, err
		}
		out := &GroupingSelect{Typ: e.Typ, Key: key}
		for _, a := range e.Aggregations {
			r, err := reference(alias, ColumnAlias(prefix, a.Name), a.Expr)
			if err != nil {
				return nil, err
			}
			out.Aggregations = append(out.Aggregations, &Named{Name: a.Name, Expr: r})
		}
		return out, nil

	case *ConvertedBoolean:
		return &ConvertedBoolean{Expr: &Column{Typ: e.Expr.Type(), TableAlias: alias, Name: ScalarName(prefix)}}, nil

	case *TableRef, *MemberRef, *EntityRefMember:
		return nil, ir.UnsupportedExpression(e, "cannot reference unresolved projection")
	}
	return &Column{Typ: e.Type(), TableAlias: alias, Name: ScalarName(prefix)}, nil
}
