package sqlstmt

import "fmt"

// Children returns the direct child expressions of e in left-to-right order.
// Statements nested in SubStatement are not children; stages recurse into
// them explicitly.
func Children(e Expression) []Expression {
	switch e := e.(type) {
	case *Column, *Entity, *EntityConstant, *Constant, *Literal, *SubStatement,
		*TableRef, *EntityRefMember:
		return nil
	case *Binary:
		return []Expression{e.Left, e.Right}
	case *Unary:
		return []Expression{e.Operand}
	case *IsNull:
		return []Expression{e.Operand}
	case *IsNotNull:
		return []Expression{e.Operand}
	case *Exists:
		return []Expression{e.Operand}
	case *Convert:
		return []Expression{e.Operand}
	case *ConvertedBoolean:
		return []Expression{e.Expr}
	case *TypeCheck:
		return []Expression{e.Operand}
	case *Named:
		return []Expression{e.Expr}
	case *MemberRef:
		return []Expression{e.Source}
	case *FunctionCall:
		return e.Args
	case *Collection:
		return e.Items
	case *New:
		return e.Args
	case *Aggregation:
		if e.Operand == nil {
			return nil
		}
		return []Expression{e.Operand}
	case *In:
		return []Expression{e.Item, e.Set}
	case *Like:
		return []Expression{e.Item, e.Pattern}
	case *RowNumber:
		out := make([]Expression, len(e.Orderings))
		for i, o := range e.Orderings {
			out[i] = o.Expression
		}
		return out
	case *Case:
		out := make([]Expression, 0, 2*len(e.Cases)+1)
		for _, w := range e.Cases {
			out = append(out, w.When, w.Then)
		}
		if e.Else != nil {
			out = append(out, e.Else)
		}
		return out
	case *GroupingSelect:
		out := []Expression{e.Key}
		if e.Element != nil {
			out = append(out, e.Element)
		}
		for _, a := range e.Aggregations {
			out = append(out, a.Expr)
		}
		return out
	case *MethodPlaceholder:
		out := make([]Expression, 0, len(e.Args)+1)
		if e.Object != nil {
			out = append(out, e.Object)
		}
		return append(out, e.Args...)
	}
	panic(fmt.Sprintf("sqlstmt: unknown expression %T", e))
}

// WithChildren returns e with its direct children replaced by children, in
// the order Children returns them. When every child is identical to the
// current one, e itself is returned.
func WithChildren(e Expression, children []Expression) Expression {
	current := Children(e)
	if len(current) != len(children) {
		panic(fmt.Sprintf("sqlstmt: %T has %d children, got %d", e, len(current), len(children)))
	}
	if sameExpressions(current, children) {
		return e
	}
	c := children
	switch e := e.(type) {
	case *Binary:
		return &Binary{Op: e.Op, Left: c[0], Right: c[1], Typ: e.Typ}
	case *Unary:
		return &Unary{Op: e.Op, Operand: c[0], Typ: e.Typ}
	case *IsNull:
		return &IsNull{Operand: c[0]}
	case *IsNotNull:
		return &IsNotNull{Operand: c[0]}
	case *Exists:
		return &Exists{Operand: c[0]}
	case *Convert:
		return &Convert{Typ: e.Typ, SQLType: e.SQLType, Operand: c[0]}
	case *ConvertedBoolean:
		return &ConvertedBoolean{Expr: c[0]}
	case *TypeCheck:
		return &TypeCheck{Operand: c[0], Desired: e.Desired}
	case *Named:
		return &Named{Name: e.Name, Expr: c[0]}
	case *MemberRef:
		return &MemberRef{Source: c[0], Member: e.Member, Typ: e.Typ}
	case *FunctionCall:
		return &FunctionCall{Typ: e.Typ, Name: e.Name, Args: c}
	case *Collection:
		return &Collection{Typ: e.Typ, Items: c}
	case *New:
		return &New{Typ: e.Typ, Members: e.Members, Args: c}
	case *Aggregation:
		return &Aggregation{Typ: e.Typ, Func: e.Func, Operand: c[0]}
	case *In:
		return &In{Item: c[0], Set: c[1]}
	case *Like:
		return &Like{Item: c[0], Pattern: c[1], Escape: e.Escape}
	case *RowNumber:
		orderings := make([]Ordering, len(e.Orderings))
		for i, o := range e.Orderings {
			orderings[i] = Ordering{Expression: c[i], Direction: o.Direction}
		}
		return &RowNumber{Orderings: orderings}
	case *Case:
		out := &Case{Typ: e.Typ, Cases: make([]When, len(e.Cases))}
		for i := range e.Cases {
			out.Cases[i] = When{When: c[2*i], Then: c[2*i+1]}
		}
		if e.Else != nil {
			out.Else = c[len(c)-1]
		}
		return out
	case *GroupingSelect:
		out := &GroupingSelect{Typ: e.Typ, Key: c[0]}
		rest := c[1:]
		if e.Element != nil {
			out.Element = rest[0]
			rest = rest[1:]
		}
		for i, a := range e.Aggregations {
			out.Aggregations = append(out.Aggregations, &Named{Name: a.Name, Expr: rest[i]})
		}
		return out
	case *MethodPlaceholder:
		out := &MethodPlaceholder{Typ: e.Typ, Signature: e.Signature, Name: e.Name}
		rest := c
		if e.Object != nil {
			out.Object = rest[0]
			rest = rest[1:]
		}
		out.Args = rest
		return out
	}
	panic(fmt.Sprintf("sqlstmt: %T has no children", e))
}

// RewriteChildren applies fn to each direct child of e and rebuilds e.
// The original node is returned when fn changes nothing.
func RewriteChildren(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	children := Children(e)
	if len(children) == 0 {
		return e, nil
	}
	out := make([]Expression, len(children))
	for i, c := range children {
		r, err := fn(c)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return WithChildren(e, out), nil
}

// Rewrite applies fn bottom-up to e and every descendant. fn receives each
// node after its children were rewritten.
func Rewrite(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	if e == nil {
		return nil, nil
	}
	rewritten, err := RewriteChildren(e, func(c Expression) (Expression, error) {
		return Rewrite(c, fn)
	})
	if err != nil {
		return nil, err
	}
	return fn(rewritten)
}

// Inspect calls fn for e and every descendant in pre-order, descending into
// nested statements. It stops descending below a node when fn returns false.
func Inspect(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	if sub, ok := e.(*SubStatement); ok {
		InspectStatement(sub.Statement, fn)
		return
	}
	for _, c := range Children(e) {
		Inspect(c, fn)
	}
}

// InspectStatement calls Inspect for every expression held by stmt,
// including table sub-statements, join conditions and set operations.
func InspectStatement(stmt *Statement, fn func(Expression) bool) {
	Inspect(stmt.SelectProjection, fn)
	for _, t := range stmt.SqlTables {
		inspectTable(t, fn)
	}
	Inspect(stmt.WhereCondition, fn)
	Inspect(stmt.GroupByExpression, fn)
	for _, o := range stmt.Orderings {
		Inspect(o.Expression, fn)
	}
	Inspect(stmt.TopExpression, fn)
	Inspect(stmt.RowNumberSelector, fn)
	Inspect(stmt.CurrentRowNumberOffset, fn)
	for _, op := range stmt.SetOperations {
		InspectStatement(op.Statement, fn)
	}
}

func inspectTable(t *Table, fn func(Expression) bool) {
	switch info := t.Info.(type) {
	case *ResolvedSubStatementTableInfo:
		InspectStatement(info.Statement, fn)
	case *UnresolvedCollectionJoinInfo:
		Inspect(info.Source, fn)
	}
	for _, j := range t.Joins {
		inspectJoin(j, fn)
	}
}

func inspectJoin(j *Join, fn func(Expression) bool) {
	if r, ok := j.Info.(*ResolvedJoinInfo); ok {
		Inspect(r.Condition, fn)
	}
	for _, n := range j.Joins {
		inspectJoin(n, fn)
	}
}

func sameExpressions(a, b []Expression) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
