package querymodel

import "github.com/roach88/relq/internal/ir"

// OperatorKind names a result operator. It is the dispatch key of the
// preparation stage's handler table.
type OperatorKind string

const (
	KindTake           OperatorKind = "Take"
	KindSkip           OperatorKind = "Skip"
	KindDistinct       OperatorKind = "Distinct"
	KindCount          OperatorKind = "Count"
	KindLongCount      OperatorKind = "LongCount"
	KindSum            OperatorKind = "Sum"
	KindAverage        OperatorKind = "Average"
	KindMin            OperatorKind = "Min"
	KindMax            OperatorKind = "Max"
	KindContains       OperatorKind = "Contains"
	KindUnion          OperatorKind = "Union"
	KindConcat         OperatorKind = "Concat"
	KindIntersect      OperatorKind = "Intersect"
	KindExcept         OperatorKind = "Except"
	KindOfType         OperatorKind = "OfType"
	KindCast           OperatorKind = "Cast"
	KindFirst          OperatorKind = "First"
	KindLast           OperatorKind = "Last"
	KindSingle         OperatorKind = "Single"
	KindAny            OperatorKind = "Any"
	KindAll            OperatorKind = "All"
	KindGroupBy        OperatorKind = "GroupBy"
	KindDefaultIfEmpty OperatorKind = "DefaultIfEmpty"
	KindReverse        OperatorKind = "Reverse"
	KindAggregate      OperatorKind = "Aggregate"
)

// ResultOperator transforms the selected sequence.
//
// This is a sealed interface - only types in this package implement it.
type ResultOperator interface {
	resultOperatorNode() // Marker method - seals interface to this package
	Kind() OperatorKind
	String() string

	// resultType maps the incoming sequence type to the produced type.
	resultType(in ir.Type) ir.Type
}

// Take limits the sequence to Count items.
type Take struct{ Count Expr }

// Skip drops the first Count items.
type Skip struct{ Count Expr }

// Distinct removes duplicate items.
type Distinct struct{}

// Count counts items (int).
type Count struct{}

// LongCount counts items (int64).
type LongCount struct{}

// Sum sums items.
type Sum struct{}

// Average averages items; integral input yields float.
type Average struct{}

// Min returns the smallest item.
type Min struct{}

// Max returns the largest item.
type Max struct{}

// Contains tests whether Item is in the sequence.
type Contains struct{ Item Expr }

// Union combines with Source2, removing duplicates.
type Union struct{ Source2 Expr }

// Concat combines with Source2, keeping duplicates.
type Concat struct{ Source2 Expr }

// Intersect keeps items also in Source2.
type Intersect struct{ Source2 Expr }

// Except drops items also in Source2.
type Except struct{ Source2 Expr }

// OfType keeps items of SearchedType and retypes the sequence.
type OfType struct{ SearchedType ir.Type }

// Cast retypes the sequence.
type Cast struct{ CastType ir.Type }

// First returns the first item. ReturnDefaultWhenEmpty selects FirstOrDefault.
type First struct{ ReturnDefaultWhenEmpty bool }

// Last returns the last item according to the sequence ordering.
type Last struct{ ReturnDefaultWhenEmpty bool }

// Single returns the only item; more than one item is an error.
type Single struct{ ReturnDefaultWhenEmpty bool }

// Any tests whether the sequence has items.
type Any struct{}

// All tests Predicate (over ItemRef) for every item.
type All struct{ Predicate Expr }

// GroupBy groups items by KeySelector; ElementSelector (nil = the item)
// projects the group elements. Both are expressed over ItemRef.
type GroupBy struct {
	KeySelector     Expr
	ElementSelector Expr
}

// DefaultIfEmpty yields a single default item for an empty sequence.
type DefaultIfEmpty struct{}

// Reverse reverses the sequence.
type Reverse struct{}

// Aggregate folds the sequence with Func.
type Aggregate struct{ Func Expr }

func (*Take) resultOperatorNode()           {}
func (*Skip) resultOperatorNode()           {}
func (*Distinct) resultOperatorNode()       {}
func (*Count) resultOperatorNode()          {}
func (*LongCount) resultOperatorNode()      {}
func (*Sum) resultOperatorNode()            {}
func (*Average) resultOperatorNode()        {}
func (*Min) resultOperatorNode()            {}
func (*Max) resultOperatorNode()            {}
func (*Contains) resultOperatorNode()       {}
func (*Union) resultOperatorNode()          {}
func (*Concat) resultOperatorNode()         {}
func (*Intersect) resultOperatorNode()      {}
func (*Except) resultOperatorNode()         {}
func (*OfType) resultOperatorNode()         {}
func (*Cast) resultOperatorNode()           {}
func (*First) resultOperatorNode()          {}
func (*Last) resultOperatorNode()           {}
func (*Single) resultOperatorNode()         {}
func (*Any) resultOperatorNode()            {}
func (*All) resultOperatorNode()            {}
func (*GroupBy) resultOperatorNode()        {}
func (*DefaultIfEmpty) resultOperatorNode() {}
func (*Reverse) resultOperatorNode()        {}
func (*Aggregate) resultOperatorNode()      {}

func (*Take) Kind() OperatorKind           { return KindTake }
func (*Skip) Kind() OperatorKind           { return KindSkip }
func (*Distinct) Kind() OperatorKind       { return KindDistinct }
func (*Count) Kind() OperatorKind          { return KindCount }
func (*LongCount) Kind() OperatorKind      { return KindLongCount }
func (*Sum) Kind() OperatorKind            { return KindSum }
func (*Average) Kind() OperatorKind        { return KindAverage }
func (*Min) Kind() OperatorKind            { return KindMin }
func (*Max) Kind() OperatorKind            { return KindMax }
func (*Contains) Kind() OperatorKind       { return KindContains }
func (*Union) Kind() OperatorKind          { return KindUnion }
func (*Concat) Kind() OperatorKind         { return KindConcat }
func (*Intersect) Kind() OperatorKind      { return KindIntersect }
func (*Except) Kind() OperatorKind         { return KindExcept }
func (*OfType) Kind() OperatorKind         { return KindOfType }
func (*Cast) Kind() OperatorKind           { return KindCast }
func (*First) Kind() OperatorKind          { return KindFirst }
func (*Last) Kind() OperatorKind           { return KindLast }
func (*Single) Kind() OperatorKind         { return KindSingle }
func (*Any) Kind() OperatorKind            { return KindAny }
func (*All) Kind() OperatorKind            { return KindAll }
func (*GroupBy) Kind() OperatorKind        { return KindGroupBy }
func (*DefaultIfEmpty) Kind() OperatorKind { return KindDefaultIfEmpty }
func (*Reverse) Kind() OperatorKind        { return KindReverse }
func (*Aggregate) Kind() OperatorKind      { return KindAggregate }

func (*Take) resultType(in ir.Type) ir.Type           { return in }
func (*Skip) resultType(in ir.Type) ir.Type           { return in }
func (*Distinct) resultType(in ir.Type) ir.Type       { return in }
func (*Count) resultType(ir.Type) ir.Type             { return ir.Int }
func (*LongCount) resultType(ir.Type) ir.Type         { return ir.Int64 }
func (*Sum) resultType(in ir.Type) ir.Type            { return in.ElemType() }
func (*Min) resultType(in ir.Type) ir.Type            { return in.ElemType() }
func (*Max) resultType(in ir.Type) ir.Type            { return in.ElemType() }
func (*Contains) resultType(ir.Type) ir.Type          { return ir.Bool }
func (*Union) resultType(in ir.Type) ir.Type          { return in }
func (*Concat) resultType(in ir.Type) ir.Type         { return in }
func (*Intersect) resultType(in ir.Type) ir.Type      { return in }
func (*Except) resultType(in ir.Type) ir.Type         { return in }
func (o *OfType) resultType(ir.Type) ir.Type          { return ir.SequenceOf(o.SearchedType) }
func (o *Cast) resultType(ir.Type) ir.Type            { return ir.SequenceOf(o.CastType) }
func (*First) resultType(in ir.Type) ir.Type          { return in.ElemType() }
func (*Last) resultType(in ir.Type) ir.Type           { return in.ElemType() }
func (*Single) resultType(in ir.Type) ir.Type         { return in.ElemType() }
func (*Any) resultType(ir.Type) ir.Type               { return ir.Bool }
func (*All) resultType(ir.Type) ir.Type               { return ir.Bool }
func (*DefaultIfEmpty) resultType(in ir.Type) ir.Type { return in }
func (*Reverse) resultType(in ir.Type) ir.Type        { return in }

func (*Average) resultType(in ir.Type) ir.Type {
	if in.ElemType().IsIntegral() {
		return ir.Float
	}
	return in.ElemType()
}

func (o *GroupBy) resultType(in ir.Type) ir.Type {
	elem := in.ElemType()
	if o.ElementSelector != nil {
		elem = o.ElementSelector.Type()
	}
	return ir.SequenceOf(ir.GroupingOf(o.KeySelector.Type(), elem))
}

func (o *Aggregate) resultType(in ir.Type) ir.Type {
	if o.Func != nil {
		return o.Func.Type()
	}
	return in.ElemType()
}
