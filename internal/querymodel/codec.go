package querymodel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relq/internal/ir"
)

// MemberTypes supplies the static type of a member of a mapped type.
// The mapping schema implements it; nil means every member access must carry
// an explicit type.
type MemberTypes interface {
	MemberType(owner ir.Type, member string) (ir.Type, bool)
}

// document is the YAML form of a query model.
//
// Example:
//
//	from: {name: c, table: Cook}
//	clauses:
//	  - where: {op: "==", left: {path: c.Name}, right: {const: Huber}}
//	select: {path: c.FirstName}
//	operators:
//	  - take: {const: 5}
type document struct {
	From      sourceDoc   `yaml:"from"`
	Clauses   []clauseDoc `yaml:"clauses"`
	Select    yaml.Node   `yaml:"select"`
	Operators []yaml.Node `yaml:"operators"`
}

type sourceDoc struct {
	Name     string    `yaml:"name"`
	Table    string    `yaml:"table"`
	Expr     yaml.Node `yaml:"expr"`
	Subquery yaml.Node `yaml:"subquery"`
}

type clauseDoc struct {
	Where   yaml.Node     `yaml:"where"`
	OrderBy []orderingDoc `yaml:"orderby"`
	From    *sourceDoc    `yaml:"from"`
	Join    *joinDoc      `yaml:"join"`
}

type joinDoc struct {
	sourceDoc `yaml:",inline"`
	Outer     yaml.Node `yaml:"outer"`
	Inner     yaml.Node `yaml:"inner"`
}

type orderingDoc struct {
	Expr yaml.Node `yaml:"expr"`
	Desc bool      `yaml:"desc"`
}

// DecodeFile reads a query model from a YAML file.
func DecodeFile(path string, types MemberTypes) (*QueryModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open query %s: %w", path, err)
	}
	defer f.Close()

	m, err := Decode(f, types)
	if err != nil {
		return nil, fmt.Errorf("decode query %s: %w", path, err)
	}
	return m, nil
}

// Decode reads a query model from YAML.
//
// Decoding is strict: unknown keys are errors, and every expression node must
// have exactly one shape key (ref, item, path, member, const, op, call,
// subquery, if, new, table).
func Decode(r io.Reader, types MemberTypes) (*QueryModel, error) {
	var node yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	d := &decoder{types: types, objects: map[string]map[string]ir.Type{}}
	return d.model(&node, nil)
}

type decoder struct {
	types   MemberTypes
	objects map[string]map[string]ir.Type // member types of New objects seen so far
}

// sourceScope maps item names to item types, chained outward.
type sourceScope struct {
	items  map[string]ir.Type
	parent *sourceScope
}

func (s *sourceScope) lookup(name string) (ir.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.items[name]; ok {
			return t, true
		}
	}
	return ir.Type{}, false
}

// exprScope is the context of one expression: visible sources and, inside
// result operator lambdas, the current item type.
type exprScope struct {
	sources *sourceScope
	item    *ir.Type
}

func (d *decoder) model(node *yaml.Node, parent *sourceScope) (*QueryModel, error) {
	var doc document
	if err := decodeStrict(node, &doc); err != nil {
		return nil, err
	}
	sc := &sourceScope{items: map[string]ir.Type{}, parent: parent}
	outer := exprScope{sources: parent}

	fromExpr, err := d.source(&doc.From, outer)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	m := &QueryModel{MainFromClause: &MainFromClause{
		Name:           doc.From.Name,
		Type:           fromExpr.Type().ElemType(),
		FromExpression: fromExpr,
	}}
	sc.items[doc.From.Name] = m.MainFromClause.Type
	in := exprScope{sources: sc}

	for i := range doc.Clauses {
		c, err := d.clause(&doc.Clauses[i], sc, in, outer)
		if err != nil {
			return nil, fmt.Errorf("clause %d: %w", i, err)
		}
		m.BodyClauses = append(m.BodyClauses, c)
	}

	if doc.Select.Kind == 0 {
		// No selector: select the main item.
		m.SelectClause = &SelectClause{Selector: &QuerySourceRef{Name: doc.From.Name, Typ: m.MainFromClause.Type}}
	} else {
		sel, err := d.expr(&doc.Select, in)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		m.SelectClause = &SelectClause{Selector: sel}
	}

	cur := ir.SequenceOf(m.SelectClause.Selector.Type())
	for i := range doc.Operators {
		op, err := d.operator(&doc.Operators[i], sc, cur)
		if err != nil {
			return nil, fmt.Errorf("operator %d: %w", i, err)
		}
		m.ResultOperators = append(m.ResultOperators, op)
		cur = op.resultType(cur)
	}
	return m, nil
}

func (d *decoder) source(s *sourceDoc, sc exprScope) (Expr, error) {
	if s.Name == "" {
		return nil, errors.New("source needs a name")
	}
	set := 0
	var e Expr
	var err error
	if s.Table != "" {
		set++
		e = &Table{Entity: ir.Entity(s.Table)}
	}
	if s.Expr.Kind != 0 {
		set++
		e, err = d.expr(&s.Expr, sc)
	}
	if s.Subquery.Kind != 0 {
		set++
		var sub *QueryModel
		sub, err = d.model(&s.Subquery, sc.sources)
		e = &SubQuery{Model: sub}
	}
	if err != nil {
		return nil, err
	}
	if set != 1 {
		return nil, fmt.Errorf("source %q needs exactly one of table, expr, subquery", s.Name)
	}
	if t := e.Type(); !t.IsSequence() && t.Kind != ir.KindGrouping {
		return nil, fmt.Errorf("source %q is not a sequence (%s)", s.Name, e.Type())
	}
	return e, nil
}

func (d *decoder) clause(c *clauseDoc, sc *sourceScope, in, outer exprScope) (BodyClause, error) {
	switch {
	case c.Where.Kind != 0:
		p, err := d.expr(&c.Where, in)
		if err != nil {
			return nil, err
		}
		return &WhereClause{Predicate: p}, nil
	case len(c.OrderBy) > 0:
		ob := &OrderByClause{}
		for i := range c.OrderBy {
			e, err := d.expr(&c.OrderBy[i].Expr, in)
			if err != nil {
				return nil, err
			}
			dir := Ascending
			if c.OrderBy[i].Desc {
				dir = Descending
			}
			ob.Orderings = append(ob.Orderings, Ordering{Expression: e, Direction: dir})
		}
		return ob, nil
	case c.From != nil:
		e, err := d.source(c.From, in)
		if err != nil {
			return nil, err
		}
		sc.items[c.From.Name] = e.Type().ElemType()
		return &AdditionalFromClause{Name: c.From.Name, Type: e.Type().ElemType(), FromExpression: e}, nil
	case c.Join != nil:
		inner, err := d.source(&c.Join.sourceDoc, outer)
		if err != nil {
			return nil, err
		}
		outerKey, err := d.expr(&c.Join.Outer, in)
		if err != nil {
			return nil, fmt.Errorf("outer key: %w", err)
		}
		sc.items[c.Join.Name] = inner.Type().ElemType()
		innerKey, err := d.expr(&c.Join.Inner, in)
		if err != nil {
			return nil, fmt.Errorf("inner key: %w", err)
		}
		return &JoinClause{
			Name:             c.Join.Name,
			Type:             inner.Type().ElemType(),
			InnerSequence:    inner,
			OuterKeySelector: outerKey,
			InnerKeySelector: innerKey,
		}, nil
	}
	return nil, errors.New("empty clause")
}

func (d *decoder) operator(node *yaml.Node, sc *sourceScope, cur ir.Type) (ResultOperator, error) {
	key, val, err := singleKey(node)
	if err != nil {
		return nil, err
	}
	item := cur.ElemType()
	plain := exprScope{sources: sc}
	lambda := exprScope{sources: sc, item: &item}

	arg := func() (Expr, error) { return d.expr(val, plain) }
	orDefault := func() (bool, error) {
		var opts struct {
			Default bool `yaml:"default"`
		}
		if val.Kind != yaml.MappingNode {
			return false, nil
		}
		err := decodeStrict(val, &opts)
		return opts.Default, err
	}

	switch strings.ToLower(key) {
	case "take":
		e, err := arg()
		return &Take{Count: e}, err
	case "skip":
		e, err := arg()
		return &Skip{Count: e}, err
	case "distinct":
		return &Distinct{}, nil
	case "count":
		return &Count{}, nil
	case "longcount":
		return &LongCount{}, nil
	case "sum":
		return &Sum{}, nil
	case "average":
		return &Average{}, nil
	case "min":
		return &Min{}, nil
	case "max":
		return &Max{}, nil
	case "contains":
		e, err := arg()
		return &Contains{Item: e}, err
	case "union":
		e, err := arg()
		return &Union{Source2: e}, err
	case "concat":
		e, err := arg()
		return &Concat{Source2: e}, err
	case "intersect":
		e, err := arg()
		return &Intersect{Source2: e}, err
	case "except":
		e, err := arg()
		return &Except{Source2: e}, err
	case "oftype":
		return &OfType{SearchedType: ir.ParseType(val.Value)}, nil
	case "cast":
		return &Cast{CastType: ir.ParseType(val.Value)}, nil
	case "first":
		def, err := orDefault()
		return &First{ReturnDefaultWhenEmpty: def}, err
	case "last":
		def, err := orDefault()
		return &Last{ReturnDefaultWhenEmpty: def}, err
	case "single":
		def, err := orDefault()
		return &Single{ReturnDefaultWhenEmpty: def}, err
	case "any":
		return &Any{}, nil
	case "all":
		e, err := d.expr(val, lambda)
		return &All{Predicate: e}, err
	case "groupby":
		var g struct {
			Key     yaml.Node `yaml:"key"`
			Element yaml.Node `yaml:"element"`
		}
		if err := decodeStrict(val, &g); err != nil {
			return nil, err
		}
		k, err := d.expr(&g.Key, lambda)
		if err != nil {
			return nil, fmt.Errorf("key: %w", err)
		}
		op := &GroupBy{KeySelector: k}
		if g.Element.Kind != 0 {
			if op.ElementSelector, err = d.expr(&g.Element, lambda); err != nil {
				return nil, fmt.Errorf("element: %w", err)
			}
		}
		return op, nil
	case "defaultifempty":
		return &DefaultIfEmpty{}, nil
	case "reverse":
		return &Reverse{}, nil
	case "aggregate":
		e, err := d.expr(val, lambda)
		return &Aggregate{Func: e}, err
	}
	return nil, fmt.Errorf("unknown result operator %q", key)
}

// exprDoc lists every key an expression node may carry.
type exprDoc struct {
	Ref       string      `yaml:"ref"`
	Item      bool        `yaml:"item"`
	Path      string      `yaml:"path"`
	Member    string      `yaml:"member"`
	Of        yaml.Node   `yaml:"of"`
	Const     yaml.Node   `yaml:"const"`
	Op        string      `yaml:"op"`
	Left      yaml.Node   `yaml:"left"`
	Right     yaml.Node   `yaml:"right"`
	Operand   yaml.Node   `yaml:"operand"`
	Call      string      `yaml:"call"`
	On        yaml.Node   `yaml:"on"`
	Args      []yaml.Node `yaml:"args"`
	Declaring string      `yaml:"declaring"`
	Params    []string    `yaml:"params"`
	Attribute string      `yaml:"attribute"`
	Subquery  yaml.Node   `yaml:"subquery"`
	If        yaml.Node   `yaml:"if"`
	Then      yaml.Node   `yaml:"then"`
	Else      yaml.Node   `yaml:"else"`
	New       string      `yaml:"new"`
	Members   yaml.Node   `yaml:"members"`
	Table     string      `yaml:"table"`
	Type      string      `yaml:"type"`
}

func (d *decoder) expr(node *yaml.Node, sc exprScope) (Expr, error) {
	if node == nil || node.Kind == 0 {
		return nil, errors.New("missing expression")
	}
	var x exprDoc
	if err := decodeStrict(node, &x); err != nil {
		return nil, err
	}
	var explicit *ir.Type
	if x.Type != "" {
		t := ir.ParseType(x.Type)
		explicit = &t
	}

	switch {
	case x.Ref != "":
		t, ok := sc.sources.lookup(x.Ref)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown query source %q", node.Line, x.Ref)
		}
		return &QuerySourceRef{Name: x.Ref, Typ: t}, nil

	case x.Item:
		if sc.item == nil {
			return nil, fmt.Errorf("line %d: item reference outside a lambda", node.Line)
		}
		return &ItemRef{Typ: *sc.item}, nil

	case x.Path != "":
		return d.path(x.Path, sc, explicit, node.Line)

	case x.Member != "":
		obj, err := d.expr(&x.Of, sc)
		if err != nil {
			return nil, err
		}
		return d.member(obj, x.Member, explicit, node.Line)

	case x.Const.Kind != 0:
		return decodeConstant(&x.Const, explicit)

	case x.Op != "":
		return d.operatorExpr(&x, sc, explicit)

	case x.Call != "":
		return d.call(&x, sc, explicit, node.Line)

	case x.Subquery.Kind != 0:
		m, err := d.model(&x.Subquery, sc.sources)
		if err != nil {
			return nil, err
		}
		return &SubQuery{Model: m}, nil

	case x.If.Kind != 0:
		test, err := d.expr(&x.If, sc)
		if err != nil {
			return nil, err
		}
		a, err := d.expr(&x.Then, sc)
		if err != nil {
			return nil, err
		}
		b, err := d.expr(&x.Else, sc)
		if err != nil {
			return nil, err
		}
		return &Conditional{Test: test, IfTrue: a, IfFalse: b}, nil

	case x.New != "":
		return d.newExpr(x.New, &x.Members, sc)

	case x.Table != "":
		return &Table{Entity: ir.Entity(x.Table)}, nil
	}
	return nil, fmt.Errorf("line %d: expression has no shape key", node.Line)
}

// path decodes "c.Kitchen.Name" into member accesses on a query source.
func (d *decoder) path(p string, sc exprScope, explicit *ir.Type, line int) (Expr, error) {
	parts := strings.Split(p, ".")
	var cur Expr
	if parts[0] == "item" && sc.item != nil {
		cur = &ItemRef{Typ: *sc.item}
	} else {
		t, ok := sc.sources.lookup(parts[0])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown query source %q", line, parts[0])
		}
		cur = &QuerySourceRef{Name: parts[0], Typ: t}
	}
	for i, name := range parts[1:] {
		var t *ir.Type
		if i == len(parts)-2 {
			t = explicit
		}
		m, err := d.member(cur, name, t, line)
		if err != nil {
			return nil, err
		}
		cur = m
	}
	return cur, nil
}

func (d *decoder) member(obj Expr, name string, explicit *ir.Type, line int) (Expr, error) {
	if explicit != nil {
		return &Member{Object: obj, Name: name, Typ: *explicit}, nil
	}
	t, ok := d.memberType(obj.Type(), name)
	if !ok {
		return nil, fmt.Errorf("line %d: cannot type member %s of %s", line, name, obj.Type())
	}
	return &Member{Object: obj, Name: name, Typ: t}, nil
}

func (d *decoder) memberType(owner ir.Type, name string) (ir.Type, bool) {
	switch {
	case owner.Kind == ir.KindGrouping && name == "Key":
		return owner.KeyType(), true
	case owner.Kind == ir.KindString && name == "Length":
		return ir.Int, true
	case owner.Nullable && name == "HasValue" && owner.Kind != ir.KindEntity:
		return ir.Bool, true
	case owner.Nullable && name == "Value" && owner.Kind != ir.KindEntity:
		return owner.AsNonNullable(), true
	case owner.Kind == ir.KindObject:
		t, ok := d.objects[owner.Name][name]
		return t, ok
	}
	if d.types == nil {
		return ir.Type{}, false
	}
	return d.types.MemberType(owner, name)
}

func (d *decoder) operatorExpr(x *exprDoc, sc exprScope, explicit *ir.Type) (Expr, error) {
	if x.Operand.Kind != 0 {
		operand, err := d.expr(&x.Operand, sc)
		if err != nil {
			return nil, err
		}
		op := UnaryOp(x.Op)
		switch op {
		case OpNot, OpNegate:
			return &Unary{Op: op, Operand: operand}, nil
		case OpConvert:
			if explicit == nil {
				return nil, errors.New("convert needs a type")
			}
			return &Unary{Op: op, Operand: operand, Typ: *explicit}, nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", x.Op)
	}
	left, err := d.expr(&x.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := d.expr(&x.Right, sc)
	if err != nil {
		return nil, err
	}
	b := &Binary{Op: BinaryOp(x.Op), Left: left, Right: right}
	if !b.Op.valid() {
		return nil, fmt.Errorf("unknown binary operator %q", x.Op)
	}
	if explicit != nil {
		b.Typ = *explicit
	}
	return b, nil
}

// wellKnownResults types calls to common methods when no type is given.
var wellKnownResults = map[string]ir.Type{
	"StartsWith":    ir.Bool,
	"EndsWith":      ir.Bool,
	"Contains":      ir.Bool,
	"Equals":        ir.Bool,
	"IsNullOrEmpty": ir.Bool,
	"ToUpper":       ir.String,
	"ToLower":       ir.String,
	"Trim":          ir.String,
	"Substring":     ir.String,
	"Replace":       ir.String,
	"ToString":      ir.String,
	"Concat":        ir.String,
	"IndexOf":       ir.Int,
	"AddDays":       ir.Time,
	"AddMonths":     ir.Time,
	"AddYears":      ir.Time,
}

func (d *decoder) call(x *exprDoc, sc exprScope, explicit *ir.Type, line int) (Expr, error) {
	c := &Call{Method: MethodRef{
		DeclaringType: x.Declaring,
		Name:          x.Call,
		ParamTypes:    x.Params,
		Attribute:     x.Attribute,
	}}
	if x.On.Kind != 0 {
		obj, err := d.expr(&x.On, sc)
		if err != nil {
			return nil, err
		}
		c.Object = obj
		if c.Method.DeclaringType == "" {
			c.Method.DeclaringType = obj.Type().Kind.String()
		}
	}
	for i := range x.Args {
		a, err := d.expr(&x.Args[i], sc)
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", x.Call, i, err)
		}
		c.Args = append(c.Args, a)
	}
	if x.Params == nil {
		for _, a := range c.Args {
			c.Method.ParamTypes = append(c.Method.ParamTypes, a.Type().String())
		}
	}
	switch {
	case explicit != nil:
		c.Typ = *explicit
	case wellKnownResults[x.Call].Kind != ir.KindUnknown:
		c.Typ = wellKnownResults[x.Call]
	case c.Object != nil && c.Object.Type().IsNumeric():
		c.Typ = c.Object.Type()
	case len(c.Args) > 0 && c.Args[0].Type().IsNumeric():
		c.Typ = c.Args[0].Type()
	default:
		return nil, fmt.Errorf("line %d: call %s needs a type", line, x.Call)
	}
	return c, nil
}

func (d *decoder) newExpr(typeName string, members *yaml.Node, sc exprScope) (Expr, error) {
	if members.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("new %s: members must be a mapping", typeName)
	}
	n := &New{TypeName: typeName}
	types := map[string]ir.Type{}
	// Mapping node content alternates key, value and keeps document order.
	for i := 0; i+1 < len(members.Content); i += 2 {
		name := members.Content[i].Value
		arg, err := d.expr(members.Content[i+1], sc)
		if err != nil {
			return nil, fmt.Errorf("new %s member %s: %w", typeName, name, err)
		}
		n.Members = append(n.Members, name)
		n.Args = append(n.Args, arg)
		types[name] = arg.Type()
	}
	d.objects[typeName] = types
	return n, nil
}

func decodeConstant(node *yaml.Node, explicit *ir.Type) (Expr, error) {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}
	if explicit == nil {
		return &Constant{Value: raw, Typ: inferType(raw)}, nil
	}
	v, err := coerce(raw, *explicit)
	if err != nil {
		return nil, err
	}
	return &Constant{Value: v, Typ: *explicit}, nil
}

func inferType(v any) ir.Type {
	switch v := v.(type) {
	case nil:
		return ir.Null
	case string:
		return ir.String
	case int:
		return ir.Int
	case float64:
		return ir.Float
	case bool:
		return ir.Bool
	case []any:
		elem := ir.Type{}
		if len(v) > 0 {
			elem = inferType(v[0])
		}
		return ir.SequenceOf(elem)
	}
	return ir.Type{}
}

// coerce converts a decoded YAML scalar to the Go value for t.
func coerce(v any, t ir.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case ir.KindSequence:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("constant of type %s must be a list", t)
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerce(item, t.ElemType())
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case ir.KindInt64:
		if i, ok := v.(int); ok {
			return int64(i), nil
		}
	case ir.KindFloat, ir.KindDecimal:
		if i, ok := v.(int); ok {
			return float64(i), nil
		}
	case ir.KindUUID:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("uuid constant must be a string")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("uuid constant: %w", err)
		}
		return id, nil
	case ir.KindTime:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case string:
			parsed, err := time.Parse(time.RFC3339, tv)
			if err != nil {
				return nil, fmt.Errorf("time constant: %w", err)
			}
			return parsed, nil
		}
	}
	return v, nil
}

func singleKey(node *yaml.Node) (string, *yaml.Node, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		// Bare operator name, e.g. "- distinct".
		return node.Value, &yaml.Node{}, nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return "", nil, fmt.Errorf("line %d: operator must have exactly one key", node.Line)
		}
		return node.Content[0].Value, node.Content[1], nil
	}
	return "", nil, fmt.Errorf("line %d: operator must be a name or a single-key mapping", node.Line)
}

// decodeStrict decodes node into out, rejecting unknown keys.
func decodeStrict(node *yaml.Node, out any) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	b, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}
