package prepare

import (
	"maps"
	"strings"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/querymodel"
	"github.com/roach88/relq/internal/sqlstmt"
)

// MethodCall is a method call whose object and arguments are already prepared.
type MethodCall struct {
	Method querymodel.MethodRef
	Object sqlstmt.Expression // nil for static methods
	Args   []sqlstmt.Expression
	Typ    ir.Type
	Node   *querymodel.Call
}

// MethodTransformer turns a method call into a statement expression.
type MethodTransformer func(call *MethodCall) (sqlstmt.Expression, error)

// SQLFunctionAttribute marks methods that map onto a SQL function of the same name.
const SQLFunctionAttribute = "sql:function"

// MethodRegistry maps methods to transformers. Lookup tries the exact
// signature, then the declared attribute, then the bare method name; the
// first hit wins.
//
// A registry is built before compilation starts and only read afterwards, so
// one registry may serve concurrent compilations.
type MethodRegistry struct {
	bySignature map[string]MethodTransformer
	byAttribute map[string]MethodTransformer
	byName      map[string]MethodTransformer
}

// NewMethodRegistry returns an empty registry.
func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{
		bySignature: map[string]MethodTransformer{},
		byAttribute: map[string]MethodTransformer{},
		byName:      map[string]MethodTransformer{},
	}
}

// RegisterSignature registers fn for an exact signature such as
// "string.StartsWith(string)".
func (r *MethodRegistry) RegisterSignature(signature string, fn MethodTransformer) {
	r.bySignature[signature] = fn
}

// RegisterAttribute registers fn for every method declaring attribute.
func (r *MethodRegistry) RegisterAttribute(attribute string, fn MethodTransformer) {
	r.byAttribute[attribute] = fn
}

// RegisterName registers fn for every method named name.
func (r *MethodRegistry) RegisterName(name string, fn MethodTransformer) {
	r.byName[name] = fn
}

// Lookup finds the transformer for m.
func (r *MethodRegistry) Lookup(m querymodel.MethodRef) (MethodTransformer, bool) {
	if fn, ok := r.bySignature[m.Signature()]; ok {
		return fn, true
	}
	if m.Attribute != "" {
		if fn, ok := r.byAttribute[m.Attribute]; ok {
			return fn, true
		}
	}
	fn, ok := r.byName[m.Name]
	return fn, ok
}

// Clone returns an independent copy of r, for extending the defaults.
func (r *MethodRegistry) Clone() *MethodRegistry {
	return &MethodRegistry{
		bySignature: maps.Clone(r.bySignature),
		byAttribute: maps.Clone(r.byAttribute),
		byName:      maps.Clone(r.byName),
	}
}

var defaultMethods = buildDefaultMethods()

// DefaultMethods returns the built-in registry. Callers must Clone it before
// registering additional transformers.
func DefaultMethods() *MethodRegistry {
	return defaultMethods
}

func buildDefaultMethods() *MethodRegistry {
	r := NewMethodRegistry()

	r.RegisterSignature("string.StartsWith(string)", likeTransformer("", "%"))
	r.RegisterSignature("string.EndsWith(string)", likeTransformer("%", ""))
	r.RegisterSignature("string.Contains(string)", likeTransformer("%", "%"))
	r.RegisterSignature("string.ToUpper()", functionTransformer("UPPER", ir.String))
	r.RegisterSignature("string.ToLower()", functionTransformer("LOWER", ir.String))
	r.RegisterSignature("string.Trim()", trimTransformer)
	r.RegisterSignature("string.Substring(int)", substringTransformer)
	r.RegisterSignature("string.Substring(int,int)", substringTransformer)
	r.RegisterSignature("string.IndexOf(string)", indexOfTransformer)
	r.RegisterSignature("string.Replace(string,string)", functionTransformer("REPLACE", ir.String))
	r.RegisterSignature("string.IsNullOrEmpty(string)", isNullOrEmptyTransformer)
	r.RegisterName("Concat", concatTransformer)

	r.RegisterSignature("Math.Abs(int)", functionTransformer("ABS", ir.Int))
	r.RegisterSignature("Math.Abs(int64)", functionTransformer("ABS", ir.Int64))
	r.RegisterSignature("Math.Abs(float)", functionTransformer("ABS", ir.Float))
	r.RegisterSignature("Math.Abs(decimal)", functionTransformer("ABS", ir.Decimal))
	r.RegisterSignature("Math.Round(float)", roundTransformer)
	r.RegisterSignature("Math.Round(decimal)", roundTransformer)
	r.RegisterSignature("Math.Round(float,int)", roundTransformer)
	r.RegisterSignature("Math.Round(decimal,int)", roundTransformer)
	r.RegisterSignature("Math.Floor(float)", functionTransformer("FLOOR", ir.Float))
	r.RegisterSignature("Math.Floor(decimal)", functionTransformer("FLOOR", ir.Decimal))
	r.RegisterSignature("Math.Ceiling(float)", functionTransformer("CEILING", ir.Float))
	r.RegisterSignature("Math.Ceiling(decimal)", functionTransformer("CEILING", ir.Decimal))

	r.RegisterSignature("time.AddDays(float)", dateAddTransformer("day"))
	r.RegisterSignature("time.AddDays(int)", dateAddTransformer("day"))
	r.RegisterSignature("time.AddMonths(int)", dateAddTransformer("month"))
	r.RegisterSignature("time.AddYears(int)", dateAddTransformer("year"))

	r.RegisterName("Equals", equalsTransformer)
	r.RegisterName("ToString", toStringTransformer)
	r.RegisterName("Contains", collectionContainsTransformer)

	r.RegisterAttribute(SQLFunctionAttribute, sqlFunctionTransformer)
	return r
}

// escapeLike escapes LIKE wildcards with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`)
	return r.Replace(s)
}

// escapeLikeExpr escapes LIKE wildcards of a value only known at execution time.
func escapeLikeExpr(e sqlstmt.Expression) sqlstmt.Expression {
	for _, ch := range []string{`\`, `%`, `_`, `[`} {
		e = &sqlstmt.FunctionCall{Typ: ir.String, Name: "REPLACE", Args: []sqlstmt.Expression{
			e,
			&sqlstmt.Literal{Typ: ir.String, Value: ch},
			&sqlstmt.Literal{Typ: ir.String, Value: `\` + ch},
		}}
	}
	return e
}

func likeTransformer(prefix, suffix string) MethodTransformer {
	return func(call *MethodCall) (sqlstmt.Expression, error) {
		if err := requireArgs(call, 1, true); err != nil {
			return nil, err
		}
		var pattern sqlstmt.Expression
		switch arg := call.Args[0].(type) {
		case *sqlstmt.Constant:
			s, ok := arg.Value.(string)
			if !ok {
				return nil, ir.UnsupportedMethodCall(call.Node, "%s expects a string argument", call.Method.Name)
			}
			pattern = &sqlstmt.Constant{Typ: ir.String, Value: prefix + escapeLike(s) + suffix}
		default:
			pattern = escapeLikeExpr(arg)
			if prefix != "" {
				pattern = sqlstmt.NewBinary(sqlstmt.OpAdd, &sqlstmt.Literal{Typ: ir.String, Value: prefix}, pattern)
			}
			if suffix != "" {
				pattern = sqlstmt.NewBinary(sqlstmt.OpAdd, pattern, &sqlstmt.Literal{Typ: ir.String, Value: suffix})
			}
		}
		return &sqlstmt.Like{Item: call.Object, Pattern: pattern, Escape: `\`}, nil
	}
}

// functionTransformer maps obj.M(args) or M(args) onto NAME(obj, args).
func functionTransformer(name string, typ ir.Type) MethodTransformer {
	return func(call *MethodCall) (sqlstmt.Expression, error) {
		return &sqlstmt.FunctionCall{Typ: typ, Name: name, Args: objectAndArgs(call)}, nil
	}
}

func trimTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	if err := requireArgs(call, 0, true); err != nil {
		return nil, err
	}
	rtrim := &sqlstmt.FunctionCall{Typ: ir.String, Name: "RTRIM", Args: []sqlstmt.Expression{call.Object}}
	return &sqlstmt.FunctionCall{Typ: ir.String, Name: "LTRIM", Args: []sqlstmt.Expression{rtrim}}, nil
}

func substringTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	if call.Object == nil || len(call.Args) == 0 || len(call.Args) > 2 {
		return nil, ir.UnsupportedMethodCall(call.Node, "Substring expects one or two arguments")
	}
	start := sqlstmt.NewBinary(sqlstmt.OpAdd, call.Args[0], sqlstmt.IntLiteral(1))
	var length sqlstmt.Expression
	if len(call.Args) == 2 {
		length = call.Args[1]
	} else {
		length = &sqlstmt.FunctionCall{Typ: ir.Int, Name: "LEN", Args: []sqlstmt.Expression{call.Object}}
	}
	return &sqlstmt.FunctionCall{Typ: ir.String, Name: "SUBSTRING", Args: []sqlstmt.Expression{call.Object, start, length}}, nil
}

// indexOfTransformer yields a zero-based index; an empty search string is
// found at 0.
func indexOfTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	if err := requireArgs(call, 1, true); err != nil {
		return nil, err
	}
	arg := call.Args[0]
	emptyArg := sqlstmt.NewBinary(sqlstmt.OpEqual,
		&sqlstmt.FunctionCall{Typ: ir.Int, Name: "LEN", Args: []sqlstmt.Expression{arg}},
		sqlstmt.IntLiteral(0))
	charIndex := &sqlstmt.FunctionCall{Typ: ir.Int, Name: "CHARINDEX", Args: []sqlstmt.Expression{arg, call.Object}}
	return &sqlstmt.Case{
		Typ:   ir.Int,
		Cases: []sqlstmt.When{{When: emptyArg, Then: sqlstmt.IntLiteral(0)}},
		Else:  sqlstmt.NewBinary(sqlstmt.OpSubtract, charIndex, sqlstmt.IntLiteral(1)),
	}, nil
}

func isNullOrEmptyTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	if err := requireArgs(call, 1, false); err != nil {
		return nil, err
	}
	arg := call.Args[0]
	empty := sqlstmt.NewBinary(sqlstmt.OpEqual,
		&sqlstmt.FunctionCall{Typ: ir.Int, Name: "LEN", Args: []sqlstmt.Expression{arg}},
		sqlstmt.IntLiteral(0))
	return sqlstmt.NewBinary(sqlstmt.OpOr, &sqlstmt.IsNull{Operand: arg}, empty), nil
}

func concatTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	parts := objectAndArgs(call)
	if len(parts) == 0 {
		return nil, ir.UnsupportedMethodCall(call.Node, "Concat needs arguments")
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out = &sqlstmt.Binary{Op: sqlstmt.OpAdd, Left: out, Right: p, Typ: ir.String}
	}
	return out, nil
}

func roundTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	if len(call.Args) == 0 || len(call.Args) > 2 {
		return nil, ir.UnsupportedMethodCall(call.Node, "Round expects one or two arguments")
	}
	digits := sqlstmt.Expression(sqlstmt.IntLiteral(0))
	if len(call.Args) == 2 {
		digits = call.Args[1]
	}
	return &sqlstmt.FunctionCall{Typ: call.Args[0].Type(), Name: "ROUND", Args: []sqlstmt.Expression{call.Args[0], digits}}, nil
}

func dateAddTransformer(part string) MethodTransformer {
	return func(call *MethodCall) (sqlstmt.Expression, error) {
		if err := requireArgs(call, 1, true); err != nil {
			return nil, err
		}
		return &sqlstmt.FunctionCall{Typ: ir.Time, Name: "DATEADD", Args: []sqlstmt.Expression{
			&sqlstmt.Literal{Value: sqlstmt.Keyword(part)},
			call.Args[0],
			call.Object,
		}}, nil
	}
}

func equalsTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	parts := objectAndArgs(call)
	if len(parts) != 2 {
		return nil, ir.UnsupportedMethodCall(call.Node, "Equals expects two operands")
	}
	return sqlstmt.NewBinary(sqlstmt.OpEqual, parts[0], parts[1]), nil
}

func toStringTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	if err := requireArgs(call, 0, true); err != nil {
		return nil, err
	}
	if call.Object.Type().Kind == ir.KindString {
		return call.Object, nil
	}
	return &sqlstmt.Convert{Typ: ir.String, SQLType: sqlstmt.SQLTypeName(ir.String), Operand: call.Object}, nil
}

// collectionContainsTransformer handles list.Contains(item) and the static
// form Contains(list, item).
func collectionContainsTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	var set, item sqlstmt.Expression
	switch {
	case call.Object != nil && len(call.Args) == 1:
		set, item = call.Object, call.Args[0]
	case call.Object == nil && len(call.Args) == 2:
		set, item = call.Args[0], call.Args[1]
	default:
		return nil, ir.UnsupportedMethodCall(call.Node, "Contains expects a collection and an item")
	}
	switch set.(type) {
	case *sqlstmt.Collection, *sqlstmt.SubStatement:
		return &sqlstmt.In{Item: item, Set: set}, nil
	}
	return nil, ir.UnsupportedMethodCall(call.Node, "Contains needs an in-memory collection or a subquery, got %T", set)
}

func sqlFunctionTransformer(call *MethodCall) (sqlstmt.Expression, error) {
	return &sqlstmt.FunctionCall{Typ: call.Typ, Name: call.Method.Name, Args: objectAndArgs(call)}, nil
}

func objectAndArgs(call *MethodCall) []sqlstmt.Expression {
	out := make([]sqlstmt.Expression, 0, len(call.Args)+1)
	if call.Object != nil {
		out = append(out, call.Object)
	}
	return append(out, call.Args...)
}

func requireArgs(call *MethodCall, n int, instance bool) error {
	if len(call.Args) != n {
		return ir.UnsupportedMethodCall(call.Node, "%s expects %d argument(s), got %d", call.Method.Name, n, len(call.Args))
	}
	if instance && call.Object == nil {
		return ir.UnsupportedMethodCall(call.Node, "%s needs an object", call.Method.Name)
	}
	if !instance && call.Object != nil {
		return ir.UnsupportedMethodCall(call.Node, "%s is static", call.Method.Name)
	}
	return nil
}

// placeholder records a call no transformer handled.
func placeholder(call *MethodCall) *sqlstmt.MethodPlaceholder {
	return &sqlstmt.MethodPlaceholder{
		Typ:       call.Typ,
		Signature: call.Method.Signature(),
		Name:      call.Method.Name,
		Object:    call.Object,
		Args:      call.Args,
	}
}
