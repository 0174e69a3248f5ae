package ir

import "strings"

// TypeKind classifies the value domain of a Type.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindNull
	KindString
	KindInt
	KindInt64
	KindFloat
	KindDecimal
	KindBool
	KindTime
	KindUUID
	KindEntity
	KindObject
	KindSequence
	KindGrouping
)

var kindNames = map[TypeKind]string{
	KindUnknown:  "unknown",
	KindNull:     "null",
	KindString:   "string",
	KindInt:      "int",
	KindInt64:    "int64",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindBool:     "bool",
	KindTime:     "time",
	KindUUID:     "uuid",
	KindEntity:   "entity",
	KindObject:   "object",
	KindSequence: "sequence",
	KindGrouping: "grouping",
}

// String returns the lowercase kind name.
func (k TypeKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps a kind name (as written in mapping files) to a TypeKind.
// Returns KindUnknown and false for unrecognized names.
func ParseKind(name string) (TypeKind, bool) {
	switch strings.ToLower(name) {
	case "string", "text", "nvarchar":
		return KindString, true
	case "int", "int32", "integer":
		return KindInt, true
	case "int64", "long", "bigint":
		return KindInt64, true
	case "float", "float64", "double", "real":
		return KindFloat, true
	case "decimal", "money":
		return KindDecimal, true
	case "bool", "boolean", "bit":
		return KindBool, true
	case "time", "datetime", "timestamp":
		return KindTime, true
	case "uuid", "guid", "uniqueidentifier":
		return KindUUID, true
	}
	return KindUnknown, false
}

// Type describes the static type of an input expression, a statement
// expression, or a projected value.
//
// Name carries the entity or object type name for KindEntity/KindObject.
// Elem is set for sequences and groupings (the element type); Key is set for
// groupings only.
type Type struct {
	Kind     TypeKind
	Name     string
	Nullable bool
	Elem     *Type
	Key      *Type
}

// Scalar type constructors.
var (
	String  = Type{Kind: KindString, Nullable: true}
	Int     = Type{Kind: KindInt}
	Int64   = Type{Kind: KindInt64}
	Float   = Type{Kind: KindFloat}
	Decimal = Type{Kind: KindDecimal}
	Bool    = Type{Kind: KindBool}
	Time    = Type{Kind: KindTime}
	UUID    = Type{Kind: KindUUID}
	Null    = Type{Kind: KindNull, Nullable: true}
)

// Entity returns the type of a mapped entity.
func Entity(name string) Type {
	return Type{Kind: KindEntity, Name: name, Nullable: true}
}

// Object returns the type of an anonymous or named projection object.
func Object(name string) Type {
	return Type{Kind: KindObject, Name: name}
}

// SequenceOf returns the type of a sequence of elem.
func SequenceOf(elem Type) Type {
	e := elem
	return Type{Kind: KindSequence, Elem: &e}
}

// GroupingOf returns the type of a grouping with the given key and element types.
func GroupingOf(key, elem Type) Type {
	k, e := key, elem
	return Type{Kind: KindGrouping, Key: &k, Elem: &e}
}

// AsNullable returns a copy of t with Nullable set.
func (t Type) AsNullable() Type {
	t.Nullable = true
	return t
}

// AsNonNullable returns a copy of t with Nullable cleared.
func (t Type) AsNonNullable() Type {
	t.Nullable = false
	return t
}

// IsBool reports whether values of t are booleans.
func (t Type) IsBool() bool { return t.Kind == KindBool }

// IsEntity reports whether t is a mapped entity type.
func (t Type) IsEntity() bool { return t.Kind == KindEntity }

// IsSequence reports whether t is a sequence type.
func (t Type) IsSequence() bool { return t.Kind == KindSequence }

// IsNumeric reports whether arithmetic is defined on t.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case KindInt, KindInt64, KindFloat, KindDecimal:
		return true
	}
	return false
}

// IsIntegral reports whether t is an integer type.
func (t Type) IsIntegral() bool {
	return t.Kind == KindInt || t.Kind == KindInt64
}

// ElemType returns the element type of a sequence or grouping, or Unknown.
func (t Type) ElemType() Type {
	if t.Elem == nil {
		return Type{}
	}
	return *t.Elem
}

// KeyType returns the key type of a grouping, or Unknown.
func (t Type) KeyType() Type {
	if t.Key == nil {
		return Type{}
	}
	return *t.Key
}

// Equal reports whether t and o describe the same type, ignoring nullability.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}
	if (t.Elem == nil) != (o.Elem == nil) {
		return false
	}
	if t.Elem != nil && !t.Elem.Equal(*o.Elem) {
		return false
	}
	if (t.Key == nil) != (o.Key == nil) {
		return false
	}
	if t.Key != nil {
		return t.Key.Equal(*o.Key)
	}
	return true
}

// String renders the type for diagnostics, e.g. "Cook", "seq<int>", "string?".
func (t Type) String() string {
	var s string
	switch t.Kind {
	case KindEntity, KindObject:
		s = t.Name
		if s == "" {
			s = t.Kind.String()
		}
	case KindSequence:
		s = "seq<" + t.ElemType().String() + ">"
	case KindGrouping:
		s = "grouping<" + t.KeyType().String() + "," + t.ElemType().String() + ">"
	default:
		s = t.Kind.String()
	}
	if t.Nullable && t.Kind != KindEntity && t.Kind != KindString && t.Kind != KindNull {
		s += "?"
	}
	return s
}

// ParseType parses the textual form produced by Type.String: scalar kind
// names, "seq<T>", "grouping<K,T>", a trailing "?" for nullability, and
// anything else as an entity name.
func ParseType(s string) Type {
	s = strings.TrimSpace(s)
	nullable := false
	if strings.HasSuffix(s, "?") {
		nullable = true
		s = strings.TrimSuffix(s, "?")
	}
	var t Type
	switch {
	case strings.HasPrefix(s, "seq<") && strings.HasSuffix(s, ">"):
		t = SequenceOf(ParseType(s[4 : len(s)-1]))
	case strings.HasPrefix(s, "grouping<") && strings.HasSuffix(s, ">"):
		inner := s[9 : len(s)-1]
		key, elem := splitTopLevel(inner)
		t = GroupingOf(ParseType(key), ParseType(elem))
	case strings.HasPrefix(s, "object:"):
		t = Object(strings.TrimPrefix(s, "object:"))
	default:
		if k, ok := ParseKind(s); ok {
			t = Type{Kind: k, Nullable: k == KindString}
		} else if strings.EqualFold(s, "null") {
			t = Null
		} else {
			t = Entity(s)
		}
	}
	if nullable {
		t.Nullable = true
	}
	return t
}

// splitTopLevel splits "a,b" at the first comma outside angle brackets.
func splitTopLevel(s string) (string, string) {
	depth := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return s[:i], s[i+1:]
			}
		}
	}
	return s, ""
}
