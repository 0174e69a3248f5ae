// Package projection reconstructs result objects from physical rows.
//
// The generation stage builds a Projection tree in the same walk that writes
// the SELECT list, so every ReadValue/ReadEntity index matches the column
// position in the command text. A caller evaluates the tree once per row
// with Materialize and a RowAccessor over that row.
package projection

import (
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/ir"
)

// RowAccessor exposes one physical row.
type RowAccessor interface {
	// GetValue returns the value at column index converted to typ.
	GetValue(index int, typ ir.Type) (any, error)

	// GetEntity returns the entity of type typ spread over columns, or nil
	// when the entity is absent (all identity columns NULL).
	GetEntity(typ ir.Type, columns []ColumnRef) (any, error)
}

// ColumnRef is one column read for an entity.
type ColumnRef struct {
	Index        int
	Field        string
	Type         ir.Type
	IsPrimaryKey bool
}

// Projection is a node of the row-materialization tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Projection types:
//   - ReadValue: read one column as a type
//   - ReadEntity: read an entity spanning several columns
//   - Construct: build an object from member projections
//   - Evaluate: call an in-memory evaluator on projected values
type Projection interface {
	projectionNode() // Marker method - seals interface to this package
	String() string
}

// ReadValue reads column Index as Type.
type ReadValue struct {
	Index int
	Type  ir.Type
}

// ReadEntity reads an entity from Columns.
type ReadEntity struct {
	Type    ir.Type
	Columns []ColumnRef
}

// Construct builds an Object from member projections.
type Construct struct {
	TypeName string
	Members  []string
	Args     []Projection
}

// Evaluate applies an in-memory evaluator. Object is nil for static methods.
type Evaluate struct {
	Name   string
	Fn     EvaluatorFunc
	Object Projection
	Args   []Projection
}

func (*ReadValue) projectionNode()  {}
func (*ReadEntity) projectionNode() {}
func (*Construct) projectionNode()  {}
func (*Evaluate) projectionNode()   {}

func (p *ReadValue) String() string {
	return fmt.Sprintf("value(%d:%s)", p.Index, p.Type)
}

func (p *ReadEntity) String() string {
	parts := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		parts[i] = fmt.Sprintf("%d:%s", c.Index, c.Field)
	}
	return p.Type.String() + "{" + strings.Join(parts, ",") + "}"
}

func (p *Construct) String() string {
	parts := make([]string, len(p.Args))
	for i, a := range p.Args {
		parts[i] = p.Members[i] + "=" + a.String()
	}
	return "new " + p.TypeName + "(" + strings.Join(parts, ", ") + ")"
}

func (p *Evaluate) String() string {
	parts := make([]string, 0, len(p.Args)+1)
	if p.Object != nil {
		parts = append(parts, p.Object.String())
	}
	for _, a := range p.Args {
		parts = append(parts, a.String())
	}
	return p.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Reads returns the number of column reads p performs per row.
func Reads(p Projection) int {
	switch p := p.(type) {
	case *ReadValue:
		return 1
	case *ReadEntity:
		return len(p.Columns)
	case *Construct:
		n := 0
		for _, a := range p.Args {
			n += Reads(a)
		}
		return n
	case *Evaluate:
		n := 0
		if p.Object != nil {
			n += Reads(p.Object)
		}
		for _, a := range p.Args {
			n += Reads(a)
		}
		return n
	}
	return 0
}

// Object is a constructed result object.
type Object struct {
	TypeName string
	Members  []string
	Values   []any
}

// Get returns the value of member name.
func (o *Object) Get(name string) (any, bool) {
	for i, m := range o.Members {
		if m == name {
			return o.Values[i], true
		}
	}
	return nil, false
}

// EntityValue is a materialized entity.
type EntityValue struct {
	TypeName string
	Fields   map[string]any
}

// Materialize evaluates p against one row.
func Materialize(p Projection, row RowAccessor) (any, error) {
	switch p := p.(type) {
	case *ReadValue:
		return row.GetValue(p.Index, p.Type)
	case *ReadEntity:
		return row.GetEntity(p.Type, p.Columns)
	case *Construct:
		obj := &Object{TypeName: p.TypeName, Members: p.Members, Values: make([]any, len(p.Args))}
		for i, a := range p.Args {
			v, err := Materialize(a, row)
			if err != nil {
				return nil, fmt.Errorf("member %s: %w", p.Members[i], err)
			}
			obj.Values[i] = v
		}
		return obj, nil
	case *Evaluate:
		var target any
		if p.Object != nil {
			v, err := Materialize(p.Object, row)
			if err != nil {
				return nil, err
			}
			target = v
		}
		args := make([]any, len(p.Args))
		for i, a := range p.Args {
			v, err := Materialize(a, row)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		out, err := p.Fn(target, args)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", p.Name, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown projection %T", p)
}

// BuildEntity assembles an EntityValue from column values read in the order
// of columns. It returns nil when every primary key value is nil, which is
// how a LEFT OUTER JOIN reports a missing entity.
func BuildEntity(typ ir.Type, columns []ColumnRef, values []any) any {
	present := false
	hasKey := false
	for i, c := range columns {
		if c.IsPrimaryKey {
			hasKey = true
			if values[i] != nil {
				present = true
			}
		}
	}
	if hasKey && !present {
		return nil
	}
	e := &EntityValue{TypeName: typ.Name, Fields: make(map[string]any, len(columns))}
	for i, c := range columns {
		e.Fields[c.Field] = values[i]
	}
	return e
}
