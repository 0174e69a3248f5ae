// Package mapping describes how entity types are stored and resolves
// statements against that description.
//
// A Schema is loaded from YAML (LoadYAML, DecodeYAML) or CUE (LoadCUE,
// CompileCUE) and finalized once; after that it is read-only and a single
// Resolver can serve any number of concurrent compilations.
package mapping

import (
	"fmt"
	"slices"

	"github.com/go-openapi/inflect"

	"github.com/roach88/relq/internal/ir"
)

// Schema is the set of mapped entity types.
type Schema struct {
	Entities []*EntitySpec `yaml:"entities"`

	byName map[string]*EntitySpec
}

// EntitySpec maps one entity type.
//
// A derived entity (Base set) is stored in its base's table and is told
// apart by the discriminator column declared on the root of the hierarchy.
type EntitySpec struct {
	Name               string           `yaml:"name"`
	Schema             string           `yaml:"schema,omitempty"`
	Table              string           `yaml:"table,omitempty"`
	Base               string           `yaml:"base,omitempty"`
	Discriminator      string           `yaml:"discriminator,omitempty"`
	DiscriminatorValue string           `yaml:"discriminator_value,omitempty"`
	Columns            []ColumnSpec     `yaml:"columns"`
	Navigations        []NavigationSpec `yaml:"navigations,omitempty"`

	// Resolved by finalize: inherited columns first, then own columns.
	columns []ColumnSpec
	navs    []NavigationSpec
	base    *EntitySpec
	derived []*EntitySpec
}

// ColumnSpec maps a scalar member onto a column. Column defaults to Member.
type ColumnSpec struct {
	Member   string `yaml:"member"`
	Column   string `yaml:"column,omitempty"`
	Type     string `yaml:"type"`
	Key      bool   `yaml:"key,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
}

// NavigationSpec maps a member leading to related entities.
//
// For a single navigation, ForeignKey names members of this entity that hold
// the target's identity; TargetKey instead names members of the target that
// hold this entity's identity. A collection (Many) always uses TargetKey.
type NavigationSpec struct {
	Member     string   `yaml:"member"`
	Target     string   `yaml:"target"`
	Many       bool     `yaml:"many,omitempty"`
	ForeignKey []string `yaml:"foreign_key,omitempty"`
	TargetKey  []string `yaml:"target_key,omitempty"`
}

// Entity returns the EntitySpec of the named entity type.
func (s *Schema) Entity(name string) (*EntitySpec, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// MemberType returns the static type of a member of owner. It makes a
// Schema usable as querymodel.MemberTypes.
func (s *Schema) MemberType(owner ir.Type, member string) (ir.Type, bool) {
	if owner.Kind != ir.KindEntity {
		return ir.Type{}, false
	}
	e, ok := s.byName[owner.Name]
	if !ok {
		return ir.Type{}, false
	}
	if c, ok := e.column(member); ok {
		return c.irType(), true
	}
	if n, ok := e.navigation(member); ok {
		if n.Many {
			return ir.SequenceOf(ir.Entity(n.Target)), true
		}
		return ir.Entity(n.Target), true
	}
	return ir.Type{}, false
}

// AllColumns returns the columns of e, inherited ones first.
func (e *EntitySpec) AllColumns() []ColumnSpec { return e.columns }

// AllNavigations returns the navigations of e, inherited ones first.
func (e *EntitySpec) AllNavigations() []NavigationSpec { return e.navs }

// Keys returns the identity columns of e.
func (e *EntitySpec) Keys() []ColumnSpec {
	var out []ColumnSpec
	for _, c := range e.columns {
		if c.Key {
			out = append(out, c)
		}
	}
	return out
}

func (e *EntitySpec) column(member string) (ColumnSpec, bool) {
	for _, c := range e.columns {
		if c.Member == member {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

func (e *EntitySpec) navigation(member string) (NavigationSpec, bool) {
	for _, n := range e.navs {
		if n.Member == member {
			return n, true
		}
	}
	return NavigationSpec{}, false
}

// root returns the top of e's inheritance chain.
func (e *EntitySpec) root() *EntitySpec {
	for e.base != nil {
		e = e.base
	}
	return e
}

// isA reports whether e is name or derives from it.
func (e *EntitySpec) isA(name string) bool {
	for cur := e; cur != nil; cur = cur.base {
		if cur.Name == name {
			return true
		}
	}
	return false
}

// discriminatorValues returns the discriminator values of e and every type
// derived from it.
func (e *EntitySpec) discriminatorValues() []string {
	var out []string
	if e.DiscriminatorValue != "" {
		out = append(out, e.DiscriminatorValue)
	}
	for _, d := range e.derived {
		out = append(out, d.discriminatorValues()...)
	}
	return out
}

func (c ColumnSpec) irType() ir.Type {
	t := ir.ParseType(c.Type)
	if c.Nullable {
		t = t.AsNullable()
	}
	return t
}

// finalize resolves inheritance, applies naming conventions and validates
// references. It must run once before the schema is used.
func (s *Schema) finalize() error {
	s.byName = make(map[string]*EntitySpec, len(s.Entities))
	for _, e := range s.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity without a name")
		}
		if _, dup := s.byName[e.Name]; dup {
			return fmt.Errorf("entity %s: defined twice", e.Name)
		}
		s.byName[e.Name] = e
	}

	for _, e := range s.Entities {
		if e.Base == "" {
			continue
		}
		base, ok := s.byName[e.Base]
		if !ok {
			return fmt.Errorf("entity %s: unknown base %s", e.Name, e.Base)
		}
		e.base = base
		base.derived = append(base.derived, e)
	}

	for _, e := range s.Entities {
		if err := s.inherit(e, map[string]bool{}); err != nil {
			return err
		}
	}

	for _, e := range s.Entities {
		if err := s.check(e); err != nil {
			return fmt.Errorf("entity %s: %w", e.Name, err)
		}
	}
	return nil
}

// inherit fills the resolved columns, navigations and table of e.
func (s *Schema) inherit(e *EntitySpec, visiting map[string]bool) error {
	if e.columns != nil {
		return nil
	}
	if visiting[e.Name] {
		return fmt.Errorf("entity %s: inheritance cycle", e.Name)
	}
	visiting[e.Name] = true

	var columns []ColumnSpec
	var navs []NavigationSpec
	if e.base != nil {
		if err := s.inherit(e.base, visiting); err != nil {
			return err
		}
		columns = slices.Clone(e.base.columns)
		navs = slices.Clone(e.base.navs)
		// Derived types share the table of their root.
		e.Table, e.Schema = e.base.Table, e.base.Schema
	} else if e.Table == "" {
		e.Table = inflect.Pluralize(e.Name)
	}
	for _, c := range e.Columns {
		if c.Column == "" {
			c.Column = c.Member
		}
		columns = append(columns, c)
	}
	e.columns = columns
	e.navs = append(navs, e.Navigations...)
	return nil
}

func (s *Schema) check(e *EntitySpec) error {
	if len(e.Keys()) == 0 {
		return fmt.Errorf("no key column")
	}
	seen := map[string]bool{}
	for _, c := range e.columns {
		if seen[c.Member] {
			return fmt.Errorf("member %s: defined twice", c.Member)
		}
		seen[c.Member] = true
		if k, _ := ir.ParseKind(c.Type); k == ir.KindUnknown {
			return fmt.Errorf("member %s: unknown column type %q", c.Member, c.Type)
		}
	}
	if e.base != nil && e.DiscriminatorValue == "" {
		return fmt.Errorf("derived entity needs a discriminator_value")
	}
	if e.DiscriminatorValue != "" {
		disc := e.root().Discriminator
		if disc == "" {
			return fmt.Errorf("%s declares no discriminator", e.root().Name)
		}
		if _, ok := e.column(disc); !ok {
			return fmt.Errorf("discriminator %s is not a column", disc)
		}
	}

	for _, n := range e.navs {
		if seen[n.Member] {
			return fmt.Errorf("member %s: defined twice", n.Member)
		}
		seen[n.Member] = true
		target, ok := s.byName[n.Target]
		if !ok {
			return fmt.Errorf("navigation %s: unknown target %s", n.Member, n.Target)
		}
		switch {
		case n.Many && len(n.TargetKey) == 0:
			return fmt.Errorf("navigation %s: a collection needs target_key", n.Member)
		case len(n.ForeignKey) == 0 && len(n.TargetKey) == 0:
			return fmt.Errorf("navigation %s: needs foreign_key or target_key", n.Member)
		case len(n.ForeignKey) > 0 && len(n.TargetKey) > 0:
			return fmt.Errorf("navigation %s: foreign_key and target_key are exclusive", n.Member)
		}
		if err := checkKeys(n.Member, e, n.ForeignKey, target); err != nil {
			return err
		}
		if err := checkKeys(n.Member, target, n.TargetKey, e); err != nil {
			return err
		}
	}
	return nil
}

// checkKeys verifies that members of holder reference the identity of
// referenced, column for column.
func checkKeys(nav string, holder *EntitySpec, members []string, referenced *EntitySpec) error {
	if len(members) == 0 {
		return nil
	}
	if len(members) != len(referenced.Keys()) {
		return fmt.Errorf("navigation %s: %d key members for an identity of %d columns",
			nav, len(members), len(referenced.Keys()))
	}
	for _, m := range members {
		if _, ok := holder.column(m); !ok {
			return fmt.Errorf("navigation %s: %s has no column %s", nav, holder.Name, m)
		}
	}
	return nil
}
