package mapping

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// LoadError is a mapping file error, with the CUE position when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a mapping from path: a .cue file or a directory of them goes
// through LoadCUE, anything else through LoadYAML.
func Load(path string) (*Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	if info.IsDir() || filepath.Ext(path) == ".cue" {
		return LoadCUE(path)
	}
	return LoadYAML(path)
}

// LoadYAML reads a mapping from a YAML file.
func LoadYAML(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping %s: %w", path, err)
	}
	defer f.Close()

	s, err := DecodeYAML(f)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return s, nil
}

// DecodeYAML reads a mapping from YAML. Unknown keys are errors.
//
// Example:
//
//	entities:
//	  - name: Kitchen
//	    columns:
//	      - {member: ID, type: int, key: true}
//	      - {member: Name, type: string}
//	    navigations:
//	      - {member: Restaurant, target: Restaurant, foreign_key: [RestaurantID]}
func DecodeYAML(r io.Reader) (*Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := s.finalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadCUE reads a mapping from a .cue file or from the CUE package in a
// directory.
func LoadCUE(path string) (*Schema, error) {
	ctx := cuecontext.New()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}

	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, &LoadError{Field: "cue", Message: fmt.Sprintf("no CUE instances in %s", path)}
		}
		if err := instances[0].Err; err != nil {
			return nil, formatCUEError(err)
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mapping %s: %w", path, err)
		}
		value = ctx.CompileBytes(src, cue.Filename(path))
	}
	return CompileCUE(value)
}

// CompileCUE reads a mapping from a CUE value of the form
//
//	entities: Cook: {
//		table: "CookTable"
//		columns: ID: {type: "int", key: true}
//		navigations: Kitchen: {target: "Kitchen", foreign_key: ["KitchenID"]}
//	}
//
// Entity, column and navigation names are the struct labels; declaration
// order is kept.
func CompileCUE(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	entities := v.LookupPath(cue.ParsePath("entities"))
	if !entities.Exists() {
		return nil, &LoadError{Field: "entities", Message: "entities is required", Pos: v.Pos()}
	}
	iter, err := entities.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{}
	for iter.Next() {
		e, err := compileEntity(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		s.Entities = append(s.Entities, e)
	}
	if err := s.finalize(); err != nil {
		return nil, err
	}
	return s, nil
}

func compileEntity(name string, v cue.Value) (*EntitySpec, error) {
	e := &EntitySpec{Name: name}
	for field, dst := range map[string]*string{
		"schema":              &e.Schema,
		"table":               &e.Table,
		"base":                &e.Base,
		"discriminator":       &e.Discriminator,
		"discriminator_value": &e.DiscriminatorValue,
	} {
		if err := optionalString(v, field, dst); err != nil {
			return nil, err
		}
	}

	columns := v.LookupPath(cue.ParsePath("columns"))
	if columns.Exists() {
		iter, err := columns.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			c := ColumnSpec{Member: iter.Label()}
			cv := iter.Value()
			if err := optionalString(cv, "column", &c.Column); err != nil {
				return nil, err
			}
			if err := optionalString(cv, "type", &c.Type); err != nil {
				return nil, err
			}
			if c.Type == "" {
				return nil, &LoadError{Field: "type", Message: fmt.Sprintf("column %s.%s needs a type", name, c.Member), Pos: cv.Pos()}
			}
			if err := optionalBool(cv, "key", &c.Key); err != nil {
				return nil, err
			}
			if err := optionalBool(cv, "nullable", &c.Nullable); err != nil {
				return nil, err
			}
			e.Columns = append(e.Columns, c)
		}
	}

	navs := v.LookupPath(cue.ParsePath("navigations"))
	if navs.Exists() {
		iter, err := navs.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			n := NavigationSpec{Member: iter.Label()}
			nv := iter.Value()
			if err := optionalString(nv, "target", &n.Target); err != nil {
				return nil, err
			}
			if err := optionalBool(nv, "many", &n.Many); err != nil {
				return nil, err
			}
			if err := optionalStrings(nv, "foreign_key", &n.ForeignKey); err != nil {
				return nil, err
			}
			if err := optionalStrings(nv, "target_key", &n.TargetKey); err != nil {
				return nil, err
			}
			e.Navigations = append(e.Navigations, n)
		}
	}
	return e, nil
}

func optionalString(v cue.Value, field string, dst *string) error {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil
	}
	s, err := f.String()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = s
	return nil
}

func optionalBool(v cue.Value, field string, dst *bool) error {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil
	}
	b, err := f.Bool()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = b
	return nil
}

func optionalStrings(v cue.Value, field string, dst *[]string) error {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return formatCUEError(err)
		}
		*dst = append(*dst, s)
	}
	return nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

// Marshal writes s as YAML in the form DecodeYAML reads.
func Marshal(s *Schema) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
