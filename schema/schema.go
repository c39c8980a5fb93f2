package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type FieldType string

const (
	StringField  FieldType = "string"
	NumberField  FieldType = "number"
	BooleanField FieldType = "boolean"
	ObjectField  FieldType = "object"
	ArrayField   FieldType = "array"
	AnyField     FieldType = "any"
)

// Field declares one payload field of an object type.
//
// Rule is an optional boolean expression evaluated with `value` bound to the
// field value and `fields` bound to the whole payload, e.g.
//
//	value startsWith "https://"
type Field struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required,omitempty"`
	Rule     string    `yaml:"rule" json:"rule,omitempty"`

	prog *vm.Program
}

// ObjectType declares a block object, inline object or annotation type.
type ObjectType struct {
	Name   string   `yaml:"name" json:"name"`
	Title  string   `yaml:"title" json:"title,omitempty"`
	Fields []*Field `yaml:"fields" json:"fields,omitempty"`
}

// TextBlockType declares the text block type and what may appear inside it.
type TextBlockType struct {
	Name          string        `yaml:"name" json:"name"`
	Styles        []string      `yaml:"styles" json:"styles,omitempty"`
	Lists         []string      `yaml:"lists" json:"lists,omitempty"`
	Decorators    []string      `yaml:"decorators" json:"decorators,omitempty"`
	Annotations   []*ObjectType `yaml:"annotations" json:"annotations,omitempty"`
	InlineObjects []*ObjectType `yaml:"inlineObjects" json:"inlineObjects,omitempty"`
}

// Schema is the read-only descriptor of which block, inline, annotation and
// decorator types are legal. Call Compile before use; Load and Default
// return compiled schemas.
type Schema struct {
	Name         string        `yaml:"name" json:"name,omitempty"`
	Block        TextBlockType `yaml:"block" json:"block"`
	BlockObjects []*ObjectType `yaml:"blockObjects" json:"blockObjects,omitempty"`

	compiled      bool
	annotations   map[string]*ObjectType
	inlineObjects map[string]*ObjectType
	blockObjects  map[string]*ObjectType
}

// FieldError reports one field of a payload that does not match its type.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Reason
}

// Compile checks the descriptor and compiles field rules.
func (s *Schema) Compile() error {
	if s.Block.Name == "" {
		s.Block.Name = "block"
	}
	s.annotations = map[string]*ObjectType{}
	s.inlineObjects = map[string]*ObjectType{}
	s.blockObjects = map[string]*ObjectType{}
	if err := indexTypes(s.annotations, "annotation", s.Block.Annotations); err != nil {
		return err
	}
	if err := indexTypes(s.inlineObjects, "inline object", s.Block.InlineObjects); err != nil {
		return err
	}
	if err := indexTypes(s.blockObjects, "block object", s.BlockObjects); err != nil {
		return err
	}
	if _, ok := s.blockObjects[s.Block.Name]; ok {
		return fmt.Errorf("block object %q shadows the text block type", s.Block.Name)
	}
	if _, ok := s.inlineObjects["span"]; ok {
		return fmt.Errorf("inline object type may not be named span")
	}
	for _, d := range s.Block.Decorators {
		if _, ok := s.annotations[d]; ok {
			return fmt.Errorf("decorator %q collides with annotation type", d)
		}
	}
	s.compiled = true
	return nil
}

func indexTypes(m map[string]*ObjectType, kind string, ots []*ObjectType) error {
	for _, ot := range ots {
		if ot == nil || ot.Name == "" {
			return fmt.Errorf("%s type without a name", kind)
		}
		if _, ok := m[ot.Name]; ok {
			return fmt.Errorf("duplicate %s type %q", kind, ot.Name)
		}
		m[ot.Name] = ot
		seen := map[string]bool{}
		for _, f := range ot.Fields {
			if f == nil || f.Name == "" {
				return fmt.Errorf("%s %q: field without a name", kind, ot.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("%s %q: duplicate field %q", kind, ot.Name, f.Name)
			}
			seen[f.Name] = true
			if f.Type == "" {
				f.Type = AnyField
			}
			switch f.Type {
			case StringField, NumberField, BooleanField, ObjectField, ArrayField, AnyField:
			default:
				return fmt.Errorf("%s %q: field %q has unknown type %q", kind, ot.Name, f.Name, f.Type)
			}
			if f.Rule == "" {
				continue
			}
			prog, err := expr.Compile(f.Rule, expr.Env(ruleEnv{}), expr.AsBool())
			if err != nil {
				return fmt.Errorf("%s %q: field %q: rule: %w", kind, ot.Name, f.Name, err)
			}
			f.prog = prog
		}
	}
	return nil
}

type ruleEnv struct {
	Value  any            `expr:"value"`
	Fields map[string]any `expr:"fields"`
}

// Compiled reports whether Compile succeeded on s.
func (s *Schema) Compiled() bool {
	return s.compiled
}

func (s *Schema) mustCompiled() {
	if !s.compiled {
		if err := s.Compile(); err != nil {
			panic(fmt.Sprintf("schema: %v", err))
		}
	}
}

// TextType returns the _type of text blocks.
func (s *Schema) TextType() string {
	s.mustCompiled()
	return s.Block.Name
}

// DefaultStyle returns the first declared style, or "".
func (s *Schema) DefaultStyle() string {
	if len(s.Block.Styles) == 0 {
		return ""
	}
	return s.Block.Styles[0]
}

// HasStyle reports whether style may be set on a text block. The empty
// style is always allowed.
func (s *Schema) HasStyle(style string) bool {
	return style == "" || slices.Contains(s.Block.Styles, style)
}

// HasList reports whether listItem may be set on a text block. The empty
// list item is always allowed.
func (s *Schema) HasList(listItem string) bool {
	return listItem == "" || slices.Contains(s.Block.Lists, listItem)
}

func (s *Schema) IsDecorator(name string) bool {
	return slices.Contains(s.Block.Decorators, name)
}

func (s *Schema) Annotation(name string) (*ObjectType, bool) {
	s.mustCompiled()
	ot, ok := s.annotations[name]
	return ot, ok
}

func (s *Schema) InlineObject(name string) (*ObjectType, bool) {
	s.mustCompiled()
	ot, ok := s.inlineObjects[name]
	return ot, ok
}

func (s *Schema) BlockObject(name string) (*ObjectType, bool) {
	s.mustCompiled()
	ot, ok := s.blockObjects[name]
	return ot, ok
}

// CheckFields checks a payload against ot. Fields whose names start with
// an underscore are system fields and are not checked. Errors are sorted by
// field name.
func (s *Schema) CheckFields(ot *ObjectType, fields map[string]any) []FieldError {
	s.mustCompiled()
	var res []FieldError
	declared := map[string]bool{}
	for _, f := range ot.Fields {
		declared[f.Name] = true
		v, ok := fields[f.Name]
		if !ok || v == nil {
			if f.Required {
				res = append(res, FieldError{Field: f.Name, Reason: "required field is missing"})
			}
			continue
		}
		if !typeMatches(f.Type, v) {
			res = append(res, FieldError{Field: f.Name, Reason: fmt.Sprintf("expected %s, got %s", f.Type, describe(v))})
			continue
		}
		if f.prog == nil {
			continue
		}
		out, err := expr.Run(f.prog, ruleEnv{Value: v, Fields: fields})
		if err != nil {
			res = append(res, FieldError{Field: f.Name, Reason: fmt.Sprintf("rule %q: %v", f.Rule, err)})
			continue
		}
		if ok, _ := out.(bool); !ok {
			res = append(res, FieldError{Field: f.Name, Reason: fmt.Sprintf("rule %q not satisfied", f.Rule)})
		}
	}
	for name := range fields {
		if declared[name] || strings.HasPrefix(name, "_") {
			continue
		}
		res = append(res, FieldError{Field: name, Reason: "undeclared field"})
	}
	slices.SortFunc(res, func(a, b FieldError) int {
		return strings.Compare(a.Field, b.Field)
	})
	return res
}

func typeMatches(t FieldType, v any) bool {
	switch t {
	case AnyField:
		return true
	case StringField:
		_, ok := v.(string)
		return ok
	case BooleanField:
		_, ok := v.(bool)
		return ok
	case NumberField:
		switch v.(type) {
		case float64, float32, int, int64, int32, json.Number:
			return true
		}
		return false
	case ObjectField:
		_, ok := v.(map[string]any)
		return ok
	case ArrayField:
		_, ok := v.([]any)
		return ok
	}
	return false
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
