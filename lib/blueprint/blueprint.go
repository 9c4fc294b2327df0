// Package blueprint loads form blueprints: the ordered list of fields a form
// is made of, each naming the fieldtype handle that edits it.
//
//	handle: account
//	title: Account
//	fields:
//	  - handle: password
//	    type: toggle_password
//	    display: Password
//	    config:
//	      min_length: 8
package blueprint

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Blueprint describes a form.
type Blueprint struct {
	Handle string  `yaml:"handle"`
	Title  string  `yaml:"title,omitempty"`
	Fields []Field `yaml:"fields"`
}

// Field is one field of a blueprint.
type Field struct {
	// Handle names the field within the form.
	Handle string `yaml:"handle"`
	// Type is the fieldtype handle that defines and renders the field.
	Type         string         `yaml:"type"`
	Display      string         `yaml:"display,omitempty"`
	Instructions string         `yaml:"instructions,omitempty"`
	Config       map[string]any `yaml:"config,omitempty"`
	Default      any            `yaml:"default,omitempty"`
}

// Label returns the display name, falling back to the handle.
func (f Field) Label() string {
	if f.Display != "" {
		return f.Display
	}
	return f.Handle
}

// Parse decodes and validates a YAML blueprint.
func Parse(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

// Load reads and parses the blueprint at path.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	bp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bp, nil
}

// Validate checks the structural rules every blueprint must meet. Handle
// syntax is checked by the host when the blueprint is opened.
func (b *Blueprint) Validate() error {
	var errs []error
	if b.Handle == "" {
		errs = append(errs, errors.New("blueprint: missing handle"))
	}
	if len(b.Fields) == 0 {
		errs = append(errs, errors.New("blueprint: no fields"))
	}

	seen := make(map[string]bool, len(b.Fields))
	for i, f := range b.Fields {
		switch {
		case f.Handle == "":
			errs = append(errs, fmt.Errorf("blueprint: field %d: missing handle", i))
		case seen[f.Handle]:
			errs = append(errs, fmt.Errorf("blueprint: field %q: duplicate handle", f.Handle))
		}
		seen[f.Handle] = true
		if f.Type == "" {
			errs = append(errs, fmt.Errorf("blueprint: field %q: missing type", f.Handle))
		}
	}
	return errors.Join(errs...)
}

// Field returns the field with the given handle.
func (b *Blueprint) Field(handle string) (Field, bool) {
	for _, f := range b.Fields {
		if f.Handle == handle {
			return f, true
		}
	}
	return Field{}, false
}

// Types returns the distinct fieldtype handles used, in field order.
func (b *Blueprint) Types() []string {
	seen := make(map[string]bool)
	var types []string
	for _, f := range b.Fields {
		if !seen[f.Type] {
			seen[f.Type] = true
			types = append(types, f.Type)
		}
	}
	return types
}
