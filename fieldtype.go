package hxfield

import (
	"strings"
	"unicode"
)

// Fieldtype is the base type embedded by fieldtype definitions.
//
// It only carries identity (handle and title). Value access and the update
// channel are not inherited: handlers receive them per render through Field.
//
//	type Toggle struct {
//	    *hxfield.Fieldtype
//	}
//
//	func NewToggle() *Toggle {
//	    return &Toggle{Fieldtype: hxfield.New("toggle").WithTitle("Toggle")}
//	}
type Fieldtype struct {
	handle Handle
	title  string
}

// New creates a fieldtype base with the given handle.
// Panics if handle is not lower_snake_case, so mistakes surface when the
// fieldtype is constructed, not when content first references it.
func New(handle string) *Fieldtype {
	h := MustHandle(handle)
	return &Fieldtype{handle: h, title: titleFromHandle(h)}
}

// WithTitle sets the human readable name.
func (f *Fieldtype) WithTitle(title string) *Fieldtype {
	f.title = title
	return f
}

// FieldtypeHandle returns the fieldtype's handle.
func (f *Fieldtype) FieldtypeHandle() Handle {
	return f.handle
}

// Title returns the human readable name, derived from the handle unless set.
func (f *Fieldtype) Title() string {
	return f.title
}

// ComponentName returns the name of the fieldtype's primary UI handler.
func (f *Fieldtype) ComponentName() string {
	return f.handle.ComponentName()
}

// IndexComponentName returns the name of the fieldtype's listing handler.
func (f *Fieldtype) IndexComponentName() string {
	return f.handle.IndexComponentName()
}

// ValidationError reports that field received a value this fieldtype
// rejects.
func (f *Fieldtype) ValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// titleFromHandle turns "toggle_password" into "Toggle Password".
func titleFromHandle(h Handle) string {
	words := strings.Split(string(h), "_")
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
