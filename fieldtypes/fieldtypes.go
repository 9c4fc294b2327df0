// Package fieldtypes provides ready-made fieldtypes: text, toggle,
// toggle_password and relationship.
//
//	reg := hxfield.NewRegistry()
//	fieldtypes.Register(reg, fieldtypes.MapSource{"1": "First post"})
package fieldtypes

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield"
)

// Register adds every built-in fieldtype to reg. src resolves relationship
// items; nil leaves relationships without titles.
func Register(reg *hxfield.Registry, src ItemSource) {
	reg.Add(
		NewText(),
		NewToggle(),
		NewTogglePassword(),
		NewRelationship(src),
	)
}

// asString converts a stored or submitted value to text.
func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []string:
		return strings.Join(s, ",")
	default:
		return fmt.Sprint(s)
	}
}

// html builds a component from escaped fragments written with its helpers.
type html struct {
	sb strings.Builder
}

func (h *html) raw(s string) *html {
	h.sb.WriteString(s)
	return h
}

func (h *html) text(s string) *html {
	h.sb.WriteString(templ.EscapeString(s))
	return h
}

func (h *html) attrs(a templ.Attributes) *html {
	_ = hxfield.WriteAttrs(&h.sb, a)
	return h
}

func (h *html) component() templ.Component {
	out := h.sb.String()
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, out)
		return err
	})
}
