package fieldtypes

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield"
)

// Text is a single-line text input.
//
// Config: placeholder, max_length, required.
type Text struct {
	*hxfield.Fieldtype
}

// NewText creates the text fieldtype.
func NewText() *Text {
	return &Text{Fieldtype: hxfield.New("text")}
}

// Process trims the value and enforces max_length and required.
func (t *Text) Process(ctx context.Context, cfg hxfield.Config, raw any) (any, error) {
	s := strings.TrimSpace(asString(raw))
	if s == "" && cfg.Bool("required", false) {
		return nil, hxfield.Invalid("is required")
	}
	if max := cfg.Int("max_length", 0); max > 0 && utf8.RuneCountInString(s) > max {
		return nil, hxfield.Invalid("must be at most %d characters", max)
	}
	return s, nil
}

// DefaultValue is the empty string.
func (t *Text) DefaultValue(cfg hxfield.Config) any {
	return ""
}

// Render draws the input. Changes are stored when the input loses focus.
func (t *Text) Render(ctx context.Context, f hxfield.Field) templ.Component {
	cfg := f.Config()
	h := &html{}
	h.raw(`<input type="text" class="hxfield-text" id="`).text(f.ID()).raw(`-input" name="value" value="`).
		text(asString(f.Value())).raw(`"`)
	if p := cfg.String("placeholder", ""); p != "" {
		h.raw(` placeholder="`).text(p).raw(`"`)
	}
	attrs := f.UpdateAttrs()
	attrs["hx-trigger"] = "change"
	return h.attrs(attrs).raw(`>`).component()
}
