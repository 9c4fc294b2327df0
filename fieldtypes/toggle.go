package fieldtypes

import (
	"context"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield"
)

// Toggle is a boolean switch.
type Toggle struct {
	*hxfield.Fieldtype
}

// NewToggle creates the toggle fieldtype.
func NewToggle() *Toggle {
	return &Toggle{Fieldtype: hxfield.New("toggle")}
}

// Process accepts booleans and the usual spellings of them.
func (t *Toggle) Process(ctx context.Context, cfg hxfield.Config, raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	switch strings.ToLower(strings.TrimSpace(asString(raw))) {
	case "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no", "":
		return false, nil
	}
	return nil, hxfield.Invalid("must be on or off")
}

// DefaultValue reads config "default".
func (t *Toggle) DefaultValue(cfg hxfield.Config) any {
	return cfg.Bool("default", false)
}

// PreProcessIndex condenses the value to Yes or No.
func (t *Toggle) PreProcessIndex(value any) any {
	if on, _ := value.(bool); on {
		return "Yes"
	}
	return "No"
}

// Render draws a switch button that posts the opposite state.
func (t *Toggle) Render(ctx context.Context, f hxfield.Field) templ.Component {
	on, _ := f.Value().(bool)
	h := &html{}
	h.raw(`<button type="button" role="switch" class="hxfield-toggle" id="`).text(f.ID()).
		raw(`-input" name="value" value="`).raw(strconv.FormatBool(!on)).
		raw(`" aria-checked="`).raw(strconv.FormatBool(on)).raw(`"`).
		attrs(f.UpdateAttrs()).raw(`>`)
	if on {
		h.raw(`On`)
	} else {
		h.raw(`Off`)
	}
	return h.raw(`</button>`).component()
}

// RenderIndex shows the Yes/No label as a badge.
func (t *Toggle) RenderIndex(ctx context.Context, f hxfield.IndexField) templ.Component {
	label := asString(f.Value())
	return (&html{}).raw(`<span class="badge badge-`).text(strings.ToLower(label)).raw(`">`).
		text(label).raw(`</span>`).component()
}
