package fieldtypes

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield"
)

// MetaVisible is the meta key holding whether the password is shown.
const MetaVisible = "visible"

const passwordMask = "••••••••"

// TogglePassword is a password input with a show/hide button. Whether the
// password is shown is meta data, so it survives re-renders without being
// part of the value.
//
// Config: min_length, reveal (start visible).
type TogglePassword struct {
	*hxfield.Fieldtype
}

// NewTogglePassword creates the toggle_password fieldtype.
func NewTogglePassword() *TogglePassword {
	return &TogglePassword{Fieldtype: hxfield.New("toggle_password").WithTitle("Password")}
}

// Preload sets the initial visibility from config.
func (t *TogglePassword) Preload(ctx context.Context, pc hxfield.PreloadContext) (hxfield.Meta, error) {
	return hxfield.Meta{MetaVisible: pc.Config.Bool("reveal", false)}, nil
}

// Process enforces min_length. Empty values are accepted.
func (t *TogglePassword) Process(ctx context.Context, cfg hxfield.Config, raw any) (any, error) {
	s := asString(raw)
	if min := cfg.Int("min_length", 0); s != "" && utf8.RuneCountInString(s) < min {
		return nil, hxfield.Invalid("must be at least %d characters", min)
	}
	return s, nil
}

// PreProcessIndex masks the password.
func (t *TogglePassword) PreProcessIndex(value any) any {
	if asString(value) == "" {
		return ""
	}
	return passwordMask
}

// MetaKeys limits meta posts to the visibility flag.
func (t *TogglePassword) MetaKeys() []string {
	return []string{MetaVisible}
}

// Render draws the input and the visibility button. The button posts the
// flipped visibility to the meta endpoint.
func (t *TogglePassword) Render(ctx context.Context, f hxfield.Field) templ.Component {
	visible := f.Meta().Bool(MetaVisible)
	kind, label := "password", "Show"
	if visible {
		kind, label = "text", "Hide"
	}

	attrs := f.UpdateAttrs()
	attrs["hx-trigger"] = "change"

	h := &html{}
	h.raw(`<span class="hxfield-password">`).
		raw(`<input type="`).raw(kind).raw(`" id="`).text(f.ID()).raw(`-input" name="value" autocomplete="new-password" value="`).
		text(asString(f.Value())).raw(`"`).attrs(attrs).raw(`>`).
		raw(`<button type="button" name="`).raw(MetaVisible).raw(`" value="`).raw(strconv.FormatBool(!visible)).
		raw(`" aria-pressed="`).raw(strconv.FormatBool(visible)).raw(`"`).attrs(f.MetaAttrs()).raw(`>`).
		raw(label).raw(`</button></span>`)
	return h.component()
}

// RenderIndex shows the masked value.
func (t *TogglePassword) RenderIndex(ctx context.Context, f hxfield.IndexField) templ.Component {
	masked := asString(f.Value())
	if masked == "" {
		return (&html{}).raw(`<span class="hxfield-password-index empty">Not set</span>`).component()
	}
	return (&html{}).raw(`<span class="hxfield-password-index">`).text(strings.TrimSpace(masked)).raw(`</span>`).component()
}
