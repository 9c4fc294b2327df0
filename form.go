package hxfield

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield/lib/blueprint"
	"github.com/pthm/hxfield/lib/store"
)

type formField struct {
	name   string
	handle Handle
	def    Definition
	config Config
	schema blueprint.Field

	// set while opening; the store owns the field afterwards
	value      any
	meta       Meta
	preloadErr error
}

// Form is an open instance of a blueprint. Its fields live in the host's
// store until the form is closed.
type Form struct {
	ID        string
	Blueprint *blueprint.Blueprint

	host   *Host
	fields []*formField
}

func (f *Form) field(name string) *formField {
	for _, ff := range f.fields {
		if ff.name == name {
			return ff
		}
	}
	return nil
}

// Field returns the current snapshot of the named field.
func (f *Form) Field(name string) (Field, error) {
	ff := f.field(name)
	if ff == nil {
		return Field{}, fmt.Errorf("%w: %s/%s", ErrUnknownField, f.ID, name)
	}
	st, ok := f.host.store.Get(store.Key{Form: f.ID, Field: name})
	if !ok {
		return Field{}, fmt.Errorf("%w: %s/%s", ErrUnknownField, f.ID, name)
	}
	return f.host.snapshot(ff, st), nil
}

// Fields returns snapshots of all fields in blueprint order. Fields no
// longer in the store are skipped.
func (f *Form) Fields() []Field {
	out := make([]Field, 0, len(f.fields))
	for _, ff := range f.fields {
		if st, ok := f.host.store.Get(store.Key{Form: f.ID, Field: ff.name}); ok {
			out = append(out, f.host.snapshot(ff, st))
		}
	}
	return out
}

// Values returns copies of the current field values by field handle.
func (f *Form) Values() map[string]any {
	out := make(map[string]any, len(f.fields))
	for _, fld := range f.Fields() {
		out[fld.Name()] = fld.Value()
	}
	return out
}

// PreloadErrors returns the preload failure of each field that had one.
func (f *Form) PreloadErrors() map[string]error {
	out := make(map[string]error)
	for _, ff := range f.fields {
		if ff.preloadErr != nil {
			out[ff.name] = ff.preloadErr
		}
	}
	return out
}

// Submit runs every field's current value through its fieldtype's Process
// and returns the canonical values. Rejected values are reported together
// as ValidationErrors; other errors abort the submission.
func (f *Form) Submit(ctx context.Context) (map[string]any, error) {
	out := make(map[string]any, len(f.fields))
	var invalid ValidationErrors

	for _, fld := range f.Fields() {
		ff := f.field(fld.Name())
		p, ok := ff.def.(Processor)
		if !ok {
			out[fld.Name()] = fld.Value()
			continue
		}
		v, err := p.Process(ctx, ff.config.Clone(), fld.Value())
		if err != nil {
			if ve, ok := asValidationError(err, ff.name); ok {
				f.host.metrics.RecordValidationError(string(ff.handle))
				invalid = append(invalid, ve)
				continue
			}
			return nil, fmt.Errorf("hxfield: submit field %q: %w", ff.name, err)
		}
		out[fld.Name()] = v
	}

	if len(invalid) > 0 {
		return nil, invalid
	}
	return out, nil
}

// Close discards the form's fields.
func (f *Form) Close() bool {
	return f.host.Close(f.ID)
}

// Render renders every field of the form.
//
//	@form.Render()
func (f *Form) Render() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="hxfield-form" id="hxform-`+templ.EscapeString(f.ID)+
			`" data-blueprint="`+templ.EscapeString(f.Blueprint.Handle)+`">`); err != nil {
			return err
		}
		for _, fld := range f.Fields() {
			if err := f.host.renderField(f.field(fld.Name()), fld).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// renderField wraps the UI handler's output in the element UpdateAttrs
// targets. The handler is looked up on every render so re-registrations
// take effect for open forms.
func (h *Host) renderField(ff *formField, fld Field) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		open := `<div id="` + templ.EscapeString(fld.ID()) + `" class="hxfield" data-fieldtype="` +
			templ.EscapeString(string(ff.handle)) + `" data-version="` + strconv.FormatUint(fld.Version(), 10) + `">` +
			`<label for="` + templ.EscapeString(fld.ID()) + `-input">` + templ.EscapeString(fld.Display()) + `</label>`
		if _, err := io.WriteString(w, open); err != nil {
			return err
		}
		if ff.schema.Instructions != "" {
			if _, err := io.WriteString(w, `<p class="hxfield-instructions">`+templ.EscapeString(ff.schema.Instructions)+`</p>`); err != nil {
				return err
			}
		}

		e, err := h.reg.Lookup(string(ff.handle))
		var body templ.Component
		if err != nil {
			h.logger.Error().Err(err).Str("field", fld.Key().String()).Msg("cannot render field")
			body = ErrorComponent(err)
		} else {
			body = e.UI.Render(ctx, fld)
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}
