package hxfield

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/rs/zerolog"

	"github.com/pthm/hxfield/lib/blueprint"
)

var testKey = []byte("hxfield-test-key-0123456789abcdef")

// stubDef is a definition whose optional behaviour is set per test.
type stubDef struct {
	*Fieldtype
	preload func(ctx context.Context, pc PreloadContext) (Meta, error)
}

func newStubDef(handle string) *stubDef {
	return &stubDef{Fieldtype: New(handle)}
}

func (d *stubDef) Preload(ctx context.Context, pc PreloadContext) (Meta, error) {
	if d.preload == nil {
		return Meta{}, nil
	}
	return d.preload(ctx, pc)
}

// stubUI renders the snapshot it receives and remembers it.
type stubUI struct {
	seen []Field
}

func (u *stubUI) Render(ctx context.Context, f Field) templ.Component {
	u.seen = append(u.seen, f)
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<span class="stub">value=%v meta=%v</span>`, f.Value(), map[string]any(f.Meta()))
		return err
	})
}

// strictDef rejects the value "bad" and upper-cases everything else.
type strictDef struct {
	*Fieldtype
}

func (d *strictDef) Process(ctx context.Context, cfg Config, raw any) (any, error) {
	s, _ := raw.(string)
	if s == "bad" {
		return nil, Invalid("must not be bad")
	}
	return strings.ToUpper(s), nil
}

func (d *strictDef) Render(ctx context.Context, f Field) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<input name="value" value="%v">`, f.Value())
		return err
	})
}

func register(t *testing.T, reg *Registry, def Definition, ui Handler) {
	t.Helper()
	h := def.FieldtypeHandle()
	if err := reg.Register(string(h), func() Definition { return def }); err != nil {
		t.Fatalf("Register(%q) error = %v", h, err)
	}
	if ui != nil {
		if err := reg.RegisterUI(h.ComponentName(), ui); err != nil {
			t.Fatalf("RegisterUI(%q) error = %v", h.ComponentName(), err)
		}
	}
}

func newBufferLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w)
}

func testBlueprint(fields ...blueprint.Field) *blueprint.Blueprint {
	return &blueprint.Blueprint{Handle: "test", Title: "Test", Fields: fields}
}

func openForm(t *testing.T, h *Host, bp *blueprint.Blueprint, values map[string]any) *Form {
	t.Helper()
	form, err := h.Open(context.Background(), bp, values)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return form
}

func mustField(t *testing.T, form *Form, name string) Field {
	t.Helper()
	f, err := form.Field(name)
	if err != nil {
		t.Fatalf("Field(%q) error = %v", name, err)
	}
	return f
}
