package hxfield

import (
	"context"
	"net/url"

	"github.com/a-h/templ"
)

// Definition is the server-side half of a fieldtype. The only required
// method names its handle; everything else is opt-in through the capability
// interfaces below.
//
// Most fieldtypes embed *Fieldtype, which provides FieldtypeHandle:
//
//	type TogglePassword struct {
//	    *hxfield.Fieldtype
//	}
//
//	func NewTogglePassword() *TogglePassword {
//	    return &TogglePassword{Fieldtype: hxfield.New("toggle_password")}
//	}
type Definition interface {
	FieldtypeHandle() Handle
}

// DefinitionFactory creates the definition for a registered handle.
type DefinitionFactory func() Definition

// PreloadContext is what a Preloader knows about the field it preloads.
type PreloadContext struct {
	Form   string
	Field  string
	Config Config
	Value  any
}

// Preloader is implemented by definitions that supply meta data before a
// field is first rendered, e.g. summaries of related items.
//
// Preload must only read. The host runs preloads of different fields
// concurrently and waits for all of them before the form is usable.
type Preloader interface {
	Preload(ctx context.Context, pc PreloadContext) (Meta, error)
}

// IndexPreprocessor is implemented by definitions that condense a value for
// listings (masking, truncation). It must be pure. Definitions without it get
// DefaultPreProcessIndex.
type IndexPreprocessor interface {
	PreProcessIndex(value any) any
}

// Processor is implemented by definitions that turn a submitted raw value
// into its canonical stored form. Process must be deterministic and report
// bad input with a *ValidationError (see Invalid).
type Processor interface {
	Process(ctx context.Context, cfg Config, raw any) (any, error)
}

// PreProcessor is implemented by definitions that convert a stored value
// into the value handed to the UI handler when a form is opened.
type PreProcessor interface {
	PreProcess(cfg Config, value any) any
}

// Defaulter is implemented by definitions with a default value for fields
// the blueprint gives none.
type Defaulter interface {
	DefaultValue(cfg Config) any
}

// Handler is the UI half of a fieldtype: it renders the editing control for
// a field. The Field it receives is a snapshot; the handler reports changes
// only through Field.Update and Field.UpdateMeta.
//
// Register it under Handle.ComponentName ("<handle>-fieldtype").
type Handler interface {
	Render(ctx context.Context, f Field) templ.Component
}

// ChangeHandler is implemented by handlers that interpret the values their
// control submits. Without it, the host stores the submitted "value", run
// through the definition's Process when there is one.
//
//	func (t *Toggle) Change(ctx context.Context, f hxfield.Field, form url.Values) error {
//	    return f.Update(ctx, form.Get("value") == "on")
//	}
type ChangeHandler interface {
	Change(ctx context.Context, f Field, form url.Values) error
}

// MetaKeyer is implemented by handlers that limit which meta keys their
// control may post to the meta endpoint. A request carrying any other key
// is refused with ErrMetaKeyRejected and changes nothing. Handlers without
// it accept every key.
type MetaKeyer interface {
	MetaKeys() []string
}

// IndexHandler renders a read-only summary of a value for listings.
// It receives an IndexField, which carries no update channel.
//
// Register it under Handle.IndexComponentName ("<handle>-fieldtype-index").
type IndexHandler interface {
	RenderIndex(ctx context.Context, f IndexField) templ.Component
}
