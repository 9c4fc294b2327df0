package hxfield

import (
	"context"
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield/lib/store"
)

// channel is the update path from a Field back into the store. It is
// implemented by *Host.
type channel interface {
	updateValue(ctx context.Context, key store.Key, value any) (store.State, error)
	updateMeta(ctx context.Context, key store.Key, partial Meta) (store.State, error)
	update(ctx context.Context, key store.Key, value any, partial Meta) (store.State, error)
	fieldRef(key store.Key) string
	route(action string) string
}

// Field is the snapshot of a field instance handed to a UI handler.
//
// Its getters return copies of the store's state, so nothing a handler does
// with them reaches the store. Update and UpdateMeta are the only way to
// change the field; the new state arrives in the next snapshot, never in
// this one.
type Field struct {
	state   store.State
	handle  Handle
	config  Config
	display string
	ch      channel
}

// Key identifies the field instance in the store.
func (f Field) Key() store.Key {
	return f.state.Key
}

// Name returns the field's handle within its blueprint.
func (f Field) Name() string {
	return f.state.Key.Field
}

// Handle returns the fieldtype handle.
func (f Field) Handle() Handle {
	return f.handle
}

// Display returns the field's label.
func (f Field) Display() string {
	if f.display != "" {
		return f.display
	}
	return f.state.Key.Field
}

// Config returns a copy of the field's blueprint configuration.
func (f Field) Config() Config {
	return f.config.Clone()
}

// Value returns a copy of the field's value.
func (f Field) Value() any {
	return store.CloneValue(f.state.Value)
}

// Meta returns a copy of the field's meta data.
func (f Field) Meta() Meta {
	return f.state.Meta.Clone()
}

// Version increases with every change to the field.
func (f Field) Version() uint64 {
	return f.state.Version
}

// PreloadErr reports why the field's preload failed, if it did. Such fields
// start with empty meta.
func (f Field) PreloadErr() error {
	return f.state.PreloadErr
}

// ID returns the DOM id of the element wrapping the rendered field.
func (f Field) ID() string {
	return "hxf-" + f.state.Key.Form + "-" + f.state.Key.Field
}

// Update asks the store to replace the field's value.
func (f Field) Update(ctx context.Context, value any) error {
	if f.ch == nil {
		return ErrDetached
	}
	_, err := f.ch.updateValue(ctx, f.state.Key, value)
	return err
}

// UpdateMeta asks the store to merge partial into the field's meta data.
// Keys absent from partial keep their values.
func (f Field) UpdateMeta(ctx context.Context, partial Meta) error {
	if f.ch == nil {
		return ErrDetached
	}
	_, err := f.ch.updateMeta(ctx, f.state.Key, partial)
	return err
}

// UpdateWithMeta replaces the value and merges partial into the meta data
// in one change, so one undo reverts both.
func (f Field) UpdateWithMeta(ctx context.Context, value any, partial Meta) error {
	if f.ch == nil {
		return ErrDetached
	}
	_, err := f.ch.update(ctx, f.state.Key, value, partial)
	return err
}

// Ref returns the sealed reference the host's endpoints accept for this field.
func (f Field) Ref() string {
	if f.ch == nil {
		return ""
	}
	return f.ch.fieldRef(f.state.Key)
}

// UpdateAttrs returns HTMX attributes that post the control's values to the
// host's update endpoint and swap the re-rendered field in place.
//
//	<input name="value" { field.UpdateAttrs()... } hx-trigger="change">
func (f Field) UpdateAttrs() templ.Attributes {
	return f.wire("update", http.MethodPost, SwapOuter)
}

// QuietUpdateAttrs is UpdateAttrs without the re-render, for inputs that
// update while the user types.
func (f Field) QuietUpdateAttrs() templ.Attributes {
	return f.wire("update", http.MethodPost, SwapNone)
}

// MetaAttrs returns HTMX attributes that post the control's values to the
// host's meta endpoint. Every submitted value except the field reference is
// merged into the meta data as a string.
func (f Field) MetaAttrs() templ.Attributes {
	return f.wire("meta", http.MethodPost, SwapOuter)
}

// UndoAttrs returns HTMX attributes that revert the field's last change.
func (f Field) UndoAttrs() templ.Attributes {
	return f.wire("undo", http.MethodPost, SwapOuter)
}

// RefreshAttrs returns HTMX attributes that re-render the field whenever
// event fires anywhere on the page, e.g. EventMetaUpdated.
func (f Field) RefreshAttrs(event string) templ.Attributes {
	attrs := f.wire("field", http.MethodGet, SwapOuter)
	attrs["hx-trigger"] = event + " from:body"
	return attrs
}

func (f Field) wire(action, method string, swap SwapMode) templ.Attributes {
	if f.ch == nil {
		return templ.Attributes{}
	}
	attrs := WireAttrs(f.ch.route(action), method, f.Ref())
	attrs["hx-target"] = "#" + f.ID()
	attrs["hx-swap"] = string(swap)
	return attrs
}

// IndexField is the input of an IndexHandler: a field's condensed listing
// value. It has no update channel; listings are read-only.
type IndexField struct {
	handle  Handle
	name    string
	config  Config
	value   any
	display any
}

// Handle returns the fieldtype handle.
func (f IndexField) Handle() Handle {
	return f.handle
}

// Name returns the field's handle within its blueprint.
func (f IndexField) Name() string {
	return f.name
}

// Config returns a copy of the field's blueprint configuration.
func (f IndexField) Config() Config {
	return f.config.Clone()
}

// Value returns the pre-processed listing value.
func (f IndexField) Value() any {
	return store.CloneValue(f.display)
}

// Raw returns a copy of the value before index pre-processing.
func (f IndexField) Raw() any {
	return store.CloneValue(f.value)
}
