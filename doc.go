// Package hxfield is a fieldtype system for server-rendered forms built with
// Go, Templ templates and HTMX.
//
// A fieldtype is identified by a lower_snake_case handle and has two halves
// that are registered separately and joined by a naming convention:
//   - the definition (server side): a Definition, optionally a Preloader
//     supplying meta data before the field renders and an IndexPreprocessor
//     condensing values for listings
//   - the UI handler: a Handler registered as "<handle>-fieldtype", and
//     optionally an IndexHandler registered as "<handle>-fieldtype-index"
//
// A name that does not match the handle exactly binds to some other handle,
// so a definition "toggle_password" with a handler registered as
// "togglepassword-fieldtype" fails every lookup with ErrMissingUIHandler.
//
// # Registration
//
//	reg := hxfield.NewRegistry()
//	reg.Register("toggle_password", func() hxfield.Definition { return NewTogglePassword() })
//	reg.RegisterUI("toggle_password-fieldtype", togglePasswordUI)
//
// Fieldtypes that implement both halves can be added in one call:
//
//	reg.Add(NewToggle(), NewText())
//
// Registering a handle again replaces the previous definition.
//
// # Values and meta
//
// A Host opens forms from blueprints and keeps every field's value and meta
// data in a store. UI handlers receive a Field snapshot: its Value and Meta
// are copies, and the only way to change the field is Field.Update or
// Field.UpdateMeta. UpdateMeta merges: keys it does not mention keep their
// values.
//
//	host := hxfield.NewHost(reg, key)
//	form, err := host.Open(ctx, bp, storedValues)
//	http.Handle("/_f/", host.Handler())
//
// # Update channel
//
// Rendered controls post to the host's endpoints using the attributes from
// Field.UpdateAttrs and Field.MetaAttrs. The field is identified by a sealed
// reference: msgpack, then HMAC-signed (default) or AES-GCM encrypted
// (WithSensitiveRefs). Mutating requests require the HX-Request: true header
// HTMX sends, so cross-origin forms are rejected without extra tokens.
//
// After each applied change the host re-renders the field and triggers
// EventUpdated or EventMetaUpdated with the field's new version. Values a
// fieldtype rejects with a ValidationError come back with status 422 and the
// message as a toast.
package hxfield
