package hxfield

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/a-h/templ"
)

// Events the host triggers on the client through the HX-Trigger header.
// Their detail carries the form id, the field handle and the new version.
const (
	EventUpdated     = "hxfield:updated"
	EventMetaUpdated = "hxfield:meta-updated"
	EventUndone      = "hxfield:undone"
)

// Render writes a templ component to the HTTP response.
//
//	func page(w http.ResponseWriter, r *http.Request) {
//	    hxfield.Render(w, r, form.Render())
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// TriggerName returns the name attribute of the element that triggered the
// request. Change handlers for controls with several inputs use it to tell
// them apart.
func TriggerName(r *http.Request) string {
	return r.Header.Get("HX-Trigger-Name")
}

// BuildTriggerHeader builds an HX-Trigger header value.
//
//	"hxfield:updated"                      -> hxfield:updated
//	"hxfield:updated" + {"version": 2}     -> {"hxfield:updated":{"version":2}}
//
// HTMX fires the event with evt.detail set to data.
func BuildTriggerHeader(event string, data map[string]any) string {
	if event == "" {
		return ""
	}
	if data == nil {
		return event
	}
	out, err := json.Marshal(map[string]any{event: data})
	if err != nil {
		return event
	}
	return string(out)
}

// WriteAttrs writes attrs as HTML attributes, each preceded by a space, in
// key order. true booleans are written bare and false ones omitted.
//
//	io.WriteString(w, `<input name="value"`)
//	hxfield.WriteAttrs(w, field.UpdateAttrs())
//	io.WriteString(w, `>`)
func WriteAttrs(w io.Writer, attrs templ.Attributes) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var s string
		switch v := attrs[k].(type) {
		case bool:
			if !v {
				continue
			}
			s = " " + templ.EscapeString(k)
		case string:
			s = " " + templ.EscapeString(k) + `="` + templ.EscapeString(v) + `"`
		default:
			s = " " + templ.EscapeString(k) + `="` + templ.EscapeString(fmt.Sprint(v)) + `"`
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}
