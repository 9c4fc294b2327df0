package hxfield

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
)

// RefParam is the request parameter carrying a sealed field reference.
const RefParam = "f"

// WireAttrs builds the HTMX attributes that call one of the host's endpoints
// for a field.
//
// For GET, returns hx-get with the reference in the query string. For
// POST/PUT/PATCH/DELETE, returns the matching hx-* attribute with the
// reference in hx-vals, so it is submitted next to the control's own values.
//
// Field.UpdateAttrs and friends add hx-target and hx-swap; anything else
// (hx-trigger, hx-include) is up to the template.
func WireAttrs(path, method, ref string) templ.Attributes {
	attrs := templ.Attributes{}

	if method == http.MethodGet || method == "" {
		u := path
		if ref != "" {
			u = path + "?" + url.Values{RefParam: {ref}}.Encode()
		}
		attrs["hx-get"] = u
		return attrs
	}

	switch method {
	case http.MethodPost:
		attrs["hx-post"] = path
	case http.MethodPut:
		attrs["hx-put"] = path
	case http.MethodPatch:
		attrs["hx-patch"] = path
	case http.MethodDelete:
		attrs["hx-delete"] = path
	}
	if ref != "" {
		data, _ := json.Marshal(map[string]string{RefParam: ref})
		attrs["hx-vals"] = string(data)
	}
	return attrs
}
