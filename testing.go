package hxfield

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield/lib/store"
)

// TestResult is the rendered output of a fieldtype under test.
type TestResult struct {
	HTML       string
	StatusCode int
	Headers    http.Header
	// TriggeredEvents maps each HX-Trigger event to its detail (nil when
	// the event was sent without one).
	TriggeredEvents map[string]map[string]any
	Flashes         []Flash
}

// TestField builds a Field snapshot that is not attached to a host, for
// pure rendering tests. Update and UpdateMeta on it return ErrDetached.
//
//	f := hxfield.TestField("toggle", true, nil, nil)
//	res, err := hxfield.TestRender(ctx, toggle, f)
func TestField(handle string, value any, meta Meta, cfg Config) Field {
	h := MustHandle(handle)
	return Field{
		state: store.State{
			Key:     store.Key{Form: "test", Field: string(h)},
			Handle:  string(h),
			Value:   store.CloneValue(value),
			Meta:    meta.Clone(),
			Version: 1,
		},
		handle: h,
		config: cfg.Clone(),
	}
}

// TestRender renders a UI handler for f.
func TestRender(ctx context.Context, h Handler, f Field) (*TestResult, error) {
	return renderResult(ctx, h.Render(ctx, f))
}

// TestRenderIndex runs value through def's index pre-processing and renders
// it with h.
func TestRenderIndex(ctx context.Context, def Definition, h IndexHandler, value any, cfg Config) (*TestResult, error) {
	f := IndexField{
		handle:  def.FieldtypeHandle(),
		name:    string(def.FieldtypeHandle()),
		config:  cfg.Clone(),
		value:   store.CloneValue(value),
		display: preProcessIndex(def, store.CloneValue(value)),
	}
	return renderResult(ctx, h.RenderIndex(ctx, f))
}

func renderResult(ctx context.Context, c templ.Component) (*TestResult, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:       buf.String(),
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
	}, nil
}

// TestChange posts values to the host's update endpoint for f, the way the
// control rendered by f's UI handler would.
//
//	res, err := hxfield.TestChange(host, f, map[string]string{"value": "on"})
//	if !res.HasEvent(hxfield.EventUpdated) { ... }
func TestChange(h *Host, f Field, values map[string]string) (*TestResult, error) {
	return TestRequest(h, http.MethodPost, "update", f, values)
}

// TestRequest calls one of the host's endpoints ("field", "update", "meta",
// "undo") for f and records the response. The request carries
// HX-Request: true.
func TestRequest(h *Host, method, action string, f Field, values map[string]string) (*TestResult, error) {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	form.Set(RefParam, h.fieldRef(f.Key()))

	var req *http.Request
	if method == http.MethodGet {
		req = httptest.NewRequest(method, h.route(action)+"?"+form.Encode(), nil)
	} else {
		req = httptest.NewRequest(method, h.route(action), strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("HX-Request", "true")

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)

	res := &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
	}
	res.TriggeredEvents = parseTriggerHeader(rec.Header().Get("HX-Trigger"))
	res.Flashes = parseFlashesFromHTML(res.HTML)
	return res, nil
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HasEvent checks if an event was triggered.
func (r *TestResult) HasEvent(event string) bool {
	_, ok := r.TriggeredEvents[event]
	return ok
}

// Events returns the triggered event names, sorted.
func (r *TestResult) Events() []string {
	out := make([]string, 0, len(r.TriggeredEvents))
	for e := range r.TriggeredEvents {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// HasFlash checks if a flash message was sent with the given level and message.
func (r *TestResult) HasFlash(level, message string) bool {
	for _, f := range r.Flashes {
		if f.Level == level && f.Message == message {
			return true
		}
	}
	return false
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// parseTriggerHeader reads an HX-Trigger value: either a JSON object of
// event details or a comma-separated list of event names.
func parseTriggerHeader(trigger string) map[string]map[string]any {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return nil
	}

	events := make(map[string]map[string]any)
	if strings.HasPrefix(trigger, "{") {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trigger), &raw); err != nil {
			return nil
		}
		for name, detail := range raw {
			var d map[string]any
			if json.Unmarshal(detail, &d) != nil {
				d = nil
			}
			events[name] = d
		}
		return events
	}

	for _, p := range strings.Split(trigger, ",") {
		if p = strings.TrimSpace(p); p != "" {
			events[p] = nil
		}
	}
	return events
}

// parseFlashesFromHTML extracts toasts written by RenderFlashesOOB.
func parseFlashesFromHTML(s string) []Flash {
	const prefix = `<div class="toast toast-`
	var flashes []Flash

	for idx := 0; ; {
		start := strings.Index(s[idx:], prefix)
		if start == -1 {
			break
		}
		start += idx + len(prefix)

		levelEnd := strings.IndexByte(s[start:], '"')
		tagEnd := strings.IndexByte(s[start:], '>')
		if levelEnd == -1 || tagEnd == -1 {
			break
		}
		contentStart := start + tagEnd + 1
		contentEnd := strings.Index(s[contentStart:], "</div>")
		if contentEnd == -1 {
			break
		}

		flashes = append(flashes, Flash{
			Level:   html.UnescapeString(s[start : start+levelEnd]),
			Message: html.UnescapeString(s[contentStart : contentStart+contentEnd]),
		})
		idx = contentStart + contentEnd
	}
	return flashes
}
