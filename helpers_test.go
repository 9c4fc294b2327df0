package hxfield

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/a-h/templ"
)

func TestBuildTriggerHeader(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  map[string]any
		want  string
	}{
		{"empty", "", map[string]any{"a": 1}, ""},
		{"name only", EventUpdated, nil, "hxfield:updated"},
		{"detail", EventUpdated, map[string]any{"version": 2}, `{"hxfield:updated":{"version":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildTriggerHeader(tt.event, tt.data); got != tt.want {
				t.Errorf("BuildTriggerHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteAttrs(t *testing.T) {
	var buf bytes.Buffer
	err := WriteAttrs(&buf, templ.Attributes{
		"hx-post":  "/_f/update",
		"disabled": true,
		"hidden":   false,
		"data-n":   3,
		"title":    `a "quoted" <b>`,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := ` data-n="3" disabled hx-post="/_f/update" title="a &#34;quoted&#34; &lt;b&gt;"`
	if buf.String() != want {
		t.Errorf("WriteAttrs() = %q, want %q", buf.String(), want)
	}
}

func TestIsHTMX(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	if IsHTMX(r) {
		t.Error("IsHTMX() = true without header")
	}
	r.Header.Set("HX-Request", "true")
	r.Header.Set("HX-Trigger-Name", "visible")
	if !IsHTMX(r) || TriggerName(r) != "visible" {
		t.Errorf("IsHTMX() = %v, TriggerName() = %q", IsHTMX(r), TriggerName(r))
	}
}
