package hxfield

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"toggle", true},
		{"toggle_password", true},
		{"bard2", true},
		{"a_b_c", true},
		{"", false},
		{"Toggle", false},
		{"toggle-password", false},
		{"_toggle", false},
		{"toggle_", false},
		{"toggle__password", false},
		{"2fa", false},
		{"toggle password", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, err := ParseHandle(tt.in)
			if tt.valid {
				if err != nil {
					t.Fatalf("ParseHandle(%q) error = %v", tt.in, err)
				}
				if h.String() != tt.in {
					t.Errorf("ParseHandle(%q) = %q", tt.in, h)
				}
				return
			}
			if !errors.Is(err, ErrInvalidHandle) {
				t.Errorf("ParseHandle(%q) error = %v, want ErrInvalidHandle", tt.in, err)
			}
		})
	}
}

func TestMustHandlePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustHandle should panic on an invalid handle")
		}
	}()
	MustHandle("Not Valid")
}

func TestComponentNames(t *testing.T) {
	h := MustHandle("toggle_password")
	if got := h.ComponentName(); got != "toggle_password-fieldtype" {
		t.Errorf("ComponentName() = %q", got)
	}
	if got := h.IndexComponentName(); got != "toggle_password-fieldtype-index" {
		t.Errorf("IndexComponentName() = %q", got)
	}
}

func TestParseComponentName(t *testing.T) {
	tests := []struct {
		name      string
		handle    Handle
		index     bool
		wantError bool
	}{
		{name: "toggle_password-fieldtype", handle: "toggle_password"},
		{name: "toggle_password-fieldtype-index", handle: "toggle_password", index: true},
		{name: "togglepassword-fieldtype", handle: "togglepassword"},
		{name: "toggle_password", wantError: true},
		{name: "TogglePassword-fieldtype", wantError: true},
		{name: "-fieldtype", wantError: true},
		{name: "toggle-password-fieldtype", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, index, err := ParseComponentName(tt.name)
			if tt.wantError {
				if !errors.Is(err, ErrNamingMismatch) {
					t.Errorf("error = %v, want ErrNamingMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if h != tt.handle || index != tt.index {
				t.Errorf("got (%q, %v), want (%q, %v)", h, index, tt.handle, tt.index)
			}
		})
	}
}

func TestComponentNameRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[a-z][a-z0-9]{0,6}(_[a-z0-9]{1,4}){0,3}`).Draw(t, "handle")
		h := MustHandle(s)

		got, index, err := ParseComponentName(h.ComponentName())
		if err != nil || got != h || index {
			t.Fatalf("ParseComponentName(%q) = (%q, %v, %v)", h.ComponentName(), got, index, err)
		}
		got, index, err = ParseComponentName(h.IndexComponentName())
		if err != nil || got != h || !index {
			t.Fatalf("ParseComponentName(%q) = (%q, %v, %v)", h.IndexComponentName(), got, index, err)
		}
	})
}

func TestTitleFromHandle(t *testing.T) {
	if got := New("toggle_password").Title(); got != "Toggle Password" {
		t.Errorf("Title() = %q", got)
	}
	if got := New("toggle").WithTitle("Switch").Title(); got != "Switch" {
		t.Errorf("Title() = %q", got)
	}
}
