package hxfield

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pthm/hxfield/lib/encoding"
	"github.com/pthm/hxfield/lib/store"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNotFound, true},
		{ErrMissingDefinition, true},
		{ErrMissingUIHandler, true},
		{ErrUnknownField, true},
		{store.ErrUnknownField, true},
		{fmt.Errorf("wrapped: %w", ErrMissingUIHandler), true},
		{ErrInvalidHandle, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		if got := IsNotFound(tt.err); got != tt.want {
			t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWrapEncodingError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{encoding.ErrInvalidFormat, ErrInvalidFormat},
		{encoding.ErrSignatureInvalid, ErrSignatureInvalid},
		{encoding.ErrDecryptFailed, ErrDecryptFailed},
	}
	for _, tt := range tests {
		if got := wrapEncodingError(tt.in); !errors.Is(got, tt.want) {
			t.Errorf("wrapEncodingError(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if wrapEncodingError(nil) != nil {
		t.Error("wrapEncodingError(nil) should be nil")
	}
	if !IsDecryptionError(wrapEncodingError(encoding.ErrSignatureInvalid)) {
		t.Error("signature errors are decryption errors")
	}
}

func TestValidationError(t *testing.T) {
	err := Invalid("must be at most %d characters", 10)
	if err.Error() != "hxfield: must be at most 10 characters" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !IsValidationError(err) {
		t.Error("IsValidationError() = false")
	}

	ve, ok := asValidationError(fmt.Errorf("process: %w", err), "title")
	if !ok || ve.Field != "title" {
		t.Fatalf("asValidationError() = %v, %v", ve, ok)
	}
	if err.Field != "" {
		t.Error("asValidationError should not modify the original error")
	}
	if ve.Error() != `hxfield: field "title": must be at most 10 characters` {
		t.Errorf("Error() = %q", ve.Error())
	}

	if _, ok := asValidationError(errors.New("boom"), "title"); ok {
		t.Error("plain errors are not validation errors")
	}
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Message: "bad a"},
		{Field: "b", Message: "bad b"},
	}
	if !strings.Contains(errs.Error(), "bad a") || !strings.Contains(errs.Error(), "bad b") {
		t.Errorf("Error() = %q", errs.Error())
	}
	if !errors.Is(errs, ErrValidation) {
		t.Error("ValidationErrors should unwrap to ErrValidation")
	}
	if errs.For("b").Message != "bad b" || errs.For("c") != nil {
		t.Error("For() lookup failed")
	}
}

func TestFieldtypeValidationError(t *testing.T) {
	err := New("text").ValidationError("title", "is required")
	if err.Field != "title" || !IsValidationError(err) {
		t.Errorf("ValidationError() = %v", err)
	}
}

func TestErrorComponentEscapes(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorComponent(errors.New("<script>")).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("unescaped output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `role="alert"`) {
		t.Errorf("output = %s", buf.String())
	}
}
