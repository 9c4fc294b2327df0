package hxfield

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxfield/lib/encoding"
	"github.com/pthm/hxfield/lib/store"
)

// Sentinel errors for fieldtype operations.
var (
	ErrInvalidHandle     = errors.New("hxfield: invalid handle")
	ErrNamingMismatch    = errors.New("hxfield: component name does not follow the fieldtype naming convention")
	ErrNotFound          = errors.New("hxfield: not found")
	ErrMissingDefinition = fmt.Errorf("%w: no fieldtype definition registered", ErrNotFound)
	ErrMissingUIHandler  = fmt.Errorf("%w: missing UI handler", ErrNotFound)
	ErrUnknownField      = fmt.Errorf("%w: unknown field", ErrNotFound)
	ErrPreloadFailed     = errors.New("hxfield: preload failed")
	ErrValidation        = errors.New("hxfield: validation failed")
	ErrDetached          = errors.New("hxfield: field is not attached to a store")
	ErrMetaKeyRejected   = errors.New("hxfield: meta key not accepted")
	ErrDecryptFailed     = errors.New("hxfield: field reference decryption failed")
	ErrSignatureInvalid  = errors.New("hxfield: field reference signature verification failed")
	ErrInvalidFormat     = errors.New("hxfield: invalid field reference format")
)

// IsNotFound checks if err is a missing definition, UI handler or field.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, store.ErrUnknownField)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsValidationError checks if err reports a rejected value.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ValidationError reports a value a fieldtype refused to accept.
type ValidationError struct {
	Field   string
	Message string
}

// Invalid creates a ValidationError. The host fills in the field handle.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "hxfield: " + e.Message
	}
	return fmt.Sprintf("hxfield: field %q: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationErrors collects the failures of a form submission.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (ve ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve))
	for i, e := range ve {
		errs[i] = e
	}
	return errs
}

// For returns the error reported for field, or nil.
func (ve ValidationErrors) For(field string) *ValidationError {
	for _, e := range ve {
		if e.Field == field {
			return e
		}
	}
	return nil
}

// asValidationError extracts a ValidationError from err, labelling it with
// field when it has no field yet.
func asValidationError(err error, field string) (*ValidationError, bool) {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil, false
	}
	if ve.Field == "" {
		ve = &ValidationError{Field: field, Message: ve.Message}
	}
	return ve, true
}

// ErrorComponent renders an escaped error box in place of a field that could
// not be rendered.
func ErrorComponent(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, werr := io.WriteString(w, `<div class="hxfield-error" role="alert">Field error: `+
			templ.EscapeString(err.Error())+`</div>`)
		return werr
	})
}

// wrapEncodingError maps encoding package errors onto hxfield sentinel errors.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, encoding.ErrInvalidFormat):
		return ErrInvalidFormat
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, encoding.ErrDecryptFailed):
		return ErrDecryptFailed
	}
	return err
}
