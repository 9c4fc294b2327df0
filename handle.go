package hxfield

import (
	"fmt"
	"regexp"
	"strings"
)

// Suffixes appended to a handle to name its UI handlers.
const (
	ComponentSuffix      = "-fieldtype"
	IndexComponentSuffix = "-fieldtype-index"
)

var handlePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

// Handle is the unique lower-snake-case identifier of a fieldtype, e.g.
// "toggle_password". Values of this type are always valid when produced by
// ParseHandle or MustHandle.
type Handle string

// ParseHandle validates s as a fieldtype handle.
func ParseHandle(s string) (Handle, error) {
	if !handlePattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q must be lower_snake_case", ErrInvalidHandle, s)
	}
	return Handle(s), nil
}

// MustHandle is like ParseHandle but panics on invalid input.
func MustHandle(s string) Handle {
	h, err := ParseHandle(s)
	if err != nil {
		panic(err.Error())
	}
	return h
}

func (h Handle) String() string {
	return string(h)
}

// ComponentName returns the name the primary UI handler is registered under:
// "<handle>-fieldtype".
func (h Handle) ComponentName() string {
	return string(h) + ComponentSuffix
}

// IndexComponentName returns the name the listing handler is registered
// under: "<handle>-fieldtype-index".
func (h Handle) IndexComponentName() string {
	return string(h) + IndexComponentSuffix
}

// ParseComponentName reverses ComponentName and IndexComponentName. It
// reports which handle the name binds to and whether it names the index
// variant. Names that do not follow the convention fail with
// ErrNamingMismatch.
func ParseComponentName(name string) (h Handle, index bool, err error) {
	var base string
	switch {
	case strings.HasSuffix(name, IndexComponentSuffix):
		base, index = strings.TrimSuffix(name, IndexComponentSuffix), true
	case strings.HasSuffix(name, ComponentSuffix):
		base = strings.TrimSuffix(name, ComponentSuffix)
	default:
		return "", false, fmt.Errorf("%w: %q has no %q suffix", ErrNamingMismatch, name, ComponentSuffix)
	}

	h, err = ParseHandle(base)
	if err != nil {
		return "", false, fmt.Errorf("%w: %q: %w", ErrNamingMismatch, name, err)
	}
	return h, index, nil
}
