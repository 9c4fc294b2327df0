package hxfield

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Entry is everything registered under one fieldtype handle.
type Entry struct {
	Handle  Handle
	Factory DefinitionFactory
	UI      Handler
	Index   IndexHandler // nil when no listing handler is registered
}

// Definition creates a definition through the entry's factory.
func (e *Entry) Definition() Definition {
	return e.Factory()
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(reg *Registry) {
		reg.logger = l
	}
}

// Registry maps fieldtype handles to their definitions and UI handlers.
//
// Definitions and UI handlers are registered independently, typically from
// different packages, and are joined by the naming convention: the handler
// for handle h is registered under h.ComponentName().
type Registry struct {
	mu      sync.RWMutex
	entries map[Handle]*Entry
	logger  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	reg := &Registry{
		entries: make(map[Handle]*Entry),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Register associates handle with a definition factory. Registering the same
// handle again replaces the previous factory.
func (reg *Registry) Register(handle string, factory DefinitionFactory) error {
	h, err := ParseHandle(handle)
	if err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("hxfield: register %q: nil factory", h)
	}
	def := factory()
	if def == nil {
		return fmt.Errorf("hxfield: register %q: factory returned nil", h)
	}
	if got := def.FieldtypeHandle(); got != h {
		return fmt.Errorf("%w: factory for %q creates %q", ErrNamingMismatch, h, got)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	e := reg.entry(h)
	if e.Factory != nil {
		reg.logger.Warn().Str("handle", string(h)).Msg("fieldtype definition replaced")
	} else {
		reg.logger.Debug().Str("handle", string(h)).Msg("fieldtype definition registered")
	}
	e.Factory = factory
	return nil
}

// RegisterUI registers the editing UI handler under name, which must have the
// form "<handle>-fieldtype". The handler binds to whatever handle name
// carries; a misspelt handle is not corrected.
func (reg *Registry) RegisterUI(name string, h Handler) error {
	handle, index, err := ParseComponentName(name)
	if err != nil {
		return err
	}
	if index {
		return fmt.Errorf("%w: %q names a listing handler", ErrNamingMismatch, name)
	}
	if h == nil {
		return fmt.Errorf("hxfield: register UI %q: nil handler", name)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	e := reg.entry(handle)
	if e.UI != nil {
		reg.logger.Warn().Str("component", name).Msg("UI handler replaced")
	}
	e.UI = h
	return nil
}

// RegisterIndexUI registers the listing handler under name, which must have
// the form "<handle>-fieldtype-index".
func (reg *Registry) RegisterIndexUI(name string, h IndexHandler) error {
	handle, index, err := ParseComponentName(name)
	if err != nil {
		return err
	}
	if !index {
		return fmt.Errorf("%w: %q is not a listing handler name", ErrNamingMismatch, name)
	}
	if h == nil {
		return fmt.Errorf("hxfield: register index UI %q: nil handler", name)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.entry(handle).Index = h
	return nil
}

// Add registers fieldtypes that carry their own handlers. Each value is
// registered as the definition for its handle, and as its UI and listing
// handler when it implements Handler or IndexHandler.
// Panics on registration errors.
func (reg *Registry) Add(fieldtypes ...Definition) {
	for _, ft := range fieldtypes {
		h := ft.FieldtypeHandle()
		if err := reg.Register(string(h), func() Definition { return ft }); err != nil {
			panic(err.Error())
		}
		if ui, ok := ft.(Handler); ok {
			if err := reg.RegisterUI(h.ComponentName(), ui); err != nil {
				panic(err.Error())
			}
		}
		if ix, ok := ft.(IndexHandler); ok {
			if err := reg.RegisterIndexUI(h.IndexComponentName(), ix); err != nil {
				panic(err.Error())
			}
		}
	}
}

// Lookup returns the entry for handle. It fails with ErrMissingDefinition
// when nothing defines the handle and with ErrMissingUIHandler when the
// definition has no editing UI.
func (reg *Registry) Lookup(handle string) (*Entry, error) {
	e, err := reg.definition(handle)
	if err != nil {
		return nil, err
	}
	if e.UI == nil {
		return nil, fmt.Errorf("%w for %q (expected %q)", ErrMissingUIHandler, e.Handle, e.Handle.ComponentName())
	}
	return e, nil
}

// definition returns a copy of the entry for handle, requiring only a
// definition. Listings need no editing UI.
func (reg *Registry) definition(handle string) (*Entry, error) {
	h, err := ParseHandle(handle)
	if err != nil {
		return nil, err
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.entries[h]
	if !ok || e.Factory == nil {
		return nil, fmt.Errorf("%w for %q", ErrMissingDefinition, h)
	}
	cp := *e
	return &cp, nil
}

// Handles returns the handles with a registered definition, sorted.
func (reg *Registry) Handles() []Handle {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]Handle, 0, len(reg.entries))
	for h, e := range reg.entries {
		if e.Factory != nil {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered definitions.
func (reg *Registry) Len() int {
	return len(reg.Handles())
}

// entry must be called with reg.mu held for writing.
func (reg *Registry) entry(h Handle) *Entry {
	e, ok := reg.entries[h]
	if !ok {
		e = &Entry{Handle: h}
		reg.entries[h] = e
	}
	return e
}
