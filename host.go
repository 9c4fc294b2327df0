package hxfield

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/hxfield/lib/blueprint"
	"github.com/pthm/hxfield/lib/encoding"
	"github.com/pthm/hxfield/lib/metrics"
	"github.com/pthm/hxfield/lib/store"
)

const (
	defaultPrefix             = "/_f"
	defaultPreloadConcurrency = 8
)

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the host's logger. The store created by the host shares it.
func WithLogger(l zerolog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// WithMetrics records host and store activity on c.
func WithMetrics(c *metrics.Collector) HostOption {
	return func(h *Host) {
		h.metrics = c
	}
}

// WithStore makes the host keep field state in s instead of a store of its own.
func WithStore(s *store.Store) HostOption {
	return func(h *Host) {
		h.store = s
	}
}

// WithPrefix sets the URL path the host's endpoints are mounted under.
// Defaults to "/_f".
func WithPrefix(prefix string) HostOption {
	return func(h *Host) {
		h.prefix = "/" + strings.Trim(prefix, "/")
	}
}

// WithSensitiveRefs encrypts field references instead of signing them, so
// clients cannot read form ids and field names.
func WithSensitiveRefs() HostOption {
	return func(h *Host) {
		h.sensitive = true
	}
}

// WithStrictPreload makes Open fail when any field's preload fails. By
// default such fields open with empty meta and report the failure through
// Field.PreloadErr.
func WithStrictPreload() HostOption {
	return func(h *Host) {
		h.strict = true
	}
}

// WithPreloadConcurrency bounds the number of preloads Open runs at once.
func WithPreloadConcurrency(n int) HostOption {
	return func(h *Host) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// WithPreloadCache keeps successful preload results for ttl, keyed by
// fieldtype handle, field config and value.
func WithPreloadCache(ttl time.Duration) HostOption {
	return func(h *Host) {
		if ttl > 0 {
			h.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// Host opens forms from blueprints, keeps their fields in a store and serves
// the HTTP endpoints UI handlers post changes to.
type Host struct {
	reg         *Registry
	store       *store.Store
	encoder     *encoding.Encoder
	logger      zerolog.Logger
	metrics     *metrics.Collector
	cache       *cache.Cache
	prefix      string
	sensitive   bool
	strict      bool
	concurrency int

	mu    sync.RWMutex
	forms map[string]*Form

	// OnError writes the response for a request that failed before a field
	// could be rendered. Customize this to match your application's errors.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// NewHost creates a host for the fieldtypes in reg. key seals field
// references; use at least 32 bytes of random data.
func NewHost(reg *Registry, key []byte, opts ...HostOption) *Host {
	enc, err := encoding.NewEncoder(key)
	if err != nil {
		panic(fmt.Sprintf("hxfield: failed to create encoder: %v", err))
	}

	h := &Host{
		reg:         reg,
		encoder:     enc,
		logger:      zerolog.Nop(),
		prefix:      defaultPrefix,
		concurrency: defaultPreloadConcurrency,
		forms:       make(map[string]*Form),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.store == nil {
		h.store = store.New(store.WithLogger(h.logger), store.WithMetrics(h.metrics))
	}
	h.OnError = h.defaultOnError
	return h
}

// Registry returns the host's registry.
func (h *Host) Registry() *Registry {
	return h.reg
}

// Store returns the store holding the host's fields.
func (h *Host) Store() *store.Store {
	return h.store
}

// Prefix returns the URL path the host's endpoints live under.
func (h *Host) Prefix() string {
	return h.prefix
}

// Open creates a form instance from bp. values holds stored field values by
// field handle; fields without one start from their blueprint default or the
// fieldtype's DefaultValue.
//
// Every field's fieldtype must have a definition and a UI handler. Preloads
// run concurrently and Open returns once all of them have finished.
func (h *Host) Open(ctx context.Context, bp *blueprint.Blueprint, values map[string]any) (*Form, error) {
	if bp == nil {
		return nil, errors.New("hxfield: open: nil blueprint")
	}
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("hxfield: open %q: %w", bp.Handle, err)
	}

	form := &Form{
		ID:        uuid.NewString(),
		Blueprint: bp,
		host:      h,
		fields:    make([]*formField, len(bp.Fields)),
	}

	var errs []error
	for i, bf := range bp.Fields {
		e, err := h.reg.Lookup(bf.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", bf.Handle, err))
			continue
		}
		cfg := Config(bf.Config).Clone()
		def := e.Definition()
		form.fields[i] = &formField{
			name:   bf.Handle,
			handle: e.Handle,
			def:    def,
			config: cfg,
			schema: bf,
			value:  initialValue(def, cfg, bf, values),
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := h.preload(ctx, form); err != nil {
		return nil, err
	}

	for _, ff := range form.fields {
		key := store.Key{Form: form.ID, Field: ff.name}
		if _, err := h.store.Init(key, string(ff.handle), ff.value, ff.meta, ff.preloadErr); err != nil {
			h.store.DropForm(form.ID)
			return nil, fmt.Errorf("hxfield: open %q: %w", bp.Handle, err)
		}
	}

	h.mu.Lock()
	h.forms[form.ID] = form
	h.mu.Unlock()

	h.metrics.RecordFormOpened()
	h.logger.Debug().
		Str("form", form.ID).
		Str("blueprint", bp.Handle).
		Int("fields", len(form.fields)).
		Msg("form opened")
	return form, nil
}

func initialValue(def Definition, cfg Config, bf blueprint.Field, values map[string]any) any {
	v, ok := values[bf.Handle]
	switch {
	case ok:
		v = store.CloneValue(v)
	case bf.Default != nil:
		v = store.CloneValue(bf.Default)
	default:
		if d, ok := def.(Defaulter); ok {
			v = d.DefaultValue(cfg.Clone())
		}
	}
	if p, ok := def.(PreProcessor); ok {
		v = p.PreProcess(cfg.Clone(), v)
	}
	return v
}

// preload fills in the meta of every field whose definition is a Preloader.
func (h *Host) preload(ctx context.Context, form *Form) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, ff := range form.fields {
		p, ok := ff.def.(Preloader)
		if !ok {
			continue
		}
		g.Go(func() error {
			meta, err := h.preloadField(gctx, p, form.ID, ff)
			if err == nil {
				ff.meta = meta
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if h.strict {
				return fmt.Errorf("%w: field %q: %w", ErrPreloadFailed, ff.name, err)
			}
			h.logger.Warn().
				Err(err).
				Str("form", form.ID).
				Str("field", ff.name).
				Str("handle", string(ff.handle)).
				Msg("preload failed, field opens with empty meta")
			ff.preloadErr = fmt.Errorf("%w: %w", ErrPreloadFailed, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (h *Host) preloadField(ctx context.Context, p Preloader, formID string, ff *formField) (Meta, error) {
	cacheKey := ""
	if h.cache != nil {
		if fp, err := encoding.Fingerprint(map[string]any{"config": ff.config, "value": ff.value}); err == nil {
			cacheKey = string(ff.handle) + ":" + fp
			if cached, ok := h.cache.Get(cacheKey); ok {
				h.metrics.RecordPreloadCacheHit(string(ff.handle))
				return cached.(Meta).Clone(), nil
			}
		}
	}

	start := time.Now()
	meta, err := p.Preload(ctx, PreloadContext{
		Form:   formID,
		Field:  ff.name,
		Config: ff.config.Clone(),
		Value:  store.CloneValue(ff.value),
	})
	h.metrics.RecordPreload(string(ff.handle), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	meta = meta.Clone()
	if cacheKey != "" {
		h.cache.Set(cacheKey, meta.Clone(), cache.DefaultExpiration)
	}
	return meta, nil
}

// Form returns the open form with the given id.
func (h *Host) Form(id string) (*Form, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f, ok := h.forms[id]
	return f, ok
}

// Close discards a form and its fields. It reports whether the form was open.
func (h *Host) Close(formID string) bool {
	h.mu.Lock()
	_, ok := h.forms[formID]
	delete(h.forms, formID)
	h.mu.Unlock()

	if !ok {
		return false
	}
	n := h.store.DropForm(formID)
	h.logger.Debug().Str("form", formID).Int("fields", n).Msg("form closed")
	return true
}

// RenderIndex renders value the way listings show it: condensed by the
// fieldtype's PreProcessIndex and drawn by its listing handler, or as plain
// escaped text when the fieldtype has none.
func (h *Host) RenderIndex(ctx context.Context, bf blueprint.Field, value any) (templ.Component, error) {
	e, err := h.reg.definition(bf.Type)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", bf.Handle, err)
	}

	f := IndexField{
		handle: e.Handle,
		name:   bf.Handle,
		config: Config(bf.Config).Clone(),
		value:  store.CloneValue(value),
	}
	f.display = preProcessIndex(e.Definition(), store.CloneValue(value))

	if e.Index == nil {
		return plainIndex(f.display), nil
	}
	return e.Index.RenderIndex(ctx, f), nil
}

// lookupField resolves a store key to its form and field.
func (h *Host) lookupField(key store.Key) (*Form, *formField, error) {
	form, ok := h.Form(key.Form)
	if !ok {
		return nil, nil, fmt.Errorf("%w: form %q", ErrUnknownField, key.Form)
	}
	ff := form.field(key.Field)
	if ff == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	return form, ff, nil
}

func (h *Host) snapshot(ff *formField, st store.State) Field {
	return Field{
		state:   st,
		handle:  ff.handle,
		config:  ff.config,
		display: ff.schema.Label(),
		ch:      h,
	}
}

func (h *Host) updateValue(ctx context.Context, key store.Key, value any) (store.State, error) {
	return h.store.UpdateValue(ctx, key, value)
}

func (h *Host) update(ctx context.Context, key store.Key, value any, partial Meta) (store.State, error) {
	return h.store.Update(ctx, key, value, partial)
}

func (h *Host) updateMeta(ctx context.Context, key store.Key, partial Meta) (store.State, error) {
	return h.store.UpdateMeta(ctx, key, partial)
}

// refPayload is what a field reference seals.
type refPayload struct {
	Form  string `msgpack:"f"`
	Field string `msgpack:"k"`
}

func (h *Host) fieldRef(key store.Key) string {
	ref, err := h.encoder.Encode(refPayload{Form: key.Form, Field: key.Field}, h.sensitive)
	if err != nil {
		h.logger.Error().Err(err).Str("field", key.String()).Msg("failed to encode field reference")
		return ""
	}
	return ref
}

func (h *Host) decodeRef(ref string) (store.Key, error) {
	if ref == "" {
		return store.Key{}, ErrInvalidFormat
	}
	var p refPayload
	if err := h.encoder.Decode(ref, h.sensitive, &p); err != nil {
		return store.Key{}, wrapEncodingError(err)
	}
	return store.Key{Form: p.Form, Field: p.Field}, nil
}

func (h *Host) route(action string) string {
	return h.prefix + "/" + action
}
