// Package store is the central state store for field instances.
//
// The store owns the canonical value and meta data of every open field.
// Readers receive deep copies; the only way to change a field is one of the
// store's update operations, which are applied one at a time in arrival order.
// Every applied change is numbered, recorded for undo and published to
// subscribers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pthm/hxfield/lib/metrics"
)

// Errors returned by store operations.
var (
	ErrUnknownField  = errors.New("store: unknown field")
	ErrNothingToUndo = errors.New("store: nothing to undo")
	ErrClosed        = errors.New("store: closed")
)

const defaultHistoryLimit = 50

// Key identifies a field instance: a form instance and a field within it.
type Key struct {
	Form  string
	Field string
}

func (k Key) String() string {
	return k.Form + "/" + k.Field
}

// ChangeKind names the operation that produced a change.
type ChangeKind string

const (
	ChangeInit  ChangeKind = "init"
	ChangeValue ChangeKind = "value"
	ChangeMeta  ChangeKind = "meta"
	ChangeUndo  ChangeKind = "undo"
	ChangeDrop  ChangeKind = "drop"
)

// State is a snapshot of one field instance.
type State struct {
	Key        Key
	Handle     string
	Value      any
	Meta       Meta
	Version    uint64
	PreloadErr error
}

func (st State) clone() State {
	st.Value = CloneValue(st.Value)
	st.Meta = st.Meta.Clone()
	return st
}

// Change describes an applied mutation. Value and Meta hold the field's
// state after the change.
//
// Missed counts the changes this subscriber lost to a full buffer just
// before this one. A subscriber seeing Missed > 0 resynchronizes with
// Store.Get.
type Change struct {
	Seq     uint64
	Kind    ChangeKind
	Key     Key
	Handle  string
	Version uint64
	Value   any
	Meta    Meta
	Missed  uint64
}

type revision struct {
	value any
	meta  Meta
}

type entry struct {
	state   State
	history []revision
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetrics records store activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithHistoryLimit bounds the number of undoable changes kept per field.
// Zero disables undo.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		s.historyLimit = n
	}
}

// WithBufferSize sets the per-subscriber change buffer.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		s.bufferSize = n
	}
}

// Store owns all field values and meta data.
type Store struct {
	mu           sync.Mutex
	fields       map[Key]*entry
	seq          uint64
	closed       bool
	historyLimit int
	bufferSize   int
	broker       *broker
	logger       zerolog.Logger
	metrics      *metrics.Collector
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		fields:       make(map[Key]*entry),
		historyLimit: defaultHistoryLimit,
		bufferSize:   defaultBufferSize,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broker = newBroker(s.bufferSize)
	return s
}

// Init places a field instance in the store, replacing any previous state
// under the same key. The value and meta are copied.
func (s *Store) Init(key Key, handle string, value any, meta Meta, preloadErr error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return State{}, ErrClosed
	}

	e := &entry{state: State{
		Key:        key,
		Handle:     handle,
		Value:      CloneValue(value),
		Meta:       meta.Clone(),
		Version:    1,
		PreloadErr: preloadErr,
	}}
	s.fields[key] = e
	s.metrics.SetFieldsOpen(len(s.fields))
	s.emit(ChangeInit, e)
	return e.state.clone(), nil
}

// Get returns a copy of the field's current state.
func (s *Store) Get(key Key) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.fields[key]
	if !ok {
		return State{}, false
	}
	return e.state.clone(), true
}

// UpdateValue replaces the field's value.
func (s *Store) UpdateValue(ctx context.Context, key Key, value any) (State, error) {
	return s.apply(ctx, key, ChangeValue, func(st *State) {
		st.Value = CloneValue(value)
	})
}

// UpdateMeta merges partial into the field's meta data.
func (s *Store) UpdateMeta(ctx context.Context, key Key, partial Meta) (State, error) {
	return s.apply(ctx, key, ChangeMeta, func(st *State) {
		st.Meta = st.Meta.Merge(partial)
	})
}

// Update replaces the field's value and merges partial into its meta data
// as one change. A single Undo reverts both.
func (s *Store) Update(ctx context.Context, key Key, value any, partial Meta) (State, error) {
	return s.apply(ctx, key, ChangeValue, func(st *State) {
		st.Value = CloneValue(value)
		st.Meta = st.Meta.Merge(partial)
	})
}

// Undo reverts the field's most recent change.
func (s *Store) Undo(ctx context.Context, key Key) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(key)
	if err != nil {
		return State{}, err
	}
	if len(e.history) == 0 {
		return State{}, fmt.Errorf("%w: %s", ErrNothingToUndo, key)
	}

	last := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	e.state.Value = last.value
	e.state.Meta = last.meta
	e.state.Version++
	s.emit(ChangeUndo, e)
	return e.state.clone(), nil
}

// Drop removes a field instance.
func (s *Store) Drop(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.fields[key]
	if !ok {
		return false
	}
	delete(s.fields, key)
	s.metrics.SetFieldsOpen(len(s.fields))
	s.emit(ChangeDrop, e)
	return true
}

// DropForm removes every field of a form instance and returns how many were
// removed.
func (s *Store) DropForm(form string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, key := range s.keysLocked(form) {
		e := s.fields[key]
		delete(s.fields, key)
		s.emit(ChangeDrop, e)
		n++
	}
	s.metrics.SetFieldsOpen(len(s.fields))
	return n
}

// Keys returns the keys of a form's fields, sorted by field.
func (s *Store) Keys(form string) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked(form)
}

// Len returns the number of field instances in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fields)
}

// Seq returns the sequence number of the last applied change.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Subscribe returns a channel receiving every change applied after the call.
// The channel is closed when ctx is cancelled or the store is closed.
func (s *Store) Subscribe(ctx context.Context) <-chan Change {
	return s.broker.subscribe(ctx)
}

// SubscriberCount returns the number of active subscribers.
func (s *Store) SubscriberCount() int {
	return s.broker.count()
}

// Close rejects further changes and closes all subscriptions.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.broker.close()
}

func (s *Store) apply(ctx context.Context, key Key, kind ChangeKind, mutate func(*State)) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(key)
	if err != nil {
		return State{}, err
	}

	if s.historyLimit > 0 {
		e.history = append(e.history, revision{value: e.state.Value, meta: e.state.Meta})
		if len(e.history) > s.historyLimit {
			e.history = e.history[len(e.history)-s.historyLimit:]
		}
	}

	// mutate always installs fresh copies, so history keeps the old ones intact
	mutate(&e.state)
	e.state.Version++
	s.emit(kind, e)
	return e.state.clone(), nil
}

func (s *Store) lookup(key Key) (*entry, error) {
	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.fields[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	return e, nil
}

func (s *Store) keysLocked(form string) []Key {
	var keys []Key
	for k := range s.fields {
		if k.Form == form {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Field < keys[j].Field })
	return keys
}

// emit must be called with s.mu held so changes publish in Seq order.
func (s *Store) emit(kind ChangeKind, e *entry) {
	s.seq++
	c := Change{
		Seq:     s.seq,
		Kind:    kind,
		Key:     e.state.Key,
		Handle:  e.state.Handle,
		Version: e.state.Version,
		Value:   CloneValue(e.state.Value),
		Meta:    e.state.Meta.Clone(),
	}

	s.logger.Debug().
		Uint64("seq", c.Seq).
		Str("kind", string(kind)).
		Str("field", c.Key.String()).
		Str("handle", c.Handle).
		Uint64("version", c.Version).
		Msg("store change applied")

	s.metrics.RecordChange(c.Handle, string(kind))
	s.broker.publish(c)
}
