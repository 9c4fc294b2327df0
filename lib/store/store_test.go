package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_InitAndGet(t *testing.T) {
	s := New()
	defer s.Close()

	key := Key{Form: "f1", Field: "title"}
	st, err := s.Init(key, "text", "hello", Meta{"foo": "bar"}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.Version)
	require.Equal(t, "hello", st.Value)
	require.Equal(t, "bar", st.Meta.String("foo"))

	got, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, st, got)

	_, ok = s.Get(Key{Form: "f1", Field: "missing"})
	require.False(t, ok)
}

func TestStore_InitCopiesInput(t *testing.T) {
	s := New()
	defer s.Close()

	value := map[string]any{"a": []any{"x"}}
	meta := Meta{"items": []string{"1"}}
	key := Key{Form: "f", Field: "rel"}
	_, err := s.Init(key, "relationship", value, meta, nil)
	require.NoError(t, err)

	value["a"].([]any)[0] = "changed"
	meta["items"].([]string)[0] = "changed"

	got, _ := s.Get(key)
	require.Equal(t, "x", got.Value.(map[string]any)["a"].([]any)[0])
	require.Equal(t, "1", got.Meta["items"].([]string)[0])
}

func TestStore_GetReturnsCopies(t *testing.T) {
	s := New()
	defer s.Close()

	key := Key{Form: "f", Field: "tags"}
	_, err := s.Init(key, "tags", []any{"a", "b"}, nil, nil)
	require.NoError(t, err)

	got, _ := s.Get(key)
	got.Value.([]any)[0] = "mutated"
	got.Meta["sneaky"] = true

	again, _ := s.Get(key)
	require.Equal(t, []any{"a", "b"}, again.Value)
	require.NotContains(t, again.Meta, "sneaky")
}

func TestStore_UpdateValue(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	key := Key{Form: "f", Field: "title"}
	_, err := s.Init(key, "text", "old", nil, nil)
	require.NoError(t, err)

	st, err := s.UpdateValue(ctx, key, "new")
	require.NoError(t, err)
	require.Equal(t, "new", st.Value)
	require.Equal(t, uint64(2), st.Version)

	_, err = s.UpdateValue(ctx, Key{Form: "f", Field: "nope"}, "x")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestStore_UpdateMetaShallowMerge(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	key := Key{Form: "f", Field: "pw"}
	_, err := s.Init(key, "toggle_password", "", Meta{"foo": "bar", "visible": false, "nested": map[string]any{"a": 1}}, nil)
	require.NoError(t, err)

	st, err := s.UpdateMeta(ctx, key, Meta{"foo": "baz", "nested": map[string]any{"b": 2}})
	require.NoError(t, err)
	require.Equal(t, "baz", st.Meta["foo"])
	require.Equal(t, false, st.Meta["visible"])
	require.Equal(t, map[string]any{"b": 2}, st.Meta["nested"])
}

func TestStore_Undo(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	key := Key{Form: "f", Field: "title"}
	_, err := s.Init(key, "text", "one", Meta{"m": 1}, nil)
	require.NoError(t, err)

	_, err = s.Undo(ctx, key)
	require.ErrorIs(t, err, ErrNothingToUndo)

	_, err = s.UpdateValue(ctx, key, "two")
	require.NoError(t, err)
	_, err = s.UpdateMeta(ctx, key, Meta{"m": 2})
	require.NoError(t, err)

	st, err := s.Undo(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "two", st.Value)
	require.Equal(t, 1, st.Meta["m"])

	st, err = s.Undo(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "one", st.Value)
	require.Equal(t, uint64(5), st.Version)
}

func TestStore_UpdateIsOneRevision(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	key := Key{Form: "f", Field: "related"}
	_, err := s.Init(key, "relationship", []string{"1"}, Meta{"items": []any{"1"}, "keep": true}, nil)
	require.NoError(t, err)

	st, err := s.Update(ctx, key, []string{"2"}, Meta{"items": []any{"2"}})
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, st.Value)
	require.Equal(t, []any{"2"}, st.Meta["items"])
	require.Equal(t, true, st.Meta["keep"])
	require.Equal(t, uint64(2), st.Version)

	st, err = s.Undo(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, st.Value)
	require.Equal(t, []any{"1"}, st.Meta["items"])

	_, err = s.Undo(ctx, key)
	require.ErrorIs(t, err, ErrNothingToUndo)
}

func TestStore_HistoryLimit(t *testing.T) {
	s := New(WithHistoryLimit(2))
	defer s.Close()
	ctx := context.Background()

	key := Key{Form: "f", Field: "n"}
	_, err := s.Init(key, "text", "0", nil, nil)
	require.NoError(t, err)
	for _, v := range []string{"1", "2", "3"} {
		_, err := s.UpdateValue(ctx, key, v)
		require.NoError(t, err)
	}

	st, err := s.Undo(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "2", st.Value)
	st, err = s.Undo(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "1", st.Value)
	_, err = s.Undo(ctx, key)
	require.ErrorIs(t, err, ErrNothingToUndo)
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	defer s.Close()

	key := Key{Form: "f", Field: "title"}
	_, err := s.Init(key, "text", "v", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.UpdateValue(ctx, key, "x")
	require.True(t, errors.Is(err, context.Canceled))

	got, _ := s.Get(key)
	require.Equal(t, "v", got.Value)
}

func TestStore_DropForm(t *testing.T) {
	s := New()
	defer s.Close()

	for _, f := range []string{"b", "a", "c"} {
		_, err := s.Init(Key{Form: "f1", Field: f}, "text", nil, nil, nil)
		require.NoError(t, err)
	}
	_, err := s.Init(Key{Form: "f2", Field: "a"}, "text", nil, nil, nil)
	require.NoError(t, err)

	keys := s.Keys("f1")
	require.Equal(t, []Key{{"f1", "a"}, {"f1", "b"}, {"f1", "c"}}, keys)

	require.Equal(t, 3, s.DropForm("f1"))
	require.Equal(t, 1, s.Len())
	require.True(t, s.Drop(Key{Form: "f2", Field: "a"}))
	require.False(t, s.Drop(Key{Form: "f2", Field: "a"}))
}

func TestStore_SubscribeReceivesChangesInOrder(t *testing.T) {
	s := New()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)

	key := Key{Form: "f", Field: "title"}
	_, err := s.Init(key, "text", "a", nil, nil)
	require.NoError(t, err)
	_, err = s.UpdateValue(ctx, key, "b")
	require.NoError(t, err)
	_, err = s.UpdateMeta(ctx, key, Meta{"k": "v"})
	require.NoError(t, err)

	var kinds []ChangeKind
	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case c := <-ch:
			require.Greater(t, c.Seq, last)
			last = c.Seq
			kinds = append(kinds, c.Kind)
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for change")
		}
	}
	require.Equal(t, []ChangeKind{ChangeInit, ChangeValue, ChangeMeta}, kinds)
}

func TestStore_SubscriberReportsMissedChanges(t *testing.T) {
	s := New(WithBufferSize(1))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx)

	key := Key{Form: "f", Field: "title"}
	_, err := s.Init(key, "text", "a", nil, nil)
	require.NoError(t, err)
	_, err = s.UpdateValue(ctx, key, "b")
	require.NoError(t, err)
	_, err = s.UpdateValue(ctx, key, "c")
	require.NoError(t, err)

	c := <-ch
	require.Equal(t, ChangeInit, c.Kind)
	require.Zero(t, c.Missed)

	_, err = s.UpdateValue(ctx, key, "d")
	require.NoError(t, err)
	c = <-ch
	require.Equal(t, uint64(2), c.Missed)
	require.Equal(t, "d", c.Value)
	require.Equal(t, uint64(4), c.Seq)

	st, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, c.Version, st.Version)
}

func TestStore_SubscribeClosedOnCancel(t *testing.T) {
	s := New()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	require.Equal(t, 1, s.SubscriberCount())

	cancel()

	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		require.Fail(t, "channel not closed after cancel")
	}
	require.Eventually(t, func() bool { return s.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStore_Closed(t *testing.T) {
	s := New()
	key := Key{Form: "f", Field: "x"}
	_, err := s.Init(key, "text", nil, nil, nil)
	require.NoError(t, err)

	ch := s.Subscribe(context.Background())
	s.Close()

	_, ok := <-ch
	require.False(t, ok)

	_, err = s.UpdateValue(context.Background(), key, "v")
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.Init(key, "text", nil, nil, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	s := New(WithHistoryLimit(0))
	defer s.Close()
	ctx := context.Background()

	key := Key{Form: "f", Field: "n"}
	_, err := s.Init(key, "text", 0, nil, nil)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.UpdateValue(ctx, key, i); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	st, _ := s.Get(key)
	require.Equal(t, uint64(writers+1), st.Version)
	require.Equal(t, uint64(writers+1), s.Seq())
}
