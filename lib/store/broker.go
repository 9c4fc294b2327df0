package store

import (
	"context"
	"sync"
)

const defaultBufferSize = 64

// subscriber is one Subscribe call. lost counts changes dropped because its
// buffer was full since the last successful delivery.
type subscriber struct {
	ch   chan Change
	lost uint64
	stop func() bool
}

// broker fans store changes out to subscribers. Delivery never blocks the
// store: a full buffer drops the change, and the next change that gets
// through reports the gap in Change.Missed.
type broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	size   int
	closed bool
}

func newBroker(size int) *broker {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &broker{subs: make(map[*subscriber]struct{}), size: size}
}

func (b *broker) subscribe(ctx context.Context) <-chan Change {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Change, b.size)}
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs[sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() { b.unsubscribe(sub) })
	return sub.ch
}

func (b *broker) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// publish is called with the store lock held, so changes reach every
// subscriber in Seq order.
func (b *broker) publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		c.Missed = sub.lost
		select {
		case sub.ch <- c:
			sub.lost = 0
		default:
			sub.lost++
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.stop()
		close(sub.ch)
	}
	clear(b.subs)
}

func (b *broker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
