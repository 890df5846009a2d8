package docstore

import (
	"context"
	"sync"
)

// FetchFunc evaluates a subscription's query against the backing store.
type FetchFunc func(ctx context.Context) ([]Document, error)

// Hub fans change notifications out to live subscriptions. Every subscription
// runs its own goroutine that re-evaluates the query after a notification and
// hands the complete result to its callback. Pending notifications collapse
// into one, so a slow callback only ever sees the latest state.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

type subscription struct {
	query  Query
	notify chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscription)}
}

// Subscribe registers a subscription and schedules its initial snapshot.
func (h *Hub) Subscribe(q Query, fetch FetchFunc, fn SnapshotFunc) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		query:  q,
		notify: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	sub.notify <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	go sub.run(fetch, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			cancel()
		})
	}
}

// Notify wakes every subscription on collection.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.query.Collection == collection {
			sub.wake()
		}
	}
}

// NotifyAll wakes every subscription, e.g. after the change feed reconnected
// and notifications may have been missed.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		sub.wake()
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close cancels all subscriptions; later Subscribe calls return a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		sub.cancel()
		delete(h.subs, id)
	}
}

func (s *subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) run(fetch FetchFunc, fn SnapshotFunc) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.notify:
		}

		docs, err := fetch(s.ctx)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			fn(Snapshot{Err: err})
			continue
		}
		fn(Snapshot{Documents: docs})
	}
}
