package eventlog

import (
	"context"
	"sync"
)

// Watched turns any Log into a WatchLog. Persistent backends have no way to
// suspend a reader until a write lands, so Watched keeps the waiter table in
// process and wakes it after each successful save through this instance.
// Saves that bypass the wrapper surface at the next poll, not immediately.
type Watched[E any] struct {
	log Log[E]

	mu      sync.Mutex
	pending map[string][]*memoryWaiter[E]
}

// NewWatched wraps log with an in-process waiter table.
func NewWatched[E any](log Log[E]) *Watched[E] {
	return &Watched[E]{
		log:     log,
		pending: make(map[string][]*memoryWaiter[E]),
	}
}

func (w *Watched[E]) Load(ctx context.Context, key string) ([]E, error) {
	return w.log.Load(ctx, key)
}

func (w *Watched[E]) Save(ctx context.Context, key string, events []E) ([]E, error) {
	saved, err := w.log.Save(ctx, key, events)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	var woken []*memoryWaiter[E]
	var kept []*memoryWaiter[E]
	for _, waiter := range w.pending[key] {
		if waiter.since < len(saved) {
			woken = append(woken, waiter)
		} else {
			kept = append(kept, waiter)
		}
	}
	if len(kept) == 0 {
		delete(w.pending, key)
	} else {
		w.pending[key] = kept
	}
	w.mu.Unlock()

	for _, waiter := range woken {
		waiter.ch <- copySeq(saved[waiter.since:])
	}
	return saved, nil
}

// LoadUpdate registers its waiter before consulting the backend, so a save
// landing between the read and the wait still wakes it.
func (w *Watched[E]) LoadUpdate(ctx context.Context, key string, since int) ([]E, error) {
	waiter := &memoryWaiter[E]{since: since, ch: make(chan []E, 1)}
	w.mu.Lock()
	w.pending[key] = append(w.pending[key], waiter)
	w.mu.Unlock()

	seq, err := w.log.Load(ctx, key)
	if err != nil {
		w.drop(key, waiter)
		return nil, err
	}
	switch {
	case since < len(seq):
		w.drop(key, waiter)
		return seq[since:], nil
	case since > len(seq):
		w.drop(key, waiter)
		return nil, ErrInvalidPosition
	}

	select {
	case tail := <-waiter.ch:
		return tail, nil
	case <-ctx.Done():
		w.drop(key, waiter)
		return nil, ctx.Err()
	}
}

func (w *Watched[E]) drop(key string, waiter *memoryWaiter[E]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	waiters := w.pending[key]
	for i, candidate := range waiters {
		if candidate == waiter {
			w.pending[key] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(w.pending[key]) == 0 {
		delete(w.pending, key)
	}
}
