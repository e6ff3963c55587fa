package eventlog

import (
	"context"
	"sync"
)

// Memory is an in-process WatchLog: a mutex-guarded map of board key to
// event sequence, plus the waiters suspended in LoadUpdate. Sequences are
// copied on the way in and out so callers can never alias store internals.
type Memory[E any] struct {
	mu      sync.Mutex
	boards  map[string][]E
	pending map[string][]*memoryWaiter[E]
}

type memoryWaiter[E any] struct {
	since int
	ch    chan []E
}

// NewMemory returns an empty in-memory log.
func NewMemory[E any]() *Memory[E] {
	return &Memory[E]{
		boards:  make(map[string][]E),
		pending: make(map[string][]*memoryWaiter[E]),
	}
}

// Load returns the board's full sequence; unknown keys are empty.
func (m *Memory[E]) Load(_ context.Context, key string) ([]E, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySeq(m.boards[key]), nil
}

// Save replaces the board's sequence and wakes every waiter whose position
// the new sequence has grown past.
func (m *Memory[E]) Save(_ context.Context, key string, events []E) ([]E, error) {
	stored := copySeq(events)

	m.mu.Lock()
	m.boards[key] = stored
	var woken []*memoryWaiter[E]
	var kept []*memoryWaiter[E]
	for _, w := range m.pending[key] {
		if w.since < len(stored) {
			woken = append(woken, w)
		} else {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		delete(m.pending, key)
	} else {
		m.pending[key] = kept
	}
	m.mu.Unlock()

	for _, w := range woken {
		w.ch <- copySeq(stored[w.since:])
	}
	return copySeq(stored), nil
}

// LoadUpdate returns the tail beyond since, suspending until the next save
// when the caller is already at the end of the log.
func (m *Memory[E]) LoadUpdate(ctx context.Context, key string, since int) ([]E, error) {
	m.mu.Lock()
	seq := m.boards[key]
	switch {
	case since < len(seq):
		tail := copySeq(seq[since:])
		m.mu.Unlock()
		return tail, nil
	case since > len(seq):
		m.mu.Unlock()
		return nil, ErrInvalidPosition
	}
	w := &memoryWaiter[E]{since: since, ch: make(chan []E, 1)}
	m.pending[key] = append(m.pending[key], w)
	m.mu.Unlock()

	select {
	case tail := <-w.ch:
		return tail, nil
	case <-ctx.Done():
		m.drop(key, w)
		return nil, ctx.Err()
	}
}

func (m *Memory[E]) drop(key string, w *memoryWaiter[E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waiters := m.pending[key]
	for i, candidate := range waiters {
		if candidate == w {
			m.pending[key] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(m.pending[key]) == 0 {
		delete(m.pending, key)
	}
}

func copySeq[E any](events []E) []E {
	if events == nil {
		return nil
	}
	out := make([]E, len(events))
	copy(out, events)
	return out
}
