// Package eventlog stores append-only per-board event sequences and serves
// blocking update loads against them.
package eventlog

import (
	"context"
	"errors"
)

var (
	// ErrInvalidPosition reports a LoadUpdate position beyond the log's end.
	ErrInvalidPosition = errors.New("update position beyond end of log")

	// ErrConflict reports a save that raced a concurrent append on the same
	// key. Retryable: reload and reapply.
	ErrConflict = errors.New("save conflicts with a concurrent append")

	// ErrTransient marks a failure worth retrying (lock contention, broken
	// connection). Wrap with it via fmt.Errorf("%w: %w", ErrTransient, err).
	ErrTransient = errors.New("transient store failure")
)

// Retryable reports whether err is worth retrying against the same store.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTransient)
}

// Loader loads the full ordered event sequence for a board key. Unknown keys
// load as empty sequences.
type Loader[E any] interface {
	Load(ctx context.Context, key string) ([]E, error)
}

// Saver persists events as the board's new sequence and returns what was
// persisted. Callers pass a prefix-extension of the sequence they loaded;
// stores may detect a violated prefix and return ErrConflict.
type Saver[E any] interface {
	Save(ctx context.Context, key string, events []E) ([]E, error)
}

// Log is a loadable, savable event sequence store.
type Log[E any] interface {
	Loader[E]
	Saver[E]
}

// UpdateLoader blocks until a board's log grows past a known position.
//
//   - since < len: the tail beyond since returns immediately;
//   - since == len: the call suspends until the next save on the key;
//   - since > len: ErrInvalidPosition.
type UpdateLoader[E any] interface {
	LoadUpdate(ctx context.Context, key string, since int) ([]E, error)
}

// WatchLog is a Log that also serves blocking update loads.
type WatchLog[E any] interface {
	Log[E]
	UpdateLoader[E]
}
