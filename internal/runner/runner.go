// Package runner executes board commands transactionally against an
// append-only event log: load, fold, apply, append, save, with a pluggable
// retry strategy around the whole cycle.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
)

// ErrAborted reports an execution its strategy refused to start.
var ErrAborted = errors.New("execution aborted before any attempt")

// Command produces events from the current aggregate state. Apply is pure;
// validation failures are negative events in the returned slice, not errors.
type Command[A, CE any] interface {
	Apply(agg A) []CE
}

// Runner is generic over the stored event type SE, the aggregate A folded
// from it, and the command event type CE appended to it. The same runner
// therefore serves a plain board log (SE == CE) and the composed log
// (SE a superset of CE) without change.
type Runner[SE, A, CE any] struct {
	log      eventlog.Log[SE]
	fold     func([]SE) A
	lift     func(CE) SE
	strategy Strategy
}

// New builds a runner. fold rebuilds the aggregate from a loaded sequence;
// lift widens a command event into the stored event type; a nil strategy
// means NoRetry.
func New[SE, A, CE any](
	log eventlog.Log[SE],
	fold func([]SE) A,
	lift func(CE) SE,
	strategy Strategy,
) *Runner[SE, A, CE] {
	return &Runner[SE, A, CE]{log: log, fold: fold, lift: lift, strategy: strategy}
}

// Execute runs one command against the board's log and returns the events it
// produced. Each attempt reloads the log, folds the aggregate, applies the
// command, and saves the loaded sequence extended by the new events. Save
// and load failures are retried per the strategy while they stay retryable;
// anything else aborts at once.
func (r *Runner[SE, A, CE]) Execute(ctx context.Context, key string, cmd Command[A, CE]) ([]CE, error) {
	pol := newPolicy(r.strategy)
	var lastErr error
	for {
		in := pol.next()
		if in.Abort {
			if lastErr == nil {
				lastErr = ErrAborted
			}
			return nil, lastErr
		}
		if in.Delay > 0 {
			if err := sleep(ctx, in.Delay); err != nil {
				return nil, err
			}
		}

		loaded, err := r.log.Load(ctx, key)
		if err != nil {
			lastErr = fmt.Errorf("load board %q: %w", key, err)
			if !eventlog.Retryable(err) {
				return nil, lastErr
			}
			slog.Debug("command load failed, consulting retry strategy", "board", key, "error", err)
			continue
		}

		agg := r.fold(loaded)
		events := cmd.Apply(agg)

		updated := make([]SE, len(loaded), len(loaded)+len(events))
		copy(updated, loaded)
		for _, ev := range events {
			updated = append(updated, r.lift(ev))
		}

		if _, err := r.log.Save(ctx, key, updated); err != nil {
			lastErr = fmt.Errorf("save board %q: %w", key, err)
			if !eventlog.Retryable(err) {
				return nil, lastErr
			}
			slog.Debug("command save failed, consulting retry strategy", "board", key, "error", err)
			continue
		}
		return events, nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
