package eventlog

import (
	"context"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
)

// VoteTypeSource supplies the configuration-sourced vote-type events that
// precede every board's runtime log.
type VoteTypeSource interface {
	VoteTypes(ctx context.Context, key string) ([]board.VoteTypeEvent, error)
}

// FixedVoteTypes serves the same configured vote types for every key.
type FixedVoteTypes struct {
	events []board.VoteTypeEvent
}

// NewFixedVoteTypes builds a source over a fixed list.
func NewFixedVoteTypes(events ...board.VoteTypeEvent) *FixedVoteTypes {
	return &FixedVoteTypes{events: events}
}

// DefaultVoteTypes is the out-of-the-box configuration: vote type "1"
// accepting any number.
func DefaultVoteTypes() *FixedVoteTypes {
	return NewFixedVoteTypes(board.VoteTypeAdded{
		VoteTypeID: "1",
		Validation: board.AnyNumber,
	})
}

func (s *FixedVoteTypes) VoteTypes(context.Context, string) ([]board.VoteTypeEvent, error) {
	return copySeq(s.events), nil
}

// Composed joins a vote-type source with a board's runtime log. Loads return
// the configured vote-type events followed by the board events, so commands
// always validate against the configured vote types. Saves keep only the
// board events; vote-type events never reach the runtime log.
type Composed struct {
	config VoteTypeSource
	log    Log[board.Event]
}

// NewComposed builds the composed log the command runner executes against.
func NewComposed(config VoteTypeSource, log Log[board.Event]) *Composed {
	return &Composed{config: config, log: log}
}

func (c *Composed) Load(ctx context.Context, key string) ([]board.CombinedEvent, error) {
	voteTypes, err := c.config.VoteTypes(ctx, key)
	if err != nil {
		return nil, err
	}
	events, err := c.log.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	combined := make([]board.CombinedEvent, 0, len(voteTypes)+len(events))
	for _, ev := range voteTypes {
		combined = append(combined, ev)
	}
	for _, ev := range events {
		combined = append(combined, ev)
	}
	return combined, nil
}

func (c *Composed) Save(ctx context.Context, key string, events []board.CombinedEvent) ([]board.CombinedEvent, error) {
	filtered := make([]board.Event, 0, len(events))
	for _, ev := range events {
		if be, ok := ev.(board.Event); ok {
			filtered = append(filtered, be)
		}
	}
	saved, err := c.log.Save(ctx, key, filtered)
	if err != nil {
		return nil, err
	}
	lifted := make([]board.CombinedEvent, len(saved))
	for i, ev := range saved {
		lifted[i] = ev
	}
	return lifted, nil
}
