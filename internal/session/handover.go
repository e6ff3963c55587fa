package session

import (
	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/board/query"
	"github.com/mk-gloamglozer/rusty-poker/internal/broker"
)

// outcome reports what a handover did with one live event.
type outcome int

const (
	// outcomeQueued: still waiting for the replay, event buffered.
	outcomeQueued outcome = iota
	// outcomeApplied: event folded into the live state.
	outcomeApplied
	// outcomeStale: position already covered, dropped.
	outcomeStale
	// outcomeGap: position beyond the next expected, a replay is needed.
	outcomeGap
)

// handover carries a session's query state across the replay boundary.
// Until the replay snapshot arrives, live events buffer in arrival order
// with their log positions. The snapshot is authoritative for the positions
// it covers; buffered events at or past its length apply afterwards, so
// every board event lands exactly once, in board order.
type handover struct {
	buffering bool
	queued    []broker.LiveEvent
	board     query.Board
	next      int
}

func newHandover() *handover {
	return &handover{buffering: true}
}

// live feeds one positioned event. In live mode the position must be the
// next expected; anything earlier is a duplicate, anything later means a
// drop happened and the caller must resync.
func (h *handover) live(ev broker.LiveEvent) outcome {
	if h.buffering {
		h.queued = append(h.queued, ev)
		return outcomeQueued
	}
	switch {
	case ev.Position < h.next:
		return outcomeStale
	case ev.Position > h.next:
		return outcomeGap
	}
	h.board.Apply(ev.Event)
	h.next++
	return outcomeApplied
}

// replay folds the snapshot from zero and then the buffered events beyond
// it. A hole between the snapshot and the buffer means events were dropped
// before the snapshot was taken; replay reports resync and the caller must
// request another one.
func (h *handover) replay(events []board.Event) (resync bool) {
	h.board = query.Board{}
	for _, ev := range events {
		h.board.Apply(ev)
	}
	h.next = len(events)
	for _, q := range h.queued {
		if q.Position < h.next {
			continue
		}
		if q.Position > h.next {
			h.reset()
			return true
		}
		h.board.Apply(q.Event)
		h.next++
	}
	h.queued = nil
	h.buffering = false
	return false
}

// reset drops all state and returns to buffering, pending a fresh replay.
func (h *handover) reset() {
	h.buffering = true
	h.queued = nil
	h.board = query.Board{}
	h.next = 0
}

// presentation projects the current state. Only meaningful in live mode.
func (h *handover) presentation() query.Presentation {
	return h.board.Presentation()
}
