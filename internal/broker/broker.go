// Package broker fans board events out to connected sessions. It keeps one
// row per board that has subscribers, polls the event log on a tick (or
// sooner when signalled), and pushes each new event to every subscriber in
// board order. Sessions bootstrap by requesting a replay of the full prefix.
package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
)

// Message is what subscribers receive on their address channel.
type Message interface {
	isMessage()
}

// LiveEvent is one new board event at its log position. Positions let a
// session spot drops and deduplicate against a replay.
type LiveEvent struct {
	Position int
	Event    board.Event
}

// ReplaySnapshot is the board's full known prefix, sent in answer to a
// replay request.
type ReplaySnapshot struct {
	Events []board.Event
}

func (LiveEvent) isMessage()      {}
func (ReplaySnapshot) isMessage() {}

// SessionID identifies one subscription.
type SessionID string

const sessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func newSessionID() SessionID {
	return SessionID("ses-" + gonanoid.MustGenerate(sessionIDAlphabet, 10))
}

type rowState int

const (
	rowEmpty rowState = iota
	rowReplay
	rowLoaded
)

// boardRow is the broker's view of one board. Callers hold the broker mutex.
//
//	empty  + update  -> loaded, the first snapshot counts as already seen
//	empty  + replay  -> replay, request parked until the first snapshot
//	replay + update  -> snapshot to every waiter, then loaded
//	replay + replay  -> park another waiter
//	loaded + update  -> replace events, loc unchanged
//	loaded + replay  -> snapshot immediately
type boardRow struct {
	state   rowState
	events  []board.Event
	loc     int
	subs    map[SessionID]chan<- Message
	waiters []chan<- Message
}

func newBoardRow() *boardRow {
	return &boardRow{subs: make(map[SessionID]chan<- Message)}
}

func (r *boardRow) updateEvents(key string, events []board.Event) {
	switch r.state {
	case rowEmpty:
		r.events = events
		r.loc = len(events)
		r.state = rowLoaded
	case rowReplay:
		for _, addr := range r.waiters {
			send(addr, ReplaySnapshot{Events: events}, key)
		}
		r.waiters = nil
		r.events = events
		r.loc = len(events)
		r.state = rowLoaded
	case rowLoaded:
		r.events = events
	}
}

func (r *boardRow) broadcastChanges(key string) {
	if r.state != rowLoaded {
		return
	}
	for position := r.loc; position < len(r.events); position++ {
		for _, addr := range r.subs {
			send(addr, LiveEvent{Position: position, Event: r.events[position]}, key)
		}
	}
	r.loc = len(r.events)
}

func (r *boardRow) replayOnto(key string, addr chan<- Message) {
	switch r.state {
	case rowEmpty:
		r.waiters = append(r.waiters, addr)
		r.state = rowReplay
	case rowReplay:
		r.waiters = append(r.waiters, addr)
	case rowLoaded:
		send(addr, ReplaySnapshot{Events: r.events}, key)
	}
}

// send never blocks the broker on a slow subscriber; a dropped live event
// shows up as a position gap and the session resyncs with a replay.
func send(addr chan<- Message, msg Message, key string) {
	select {
	case addr <- msg:
	default:
		slog.Debug("subscriber channel full, message dropped", "board", key)
	}
}

// Broker owns the rows and the poll loop.
type Broker struct {
	loader       eventlog.Loader[board.Event]
	pollInterval time.Duration
	signals      chan string

	mu       sync.Mutex
	rows     map[string]*boardRow
	sessions map[SessionID]string

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a broker polling loader every pollInterval.
func New(loader eventlog.Loader[board.Event], pollInterval time.Duration) *Broker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Broker{
		loader:       loader,
		pollInterval: pollInterval,
		signals:      make(chan string, 64),
		rows:         make(map[string]*boardRow),
		sessions:     make(map[SessionID]string),
	}
}

// Connect subscribes addr to a board's events and returns the session id.
// The first snapshot is treated as already seen; call Replay to bootstrap.
func (b *Broker) Connect(key string, addr chan<- Message) SessionID {
	id := newSessionID()
	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[key]
	if !ok {
		row = newBoardRow()
		b.rows[key] = row
	}
	row.subs[id] = addr
	b.sessions[id] = key
	return id
}

// Disconnect drops the subscription; the board's row goes with it when the
// last subscriber leaves.
func (b *Broker) Disconnect(id SessionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.sessions[id]
	if !ok {
		return
	}
	delete(b.sessions, id)
	row, ok := b.rows[key]
	if !ok {
		return
	}
	delete(row.subs, id)
	if len(row.subs) == 0 {
		delete(b.rows, key)
	}
}

// Replay asks for the session's board prefix. The snapshot arrives on the
// session's address channel, immediately when the row is loaded, otherwise
// after the next poll.
func (b *Broker) Replay(id SessionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key, ok := b.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	row, ok := b.rows[key]
	if !ok {
		return ErrUnknownSession
	}
	addr, ok := row.subs[id]
	if !ok {
		return ErrUnknownSession
	}
	row.replayOnto(key, addr)
	return nil
}

// Signal asks for an immediate poll of one board, ahead of the tick. It
// never blocks; a dropped signal is covered by the next tick.
func (b *Broker) Signal(key string) {
	select {
	case b.signals <- key:
	default:
	}
}

// Start launches the poll loop.
func (b *Broker) Start(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	go b.run(runCtx)
	return nil
}

// Stop halts the poll loop and waits for it.
func (b *Broker) Stop() error {
	b.runMu.Lock()
	if !b.running {
		b.runMu.Unlock()
		return ErrNotRunning
	}
	b.running = false
	cancel, done := b.cancel, b.done
	b.runMu.Unlock()

	cancel()
	<-done
	return nil
}

func (b *Broker) run(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, key := range b.subscribedBoards() {
				b.poll(ctx, key)
			}
		case key := <-b.signals:
			b.poll(ctx, key)
		}
	}
}

func (b *Broker) subscribedBoards() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.rows))
	for key := range b.rows {
		keys = append(keys, key)
	}
	return keys
}

// poll loads one board and pushes what changed. The load runs outside the
// row lock; a row that disappeared while loading is simply skipped.
func (b *Broker) poll(ctx context.Context, key string) {
	events, err := b.loader.Load(ctx, key)
	if err != nil {
		slog.Warn("board poll failed", "board", key, "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	row, ok := b.rows[key]
	if !ok {
		return
	}
	row.updateEvents(key, events)
	row.broadcastChanges(key)
}
