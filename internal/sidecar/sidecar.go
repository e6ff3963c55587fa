// Package sidecar serializes board command execution: requests from every
// session funnel through one queue consumed by a single goroutine that owns
// the command runner, so commands on a deployment execute in arrival order.
// Running several sidecars partitioned by board key needs no API change.
package sidecar

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/notify"
	"github.com/mk-gloamglozer/rusty-poker/internal/runner"
)

// Executor runs one command transactionally against a board's log. The
// command runner over the composed log satisfies it.
type Executor interface {
	Execute(ctx context.Context, key string, cmd runner.Command[*board.Combined, board.Event]) ([]board.Event, error)
}

// Reply is the outcome delivered to a request's reply address. Err carries
// the execution failure; transports turn it into a generic client message.
type Reply struct {
	Key    string
	Events []board.Event
	Err    error
}

type request struct {
	key     string
	command board.Command
	reply   chan<- Reply
}

// Sidecar owns the runner and the request queue.
type Sidecar struct {
	executor  Executor
	publisher notify.Publisher
	requests  chan request

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a sidecar with a queue of queueSize pending requests. publisher
// receives a board-updated signal after each successful command; pass the
// no-op publisher to disable signalling.
func New(executor Executor, publisher notify.Publisher, queueSize int) *Sidecar {
	if queueSize <= 0 {
		queueSize = 256
	}
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &Sidecar{
		executor:  executor,
		publisher: publisher,
		requests:  make(chan request, queueSize),
	}
}

// Start launches the consumer goroutine.
func (s *Sidecar) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(runCtx)
	return nil
}

// Stop halts the consumer and waits for it to finish the request in flight.
func (s *Sidecar) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Submit enqueues a command for key, failing fast when the queue is full or
// the sidecar is stopped. reply may be nil for fire-and-forget submissions;
// a full or abandoned reply address drops the reply, never the consumer.
func (s *Sidecar) Submit(key string, cmd board.Command, reply chan<- Reply) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	select {
	case s.requests <- request{key: key, command: cmd, reply: reply}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Sidecar) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requests:
			s.handle(ctx, req)
		}
	}
}

func (s *Sidecar) handle(ctx context.Context, req request) {
	events, err := s.executor.Execute(ctx, req.key, req.command)
	if err != nil {
		slog.Error("command execution failed",
			"board", req.key,
			"command", commandName(req.command),
			"error", err,
		)
		s.deliver(req, Reply{Key: req.key, Err: err})
		return
	}

	slog.Debug("command executed",
		"board", req.key,
		"command", commandName(req.command),
		"events", len(events),
	)
	s.deliver(req, Reply{Key: req.key, Events: events})

	if err := s.publisher.Publish(ctx, notify.BoardSubject(req.key), notify.BoardUpdated{Key: req.key}); err != nil {
		slog.Warn("board update signal failed", "board", req.key, "error", err)
	}
}

func (s *Sidecar) deliver(req request, reply Reply) {
	if req.reply == nil {
		return
	}
	select {
	case req.reply <- reply:
	default:
		slog.Debug("command reply dropped", "board", req.key)
	}
}

func commandName(cmd board.Command) string {
	switch cmd.(type) {
	case board.AddParticipant:
		return "AddParticipant"
	case board.RemoveParticipant:
		return "RemoveParticipant"
	case board.CastVote:
		return "ParticipantVoted"
	case board.ClearVotes:
		return "ClearVotes"
	default:
		return "unknown"
	}
}
