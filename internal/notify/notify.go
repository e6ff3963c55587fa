// Package notify publishes board-update signals so fan-out loops poll
// immediately instead of waiting out their tick. Signals are advisory; the
// poll loop works without them.
package notify

import (
	"context"
	"strings"
)

// Subject prefix for board updates; the board key is the last token.
const boardSubjectPrefix = "board.updated."

// BoardSubject returns the subject a board's updates are published on.
func BoardSubject(key string) string {
	return boardSubjectPrefix + key
}

// BoardWildcard matches every board's update subject.
func BoardWildcard() string {
	return boardSubjectPrefix + ">"
}

// KeyFromSubject recovers the board key from an update subject.
func KeyFromSubject(subject string) (string, bool) {
	key, ok := strings.CutPrefix(subject, boardSubjectPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// BoardUpdated is the payload published after a successful command.
type BoardUpdated struct {
	Key string `json:"key"`
}

// Publisher emits update signals.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
	Close() error
}

// Message is one received signal.
type Message struct {
	Subject string
	Data    []byte
}

// Subscriber receives update signals.
type Subscriber interface {
	// Subscribe returns a channel of messages for subject and a cancel
	// function. Slow consumers drop messages rather than block.
	Subscribe(subject string) (<-chan Message, func(), error)
}

// Multi fans each signal out to every publisher, returning the first error
// after all have been attempted.
func Multi(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

type multiPublisher []Publisher

func (m multiPublisher) Publish(ctx context.Context, subject string, v any) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, subject, v); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiPublisher) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NoopPublisher drops every signal. Used when no broker is configured; the
// fan-out loop then runs on its tick alone.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
