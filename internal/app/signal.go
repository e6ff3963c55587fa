package app

import (
	"context"

	"github.com/mk-gloamglozer/rusty-poker/internal/broker"
	"github.com/mk-gloamglozer/rusty-poker/internal/notify"
)

// signalPublisher short-circuits update signals to the in-process broker,
// so single-instance deployments fan out without a wire hop.
type signalPublisher struct {
	broker *broker.Broker
}

func (p signalPublisher) Publish(_ context.Context, subject string, _ any) error {
	if key, ok := notify.KeyFromSubject(subject); ok {
		p.broker.Signal(key)
	}
	return nil
}

func (p signalPublisher) Close() error { return nil }
