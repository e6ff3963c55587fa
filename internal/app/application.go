// Package app assembles the server from configuration: event log backend,
// command runner, sidecar, broker, notifier, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mk-gloamglozer/rusty-poker/internal/api"
	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/broker"
	"github.com/mk-gloamglozer/rusty-poker/internal/config"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog/postgres"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog/sqlite"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventsource"
	"github.com/mk-gloamglozer/rusty-poker/internal/notify"
	"github.com/mk-gloamglozer/rusty-poker/internal/runner"
	"github.com/mk-gloamglozer/rusty-poker/internal/session"
	"github.com/mk-gloamglozer/rusty-poker/internal/sidecar"
)

const sqliteMaxConns = 10

// Application owns every component and their start/stop order.
type Application struct {
	cfg Config

	store      eventlog.WatchLog[board.Event]
	storeClose func()
	commands   *sidecar.Sidecar
	broker     *broker.Broker
	publisher  notify.Publisher
	subscriber *notify.NATSSubscriber

	httpServer *http.Server

	// sessions outlive their HTTP requests; cancelling sessionCtx ends
	// them all.
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	unsubscribe   func()

	log *slog.Logger
}

// Config aliases the configuration package's root type.
type Config = config.Config

// NewApplication builds every component in dependency order:
// store -> broker -> notifier -> runner -> sidecar -> HTTP.
func NewApplication(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, storeClose, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	fanout := broker.New(store, cfg.Broker.PollInterval.Duration)

	publishers := []notify.Publisher{signalPublisher{broker: fanout}}
	var subscriber *notify.NATSSubscriber
	if cfg.NATS.URL != "" {
		np, err := notify.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			storeClose()
			return nil, fmt.Errorf("connect notify publisher: %w", err)
		}
		sub, err := notify.NewNATSSubscriber(cfg.NATS.URL)
		if err != nil {
			_ = np.Close()
			storeClose()
			return nil, fmt.Errorf("connect notify subscriber: %w", err)
		}
		publishers = append(publishers, np)
		subscriber = sub
	}
	publisher := notify.Multi(publishers...)

	voteTypeEvents := make([]board.VoteTypeEvent, 0, len(cfg.VoteTypes))
	for _, vt := range cfg.VoteTypes {
		voteTypeEvents = append(voteTypeEvents, vt.Event())
	}
	composed := eventlog.NewComposed(eventlog.NewFixedVoteTypes(voteTypeEvents...), store)

	var strategy runner.Strategy = runner.NoRetry{}
	if cfg.Retry.Attempts > 0 {
		strategy = runner.FixedRetry{
			Retries: cfg.Retry.Attempts,
			Delay:   cfg.Retry.Delay.Duration,
		}
	}
	run := runner.New(
		composed,
		func(events []board.CombinedEvent) *board.Combined {
			return eventsource.Source[board.Combined](events)
		},
		board.Lift,
		strategy,
	)

	commands := sidecar.New(run, publisher, cfg.Sidecar.QueueSize)

	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	wsHandler := session.NewHandler(sessionCtx, fanout, commands, session.Config{
		PingInterval: cfg.Heartbeat.PingInterval.Duration,
		PongTimeout:  cfg.Heartbeat.PongTimeout.Duration,
	})
	server := api.NewServer(commands, store, wsHandler)

	return &Application{
		cfg:        cfg,
		store:      store,
		storeClose: storeClose,
		commands:   commands,
		broker:     fanout,
		publisher:  publisher,
		subscriber: subscriber,
		httpServer: &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: server,
		},
		sessionCtx:    sessionCtx,
		sessionCancel: sessionCancel,
		log:           slog.Default(),
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (eventlog.WatchLog[board.Event], func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return eventlog.NewMemory[board.Event](), func() {}, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLiteDSN, sqliteMaxConns)
		if err != nil {
			return nil, nil, err
		}
		return eventlog.NewWatched[board.Event](store), func() { _ = store.Close() }, nil
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return eventlog.NewWatched[board.Event](store), store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Start brings the components up: sidecar first so commands can land,
// broker next so sessions can subscribe, then the HTTP listener.
func (app *Application) Start(ctx context.Context) error {
	app.log.Info("starting server",
		"addr", app.httpServer.Addr,
		"backend", app.cfg.Store.Backend,
	)

	if err := app.commands.Start(ctx); err != nil {
		return fmt.Errorf("start command sidecar: %w", err)
	}
	if err := app.broker.Start(ctx); err != nil {
		_ = app.commands.Stop()
		return fmt.Errorf("start broker: %w", err)
	}
	if app.subscriber != nil {
		if err := app.startSignalPump(); err != nil {
			_ = app.broker.Stop()
			_ = app.commands.Stop()
			return fmt.Errorf("start notify pump: %w", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		app.teardown()
		return fmt.Errorf("http server: %w", err)
	case <-time.After(100 * time.Millisecond):
		app.log.Info("server started")
		return nil
	case <-ctx.Done():
		app.teardown()
		return ctx.Err()
	}
}

// startSignalPump relays peer instances' update signals into the broker.
func (app *Application) startSignalPump() error {
	ch, cancel, err := app.subscriber.Subscribe(notify.BoardWildcard())
	if err != nil {
		return err
	}
	app.unsubscribe = cancel
	go func() {
		for msg := range ch {
			if key, ok := notify.KeyFromSubject(msg.Subject); ok {
				app.broker.Signal(key)
			}
		}
	}()
	return nil
}

// Stop shuts down in reverse order: listener, sessions, notifier, broker,
// sidecar, store.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.log.Warn("http shutdown", "error", err)
	}
	app.teardown()

	app.log.Info("shutdown complete")
	return nil
}

func (app *Application) teardown() {
	app.sessionCancel()
	if app.unsubscribe != nil {
		app.unsubscribe()
		app.unsubscribe = nil
	}
	if app.subscriber != nil {
		_ = app.subscriber.Close()
	}
	if err := app.broker.Stop(); err != nil && !errors.Is(err, broker.ErrNotRunning) {
		app.log.Warn("broker stop", "error", err)
	}
	if err := app.commands.Stop(); err != nil && !errors.Is(err, sidecar.ErrNotRunning) {
		app.log.Warn("sidecar stop", "error", err)
	}
	if err := app.publisher.Close(); err != nil {
		app.log.Warn("publisher close", "error", err)
	}
	app.storeClose()
}

// Addr returns the configured listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
