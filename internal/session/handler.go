package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mk-gloamglozer/rusty-poker/internal/broker"
	"github.com/mk-gloamglozer/rusty-poker/internal/sidecar"
)

const maxNameLength = 200

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is deployment policy; the reference deployment
		// sits behind a reverse proxy that enforces it.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Config carries the heartbeat settings shared by every session.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 5 * time.Second
	}
	return c
}

// Handler upgrades board WebSocket requests and launches a session per
// connection. Sessions outlive their HTTP request and stop when base is
// cancelled.
type Handler struct {
	base     context.Context
	broker   *broker.Broker
	commands *sidecar.Sidecar
	cfg      Config
	log      *slog.Logger
}

// NewHandler builds the handler. base bounds every session's lifetime.
func NewHandler(base context.Context, b *broker.Broker, commands *sidecar.Sidecar, cfg Config) *Handler {
	return &Handler{
		base:     base,
		broker:   b,
		commands: commands,
		cfg:      cfg.withDefaults(),
		log:      slog.Default(),
	}
}

// ServeHTTP handles GET /ws/board/{id}. Parameter validation happens before
// the upgrade so clients get plain HTTP errors.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	if key == "" {
		http.Error(w, "missing board id", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, ErrMissingName.Error(), http.StatusBadRequest)
		return
	}
	if len(name) > maxNameLength {
		http.Error(w, ErrNameTooLong.Error(), http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "board", key, "error", err)
		return
	}

	sess := &Session{
		boardKey:      key,
		participantID: uuid.NewString(),
		name:          name,
		conn:          NewConn(ws),
		broker:        h.broker,
		commands:      h.commands,
		pingInterval:  h.cfg.PingInterval,
		pongTimeout:   h.cfg.PongTimeout,
		log: h.log.With(
			"board", key,
			"participant", name,
		),
	}
	h.log.Info("session opened", "board", key, "participant", name)
	go sess.run(h.base)
}
