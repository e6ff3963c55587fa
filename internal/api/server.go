// Package api is the HTTP surface: board commands, board views, the raw
// event sequence, an SSE update stream, and health. It holds no business
// logic; commands go through the sidecar and reads go to the event log.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/board/query"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventlog"
	"github.com/mk-gloamglozer/rusty-poker/internal/eventsource"
	"github.com/mk-gloamglozer/rusty-poker/internal/sidecar"
)

const (
	maxCommandBody = 1 << 20

	// commandTimeout bounds the wait for a sidecar reply; the queue is
	// strictly ordered, so a stuck store would otherwise hold the request
	// open indefinitely.
	commandTimeout = 10 * time.Second
)

// Server routes the HTTP API. The optional websocket handler is mounted
// under GET /ws/board/{id} so one handler serves the whole surface.
type Server struct {
	commands *sidecar.Sidecar
	store    eventlog.WatchLog[board.Event]
	router   *http.ServeMux
	log      *slog.Logger
}

// NewServer wires the routes. ws may be nil when the websocket surface is
// served elsewhere.
func NewServer(commands *sidecar.Sidecar, store eventlog.WatchLog[board.Event], ws http.Handler) *Server {
	s := &Server{
		commands: commands,
		store:    store,
		router:   http.NewServeMux(),
		log:      slog.Default(),
	}
	s.setupRoutes(ws)
	return s
}

func (s *Server) setupRoutes(ws http.Handler) {
	s.router.Handle("POST /board/{id}", s.corsMiddleware(http.HandlerFunc(s.executeCommand)))
	s.router.Handle("GET /board/{id}", s.corsMiddleware(http.HandlerFunc(s.getBoard)))
	s.router.Handle("GET /board/{id}/events", s.corsMiddleware(http.HandlerFunc(s.getEvents)))
	s.router.Handle("GET /board/{id}/updates", s.corsMiddleware(http.HandlerFunc(s.streamUpdates)))
	s.router.Handle("GET /health", s.corsMiddleware(http.HandlerFunc(s.healthCheck)))
	s.router.Handle("OPTIONS /", s.corsMiddleware(http.NotFoundHandler()))
	if ws != nil {
		s.router.Handle("GET /ws/board/{id}", ws)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// executeCommand handles POST /board/{id}. The body is one externally
// tagged board command; the response is the JSON array of events the
// command produced, rejections included.
func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	cmd, err := board.UnmarshalCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed command")
		return
	}
	// HTTP clients name participants; the server owns identity.
	if add, ok := cmd.(board.AddParticipant); ok && add.ParticipantID == "" {
		add.ParticipantID = uuid.NewString()
		cmd = add
	}

	reply := make(chan sidecar.Reply, 1)
	if err := s.commands.Submit(key, cmd, reply); err != nil {
		s.log.Warn("command not accepted", "board", key, "error", err)
		writeError(w, http.StatusServiceUnavailable, "command queue unavailable")
		return
	}

	select {
	case rep := <-reply:
		if rep.Err != nil {
			writeError(w, http.StatusInternalServerError, "command execution failed")
			return
		}
		raw, err := board.MarshalEvents(rep.Events)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "event encoding failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(raw)
	case <-r.Context().Done():
	case <-time.After(commandTimeout):
		writeError(w, http.StatusInternalServerError, "command timed out")
	}
}

// getBoard handles GET /board/{id}: the projected presentation of the
// board. A board with no events is not found.
func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	events, err := s.store.Load(r.Context(), key)
	if err != nil {
		s.log.Error("board load failed", "board", key, "error", err)
		writeError(w, http.StatusInternalServerError, "board load failed")
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "board not found")
		return
	}
	state := eventsource.Source[query.Board](events)
	writeJSON(w, http.StatusOK, state.Presentation())
}

// getEvents handles GET /board/{id}/events: the stored event sequence. An
// unknown board is an empty sequence, not an error.
func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	events, err := s.store.Load(r.Context(), key)
	if err != nil {
		s.log.Error("board load failed", "board", key, "error", err)
		writeError(w, http.StatusInternalServerError, "board load failed")
		return
	}
	raw, err := board.MarshalEvents(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "event encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
