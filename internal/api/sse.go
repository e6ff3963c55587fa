package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mk-gloamglozer/rusty-poker/internal/board/query"
)

const (
	// sseKeepaliveInterval is how often keepalive comments go out on an
	// idle stream so intermediaries keep the connection open.
	sseKeepaliveInterval = 15 * time.Second

	sseEventName = "QueryUpdated"
)

// streamUpdates handles GET /board/{id}/updates: an SSE stream of board
// presentations. It pulls the store directly with blocking update loads,
// one consumer loop per stream; the event id is the log position the
// presentation reflects, and Last-Event-ID resumes from that position.
func (s *Server) streamUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	key := r.PathValue("id")

	resume := -1
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		n, err := strconv.Atoi(last)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "malformed Last-Event-ID")
			return
		}
		resume = n
	}

	ctx := r.Context()
	events, err := s.store.Load(ctx, key)
	if err != nil {
		s.log.Error("board load failed", "board", key, "error", err)
		writeError(w, http.StatusInternalServerError, "board load failed")
		return
	}
	if resume > len(events) {
		writeError(w, http.StatusBadRequest, "Last-Event-ID beyond end of log")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var state query.Board
	for _, ev := range events {
		state.Apply(ev)
	}
	pos := len(events)

	// A fresh consumer always gets the current view; a resumed one only
	// when the log moved past its last seen position.
	if resume < pos {
		if err := writeUpdate(w, pos, state.Presentation()); err != nil {
			return
		}
		flusher.Flush()
	}

	for {
		waitCtx, cancel := context.WithTimeout(ctx, sseKeepaliveInterval)
		tail, err := s.store.LoadUpdate(waitCtx, key, pos)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				fmt.Fprintf(w, ":keepalive\n\n")
				flusher.Flush()
				continue
			}
			s.log.Warn("update stream broken", "board", key, "error", err)
			return
		}
		for _, ev := range tail {
			state.Apply(ev)
		}
		pos += len(tail)
		if err := writeUpdate(w, pos, state.Presentation()); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeUpdate(w http.ResponseWriter, id int, view query.Presentation) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id:%d\n", id)
	fmt.Fprintf(w, "event:%s\n", sseEventName)
	_, err = fmt.Fprintf(w, "data:%s\n\n", data)
	return err
}
