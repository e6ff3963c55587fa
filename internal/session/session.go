// Package session runs one WebSocket session per connected client. A session
// joins its board as a participant, funnels the client's vote frames through
// the command sidecar, and folds the broker's event feed into the query
// model, pushing a fresh presentation whenever the projected state changes.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/mk-gloamglozer/rusty-poker/internal/board"
	"github.com/mk-gloamglozer/rusty-poker/internal/board/query"
	"github.com/mk-gloamglozer/rusty-poker/internal/broker"
	"github.com/mk-gloamglozer/rusty-poker/internal/sidecar"
)

// Client and server frame names. Frames are externally tagged the same way
// board events are.
const (
	frameVote   = "ParticipantVoted"
	frameReplay = "Replay"

	frameQueryUpdated  = "QueryUpdated"
	frameCommandResult = "CommandResult"
	frameError         = "Error"
)

// Vote frames always target the default vote type.
const defaultVoteTypeID = "1"

// inbound is one decoded client frame. A frame that could not be decoded
// carries the complaint in bad.
type inbound struct {
	cmd    board.Command
	replay bool
	bad    string
}

// Session is one client's connection to a board.
type Session struct {
	boardKey      string
	participantID string
	name          string

	conn     *Conn
	broker   *broker.Broker
	commands *sidecar.Sidecar

	pingInterval time.Duration
	pongTimeout  time.Duration

	log *slog.Logger
}

// run drives the session until the client disconnects, the heartbeat
// expires, or ctx is cancelled. It owns the participant lifecycle: the
// participant joins the board on entry and leaves on every exit path.
func (s *Session) run(ctx context.Context) {
	defer s.conn.Close()

	messages := make(chan broker.Message, 64)
	id := s.broker.Connect(s.boardKey, messages)
	defer s.broker.Disconnect(id)

	replies := make(chan sidecar.Reply, 8)
	join := board.AddParticipant{ParticipantID: s.participantID, ParticipantName: s.name}
	if err := s.commands.Submit(s.boardKey, join, replies); err != nil {
		s.log.Warn("join rejected", "error", err)
		return
	}
	defer func() {
		leave := board.RemoveParticipant{ParticipantID: s.participantID}
		if err := s.commands.Submit(s.boardKey, leave, nil); err != nil {
			s.log.Debug("leave not submitted", "error", err)
		}
	}()

	// Bootstrap: the first snapshot brings the board's full prefix.
	if err := s.broker.Replay(id); err != nil {
		s.log.Warn("replay request failed", "error", err)
		return
	}

	if err := s.conn.ExpectPong(s.pongTimeout); err != nil {
		s.log.Debug("heartbeat setup failed", "error", err)
		return
	}
	frames := make(chan inbound, 16)
	readErr := make(chan error, 1)
	go s.readPump(frames, readErr)

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	state := newHandover()
	var last query.Presentation
	pushed := false

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			s.log.Debug("session closed", "reason", err)
			return

		case frame := <-frames:
			switch {
			case frame.bad != "":
				s.writeFrame(frameError, frame.bad)
			case frame.replay:
				state.reset()
				if err := s.broker.Replay(id); err != nil {
					s.log.Warn("replay request failed", "error", err)
					return
				}
			default:
				if err := s.commands.Submit(s.boardKey, frame.cmd, replies); err != nil {
					s.writeFrame(frameError, "command rejected")
					s.log.Warn("command not submitted", "error", err)
				}
			}

		case reply := <-replies:
			if reply.Err != nil {
				s.writeFrame(frameError, "command failed")
				continue
			}
			s.writeEvents(reply.Events)

		case msg := <-messages:
			switch m := msg.(type) {
			case broker.LiveEvent:
				switch state.live(m) {
				case outcomeApplied:
					pushed = s.pushIfChanged(state, &last, pushed)
				case outcomeGap:
					s.log.Debug("event gap, resyncing", "position", m.Position)
					state.reset()
					if err := s.broker.Replay(id); err != nil {
						s.log.Warn("replay request failed", "error", err)
						return
					}
				}
			case broker.ReplaySnapshot:
				if state.replay(m.Events) {
					s.log.Debug("stale replay, resyncing")
					if err := s.broker.Replay(id); err != nil {
						s.log.Warn("replay request failed", "error", err)
						return
					}
					continue
				}
				pushed = s.pushIfChanged(state, &last, pushed)
			}

		case <-ticker.C:
			if err := s.conn.Ping(s.pongTimeout); err != nil {
				s.log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// readPump decodes client frames until the connection fails. The heartbeat
// read deadline surfaces here as a read error.
func (s *Session) readPump(frames chan<- inbound, readErr chan<- error) {
	for {
		data, err := s.conn.Read()
		if err != nil {
			readErr <- err
			return
		}
		frame := s.decodeFrame(data)
		select {
		case frames <- frame:
		case <-s.conn.Done():
			return
		}
	}
}

func (s *Session) decodeFrame(data []byte) inbound {
	name, payload, err := board.SplitTagged(data)
	if err != nil {
		return inbound{bad: "malformed frame"}
	}
	switch name {
	case frameVote:
		var body struct {
			Vote uint8 `json:"vote"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return inbound{bad: "malformed vote"}
		}
		return inbound{cmd: board.CastVote{
			ParticipantID: s.participantID,
			Vote: board.Vote{
				VoteTypeID: defaultVoteTypeID,
				Value:      board.NumberValue(body.Vote),
			},
		}}
	case frameReplay:
		return inbound{replay: true}
	default:
		return inbound{bad: fmt.Sprintf("unknown frame %q", name)}
	}
}

// pushIfChanged sends QueryUpdated when the presentation differs from the
// last one sent. The first projection after a replay always goes out.
func (s *Session) pushIfChanged(state *handover, last *query.Presentation, pushed bool) bool {
	view := state.presentation()
	if pushed && reflect.DeepEqual(view, *last) {
		return pushed
	}
	s.writeFrame(frameQueryUpdated, view)
	*last = view
	return true
}

func (s *Session) writeEvents(events []board.Event) {
	encoded, err := board.MarshalEvents(events)
	if err != nil {
		s.log.Error("event encoding failed", "error", err)
		return
	}
	s.writeFrame(frameCommandResult, json.RawMessage(encoded))
}

func (s *Session) writeFrame(name string, payload any) {
	data, err := board.Tagged(name, payload)
	if err != nil {
		s.log.Error("frame encoding failed", "frame", name, "error", err)
		return
	}
	if err := s.conn.Write(data); err != nil {
		s.log.Debug("frame dropped", "frame", name, "error", err)
	}
}
