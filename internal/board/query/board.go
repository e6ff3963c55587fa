// Package query projects board events into the client-facing view: who is on
// the board, who has voted, and the round's vote statistics.
package query

import (
	"github.com/mk-gloamglozer/rusty-poker/internal/board"
)

// Board is the query-side model. It tracks each participant's latest numeric
// vote (textual votes are discarded), how many participants have voted this
// round, and whether the round is complete. The zero value is an empty board.
type Board struct {
	order          []string
	participants   map[string]*participant
	numberVoted    int
	votingComplete bool
}

type participant struct {
	name  string
	vote  uint8
	voted bool
}

// Apply folds one event into the model. Negative events and events about
// unknown participants are no-ops, so folding any log prefix is total.
//
// voting_complete is monotone within a round: it is recomputed only when a
// vote lands, never lowered by later joins, and only VotesCleared resets it.
func (b *Board) Apply(ev board.Event) {
	switch e := ev.(type) {
	case board.ParticipantAdded:
		if p, ok := b.participants[e.ParticipantID]; ok {
			p.name = e.ParticipantName
			return
		}
		if b.participants == nil {
			b.participants = make(map[string]*participant)
		}
		b.participants[e.ParticipantID] = &participant{name: e.ParticipantName}
		b.order = append(b.order, e.ParticipantID)
	case board.ParticipantRemoved:
		if _, ok := b.participants[e.ParticipantID]; !ok {
			return
		}
		delete(b.participants, e.ParticipantID)
		for i, id := range b.order {
			if id == e.ParticipantID {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	case board.ParticipantVoted:
		p, ok := b.participants[e.ParticipantID]
		if !ok {
			return
		}
		value, ok := e.Vote.Value.(board.NumberValue)
		if !ok {
			return
		}
		if !p.voted {
			p.voted = true
			b.numberVoted++
		}
		p.vote = uint8(value)
		if !b.votingComplete && len(b.participants) > 0 {
			b.votingComplete = b.numberVoted >= len(b.participants)
		}
	case board.VotesCleared:
		for _, p := range b.participants {
			p.vote = 0
			p.voted = false
		}
		b.numberVoted = 0
		b.votingComplete = false
	}
}

// NumberVoted returns how many participants have voted this round.
func (b *Board) NumberVoted() int { return b.numberVoted }

// VotingComplete reports whether every participant has voted this round.
func (b *Board) VotingComplete() bool { return b.votingComplete }
