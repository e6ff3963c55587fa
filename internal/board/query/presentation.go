package query

import "sort"

// Presentation is the JSON view pushed to clients. The statistics fields are
// present only when the round is complete and at least one non-zero vote was
// cast; zero votes (abstentions) never contribute to them.
type Presentation struct {
	Participants   []ParticipantView `json:"participants"`
	VotingComplete bool              `json:"voting_complete"`
	Average        *uint8            `json:"average,omitempty"`
	Max            *uint8            `json:"max,omitempty"`
	Min            *uint8            `json:"min,omitempty"`
}

// ParticipantView is one participant in the presentation; Vote is absent
// until they have voted this round.
type ParticipantView struct {
	Name string `json:"name"`
	Vote *uint8 `json:"vote,omitempty"`
}

// Presentation projects the board into its client-facing view. Participants
// keep join order.
func (b *Board) Presentation() Presentation {
	view := Presentation{
		Participants:   make([]ParticipantView, 0, len(b.order)),
		VotingComplete: b.votingComplete,
	}
	var cast []uint8
	for _, id := range b.order {
		p := b.participants[id]
		pv := ParticipantView{Name: p.name}
		if p.voted {
			vote := p.vote
			pv.Vote = &vote
			if vote > 0 {
				cast = append(cast, vote)
			}
		}
		view.Participants = append(view.Participants, pv)
	}
	if !b.votingComplete || len(cast) == 0 {
		return view
	}
	sort.Slice(cast, func(i, j int) bool { return cast[i] < cast[j] })
	low, high, mid := cast[0], cast[len(cast)-1], cast[len(cast)/2]
	view.Min = &low
	view.Max = &high
	view.Average = &mid
	return view
}
