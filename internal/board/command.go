package board

// Command is a request to change a board. Apply is pure: it inspects the
// aggregate and returns the resulting events. Validation failures come back
// as negative events, never as errors.
type Command interface {
	Apply(agg *Combined) []Event
}

// AddParticipant puts a named participant on the board. Transports fill
// ParticipantID before submitting; an id already on the board is rejected.
type AddParticipant struct {
	ParticipantID   string `json:"participant_id,omitempty"`
	ParticipantName string `json:"participant_name"`
}

func (c AddParticipant) Apply(agg *Combined) []Event {
	if agg.Board.HasParticipant(c.ParticipantID) {
		return []Event{ParticipantNotAdded{
			ParticipantID: c.ParticipantID,
			Reason:        NotAddedAlreadyExists,
		}}
	}
	return []Event{ParticipantAdded{
		ParticipantID:   c.ParticipantID,
		ParticipantName: c.ParticipantName,
	}}
}

// RemoveParticipant takes a participant off the board.
type RemoveParticipant struct {
	ParticipantID string `json:"participant_id"`
}

func (c RemoveParticipant) Apply(agg *Combined) []Event {
	if !agg.Board.HasParticipant(c.ParticipantID) {
		return []Event{ParticipantCouldNotBeRemoved{
			ParticipantID: c.ParticipantID,
			Reason:        NotRemovedDoesNotExist,
		}}
	}
	return []Event{ParticipantRemoved{ParticipantID: c.ParticipantID}}
}

// CastVote records a participant's vote. Every failed check lands in the
// rejection: vote validity first, participant existence second.
type CastVote struct {
	ParticipantID string `json:"participant_id"`
	Vote          Vote   `json:"vote"`
}

func (c CastVote) Apply(agg *Combined) []Event {
	var reasons []NotVotedReason
	rule, ok := agg.VoteTypes.Validation(c.Vote.VoteTypeID)
	switch {
	case !ok:
		reasons = append(reasons, VoteTypeDoesNotExist{VoteTypeID: c.Vote.VoteTypeID})
	case !rule.Accepts(c.Vote.Value):
		reasons = append(reasons, InvalidVote{
			Expected: rule.Expects(),
			Received: Describe(c.Vote.Value),
		})
	}
	if !agg.Board.HasParticipant(c.ParticipantID) {
		reasons = append(reasons, ParticipantDoesNotExist{})
	}
	if len(reasons) > 0 {
		return []Event{ParticipantCouldNotVote{
			ParticipantID: c.ParticipantID,
			Reasons:       reasons,
		}}
	}
	return []Event{ParticipantVoted{ParticipantID: c.ParticipantID, Vote: c.Vote}}
}

// ClearVotes starts a new voting round. It never fails.
type ClearVotes struct{}

func (ClearVotes) Apply(*Combined) []Event {
	return []Event{VotesCleared{}}
}
