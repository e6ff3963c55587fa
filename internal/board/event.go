// Package board defines the planning-poker event vocabulary, the commands
// that produce events, and the command-side models folded from them.
package board

// Event is a single recorded change on a board's log. The variant set is
// closed; dispatch is a type switch. Negative variants record rejected
// commands and never change model state.
type Event interface {
	CombinedEvent
	isBoardEvent()
}

// NotAddedReason explains a rejected AddParticipant command.
type NotAddedReason string

// NotRemovedReason explains a rejected RemoveParticipant command.
type NotRemovedReason string

const (
	NotAddedAlreadyExists  NotAddedReason   = "AlreadyExists"
	NotRemovedDoesNotExist NotRemovedReason = "DoesNotExist"
)

// ParticipantAdded records a participant joining the board.
type ParticipantAdded struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
}

// ParticipantNotAdded is the negative outcome of an AddParticipant command.
type ParticipantNotAdded struct {
	ParticipantID string         `json:"participant_id"`
	Reason        NotAddedReason `json:"reason"`
}

// ParticipantRemoved records a participant leaving the board.
type ParticipantRemoved struct {
	ParticipantID string `json:"participant_id"`
}

// ParticipantCouldNotBeRemoved is the negative outcome of a
// RemoveParticipant command.
type ParticipantCouldNotBeRemoved struct {
	ParticipantID string           `json:"participant_id"`
	Reason        NotRemovedReason `json:"reason"`
}

// ParticipantVoted records a cast vote.
type ParticipantVoted struct {
	ParticipantID string `json:"participant_id"`
	Vote          Vote   `json:"vote"`
}

// ParticipantCouldNotVote is the negative outcome of a CastVote command.
// Reasons holds every validation failure, in validation order.
type ParticipantCouldNotVote struct {
	ParticipantID string           `json:"participant_id"`
	Reasons       []NotVotedReason `json:"reasons"`
}

// VotesCleared records the start of a new voting round.
type VotesCleared struct{}

func (ParticipantAdded) isBoardEvent()             {}
func (ParticipantNotAdded) isBoardEvent()          {}
func (ParticipantRemoved) isBoardEvent()           {}
func (ParticipantCouldNotBeRemoved) isBoardEvent() {}
func (ParticipantVoted) isBoardEvent()             {}
func (ParticipantCouldNotVote) isBoardEvent()      {}
func (VotesCleared) isBoardEvent()                 {}

// NotVotedReason is one reason a vote was rejected. The variant set is
// closed: ParticipantDoesNotExist, VoteTypeDoesNotExist, InvalidVote.
type NotVotedReason interface {
	isNotVotedReason()
}

// ParticipantDoesNotExist rejects a vote from an id not on the board.
type ParticipantDoesNotExist struct{}

// VoteTypeDoesNotExist rejects a vote naming an unconfigured vote type.
type VoteTypeDoesNotExist struct {
	VoteTypeID string
}

// InvalidVote rejects a vote whose value fails the vote type's validation.
type InvalidVote struct {
	Expected string `json:"expected"`
	Received string `json:"received"`
}

func (ParticipantDoesNotExist) isNotVotedReason() {}
func (VoteTypeDoesNotExist) isNotVotedReason()    {}
func (InvalidVote) isNotVotedReason()             {}

// Vote is a cast value against a configured vote type.
type Vote struct {
	VoteTypeID string    `json:"vote_type_id"`
	Value      VoteValue `json:"value"`
}

// VoteValue is the value of a vote: a number or free text.
type VoteValue interface {
	isVoteValue()
}

// NumberValue is a numeric vote in 0..=255.
type NumberValue uint8

// StringValue is a textual vote. Query projections discard these.
type StringValue string

func (NumberValue) isVoteValue() {}
func (StringValue) isVoteValue() {}

// VoteTypeEvent is a configuration-sourced event describing the vote types
// available on every board. These are never appended at runtime.
type VoteTypeEvent interface {
	CombinedEvent
	isVoteTypeEvent()
}

// VoteTypeAdded declares a vote type and its validation rule.
type VoteTypeAdded struct {
	VoteTypeID string     `json:"vote_type_id"`
	Validation Validation `json:"vote_validation"`
}

func (VoteTypeAdded) isVoteTypeEvent() {}

// CombinedEvent is a stored event on the composed log: either a vote-type
// event or a board event.
type CombinedEvent interface {
	isCombinedEvent()
}

func (ParticipantAdded) isCombinedEvent()             {}
func (ParticipantNotAdded) isCombinedEvent()          {}
func (ParticipantRemoved) isCombinedEvent()           {}
func (ParticipantCouldNotBeRemoved) isCombinedEvent() {}
func (ParticipantVoted) isCombinedEvent()             {}
func (ParticipantCouldNotVote) isCombinedEvent()      {}
func (VotesCleared) isCombinedEvent()                 {}
func (VoteTypeAdded) isCombinedEvent()                {}

// Lift widens a board event to a combined stored event.
func Lift(ev Event) CombinedEvent { return ev }
