package board

// Board is the command-side model: the set of participants currently on the
// board. The zero value is an empty board.
type Board struct {
	participants map[string]string
}

// Apply folds one event into the board. Negative events are no-ops.
func (b *Board) Apply(ev Event) {
	switch e := ev.(type) {
	case ParticipantAdded:
		if b.participants == nil {
			b.participants = make(map[string]string)
		}
		b.participants[e.ParticipantID] = e.ParticipantName
	case ParticipantRemoved:
		delete(b.participants, e.ParticipantID)
	}
}

// HasParticipant reports whether id is on the board.
func (b *Board) HasParticipant(id string) bool {
	_, ok := b.participants[id]
	return ok
}

// ParticipantCount returns the number of participants on the board.
func (b *Board) ParticipantCount() int {
	return len(b.participants)
}

// VoteTypes is the command-side model of the configured vote types. The zero
// value has none.
type VoteTypes struct {
	validations map[string]Validation
}

// Apply folds one vote-type event into the model.
func (v *VoteTypes) Apply(ev VoteTypeEvent) {
	switch e := ev.(type) {
	case VoteTypeAdded:
		if v.validations == nil {
			v.validations = make(map[string]Validation)
		}
		v.validations[e.VoteTypeID] = e.Validation
	}
}

// Validation returns the rule for a vote type id, if configured.
func (v *VoteTypes) Validation(id string) (Validation, bool) {
	rule, ok := v.validations[id]
	return rule, ok
}

// Combined pairs the vote-type model with the board model. It is the
// aggregate commands validate against on the composed log.
type Combined struct {
	VoteTypes VoteTypes
	Board     Board
}

// Apply dispatches a stored event to the matching side.
func (c *Combined) Apply(ev CombinedEvent) {
	switch e := ev.(type) {
	case VoteTypeAdded:
		c.VoteTypes.Apply(e)
	default:
		if be, ok := ev.(Event); ok {
			c.Board.Apply(be)
		}
	}
}
