package board

import (
	"reflect"
	"testing"
)

func defaultAggregate(events ...Event) *Combined {
	agg := &Combined{}
	agg.Apply(VoteTypeAdded{VoteTypeID: "1", Validation: AnyNumber})
	for _, ev := range events {
		agg.Apply(ev)
	}
	return agg
}

func numberVote(n uint8) Vote {
	return Vote{VoteTypeID: "1", Value: NumberValue(n)}
}

// TestAddParticipant_NewAndDuplicate verifies a join lands once and a second
// join with the same id is rejected without touching the board.
func TestAddParticipant_NewAndDuplicate(t *testing.T) {
	agg := defaultAggregate()

	events := AddParticipant{ParticipantID: "p1", ParticipantName: "Ann"}.Apply(agg)
	want := []Event{ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("add participant produced %+v, want %+v", events, want)
	}

	for _, ev := range events {
		agg.Apply(ev)
	}
	events = AddParticipant{ParticipantID: "p1", ParticipantName: "Ann again"}.Apply(agg)
	want = []Event{ParticipantNotAdded{ParticipantID: "p1", Reason: NotAddedAlreadyExists}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("duplicate add produced %+v, want %+v", events, want)
	}
}

// TestRemoveParticipant covers removal of present and absent participants.
func TestRemoveParticipant(t *testing.T) {
	agg := defaultAggregate(ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"})

	events := RemoveParticipant{ParticipantID: "p1"}.Apply(agg)
	want := []Event{ParticipantRemoved{ParticipantID: "p1"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("remove produced %+v, want %+v", events, want)
	}

	events = RemoveParticipant{ParticipantID: "ghost"}.Apply(agg)
	want = []Event{ParticipantCouldNotBeRemoved{ParticipantID: "ghost", Reason: NotRemovedDoesNotExist}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("remove of unknown produced %+v, want %+v", events, want)
	}
}

// TestCastVote_Valid verifies a known participant voting a number against
// the default vote type produces the vote event.
func TestCastVote_Valid(t *testing.T) {
	agg := defaultAggregate(ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"})

	events := CastVote{ParticipantID: "p1", Vote: numberVote(3)}.Apply(agg)
	want := []Event{ParticipantVoted{ParticipantID: "p1", Vote: numberVote(3)}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("vote produced %+v, want %+v", events, want)
	}
}

// TestCastVote_UnknownParticipant verifies a structurally valid vote from an
// unknown participant is rejected with only the existence reason.
func TestCastVote_UnknownParticipant(t *testing.T) {
	agg := defaultAggregate()

	events := CastVote{ParticipantID: "ghost", Vote: numberVote(1)}.Apply(agg)
	want := []Event{ParticipantCouldNotVote{
		ParticipantID: "ghost",
		Reasons:       []NotVotedReason{ParticipantDoesNotExist{}},
	}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unknown participant vote produced %+v, want %+v", events, want)
	}
}

// TestCastVote_UnknownVoteType verifies an existing participant voting
// against an unconfigured vote type gets the vote-type reason.
func TestCastVote_UnknownVoteType(t *testing.T) {
	agg := defaultAggregate(ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"})

	events := CastVote{
		ParticipantID: "p1",
		Vote:          Vote{VoteTypeID: "bad", Value: NumberValue(1)},
	}.Apply(agg)
	want := []Event{ParticipantCouldNotVote{
		ParticipantID: "p1",
		Reasons:       []NotVotedReason{VoteTypeDoesNotExist{VoteTypeID: "bad"}},
	}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("unknown vote type produced %+v, want %+v", events, want)
	}
}

// TestCastVote_CollectsAllReasons verifies every failed check lands in the
// rejection, vote-type checks before participant existence.
func TestCastVote_CollectsAllReasons(t *testing.T) {
	agg := defaultAggregate()

	events := CastVote{
		ParticipantID: "ghost",
		Vote:          Vote{VoteTypeID: "bad", Value: NumberValue(1)},
	}.Apply(agg)
	want := []Event{ParticipantCouldNotVote{
		ParticipantID: "ghost",
		Reasons: []NotVotedReason{
			VoteTypeDoesNotExist{VoteTypeID: "bad"},
			ParticipantDoesNotExist{},
		},
	}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("doubly invalid vote produced %+v, want %+v", events, want)
	}
}

// TestCastVote_InvalidValue verifies a vote whose value the type's rule
// rejects reports what was expected and what arrived.
func TestCastVote_InvalidValue(t *testing.T) {
	agg := defaultAggregate(ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"})

	events := CastVote{
		ParticipantID: "p1",
		Vote:          Vote{VoteTypeID: "1", Value: StringValue("xl")},
	}.Apply(agg)
	want := []Event{ParticipantCouldNotVote{
		ParticipantID: "p1",
		Reasons: []NotVotedReason{InvalidVote{
			Expected: AnyNumber.Expects(),
			Received: Describe(StringValue("xl")),
		}},
	}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("invalid value produced %+v, want %+v", events, want)
	}
}

// TestClearVotes always succeeds regardless of board state.
func TestClearVotes(t *testing.T) {
	empty := defaultAggregate()
	if events := (ClearVotes{}).Apply(empty); !reflect.DeepEqual(events, []Event{VotesCleared{}}) {
		t.Fatalf("clear on empty board produced %+v", events)
	}

	populated := defaultAggregate(
		ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"},
		ParticipantVoted{ParticipantID: "p1", Vote: numberVote(3)},
	)
	if events := (ClearVotes{}).Apply(populated); !reflect.DeepEqual(events, []Event{VotesCleared{}}) {
		t.Fatalf("clear on populated board produced %+v", events)
	}
}

// TestCombined_NegativeEventsAreNoOps verifies folding rejections leaves the
// aggregate untouched.
func TestCombined_NegativeEventsAreNoOps(t *testing.T) {
	agg := defaultAggregate(ParticipantAdded{ParticipantID: "p1", ParticipantName: "Ann"})

	before := agg.Board.ParticipantCount()
	agg.Apply(ParticipantNotAdded{ParticipantID: "p2", Reason: NotAddedAlreadyExists})
	agg.Apply(ParticipantCouldNotBeRemoved{ParticipantID: "p1", Reason: NotRemovedDoesNotExist})
	agg.Apply(ParticipantCouldNotVote{ParticipantID: "p1", Reasons: []NotVotedReason{ParticipantDoesNotExist{}}})

	if got := agg.Board.ParticipantCount(); got != before {
		t.Fatalf("negative events changed participant count: %d -> %d", before, got)
	}
	if !agg.Board.HasParticipant("p1") {
		t.Fatal("negative events removed p1")
	}
}

// TestVoteTypes_Validation verifies lookup of configured vote types.
func TestVoteTypes_Validation(t *testing.T) {
	agg := defaultAggregate()

	rule, ok := agg.VoteTypes.Validation("1")
	if !ok {
		t.Fatal("default vote type missing")
	}
	if !rule.Accepts(NumberValue(42)) {
		t.Error("any-number rule rejected a number")
	}
	if rule.Accepts(StringValue("xl")) {
		t.Error("any-number rule accepted a string")
	}

	if _, ok := agg.VoteTypes.Validation("bad"); ok {
		t.Error("unconfigured vote type resolved")
	}
}
