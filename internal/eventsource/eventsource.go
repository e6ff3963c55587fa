// Package eventsource holds the generic fold used to rebuild model state
// from an ordered event sequence.
package eventsource

// Applier folds events of type E into itself, in place.
type Applier[E any] interface {
	Apply(E)
}

// Source folds events into a fresh zero-valued S and returns it. Folding a
// prefix and then applying the remaining events one by one must land on the
// same state; models keep that true by making Apply total (unknown and
// negative events are no-ops).
func Source[S any, PS interface {
	*S
	Applier[E]
}, E any](events []E) *S {
	state := new(S)
	ReplayOnto[E](PS(state), events)
	return state
}

// ReplayOnto applies events to an existing state in order.
func ReplayOnto[E any](state Applier[E], events []E) {
	for _, ev := range events {
		state.Apply(ev)
	}
}
