package board

import "strconv"

// Validation is a vote type's acceptance rule for cast values.
type Validation string

// AnyNumber accepts every numeric value and rejects text.
const AnyNumber Validation = "AnyNumber"

// Accepts reports whether value satisfies the rule.
func (v Validation) Accepts(value VoteValue) bool {
	switch v {
	case AnyNumber:
		_, ok := value.(NumberValue)
		return ok
	default:
		return false
	}
}

// Expects names what the rule accepts, for InvalidVote reasons.
func (v Validation) Expects() string {
	switch v {
	case AnyNumber:
		return "a number"
	default:
		return string(v)
	}
}

// Describe renders a vote value for InvalidVote reasons.
func Describe(value VoteValue) string {
	switch v := value.(type) {
	case NumberValue:
		return strconv.Itoa(int(v))
	case StringValue:
		return string(v)
	default:
		return "nothing"
	}
}
