package board

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Events, commands, and vote-rejection reasons travel as externally tagged
// JSON: an object with exactly one key naming the variant. Payload-free
// variants carry null ({"VotesCleared":null}); a bare string form
// ("VotesCleared") is accepted on decode.

var (
	ErrUnknownEvent   = errors.New("unknown event variant")
	ErrUnknownCommand = errors.New("unknown command variant")
	ErrUnknownReason  = errors.New("unknown reason variant")
	ErrUnknownValue   = errors.New("unknown vote value variant")
	ErrNotTagged      = errors.New("expected a single-key tagged object")
)

// Stored names of the board event variants, used as the event_type column by
// the persistent logs.
const (
	NameParticipantAdded             = "ParticipantAdded"
	NameParticipantNotAdded          = "ParticipantNotAdded"
	NameParticipantRemoved           = "ParticipantRemoved"
	NameParticipantCouldNotBeRemoved = "ParticipantCouldNotBeRemoved"
	NameParticipantVoted             = "ParticipantVoted"
	NameParticipantCouldNotVote      = "ParticipantCouldNotVote"
	NameVotesCleared                 = "VotesCleared"
)

// EventName returns the stored variant name for ev.
func EventName(ev Event) string {
	switch ev.(type) {
	case ParticipantAdded:
		return NameParticipantAdded
	case ParticipantNotAdded:
		return NameParticipantNotAdded
	case ParticipantRemoved:
		return NameParticipantRemoved
	case ParticipantCouldNotBeRemoved:
		return NameParticipantCouldNotBeRemoved
	case ParticipantVoted:
		return NameParticipantVoted
	case ParticipantCouldNotVote:
		return NameParticipantCouldNotVote
	case VotesCleared:
		return NameVotesCleared
	default:
		return ""
	}
}

// DecodeEvent rebuilds an event from its stored name and payload. A missing
// or null payload yields the variant's zero value.
func DecodeEvent(name string, payload []byte) (Event, error) {
	switch name {
	case NameParticipantAdded:
		var e ParticipantAdded
		return e, decodePayload(payload, &e)
	case NameParticipantNotAdded:
		var e ParticipantNotAdded
		return e, decodePayload(payload, &e)
	case NameParticipantRemoved:
		var e ParticipantRemoved
		return e, decodePayload(payload, &e)
	case NameParticipantCouldNotBeRemoved:
		var e ParticipantCouldNotBeRemoved
		return e, decodePayload(payload, &e)
	case NameParticipantVoted:
		var e ParticipantVoted
		return e, decodePayload(payload, &e)
	case NameParticipantCouldNotVote:
		var e ParticipantCouldNotVote
		return e, decodePayload(payload, &e)
	case NameVotesCleared:
		return VotesCleared{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// EncodeEvent splits an event into its stored name and bare payload, the
// form the persistent logs keep in their (event_type, payload) columns.
func EncodeEvent(ev Event) (string, []byte, error) {
	name := EventName(ev)
	if name == "" {
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	if _, ok := ev.(VotesCleared); ok {
		return name, []byte("null"), nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", nil, err
	}
	return name, payload, nil
}

// MarshalEvent encodes one event in tagged form.
func MarshalEvent(ev Event) ([]byte, error) {
	name, payload, err := EncodeEvent(ev)
	if err != nil {
		return nil, err
	}
	var body any
	if !isNull(payload) {
		body = json.RawMessage(payload)
	}
	return Tagged(name, body)
}

// UnmarshalEvent decodes one tagged event.
func UnmarshalEvent(data []byte) (Event, error) {
	name, payload, err := SplitTagged(data)
	if err != nil {
		return nil, err
	}
	return DecodeEvent(name, payload)
}

// MarshalEvents encodes a sequence as a JSON array of tagged events.
func MarshalEvents(events []Event) ([]byte, error) {
	parts := make([]json.RawMessage, len(events))
	for i, ev := range events {
		part, err := MarshalEvent(ev)
		if err != nil {
			return nil, err
		}
		parts[i] = part
	}
	return json.Marshal(parts)
}

// UnmarshalEvents decodes a JSON array of tagged events.
func UnmarshalEvents(data []byte) ([]Event, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, err
	}
	events := make([]Event, len(parts))
	for i, part := range parts {
		ev, err := UnmarshalEvent(part)
		if err != nil {
			return nil, err
		}
		events[i] = ev
	}
	return events, nil
}

// MarshalCommand encodes a command in tagged form.
func MarshalCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case AddParticipant:
		return Tagged("AddParticipant", c)
	case RemoveParticipant:
		return Tagged("RemoveParticipant", c)
	case CastVote:
		return Tagged("ParticipantVoted", c)
	case ClearVotes:
		return Tagged("ClearVotes", nil)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

// UnmarshalCommand decodes a tagged command.
func UnmarshalCommand(data []byte) (Command, error) {
	name, payload, err := SplitTagged(data)
	if err != nil {
		return nil, err
	}
	switch name {
	case "AddParticipant":
		var c AddParticipant
		return c, decodePayload(payload, &c)
	case "RemoveParticipant":
		var c RemoveParticipant
		return c, decodePayload(payload, &c)
	case "ParticipantVoted":
		var c CastVote
		return c, decodePayload(payload, &c)
	case "ClearVotes":
		return ClearVotes{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

type voteJSON struct {
	VoteTypeID string          `json:"vote_type_id"`
	Value      json.RawMessage `json:"value"`
}

func (v Vote) MarshalJSON() ([]byte, error) {
	value, err := marshalVoteValue(v.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(voteJSON{VoteTypeID: v.VoteTypeID, Value: value})
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	var raw voteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := unmarshalVoteValue(raw.Value)
	if err != nil {
		return err
	}
	v.VoteTypeID = raw.VoteTypeID
	v.Value = value
	return nil
}

func marshalVoteValue(v VoteValue) (json.RawMessage, error) {
	switch value := v.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case NumberValue:
		return Tagged("Number", uint8(value))
	case StringValue:
		return Tagged("String", string(value))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownValue, v)
	}
}

func unmarshalVoteValue(data []byte) (VoteValue, error) {
	if isNull(data) {
		return nil, nil
	}
	name, payload, err := SplitTagged(data)
	if err != nil {
		return nil, err
	}
	switch name {
	case "Number":
		var n uint8
		if err := decodePayload(payload, &n); err != nil {
			return nil, err
		}
		return NumberValue(n), nil
	case "String":
		var s string
		if err := decodePayload(payload, &s); err != nil {
			return nil, err
		}
		return StringValue(s), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownValue, name)
	}
}

type couldNotVoteJSON struct {
	ParticipantID string            `json:"participant_id"`
	Reasons       []json.RawMessage `json:"reasons"`
}

func (e ParticipantCouldNotVote) MarshalJSON() ([]byte, error) {
	raw := couldNotVoteJSON{
		ParticipantID: e.ParticipantID,
		Reasons:       make([]json.RawMessage, len(e.Reasons)),
	}
	for i, reason := range e.Reasons {
		part, err := marshalReason(reason)
		if err != nil {
			return nil, err
		}
		raw.Reasons[i] = part
	}
	return json.Marshal(raw)
}

func (e *ParticipantCouldNotVote) UnmarshalJSON(data []byte) error {
	var raw couldNotVoteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.ParticipantID = raw.ParticipantID
	e.Reasons = make([]NotVotedReason, len(raw.Reasons))
	for i, part := range raw.Reasons {
		reason, err := unmarshalReason(part)
		if err != nil {
			return err
		}
		e.Reasons[i] = reason
	}
	return nil
}

func marshalReason(r NotVotedReason) (json.RawMessage, error) {
	switch reason := r.(type) {
	case ParticipantDoesNotExist:
		return Tagged("DoesNotExist", nil)
	case VoteTypeDoesNotExist:
		return Tagged("VoteTypeDoesNotExist", reason.VoteTypeID)
	case InvalidVote:
		return Tagged("InvalidVote", reason)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownReason, r)
	}
}

func unmarshalReason(data []byte) (NotVotedReason, error) {
	name, payload, err := SplitTagged(data)
	if err != nil {
		return nil, err
	}
	switch name {
	case "DoesNotExist":
		return ParticipantDoesNotExist{}, nil
	case "VoteTypeDoesNotExist":
		var id string
		if err := decodePayload(payload, &id); err != nil {
			return nil, err
		}
		return VoteTypeDoesNotExist{VoteTypeID: id}, nil
	case "InvalidVote":
		var reason InvalidVote
		return reason, decodePayload(payload, &reason)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReason, name)
	}
}

// Tagged builds {"name": payload}; a nil payload renders as null. Transports
// reuse it for their own tagged frames.
func Tagged(name string, payload any) (json.RawMessage, error) {
	body := json.RawMessage("null")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = encoded
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	key, err := json.Marshal(name)
	if err != nil {
		return nil, err
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(body)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SplitTagged pulls the variant name and payload out of a tagged value.
// A bare JSON string is read as a payload-free variant.
func SplitTagged(data []byte) (string, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return "", nil, err
		}
		return name, nil, nil
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return "", nil, err
	}
	if len(object) != 1 {
		return "", nil, fmt.Errorf("%w, got %d keys", ErrNotTagged, len(object))
	}
	for name, payload := range object {
		return name, payload, nil
	}
	return "", nil, ErrNotTagged
}

// decodePayload unmarshals payload into dst; missing and null payloads leave
// dst at its zero value.
func decodePayload(payload []byte, dst any) error {
	if isNull(payload) {
		return nil
	}
	return json.Unmarshal(payload, dst)
}

func isNull(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
