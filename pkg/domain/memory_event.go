package domain

import (
	"encoding/json"
	"fmt"
)

// RecordKind discriminates memory events.
type RecordKind string

const (
	KindObservation RecordKind = "observe"
	KindFeedback    RecordKind = "feedback"
	KindMessage     RecordKind = "message"
	KindDecision    RecordKind = "decision"
)

// Kinds lists every recognised record kind.
var Kinds = []RecordKind{KindObservation, KindFeedback, KindMessage, KindDecision}

// MemoryEvent is an append to one of the agent's memory sequences.
// Payload is an Observation, Feedback, Message or Decision matching Kind.
type MemoryEvent struct {
	Kind    RecordKind
	Payload any
}

// ObservationEvent wraps an observation.
func ObservationEvent(o Observation) MemoryEvent {
	return MemoryEvent{Kind: KindObservation, Payload: o}
}

// FeedbackEvent wraps a feedback entry.
func FeedbackEvent(f Feedback) MemoryEvent { return MemoryEvent{Kind: KindFeedback, Payload: f} }

// MessageEvent wraps a message.
func MessageEvent(m Message) MemoryEvent { return MemoryEvent{Kind: KindMessage, Payload: m} }

// DecisionEvent wraps a decision.
func DecisionEvent(d Decision) MemoryEvent { return MemoryEvent{Kind: KindDecision, Payload: d} }

// Check reports ErrUnknownEventKind for unrecognised kinds and a plain error
// when the payload does not match the kind.
func (e MemoryEvent) Check() error {
	var ok bool
	switch e.Kind {
	case KindObservation:
		_, ok = e.Payload.(Observation)
	case KindFeedback:
		_, ok = e.Payload.(Feedback)
	case KindMessage:
		_, ok = e.Payload.(Message)
	case KindDecision:
		_, ok = e.Payload.(Decision)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	if !ok {
		return fmt.Errorf("memory event %s: unexpected payload %T", e.Kind, e.Payload)
	}
	return nil
}

// EpisodeID returns the episode of the payload.
func (e MemoryEvent) EpisodeID() string {
	switch p := e.Payload.(type) {
	case Observation:
		return p.EpisodeID
	case Feedback:
		return p.EpisodeID
	case Message:
		return p.EpisodeID
	case Decision:
		return p.EpisodeID
	default:
		return ""
	}
}

type memoryEventJSON struct {
	Kind    RecordKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (e MemoryEvent) MarshalJSON() ([]byte, error) {
	if err := e.Check(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(memoryEventJSON{Kind: e.Kind, Payload: raw})
}

func (e *MemoryEvent) UnmarshalJSON(data []byte) error {
	var raw memoryEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := decodePayload(raw.Kind, raw.Payload)
	if err != nil {
		return err
	}
	*e = MemoryEvent{Kind: raw.Kind, Payload: payload}
	return nil
}

// DecodeMemoryEvent rebuilds an event from a kind and its JSON payload.
func DecodeMemoryEvent(kind RecordKind, payload []byte) (MemoryEvent, error) {
	p, err := decodePayload(kind, payload)
	if err != nil {
		return MemoryEvent{}, err
	}
	return MemoryEvent{Kind: kind, Payload: p}, nil
}

func decodePayload(kind RecordKind, raw []byte) (any, error) {
	switch kind {
	case KindObservation:
		var o Observation
		err := json.Unmarshal(raw, &o)
		return o, err
	case KindFeedback:
		var f Feedback
		err := json.Unmarshal(raw, &f)
		return f, err
	case KindMessage:
		var m Message
		err := json.Unmarshal(raw, &m)
		return m, err
	case KindDecision:
		var d Decision
		err := json.Unmarshal(raw, &d)
		return d, err
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}
}
