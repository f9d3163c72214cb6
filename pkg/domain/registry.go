package domain

import (
	"fmt"
	"slices"

	"github.com/aretw0/tendril/pkg/schema"
)

// EventSchema declares one permissible event: its type, parameter schema and a
// natural-language description used as the tool description.
type EventSchema struct {
	Type        string        `json:"type" yaml:"type" mapstructure:"type"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Parameters  schema.Object `json:"parameters" yaml:"parameters" mapstructure:"parameters"`

	validator *schema.Predicate
}

// Validate checks event parameters against the schema.
func (s EventSchema) Validate(params map[string]any) error {
	if s.validator == nil {
		return s.Parameters.Validate(params)
	}
	if params == nil {
		params = map[string]any{}
	}
	return s.validator.Validate(params)
}

// EventRegistry is the closed, ordered catalogue of event schemas an agent may
// emit. It is built once and never mutated.
type EventRegistry struct {
	order   []string
	schemas map[string]EventSchema
}

// NewEventRegistry builds a registry, rejecting empty or repeated event types.
// Every parameter schema is compiled here so tool calls are validated without
// recompiling.
func NewEventRegistry(schemas ...EventSchema) (EventRegistry, error) {
	r := EventRegistry{schemas: make(map[string]EventSchema, len(schemas))}
	for _, s := range schemas {
		if s.Type == "" {
			return EventRegistry{}, fmt.Errorf("event schema: empty type")
		}
		if _, ok := r.schemas[s.Type]; ok {
			return EventRegistry{}, fmt.Errorf("%w: %s", ErrDuplicateEventType, s.Type)
		}
		compiled, err := schema.CompileObject(s.Parameters)
		if err != nil {
			return EventRegistry{}, fmt.Errorf("event %s: %w", s.Type, err)
		}
		s.validator = compiled
		r.schemas[s.Type] = s
		r.order = append(r.order, s.Type)
	}
	return r, nil
}

// MustEventRegistry is NewEventRegistry that panics on error.
func MustEventRegistry(schemas ...EventSchema) EventRegistry {
	r, err := NewEventRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of registered events.
func (r EventRegistry) Len() int { return len(r.order) }

// Types returns the event types in registration order.
func (r EventRegistry) Types() []string { return slices.Clone(r.order) }

// Lookup returns the schema for an event type.
func (r EventRegistry) Lookup(eventType string) (EventSchema, bool) {
	s, ok := r.schemas[eventType]
	return s, ok
}

// Has reports whether eventType is registered.
func (r EventRegistry) Has(eventType string) bool {
	_, ok := r.schemas[eventType]
	return ok
}

// Schemas returns the schemas in registration order.
func (r EventRegistry) Schemas() []EventSchema {
	out := make([]EventSchema, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.schemas[t])
	}
	return out
}

// Filter returns a registry restricted to the allowed types, keeping
// registration order. Unknown names are ignored.
func (r EventRegistry) Filter(allowed []string) EventRegistry {
	out := EventRegistry{schemas: make(map[string]EventSchema, len(allowed))}
	for _, t := range r.order {
		if slices.Contains(allowed, t) {
			out.schemas[t] = r.schemas[t]
			out.order = append(out.order, t)
		}
	}
	return out
}
