// Package toolkit turns the transitions available from a state into the tool
// set a language model chooses from.
package toolkit

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Enumerate lists the candidate transitions for state. Without an environment
// it returns one synthetic transition per registered event. With one, the
// state is resolved first (invalid context fails) and every transition of
// every active node is returned, duplicates across regions included.
func Enumerate(state domain.ObservedState, env ports.Environment, registry domain.EventRegistry) ([]domain.Transition, error) {
	if env == nil {
		out := make([]domain.Transition, 0, registry.Len())
		for _, s := range registry.Schemas() {
			out = append(out, domain.Transition{EventType: s.Type, Description: s.Description})
		}
		return out, nil
	}

	snap, err := env.Resolve(state)
	if err != nil {
		return nil, fmt.Errorf("resolve state: %w", err)
	}
	return env.ActiveTransitions(snap), nil
}

// Synthesize maps every transition whose event type is registered to a tool.
// Transitions without a schema are dropped. ok is false when no tool survives,
// which means "cannot decide" rather than "nothing to do".
func Synthesize(transitions []domain.Transition, registry domain.EventRegistry) (tools domain.ToolSet, ok bool) {
	for _, t := range transitions {
		s, found := registry.Lookup(t.EventType)
		if !found {
			continue
		}
		description := s.Description
		if description == "" {
			description = t.Description
		}
		tools = append(tools, domain.NewTool(t.EventType, description, s.Parameters.JSONSchema(), materialize(s)))
	}
	return tools, len(tools) > 0
}

func materialize(s domain.EventSchema) func(map[string]any) (domain.Event, error) {
	return func(args map[string]any) (domain.Event, error) {
		if err := s.Validate(args); err != nil {
			return domain.Event{}, fmt.Errorf("invalid arguments for %s: %w", s.Type, err)
		}
		return domain.NewEvent(s.Type, args), nil
	}
}

// Tools enumerates and synthesizes in one go. It returns
// domain.ErrNoToolsAvailable when nothing maps to a registered event.
func Tools(state domain.ObservedState, env ports.Environment, registry domain.EventRegistry) (domain.ToolSet, error) {
	transitions, err := Enumerate(state, env, registry)
	if err != nil {
		return nil, err
	}
	tools, ok := Synthesize(transitions, registry)
	if !ok {
		return nil, domain.ErrNoToolsAvailable
	}
	return tools, nil
}
