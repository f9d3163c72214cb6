package dsl

import (
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/machine"
)

// StateBuilder provides a fluent API for configuring a state.
type StateBuilder struct {
	key         string
	typ         machine.NodeType
	initial     string
	description string
	children    []*StateBuilder
	on          []*TransitionBuilder
	always      []*TransitionBuilder
}

// Describe sets the state description.
func (s *StateBuilder) Describe(description string) *StateBuilder {
	s.description = description
	return s
}

// Initial sets the initial child state.
func (s *StateBuilder) Initial(key string) *StateBuilder {
	s.initial = key
	return s
}

// Parallel makes every child of this state an orthogonal region.
func (s *StateBuilder) Parallel() *StateBuilder {
	s.typ = machine.NodeParallel
	return s
}

// Final marks the state as a final state (end of the flow).
func (s *StateBuilder) Final() *StateBuilder {
	s.typ = machine.NodeFinal
	return s
}

// State creates a child state.
// If the child already exists, it returns the existing builder.
func (s *StateBuilder) State(key string) *StateBuilder {
	for _, c := range s.children {
		if c.key == key {
			return c
		}
	}
	c := &StateBuilder{key: key}
	s.children = append(s.children, c)
	return c
}

// On adds a transition taken when event is received.
func (s *StateBuilder) On(event string) *TransitionBuilder {
	t := &TransitionBuilder{cfg: machine.TransitionConfig{Event: event}}
	s.on = append(s.on, t)
	return t
}

// Go adds an unguarded transition to target on event.
func (s *StateBuilder) Go(event, target string) *StateBuilder {
	s.On(event).To(target)
	return s
}

// Always adds an eventless transition, checked after every macrostep.
func (s *StateBuilder) Always() *TransitionBuilder {
	t := &TransitionBuilder{}
	s.always = append(s.always, t)
	return t
}

func (s *StateBuilder) config() machine.StateConfig {
	sc := machine.StateConfig{
		Key:         s.key,
		Type:        s.typ,
		Initial:     s.initial,
		Description: s.description,
		On:          transitions(s.on),
		Always:      transitions(s.always),
	}
	for _, c := range s.children {
		sc.States = append(sc.States, c.config())
	}
	return sc
}

// TransitionBuilder configures one transition.
type TransitionBuilder struct {
	cfg machine.TransitionConfig
}

// To sets the target state.
func (t *TransitionBuilder) To(target string) *TransitionBuilder {
	t.cfg.Target = target
	return t
}

// When guards the transition with a named condition.
func (t *TransitionBuilder) When(name string, check func(ctx map[string]any, ev domain.Event) bool) *TransitionBuilder {
	t.cfg.Guard = machine.Guard{Type: name, Check: check}
	return t
}

// Guard sets a prebuilt guard, such as a compiled CEL expression.
func (t *TransitionBuilder) Guard(g machine.Guard) *TransitionBuilder {
	t.cfg.Guard = g
	return t
}

// Do appends an action.
func (t *TransitionBuilder) Do(action machine.Action) *TransitionBuilder {
	t.cfg.Actions = append(t.cfg.Actions, action)
	return t
}

// Assign appends an action that sets one context key.
func (t *TransitionBuilder) Assign(key string, fn func(ctx map[string]any, ev domain.Event) any) *TransitionBuilder {
	return t.Do(func(ctx map[string]any, ev domain.Event) map[string]any {
		return map[string]any{key: fn(ctx, ev)}
	})
}

// Describe sets the transition description.
func (t *TransitionBuilder) Describe(description string) *TransitionBuilder {
	t.cfg.Description = description
	return t
}
