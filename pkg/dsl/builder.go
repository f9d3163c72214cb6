package dsl

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/schema"
)

// Builder manages the machine construction.
type Builder struct {
	id          string
	description string
	initial     string
	parallel    bool
	context     map[string]any
	schema      *schema.Object
	states      []*StateBuilder
	on          []*TransitionBuilder
	opts        []machine.Option
}

// New creates a new machine builder.
func New(id string) *Builder {
	return &Builder{
		id:      id,
		context: make(map[string]any),
	}
}

// Describe sets the machine description.
func (b *Builder) Describe(description string) *Builder {
	b.description = description
	return b
}

// Initial sets the initial top-level state. Defaults to the first state added.
func (b *Builder) Initial(key string) *Builder {
	b.initial = key
	return b
}

// Parallel makes every top-level state an orthogonal region.
func (b *Builder) Parallel() *Builder {
	b.parallel = true
	return b
}

// Context adds a default context value.
func (b *Builder) Context(key string, value any) *Builder {
	b.context[key] = value
	return b
}

// ContextSchema declares the schema the context must satisfy.
func (b *Builder) ContextSchema(o schema.Object) *Builder {
	b.schema = &o
	return b
}

// Options adds machine options applied at Build.
func (b *Builder) Options(opts ...machine.Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// State creates a top-level state.
// If the state already exists, it returns the existing builder.
func (b *Builder) State(key string) *StateBuilder {
	for _, s := range b.states {
		if s.key == key {
			return s
		}
	}
	s := &StateBuilder{key: key}
	b.states = append(b.states, s)
	return s
}

// On adds a root-level transition, active in every state.
func (b *Builder) On(event string) *TransitionBuilder {
	t := &TransitionBuilder{cfg: machine.TransitionConfig{Event: event}}
	b.on = append(b.on, t)
	return t
}

// Build compiles the machine.
func (b *Builder) Build() (*machine.Machine, error) {
	root := machine.StateConfig{
		Initial:     b.initial,
		Description: b.description,
		On:          transitions(b.on),
	}
	if b.parallel {
		root.Type = machine.NodeParallel
	}
	for _, s := range b.states {
		root.States = append(root.States, s.config())
	}

	m, err := machine.New(machine.Config{
		ID:            b.id,
		Context:       b.context,
		ContextSchema: b.schema,
		StateConfig:   root,
	}, b.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build machine %s: %w", b.id, err)
	}
	return m, nil
}

func transitions(ts []*TransitionBuilder) []machine.TransitionConfig {
	out := make([]machine.TransitionConfig, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.cfg)
	}
	return out
}
