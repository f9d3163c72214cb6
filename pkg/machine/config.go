package machine

import (
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/schema"
)

// NodeType classifies a state node.
type NodeType string

const (
	// NodeAtomic has no children. Inferred when States is empty.
	NodeAtomic NodeType = "atomic"
	// NodeCompound has exactly one active child at a time. Inferred when States is set.
	NodeCompound NodeType = "compound"
	// NodeParallel has every child region active at once.
	NodeParallel NodeType = "parallel"
	// NodeFinal is an atomic state that completes its parent.
	NodeFinal NodeType = "final"
)

// Guard is a named condition over the context and the triggering event.
// The zero Guard always passes.
type Guard struct {
	Type  string
	Check func(ctx map[string]any, ev domain.Event) bool
}

// IsZero reports whether no guard was set.
func (g Guard) IsZero() bool { return g.Type == "" && g.Check == nil }

// Action computes a partial context update from the context and the event.
// Keys in the returned map overwrite the context; every other key is kept.
type Action func(ctx map[string]any, ev domain.Event) map[string]any

// TransitionConfig declares one transition.
//
// Target syntax: "" is targetless, "key" names a sibling of the source state
// (dots descend into it), ".key" names a child of the source and "#a.b" is an
// absolute path from the root.
type TransitionConfig struct {
	Event       string
	Target      string
	Guard       Guard
	Actions     []Action
	Description string
}

// StateConfig declares a state node and its subtree.
type StateConfig struct {
	Key         string
	Type        NodeType
	Initial     string // Initial child key for compound states; defaults to the first child
	Description string
	On          []TransitionConfig
	Always      []TransitionConfig
	States      []StateConfig
}

// Config declares a whole machine. The embedded StateConfig describes the root.
type Config struct {
	ID            string
	Context       map[string]any
	ContextSchema *schema.Object
	StateConfig
}
