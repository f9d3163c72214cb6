package ports

import (
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/schema"
)

// Environment is the pure model of the world an agent acts in.
// Every method is side-effect free.
type Environment interface {
	// Resolve turns an observed state into a full snapshot, validating the
	// configuration and the context.
	Resolve(state domain.ObservedState) (domain.Snapshot, error)

	// ActiveTransitions lists the transitions of every active state, root first.
	ActiveTransitions(snap domain.Snapshot) []domain.Transition

	// Step computes the snapshot reached by sending ev. Unknown or blocked
	// events return the input snapshot unchanged.
	Step(snap domain.Snapshot, ev domain.Event) (domain.Snapshot, error)

	// ShortestPaths returns one least-cost path to every reachable snapshot
	// satisfying goal.
	ShortestPaths(from domain.Snapshot, goal func(domain.Snapshot) bool) ([]domain.Path, error)

	// ContextSchema returns the declared context schema, or nil.
	ContextSchema() *schema.Object

	// Hash identifies the transition structure of the model.
	Hash() string
}

// SnapshotUpdate is delivered to actor subscribers after every transition.
// Prev and Event are nil for the initial snapshot.
type SnapshotUpdate struct {
	Prev     *domain.Snapshot
	Event    *domain.Event
	Snapshot domain.Snapshot
}

// Actor is a live, stateful environment instance.
type Actor interface {
	Send(ev domain.Event) error
	Snapshot() domain.Snapshot
	Subscribe(fn func(SnapshotUpdate)) (unsubscribe func())
	// Started reports whether the actor has an initial snapshot.
	Started() bool
	// Environment returns the model driving the actor, or nil.
	Environment() Environment
}
