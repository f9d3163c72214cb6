package machine

import (
	"errors"
	"slices"
	"sync"

	"github.com/aretw0/tendril/internal/mailbox"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// ErrNotStarted is returned when an event is sent to an actor before Start.
var ErrNotStarted = errors.New("actor not started")

// Actor is a live instance of a Machine. Sends are serialised; subscribers are
// notified in transition order, one update at a time, and may call Send from
// inside the callback.
type Actor struct {
	machine *Machine

	mu       sync.Mutex
	snapshot domain.Snapshot
	started  bool
	restore  *domain.Snapshot

	subsMu sync.RWMutex
	subs   map[int]func(ports.SnapshotUpdate)
	nextID int

	updates *mailbox.Mailbox[ports.SnapshotUpdate]
}

var _ ports.Actor = (*Actor)(nil)

// ActorOption configures an Actor.
type ActorOption func(*Actor)

// WithSnapshot starts the actor from a previously persisted snapshot instead
// of the machine's initial state.
func WithSnapshot(s domain.Snapshot) ActorOption {
	return func(a *Actor) {
		a.restore = &s
	}
}

// NewActor creates an actor for m. Call Start before sending events.
func NewActor(m *Machine, opts ...ActorOption) *Actor {
	a := &Actor{
		machine: m,
		subs:    make(map[int]func(ports.SnapshotUpdate)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.updates = mailbox.New(a.notify)
	return a
}

// Start computes the initial snapshot and notifies subscribers. Starting an
// already started actor does nothing.
func (a *Actor) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	var snap domain.Snapshot
	if a.restore != nil {
		snap = *a.restore
	} else {
		initial, err := a.machine.Initial()
		if err != nil {
			a.mu.Unlock()
			return err
		}
		snap = initial
	}
	a.snapshot = snap
	a.started = true
	a.updates.Enqueue(ports.SnapshotUpdate{Snapshot: snap})
	a.mu.Unlock()

	a.updates.Flush()
	return nil
}

// Send delivers ev to the machine. Events that cause no transition still
// notify subscribers with an unchanged snapshot.
func (a *Actor) Send(ev domain.Event) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	prev := a.snapshot
	next, err := a.machine.Step(prev, ev)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.snapshot = next
	a.updates.Enqueue(ports.SnapshotUpdate{Prev: &prev, Event: &ev, Snapshot: next})
	a.mu.Unlock()

	a.updates.Flush()
	return nil
}

// Snapshot returns the current snapshot.
func (a *Actor) Snapshot() domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Started reports whether Start was called.
func (a *Actor) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Environment returns the actor's machine.
func (a *Actor) Environment() ports.Environment { return a.machine }

// Machine returns the actor's machine.
func (a *Actor) Machine() *Machine { return a.machine }

// Subscribe registers fn for every future update. The returned function
// unsubscribes; calling it more than once is harmless.
func (a *Actor) Subscribe(fn func(ports.SnapshotUpdate)) func() {
	a.subsMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.subsMu.Lock()
			delete(a.subs, id)
			a.subsMu.Unlock()
		})
	}
}

func (a *Actor) notify(u ports.SnapshotUpdate) {
	a.subsMu.RLock()
	ids := make([]int, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	a.subsMu.RUnlock()
	slices.Sort(ids)

	for _, id := range ids {
		a.subsMu.RLock()
		fn, ok := a.subs[id]
		a.subsMu.RUnlock()
		if ok {
			a.deliver(fn, u)
		}
	}
}

func (a *Actor) deliver(fn func(ports.SnapshotUpdate), u ports.SnapshotUpdate) {
	defer func() {
		if r := recover(); r != nil {
			a.machine.logger.Error("actor subscriber panicked", "machine", a.machine.id, "panic", r)
		}
	}()
	fn(u)
}
