package tendril

import (
	"context"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Observe records every transition of actor as an observation until the
// returned function is called.
func (a *Agent) Observe(actor ports.Actor) (stop func()) {
	hash := machineHash(actor)
	return actor.Subscribe(func(u ports.SnapshotUpdate) {
		a.AddObservation(observationInput(u, hash))
	})
}

// Interact observes actor like Observe and, after each observation, asks
// getInput whether to act. A non-nil result is decided with the observed
// state and the actor's environment filled in, and an actionable decision is
// sent to the actor. The observation caused by that event carries the
// decision id and goal. If the actor is already running, its current state is
// handled immediately.
func (a *Agent) Interact(ctx context.Context, actor ports.Actor, getInput func(domain.Observation) *DecideOptions) (stop func()) {
	hash := machineHash(actor)

	var mu sync.Mutex
	var pending *domain.Decision

	handle := func(in domain.ObservationInput) {
		mu.Lock()
		if pending != nil && in.Event != nil && in.Event.Type == pending.NextEvent.Type {
			in.DecisionID = pending.ID
			in.Goal = pending.Goal
		}
		pending = nil
		mu.Unlock()

		obs := a.AddObservation(in)
		if getInput == nil {
			return
		}
		opts := getInput(obs)
		if opts == nil {
			return
		}
		decideOpts := *opts
		if decideOpts.State.Value.IsZero() {
			decideOpts.State = obs.State
		}
		if decideOpts.Environment == nil {
			decideOpts.Environment = actor.Environment()
		}

		decision, err := a.Decide(ctx, decideOpts)
		if err != nil {
			a.logger.Error("interaction decision failed", "episode_id", a.episodeID, "err", err)
			return
		}
		if !decision.Actionable() {
			return
		}
		mu.Lock()
		pending = decision
		mu.Unlock()
		if err := actor.Send(*decision.NextEvent); err != nil {
			a.logger.Error("failed to send decided event",
				"episode_id", a.episodeID,
				"event", decision.NextEvent.Type,
				"err", err,
			)
		}
	}

	stop = actor.Subscribe(func(u ports.SnapshotUpdate) {
		handle(observationInput(u, hash))
	})
	if actor.Started() {
		handle(domain.ObservationInput{State: actor.Snapshot().Observed(), MachineHash: hash})
	}
	return stop
}

func observationInput(u ports.SnapshotUpdate, hash string) domain.ObservationInput {
	in := domain.ObservationInput{
		Event:       u.Event,
		State:       u.Snapshot.Observed(),
		MachineHash: hash,
	}
	if u.Prev != nil {
		prev := u.Prev.Observed()
		in.PrevState = &prev
	}
	return in
}

func machineHash(actor ports.Actor) string {
	if env := actor.Environment(); env != nil {
		return env.Hash()
	}
	return ""
}
