/*
Package tendril is a decision layer for language-model agents that act inside an
environment modeled as a state machine.

Given a goal and the observed state of the environment, an Agent turns the
transitions the environment currently allows into tools, asks a language model
to call at most one of them, retries when the model gives no usable answer, and
records the outcome in its memory. The chosen event can then be applied to a
live actor.

# Concept

The environment is described by a pure model (ports.Environment, implemented by
machine.Machine) and, optionally, a live instance of it (ports.Actor). The agent
never mutates the model: it enumerates transitions, previews steps and searches
paths, and only an Execute callback or Interact sends events to the actor.

Strategies decide how the model is consulted:

  - strategy.Simple offers the allowed transitions as tools, once.
  - strategy.ChainOfThought lets the model reason first, then delegates.
  - strategy.ShortestPath asks the model for a goal predicate over the
    context and plans the cheapest path to it.

# Usage

	events := domain.MustEventRegistry(
		domain.EventSchema{Type: "fill5", Description: "Fill the 5-gallon jug"},
		domain.EventSchema{Type: "pour5to3", Description: "Pour the 5-gallon jug into the 3-gallon jug"},
	)

	agent, err := tendril.New(model,
		tendril.WithDescription("You are a puzzle solver."),
		tendril.WithEvents(events),
	)
	if err != nil {
		log.Fatal(err)
	}

	actor := machine.NewActor(m)
	_ = actor.Start()

	decision, err := agent.Decide(ctx, tendril.DecideOptions{
		Goal:        "Measure exactly 4 gallons",
		State:       actor.Snapshot().Observed(),
		Environment: m,
		Execute: func(_ context.Context, ev domain.Event) error {
			return actor.Send(ev)
		},
	})

A nil decision with a nil error means the agent could not decide; it is a
valid outcome, not a failure.

# Memory

Every message, observation, feedback and decision is appended to a
memory.Log. Subscribers (OnMessage, OnDecision, ...) are notified in append
order. WithMemory writes the log through to a long-term ports.MemoryStore
(file, sqlite or redis adapters) and replays the episode on construction.
*/
package tendril
