package tendril

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/strategy"
)

// DefaultMaxAttempts bounds strategy attempts when DecideOptions leaves it unset.
const DefaultMaxAttempts = 2

// DecideOptions is the input of one Decide call. Zero fields fall back to
// the agent defaults set with WithDefaultDecideOptions, then to the agent
// configuration.
type DecideOptions struct {
	Goal  string
	State domain.ObservedState

	// Environment models the world. Without it every event in the registry is
	// offered as a tool and planners cannot search.
	Environment ports.Environment

	Strategy strategy.Strategy
	Events   *domain.EventRegistry

	// AllowedEvents restricts the registry for this call. Nil means no
	// restriction; an empty, non-nil slice allows nothing.
	AllowedEvents []string

	Messages    []domain.Message
	Model       ports.LanguageModel // Default: the agent model; prompts are recorded either way
	System      string
	ToolChoice  ports.ToolChoice
	Cost        strategy.CostFunction
	MaxAttempts int

	// Execute applies the chosen event, typically by sending it to an actor.
	// It runs after the decision is recorded.
	Execute func(ctx context.Context, ev domain.Event) error
}

func (o DecideOptions) merge(defaults DecideOptions) DecideOptions {
	if o.Goal == "" {
		o.Goal = defaults.Goal
	}
	if o.State.Value.IsZero() && o.State.Context == nil {
		o.State = defaults.State
	}
	if o.Environment == nil {
		o.Environment = defaults.Environment
	}
	if o.Strategy == nil {
		o.Strategy = defaults.Strategy
	}
	if o.Events == nil {
		o.Events = defaults.Events
	}
	if o.AllowedEvents == nil {
		o.AllowedEvents = defaults.AllowedEvents
	}
	if o.Messages == nil {
		o.Messages = defaults.Messages
	}
	if o.Model == nil {
		o.Model = defaults.Model
	}
	if o.System == "" {
		o.System = defaults.System
	}
	if o.ToolChoice == "" {
		o.ToolChoice = defaults.ToolChoice
	}
	if o.Cost == nil {
		o.Cost = defaults.Cost
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = defaults.MaxAttempts
	}
	if o.Execute == nil {
		o.Execute = defaults.Execute
	}
	return o
}

// Decide runs the strategy until it produces a decision with a next event or
// the attempts run out. The winning decision is recorded and handed to
// Execute. Running out of attempts returns nil with a nil error; model and
// schema failures return an error and record nothing.
func (a *Agent) Decide(ctx context.Context, opts DecideOptions) (*domain.Decision, error) {
	opts = opts.merge(a.defaults)
	if opts.Goal == "" {
		return nil, domain.ErrGoalRequired
	}

	strat := opts.Strategy
	if strat == nil {
		strat = a.strategy
	}
	events := a.events
	if opts.Events != nil {
		events = *opts.Events
	}
	if opts.AllowedEvents != nil {
		events = events.Filter(opts.AllowedEvents)
	}
	model := opts.Model
	if model == nil {
		model = a.model
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	in := strategy.Input{
		Goal:        opts.Goal,
		State:       opts.State.Minimal(),
		Events:      events,
		Environment: opts.Environment,
		Messages:    opts.Messages,
		Model:       model,
		System:      opts.System,
		ToolChoice:  opts.ToolChoice,
		Cost:        opts.Cost,
	}

	var last *domain.AttemptEvent
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := time.Now()
		decision, err := strat.Decide(ctx, a, in)

		last = &domain.AttemptEvent{
			Timestamp:   started,
			EpisodeID:   a.episodeID,
			Strategy:    strat.Name(),
			Goal:        opts.Goal,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Decided:     decision.Actionable(),
			Duration:    time.Since(started),
			Err:         err,
		}
		if a.hooks.OnAttempt != nil {
			a.hooks.OnAttempt(ctx, last)
		}

		if err != nil {
			a.logger.Error("decision attempt failed",
				"episode_id", a.episodeID,
				"strategy", strat.Name(),
				"attempt", attempt,
				"err", err,
			)
			return nil, err
		}
		if !decision.Actionable() {
			a.logger.Debug("no actionable decision",
				"episode_id", a.episodeID,
				"strategy", strat.Name(),
				"attempt", attempt,
			)
			continue
		}

		a.AddDecision(*decision)
		if a.hooks.OnDecision != nil {
			a.hooks.OnDecision(ctx, decision)
		}
		a.logger.Info("decided",
			"episode_id", a.episodeID,
			"strategy", strat.Name(),
			"attempt", attempt,
			"event", decision.NextEvent.Type,
		)

		if opts.Execute != nil {
			if err := opts.Execute(ctx, *decision.NextEvent); err != nil {
				return decision, fmt.Errorf("execute %s: %w", decision.NextEvent.Type, err)
			}
		}
		return decision, nil
	}

	if a.hooks.OnExhausted != nil {
		a.hooks.OnExhausted(ctx, last)
	}
	a.logger.Warn("decision attempts exhausted",
		"episode_id", a.episodeID,
		"strategy", strat.Name(),
		"attempts", maxAttempts,
	)
	return nil, nil
}
