// Package strategy contains the pluggable decision strategies: a single
// tool-calling round, a chain-of-thought pre-pass that delegates to another
// strategy, and a planner that searches the environment for the cheapest path
// to a model-synthesized goal predicate.
package strategy

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/schema"
)

// Agent is what a strategy needs from the agent running it.
type Agent interface {
	EpisodeID() string
	Description() string
	Model() ports.LanguageModel
	// Wrap decorates a per-call model so its traffic is recorded in memory.
	Wrap(model ports.LanguageModel) ports.LanguageModel
	ContextSchema() *schema.Object
	AddMessage(msg domain.Message) domain.Message
	Decisions() []domain.Decision
	Logger() *slog.Logger
}

// CostFunction ranks planned paths; lower is better.
type CostFunction func(domain.Path) float64

// Input is one strategy invocation, already resolved by the orchestrator.
type Input struct {
	Goal        string
	State       domain.ObservedState
	Events      domain.EventRegistry
	Environment ports.Environment // Optional
	Messages    []domain.Message  // History placed before the prompt
	Model       ports.LanguageModel
	System      string
	ToolChoice  ports.ToolChoice
	Cost        CostFunction
}

// Strategy turns a goal and a state into a decision. A nil decision with a
// nil error means the strategy could not decide.
type Strategy interface {
	Name() string
	Decide(ctx context.Context, agent Agent, in Input) (*domain.Decision, error)
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context, agent Agent, in Input) (*domain.Decision, error)
}

func (f funcStrategy) Name() string { return f.name }

func (f funcStrategy) Decide(ctx context.Context, agent Agent, in Input) (*domain.Decision, error) {
	return f.fn(ctx, agent, in)
}

// Func adapts a function to Strategy.
func Func(name string, fn func(ctx context.Context, agent Agent, in Input) (*domain.Decision, error)) Strategy {
	return funcStrategy{name: name, fn: fn}
}

func modelFor(agent Agent, in Input) ports.LanguageModel {
	if in.Model != nil {
		return agent.Wrap(in.Model)
	}
	return agent.Model()
}

func systemFor(agent Agent, in Input) string {
	if in.System != "" {
		return in.System
	}
	return agent.Description()
}

// withPrompt returns the history followed by prompt as a user message.
func withPrompt(history []domain.Message, prompt string) []domain.Message {
	return append(slices.Clone(history), domain.UserMessage(prompt))
}

// DefaultCost ranks paths by weight; unweighted paths rank last.
func DefaultCost(p domain.Path) float64 {
	if p.Weight == nil {
		return math.Inf(1)
	}
	return *p.Weight
}
