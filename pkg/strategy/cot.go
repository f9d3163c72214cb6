package strategy

import (
	"context"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
	"github.com/aretw0/tendril/pkg/ports"
)

// ChainOfThought runs one unconstrained reasoning round and hands its
// transcript to Next as history. Next defaults to Simple.
type ChainOfThought struct {
	Next Strategy
}

func (c ChainOfThought) next() Strategy {
	if c.Next == nil {
		return Simple{}
	}
	return c.Next
}

// Name returns the wrapped strategy's name; decisions are attributed to it.
func (c ChainOfThought) Name() string { return c.next().Name() }

// ChainOfThoughtPrompt renders the context and goal followed by the reasoning request.
func ChainOfThoughtPrompt(state domain.ObservedState, goal string) string {
	return RenderXML(Field{"context", state.Context}, Field{"goal", goal}) +
		"\n\nHow would you achieve the goal? Think step-by-step."
}

// Decide implements Strategy.
func (c ChainOfThought) Decide(ctx context.Context, agent Agent, in Input) (*domain.Decision, error) {
	messages := withPrompt(in.Messages, ChainOfThoughtPrompt(in.State, in.Goal))

	res, err := llm.GenerateText(ctx, modelFor(agent, in), ports.GenerateRequest{
		System:     systemFor(agent, in),
		Messages:   messages,
		ToolChoice: ports.ToolChoiceAuto,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain of thought: %w", err)
	}
	agent.Logger().Debug("reasoning complete", "episode_id", agent.EpisodeID(), "chars", len(res.Text()))

	next := in
	next.Messages = append(messages, res.Messages...)
	return c.next().Decide(ctx, agent, next)
}
