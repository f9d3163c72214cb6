package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/toolkit"
)

const simpleInstruction = "Make at most one tool call to achieve the above goal. " +
	"If the goal cannot be achieved with any tool calls, do not make any tool call."

// SimplePrompt renders the state and goal followed by the single-call instruction.
func SimplePrompt(state domain.ObservedState, goal string) string {
	return RenderXML(Field{"state", state}, Field{"goal", goal}) + "\n\n" + simpleInstruction
}

// Simple asks the model once, with tool choice "required" unless overridden,
// and takes the first successful tool call as the next event.
type Simple struct{}

// Name implements Strategy.
func (Simple) Name() string { return "simple" }

// Decide implements Strategy.
func (s Simple) Decide(ctx context.Context, agent Agent, in Input) (*domain.Decision, error) {
	logger := agent.Logger()
	tools, err := toolkit.Tools(in.State, in.Environment, in.Events)
	if errors.Is(err, domain.ErrNoToolsAvailable) {
		logger.Debug("no tools for state", "episode_id", agent.EpisodeID(), "strategy", s.Name())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	toolChoice := in.ToolChoice
	if toolChoice == "" {
		toolChoice = ports.ToolChoiceRequired
	}

	res, err := llm.GenerateText(ctx, modelFor(agent, in), ports.GenerateRequest{
		System:     systemFor(agent, in),
		Messages:   withPrompt(in.Messages, SimplePrompt(in.State, in.Goal)),
		ToolChoice: toolChoice,
	}, tools)
	if err != nil {
		return nil, fmt.Errorf("simple strategy: %w", err)
	}
	for _, msg := range res.Messages {
		agent.AddMessage(msg)
	}

	results := res.Successful()
	if len(results) == 0 {
		logger.Warn("no tool call results returned",
			"episode_id", agent.EpisodeID(),
			"strategy", s.Name(),
			"tool_calls", len(res.Results),
		)
		return nil, nil
	}
	if len(results) > 1 {
		logger.Debug("discarding extra tool calls", "episode_id", agent.EpisodeID(), "count", len(results)-1)
	}
	event := results[0].Event

	goalState := in.State
	return &domain.Decision{
		ID:        domain.NewID(),
		Strategy:  s.Name(),
		Goal:      in.Goal,
		GoalState: &goalState,
		NextEvent: &event,
		Paths: []domain.Path{{
			Steps: []domain.Step{{Event: event, State: nextState(in, event, logger)}},
		}},
		EpisodeID: agent.EpisodeID(),
		Timestamp: time.Now(),
	}, nil
}

// nextState computes the state event leads to, when an environment is known.
func nextState(in Input, event domain.Event, logger *slog.Logger) *domain.ObservedState {
	if in.Environment == nil {
		return nil
	}
	snap, err := in.Environment.Resolve(in.State)
	if err != nil {
		logger.Debug("cannot resolve state for step preview", "err", err)
		return nil
	}
	next, err := in.Environment.Step(snap, event)
	if err != nil {
		logger.Debug("cannot preview step", "event", event.Type, "err", err)
		return nil
	}
	observed := next.Observed()
	return &observed
}
