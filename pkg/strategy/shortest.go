package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/schema"
)

const predicateInstruction = `Update the context JSON schema so that it validates the context to determine that it reaches the goal.

The contextSchema properties must not change. Do not add or remove properties, or modify the name of the properties.
Use "const" for exact required values and define ranges/types for flexible conditions.

Examples:
1. For "user is logged in with admin role":
{"contextSchema": {"type": "object", "properties": {"role": {"const": "admin"}, "lastLogin": {"type": "string"}}, "required": ["role"]}}

2. For "score is above 100":
{"contextSchema": {"type": "object", "properties": {"score": {"type": "number", "minimum": 100}}, "required": ["score"]}}

3. For "fruits contain apple, orange, banana":
{"contextSchema": {"type": "object", "properties": {"fruits": {"type": "array", "allOf": [{"contains": {"const": "apple"}}, {"contains": {"const": "orange"}}, {"contains": {"const": "banana"}}]}}}}`

// ShortestPath asks the model for a JSON Schema predicate over the context
// that holds exactly in goal states, searches the environment for the
// cheapest paths to such states and takes the first step of the best one.
// Paths computed for a goal are reused by later calls with the same goal
// text.
type ShortestPath struct{}

// Name implements Strategy.
func (ShortestPath) Name() string { return "shortestPath" }

// Decide implements Strategy.
func (s ShortestPath) Decide(ctx context.Context, agent Agent, in Input) (*domain.Decision, error) {
	logger := agent.Logger()
	cost := in.Cost
	if cost == nil {
		cost = DefaultCost
	}

	// Paths are searched from, and trimmed against, the resolved state so
	// that defaulted context keys and completed regions match.
	current := in.State
	var from domain.Snapshot
	if in.Environment != nil {
		resolved, err := in.Environment.Resolve(in.State)
		if err != nil {
			return nil, fmt.Errorf("shortest path: %w", err)
		}
		from = resolved
		current = resolved.Observed()
	}

	var paths []domain.Path
	cached, hit := s.cached(agent, in.Goal)
	switch {
	case hit:
		logger.Debug("reusing planned paths", "episode_id", agent.EpisodeID(), "decision_id", cached.ID)
		paths = cached.Paths
	case in.Environment == nil:
		return nil, nil
	default:
		predicate, err := s.synthesize(ctx, agent, in)
		if err != nil {
			return nil, err
		}
		paths, err = in.Environment.ShortestPaths(from, func(snap domain.Snapshot) bool {
			return predicate.Match(ensureContext(snap.Context))
		})
		if err != nil {
			return nil, fmt.Errorf("shortest path: %w", err)
		}
		logger.Debug("planned paths", "episode_id", agent.EpisodeID(), "paths", len(paths))
	}

	var candidates []domain.Path
	for _, p := range paths {
		steps, ok := TrimSteps(p.Steps, current)
		if !ok {
			continue
		}
		p.Steps = steps
		candidates = append(candidates, p)
	}
	slices.SortStableFunc(candidates, func(a, b domain.Path) int {
		ca, cb := cost(a), cost(b)
		switch {
		case ca < cb:
			return -1
		case ca > cb:
			return 1
		}
		return 0
	})

	decision := &domain.Decision{
		ID:        domain.NewID(),
		Strategy:  s.Name(),
		Goal:      in.Goal,
		Paths:     paths,
		EpisodeID: agent.EpisodeID(),
		Timestamp: time.Now(),
	}
	if len(candidates) > 0 {
		best := candidates[0]
		decision.GoalState = best.State
		if len(best.Steps) > 0 {
			event := best.Steps[0].Event
			decision.NextEvent = &event
		}
	}
	return decision, nil
}

func (s ShortestPath) cached(agent Agent, goal string) (domain.Decision, bool) {
	for _, d := range agent.Decisions() {
		if d.Strategy == s.Name() && d.Goal == goal {
			return d, true
		}
	}
	return domain.Decision{}, false
}

// TrimSteps drops every step up to and including the first one whose state
// equals current. ok is false when no step matches.
func TrimSteps(steps []domain.Step, current domain.ObservedState) (rest []domain.Step, ok bool) {
	for i, step := range steps {
		if step.State != nil && step.State.Equal(current) {
			return slices.Clone(steps[i+1:]), true
		}
	}
	return nil, false
}

func contextSchemaFor(agent Agent, env ports.Environment) map[string]any {
	if cs := agent.ContextSchema(); cs != nil {
		return cs.JSONSchema()
	}
	if cs := env.ContextSchema(); cs != nil {
		return cs.JSONSchema()
	}
	return schema.NewObject().JSONSchema()
}

// PredicatePrompt renders the goal and context schema followed by the
// predicate instructions.
func PredicatePrompt(goal string, contextSchema map[string]any) (string, error) {
	raw, err := json.Marshal(contextSchema)
	if err != nil {
		return "", fmt.Errorf("encode context schema: %w", err)
	}
	return wrapTag("goal", goal) + "\n" + wrapTag("contextSchema", string(raw)) + "\n\n" + predicateInstruction, nil
}

// predicateResponseSchema constrains the model answer to a context schema with
// exactly the known properties.
func predicateResponseSchema(contextSchema map[string]any) map[string]any {
	props := map[string]any{}
	if known, ok := contextSchema["properties"].(map[string]any); ok {
		for k := range known {
			props[k] = map[string]any{}
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contextSchema": map[string]any{
				"type":        "object",
				"description": "The JSON Schema representing the goal state context",
				"properties": map[string]any{
					"type": map[string]any{"const": "object"},
					"properties": map[string]any{
						"type":                 "object",
						"properties":           props,
						"additionalProperties": false,
					},
					"required": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []any{"type", "properties"},
			},
		},
		"required": []any{"contextSchema"},
	}
}

func (s ShortestPath) synthesize(ctx context.Context, agent Agent, in Input) (*schema.Predicate, error) {
	contextSchema := contextSchemaFor(agent, in.Environment)
	prompt, err := PredicatePrompt(in.Goal, contextSchema)
	if err != nil {
		return nil, err
	}

	res, err := llm.GenerateObject(ctx, modelFor(agent, in), ports.GenerateRequest{
		System:     systemFor(agent, in),
		Messages:   withPrompt(in.Messages, prompt),
		SchemaName: "goalPredicate",
	}, predicateResponseSchema(contextSchema))
	if errors.Is(err, llm.ErrInvalidObject) {
		return nil, &PredicateError{Goal: in.Goal, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("shortest path: %w", err)
	}

	doc, _ := res.Object["contextSchema"].(map[string]any)
	predicate, err := schema.CompilePredicate(doc)
	if err != nil {
		return nil, &PredicateError{Goal: in.Goal, Schema: doc, Err: err}
	}
	agent.Logger().Debug("goal predicate", "episode_id", agent.EpisodeID(), "schema", doc)
	return predicate, nil
}

func ensureContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return map[string]any{}
	}
	return ctx
}
