package strategy_test

import (
	"context"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jug5IsFour(t *testing.T) llm.Func {
	t.Helper()
	model, err := llm.Static(map[string]any{
		"contextSchema": map[string]any{
			"type":       "object",
			"properties": map[string]any{"jug5": map[string]any{"const": 4}},
			"required":   []any{"jug5"},
		},
	})
	require.NoError(t, err)
	return model
}

func jugState(jug3, jug5 int) domain.ObservedState {
	return domain.ObservedState{Value: domain.Atomic("solving"), Context: map[string]any{"jug3": jug3, "jug5": jug5}}
}

func TestShortestPath_PlansAndReusesPaths(t *testing.T) {
	env := jugMachine(t)
	var requests []*ports.GenerateRequest
	static := jug5IsFour(t)
	agent := newAgent(llm.Func(func(ctx context.Context, req *ports.GenerateRequest) (*ports.GenerateResponse, error) {
		requests = append(requests, req)
		return static(ctx, req)
	}))

	in := strategy.Input{Goal: "jug5 has 4 gallons", State: jugState(0, 0), Events: jugEvents(), Environment: env}
	d, err := strategy.ShortestPath{}.Decide(context.Background(), agent, in)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "shortestPath", d.Strategy)
	require.NotNil(t, d.NextEvent)
	assert.Equal(t, "fill5", d.NextEvent.Type)
	require.NotNil(t, d.GoalState)
	assert.Equal(t, 4, d.GoalState.Context["jug5"])
	assert.NotEmpty(t, d.Paths)

	require.Len(t, requests, 1)
	assert.Equal(t, ports.ModeObject, requests[0].Mode)
	assert.Contains(t, requests[0].Messages[0].Text(), "<goal>jug5 has 4 gallons</goal>")
	assert.Contains(t, requests[0].Messages[0].Text(), `"jug3"`)

	agent.log.Apply(domain.DecisionEvent(*d))

	in.State = jugState(0, 5)
	next, err := strategy.ShortestPath{}.Decide(context.Background(), agent, in)
	require.NoError(t, err)
	require.NotNil(t, next.NextEvent)
	assert.Equal(t, "pour5to3", next.NextEvent.Type)
	assert.Len(t, requests, 1, "cached paths are reused for the same goal")
}

func TestShortestPath_GoalReached(t *testing.T) {
	agent := newAgent(jug5IsFour(t))
	d, err := strategy.ShortestPath{}.Decide(context.Background(), agent, strategy.Input{
		Goal: "jug5 has 4 gallons", State: jugState(3, 4), Environment: jugMachine(t),
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Nil(t, d.NextEvent, "already at the goal")
}

func TestShortestPath_NeedsEnvironmentOrCache(t *testing.T) {
	model := llm.NewScripted()
	d, err := strategy.ShortestPath{}.Decide(context.Background(), newAgent(model), strategy.Input{Goal: "anything", State: jugState(0, 0)})
	assert.NoError(t, err)
	assert.Nil(t, d)
	assert.Zero(t, model.Calls())
}

func TestShortestPath_InvalidPredicate(t *testing.T) {
	tests := []struct {
		name   string
		answer any
	}{
		{name: "not an object", answer: "nope"},
		{name: "unknown property", answer: map[string]any{"contextSchema": map[string]any{
			"type": "object", "properties": map[string]any{"jug7": map[string]any{"const": 4}},
		}}},
		{name: "does not compile", answer: map[string]any{"contextSchema": map[string]any{
			"type": "object", "properties": map[string]any{"jug5": map[string]any{"type": 12}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := llm.Static(tt.answer)
			require.NoError(t, err)
			_, err = strategy.ShortestPath{}.Decide(context.Background(), newAgent(model), strategy.Input{
				Goal: "g", State: jugState(0, 0), Environment: jugMachine(t),
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidGoalPredicate)
			var pe *strategy.PredicateError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestShortestPath_CostFunction(t *testing.T) {
	agent := newAgent(jug5IsFour(t))
	// Prefer the longest plan: (0,4) is one step past (3,4).
	d, err := strategy.ShortestPath{}.Decide(context.Background(), agent, strategy.Input{
		Goal: "g", State: jugState(0, 0), Environment: jugMachine(t),
		Cost: func(p domain.Path) float64 { return -strategy.DefaultCost(p) },
	})
	require.NoError(t, err)
	require.NotNil(t, d.GoalState)
	assert.Equal(t, 0, d.GoalState.Context["jug3"])
	assert.Equal(t, 4, d.GoalState.Context["jug5"])
	require.NotNil(t, d.NextEvent)
	assert.Equal(t, "fill5", d.NextEvent.Type)
}

func TestTrimSteps(t *testing.T) {
	a, b, c := jugState(0, 0), jugState(0, 5), jugState(3, 2)
	steps := []domain.Step{
		{Event: domain.NewEvent(domain.InitEventType, nil), State: &a},
		{Event: domain.NewEvent("fill5", nil), State: &b},
		{Event: domain.NewEvent("pour5to3", nil), State: &c},
	}

	rest, ok := strategy.TrimSteps(steps, b)
	require.True(t, ok)
	require.Len(t, rest, 1)
	assert.Equal(t, "pour5to3", rest[0].Event.Type)

	rest, ok = strategy.TrimSteps(steps, a)
	require.True(t, ok)
	assert.Len(t, rest, 2)

	rest, ok = strategy.TrimSteps(steps, jugState(1, 1))
	assert.False(t, ok)
	assert.Nil(t, rest)

	rest, ok = strategy.TrimSteps(steps, domain.ObservedState{Value: domain.Atomic("solving"), Context: map[string]any{"jug3": 3.0, "jug5": 2.0}})
	require.True(t, ok, "numbers compare by value")
	assert.Empty(t, rest)
}

func TestDefaultCost(t *testing.T) {
	w := 3.0
	assert.Equal(t, 3.0, strategy.DefaultCost(domain.Path{Weight: &w}))
	assert.True(t, strategy.DefaultCost(domain.Path{}) > 1e300)
}

func TestShortestPath_PartialContextIsResolved(t *testing.T) {
	for name, state := range map[string]domain.ObservedState{
		"no context":      {Value: domain.Atomic("solving")},
		"partial context": {Value: domain.Atomic("solving"), Context: map[string]any{"jug3": 0}},
		"no value":        {},
	} {
		t.Run(name, func(t *testing.T) {
			d, err := strategy.ShortestPath{}.Decide(context.Background(), newAgent(jug5IsFour(t)), strategy.Input{
				Goal: "jug5 has 4 gallons", State: state, Events: jugEvents(), Environment: jugMachine(t),
			})
			require.NoError(t, err)
			require.NotNil(t, d)
			require.NotNil(t, d.NextEvent, "defaulted context keys must not hide the origin of the path")
			assert.Equal(t, "fill5", d.NextEvent.Type)
		})
	}
}
