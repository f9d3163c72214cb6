package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/pkg/machine"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		states   []machine.StateInfo
		contains []string
		excludes []string
	}{
		{
			name: "Shapes",
			states: []machine.StateInfo{
				{Path: ""},
				{Path: "idle", Key: "idle", Type: machine.NodeAtomic, Initial: true},
				{Path: "busy", Key: "busy", Type: machine.NodeParallel},
				{Path: "done", Key: "done", Type: machine.NodeFinal},
				{Path: "busy.left", Key: "left", Parent: "busy", Type: machine.NodeAtomic, Initial: true},
			},
			contains: []string{
				"idle((\"idle\"))",
				"busy[[\"busy\"]]",
				"done(((\"done\")))",
				"busy_left[\"busy.left\"]",
			},
			excludes: []string{"root"},
		},
		{
			name: "Transitions",
			states: []machine.StateInfo{
				{Path: "solving", Initial: true, On: []machine.TransitionInfo{
					{Event: "fill3"},
					{Event: "give-up", Target: "failed", Guard: `context.mood == "bad"`},
				}, Always: []machine.TransitionInfo{
					{Target: "success", Guard: "jug5IsFour"},
					{Target: "failed"},
				}},
			},
			contains: []string{
				"solving -- \"fill3\" --> solving",
				"solving -- \"give-up [context.mood == 'bad']\" --> failed",
				"solving -. \"[jug5IsFour]\" .-> success",
				"solving -.-> failed",
			},
		},
		{
			name: "Root Transitions",
			states: []machine.StateInfo{
				{Path: "", On: []machine.TransitionInfo{{Event: "reset", Target: "lights.off"}}},
			},
			contains: []string{"root -- \"reset\" --> lights_off"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.states, nil)
			if !strings.HasPrefix(got, "graph TD\n") {
				t.Errorf("expected flowchart header, got:\n%s", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("expected output not to contain %q, got:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	states := []machine.StateInfo{{Path: "a", Initial: true}, {Path: "b"}}
	got := graph.GenerateMermaid(states, &graph.Overlay{
		Visited: []string{"a", "a", ""},
		Active:  []string{"b"},
	})

	if strings.Count(got, "class a visited;") != 1 {
		t.Errorf("visited states should be deduplicated, got:\n%s", got)
	}
	if !strings.Contains(got, "class b active;") {
		t.Errorf("expected active class on b, got:\n%s", got)
	}
}
