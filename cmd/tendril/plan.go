package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/llm"
	"github.com/aretw0/tendril/pkg/machine"
	"github.com/aretw0/tendril/pkg/strategy"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Solve the machine offline with the shortest-path planner",
	Long: `Runs an agent against a live instance of the machine using the shortest-path
strategy. The goal predicate is supplied as JSON instead of being synthesized by a
model, so no network access is needed:

  tendril plan --definition examples/jugs/jugs.yaml \
    --predicate '{"contextSchema":{"type":"object","properties":{"jug5":{"const":4}},"required":["jug5"]}}'

Memory is written to the configured store under the configured episode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		predicate, err := predicateFlag(cmd)
		if err != nil {
			return err
		}
		goal, _ := cmd.Flags().GetString("goal")
		if goal == "" && env.def.Agent != nil {
			goal = env.def.Agent.Goal
		}
		maxSteps, _ := cmd.Flags().GetInt("max-steps")

		store, closeStore, err := cfg.OpenStore()
		if err != nil {
			return err
		}
		defer closeStore()

		model, err := llm.Static(predicate)
		if err != nil {
			return err
		}
		opts := []tendril.Option{
			tendril.WithEvents(env.events),
			tendril.WithStrategy(strategy.ShortestPath{}),
			tendril.WithLogger(cfg.Logger()),
			tendril.WithMemory(store),
		}
		if env.def.Agent != nil {
			opts = append(opts, tendril.WithName(env.def.Agent.Name), tendril.WithDescription(env.def.Agent.Description))
		}
		if cfg.Episode != "" {
			opts = append(opts, tendril.WithEpisodeID(cfg.Episode))
		}
		agent, err := tendril.New(model, opts...)
		if err != nil {
			return err
		}
		defer agent.Close()

		actor := machine.NewActor(env.machine)
		if err := actor.Start(); err != nil {
			return err
		}

		steps := 0
		stop := agent.Interact(cmd.Context(), actor, func(obs domain.Observation) *tendril.DecideOptions {
			if actor.Snapshot().Done || steps >= maxSteps {
				return nil
			}
			steps++
			return &tendril.DecideOptions{Goal: goal}
		})
		stop()

		out := cmd.OutOrStdout()
		for i, d := range agent.Decisions() {
			fmt.Fprintf(out, "%d. %s\n", i+1, d.NextEvent.Type)
		}
		final := actor.Snapshot()
		ctxJSON, _ := json.Marshal(final.Context)
		fmt.Fprintf(out, "state: %s context: %s done: %t\n", final.Value, ctxJSON, final.Done)
		fmt.Fprintf(out, "episode: %s\n", agent.EpisodeID())
		if !final.Done {
			return fmt.Errorf("goal not reached after %d steps", steps)
		}
		return nil
	},
}

func predicateFlag(cmd *cobra.Command) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString("predicate")
	if path, _ := cmd.Flags().GetString("predicate-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = string(data)
	}
	if raw == "" {
		return nil, fmt.Errorf("--predicate or --predicate-file is required")
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid predicate: %w", err)
	}
	return doc, nil
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().String("goal", "", "Goal in natural language (defaults to agent.goal of the definition)")
	planCmd.Flags().String("predicate", "", `Goal predicate as JSON: {"contextSchema": <JSON Schema>}`)
	planCmd.Flags().String("predicate-file", "", "File holding the goal predicate")
	planCmd.Flags().Int("max-steps", 50, "Stop after this many decisions")
}
