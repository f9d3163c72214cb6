package main

import (
	"fmt"

	"github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the machine as a Mermaid diagram",
	Long:  `Compiles the machine definition and outputs a Mermaid flowchart (graph TD) of its states and transitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if active, _ := cmd.Flags().GetString("active"); active != "" {
			state, err := parseState(active, "")
			if err != nil {
				return err
			}
			snap, err := env.machine.Resolve(state)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{Active: snap.Value.Paths()}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(env.machine.States(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("active", "", "Highlight the active states of this state value")
}
