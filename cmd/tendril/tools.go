package main

import (
	"errors"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/toolkit"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [state]",
	Short: "List the tools available from a state",
	Long:  `Resolves the state (the initial state by default) and prints the tools a model would be offered, as JSON.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		value := ""
		if len(args) > 0 {
			value = args[0]
		}
		ctxJSON, _ := cmd.Flags().GetString("context")
		state, err := parseState(value, ctxJSON)
		if err != nil {
			return err
		}

		tools, err := toolkit.Tools(state, env.machine, env.events)
		if err != nil && !errors.Is(err, domain.ErrNoToolsAvailable) {
			return err
		}
		if tools == nil {
			tools = domain.ToolSet{}
		}
		return printJSON(cmd.OutOrStdout(), tools)
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().String("context", "", "JSON object with the state context")
}
