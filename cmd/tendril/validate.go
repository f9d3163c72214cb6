package main

import (
	"fmt"

	"github.com/aretw0/tendril/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the machine definition for consistency",
	Long: `Compiles the machine definition, crawls it from the root and reports unreachable
states. Transitions whose event has no schema in the events section are errors, since
the agent can never be offered a tool for them; declared events no transition handles
are warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}
		report := validator.Validate(env.machine.States(), env.events)
		out := cmd.OutOrStdout()
		for _, issue := range report.Issues {
			fmt.Fprintln(out, issue)
		}
		if err := report.Err(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is valid\n", env.machine.ID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
