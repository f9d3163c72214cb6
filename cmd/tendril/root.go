package main

import (
	"fmt"
	"os"

	"github.com/aretw0/tendril/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "tendril",
	Short: "Tendril drives language-model agents through state machine environments",
	Long: `Tendril loads an environment machine definition, turns the transitions available
from a state into tools and lets an agent pick the next event.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		loaded, err := config.Load(viper.New(), cmd.Flags(), envFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file with TENDRIL_* variables")
}
