package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Clinica admin CLI. Subcommands
// (bootstrap, clinic, migrate) are attached here.
var rootCmd = &cobra.Command{
	Use:           "clinica",
	Short:         "Clinica admin CLI",
	Long:          "Administrative utilities for Clinica (control-plane bootstrap, clinic onboarding, tenant migrations).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
