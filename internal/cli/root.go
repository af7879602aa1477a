// Package cli is the autodev command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "autodev",
	Short: "Drive a user story through the development agents",
	Long: `autodev sends a user story through five agent services (planning, database,
backend, frontend, testing) in a fixed order, tracks progress, and collects the
generated artifacts into one result.

Configuration is read from ~/.autodev/config.json and .autodev/config.json,
the project file taking precedence. With no subcommand the dashboard starts.`,
	SilenceUsage: true,
	RunE:         runDashboard,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML); replaces the project config")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
}
