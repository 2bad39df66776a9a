package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/roster/internal/cli"
	"github.com/example/roster/internal/version"
	"github.com/example/roster/internal/wire"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "roster",
		Short:   "Roster - tick engine for simulated personas",
		Version: version.String(),
		Long: `Roster runs a roster of simulated personas. Each tick gates a persona
on its active window, interval and budget, asks the oracle for a decision,
and executes the resulting actions under hard guardrails.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			wire.SetConfigPath(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./roster.yaml or ~/.roster/roster.yaml)")

	// Cycle triggers
	rootCmd.AddCommand(cli.TickCmd())
	rootCmd.AddCommand(cli.TickAllCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	// Query surface
	rootCmd.AddCommand(cli.CyclesCmd())
	rootCmd.AddCommand(cli.StateCmd())
	rootCmd.AddCommand(cli.PersonasCmd())

	rootCmd.AddCommand(cli.InitCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
