package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/wire"
)

var tickCmd = &cobra.Command{
	Use:   "tick [persona-id]",
	Short: "Run one cycle for a persona",
	Long: `Run one gated decision cycle for a persona.

A gated-out cycle (outside the active window, too soon, disabled, inactive)
is reported but is not an error. --force bypasses the window, interval and
budget checks; disabled and inactive personas are still skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		force, _ := cmd.Flags().GetBool("force")

		res, err := wire.TickService().RunCycle(ctx, primary.CycleRequest{PersonaID: args[0], Force: force})
		if res != nil {
			writeCycleResult(os.Stdout, res)
		}
		if err != nil {
			return fmt.Errorf("cycle failed: %w", err)
		}
		return nil
	},
}

var tickAllCmd = &cobra.Command{
	Use:   "tick-all",
	Short: "Run one cycle for every persona",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		force, _ := cmd.Flags().GetBool("force")

		res, err := wire.TickService().TickAll(ctx, primary.TickAllRequest{Force: force})
		if err != nil {
			return fmt.Errorf("tick-all failed: %w", err)
		}
		for _, r := range res.Results {
			writeCycleResult(os.Stdout, r)
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d cycles failed", res.Failed, len(res.Results))
		}
		return nil
	},
}

func init() {
	tickCmd.Flags().Bool("force", false, "Bypass the window, interval and budget checks")
	tickAllCmd.Flags().Bool("force", false, "Bypass the window, interval and budget checks")
}

// TickCmd returns the tick command.
func TickCmd() *cobra.Command {
	return tickCmd
}

// TickAllCmd returns the tick-all command.
func TickAllCmd() *cobra.Command {
	return tickAllCmd
}
