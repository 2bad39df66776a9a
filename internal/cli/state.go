package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/roster/internal/wire"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show and change persona state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show [persona-id]",
	Short: "Show a persona's budget, memory and last cycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		st, err := wire.PersonaService().GetPersona(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get persona: %w", err)
		}

		fmt.Printf("%s (%s)\n", st.Name, st.ID)
		fmt.Printf("  Address: %s\n", st.Address)
		fmt.Printf("  Class: %s\n", st.Class)
		fmt.Printf("  Active: %s\n", activeLabel(st.Active, st.Disabled))
		if len(st.Channels) > 0 {
			fmt.Printf("  Channels: %s\n", strings.Join(st.Channels, ", "))
		}
		if !st.HasState {
			fmt.Println("  No cycles yet.")
			return nil
		}
		fmt.Printf("  Budget: %d (reset %s)\n", st.BudgetRemaining, st.BudgetResetDate)
		fmt.Printf("  Last cycle: %s at %s\n", orDash(st.LastCycleID), formatTime(st.LastCycleAt))
		if len(st.Memory) > 0 {
			fmt.Println("  Memory:")
			for _, m := range st.Memory {
				fmt.Printf("    - %s\n", m)
			}
		}
		return nil
	},
}

var stateActivateCmd = &cobra.Command{
	Use:   "activate [persona-id]",
	Short: "Allow a persona to run cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(args[0], true)
	},
}

var stateDeactivateCmd = &cobra.Command{
	Use:   "deactivate [persona-id]",
	Short: "Stop a persona from running cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(args[0], false)
	},
}

func setActive(personaID string, active bool) error {
	if err := wire.PersonaService().SetActive(context.Background(), personaID, active); err != nil {
		return fmt.Errorf("failed to update persona: %w", err)
	}
	verb := "Deactivated"
	if active {
		verb = "Activated"
	}
	fmt.Printf("✓ %s %s\n", verb, personaID)
	return nil
}

func activeLabel(active, disabled bool) string {
	switch {
	case disabled:
		return color.New(color.FgYellow).Sprint("disabled")
	case active:
		return color.New(color.FgGreen).Sprint("yes")
	default:
		return color.New(color.FgRed).Sprint("no")
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateActivateCmd)
	stateCmd.AddCommand(stateDeactivateCmd)
}

// StateCmd returns the state command.
func StateCmd() *cobra.Command {
	return stateCmd
}
