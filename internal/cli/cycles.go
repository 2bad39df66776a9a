package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/wire"
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Inspect cycle records",
	Long:  "List and show cycle records and their action results",
}

var cyclesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cycles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		personaID, _ := cmd.Flags().GetString("persona")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		cycles, err := wire.CycleQueryService().ListCycles(ctx, primary.CycleFilters{
			PersonaID: personaID,
			Status:    status,
			Limit:     limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list cycles: %w", err)
		}

		if len(cycles) == 0 {
			fmt.Println("No cycles found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPERSONA\tSTATUS\tSTARTED\tACTIONS\tCOST\tNOTE")
		fmt.Fprintln(w, "--\t-------\t------\t-------\t-------\t----\t----")
		for _, c := range cycles {
			note := c.SkipReason
			if c.Error != "" {
				note = c.Error
			} else if c.Fallback {
				note = "fallback"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
				c.ID, c.PersonaID, badge(c.Status), formatTime(&c.StartedAt),
				c.ActionsSucceeded, c.ActionsPlanned, c.CostSpent, truncateText(note, 50))
		}
		w.Flush()
		return nil
	},
}

var cyclesShowCmd = &cobra.Command{
	Use:   "show [cycle-id]",
	Short: "Show a cycle and its action results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		detail, err := wire.CycleQueryService().GetCycle(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get cycle: %w", err)
		}

		c := detail.Cycle
		fmt.Printf("Cycle %s\n", c.ID)
		fmt.Printf("  Persona: %s\n", c.PersonaID)
		fmt.Printf("  Status: %s\n", badge(c.Status))
		if c.Force {
			fmt.Println("  Forced: yes")
		}
		fmt.Printf("  Started: %s\n", formatTime(&c.StartedAt))
		fmt.Printf("  Completed: %s\n", formatTime(c.CompletedAt))
		fmt.Printf("  Context: %d inbound, %d channel messages, %d follow-ups\n",
			c.InboundCount, c.ChannelMessageCount, c.FollowupCount)
		fmt.Printf("  Oracle: %s, %d prompt / %d completion tokens\n",
			c.OracleLatency, c.PromptTokens, c.CompletionTokens)
		if c.Fallback {
			fmt.Println("  Decision: fallback")
		}
		fmt.Printf("  Actions: %d planned, %d executed, %d succeeded, cost %d\n",
			c.ActionsPlanned, c.ActionsExecuted, c.ActionsSucceeded, c.CostSpent)
		if c.SkipReason != "" {
			fmt.Printf("  Skip reason: %s\n", c.SkipReason)
		}
		if c.Error != "" {
			fmt.Printf("  Error: %s\n", c.Error)
		}

		if len(detail.Actions) == 0 {
			return nil
		}
		fmt.Println()
		for _, a := range detail.Actions {
			fmt.Printf("  %s [%d] %s (cost %d)\n", outcomeMark(a), a.Index, a.Kind, a.Cost)
			fmt.Printf("      %s\n", truncateText(a.Payload, 120))
			if a.Error != "" {
				fmt.Printf("      error: %s\n", a.Error)
			}
			keys := make([]string, 0, len(a.Metadata))
			for k := range a.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("      %s: %s\n", k, a.Metadata[k])
			}
		}
		return nil
	},
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	cyclesListCmd.Flags().StringP("persona", "p", "", "Filter by persona")
	cyclesListCmd.Flags().StringP("status", "s", "", "Filter by status (running, completed, failed, skipped)")
	cyclesListCmd.Flags().IntP("limit", "n", 20, "Maximum cycles to list")

	cyclesCmd.AddCommand(cyclesListCmd)
	cyclesCmd.AddCommand(cyclesShowCmd)
}

// CyclesCmd returns the cycles command.
func CyclesCmd() *cobra.Command {
	return cyclesCmd
}
