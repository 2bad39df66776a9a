package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/roster/internal/wire"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Inspect configured personas",
}

var personasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List personas with their current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		personas, err := wire.PersonaService().ListPersonas(ctx)
		if err != nil {
			return fmt.Errorf("failed to list personas: %w", err)
		}

		if len(personas) == 0 {
			fmt.Println("No personas configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCLASS\tACTIVE\tBUDGET\tLAST CYCLE")
		fmt.Fprintln(w, "--\t----\t-----\t------\t------\t----------")
		for _, p := range personas {
			budget := "-"
			if p.HasState {
				budget = fmt.Sprintf("%d", p.BudgetRemaining)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.Name, p.Class, activeLabel(p.Active, p.Disabled), budget, formatTime(p.LastCycleAt))
		}
		w.Flush()
		return nil
	},
}

func init() {
	personasCmd.AddCommand(personasListCmd)
}

// PersonasCmd returns the personas command.
func PersonasCmd() *cobra.Command {
	return personasCmd
}
