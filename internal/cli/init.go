package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/roster/internal/adapters/persistence"
	"github.com/example/roster/internal/config"
	"github.com/example/roster/internal/models"
)

// InitCmd returns the init command.
func InitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config and a sample roster",
		Long: `Write roster.yaml and a sample personas.yaml into dir (default: the
current directory). Existing files are left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	return cmd
}

func runInit(dir string, force bool) error {
	cfgPath := filepath.Join(dir, config.DefaultFile)
	cfg := config.Default()

	rosterPath := filepath.Join(dir, cfg.PersonasFile)

	for _, path := range []string{cfgPath, rosterPath} {
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.SaveConfig(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s\n", cfgPath)

	if err := persistence.SaveRoster(rosterPath, samplePersonas()); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s\n", rosterPath)

	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  export %s=...    # without a key every cycle falls back to noop\n", cfg.Oracle.APIKeyEnv)
	fmt.Println("  roster personas list")
	fmt.Println("  roster tick dana --force")
	return nil
}

func samplePersonas() []models.Persona {
	return []models.Persona{
		{
			ID:        "dana",
			Name:      "Dana Ortiz",
			Address:   "dana@corp.example",
			Class:     models.ClassExecutive,
			Role:      "VP Engineering",
			Biography: "Runs the platform org. Joined from a payments startup two years ago.",
			Tone:      "Direct and brief. Rarely uses exclamation marks.",
			Priorities: []string{
				"Ship the Q3 reliability roadmap",
				"Keep hiring on track",
			},
			Relationships: []models.Relationship{
				{PersonaID: "sam", Description: "Direct report; leads the storage team"},
			},
			Channels: []string{"#eng", "#leadership"},
		},
		{
			ID:        "sam",
			Name:      "Sam Lee",
			Address:   "sam@corp.example",
			Class:     models.ClassStaff,
			Role:      "Storage team lead",
			Biography: "Long-tenured engineer, knows where the bodies are buried in the data layer.",
			Tone:      "Friendly, detailed, prone to long explanations.",
			Priorities: []string{
				"Finish the replication migration",
				"Mentor the two new hires",
			},
			Relationships: []models.Relationship{
				{PersonaID: "dana", Description: "Manager"},
			},
			Channels: []string{"#eng", "#storage"},
		},
		{
			ID:        "kit",
			Name:      "Kit Novak",
			Address:   "kit@corp.example",
			Class:     models.ClassPeripheral,
			Role:      "Facilities coordinator",
			Biography: "Handles office logistics and the occasional all-hands.",
			Tone:      "Cheerful.",
			Channels:  []string{"#general"},
		},
	}
}
