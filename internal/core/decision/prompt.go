package decision

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/models"
)

//go:embed templates/*.tmpl
var promptTemplates embed.FS

var templates = template.Must(template.New("prompts").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(promptTemplates, "templates/*.tmpl"))

// InstructionOptions carries the process-level facts baked into the static
// instruction block.
type InstructionOptions struct {
	AllowedSuffix  string
	OverseerHandle string
	Integrations   Integrations
}

// RenderInstructions renders the static-per-persona instruction block.
// Action kinds whose integration is not configured are left out.
func RenderInstructions(p models.Persona, opts InstructionOptions) (string, error) {
	kinds := make([]action.Kind, 0, len(action.Kinds))
	for _, k := range action.Kinds {
		if opts.Integrations.Allows(k) {
			kinds = append(kinds, k)
		}
	}

	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "instructions.tmpl", map[string]any{
		"Persona":        p,
		"Kinds":          kinds,
		"AllowedSuffix":  opts.AllowedSuffix,
		"OverseerHandle": opts.OverseerHandle,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render instructions: %w", err)
	}
	return buf.String(), nil
}

// RenderContext renders the per-cycle context block.
func RenderContext(s Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "context.tmpl", s); err != nil {
		return "", fmt.Errorf("failed to render context: %w", err)
	}
	return buf.String(), nil
}
