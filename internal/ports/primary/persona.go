package primary

import (
	"context"
	"time"
)

// PersonaService defines the primary port for persona status and administration.
type PersonaService interface {
	// ListPersonas lists every configured persona with its current state.
	ListPersonas(ctx context.Context) ([]*PersonaStatus, error)

	// GetPersona retrieves one persona with its current state.
	GetPersona(ctx context.Context, personaID string) (*PersonaStatus, error)

	// SetActive activates or deactivates a persona.
	SetActive(ctx context.Context, personaID string, active bool) error
}

// PersonaStatus is a persona's configuration joined with its state.
type PersonaStatus struct {
	ID              string
	Name            string
	Address         string
	Class           string
	Disabled        bool
	HasState        bool
	Active          bool
	BudgetRemaining int
	BudgetResetDate string
	LastCycleAt     *time.Time
	LastCycleID     string
	Memory          []string
	Channels        []string
}
