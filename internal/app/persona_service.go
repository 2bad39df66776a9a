package app

import (
	"context"
	"fmt"

	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/primary"
	"github.com/example/roster/internal/ports/secondary"
)

// PersonaServiceImpl implements the PersonaService interface.
type PersonaServiceImpl struct {
	directory secondary.PersonaDirectory
	states    secondary.PersonaStateRepository
	reconcile *StateReconciler
	policy    CyclePolicy
}

// NewPersonaService creates a new PersonaService with injected dependencies.
func NewPersonaService(directory secondary.PersonaDirectory, states secondary.PersonaStateRepository, reconcile *StateReconciler, policy CyclePolicy) *PersonaServiceImpl {
	return &PersonaServiceImpl{
		directory: directory,
		states:    states,
		reconcile: reconcile,
		policy:    policy,
	}
}

// ListPersonas lists every configured persona joined with its state.
func (s *PersonaServiceImpl) ListPersonas(ctx context.Context) ([]*primary.PersonaStatus, error) {
	records, err := s.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list persona state: %w", err)
	}
	byID := make(map[string]*secondary.PersonaStateRecord, len(records))
	for _, r := range records {
		byID[r.PersonaID] = r
	}

	var out []*primary.PersonaStatus
	for _, p := range s.directory.List() {
		out = append(out, s.status(p, byID[p.ID]))
	}
	return out, nil
}

// GetPersona retrieves one persona joined with its state.
func (s *PersonaServiceImpl) GetPersona(ctx context.Context, personaID string) (*primary.PersonaStatus, error) {
	p, ok := s.directory.Get(personaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
	}
	rec, err := s.reconcile.Load(ctx, personaID)
	if err != nil {
		return nil, err
	}
	return s.status(p, rec), nil
}

// SetActive activates or deactivates a persona.
func (s *PersonaServiceImpl) SetActive(ctx context.Context, personaID string, active bool) error {
	if _, ok := s.directory.Get(personaID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPersona, personaID)
	}
	return s.reconcile.SetActive(ctx, personaID, active)
}

func (s *PersonaServiceImpl) status(p models.Persona, rec *secondary.PersonaStateRecord) *primary.PersonaStatus {
	st := &primary.PersonaStatus{
		ID:       p.ID,
		Name:     p.DisplayName(),
		Address:  p.Address,
		Class:    p.Class,
		Disabled: s.policy.IsDisabled(p.ID),
		Channels: p.Channels,
		// No state yet means the persona will be created active.
		Active: true,
	}
	if rec != nil {
		st.HasState = true
		st.Active = rec.Active
		st.BudgetRemaining = rec.BudgetRemaining
		st.BudgetResetDate = rec.BudgetResetDate
		st.LastCycleAt = rec.LastCycleAt
		st.LastCycleID = rec.LastCycleID
		st.Memory = rec.Memory
	}
	return st
}

var _ primary.PersonaService = (*PersonaServiceImpl)(nil)
