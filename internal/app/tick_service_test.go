package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/roster/internal/core/cycle"
	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/primary"
)

type mockCycleRunner struct {
	mu       sync.Mutex
	requests []primary.CycleRequest
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *mockCycleRunner) RunCycle(ctx context.Context, req primary.CycleRequest) (*primary.CycleResult, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.fail[req.PersonaID] {
		return &primary.CycleResult{PersonaID: req.PersonaID, CycleID: "c-" + req.PersonaID, Outcome: string(cycle.OutcomeFailed)},
			&CycleError{CycleID: "c-" + req.PersonaID, PersonaID: req.PersonaID, Err: errors.New("database is locked")}
	}
	return &primary.CycleResult{PersonaID: req.PersonaID, Outcome: string(cycle.OutcomeCompleted)}, nil
}

func TestTickAll_FansOutWithCeiling(t *testing.T) {
	var personas []models.Persona
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		personas = append(personas, models.Persona{ID: id, Address: id + "@corp.example"})
	}
	runner := &mockCycleRunner{fail: map[string]bool{"c": true}}
	svc := NewTickService(runner, newMockDirectory(personas...), 2, logging.Discard())

	res, err := svc.TickAll(context.Background(), primary.TickAllRequest{Force: true})
	if err != nil {
		t.Fatalf("TickAll failed: %v", err)
	}

	if len(res.Results) != 7 || len(runner.requests) != 7 {
		t.Fatalf("results=%d requests=%d, want 7", len(res.Results), len(runner.requests))
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if res.Results[2].PersonaID != "c" || res.Results[2].Error == "" {
		t.Errorf("result for c = %+v, want failure with error", res.Results[2])
	}
	if got := runner.maxSeen.Load(); got > 2 {
		t.Errorf("saw %d concurrent cycles, want at most 2", got)
	}
	for _, req := range runner.requests {
		if !req.Force {
			t.Errorf("request %s lost the force flag", req.PersonaID)
		}
	}
}

func TestTickAll_UnknownPersonaResultIsFilled(t *testing.T) {
	runner := &nilResultRunner{}
	svc := NewTickService(runner, newMockDirectory(models.Persona{ID: "a"}), 1, logging.Discard())

	res, err := svc.TickAll(context.Background(), primary.TickAllRequest{})
	if err != nil {
		t.Fatalf("TickAll failed: %v", err)
	}
	if res.Results[0] == nil || res.Results[0].Outcome != string(cycle.OutcomeFailed) || res.Results[0].PersonaID != "a" {
		t.Errorf("result = %+v", res.Results[0])
	}
}

type nilResultRunner struct{}

func (nilResultRunner) RunCycle(ctx context.Context, req primary.CycleRequest) (*primary.CycleResult, error) {
	return nil, ErrUnknownPersona
}
