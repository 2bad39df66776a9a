package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roster/internal/adapters/sqlite"
	"github.com/example/roster/internal/ports/secondary"
)

func TestCycleRepository_CreateIsIdempotent(t *testing.T) {
	repo := sqlite.NewCycleRepository(setupTestDB(t))
	ctx := context.Background()

	record := &secondary.CycleRecord{ID: "cyc-1", PersonaID: "dana", Status: "running", StartedAt: testNow, Force: true}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("re-Create should be a no-op, got %v", err)
	}

	got, err := repo.GetByID(ctx, "cyc-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != "running" || !got.Force || !got.StartedAt.Equal(testNow) {
		t.Errorf("got %+v", got)
	}
}

func TestCycleRepository_UpdateFinalizes(t *testing.T) {
	repo := sqlite.NewCycleRepository(setupTestDB(t))
	ctx := context.Background()

	record := &secondary.CycleRecord{ID: "cyc-1", PersonaID: "dana", Status: "running", StartedAt: testNow}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done := testNow.Add(3 * time.Second)
	record.Status = "completed"
	record.CompletedAt = &done
	record.InboundCount = 4
	record.ActionsPlanned = 2
	record.ActionsExecuted = 2
	record.ActionsSucceeded = 1
	record.CostSpent = 10
	record.OracleLatencyMs = 1200
	record.PromptTokens = 900
	record.CompletionTokens = 120
	record.Fallback = true
	if err := repo.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "cyc-1")
	if got.Status != "completed" || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("status/completedAt = %s/%v", got.Status, got.CompletedAt)
	}
	if got.CostSpent != 10 || got.ActionsSucceeded != 1 || got.PromptTokens != 900 || !got.Fallback {
		t.Errorf("counters not persisted: %+v", got)
	}
}

func TestCycleRepository_UpdateMissing(t *testing.T) {
	repo := sqlite.NewCycleRepository(setupTestDB(t))

	err := repo.Update(context.Background(), &secondary.CycleRecord{ID: "nope", Status: "failed"})
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCycleRepository_ListFilters(t *testing.T) {
	repo := sqlite.NewCycleRepository(setupTestDB(t))
	ctx := context.Background()

	for i, c := range []struct{ id, persona, status string }{
		{"c1", "dana", "completed"},
		{"c2", "bob", "skipped"},
		{"c3", "dana", "failed"},
	} {
		rec := &secondary.CycleRecord{ID: c.id, PersonaID: c.persona, Status: "running", StartedAt: testNow.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		rec.Status = c.status
		if err := repo.Update(ctx, rec); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		filters secondary.CycleFilters
		want    []string
	}{
		{"all newest first", secondary.CycleFilters{}, []string{"c3", "c2", "c1"}},
		{"by persona", secondary.CycleFilters{PersonaID: "dana"}, []string{"c3", "c1"}},
		{"by status", secondary.CycleFilters{Status: "skipped"}, []string{"c2"}},
		{"limit", secondary.CycleFilters{Limit: 1}, []string{"c3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := repo.List(ctx, tt.filters)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			var ids []string
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}
