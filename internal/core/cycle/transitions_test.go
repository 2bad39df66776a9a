package cycle

import (
	"testing"
	"time"
)

func TestFinalize(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		current Status
		next    Status
		wantErr bool
	}{
		{"running to completed", StatusRunning, StatusCompleted, false},
		{"running to failed", StatusRunning, StatusFailed, false},
		{"running to skipped", StatusRunning, StatusSkipped, false},
		{"running to running is rejected", StatusRunning, StatusRunning, true},
		{"completed cannot be finalized again", StatusCompleted, StatusFailed, true},
		{"failed cannot be finalized again", StatusFailed, StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Finalize(tt.current, tt.next, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.NewStatus != tt.next {
				t.Errorf("NewStatus = %q, want %q", got.NewStatus, tt.next)
			}
			if !got.CompletedAt.Equal(now) {
				t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, now)
			}
		})
	}
}

func TestOutcomeFor(t *testing.T) {
	cases := map[Status]Outcome{
		StatusCompleted: OutcomeCompleted,
		StatusSkipped:   OutcomeSkippedBudget,
		StatusFailed:    OutcomeFailed,
	}
	for status, want := range cases {
		if got := OutcomeFor(status); got != want {
			t.Errorf("OutcomeFor(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	if InitialStatus() != StatusRunning {
		t.Errorf("InitialStatus() = %q, want %q", InitialStatus(), StatusRunning)
	}
	if StatusRunning.IsTerminal() {
		t.Error("running must not be terminal")
	}
}
