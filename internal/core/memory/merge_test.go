package memory

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		upd      Update
		limit    int
		want     []string
	}{
		{
			name:     "prepends new entries",
			existing: []string{"b", "a"},
			upd:      Update{Add: []string{"c"}},
			want:     []string{"c", "b", "a"},
		},
		{
			name:     "forget is case-insensitive",
			existing: []string{"Q3 plan is late", "Bob prefers email"},
			upd:      Update{Forget: []string{"q3 PLAN is late"}},
			want:     []string{"Bob prefers email"},
		},
		{
			name:     "new entry replaces case-insensitive duplicate",
			existing: []string{"x", "Launch on Friday"},
			upd:      Update{Add: []string{"launch on friday"}},
			want:     []string{"launch on friday", "x"},
		},
		{
			name:     "duplicates within add collapse to first",
			existing: nil,
			upd:      Update{Add: []string{"One", "one", "two"}},
			want:     []string{"One", "two"},
		},
		{
			name:     "blank entries are dropped",
			existing: []string{"  ", "kept"},
			upd:      Update{Add: []string{"", "  new  "}},
			want:     []string{"new", "kept"},
		},
		{
			name:     "truncates to limit keeping most recent",
			existing: []string{"c", "b", "a"},
			upd:      Update{Add: []string{"d"}},
			limit:    2,
			want:     []string{"d", "c"},
		},
		{
			name:     "empty update keeps existing",
			existing: []string{"a"},
			upd:      Update{},
			want:     []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.existing, tt.upd, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMerge_Converges(t *testing.T) {
	existing := []string{"alpha", "beta"}
	upd := Update{Add: []string{"gamma", "Alpha"}, Forget: []string{"beta"}}

	once := Merge(existing, upd, 20)
	twice := Merge(once, upd, 20)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("repeated merge diverged: %q vs %q", once, twice)
	}
}

func TestMerge_BoundHoldsAcrossCycles(t *testing.T) {
	var mem []string
	for i := 0; i < 50; i++ {
		mem = Merge(mem, Update{Add: []string{fmt.Sprintf("note %d", i), fmt.Sprintf("NOTE %d", i-1)}}, 20)

		if len(mem) > 20 {
			t.Fatalf("cycle %d: len = %d, exceeds bound", i, len(mem))
		}
		seen := map[string]bool{}
		for _, m := range mem {
			k := strings.ToLower(m)
			if seen[k] {
				t.Fatalf("cycle %d: duplicate entry %q", i, m)
			}
			seen[k] = true
		}
	}
	if mem[0] != "note 49" {
		t.Errorf("expected most recent entry first, got %q", mem[0])
	}
}
