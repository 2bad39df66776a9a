// Package memory contains the pure merge rules for a persona's bounded memory.
package memory

import "strings"

// DefaultLimit is the memory bound used when none is configured.
const DefaultLimit = 20

// Update is an oracle-proposed change to memory.
type Update struct {
	Add    []string
	Forget []string
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return len(u.Add) == 0 && len(u.Forget) == 0
}

// Merge applies an update to existing memory (most-recent-first) and returns
// the new list. Forgotten entries and entries duplicating a new addition are
// removed (case-insensitive), new entries are prepended in the order given,
// and the result is truncated to limit. The result never holds two entries
// that are equal ignoring case.
func Merge(existing []string, upd Update, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	forget := make(map[string]struct{}, len(upd.Forget))
	for _, f := range upd.Forget {
		if k := key(f); k != "" {
			forget[k] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(upd.Add)+len(existing))
	merged := make([]string, 0, len(upd.Add)+len(existing))

	for _, a := range upd.Add {
		a = strings.TrimSpace(a)
		k := key(a)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, a)
	}

	for _, e := range existing {
		k := key(e)
		if k == "" {
			continue
		}
		if _, gone := forget[k]; gone {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, e)
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
