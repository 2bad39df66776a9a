package decision

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"

	"github.com/example/roster/internal/core/action"
	"github.com/example/roster/internal/core/memory"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

type wireDecision struct {
	Reasoning string            `json:"reasoning"`
	Actions   *[]json.RawMessage `json:"actions"`
	Memory    *wireMemory        `json:"memory"`
}

type wireMemory struct {
	Add    []string `json:"add"`
	Forget []string `json:"forget"`
}

// ExtractPayload finds the JSON payload in raw oracle text: the first fenced
// code block when present, otherwise the first top-level object.
func ExtractPayload(raw string) (string, bool) {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		if body := strings.TrimSpace(m[1]); body != "" {
			return body, true
		}
	}
	return firstObject(raw)
}

// firstObject returns the first balanced {...} substring, honoring string
// literals. An unterminated object is returned to the end of input so repair
// can have a go at it.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return s[start:], true
}

// Parse turns raw oracle text into a typed decision. It returns an error for
// output that does not match the decision schema; callers substitute
// Fallback. Per-action structural checks are left to dispatch.
func Parse(raw string) (Decision, error) {
	payload, ok := ExtractPayload(raw)
	if !ok {
		return Decision{}, errors.New("no JSON object found in oracle output")
	}

	var wire wireDecision
	if err := decodeStrict(payload, &wire); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			return Decision{}, fmt.Errorf("invalid JSON: %w", err)
		}
		wire = wireDecision{}
		if err := decodeStrict(repaired, &wire); err != nil {
			return Decision{}, fmt.Errorf("invalid JSON after repair: %w", err)
		}
	}

	if wire.Actions == nil {
		return Decision{}, errors.New(`decision is missing "actions"`)
	}

	actions := make([]action.Action, 0, len(*wire.Actions))
	for i, rawAction := range *wire.Actions {
		a, err := action.Decode(rawAction)
		if err != nil {
			return Decision{}, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}

	d := Decision{
		Reasoning: strings.TrimSpace(wire.Reasoning),
		Actions:   actions,
	}
	if wire.Memory != nil {
		d.Memory = memory.Update{Add: wire.Memory.Add, Forget: wire.Memory.Forget}
	}
	return d, nil
}

// decodeStrict decodes one JSON value, rejecting fields the target does not define.
func decodeStrict(payload string, v any) error {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ParseOrFallback parses raw output, substituting the fallback decision on
// any failure. The returned error is informational only.
func ParseOrFallback(raw string) (Decision, error) {
	d, err := Parse(raw)
	if err != nil {
		return Fallback(err.Error()), err
	}
	return d, nil
}
