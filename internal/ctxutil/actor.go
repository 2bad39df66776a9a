// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// PersonaKey is the context key for the persona a cycle runs on behalf of.
type PersonaKey struct{}

// CycleKey is the context key for the current cycle ID.
type CycleKey struct{}

// WithPersonaID returns a context with the persona ID embedded.
func WithPersonaID(ctx context.Context, personaID string) context.Context {
	return context.WithValue(ctx, PersonaKey{}, personaID)
}

// PersonaFromContext returns the persona ID from context, or empty string if not set.
func PersonaFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(PersonaKey{}).(string); ok {
		return v
	}
	return ""
}

// WithCycleID returns a context with the cycle ID embedded.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, CycleKey{}, cycleID)
}

// CycleFromContext returns the cycle ID from context, or empty string if not set.
func CycleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CycleKey{}).(string); ok {
		return v
	}
	return ""
}
