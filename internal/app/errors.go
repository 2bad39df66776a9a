package app

import (
	"errors"
	"fmt"
)

// ErrUnknownPersona is returned when a cycle is requested for an id the
// directory does not know.
var ErrUnknownPersona = errors.New("unknown persona")

// CycleError is returned for a cycle that failed after its record was
// created. The record carries the same message in its error field.
type CycleError struct {
	CycleID   string
	PersonaID string
	Err       error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s for %s failed: %v", e.CycleID, e.PersonaID, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
