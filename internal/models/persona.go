package models

import "strings"

// Persona class constants. Classes select the minimum interval between cycles.
const (
	ClassExecutive  = "executive"
	ClassStaff      = "staff"
	ClassPeripheral = "peripheral"
)

// Persona is a configured simulated actor. It is loaded from the roster file
// and never mutated by the engine.
type Persona struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Address       string         `yaml:"address"`
	Class         string         `yaml:"class"`
	Role          string         `yaml:"role"`
	Biography     string         `yaml:"biography"`
	Tone          string         `yaml:"tone"`
	Priorities    []string       `yaml:"priorities"`
	Relationships []Relationship `yaml:"relationships"`
	Channels      []string       `yaml:"channels"`
}

// Relationship describes how a persona relates to another persona.
type Relationship struct {
	PersonaID   string `yaml:"persona"`
	Description string `yaml:"description"`
}

// DisplayName returns Name, falling back to ID.
func (p Persona) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.ID
}
