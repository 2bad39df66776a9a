// Package persistence contains file-backed adapters.
package persistence

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// RosterFile is the on-disk layout of the persona roster.
type RosterFile struct {
	Personas []models.Persona `yaml:"personas"`
}

// Directory is an immutable persona lookup built once at process start.
type Directory struct {
	byID  map[string]models.Persona
	order []string
}

// LoadDirectory reads the roster YAML file at path.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var file RosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", path, err)
	}

	return NewDirectory(file.Personas)
}

// NewDirectory validates personas and builds a directory over them.
func NewDirectory(personas []models.Persona) (*Directory, error) {
	d := &Directory{byID: make(map[string]models.Persona, len(personas))}

	for i, p := range personas {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("persona %d: id is required", i)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona %s: duplicate id", p.ID)
		}
		if strings.TrimSpace(p.Address) == "" {
			return nil, fmt.Errorf("persona %s: address is required", p.ID)
		}
		p.Address = strings.ToLower(strings.TrimSpace(p.Address))
		p.Class = strings.ToLower(strings.TrimSpace(p.Class))
		if p.Class == "" {
			p.Class = models.ClassStaff
		}
		d.byID[p.ID] = p
		d.order = append(d.order, p.ID)
	}

	sort.Strings(d.order)
	return d, nil
}

// Get returns the persona with id.
func (d *Directory) Get(id string) (models.Persona, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// List returns every persona ordered by ID.
func (d *Directory) List() []models.Persona {
	out := make([]models.Persona, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// SaveRoster writes personas to path as YAML.
func SaveRoster(path string, personas []models.Persona) error {
	data, err := yaml.Marshal(RosterFile{Personas: personas})
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write roster: %w", err)
	}
	return nil
}

var _ secondary.PersonaDirectory = (*Directory)(nil)
