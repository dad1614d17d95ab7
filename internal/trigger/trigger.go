// Package trigger holds the registry of time-indexed script snippets and
// the crossing rule used by both preview playback and compiled output.
package trigger

import (
	"fmt"
	"math"
	"sort"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/compiler"
	"github.com/starford/keyline/internal/models"
)

// Entry is a trigger together with its id.
type Entry struct {
	ID     string  `json:"id"`
	Time   float64 `json:"time"`
	Script string  `json:"script"`
}

// Map is the trigger registry of one timeline.
type Map struct {
	defs *models.TriggerMap
}

// NewMap returns an empty registry.
func NewMap() *Map {
	return &Map{defs: models.NewTriggerMap()}
}

func validate(def models.TriggerDef) error {
	if math.IsNaN(def.Time) || math.IsInf(def.Time, 0) || def.Time < 0 {
		return fmt.Errorf("trigger: time %v: %w", def.Time, apperr.ErrMalformedTrackData)
	}
	return nil
}

// Add registers a new trigger.
func (m *Map) Add(id string, def models.TriggerDef) error {
	if id == "" {
		return fmt.Errorf("trigger: add: empty id: %w", apperr.ErrConflict)
	}
	if _, ok := m.defs.Get(id); ok {
		return fmt.Errorf("trigger: add %q: %w", id, apperr.ErrAlreadyExists)
	}
	if err := validate(def); err != nil {
		return err
	}
	m.defs.Set(id, def)
	return nil
}

// Set replaces an existing trigger.
func (m *Map) Set(id string, def models.TriggerDef) error {
	if _, ok := m.defs.Get(id); !ok {
		return fmt.Errorf("trigger: set %q: %w", id, apperr.ErrNotFound)
	}
	if err := validate(def); err != nil {
		return err
	}
	m.defs.Set(id, def)
	return nil
}

// Get returns the trigger stored under id.
func (m *Map) Get(id string) (models.TriggerDef, bool) {
	return m.defs.Get(id)
}

// Remove deletes a trigger. Nothing references triggers, so removal never
// conflicts.
func (m *Map) Remove(id string) error {
	if _, ok := m.defs.Delete(id); !ok {
		return fmt.Errorf("trigger: remove %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Restore puts a removed trigger back at display position idx, so ties in
// time keep their firing order.
func (m *Map) Restore(idx int, id string, def models.TriggerDef) error {
	if id == "" {
		return fmt.Errorf("trigger: restore: empty id: %w", apperr.ErrConflict)
	}
	if err := validate(def); err != nil {
		return err
	}
	models.InsertAt(m.defs, idx, id, def)
	return nil
}

// IDs returns the ids in display order.
func (m *Map) IDs() []string {
	return models.Keys(m.defs)
}

// Index returns the display position of id, or -1.
func (m *Map) Index(id string) int {
	return models.IndexOf(m.defs, id)
}

// Len returns the number of triggers.
func (m *Map) Len() int {
	return m.defs.Len()
}

// Sorted returns every trigger ordered by time, ties kept in display order.
func (m *Map) Sorted() []Entry {
	out := make([]Entry, 0, m.defs.Len())
	for p := m.defs.Oldest(); p != nil; p = p.Next() {
		out = append(out, Entry{ID: p.Key, Time: p.Value.Time, Script: p.Value.Script})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Crossed returns the triggers playback passes when moving from one time to
// a later one: from < time <= to, or from <= time <= to when inclusive.
// Moving backwards crosses nothing.
func (m *Map) Crossed(from, to float64, inclusive bool) []Entry {
	if to < from {
		return nil
	}
	var out []Entry
	for _, e := range m.Sorted() {
		after := e.Time > from || (inclusive && e.Time == from)
		if after && e.Time <= to {
			out = append(out, e)
		}
	}
	return out
}

// GetScript renders the triggers table and the per-frame trigger clock of
// the compiled module.
func (m *Map) GetScript() (string, error) {
	return compiler.RenderTriggers(m.Compiled())
}

// Compiled returns the triggers in the form the module assembler takes.
func (m *Map) Compiled() []compiler.Trigger {
	sorted := m.Sorted()
	out := make([]compiler.Trigger, len(sorted))
	for i, e := range sorted {
		out[i] = compiler.Trigger{Time: e.Time, Script: e.Script}
	}
	return out
}

// Save returns the persisted registry, nil when it is empty.
func (m *Map) Save() *models.TriggerMap {
	return models.Clone(m.defs, nil)
}

// Use replaces the registry with a persisted one. Nothing changes when an
// entry is invalid.
func (m *Map) Use(save *models.TriggerMap) error {
	for _, id := range models.Keys(save) {
		def, _ := save.Get(id)
		if err := validate(def); err != nil {
			return fmt.Errorf("trigger: use %q: %w", id, err)
		}
	}
	m.defs = models.NewTriggerMap()
	for _, id := range models.Keys(save) {
		def, _ := save.Get(id)
		m.defs.Set(id, def)
	}
	return nil
}
