// Package easing holds the ease registry shared by every keyframe of a
// timeline. Keyframes refer to eases by id; all reads resolve through the
// registry so an edit to one curve reaches every key that uses it.
package easing

import (
	"fmt"
	"math"
	"strings"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/compiler"
	"github.com/starford/keyline/internal/models"
)

// Linear is the built-in ease. It is always resolvable and never stored.
const Linear = "linear"

var presets = map[string][4]float64{
	"linear":      {0, 0, 1, 1},
	"ease":        {0.25, 0.1, 0.25, 1},
	"ease-in":     {0.42, 0, 1, 1},
	"ease-out":    {0, 0, 0.58, 1},
	"ease-in-out": {0.42, 0, 0.58, 1},
}

// Presets returns the names of the built-in CSS timing keywords.
func Presets() []string {
	return []string{"linear", "ease", "ease-in", "ease-out", "ease-in-out"}
}

// RefCounter reports how many keyframes reference an ease id.
type RefCounter func(id string) int

// Map is the ease registry of one timeline.
type Map struct {
	defs     *models.EaseMap
	curves   map[string]bezier
	refs     RefCounter
	onChange func(id string)
}

// NewMap returns an empty registry.
func NewMap() *Map {
	return &Map{defs: models.NewEaseMap(), curves: make(map[string]bezier)}
}

// SetRefCounter installs the function used to guard Remove.
func (m *Map) SetRefCounter(fn RefCounter) {
	m.refs = fn
}

// OnChange registers a hook called after an ease is added, edited or removed.
func (m *Map) OnChange(fn func(id string)) {
	m.onChange = fn
}

// Validate checks that def describes a usable curve.
func Validate(def models.EaseDef) error {
	if def.Preset != "" {
		if _, ok := presets[def.Preset]; !ok {
			return fmt.Errorf("easing: unknown preset %q: %w", def.Preset, apperr.ErrMalformedTrackData)
		}
		if len(def.Points) == 0 {
			return nil
		}
	}
	if len(def.Points) != 4 {
		return fmt.Errorf("easing: want 4 control points, got %d: %w", len(def.Points), apperr.ErrMalformedTrackData)
	}
	for _, p := range def.Points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("easing: non-finite control point: %w", apperr.ErrMalformedTrackData)
		}
	}
	if def.Points[0] < 0 || def.Points[0] > 1 || def.Points[2] < 0 || def.Points[2] > 1 {
		return fmt.Errorf("easing: x control points must be in [0,1]: %w", apperr.ErrMalformedTrackData)
	}
	return nil
}

func curveOf(def models.EaseDef) bezier {
	if len(def.Points) == 4 {
		return newBezier(def.Points[0], def.Points[1], def.Points[2], def.Points[3])
	}
	p := presets[def.Preset]
	return newBezier(p[0], p[1], p[2], p[3])
}

// Add registers a new ease.
func (m *Map) Add(id string, def models.EaseDef) error {
	if id == "" || id == Linear {
		return fmt.Errorf("easing: add %q: reserved id: %w", id, apperr.ErrConflict)
	}
	if _, ok := m.defs.Get(id); ok {
		return fmt.Errorf("easing: add %q: %w", id, apperr.ErrAlreadyExists)
	}
	if err := Validate(def); err != nil {
		return err
	}
	m.store(id, def)
	return nil
}

// Set replaces the curve of an existing ease. Every keyframe referencing
// id observes the new curve.
func (m *Map) Set(id string, def models.EaseDef) error {
	if id == Linear {
		return fmt.Errorf("easing: set %q: built-in ease: %w", id, apperr.ErrConflict)
	}
	if _, ok := m.defs.Get(id); !ok {
		return fmt.Errorf("easing: set %q: %w", id, apperr.ErrNotFound)
	}
	if err := Validate(def); err != nil {
		return err
	}
	m.store(id, def)
	return nil
}

func (m *Map) store(id string, def models.EaseDef) {
	def = copyDef(def)
	m.defs.Set(id, def)
	m.curves[id] = curveOf(def)
	if m.onChange != nil {
		m.onChange(id)
	}
}

// Get returns the definition of id. The built-in linear ease resolves to
// its preset.
func (m *Map) Get(id string) (models.EaseDef, bool) {
	if id == Linear {
		return models.EaseDef{Preset: Linear}, true
	}
	def, ok := m.defs.Get(id)
	if ok {
		def = copyDef(def)
	}
	return def, ok
}

// Has reports whether id resolves.
func (m *Map) Has(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Remove deletes an ease. Removal is refused while keyframes reference it.
func (m *Map) Remove(id string) error {
	if id == Linear {
		return fmt.Errorf("easing: remove %q: built-in ease: %w", id, apperr.ErrConflict)
	}
	if _, ok := m.defs.Get(id); !ok {
		return fmt.Errorf("easing: remove %q: %w", id, apperr.ErrNotFound)
	}
	if m.refs != nil {
		if n := m.refs(id); n > 0 {
			return fmt.Errorf("easing: remove %q: referenced by %d keyframes: %w", id, n, apperr.ErrEaseInUse)
		}
	}
	m.defs.Delete(id)
	delete(m.curves, id)
	if m.onChange != nil {
		m.onChange(id)
	}
	return nil
}

// IDs returns the stored ids in display order. Linear is not listed.
func (m *Map) IDs() []string {
	return models.Keys(m.defs)
}

// Index returns the display position of id, or -1.
func (m *Map) Index(id string) int {
	return models.IndexOf(m.defs, id)
}

// Restore puts a removed ease back at display position idx.
func (m *Map) Restore(idx int, id string, def models.EaseDef) error {
	if id == "" || id == Linear {
		return fmt.Errorf("easing: restore %q: reserved id: %w", id, apperr.ErrConflict)
	}
	if err := Validate(def); err != nil {
		return err
	}
	models.InsertAt(m.defs, idx, id, copyDef(def))
	m.curves[id] = curveOf(def)
	if m.onChange != nil {
		m.onChange(id)
	}
	return nil
}

func copyDef(def models.EaseDef) models.EaseDef {
	def.Points = append([]float64(nil), def.Points...)
	return def
}

// Eval returns the eased progress of id at linear progress p. Unknown ids
// evaluate as linear.
func (m *Map) Eval(id string, p float64) float64 {
	c, ok := m.curves[id]
	if !ok {
		return math.Max(0, math.Min(1, p))
	}
	return c.at(p)
}

// CSS returns the CSS easing function for id.
func (m *Map) CSS(id string) (string, error) {
	def, ok := m.Get(id)
	if !ok {
		return "", fmt.Errorf("easing: %q: %w", id, apperr.ErrDanglingEaseReference)
	}
	if len(def.Points) == 4 {
		parts := make([]string, 4)
		for i, p := range def.Points {
			parts[i] = compiler.FormatNumber(p)
		}
		return "cubic-bezier(" + strings.Join(parts, ",") + ")", nil
	}
	return def.Preset, nil
}

// Save returns the persisted registry, nil when it is empty.
func (m *Map) Save() *models.EaseMap {
	return models.Clone(m.defs, copyDef)
}

// Use replaces the registry with a persisted one. Nothing changes when a
// definition is invalid.
func (m *Map) Use(save *models.EaseMap) error {
	for _, id := range models.Keys(save) {
		def, _ := save.Get(id)
		if id == "" || id == Linear {
			return fmt.Errorf("easing: use: reserved id %q: %w", id, apperr.ErrMalformedTrackData)
		}
		if err := Validate(def); err != nil {
			return fmt.Errorf("easing: use %q: %w", id, err)
		}
	}
	m.defs = models.NewEaseMap()
	m.curves = make(map[string]bezier)
	for _, id := range models.Keys(save) {
		def, _ := save.Get(id)
		m.defs.Set(id, copyDef(def))
		m.curves[id] = curveOf(def)
	}
	return nil
}
