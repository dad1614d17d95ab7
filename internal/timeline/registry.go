package timeline

import (
	"fmt"

	"github.com/starford/keyline/internal/history"
	"github.com/starford/keyline/internal/models"
)

// Record passes an intent produced by a track edit to the history sink.
func (t *Timeline) Record(in history.Intent) {
	if in.IsZero() || t.state == StateClosed {
		return
	}
	t.sink.Save(in)
}

// SetEase adds or replaces an ease and records the edit.
func (t *Timeline) SetEase(id string, def models.EaseDef) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: set ease: %w", err)
	}
	prev, existed := t.eases.Get(id)
	put := func(d models.EaseDef) error {
		if t.eases.Has(id) {
			return t.eases.Set(id, d)
		}
		return t.eases.Add(id, d)
	}
	if err := put(def); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: set ease: %w", err)
	}
	in := history.Intent{
		Name:  "set ease",
		Apply: func() { _ = put(def) },
		Undo: func() {
			if existed {
				_ = t.eases.Set(id, prev)
				return
			}
			_ = t.eases.Remove(id)
		},
	}
	t.sink.Save(in)
	return in, nil
}

// RemoveEase deletes an ease. It fails while keyframes reference the id.
func (t *Timeline) RemoveEase(id string) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: remove ease: %w", err)
	}
	prev, _ := t.eases.Get(id)
	at := t.eases.Index(id)
	if err := t.eases.Remove(id); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: remove ease: %w", err)
	}
	in := history.Intent{
		Name:  "remove ease",
		Apply: func() { _ = t.eases.Remove(id) },
		Undo:  func() { _ = t.eases.Restore(at, id, prev) },
	}
	t.sink.Save(in)
	return in, nil
}

// SetTrigger adds or replaces a trigger and records the edit.
func (t *Timeline) SetTrigger(id string, def models.TriggerDef) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: set trigger: %w", err)
	}
	prev, existed := t.triggers.Get(id)
	put := func(d models.TriggerDef) error {
		if _, ok := t.triggers.Get(id); ok {
			return t.triggers.Set(id, d)
		}
		return t.triggers.Add(id, d)
	}
	if err := put(def); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: set trigger: %w", err)
	}
	t.touch()
	in := history.Intent{
		Name: "set trigger",
		Apply: func() {
			_ = put(def)
			t.touch()
		},
		Undo: func() {
			if existed {
				_ = t.triggers.Set(id, prev)
			} else {
				_ = t.triggers.Remove(id)
			}
			t.touch()
		},
	}
	t.sink.Save(in)
	return in, nil
}

// RemoveTrigger deletes a trigger and records the edit.
func (t *Timeline) RemoveTrigger(id string) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: remove trigger: %w", err)
	}
	prev, _ := t.triggers.Get(id)
	at := t.triggers.Index(id)
	if err := t.triggers.Remove(id); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: remove trigger: %w", err)
	}
	t.touch()
	in := history.Intent{
		Name: "remove trigger",
		Apply: func() {
			_ = t.triggers.Remove(id)
			t.touch()
		},
		Undo: func() {
			_ = t.triggers.Restore(at, id, prev)
			t.touch()
		},
	}
	t.sink.Save(in)
	return in, nil
}
