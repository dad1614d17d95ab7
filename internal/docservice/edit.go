package docservice

import (
	"context"
	"fmt"
	"math"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/easing"
	"github.com/starford/keyline/internal/history"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/track"
)

// EditResult describes a document after an edit has been applied and saved.
type EditResult struct {
	Path     string           `json:"path"`
	Checksum string           `json:"checksum"`
	Step     string           `json:"step,omitempty"`
	CanUndo  bool             `json:"can_undo"`
	CanRedo  bool             `json:"can_redo"`
	State    string           `json:"state"`
	Document *models.Document `json:"document"`
}

// TrackInput describes a new CSS track. A nil Index appends it.
type TrackInput struct {
	Name       string
	Selectors  []string
	Fill       string
	Iterations float64
	Index      *int
}

// TrackPatch changes track properties. Nil fields are left alone.
type TrackPatch struct {
	Name       *string
	Selectors  []string
	Fill       *string
	Iterations *float64
}

// TimebarPatch changes the time base. Nil fields are left alone.
type TimebarPatch struct {
	Length    *float64
	Timescale *float64
}

// edit runs fn against the open session of p and persists the result.
func (s *Service) edit(p string, fn func(c *session) (history.Intent, error)) (*EditResult, error) {
	c, err := s.acquire(p)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	in, err := fn(c)
	if err != nil {
		return nil, err
	}
	if err := s.persist(c); err != nil {
		return nil, err
	}
	return c.result(in.Name), nil
}

func (c *session) result(step string) *EditResult {
	return &EditResult{
		Path:     c.path,
		Checksum: c.sum,
		Step:     step,
		CanUndo:  c.hist.CanUndo(),
		CanRedo:  c.hist.CanRedo(),
		State:    c.tl.State().String(),
		Document: c.tl.GetSave(),
	}
}

func (c *session) css(idx int) (*track.CSS, error) {
	tr, ok := c.tl.Track(idx)
	if !ok {
		return nil, fmt.Errorf("docservice: track %d: %w", idx, apperr.ErrNotFound)
	}
	css, ok := tr.(*track.CSS)
	if !ok {
		return nil, fmt.Errorf("docservice: track %d is %s: %w", idx, tr.Kind(), apperr.ErrInvalidState)
	}
	return css, nil
}

func (c *session) key(trackIdx int, param string, keyIdx int) (*track.CSS, error) {
	css, err := c.css(trackIdx)
	if err != nil {
		return nil, err
	}
	if keyIdx < 0 || keyIdx >= len(css.Keys(param)) {
		return nil, fmt.Errorf("docservice: track %d %s key %d: %w", trackIdx, param, keyIdx, apperr.ErrNotFound)
	}
	return css, nil
}

func (c *session) checkEase(id string) error {
	if id == "" || id == easing.Linear || c.tl.Eases().Has(id) {
		return nil
	}
	return fmt.Errorf("docservice: ease %q: %w", id, apperr.ErrDanglingEaseReference)
}

// record hands a track intent to the history stack. ok=false means the
// edit was refused by the track.
func (c *session) record(in history.Intent, ok bool, refused error) (history.Intent, error) {
	if !ok {
		return history.Intent{}, refused
	}
	c.tl.Record(in)
	return in, nil
}

// Open loads p into an editing session without changing it.
func (s *Service) Open(_ context.Context, p string) (*EditResult, error) {
	c, err := s.acquire(p)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.result(""), nil
}

// Rename sets the document name.
func (s *Service) Rename(_ context.Context, p, name string) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		prev := c.tl.GetSave().Name
		c.tl.SetName(name)
		in := history.Intent{
			Name:  "rename document",
			Apply: func() { c.tl.SetName(name) },
			Undo:  func() { c.tl.SetName(prev) },
		}
		c.tl.Record(in)
		return in, nil
	})
}

// UpdateTimebar changes the document length or timescale.
func (s *Service) UpdateTimebar(_ context.Context, p string, patch TimebarPatch) (*EditResult, error) {
	bad := func(v *float64) bool { return v != nil && (!(*v > 0) || math.IsInf(*v, 0)) }
	if bad(patch.Length) || bad(patch.Timescale) {
		return nil, fmt.Errorf("docservice: timebar values must be positive: %w", apperr.ErrInvalidInput)
	}
	return s.edit(p, func(c *session) (history.Intent, error) {
		tb := c.tl.Timebar()
		prev := tb.Save()
		next := prev
		if patch.Length != nil {
			next.Length = *patch.Length
		}
		if patch.Timescale != nil {
			next.Timescale = *patch.Timescale
		}
		tb.Use(next)
		in := history.Intent{
			Name:  "change timebar",
			Apply: func() { tb.Use(next) },
			Undo:  func() { tb.Use(prev) },
		}
		c.tl.Record(in)
		return in, nil
	})
}

// AddTrack creates a CSS track at in.Index, or at the end.
func (s *Service) AddTrack(_ context.Context, p string, in TrackInput) (*EditResult, error) {
	if in.Iterations < 0 || math.IsNaN(in.Iterations) || math.IsInf(in.Iterations, 0) {
		return nil, fmt.Errorf("docservice: iterations %v: %w", in.Iterations, apperr.ErrInvalidInput)
	}
	return s.edit(p, func(c *session) (history.Intent, error) {
		tr := track.NewCSS()
		if in.Name != "" {
			tr.SetName(in.Name)
		}
		tr.SetSelectors(in.Selectors)
		tr.SetFill(in.Fill)
		if in.Iterations > 0 {
			tr.SetIterations(in.Iterations)
		}
		idx := c.tl.Len()
		if in.Index != nil {
			idx = *in.Index
		}
		return c.tl.InsertTrack(tr, idx)
	})
}

// UpdateTrack applies patch to the idx-th track as one undo step.
func (s *Service) UpdateTrack(_ context.Context, p string, idx int, patch TrackPatch) (*EditResult, error) {
	if it := patch.Iterations; it != nil && (!(*it > 0) || math.IsInf(*it, 0)) {
		return nil, fmt.Errorf("docservice: iterations %v: %w", *it, apperr.ErrInvalidInput)
	}
	return s.edit(p, func(c *session) (history.Intent, error) {
		css, err := c.css(idx)
		if err != nil {
			return history.Intent{}, err
		}
		var steps []history.Intent
		add := func(in history.Intent, _ bool) { steps = append(steps, in) }
		if patch.Name != nil {
			add(css.SetName(*patch.Name))
		}
		if patch.Selectors != nil {
			add(css.SetSelectors(patch.Selectors))
		}
		if patch.Fill != nil {
			add(css.SetFill(*patch.Fill))
		}
		if patch.Iterations != nil {
			add(css.SetIterations(*patch.Iterations))
		}
		in := history.Compose("update track", steps...)
		c.tl.Record(in)
		return in, nil
	})
}

// RemoveTrack deletes the idx-th track.
func (s *Service) RemoveTrack(_ context.Context, p string, idx int) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		tr, ok := c.tl.Track(idx)
		if !ok {
			return history.Intent{}, fmt.Errorf("docservice: track %d: %w", idx, apperr.ErrNotFound)
		}
		return c.tl.RemoveTrack(tr)
	})
}

// MoveTrack shifts the idx-th track by way positions.
func (s *Service) MoveTrack(_ context.Context, p string, idx, way int) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		tr, ok := c.tl.Track(idx)
		if !ok {
			return history.Intent{}, fmt.Errorf("docservice: track %d: %w", idx, apperr.ErrNotFound)
		}
		return c.tl.MoveTrack(tr, way)
	})
}

// SelectTrack makes the idx-th track current. A negative idx clears the selection.
func (s *Service) SelectTrack(_ context.Context, p string, idx int) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		if idx < 0 {
			return history.Intent{}, c.tl.SelectTrack(nil)
		}
		tr, ok := c.tl.Track(idx)
		if !ok {
			return history.Intent{}, fmt.Errorf("docservice: track %d: %w", idx, apperr.ErrNotFound)
		}
		return history.Intent{}, c.tl.SelectTrack(tr)
	})
}

// AddKey inserts a keyframe into a track parameter.
func (s *Service) AddKey(_ context.Context, p string, trackIdx int, param string, k models.Key) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		css, err := c.css(trackIdx)
		if err != nil {
			return history.Intent{}, err
		}
		if err := c.checkEase(k.Ease); err != nil {
			return history.Intent{}, err
		}
		in, ok := css.AddKey(param, k)
		return c.record(in, ok, fmt.Errorf("docservice: key does not fit parameter %q: %w", param, apperr.ErrMalformedTrackData))
	})
}

// RemoveKey deletes a keyframe.
func (s *Service) RemoveKey(_ context.Context, p string, trackIdx int, param string, keyIdx int) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		css, err := c.key(trackIdx, param, keyIdx)
		if err != nil {
			return history.Intent{}, err
		}
		in, ok := css.RemoveKey(param, keyIdx)
		return c.record(in, ok, apperr.ErrNotFound)
	})
}

// MoveKey changes the time of a keyframe.
func (s *Service) MoveKey(_ context.Context, p string, trackIdx int, param string, keyIdx int, at float64) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		css, err := c.key(trackIdx, param, keyIdx)
		if err != nil {
			return history.Intent{}, err
		}
		in, ok := css.MoveKey(param, keyIdx, at)
		return c.record(in, ok, fmt.Errorf("docservice: key time %v: %w", at, apperr.ErrInvalidInput))
	})
}

// SetKeyValue replaces the value of a keyframe.
func (s *Service) SetKeyValue(_ context.Context, p string, trackIdx int, param string, keyIdx int, v models.Value) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		css, err := c.key(trackIdx, param, keyIdx)
		if err != nil {
			return history.Intent{}, err
		}
		in, ok := css.SetKeyValue(param, keyIdx, v)
		return c.record(in, ok, fmt.Errorf("docservice: value does not fit parameter %q: %w", param, apperr.ErrMalformedTrackData))
	})
}

// SetKeyEase points a keyframe at an ease id.
func (s *Service) SetKeyEase(_ context.Context, p string, trackIdx int, param string, keyIdx int, easeID string) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		css, err := c.key(trackIdx, param, keyIdx)
		if err != nil {
			return history.Intent{}, err
		}
		if err := c.checkEase(easeID); err != nil {
			return history.Intent{}, err
		}
		in, ok := css.SetKeyEase(param, keyIdx, easeID)
		return c.record(in, ok, apperr.ErrNotFound)
	})
}

// SetEase adds or replaces an ease definition.
func (s *Service) SetEase(_ context.Context, p, id string, def models.EaseDef) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		return c.tl.SetEase(id, def)
	})
}

// RemoveEase deletes an ease. It fails with apperr.ErrEaseInUse while keyframes reference it.
func (s *Service) RemoveEase(_ context.Context, p, id string) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		return c.tl.RemoveEase(id)
	})
}

// SetTrigger adds or replaces a trigger.
func (s *Service) SetTrigger(_ context.Context, p, id string, def models.TriggerDef) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		return c.tl.SetTrigger(id, def)
	})
}

// RemoveTrigger deletes a trigger.
func (s *Service) RemoveTrigger(_ context.Context, p, id string) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		return c.tl.RemoveTrigger(id)
	})
}

// Undo reverts the latest edit of p.
func (s *Service) Undo(_ context.Context, p string) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		name, ok := c.hist.Undo()
		if !ok {
			return history.Intent{}, fmt.Errorf("docservice: nothing to undo: %w", apperr.ErrInvalidState)
		}
		return history.Intent{Name: name}, nil
	})
}

// Redo re-applies the latest undone edit of p.
func (s *Service) Redo(_ context.Context, p string) (*EditResult, error) {
	return s.edit(p, func(c *session) (history.Intent, error) {
		name, ok := c.hist.Redo()
		if !ok {
			return history.Intent{}, fmt.Errorf("docservice: nothing to redo: %w", apperr.ErrInvalidState)
		}
		return history.Intent{Name: name}, nil
	})
}

// Magnets returns the snap points of p.
func (s *Service) Magnets(_ context.Context, p string) ([]float64, error) {
	c, err := s.acquire(p)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return nonNilSlice(c.tl.MagnetPoints()), nil
}

// Snap pulls at onto the nearest magnet point within radiusPx screen pixels.
func (s *Service) Snap(_ context.Context, p string, at, radiusPx float64) (float64, error) {
	c, err := s.acquire(p)
	if err != nil {
		return 0, err
	}
	defer c.mu.Unlock()
	return c.tl.Timebar().Snap(at, radiusPx), nil
}
