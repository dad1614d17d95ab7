package docservice

import (
	"context"

	"github.com/starford/keyline/internal/timeline"
)

// PreviewState is the playback state of an open document.
type PreviewState struct {
	Path     string                `json:"path"`
	State    string                `json:"state"`
	CurrTime float64               `json:"curr_time"`
	Length   float64               `json:"length"`
	Styles   []timeline.TrackStyle `json:"styles"`
}

func (c *session) preview() *PreviewState {
	tb := c.tl.Timebar()
	return &PreviewState{
		Path:     c.path,
		State:    c.tl.State().String(),
		CurrTime: tb.CurrTime(),
		Length:   tb.Length(),
		Styles:   c.tl.StyleAt(tb.CurrTime()),
	}
}

func (s *Service) previewOp(p string, fn func(tl *timeline.Timeline) error) (*PreviewState, error) {
	c, err := s.acquire(p)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if err := fn(c.tl); err != nil {
		return nil, err
	}
	return c.preview(), nil
}

// Play starts previewing p. Time and trigger events go to the notifier.
func (s *Service) Play(_ context.Context, p string) (*PreviewState, error) {
	return s.previewOp(p, (*timeline.Timeline).Play)
}

// Pause stops previewing p.
func (s *Service) Pause(_ context.Context, p string) (*PreviewState, error) {
	return s.previewOp(p, (*timeline.Timeline).Pause)
}

// Seek moves the playhead of p, pausing any preview.
func (s *Service) Seek(_ context.Context, p string, at float64) (*PreviewState, error) {
	return s.previewOp(p, func(tl *timeline.Timeline) error { return tl.SetCurrTime(at) })
}

// Preview returns the playback state of p and the styles at its playhead.
func (s *Service) Preview(_ context.Context, p string) (*PreviewState, error) {
	return s.previewOp(p, func(*timeline.Timeline) error { return nil })
}

// StyleAt evaluates every track of p at time at.
func (s *Service) StyleAt(_ context.Context, p string, at float64) ([]timeline.TrackStyle, error) {
	c, err := s.acquire(p)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.tl.StyleAt(at), nil
}
