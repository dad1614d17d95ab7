package timeline

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/clock"
	"github.com/starford/keyline/internal/timebar"
	"github.com/starford/keyline/internal/track"
)

type playback struct {
	frame     clock.FrameID
	scheduled bool
	ticking   bool

	startStamp float64
	startTime  float64

	// trigger cursor
	lastTime  float64
	inclusive bool
}

func (p *playback) reset(at float64) {
	p.lastTime = at
	p.inclusive = true
}

// Play starts advancing the current time on every frame.
func (t *Timeline) Play() error {
	switch t.state {
	case StateClosed:
		return fmt.Errorf("timeline: play: %w", apperr.ErrClosed)
	case StateEmpty:
		return fmt.Errorf("timeline: play: nothing loaded: %w", apperr.ErrInvalidState)
	case StatePlaying:
		return nil
	}
	t.resumeTo = t.state
	t.state = StatePlaying
	t.play.startStamp = t.sched.Now()
	t.play.startTime = t.timebar.CurrTime()
	t.play.reset(t.play.startTime)
	t.emit(Event{Kind: EventPlay, Time: t.play.startTime})
	t.requestFrame()
	return nil
}

// Pause stops playback. Pausing a timeline that is not playing does
// nothing.
func (t *Timeline) Pause() error {
	if t.state == StateClosed {
		return fmt.Errorf("timeline: pause: %w", apperr.ErrClosed)
	}
	if t.state != StatePlaying {
		return nil
	}
	t.stopFrames()
	t.state = t.resumeTo
	t.emit(Event{Kind: EventPause, Time: t.timebar.CurrTime()})
	return nil
}

// SetCurrTime moves the time pointer like a user scrub: playback pauses and
// triggers at the new time may fire again once playback resumes.
func (t *Timeline) SetCurrTime(at float64) error {
	if err := t.usable(); err != nil {
		return fmt.Errorf("timeline: seek: %w", err)
	}
	if err := t.Pause(); err != nil {
		return err
	}
	t.timebar.SetCurrTime(at)
	t.play.reset(t.timebar.CurrTime())
	return nil
}

func (t *Timeline) requestFrame() {
	t.play.frame = t.sched.RequestFrame(t.tick)
	t.play.scheduled = true
}

func (t *Timeline) stopFrames() {
	if t.play.scheduled {
		t.sched.CancelFrame(t.play.frame)
		t.play.scheduled = false
	}
}

func (t *Timeline) tick(now float64) {
	t.play.scheduled = false
	if t.state != StatePlaying {
		return
	}
	t.requestFrame()

	length := t.timebar.Length()
	elapsed := math.Round(now - t.play.startStamp)
	curr := math.Mod(t.play.startTime+elapsed, length)

	t.play.ticking = true
	t.timebar.SetCurrTime(curr)
	t.play.ticking = false

	t.fireTriggers(curr, length)
}

// fireTriggers fires the triggers crossed since the previous frame. When
// playback wrapped past the end, the tail of the timeline and the head up
// to curr are both crossed.
func (t *Timeline) fireTriggers(curr, length float64) {
	from, inclusive := t.play.lastTime, t.play.inclusive
	t.play.lastTime, t.play.inclusive = curr, false

	crossed := t.triggers.Crossed(from, curr, inclusive)
	if curr < from {
		crossed = append(t.triggers.Crossed(from, length, inclusive), t.triggers.Crossed(0, curr, true)...)
	}
	for _, e := range crossed {
		t.logger.Debug("trigger fired", slog.String("id", e.ID), slog.Float64("time", e.Time))
		t.emit(Event{Kind: EventTrigger, Time: e.Time, Name: e.ID, Trigger: &e})
	}
}

func (t *Timeline) onTimebarChange(c timebar.Change, tb *timebar.Timebar) {
	switch c {
	case timebar.ChangeTime:
		if t.state == StatePlaying && !t.play.ticking {
			// an outside seek pauses playback
			_ = t.Pause()
			t.play.reset(tb.CurrTime())
		}
		t.emit(Event{Kind: EventChangeTime, Time: tb.CurrTime()})
	case timebar.ChangeTape, timebar.ChangeTimescale:
		t.emit(Event{Kind: EventChangeTape, Time: tb.Start()})
	case timebar.ChangeLength:
		t.touch()
	}
}

// TrackStyle is the preview of one track.
type TrackStyle struct {
	Track  int           `json:"track"`
	Name   string        `json:"name"`
	Styles []track.Style `json:"styles"`
}

// StyleAt evaluates every track at time at, as the compiled player would
// render it.
func (t *Timeline) StyleAt(at float64) []TrackStyle {
	env := t.env()
	out := make([]TrackStyle, 0, len(t.tracks))
	for i, tr := range t.tracks {
		out = append(out, TrackStyle{Track: i, Name: tr.Name(), Styles: tr.StyleAt(at, env)})
	}
	return out
}

func (t *Timeline) env() track.Env {
	return track.Env{Duration: t.timebar.Length(), Eases: t.eases}
}
