// Package timebar implements the time base of a timeline: current time,
// zoom, playable length and viewport offset, plus the conversions between
// time and render coordinates.
package timebar

import (
	"fmt"
	"math"
	"slices"

	"github.com/starford/keyline/internal/models"
)

// Defaults used by New.
const (
	DefaultTimescale = 0.12
	DefaultLength    = 6000
)

// Change identifies what a notification is about.
type Change int

const (
	ChangeTime Change = iota + 1
	ChangeTimescale
	ChangeLength
	ChangeTape
)

func (c Change) String() string {
	switch c {
	case ChangeTime:
		return "changeTime"
	case ChangeTimescale:
		return "changeTimescale"
	case ChangeLength:
		return "changeLength"
	case ChangeTape:
		return "changeTape"
	default:
		return fmt.Sprintf("change(%d)", int(c))
	}
}

// Listener receives change notifications synchronously.
type Listener func(c Change, tb *Timebar)

type subscription struct {
	id int
	fn Listener
}

// Timebar owns the time base. It is not safe for concurrent use.
type Timebar struct {
	currTime  float64
	timescale float64
	length    float64
	start     float64
	originX   float64
	magnets   []float64

	subs   []subscription
	nextID int
}

// New returns a timebar with the default zoom and length.
func New() *Timebar {
	return &Timebar{timescale: DefaultTimescale, length: DefaultLength}
}

// Subscribe registers fn and returns a function that removes it.
func (tb *Timebar) Subscribe(fn Listener) (unsubscribe func()) {
	tb.nextID++
	id := tb.nextID
	tb.subs = append(tb.subs, subscription{id: id, fn: fn})
	return func() {
		tb.subs = slices.DeleteFunc(tb.subs, func(s subscription) bool { return s.id == id })
	}
}

func (tb *Timebar) notify(c Change) {
	for _, s := range slices.Clone(tb.subs) {
		s.fn(c, tb)
	}
}

func (tb *Timebar) CurrTime() float64 { return tb.currTime }
func (tb *Timebar) Timescale() float64 { return tb.timescale }
func (tb *Timebar) Length() float64 { return tb.length }
func (tb *Timebar) Start() float64 { return tb.start }
func (tb *Timebar) OriginX() float64 { return tb.originX }

// SetCurrTime moves the time pointer, clamped to [0, length].
func (tb *Timebar) SetCurrTime(t float64) {
	t = clamp(finite(t, 0), 0, tb.length)
	if t == tb.currTime {
		return
	}
	tb.currTime = t
	tb.notify(ChangeTime)
}

// SetTimescale sets the zoom in pixels per millisecond. Non-positive or
// non-finite values are ignored.
func (tb *Timebar) SetTimescale(ts float64) {
	if !(ts > 0) || math.IsInf(ts, 0) || ts == tb.timescale {
		return
	}
	tb.timescale = ts
	tb.notify(ChangeTimescale)
}

// SetLength sets the playable duration. Non-positive or non-finite values
// are ignored. The current time is pulled back inside the new length.
func (tb *Timebar) SetLength(l float64) {
	if !(l > 0) || math.IsInf(l, 0) || l == tb.length {
		return
	}
	tb.length = l
	tb.notify(ChangeLength)
	if tb.currTime > l {
		tb.currTime = l
		tb.notify(ChangeTime)
	}
}

// SetStart scrolls the viewport. Negative values are allowed.
func (tb *Timebar) SetStart(s float64) {
	s = finite(s, tb.start)
	if s == tb.start {
		return
	}
	tb.start = s
	tb.notify(ChangeTape)
}

// SetOriginX sets the screen position of the render origin.
func (tb *Timebar) SetOriginX(x float64) {
	tb.originX = finite(x, tb.originX)
}

// SetMagnetPoints replaces the snap targets.
func (tb *Timebar) SetMagnetPoints(points []float64) {
	tb.magnets = slices.Clone(points)
}

// MagnetPoints returns the current snap targets.
func (tb *Timebar) MagnetPoints() []float64 {
	return slices.Clone(tb.magnets)
}

// ScreenXToTime converts a screen x coordinate into a time in [0, length].
func (tb *Timebar) ScreenXToTime(x float64) float64 {
	return clamp(tb.ScreenXToTimeUnclamped(x), 0, tb.length)
}

// ScreenXToTimeUnclamped converts without clamping, for magnet math.
func (tb *Timebar) ScreenXToTimeUnclamped(x float64) float64 {
	return (x-tb.originX)/tb.timescale - tb.start
}

// TimeToRenderPos converts a time into a position relative to the origin.
func (tb *Timebar) TimeToRenderPos(t float64) float64 {
	return (t + tb.start) * tb.timescale
}

// TimeToScreenX converts a time into an absolute screen x coordinate.
func (tb *Timebar) TimeToScreenX(t float64) float64 {
	return tb.originX + tb.TimeToRenderPos(t)
}

// Snap returns the magnet point closest to t when it is within radiusPx
// screen pixels, and t otherwise.
func (tb *Timebar) Snap(t, radiusPx float64) float64 {
	best, bestDist := t, math.Inf(1)
	for _, m := range tb.magnets {
		d := math.Abs(m-t) * tb.timescale
		if d <= radiusPx && d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

// Save returns the persisted state.
func (tb *Timebar) Save() models.TimebarSave {
	return models.TimebarSave{CurrTime: tb.currTime, Timescale: tb.timescale, Length: tb.length}
}

// Use applies a persisted state. Length is applied first so the current
// time is clamped against the new length.
func (tb *Timebar) Use(s models.TimebarSave) {
	tb.SetLength(s.Length)
	tb.SetTimescale(s.Timescale)
	tb.SetCurrTime(s.CurrTime)
}

// FormatTime renders t as a minutes:seconds.milliseconds label, dropping
// the leading parts that are zero.
func FormatTime(t float64) string {
	ms := int64(math.Round(math.Max(0, t)))
	mins := ms / 60000
	sec := ms / 1000 % 60
	ms %= 1000
	switch {
	case mins > 0:
		return fmt.Sprintf("%d:%02d.%03d", mins, sec, ms)
	case sec > 0:
		return fmt.Sprintf("%d.%03d", sec, ms)
	default:
		return fmt.Sprintf("%d", ms)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
