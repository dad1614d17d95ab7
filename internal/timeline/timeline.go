// Package timeline implements the timeline document: its tracks, time
// base, ease and trigger registries, playback and script assembly.
//
// A Timeline is single threaded. Callers serialize edits, frames and
// compilation, for example by sharing one lock with a clock.Ticker.
package timeline

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/clock"
	"github.com/starford/keyline/internal/easing"
	"github.com/starford/keyline/internal/history"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/timebar"
	"github.com/starford/keyline/internal/track"
	"github.com/starford/keyline/internal/trigger"
)

// DefaultName is the name of an unnamed timeline.
const DefaultName = "timeline"

// State is the document lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateEditing
	StatePlaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateEditing:
		return "editing"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithScheduler sets the frame scheduler that drives playback.
func WithScheduler(s clock.Scheduler) Option {
	return func(t *Timeline) { t.sched = s }
}

// WithHistory sets the sink receiving edit intents.
func WithHistory(s history.Sink) Option {
	return func(t *Timeline) { t.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Timeline) { t.logger = l }
}

type listener struct {
	id int
	fn func(Event)
}

// Timeline is one open document.
type Timeline struct {
	name     string
	timebar  *timebar.Timebar
	eases    *easing.Map
	triggers *trigger.Map
	tracks   []track.Track
	current  track.Track

	state    State
	resumeTo State

	sched  clock.Scheduler
	sink   history.Sink
	logger *slog.Logger

	listeners []listener
	nextID    int

	play playback
}

// New returns an empty timeline.
func New(opts ...Option) *Timeline {
	t := &Timeline{
		timebar:  timebar.New(),
		eases:    easing.NewMap(),
		triggers: trigger.NewMap(),
		state:    StateEmpty,
		sink:     history.Discard{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sched == nil {
		t.sched = clock.NewVirtual(0)
	}
	t.eases.SetRefCounter(t.easeRefs)
	t.eases.OnChange(func(string) { t.touch() })
	t.timebar.Subscribe(t.onTimebarChange)
	return t
}

// Subscribe registers fn for timeline events and returns a function that
// removes it.
func (t *Timeline) Subscribe(fn func(Event)) (unsubscribe func()) {
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listener{id: id, fn: fn})
	return func() {
		t.listeners = slices.DeleteFunc(t.listeners, func(l listener) bool { return l.id == id })
	}
}

func (t *Timeline) emit(e Event) {
	for _, l := range slices.Clone(t.listeners) {
		l.fn(e)
	}
}

func (t *Timeline) State() State { return t.state }
func (t *Timeline) Timebar() *timebar.Timebar { return t.timebar }
func (t *Timeline) Eases() *easing.Map { return t.eases }
func (t *Timeline) Triggers() *trigger.Map { return t.triggers }
func (t *Timeline) CurrentTrack() track.Track { return t.current }
func (t *Timeline) Len() int { return len(t.tracks) }
func (t *Timeline) Tracks() []track.Track { return slices.Clone(t.tracks) }
func (t *Timeline) History() history.Sink { return t.sink }
func (t *Timeline) Scheduler() clock.Scheduler { return t.sched }

// Name returns the timeline name, DefaultName when unset.
func (t *Timeline) Name() string {
	if t.name == "" {
		return DefaultName
	}
	return t.name
}

// SetName renames the timeline.
func (t *Timeline) SetName(name string) {
	t.name = name
	t.touch()
}

// Track returns the i-th track.
func (t *Timeline) Track(i int) (track.Track, bool) {
	if i < 0 || i >= len(t.tracks) {
		return nil, false
	}
	return t.tracks[i], true
}

// IndexOf returns the position of tr, or -1.
func (t *Timeline) IndexOf(tr track.Track) int {
	return slices.Index(t.tracks, tr)
}

func (t *Timeline) easeRefs(id string) int {
	n := 0
	for _, tr := range t.tracks {
		n += tr.EaseRefs(id)
	}
	return n
}

// touch records that the document was edited.
func (t *Timeline) touch() {
	switch t.state {
	case StateEmpty, StateLoaded:
		t.state = StateEditing
	case StatePlaying:
		t.resumeTo = StateEditing
	}
}

func (t *Timeline) usable() error {
	if t.state == StateClosed {
		return apperr.ErrClosed
	}
	return nil
}

// insert places tr at idx and wires it to the timeline.
func (t *Timeline) insert(tr track.Track, idx int) {
	idx = max(0, min(idx, len(t.tracks)))
	t.tracks = slices.Insert(t.tracks, idx, tr)
	tr.OnChange(func() { t.onTrackChange(tr) })
	t.refreshMagnetPoints()
	t.touch()
	t.emit(Event{Kind: EventTrackAdded, Track: idx, Name: tr.Name()})
}

// detach removes tr and unwires it.
func (t *Timeline) detach(tr track.Track) int {
	idx := t.IndexOf(tr)
	if idx < 0 {
		return -1
	}
	t.tracks = slices.Delete(t.tracks, idx, idx+1)
	tr.OnChange(nil)
	if t.current == tr {
		t.current = nil
	}
	t.refreshMagnetPoints()
	t.touch()
	t.emit(Event{Kind: EventTrackRemoved, Track: idx, Name: tr.Name()})
	return idx
}

func (t *Timeline) reorder(tr track.Track, idx int) {
	from := t.IndexOf(tr)
	if from < 0 {
		return
	}
	t.tracks = slices.Delete(t.tracks, from, from+1)
	idx = max(0, min(idx, len(t.tracks)))
	t.tracks = slices.Insert(t.tracks, idx, tr)
	t.touch()
	t.emit(Event{Kind: EventTrackMoved, Track: idx, From: from, Name: tr.Name()})
}

func (t *Timeline) onTrackChange(tr track.Track) {
	t.refreshMagnetPoints()
	t.touch()
	t.emit(Event{Kind: EventTrackChanged, Track: t.IndexOf(tr), Name: tr.Name()})
}

// AddTrack appends tr.
func (t *Timeline) AddTrack(tr track.Track) (history.Intent, error) {
	return t.InsertTrack(tr, len(t.tracks))
}

// InsertTrack places tr at idx, clamped to the track list.
func (t *Timeline) InsertTrack(tr track.Track, idx int) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: add track: %w", err)
	}
	if tr == nil {
		return history.Intent{}, fmt.Errorf("timeline: add track: nil track: %w", apperr.ErrInvalidState)
	}
	if t.IndexOf(tr) >= 0 {
		return history.Intent{}, fmt.Errorf("timeline: add track %q: %w", tr.Name(), apperr.ErrAlreadyExists)
	}
	idx = max(0, min(idx, len(t.tracks)))
	t.insert(tr, idx)
	in := history.Intent{
		Name:  "add track",
		Apply: func() { t.insert(tr, idx) },
		Undo:  func() { t.detach(tr) },
	}
	t.sink.Save(in)
	return in, nil
}

// RemoveTrack takes tr out of the timeline. Undoing puts it back at the
// same index.
func (t *Timeline) RemoveTrack(tr track.Track) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: remove track: %w", err)
	}
	idx := t.IndexOf(tr)
	if idx < 0 {
		return history.Intent{}, fmt.Errorf("timeline: remove track: %w", apperr.ErrNotFound)
	}
	wasCurrent := t.current == tr
	t.detach(tr)
	in := history.Intent{
		Name:  "remove track",
		Apply: func() { t.detach(tr) },
		Undo: func() {
			t.insert(tr, idx)
			if wasCurrent {
				t.selectTrack(tr)
			}
		},
	}
	t.sink.Save(in)
	return in, nil
}

// MoveTrack shifts tr by way positions, clamped to the list bounds.
func (t *Timeline) MoveTrack(tr track.Track, way int) (history.Intent, error) {
	if err := t.usable(); err != nil {
		return history.Intent{}, fmt.Errorf("timeline: move track: %w", err)
	}
	from := t.IndexOf(tr)
	if from < 0 {
		return history.Intent{}, fmt.Errorf("timeline: move track: %w", apperr.ErrNotFound)
	}
	to := max(0, min(from+way, len(t.tracks)-1))
	t.reorder(tr, to)
	in := history.Intent{
		Name:  "move track",
		Apply: func() { t.reorder(tr, to) },
		Undo:  func() { t.reorder(tr, from) },
	}
	t.sink.Save(in)
	return in, nil
}

// SelectTrack makes tr the current track. A nil track clears the selection.
func (t *Timeline) SelectTrack(tr track.Track) error {
	if err := t.usable(); err != nil {
		return fmt.Errorf("timeline: select track: %w", err)
	}
	if tr != nil && t.IndexOf(tr) < 0 {
		return fmt.Errorf("timeline: select track: %w", apperr.ErrNotFound)
	}
	t.selectTrack(tr)
	return nil
}

func (t *Timeline) selectTrack(tr track.Track) {
	if t.current == tr {
		return
	}
	t.current = tr
	t.emit(Event{Kind: EventTrackSelected, Track: t.IndexOf(tr)})
}

// MagnetPoints returns the sorted union of every track's magnet points.
func (t *Timeline) MagnetPoints() []float64 {
	var out []float64
	for _, tr := range t.tracks {
		out = append(out, tr.MagnetPoints()...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (t *Timeline) refreshMagnetPoints() {
	t.timebar.SetMagnetPoints(t.MagnetPoints())
}

// GetSave returns the persisted form of the document.
func (t *Timeline) GetSave() *models.Document {
	doc := &models.Document{
		Name:       t.name,
		Timebar:    t.timebar.Save(),
		Sequences:  make([]models.TrackSave, len(t.tracks)),
		EaseMap:    t.eases.Save(),
		TriggerMap: t.triggers.Save(),
	}
	for i, tr := range t.tracks {
		doc.Sequences[i] = tr.GetSave()
	}
	if i := t.IndexOf(t.current); t.current != nil && i >= 0 {
		doc.CurrTrackIdx = &i
	}
	return doc
}

// UseSave replaces the document with doc. Everything is validated before
// the current content is touched, so a failed load leaves it intact.
func (t *Timeline) UseSave(doc *models.Document) error {
	if err := t.usable(); err != nil {
		return fmt.Errorf("timeline: load: %w", err)
	}
	if t.state == StatePlaying {
		return fmt.Errorf("timeline: load while playing: %w", apperr.ErrInvalidState)
	}
	if doc == nil {
		return fmt.Errorf("timeline: load: nil document: %w", apperr.ErrMalformedTrackData)
	}

	tb, err := checkTimebar(doc.Timebar)
	if err != nil {
		return err
	}
	tracks := make([]track.Track, len(doc.Sequences))
	for i, save := range doc.Sequences {
		tr, err := track.Decode(save)
		if err != nil {
			return fmt.Errorf("timeline: load track %d: %w", i, err)
		}
		tracks[i] = tr
	}
	eases := easing.NewMap()
	if err := eases.Use(doc.EaseMap); err != nil {
		return fmt.Errorf("timeline: load: %w", err)
	}
	triggers := trigger.NewMap()
	if err := triggers.Use(doc.TriggerMap); err != nil {
		return fmt.Errorf("timeline: load: %w", err)
	}

	for len(t.tracks) > 0 {
		t.detach(t.tracks[len(t.tracks)-1])
	}
	_ = t.eases.Use(doc.EaseMap)
	_ = t.triggers.Use(doc.TriggerMap)
	t.name = doc.Name
	t.timebar.Use(tb)
	for i, tr := range tracks {
		t.insert(tr, i)
	}
	t.current = nil
	if idx := doc.CurrTrackIdx; idx != nil && *idx >= 0 && *idx < len(tracks) {
		t.selectTrack(tracks[*idx])
	}
	t.play.reset(t.timebar.CurrTime())
	t.sink.Clear()
	t.state = StateLoaded
	t.emit(Event{Kind: EventLoaded})
	return nil
}

func checkTimebar(s models.TimebarSave) (models.TimebarSave, error) {
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) || v < 0 }
	if bad(s.CurrTime) || bad(s.Timescale) || bad(s.Length) {
		return s, fmt.Errorf("timeline: load: timebar %+v: %w", s, apperr.ErrMalformedTrackData)
	}
	if s.Timescale == 0 {
		s.Timescale = timebar.DefaultTimescale
	}
	if s.Length == 0 {
		s.Length = timebar.DefaultLength
	}
	return s, nil
}

// Close stops playback and makes the timeline unusable.
func (t *Timeline) Close() {
	if t.state == StateClosed {
		return
	}
	t.stopFrames()
	t.state = StateClosed
	t.emit(Event{Kind: EventClosed})
}
