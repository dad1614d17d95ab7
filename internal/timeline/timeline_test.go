package timeline

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/clock"
	"github.com/starford/keyline/internal/history"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/track"
)

type recorder struct {
	saved  []history.Intent
	clears int
}

func (r *recorder) Save(i history.Intent) { r.saved = append(r.saved, i) }
func (r *recorder) Clear() { r.clears++ }

func loadDoc(t *testing.T) *models.Document {
	t.Helper()
	data, err := os.ReadFile("../models/testdata/zomb1.am.json")
	require.NoError(t, err)
	doc, err := models.ParseDocument(data)
	require.NoError(t, err)
	return doc
}

func newLoaded(t *testing.T, opts ...Option) *Timeline {
	t.Helper()
	tl := New(opts...)
	require.NoError(t, tl.UseSave(loadDoc(t)))
	return tl
}

func cssTrack(t *testing.T, name string, times ...float64) *track.CSS {
	t.Helper()
	tr := track.NewCSS()
	tr.SetName(name)
	tr.SetSelectors([]string{name})
	for _, tm := range times {
		v := models.IdentityTransform()
		v.TX = tm
		_, ok := tr.AddKey(track.ParamTransform, models.Key{Value: models.TransformValue(v), Time: tm})
		require.True(t, ok)
	}
	return tr
}

func assertSameSave(t *testing.T, want, got *models.Document) {
	t.Helper()
	w, err := want.Marshal()
	require.NoError(t, err)
	g, err := got.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(w), string(g))
}

func events(tl *Timeline, kind string) *[]Event {
	var out []Event
	tl.Subscribe(func(e Event) {
		if e.Kind == kind {
			out = append(out, e)
		}
	})
	return &out
}

func TestUseSave_LoadsDocument(t *testing.T) {
	sink := &recorder{}
	tl := newLoaded(t, WithHistory(sink))

	assert.Equal(t, StateLoaded, tl.State())
	assert.Equal(t, 7, tl.Len())
	assert.Equal(t, DefaultName, tl.Name())
	assert.Equal(t, 816.6666666666665, tl.Timebar().Length())
	assert.Equal(t, 291.0, tl.Timebar().CurrTime())
	assert.Nil(t, tl.CurrentTrack())
	assert.Equal(t, 1, sink.clears)
	assert.Empty(t, sink.saved, "loading is not an undoable edit")
}

func TestGetSave_RoundTrip(t *testing.T) {
	tl := newLoaded(t)
	_, err := tl.SetEase("soft", models.EaseDef{Points: []float64{0.42, 0, 0.58, 1}})
	require.NoError(t, err)
	_, err = tl.SetTrigger("blink", models.TriggerDef{Time: 120, Script: "blink();"})
	require.NoError(t, err)
	first, _ := tl.Track(2)
	require.NoError(t, tl.SelectTrack(first))
	tl.SetName("zombie")

	save := tl.GetSave()
	other := New()
	require.NoError(t, other.UseSave(save))

	assertSameSave(t, save, other.GetSave())
	assert.Equal(t, "zombie", other.Name())
	assert.Equal(t, []string{"soft"}, other.Eases().IDs())
	require.NotNil(t, other.GetSave().CurrTrackIdx)
	assert.Equal(t, 2, *other.GetSave().CurrTrackIdx)
}

func TestUseSave_FailureLeavesDocumentIntact(t *testing.T) {
	tl := newLoaded(t)
	before := tl.GetSave()

	bad := loadDoc(t)
	bad.Sequences[3].Data.Parameters = nil
	err := tl.UseSave(bad)
	assert.ErrorIs(t, err, apperr.ErrMalformedTrackData)

	bad = loadDoc(t)
	bad.EaseMap = models.NewEaseMap()
	bad.EaseMap.Set("broken", models.EaseDef{Preset: "wobbly"})
	assert.ErrorIs(t, tl.UseSave(bad), apperr.ErrMalformedTrackData)

	bad = loadDoc(t)
	bad.Timebar.Length = -4
	assert.ErrorIs(t, tl.UseSave(bad), apperr.ErrMalformedTrackData)

	assertSameSave(t, before, tl.GetSave())
	assert.Equal(t, StateLoaded, tl.State())
}

func TestRemoveTrack_UndoRestoresIndexOnce(t *testing.T) {
	sink := &recorder{}
	tl := newLoaded(t, WithHistory(sink))
	added := events(tl, EventTrackAdded)

	tr, _ := tl.Track(3)
	want := tr.GetSave()

	in, err := tl.RemoveTrack(tr)
	require.NoError(t, err)
	assert.Equal(t, 6, tl.Len())
	assert.Equal(t, -1, tl.IndexOf(tr))
	require.Len(t, sink.saved, 1)
	assert.Equal(t, "remove track", sink.saved[0].Name)

	in.Undo()
	assert.Equal(t, 7, tl.Len())
	assert.Equal(t, 3, tl.IndexOf(tr))
	assert.Equal(t, want, tr.GetSave())
	require.Len(t, *added, 1, "add side effects run once")
	assert.Equal(t, 3, (*added)[0].Track)

	in.Apply()
	assert.Equal(t, -1, tl.IndexOf(tr))
}

func TestAddTrack_Intent(t *testing.T) {
	tl := New()
	tr := cssTrack(t, "#a", 0, 100)

	in, err := tl.AddTrack(tr)
	require.NoError(t, err)
	assert.Equal(t, StateEditing, tl.State())
	assert.Equal(t, []float64{0, 100}, tl.Timebar().MagnetPoints())

	_, err = tl.AddTrack(tr)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	in.Undo()
	assert.Zero(t, tl.Len())
	assert.Empty(t, tl.Timebar().MagnetPoints())
	in.Apply()
	assert.Equal(t, 1, tl.Len())

	_, err = tl.AddTrack(nil)
	assert.Error(t, err)
}

func TestMoveTrack_Clamps(t *testing.T) {
	tl := New()
	a, b, c := cssTrack(t, "#a"), cssTrack(t, "#b"), cssTrack(t, "#c")
	for _, tr := range []track.Track{a, b, c} {
		_, err := tl.AddTrack(tr)
		require.NoError(t, err)
	}

	in, err := tl.MoveTrack(a, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, tl.IndexOf(a))
	_, err = tl.MoveTrack(c, -10)
	require.NoError(t, err)
	assert.Equal(t, []track.Track{c, b, a}, tl.Tracks())

	in.Undo()
	assert.Equal(t, 0, tl.IndexOf(a))

	_, err = tl.MoveTrack(cssTrack(t, "#x"), 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMagnetPoints_UnionOfTracks(t *testing.T) {
	tl := New()
	a := cssTrack(t, "#a", 0, 100, 300)
	b := cssTrack(t, "#b", 100, 250)
	tl.AddTrack(a)
	tl.AddTrack(b)

	assert.Equal(t, []float64{0, 100, 250, 300}, tl.MagnetPoints())

	_, ok := b.MoveKey(track.ParamTransform, 1, 400)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 100, 300, 400}, tl.Timebar().MagnetPoints(), "track edits refresh magnets")
}

func TestPlay_AdvancesModuloLength(t *testing.T) {
	clk := clock.NewVirtual(1000)
	tl := newLoaded(t, WithScheduler(clk))
	require.NoError(t, tl.SetCurrTime(600))

	require.NoError(t, tl.Play())
	assert.Equal(t, StatePlaying, tl.State())

	clk.Advance(100.4)
	assert.Equal(t, 700.0, tl.Timebar().CurrTime())
	clk.Advance(200)
	assert.InDelta(t, 900-816.6666666666665, tl.Timebar().CurrTime(), 1e-9)

	require.NoError(t, tl.Pause())
	assert.Equal(t, StateLoaded, tl.State())
	assert.Zero(t, clk.Pending(), "pause cancels the pending frame")

	at := tl.Timebar().CurrTime()
	clk.Advance(50)
	assert.Equal(t, at, tl.Timebar().CurrTime())
}

func TestPlay_InvalidStates(t *testing.T) {
	tl := New()
	assert.ErrorIs(t, tl.Play(), apperr.ErrInvalidState)
	assert.NoError(t, tl.Pause())

	tl.Close()
	assert.ErrorIs(t, tl.Play(), apperr.ErrClosed)
	_, err := tl.AddTrack(track.NewCSS())
	assert.ErrorIs(t, err, apperr.ErrClosed)
	_, err = tl.GetScript(CompileOptions{})
	assert.ErrorIs(t, err, apperr.ErrClosed)
}

func TestSeek_PausesPlayback(t *testing.T) {
	clk := clock.NewVirtual(0)
	tl := newLoaded(t, WithScheduler(clk))
	require.NoError(t, tl.Play())
	clk.Advance(16)

	tl.Timebar().SetCurrTime(10)
	assert.Equal(t, StateLoaded, tl.State())
	assert.Zero(t, clk.Pending())

	require.NoError(t, tl.Play())
	require.NoError(t, tl.SetCurrTime(20))
	assert.NotEqual(t, StatePlaying, tl.State())
}

func TestPlay_FiresTriggersOnce(t *testing.T) {
	clk := clock.NewVirtual(0)
	tl := newLoaded(t, WithScheduler(clk))
	for id, at := range map[string]float64{"a": 100, "b": 150, "c": 0} {
		_, err := tl.SetTrigger(id, models.TriggerDef{Time: at})
		require.NoError(t, err)
	}
	fired := events(tl, EventTrigger)
	names := func() []string {
		var out []string
		for _, e := range *fired {
			out = append(out, e.Name)
		}
		return out
	}

	require.NoError(t, tl.SetCurrTime(0))
	require.NoError(t, tl.Play())
	clk.Advance(10)
	assert.Equal(t, []string{"c"}, names(), "trigger at the start time fires")

	clk.Advance(200)
	assert.Equal(t, []string{"c", "a", "b"}, names(), "one frame crossing several fires each once")

	clk.Advance(10)
	assert.Len(t, *fired, 3)

	require.NoError(t, tl.SetCurrTime(50))
	require.NoError(t, tl.Play())
	clk.Advance(1)
	assert.Len(t, *fired, 3, "seeking back fires nothing by itself")
	clk.Advance(98)
	assert.Equal(t, []string{"c", "a", "b", "a"}, names())

	// wrap past the end fires the head of the timeline
	clk.Advance(700)
	assert.Equal(t, []string{"c", "a", "b", "a", "b", "c"}, names())
}

func TestGetScript_AssemblesModule(t *testing.T) {
	tl := newLoaded(t)
	res, err := tl.GetScript(CompileOptions{})
	require.NoError(t, err)

	assert.Empty(t, res.Diagnostics)
	assert.False(t, res.HasErrors())
	assert.Equal(t, 7, strings.Count(res.Script, "new AnimationGroup(animations)"))
	assert.Contains(t, res.Script, "root.am.pageScripts['amsave']")
	assert.Contains(t, res.Script, `var SAVEJSON = '{"timebar":{"currTime":291,"timescale":0.12,"length":816.6666666666665},"sequences":[`)
	assert.Contains(t, res.Script, "length = 816.6666666666665,")
	assert.Contains(t, res.Script, `{"offset":0.42857142857142877,"transform":"translate(12px,-12.999999999999998px) rotate(-0.044687862938096234rad) "}`)

	again, err := tl.GetScript(CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, res.Script, again.Script)

	named, err := tl.GetScript(CompileOptions{ModuleName: "zomb1"})
	require.NoError(t, err)
	assert.Contains(t, named.Script, "root.am.pageScripts['zomb1']")
}

func TestGetScript_SkipsBrokenTracks(t *testing.T) {
	tl := New()
	good := cssTrack(t, "#good", 0, 500)
	broken := cssTrack(t, "#broken", 0, 500)
	empty := track.NewCSS()
	tl.AddTrack(good)
	tl.AddTrack(broken)
	tl.AddTrack(empty)

	_, err := tl.SetEase("temp", models.EaseDef{Preset: "ease"})
	require.NoError(t, err)
	_, ok := broken.SetKeyEase(track.ParamTransform, 0, "temp")
	require.True(t, ok)

	_, err = tl.RemoveEase("temp")
	assert.ErrorIs(t, err, apperr.ErrEaseInUse, "referenced eases stay")

	_, ok = broken.SetKeyEase(track.ParamTransform, 0, "gone")
	require.True(t, ok)

	res, err := tl.GetScript(CompileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.Skipped)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, track.CodeDanglingEaseReference, res.Diagnostics[0].Code)
	assert.Equal(t, 1, res.Diagnostics[0].Track)
	assert.Equal(t, track.CodeEmptySelectorList, res.Diagnostics[1].Code)
	assert.Equal(t, 2, res.Diagnostics[1].Track)
	assert.Contains(t, res.Script, "querySelectorAll('#good')")
	assert.NotContains(t, res.Script, "querySelectorAll('#broken')")
	assert.Equal(t, 2, strings.Count(res.Script, "new AnimationGroup(animations)"))
}

func TestStyleAt_HeadScenario(t *testing.T) {
	tl := newLoaded(t)
	styles := tl.StyleAt(350)
	require.Len(t, styles, 7)
	assert.Equal(t, "#head", styles[0].Name)
	require.NotEmpty(t, styles[0].Styles)
	assert.InDelta(t, -0.0447, styles[0].Styles[0].Value.Transform.RZ, 1e-4)
}

func TestEaseHistory(t *testing.T) {
	sink := history.NewStack(0)
	tl := New(WithHistory(sink))

	_, err := tl.SetEase("soft", models.EaseDef{Preset: "ease-in"})
	require.NoError(t, err)
	_, err = tl.SetEase("soft", models.EaseDef{Preset: "ease-out"})
	require.NoError(t, err)

	sink.Undo()
	def, _ := tl.Eases().Get("soft")
	assert.Equal(t, "ease-in", def.Preset)
	sink.Undo()
	assert.False(t, tl.Eases().Has("soft"))
	sink.Redo()
	assert.True(t, tl.Eases().Has("soft"))
}

func TestRemoveRegistryEntry_UndoKeepsDisplayOrder(t *testing.T) {
	tl := New()
	for _, id := range []string{"a", "b", "c"} {
		_, err := tl.SetEase(id, models.EaseDef{Preset: "ease"})
		require.NoError(t, err)
	}
	in, err := tl.RemoveEase("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, tl.Eases().IDs())
	in.Undo()
	assert.Equal(t, []string{"a", "b", "c"}, tl.Eases().IDs())
	in.Apply()
	assert.Equal(t, []string{"b", "c"}, tl.Eases().IDs())

	_, err = tl.SetTrigger("x", models.TriggerDef{Time: 50, Script: "x()"})
	require.NoError(t, err)
	_, err = tl.SetTrigger("y", models.TriggerDef{Time: 50, Script: "y()"})
	require.NoError(t, err)
	in, err = tl.RemoveTrigger("x")
	require.NoError(t, err)
	in.Undo()
	assert.Equal(t, []string{"x", "y"}, tl.Triggers().IDs())

	res, err := tl.GetScript(CompileOptions{})
	require.NoError(t, err)
	assert.Less(t, strings.Index(res.Script, "x()"), strings.Index(res.Script, "y()"), "tied triggers fire in display order")
}
