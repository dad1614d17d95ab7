package track

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/easing"
	"github.com/starford/keyline/internal/history"
	"github.com/starford/keyline/internal/models"
)

// Parameter names every CSS track carries.
const (
	ParamTransform       = "transform"
	ParamTransformOrigin = "transform-origin"
)

const (
	defaultName = "track"
	defaultFill = "forward"
)

type param struct {
	name string
	keys []models.Key
}

type cssState struct {
	name       string
	fill       string
	iterations float64
	selectors  []string
	params     []param
}

func (s cssState) clone() cssState {
	out := s
	out.selectors = slices.Clone(s.selectors)
	out.params = make([]param, len(s.params))
	for i, p := range s.params {
		keys := make([]models.Key, len(p.keys))
		for j, k := range p.keys {
			keys[j] = k
			keys[j].Value = k.Value.Clone()
		}
		out.params[i] = param{name: p.name, keys: keys}
	}
	return out
}

// CSS animates CSS properties of the elements matched by its selectors.
// Its transform parameter holds transform records; every other parameter
// holds CSS strings.
type CSS struct {
	st       cssState
	onChange func()
}

// NewCSS returns a CSS track with the mandatory parameters and no keys.
func NewCSS() *CSS {
	return &CSS{st: cssState{
		name:       defaultName,
		fill:       defaultFill,
		iterations: 1,
		selectors:  []string{},
		params: []param{
			{name: ParamTransform, keys: []models.Key{}},
			{name: ParamTransformOrigin, keys: []models.Key{}},
		},
	}}
}

func (*CSS) sealed() {}

func (t *CSS) Kind() string { return models.TrackTypeCSS }
func (t *CSS) Name() string { return t.st.name }
func (t *CSS) Fill() string { return t.st.fill }
func (t *CSS) Iterations() float64 { return t.st.iterations }
func (t *CSS) Selectors() []string { return slices.Clone(t.st.selectors) }

func (t *CSS) OnChange(fn func()) { t.onChange = fn }

// ParamNames lists the parameters in order. Placeholder parameters appear
// as empty strings.
func (t *CSS) ParamNames() []string {
	out := make([]string, len(t.st.params))
	for i, p := range t.st.params {
		out[i] = p.name
	}
	return out
}

// Keys returns a copy of a parameter's keyframes.
func (t *CSS) Keys(name string) []models.Key {
	i := t.paramIndex(name)
	if i < 0 {
		return nil
	}
	return t.st.clone().params[i].keys
}

func (t *CSS) paramIndex(name string) int {
	for i, p := range t.st.params {
		if p.name == name && name != "" {
			return i
		}
	}
	return -1
}

func (t *CSS) changed() {
	if t.onChange != nil {
		t.onChange()
	}
}

// GetSave returns the persisted form of the track.
func (t *CSS) GetSave() models.TrackSave {
	st := t.st.clone()
	params := make([]models.Parameter, len(st.params))
	for i, p := range st.params {
		params[i] = models.Parameter{Name: p.name, Keys: p.keys}
	}
	return models.TrackSave{
		Type: models.TrackTypeCSS,
		Data: models.TrackData{
			Name:       st.name,
			Fill:       st.fill,
			Iterations: st.iterations,
			Selectors:  st.selectors,
			Parameters: params,
		},
	}
}

// UseSave replaces the track content with data. The track is unchanged
// when data is malformed. Keys are sorted by time, keeping the saved order
// of equal times.
func (t *CSS) UseSave(data models.TrackData) error {
	if data.Parameters == nil {
		return fmt.Errorf("track: %q: missing parameters: %w", data.Name, apperr.ErrMalformedTrackData)
	}
	st := cssState{
		name:       data.Name,
		fill:       data.Fill,
		iterations: data.Iterations,
		selectors:  slices.Clone(data.Selectors),
	}
	if st.fill == "" {
		st.fill = defaultFill
	}
	if st.iterations == 0 {
		st.iterations = 1
	}
	if !(st.iterations > 0) || math.IsInf(st.iterations, 0) {
		return fmt.Errorf("track: %q: iterations %v: %w", data.Name, data.Iterations, apperr.ErrMalformedTrackData)
	}
	if st.selectors == nil {
		st.selectors = []string{}
	}

	for _, p := range data.Parameters {
		for _, k := range p.Keys {
			if err := checkKey(p.Name, k); err != nil {
				return fmt.Errorf("track: %q: %w", data.Name, err)
			}
		}
		keys := slices.Clone(p.Keys)
		if keys == nil {
			keys = []models.Key{}
		}
		for i := range keys {
			if keys[i].Ease == "" {
				keys[i].Ease = easing.Linear
			}
		}
		sortKeys(keys)
		st.params = append(st.params, param{name: p.Name, keys: keys})
	}
	for _, name := range []string{ParamTransform, ParamTransformOrigin} {
		if !slices.ContainsFunc(st.params, func(p param) bool { return p.name == name }) {
			st.params = append(st.params, param{name: name, keys: []models.Key{}})
		}
	}

	t.st = st.clone()
	t.changed()
	return nil
}

func checkKey(paramName string, k models.Key) error {
	if math.IsNaN(k.Time) || math.IsInf(k.Time, 0) || k.Time < 0 {
		return fmt.Errorf("parameter %q: key time %v: %w", paramName, k.Time, apperr.ErrMalformedTrackData)
	}
	if paramName == ParamTransform && !k.Value.IsTransform() {
		return fmt.Errorf("parameter %q: transform keys need a transform value: %w", paramName, apperr.ErrMalformedTrackData)
	}
	if paramName != ParamTransform && paramName != "" && k.Value.IsTransform() {
		return fmt.Errorf("parameter %q: keys need a string value: %w", paramName, apperr.ErrMalformedTrackData)
	}
	return nil
}

func sortKeys(keys []models.Key) {
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Time < keys[j].Time })
}

// MagnetPoints returns the sorted, deduplicated key times of every
// parameter.
func (t *CSS) MagnetPoints() []float64 {
	var out []float64
	for _, p := range t.st.params {
		for _, k := range p.keys {
			out = append(out, k.Time)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// EaseRefs counts the keyframes that reference ease id.
func (t *CSS) EaseRefs(id string) int {
	n := 0
	for _, p := range t.st.params {
		for _, k := range p.keys {
			if k.Ease == id {
				n++
			}
		}
	}
	return n
}

// commit runs edit against the track state and returns the intent that
// moves between the states before and after it.
func (t *CSS) commit(name string, edit func(st *cssState) bool) (history.Intent, bool) {
	before := t.st.clone()
	next := t.st.clone()
	if !edit(&next) {
		return history.Intent{}, false
	}
	t.st = next.clone()
	t.changed()
	return history.Intent{
		Name: name,
		Apply: func() {
			t.st = next.clone()
			t.changed()
		},
		Undo: func() {
			t.st = before.clone()
			t.changed()
		},
	}, true
}

func (st *cssState) param(name string) *param {
	for i := range st.params {
		if st.params[i].name == name && name != "" {
			return &st.params[i]
		}
	}
	return nil
}

// AddKey inserts a keyframe, after any key with the same time. A missing
// parameter is created. Keys whose value kind does not fit the parameter are
// rejected.
func (t *CSS) AddKey(paramName string, k models.Key) (history.Intent, bool) {
	if paramName == "" || checkKey(paramName, k) != nil {
		return history.Intent{}, false
	}
	if k.Ease == "" {
		k.Ease = easing.Linear
	}
	return t.commit("add key", func(st *cssState) bool {
		p := st.param(paramName)
		if p == nil {
			st.params = append(st.params, param{name: paramName})
			p = &st.params[len(st.params)-1]
		}
		p.keys = append(p.keys, k)
		sortKeys(p.keys)
		return true
	})
}

// RemoveKey deletes the i-th keyframe of a parameter.
func (t *CSS) RemoveKey(paramName string, i int) (history.Intent, bool) {
	return t.commit("remove key", func(st *cssState) bool {
		p := st.param(paramName)
		if p == nil || i < 0 || i >= len(p.keys) {
			return false
		}
		p.keys = slices.Delete(p.keys, i, i+1)
		return true
	})
}

// MoveKey changes the time of the i-th keyframe and re-sorts the keys.
// Negative times clamp to zero.
func (t *CSS) MoveKey(paramName string, i int, time float64) (history.Intent, bool) {
	if math.IsNaN(time) || math.IsInf(time, 0) {
		return history.Intent{}, false
	}
	time = math.Max(0, time)
	return t.commit("move key", func(st *cssState) bool {
		p := st.param(paramName)
		if p == nil || i < 0 || i >= len(p.keys) {
			return false
		}
		p.keys[i].Time = time
		sortKeys(p.keys)
		return true
	})
}

// SetKeyValue replaces the value of the i-th keyframe.
func (t *CSS) SetKeyValue(paramName string, i int, v models.Value) (history.Intent, bool) {
	if checkKey(paramName, models.Key{Value: v}) != nil {
		return history.Intent{}, false
	}
	return t.commit("set key value", func(st *cssState) bool {
		p := st.param(paramName)
		if p == nil || i < 0 || i >= len(p.keys) {
			return false
		}
		p.keys[i].Value = v.Clone()
		return true
	})
}

// SetKeyEase points the i-th keyframe at another ease id.
func (t *CSS) SetKeyEase(paramName string, i int, easeID string) (history.Intent, bool) {
	if easeID == "" {
		easeID = easing.Linear
	}
	return t.commit("set key ease", func(st *cssState) bool {
		p := st.param(paramName)
		if p == nil || i < 0 || i >= len(p.keys) {
			return false
		}
		p.keys[i].Ease = easeID
		return true
	})
}

// SetName renames the track.
func (t *CSS) SetName(name string) (history.Intent, bool) {
	return t.commit("rename track", func(st *cssState) bool {
		st.name = name
		return true
	})
}

// SetSelectors replaces the selectors the track targets.
func (t *CSS) SetSelectors(selectors []string) (history.Intent, bool) {
	return t.commit("set selectors", func(st *cssState) bool {
		st.selectors = slices.Clone(selectors)
		if st.selectors == nil {
			st.selectors = []string{}
		}
		return true
	})
}

// SetFill sets the fill mode. Empty resets it to forward.
func (t *CSS) SetFill(fill string) (history.Intent, bool) {
	if fill == "" {
		fill = defaultFill
	}
	return t.commit("set fill", func(st *cssState) bool {
		st.fill = fill
		return true
	})
}

// SetIterations sets the iteration count. Values that are not positive
// are ignored.
func (t *CSS) SetIterations(n float64) (history.Intent, bool) {
	if !(n > 0) || math.IsInf(n, 0) {
		return history.Intent{}, false
	}
	return t.commit("set iterations", func(st *cssState) bool {
		st.iterations = n
		return true
	})
}
