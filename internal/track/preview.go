package track

import (
	"math"

	"github.com/starford/keyline/internal/models"
)

// Style is the value of one property at a point in time.
type Style struct {
	Property string       `json:"property"`
	Value    models.Value `json:"value"`
	CSS      string       `json:"css"`
}

// progress maps a timeline time onto the offset axis of one iteration.
// ok is false when the animation shows nothing at that time.
func (t *CSS) progress(at, duration float64) (float64, bool) {
	if !(duration > 0) || math.IsNaN(at) {
		return 0, false
	}
	if at < 0 {
		at = 0
	}
	active := duration * t.st.iterations
	if at >= active {
		if t.st.fill == "forward" || t.st.fill == "forwards" || t.st.fill == "both" {
			return 1, true
		}
		return 0, false
	}
	return math.Mod(at, duration) / duration, true
}

// ValueAt evaluates a parameter at time at, using the same offsets and
// ease curves as the compiled animation. At a time shared by several keys
// the last of them wins.
func (t *CSS) ValueAt(paramName string, at float64, env Env) (models.Value, bool) {
	i := t.paramIndex(paramName)
	if i < 0 || len(t.st.params[i].keys) == 0 {
		return models.Value{}, false
	}
	local, ok := t.progress(at, env.Duration)
	if !ok {
		return models.Value{}, false
	}
	keys := t.st.params[i].keys
	offsets, _ := Offsets(keys, env.Duration)

	j := -1
	for k, o := range offsets {
		if o <= local {
			j = k
		}
	}
	switch {
	case j < 0:
		return keys[0].Value.Clone(), true
	case j == len(keys)-1:
		return keys[j].Value.Clone(), true
	}

	p := (local - offsets[j]) / (offsets[j+1] - offsets[j])
	e := p
	if env.Eases != nil {
		e = env.Eases.Eval(keys[j].Ease, p)
	}
	return lerp(keys[j].Value, keys[j+1].Value, e), true
}

// StyleAt evaluates every named parameter that has keys.
func (t *CSS) StyleAt(at float64, env Env) []Style {
	var out []Style
	for _, p := range t.st.params {
		if p.name == "" {
			continue
		}
		v, ok := t.ValueAt(p.name, at, env)
		if !ok {
			continue
		}
		s := Style{Property: p.name, Value: v, CSS: v.Text}
		if v.IsTransform() {
			ts := make([]models.Transform, len(p.keys))
			for i, k := range p.keys {
				ts[i] = *k.Value.Transform
			}
			s.CSS = usedComponents(ts).format(*v.Transform)
		}
		out = append(out, s)
	}
	return out
}

func lerp(a, b models.Value, e float64) models.Value {
	if !a.IsTransform() || !b.IsTransform() {
		if e < 0.5 {
			return a.Clone()
		}
		return b.Clone()
	}
	x, y := *a.Transform, *b.Transform
	f := func(p, q float64) float64 { return p + (q-p)*e }
	return models.TransformValue(models.Transform{
		TX:          f(x.TX, y.TX),
		TY:          f(x.TY, y.TY),
		TZ:          f(x.TZ, y.TZ),
		RX:          f(x.RX, y.RX),
		RY:          f(x.RY, y.RY),
		RZ:          f(x.RZ, y.RZ),
		SX:          f(x.SX, y.SX),
		SY:          f(x.SY, y.SY),
		SZ:          f(x.SZ, y.SZ),
		SkewX:       f(x.SkewX, y.SkewX),
		SkewY:       f(x.SkewY, y.SkewY),
		Perspective: f(x.Perspective, y.Perspective),
	})
}
