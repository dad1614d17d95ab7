package track

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/compiler"
	"github.com/starford/keyline/internal/easing"
	"github.com/starford/keyline/internal/models"
)

// GetScript renders the player factory of the track. Warnings come back as
// diagnostics next to the factory. A track that cannot be compiled returns
// an error together with the diagnostic describing it.
func (t *CSS) GetScript(env Env) (string, []Diagnostic, error) {
	var diags []Diagnostic
	diag := func(code string, sev Severity, format string, args ...any) Diagnostic {
		d := Diagnostic{Code: code, Severity: sev, TrackName: t.st.name, Message: fmt.Sprintf(format, args...)}
		diags = append(diags, d)
		return d
	}

	if !(env.Duration > 0) {
		return "", diags, fmt.Errorf("track: %q: duration %v: %w", t.st.name, env.Duration, apperr.ErrInvalidState)
	}
	if len(t.st.selectors) == 0 {
		diag(CodeEmptySelectorList, SeverityWarning, "track %q has no selectors", t.st.name)
	}

	lists := make([]string, 0, len(t.st.params))
	beyond := false
	for _, p := range t.st.params {
		if p.name == "" {
			lists = append(lists, "[]")
			continue
		}
		for i := 1; i < len(p.keys); i++ {
			if p.keys[i].Time < p.keys[i-1].Time {
				d := diag(CodeUnsortedKeyframes, SeverityError, "parameter %q: key %d at %v comes before key %d at %v",
					p.name, i, p.keys[i].Time, i-1, p.keys[i-1].Time)
				return "", diags, fmt.Errorf("track: %s: %w", d.Message, apperr.ErrUnsortedKeyframes)
			}
		}
		for i, k := range p.keys {
			if !resolves(env.Eases, k.Ease) {
				d := diag(CodeDanglingEaseReference, SeverityError, "parameter %q: key %d uses unknown ease %q", p.name, i, k.Ease)
				return "", diags, fmt.Errorf("track: %s: %w", d.Message, apperr.ErrDanglingEaseReference)
			}
		}
		list, over := keyframeList(p, env)
		beyond = beyond || over
		lists = append(lists, list)
	}
	if beyond {
		diag(CodeKeyframeBeyondDuration, SeverityWarning, "track %q has keys after the timeline length %v; clamped to the end", t.st.name, env.Duration)
	}

	fill, _ := json.Marshal(t.st.fill)
	options := `{"direction":"normal","duration":` + compiler.FormatNumber(env.Duration) +
		`,"iterations":` + compiler.FormatNumber(t.st.iterations) +
		`,"fill":` + string(fill) + `}`

	out, err := compiler.RenderFactory(compiler.Factory{
		ParamKeys: "[" + strings.Join(lists, ",") + "]",
		Options:   options,
		Selectors: strings.Join(t.st.selectors, ", "),
	})
	if err != nil {
		return "", diags, err
	}
	return out, diags, nil
}

func resolves(eases *easing.Map, id string) bool {
	if eases == nil {
		return id == easing.Linear
	}
	return eases.Has(id)
}

// Offsets converts key times into playback offsets. Offsets past the end
// clamp to 1; the second result reports whether any did.
func Offsets(keys []models.Key, duration float64) ([]float64, bool) {
	out := make([]float64, len(keys))
	over := false
	for i, k := range keys {
		o := k.Time / duration
		if o > 1 {
			o, over = 1, true
		}
		out[i] = o
	}
	return out, over
}

func keyframeList(p param, env Env) (string, bool) {
	offsets, over := Offsets(p.keys, env.Duration)
	var values []string
	if p.name == ParamTransform {
		ts := make([]models.Transform, len(p.keys))
		for i, k := range p.keys {
			ts[i] = *k.Value.Transform
		}
		values = FlattenTransforms(ts)
	} else {
		values = make([]string, len(p.keys))
		for i, k := range p.keys {
			values[i] = k.Value.Text
		}
	}

	prop, _ := json.Marshal(p.name)
	var sb strings.Builder
	sb.WriteByte('[')
	for i, k := range p.keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		val, _ := json.Marshal(values[i])
		sb.WriteString(`{"offset":`)
		sb.WriteString(compiler.FormatNumber(offsets[i]))
		sb.WriteByte(',')
		sb.Write(prop)
		sb.WriteByte(':')
		sb.Write(val)
		if i < len(p.keys)-1 && k.Ease != easing.Linear && env.Eases != nil {
			if css, err := env.Eases.CSS(k.Ease); err == nil && css != easing.Linear {
				e, _ := json.Marshal(css)
				sb.WriteString(`,"easing":`)
				sb.Write(e)
			}
		}
		sb.WriteByte('}')
	}
	sb.WriteByte(']')
	return sb.String(), over
}

// components records which transform functions a parameter needs.
type components struct {
	translate   bool
	translate3d bool
	rotateX     bool
	rotateY     bool
	rotate      bool
	scale       bool
	scale3d     bool
	skew        bool
	perspective bool
}

func usedComponents(ts []models.Transform) components {
	var c components
	for _, tr := range ts {
		c.translate = c.translate || tr.TX != 0 || tr.TY != 0
		c.translate3d = c.translate3d || tr.TZ != 0
		c.rotateX = c.rotateX || tr.RX != 0
		c.rotateY = c.rotateY || tr.RY != 0
		c.rotate = c.rotate || tr.RZ != 0
		c.scale = c.scale || tr.SX != 1 || tr.SY != 1
		c.scale3d = c.scale3d || tr.SZ != 1
		c.skew = c.skew || tr.SkewX != 0 || tr.SkewY != 0
		c.perspective = c.perspective || tr.Perspective != 0
	}
	return c
}

// FlattenTransforms renders each transform as a CSS transform list. All
// results share one function list: a function is left out only when it is
// the identity in every transform.
func FlattenTransforms(ts []models.Transform) []string {
	c := usedComponents(ts)
	out := make([]string, len(ts))
	for i, tr := range ts {
		out[i] = c.format(tr)
	}
	return out
}

func (c components) format(tr models.Transform) string {
	n := compiler.FormatNumber
	var sb strings.Builder
	switch {
	case c.translate3d:
		sb.WriteString("translate3d(" + n(tr.TX) + "px," + n(tr.TY) + "px," + n(tr.TZ) + "px) ")
	case c.translate:
		sb.WriteString("translate(" + n(tr.TX) + "px," + n(tr.TY) + "px) ")
	}
	if c.rotateX {
		sb.WriteString("rotateX(" + n(tr.RX) + "rad) ")
	}
	if c.rotateY {
		sb.WriteString("rotateY(" + n(tr.RY) + "rad) ")
	}
	if c.rotate {
		sb.WriteString("rotate(" + n(tr.RZ) + "rad) ")
	}
	switch {
	case c.scale3d:
		sb.WriteString("scale3d(" + n(tr.SX) + "," + n(tr.SY) + "," + n(tr.SZ) + ") ")
	case c.scale:
		sb.WriteString("scale(" + n(tr.SX) + "," + n(tr.SY) + ") ")
	}
	if c.skew {
		sb.WriteString("skew(" + n(tr.SkewX) + "rad," + n(tr.SkewY) + "rad) ")
	}
	switch {
	case c.perspective && tr.Perspective > 0:
		sb.WriteString("perspective(" + n(tr.Perspective) + "px) ")
	case c.perspective:
		// 0 is unset.
		sb.WriteString("perspective(none) ")
	}
	if sb.Len() == 0 {
		return "none"
	}
	return sb.String()
}
