// Package track defines the timeline track kinds. The set of kinds is
// closed: every track is one of the variants in this package and is built
// through New or Decode.
package track

import (
	"fmt"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/easing"
	"github.com/starford/keyline/internal/models"
)

// Track is the capability set shared by all track kinds.
type Track interface {
	Kind() string
	Name() string
	GetSave() models.TrackSave
	UseSave(data models.TrackData) error
	GetScript(env Env) (string, []Diagnostic, error)
	MagnetPoints() []float64
	// StyleAt evaluates the track at a timeline time for preview.
	StyleAt(at float64, env Env) []Style
	// EaseRefs counts the keyframes referencing an ease id.
	EaseRefs(id string) int
	// OnChange registers the hook run after every edit or intent replay.
	OnChange(fn func())

	sealed()
}

// Env is the timeline context a track compiles against.
type Env struct {
	Duration float64
	Eases    *easing.Map
}

// New returns an empty track of the given kind.
func New(kind string) (Track, error) {
	switch kind {
	case models.TrackTypeCSS:
		return NewCSS(), nil
	default:
		return nil, fmt.Errorf("track: unknown kind %q: %w", kind, apperr.ErrMalformedTrackData)
	}
}

// Decode builds a track from its saved form.
func Decode(save models.TrackSave) (Track, error) {
	t, err := New(save.Type)
	if err != nil {
		return nil, err
	}
	if err := t.UseSave(save.Data); err != nil {
		return nil, err
	}
	return t, nil
}

// Severity of a compile diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes.
const (
	CodeEmptySelectorList      = "EmptySelectorList"
	CodeUnsortedKeyframes      = "UnsortedKeyframes"
	CodeDanglingEaseReference  = "DanglingEaseReference"
	CodeKeyframeBeyondDuration = "KeyframeBeyondDuration"
)

// Diagnostic is a compile finding attached to one track.
type Diagnostic struct {
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
	Track     int      `json:"track"`
	TrackName string   `json:"track_name"`
	Message   string   `json:"message"`
}
