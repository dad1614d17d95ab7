// Package models defines the persisted document format for keyline timelines.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/starford/keyline/internal/apperr"
)

// TrackTypeCSS is the type tag of the CSS parametrized-transform track.
const TrackTypeCSS = "css_sequ_type"

// Document is the saved form of a whole timeline.
type Document struct {
	Timebar      TimebarSave `json:"timebar"`
	Sequences    []TrackSave `json:"sequences"`
	EaseMap      *EaseMap    `json:"easeMap,omitempty"`
	TriggerMap   *TriggerMap `json:"triggerMap,omitempty"`
	CurrTrackIdx *int        `json:"currTrackIdx,omitempty"`
	Name         string      `json:"name,omitempty"`
}

// UnmarshalJSON accepts the legacy "tracks" key as an alias of "sequences".
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var aux struct {
		plain
		Tracks []TrackSave `json:"tracks"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Document(aux.plain)
	if d.Sequences == nil {
		d.Sequences = aux.Tracks
	}
	return nil
}

// TimebarSave is the saved state of the time base.
type TimebarSave struct {
	CurrTime  float64 `json:"currTime"`
	Timescale float64 `json:"timescale"`
	Length    float64 `json:"length"`
}

// TrackSave is one entry of the sequences array.
type TrackSave struct {
	Type string    `json:"type"`
	Data TrackData `json:"data"`
}

// TrackData is the kind-specific body of a track.
type TrackData struct {
	Name       string      `json:"name"`
	Fill       string      `json:"fill,omitempty"`
	Iterations float64     `json:"iterations,omitempty"`
	Selectors  []string    `json:"selectors"`
	Parameters []Parameter `json:"parameters"`
}

// Parameter is one animated property of a track. Placeholder parameters
// written by older editors carry no name and are preserved as-is.
type Parameter struct {
	Name string `json:"name,omitempty"`
	Keys []Key  `json:"keys"`
}

// Key is a keyframe: the value at a time, and the ease into the next key.
type Key struct {
	Value Value   `json:"value"`
	Time  float64 `json:"time"`
	Ease  string  `json:"ease"`
}

// UnmarshalJSON rejects keys without a time.
func (k *Key) UnmarshalJSON(data []byte) error {
	var aux struct {
		Value Value    `json:"value"`
		Time  *float64 `json:"time"`
		Ease  string   `json:"ease"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Time == nil {
		return fmt.Errorf("models: key without time: %w", apperr.ErrMalformedTrackData)
	}
	k.Value = aux.Value
	k.Time = *aux.Time
	k.Ease = aux.Ease
	return nil
}

// EaseDef describes an easing curve. Points are cubic-bezier control
// points x1,y1,x2,y2. The rough fields are editor options kept for round
// trips; they do not change the curve.
type EaseDef struct {
	Preset         string    `json:"preset,omitempty"`
	Points         []float64 `json:"points,omitempty"`
	RoughEase      string    `json:"roughEase,omitempty"`
	RoughStrength  float64   `json:"roughStrength,omitempty"`
	RoughPoints    int       `json:"roughPoints,omitempty"`
	RoughClamp     bool      `json:"roughClamp,omitempty"`
	RoughRandomise bool      `json:"roughRandomise,omitempty"`
	RoughTaper     string    `json:"roughTaper,omitempty"`
}

// TriggerDef is a script snippet run when playback crosses Time.
type TriggerDef struct {
	Time   float64 `json:"time"`
	Script string  `json:"script"`
}

// ParseDocument decodes a saved document. Decoding failures are reported
// as malformed track data.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("models: parse document: %w: %w", apperr.ErrMalformedTrackData, err)
	}
	return &doc, nil
}

// Marshal encodes the document in its persisted form.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
