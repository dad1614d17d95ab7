package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/keyline/internal/apperr"
)

// Transform is a decomposed 2D/3D transform. Rotations and skews are in
// radians, translations and perspective in pixels.
type Transform struct {
	TX          float64 `json:"tx"`
	TY          float64 `json:"ty"`
	TZ          float64 `json:"tz"`
	RX          float64 `json:"rx"`
	RY          float64 `json:"ry"`
	RZ          float64 `json:"rz"`
	SX          float64 `json:"sx"`
	SY          float64 `json:"sy"`
	SZ          float64 `json:"sz"`
	SkewX       float64 `json:"skewX"`
	SkewY       float64 `json:"skewY"`
	Perspective float64 `json:"perspective"`
}

// IdentityTransform returns the transform that leaves an element unchanged.
func IdentityTransform() Transform {
	return Transform{SX: 1, SY: 1, SZ: 1}
}

// Value is a keyframe value: a transform record or a plain CSS string.
type Value struct {
	Transform *Transform
	Text      string
}

// TransformValue wraps t as a keyframe value.
func TransformValue(t Transform) Value {
	return Value{Transform: &t}
}

// TextValue wraps s as a keyframe value.
func TextValue(s string) Value {
	return Value{Text: s}
}

// IsTransform reports whether v holds a transform record.
func (v Value) IsTransform() bool {
	return v.Transform != nil
}

// Clone returns a copy that shares no memory with v.
func (v Value) Clone() Value {
	if v.Transform != nil {
		return TransformValue(*v.Transform)
	}
	return v
}

// Equal reports whether both values hold the same data.
func (v Value) Equal(o Value) bool {
	if v.IsTransform() != o.IsTransform() {
		return false
	}
	if v.IsTransform() {
		return *v.Transform == *o.Transform
	}
	return v.Text == o.Text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Transform != nil {
		return json.Marshal(v.Transform)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON decodes an object as a transform, filling absent fields
// with their identity defaults, and a string as text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("models: empty value: %w", apperr.ErrMalformedTrackData)
	}
	switch data[0] {
	case '{':
		t := IdentityTransform()
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("models: transform value: %w", err)
		}
		*v = TransformValue(t)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("models: text value: %w", err)
		}
		*v = TextValue(s)
	default:
		return fmt.Errorf("models: value must be an object or a string: %w", apperr.ErrMalformedTrackData)
	}
	return nil
}
