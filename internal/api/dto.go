package api

import (
	"encoding/json"
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/index"
	"github.com/starford/keyline/internal/models"
)

var (
	fillModes  = []any{"", "none", "forward", "forwards", "backwards", "both", "auto"}
	moduleName = regexp.MustCompile(`^[A-Za-z0-9_.$-]+$`)
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Path     string          `json:"path" example:"scenes/walk.am.json"`
	Document json.RawMessage `json:"document"`
}

// Validate checks the request fields.
func (r *CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required, validation.Length(1, 512)),
		validation.Field(&r.Document, validation.Required),
	)
}

// UpdateDocumentRequest is the request body for replacing a document.
type UpdateDocumentRequest struct {
	Document json.RawMessage `json:"document"`
}

// Validate checks the request fields.
func (r *UpdateDocumentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Document, validation.Required),
	)
}

// MoveRequest relocates a document within the library.
type MoveRequest struct {
	From string `json:"from" example:"scenes/intro.am.json"`
	To   string `json:"to" example:"archive/intro.am.json"`
}

// Validate checks the request fields.
func (r *MoveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
	)
}

// RenameRequest sets the document name.
type RenameRequest struct {
	Name string `json:"name" example:"Walk cycle"`
}

// Validate checks the request fields.
func (r *RenameRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Length(0, 256)),
	)
}

// TimebarRequest changes the time base of a document.
type TimebarRequest struct {
	Length    *float64 `json:"length,omitempty" example:"6000"`
	Timescale *float64 `json:"timescale,omitempty" example:"0.12"`
}

// Validate checks the request fields.
func (r *TimebarRequest) Validate() error {
	if r.Length == nil && r.Timescale == nil {
		return errors.New("length or timescale is required")
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Length, validation.NilOrNotEmpty, validation.Min(0.0).Exclusive()),
		validation.Field(&r.Timescale, validation.NilOrNotEmpty, validation.Min(0.0).Exclusive()),
	)
}

// toPatch converts the request to a service patch.
func (r *TimebarRequest) toPatch() docservice.TimebarPatch {
	return docservice.TimebarPatch{Length: r.Length, Timescale: r.Timescale}
}

// AddTrackRequest creates a CSS track.
type AddTrackRequest struct {
	Name       string   `json:"name" example:"#head"`
	Selectors  []string `json:"selectors" example:"#head"`
	Fill       string   `json:"fill,omitempty" example:"forward"`
	Iterations float64  `json:"iterations,omitempty" example:"1"`
	Index      *int     `json:"index,omitempty"`
}

// Validate checks the request fields.
func (r *AddTrackRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Selectors, validation.Each(validation.Required)),
		validation.Field(&r.Fill, validation.In(fillModes...)),
		validation.Field(&r.Iterations, validation.Min(0.0)),
		validation.Field(&r.Index, validation.Min(0)),
	)
}

func (r *AddTrackRequest) toInput() docservice.TrackInput {
	return docservice.TrackInput{
		Name:       r.Name,
		Selectors:  r.Selectors,
		Fill:       r.Fill,
		Iterations: r.Iterations,
		Index:      r.Index,
	}
}

// UpdateTrackRequest changes track properties. Omitted fields are kept.
type UpdateTrackRequest struct {
	Name       *string  `json:"name,omitempty"`
	Selectors  []string `json:"selectors,omitempty"`
	Fill       *string  `json:"fill,omitempty"`
	Iterations *float64 `json:"iterations,omitempty"`
}

// Validate checks the request fields.
func (r *UpdateTrackRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Selectors, validation.Each(validation.Required)),
		validation.Field(&r.Fill, validation.In(fillModes...)),
		validation.Field(&r.Iterations, validation.NilOrNotEmpty, validation.Min(0.0).Exclusive()),
	)
}

func (r *UpdateTrackRequest) toPatch() docservice.TrackPatch {
	return docservice.TrackPatch{Name: r.Name, Selectors: r.Selectors, Fill: r.Fill, Iterations: r.Iterations}
}

// MoveTrackRequest shifts a track by Way positions.
type MoveTrackRequest struct {
	Way int `json:"way" example:"-1"`
}

// Validate checks the request fields.
func (r *MoveTrackRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Way, validation.Required),
	)
}

// AddKeyRequest inserts a keyframe.
type AddKeyRequest struct {
	Param string       `json:"param" example:"transform"`
	Time  float64      `json:"time" example:"400"`
	Value models.Value `json:"value"`
	Ease  string       `json:"ease,omitempty" example:"linear"`
}

// Validate checks the request fields.
func (r *AddKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Param, validation.Required),
		validation.Field(&r.Time, validation.Min(0.0)),
		validation.Field(&r.Value, validation.By(func(any) error {
			if !r.Value.IsTransform() && r.Value.Text == "" {
				return errors.New("cannot be blank")
			}
			return nil
		})),
	)
}

func (r *AddKeyRequest) key() models.Key {
	return models.Key{Value: r.Value, Time: r.Time, Ease: r.Ease}
}

// UpdateKeyRequest changes a keyframe. Omitted fields are kept.
type UpdateKeyRequest struct {
	Time  *float64      `json:"time,omitempty"`
	Value *models.Value `json:"value,omitempty"`
	Ease  *string       `json:"ease,omitempty"`
}

// Validate checks the request fields.
func (r *UpdateKeyRequest) Validate() error {
	if r.Time == nil && r.Value == nil && r.Ease == nil {
		return errors.New("time, value or ease is required")
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.Time, validation.Min(0.0)),
	)
}

// TriggerRequest adds or replaces a trigger.
type TriggerRequest struct {
	Time   float64 `json:"time" example:"350"`
	Script string  `json:"script" example:"console.log('step')"`
}

// Validate checks the request fields.
func (r *TriggerRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Time, validation.Min(0.0)),
	)
}

// EaseRequest adds or replaces an ease.
type EaseRequest struct {
	models.EaseDef
}

// Validate checks the request fields. Curve validity is checked by the ease registry.
func (r *EaseRequest) Validate() error {
	if r.Preset == "" && len(r.Points) == 0 {
		return errors.New("preset or points is required")
	}
	return validation.ValidateStruct(&r.EaseDef,
		validation.Field(&r.EaseDef.Points, validation.When(r.Preset == "", validation.Length(4, 4))),
	)
}

// SeekRequest moves the playhead.
type SeekRequest struct {
	Time float64 `json:"time" example:"291"`
}

// Validate checks the request fields.
func (r *SeekRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Time, validation.Min(0.0)),
	)
}

// ExportRequest compiles a document into the exports directory.
type ExportRequest struct {
	Module string `json:"module,omitempty" example:"amsave"`
}

// Validate checks the request fields.
func (r *ExportRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Module, validation.Length(0, 128), validation.Match(moduleName)),
	)
}

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.DocumentSummary `json:"documents"`
	Total     int                      `json:"total" example:"42"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"scenes/walk.am.json"`
	Name    string `json:"name" example:"Walk"`
	Snippet string `json:"snippet" example:"...matched text..."`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

func toSearchResponse(hits []index.SearchResult) SearchResponse {
	out := SearchResponse{Results: make([]SearchResult, len(hits))}
	for i, h := range hits {
		out.Results[i] = SearchResult{Path: h.Path, Name: h.Name, Snippet: h.Snippet}
	}
	return out
}

// TargetsResponse lists the documents animating a selector.
type TargetsResponse struct {
	Selector  string   `json:"selector" example:"#head"`
	Documents []string `json:"documents"`
}

// ImportResponse is returned after a document upload.
type ImportResponse struct {
	Path     string `json:"path" example:"imports/walk.am.json"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size" example:"12345"`
}
