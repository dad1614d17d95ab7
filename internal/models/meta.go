package models

import "time"

// DocumentExt is the file extension of saved documents.
const DocumentExt = ".am.json"

// ScriptExt is the file extension of compiled playback modules.
const ScriptExt = ".am.js"

// FileMetadata is a lightweight representation returned by list operations.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentSummary is the indexed view of a saved document.
type DocumentSummary struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Length     float64   `json:"length"`
	TrackCount int       `json:"track_count"`
	Selectors  []string  `json:"selectors,omitempty"`
	Eases      []string  `json:"eases,omitempty"`
	Triggers   int       `json:"triggers"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updated_at"`
}
