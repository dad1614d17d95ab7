package timeline

import "github.com/starford/keyline/internal/trigger"

// Event kinds.
const (
	EventLoaded        = "loaded"
	EventClosed        = "closed"
	EventTrackAdded    = "track.added"
	EventTrackRemoved  = "track.removed"
	EventTrackMoved    = "track.moved"
	EventTrackChanged  = "track.changed"
	EventTrackSelected = "track.selected"
	EventChangeTime    = "change.time"
	EventChangeTape    = "change.tape"
	EventPlay          = "play"
	EventPause         = "pause"
	EventTrigger       = "trigger"
)

// Event is a notification about the timeline.
type Event struct {
	Kind    string         `json:"kind"`
	Track   int            `json:"track"`
	From    int            `json:"from"`
	Name    string         `json:"name,omitempty"`
	Time    float64        `json:"time,omitempty"`
	Trigger *trigger.Entry `json:"trigger,omitempty"`
}
