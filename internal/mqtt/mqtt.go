// Package mqtt publishes display activity and lifecycle events to an MQTT
// broker, with a fake for tests.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/music"
)

// TopicPrefix is the root of every topic a display publishes on.
const TopicPrefix = "signage"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
)

// ReasonDisconnect is the LWT reason the broker publishes for us.
const ReasonDisconnect = "MQTT_DISCONNECT"

// Topics are the per-display topic names.
type Topics struct {
	Display string
	Music   string
	System  string
}

// NewTopics returns the topics for the named display.
func NewTopics(name string) Topics {
	base := TopicPrefix + "/" + name
	return Topics{
		Display: base + "/display",
		Music:   base + "/music",
		System:  base + "/system",
	}
}

// Publisher publishes display activity. Every Publisher can be wired into
// the display driver as a renderer and music player.
type Publisher interface {
	// Render publishes the frame now on screen.
	Render(ctx context.Context, f display.Frame) error

	// Play publishes the current music instruction.
	Play(ctx context.Context, t music.Track) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // shutdown only, e.g. "SIGTERM"
	RawPayload []byte // pre-formatted full status; returned as-is by FormatSystemPayload
	Retained   bool
}

// DisplayPayload is published on the display topic for every frame.
type DisplayPayload struct {
	Display DisplayPayloadInner `json:"display"`
}

// DisplayPayloadInner contains the frame summary.
type DisplayPayloadInner struct {
	Timestamp string `json:"timestamp"`
	VisitID   string `json:"visit_id"`
	Mode      string `json:"mode"`
	Title     string `json:"title"`
	Headline  string `json:"headline"`
	Unit      int    `json:"unit"`
	Units     int    `json:"units"`
	Cycle     int    `json:"cycle"`
	Revision  uint64 `json:"revision"`
}

// FormatDisplayPayload creates the JSON payload for a frame.
func FormatDisplayPayload(f display.Frame) ([]byte, error) {
	return json.Marshal(DisplayPayload{
		Display: DisplayPayloadInner{
			Timestamp: f.At.UTC().Format(time.RFC3339),
			VisitID:   f.VisitID,
			Mode:      string(f.Mode),
			Title:     f.Title,
			Headline:  f.Headline(),
			Unit:      f.Unit,
			Units:     f.Units,
			Cycle:     f.Cycle,
			Revision:  f.Revision,
		},
	})
}

// MusicPayload is published on the music topic when the playlist changes.
type MusicPayload struct {
	Music MusicPayloadInner `json:"music"`
}

// MusicPayloadInner contains the playback instruction.
type MusicPayloadInner struct {
	Timestamp string   `json:"timestamp"`
	Mode      string   `json:"mode"`
	Kind      string   `json:"kind,omitempty"`
	Master    bool     `json:"master"`
	Stopped   bool     `json:"stopped"`
	Tracks    []string `json:"tracks"`
}

// FormatMusicPayload creates the JSON payload for a track change.
func FormatMusicPayload(t music.Track, at time.Time) ([]byte, error) {
	tracks := t.URLs()
	return json.Marshal(MusicPayload{
		Music: MusicPayloadInner{
			Timestamp: at.UTC().Format(time.RFC3339),
			Mode:      string(t.Mode),
			Kind:      string(t.Kind),
			Master:    t.Master,
			Stopped:   t.Stopped,
			Tracks:    tracks,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
