package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/music"
)

// FakePublisher records published messages for test assertions. It is safe
// for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	// Frames contains every frame that was published.
	Frames []display.Frame

	// Tracks contains every music instruction that was published.
	Tracks []music.Track

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, is returned by Render and Play.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Render records the frame.
func (f *FakePublisher) Render(_ context.Context, fr display.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	if _, err := FormatDisplayPayload(fr); err != nil {
		return err
	}
	f.Frames = append(f.Frames, fr)
	return nil
}

// Play records the track.
func (f *FakePublisher) Play(_ context.Context, t music.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	if _, err := FormatMusicPayload(t, time.Time{}); err != nil {
		return err
	}
	f.Tracks = append(f.Tracks, t)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// FrameCount returns how many frames were published.
func (f *FakePublisher) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Frames)
}

// SystemEventNames returns the published system event names in order.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.SystemEvents))
	for _, e := range f.SystemEvents {
		names = append(names, e.Event)
	}
	return names
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Frames = nil
	f.Tracks = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
