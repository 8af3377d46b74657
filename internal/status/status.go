// Package status provides a thread-safe view of what a signage display is
// doing. It is written by the display driver and read by HTTP handlers and
// the MQTT heartbeat.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/community-signage/internal/display"
	"github.com/sweeney/community-signage/internal/music"
	"github.com/sweeney/community-signage/internal/rotation"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains display configuration for the status page.
type Config struct {
	Name           string
	ServerURL      string
	Broker         string
	HTTPAddr       string
	RefreshEveryMs int64
	HeartbeatMs    int64
	ButtonPin      int
}

// Counts are totals since the display started.
type Counts struct {
	Renders       int
	Visits        int
	Skips         int
	Idles         int
	Refreshes     int
	RefreshErrors int
	ButtonPresses int
}

// Snapshot is a point-in-time view of display state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Phase         rotation.Phase
	Mode          rotation.Mode
	Sequence      []rotation.Mode
	SequenceIndex int
	Unit          int
	Units         int
	CycleCount    map[rotation.Mode]int
	TimerPending  bool
	IdleReason    string

	Frame *display.Frame
	Track *music.Track

	Counts           Counts
	LastRefresh      time.Time
	LastRefreshError string

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the display started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether the rotation has started.
func (s Snapshot) Ready() bool {
	return s.Phase != "" && s.Phase != rotation.PhaseStopped
}

// Tracker holds mutable display state behind an RWMutex. It implements
// display.Renderer, display.Observer and music.Player so it can be wired
// straight into the driver.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Phase:      rotation.PhaseStopped,
			CycleCount: map[rotation.Mode]int{},
			StartTime:  startTime,
			Config:     cfg,
		},
		now: time.Now,
	}
}

// Render records the frame now on screen.
func (t *Tracker) Render(_ context.Context, f display.Frame) error {
	t.mu.Lock()
	t.snap.Frame = &f
	t.snap.Counts.Renders++
	t.mu.Unlock()
	return nil
}

// Play records the current music instruction.
func (t *Tracker) Play(_ context.Context, tr music.Track) error {
	t.mu.Lock()
	t.snap.Track = &tr
	t.mu.Unlock()
	return nil
}

// Observe copies the rotation position after each transition.
func (t *Tracker) Observe(s rotation.State, effects []rotation.Effect) {
	cycles := make(map[rotation.Mode]int, len(s.CycleCount))
	for m, n := range s.CycleCount {
		cycles[m] = n
	}
	seq := append([]rotation.Mode(nil), s.Config.Sequence...)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Phase = s.Phase
	t.snap.Mode = s.CurrentMode
	t.snap.Sequence = seq
	t.snap.SequenceIndex = s.SequenceIndex
	t.snap.Unit = s.Unit
	t.snap.Units = s.VisitUnits
	t.snap.CycleCount = cycles
	t.snap.TimerPending = s.TimerPending

	for _, e := range effects {
		switch e.Type {
		case rotation.EffectEnter:
			t.snap.Counts.Visits++
			t.snap.IdleReason = ""
		case rotation.EffectSkip:
			t.snap.Counts.Skips++
		case rotation.EffectIdle:
			t.snap.Counts.Idles++
			t.snap.IdleReason = e.Reason
			t.snap.Frame = nil
		}
	}
}

// RecordRefresh notes the outcome of a content refresh. Its signature
// matches display.RefreshListener.
func (t *Tracker) RecordRefresh(at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastRefresh = at
	if err != nil {
		t.snap.Counts.RefreshErrors++
		t.snap.LastRefreshError = err.Error()
		return
	}
	t.snap.Counts.Refreshes++
	t.snap.LastRefreshError = ""
}

// RecordButtonPress counts an advance button press.
func (t *Tracker) RecordButtonPress() {
	t.mu.Lock()
	t.snap.Counts.ButtonPresses++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the display state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.CycleCount = make(map[rotation.Mode]int, len(t.snap.CycleCount))
	for m, n := range t.snap.CycleCount {
		s.CycleCount[m] = n
	}
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
