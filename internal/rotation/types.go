// Package rotation contains the display rotation state machine.
// This package has NO external dependencies (no timers, rendering, audio or I/O).
// Durations are plain data; the caller owns the clock and executes the effects.
package rotation

import "time"

// Mode is one of the rotating display states.
type Mode string

const (
	ModeEvents        Mode = "events"
	ModeWeather       Mode = "weather"
	ModeAnnouncements Mode = "announcements"
)

// Modes lists every known mode in default traversal order.
var Modes = []Mode{ModeEvents, ModeWeather, ModeAnnouncements}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeEvents, ModeWeather, ModeAnnouncements:
		return true
	}
	return false
}

// needsContent reports whether the mode is only shown when it has items.
func (m Mode) needsContent() bool {
	return m == ModeEvents || m == ModeAnnouncements
}

// Phase is the coarse lifecycle position of the scheduler.
type Phase string

const (
	PhaseStopped Phase = "STOPPED" // Start has not been called
	PhaseShowing Phase = "SHOWING" // a unit is on screen with a pending timer
	PhaseStatic  Phase = "STATIC"  // a unit is on screen with no auto-advance
	PhaseIdle    Phase = "IDLE"    // nothing is available to show
)

// Config is an immutable snapshot of everything the scheduler consults.
// It is replaced wholesale on every content refresh.
type Config struct {
	// Revision identifies the content snapshot this config was built from.
	// It is echoed in Render effects so the caller can resolve content.
	Revision uint64

	// Sequence is the traversal order. Duplicates and omissions are allowed.
	Sequence []Mode

	Enabled        map[Mode]bool
	CyclesPerVisit map[Mode]int
	HasContent     map[Mode]bool

	// UnitsPerPass is the number of content units in one pass of a mode
	// (announcements: item count, weather: screen count, events: 1).
	UnitsPerPass map[Mode]int

	// UnitDuration is how long one unit stays on screen. Zero means the
	// unit is shown statically and never auto-advances.
	UnitDuration map[Mode]time.Duration
}

// Available reports whether mode m may be rendered under this config.
func (c Config) Available(m Mode) bool {
	if !m.Valid() || !c.Enabled[m] {
		return false
	}
	if m.needsContent() && !c.HasContent[m] {
		return false
	}
	return true
}

func (c Config) cycles(m Mode) int {
	if n := c.CyclesPerVisit[m]; n > 0 {
		return n
	}
	return 1
}

func (c Config) units(m Mode) int {
	if n := c.UnitsPerPass[m]; n > 0 {
		return n
	}
	return 1
}

// State is the mutable rotation state. It is owned by a single driver and
// only changed through Transition.
type State struct {
	Phase Phase

	// SequenceIndex is the position in Config.Sequence currently shown.
	SequenceIndex int

	// CycleCount counts completed passes of the current visit, per mode.
	CycleCount map[Mode]int

	CurrentMode Mode

	// Unit is the index of the unit on screen; VisitUnits is the unit count
	// captured when the current pass started.
	Unit       int
	VisitUnits int

	// LastRendered is the mode of the most recent Render effect.
	LastRendered Mode

	TimerPending bool
	TimerSeq     uint64

	// Config is the snapshot the current visit runs on. Pending holds a
	// refreshed snapshot until the next entry or pass boundary adopts it.
	Config  Config
	Pending *Config
}

// NewState returns the initial state: stopped, index 0, all counts 0.
func NewState() State {
	return State{
		Phase:      PhaseStopped,
		CycleCount: make(map[Mode]int, len(Modes)),
	}
}

func (s State) clone() State {
	c := s
	c.CycleCount = make(map[Mode]int, len(s.CycleCount))
	for m, n := range s.CycleCount {
		c.CycleCount[m] = n
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return c
}

// EventType is an input to the state machine.
type EventType string

const (
	EventStart      EventType = "START"
	EventTimerFired EventType = "TIMER_FIRED"
	EventRefresh    EventType = "REFRESH"
	EventAdvance    EventType = "ADVANCE"
)

// Event is a single input. Config is set for START and REFRESH, Seq for
// TIMER_FIRED.
type Event struct {
	Type   EventType
	Config Config
	Seq    uint64
}

// EffectType names a side effect the driver must perform.
type EffectType string

const (
	EffectEnter         EffectType = "ENTER"
	EffectSkip          EffectType = "SKIP"
	EffectRender        EffectType = "RENDER"
	EffectSelectTrack   EffectType = "SELECT_TRACK"
	EffectCancelTimer   EffectType = "CANCEL_TIMER"
	EffectScheduleTimer EffectType = "SCHEDULE_TIMER"
	EffectIdle          EffectType = "IDLE"
)

// Effect is an instruction produced by Transition. Effects must be executed
// in order.
type Effect struct {
	Type EffectType
	Mode Mode

	// Render
	Unit     int
	Units    int
	Cycle    int // 1-based pass number within the visit
	Revision uint64

	// ScheduleTimer
	Delay time.Duration
	Seq   uint64

	// Idle
	Reason string
}
