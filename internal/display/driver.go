// Package display runs the rotation scheduler against a real (or fake)
// clock and turns its effects into frames, music and metrics.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/metrics"
	"github.com/sweeney/community-signage/internal/rotation"
	"github.com/sweeney/community-signage/internal/timer"
)

// TrackSelector switches background music when a new mode is entered.
type TrackSelector interface {
	SelectTrack(ctx context.Context, mode rotation.Mode, settings content.Settings) error
}

// Observer is told about every transition after its effects ran.
type Observer interface {
	Observe(state rotation.State, effects []rotation.Effect)
}

// Options configures a Driver. Renderer is required.
type Options struct {
	Timer    timer.Timer
	Renderer Renderer
	Tracks   TrackSelector
	Observer Observer
	Logger   zerolog.Logger

	// Now stamps frames. Defaults to time.Now.
	Now func() time.Time
	// NewVisitID names each visit. Defaults to random UUIDs.
	NewVisitID func() string
}

// Driver owns the rotation state and executes its effects. All transitions
// happen on the goroutine running Run.
type Driver struct {
	timer    timer.Timer
	renderer Renderer
	tracks   TrackSelector
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	refreshMu sync.Mutex
	refreshCh chan content.Snapshot
	advanceCh chan struct{}

	// Owned by the transition goroutine.
	state     rotation.State
	revision  uint64
	latest    uint64
	snapshots map[uint64]content.Snapshot
	visitID   string
}

// NewDriver creates a driver.
func NewDriver(opts Options) *Driver {
	d := &Driver{
		timer:     opts.Timer,
		renderer:  opts.Renderer,
		tracks:    opts.Tracks,
		observer:  opts.Observer,
		log:       opts.Logger,
		now:       opts.Now,
		newID:     opts.NewVisitID,
		refreshCh: make(chan content.Snapshot, 1),
		advanceCh: make(chan struct{}, 1),
		state:     rotation.NewState(),
		snapshots: make(map[uint64]content.Snapshot, 2),
	}
	if d.timer == nil {
		d.timer = timer.NewReal()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	return d
}

// Run starts the rotation on initial and processes timer fires, refreshes
// and advance requests until ctx is cancelled.
func (d *Driver) Run(ctx context.Context, initial content.Snapshot) error {
	d.Start(ctx, initial)
	defer d.timer.Cancel()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("display driver stopped")
			return nil

		case seq := <-d.timer.C():
			d.Fire(ctx, seq)

		case snap := <-d.refreshCh:
			d.refresh(ctx, snap)

		case <-d.advanceCh:
			d.Advance(ctx)
		}
	}
}

// Refresh hands a newly fetched snapshot to the running driver. Only the
// latest undelivered snapshot is kept. It never blocks.
func (d *Driver) Refresh(snap content.Snapshot) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()
	select {
	case <-d.refreshCh:
	default:
	}
	d.refreshCh <- snap
}

// RequestAdvance asks the running driver to end the current visit early.
// Presses arriving before the previous one was handled are merged.
func (d *Driver) RequestAdvance() {
	select {
	case d.advanceCh <- struct{}{}:
	default:
	}
}

// Start begins the rotation on snap. Start, Fire and Advance are for
// callers that drive the clock themselves and must not be mixed with Run.
func (d *Driver) Start(ctx context.Context, snap content.Snapshot) {
	cfg := d.adopt(snap)
	d.log.Info().
		Uint64("revision", cfg.Revision).
		Int("events", len(snap.Events)).
		Int("announcements", len(snap.Announcements)).
		Msg("starting rotation")
	d.apply(ctx, rotation.Event{Type: rotation.EventStart, Config: cfg})
}

// Fire delivers a timer fire.
func (d *Driver) Fire(ctx context.Context, seq uint64) {
	d.apply(ctx, rotation.Event{Type: rotation.EventTimerFired, Seq: seq})
}

// Advance ends the current visit early.
func (d *Driver) Advance(ctx context.Context) {
	metrics.AdvancesTotal.Inc()
	d.log.Info().Str("mode", string(d.state.CurrentMode)).Msg("advance requested")
	d.apply(ctx, rotation.Event{Type: rotation.EventAdvance})
}

// State returns the rotation state. Only safe from the transition goroutine.
func (d *Driver) State() rotation.State {
	return d.state
}

func (d *Driver) refresh(ctx context.Context, snap content.Snapshot) {
	if prev, ok := d.snapshots[d.latest]; ok && prev.SameContent(snap) {
		metrics.IncRefresh(metrics.RefreshUnchanged)
		d.log.Debug().Msg("refresh unchanged")
		return
	}
	metrics.IncRefresh(metrics.RefreshChanged)
	cfg := d.adopt(snap)
	d.log.Info().
		Uint64("revision", cfg.Revision).
		Int("events", len(snap.Events)).
		Int("announcements", len(snap.Announcements)).
		Msg("content refreshed")
	d.apply(ctx, rotation.Event{Type: rotation.EventRefresh, Config: cfg})
}

// adopt numbers a snapshot and returns its scheduler configuration.
func (d *Driver) adopt(snap content.Snapshot) rotation.Config {
	d.revision++
	snap.Revision = d.revision
	d.snapshots[snap.Revision] = snap
	d.latest = snap.Revision
	metrics.ContentRevision.Set(float64(snap.Revision))
	return content.BuildConfig(snap)
}

func (d *Driver) apply(ctx context.Context, ev rotation.Event) {
	next, effects := rotation.Transition(d.state, ev)
	d.state = next

	for _, e := range effects {
		d.execute(ctx, e)
	}
	d.prune()

	if d.observer != nil {
		d.observer.Observe(next, effects)
	}
}

func (d *Driver) execute(ctx context.Context, e rotation.Effect) {
	switch e.Type {
	case rotation.EffectEnter:
		d.visitID = d.newID()
		metrics.VisitsTotal.WithLabelValues(string(e.Mode)).Inc()
		d.log.Info().Str("mode", string(e.Mode)).Str("visit", d.visitID).Msg("entering mode")

	case rotation.EffectSkip:
		metrics.SkipsTotal.WithLabelValues(string(e.Mode)).Inc()
		d.log.Debug().Str("mode", string(e.Mode)).Msg("mode unavailable, skipping")

	case rotation.EffectSelectTrack:
		if d.tracks == nil {
			return
		}
		snap := d.snapshot(d.state.Config.Revision)
		if err := d.tracks.SelectTrack(ctx, e.Mode, snap.Settings); err != nil {
			metrics.RenderErrorsTotal.Inc()
			d.log.Warn().Err(err).Str("mode", string(e.Mode)).Msg("track selection failed")
		}

	case rotation.EffectRender:
		f := buildFrame(e, d.snapshot(e.Revision), d.visitID, d.now())
		metrics.RendersTotal.WithLabelValues(string(e.Mode)).Inc()
		metrics.SetCurrentMode(string(e.Mode), modeNames())
		d.log.Debug().
			Str("mode", string(e.Mode)).
			Int("unit", e.Unit).
			Int("units", e.Units).
			Int("cycle", e.Cycle).
			Str("headline", f.Headline()).
			Msg("render")
		if err := d.renderer.Render(ctx, f); err != nil {
			metrics.RenderErrorsTotal.Inc()
			d.log.Warn().Err(err).Str("mode", string(e.Mode)).Msg("render failed")
		}

	case rotation.EffectCancelTimer:
		d.timer.Cancel()

	case rotation.EffectScheduleTimer:
		d.timer.Schedule(e.Delay, e.Seq)

	case rotation.EffectIdle:
		d.visitID = ""
		metrics.IdleTotal.Inc()
		metrics.SetCurrentMode("", modeNames())
		d.log.Warn().Str("reason", e.Reason).Msg("rotation idle")
	}
}

// snapshot returns the snapshot with the given revision, falling back to
// the latest one.
func (d *Driver) snapshot(rev uint64) content.Snapshot {
	if snap, ok := d.snapshots[rev]; ok {
		return snap
	}
	return d.snapshots[d.latest]
}

// prune drops snapshots nothing can render from any more.
func (d *Driver) prune() {
	for rev := range d.snapshots {
		if rev == d.latest || rev == d.state.Config.Revision {
			continue
		}
		if d.state.Pending != nil && rev == d.state.Pending.Revision {
			continue
		}
		delete(d.snapshots, rev)
	}
}

func modeNames() []string {
	names := make([]string, len(rotation.Modes))
	for i, m := range rotation.Modes {
		names[i] = string(m)
	}
	return names
}
