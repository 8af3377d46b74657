package display

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sweeney/community-signage/internal/content"
	"github.com/sweeney/community-signage/internal/metrics"
)

// Source fetches a complete content snapshot.
type Source interface {
	Fetch(ctx context.Context) (content.Snapshot, error)
}

// RevisionSource is a Source that can report its content revision without a
// full fetch. A revision of 0 means unknown.
type RevisionSource interface {
	Source
	Revision(ctx context.Context) (uint64, error)
}

// Sink receives fetched snapshots.
type Sink interface {
	Refresh(snap content.Snapshot)
}

// RefreshListener is told the outcome of every refresh attempt.
type RefreshListener func(at time.Time, err error)

// Refresher periodically polls a Source and forwards snapshots to a Sink.
// A failed fetch keeps the previous snapshot in use. When the Source is a
// RevisionSource, a poll whose revision matches the last fetched snapshot
// skips the fetch, unless the day has changed since, as announcements are
// filtered by date.
type Refresher struct {
	src      Source
	sink     Sink
	timeout  time.Duration
	log      zerolog.Logger
	listener RefreshListener
	now      func() time.Time

	mu      sync.Mutex
	c       *cron.Cron
	lastRev uint64
	lastAt  time.Time
}

// NewRefresher creates a refresher that fetches every interval, allowing
// each fetch timeout to complete.
func NewRefresher(src Source, sink Sink, interval, timeout time.Duration, log zerolog.Logger) *Refresher {
	r := &Refresher{
		src:     src,
		sink:    sink,
		timeout: timeout,
		log:     log,
		now:     time.Now,
	}
	r.c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	r.c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		_ = r.RefreshNow(context.Background())
	}))
	return r
}

// OnResult registers a listener for refresh outcomes.
func (r *Refresher) OnResult(fn RefreshListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = fn
}

// Start begins periodic refreshes.
func (r *Refresher) Start() {
	r.c.Start()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.c.Stop().Done()
}

// RefreshNow fetches once and forwards the snapshot.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.unchanged(ctx) {
		metrics.IncRefresh(metrics.RefreshUnchanged)
		r.log.Debug().Msg("content revision unchanged, skipping fetch")
		r.report(nil)
		return nil
	}

	snap, err := r.src.Fetch(ctx)
	r.report(err)
	if err != nil {
		metrics.IncRefresh(metrics.RefreshError)
		r.log.Warn().Err(err).Msg("content refresh failed, keeping previous content")
		return err
	}

	r.mu.Lock()
	r.lastRev, r.lastAt = snap.Revision, r.now()
	r.mu.Unlock()
	r.sink.Refresh(snap)
	return nil
}

// unchanged reports whether the source's revision still matches the last
// fetched snapshot. Any error means a full fetch.
func (r *Refresher) unchanged(ctx context.Context) bool {
	rs, ok := r.src.(RevisionSource)
	if !ok {
		return false
	}
	r.mu.Lock()
	lastRev, lastAt := r.lastRev, r.lastAt
	r.mu.Unlock()
	if lastRev == 0 || !sameDay(lastAt, r.now()) {
		return false
	}

	rev, err := rs.Revision(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("revision check failed, fetching")
		return false
	}
	return rev == lastRev
}

func (r *Refresher) report(err error) {
	r.mu.Lock()
	listener := r.listener
	r.mu.Unlock()
	if listener != nil {
		listener(r.now(), err)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
