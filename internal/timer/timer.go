// Package timer provides the single-shot timer the display driver schedules
// content units with. Fires are delivered as sequence numbers so the driver
// can discard fires belonging to a cancelled schedule.
package timer

import (
	"sync"
	"time"
)

// Timer holds at most one pending schedule.
type Timer interface {
	// Schedule arms the timer to deliver seq on C after d. Any pending
	// schedule is replaced.
	Schedule(d time.Duration, seq uint64)
	// Cancel drops the pending schedule, if any.
	Cancel()
	// C delivers the sequence number of each fire.
	C() <-chan uint64
	// Pending reports whether a schedule is armed.
	Pending() bool
}

// Real is a Timer backed by time.AfterFunc.
type Real struct {
	mu      sync.Mutex
	t       *time.Timer
	pending bool
	gen     uint64
	c       chan uint64
}

// NewReal creates a real timer.
func NewReal() *Real {
	return &Real{c: make(chan uint64, 1)}
}

// Schedule implements Timer.
func (r *Real) Schedule(d time.Duration, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	r.gen++
	gen := r.gen
	r.pending = true
	r.t = time.AfterFunc(d, func() { r.fire(gen, seq) })
}

// fire delivers seq if gen is still the current schedule. The check and the
// send happen under one lock so a superseded callback cannot displace a
// newer fire.
func (r *Real) fire(gen, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.pending = false

	// Latest fire wins; an unread older fire is stale anyway.
	select {
	case <-r.c:
	default:
	}
	select {
	case r.c <- seq:
	default:
	}
}

// Cancel implements Timer.
func (r *Real) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Real) stopLocked() {
	if r.t != nil {
		r.t.Stop()
		r.t = nil
	}
	r.gen++
	r.pending = false
}

// C implements Timer.
func (r *Real) C() <-chan uint64 {
	return r.c
}

// Pending implements Timer.
func (r *Real) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}
