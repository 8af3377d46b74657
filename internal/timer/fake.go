package timer

import (
	"sync"
	"time"
)

// Fake is a Timer driven by a virtual clock for tests and dry runs.
// Nothing fires until Fire or Advance is called.
type Fake struct {
	mu sync.Mutex

	now      time.Duration
	pending  bool
	deadline time.Duration
	seq      uint64

	schedules int
	cancels   int
	overlaps  int

	c chan uint64
}

// NewFake creates a fake timer at virtual time zero.
func NewFake() *Fake {
	return &Fake{c: make(chan uint64, 1)}
}

// Schedule implements Timer. Scheduling while a schedule is already
// pending is counted as an overlap.
func (f *Fake) Schedule(d time.Duration, seq uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		f.overlaps++
	}
	f.pending = true
	f.deadline = f.now + d
	f.seq = seq
	f.schedules++
}

// Cancel implements Timer.
func (f *Fake) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending {
		f.cancels++
	}
	f.pending = false
}

// C implements Timer.
func (f *Fake) C() <-chan uint64 {
	return f.c
}

// Pending implements Timer.
func (f *Fake) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// Next returns the delay until the pending schedule fires.
func (f *Fake) Next() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		return 0, false
	}
	return f.deadline - f.now, true
}

// Fire jumps the clock to the pending deadline and returns the fired
// sequence number without sending it on C.
func (f *Fake) Fire() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		return 0, false
	}
	f.now = f.deadline
	f.pending = false
	return f.seq, true
}

// Advance moves the clock forward by d. If the pending schedule falls due
// it is delivered on C and Advance reports true.
func (f *Fake) Advance(d time.Duration) bool {
	f.mu.Lock()
	f.now += d
	due := f.pending && f.now >= f.deadline
	seq := f.seq
	if due {
		f.pending = false
	}
	f.mu.Unlock()

	if !due {
		return false
	}
	select {
	case <-f.c:
	default:
	}
	f.c <- seq
	return true
}

// Elapsed returns the virtual time.
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Schedules returns how many schedules were made.
func (f *Fake) Schedules() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schedules
}

// Cancels returns how many pending schedules were cancelled.
func (f *Fake) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// Overlaps returns how many times Schedule was called with a schedule
// already pending.
func (f *Fake) Overlaps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlaps
}
