package gpio

import (
	"errors"
	"sync"
)

// FakeButton is a test double that returns scripted samples. Each call to
// Pressed consumes the next sample; the last one repeats.
type FakeButton struct {
	mu      sync.Mutex
	samples []bool
	index   int
	reads   int
	err     error
	closed  bool
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{samples: samples}
}

// Press builds a sample script: idle samples released, then held samples
// pressed, then released again.
func Press(idle, held int) []bool {
	out := make([]bool, 0, idle+held+1)
	for i := 0; i < idle; i++ {
		out = append(out, false)
	}
	for i := 0; i < held; i++ {
		out = append(out, true)
	}
	return append(out, false)
}

// Pressed returns the next scripted sample.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.err != nil {
		return false, f.err
	}
	if len(f.samples) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}
	return v, nil
}

// SetError makes subsequent reads fail with err (nil clears it).
func (f *FakeButton) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Reads returns how many times Pressed was called.
func (f *FakeButton) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeButton) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
