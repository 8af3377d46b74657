// Package gpio reads the optional "next" push button on the display.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Button reads a momentary push button.
type Button interface {
	// Pressed reports whether the button is held down right now.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin the button is wired to. The button shorts the
// pin to ground; the line is pulled up, so raw 0 means pressed.
const DefaultPin = 17

// Debouncer turns raw button samples into presses. A level must hold for
// the debounce duration before it counts, and a button already held when
// sampling starts is ignored until it is released.
type Debouncer struct {
	hold time.Duration

	baselined    bool
	stable       bool
	hasPending   bool
	pending      bool
	pendingSince time.Time
}

// NewDebouncer creates a debouncer requiring hold of stable input.
func NewDebouncer(hold time.Duration) *Debouncer {
	return &Debouncer{hold: hold}
}

// Update feeds one sample taken at now. It returns true exactly once per
// debounced press, at the moment the press becomes stable.
func (d *Debouncer) Update(pressed bool, now time.Time) bool {
	if !d.baselined {
		if !d.hasPending || d.pending != pressed {
			d.setPending(pressed, now)
			return false
		}
		if now.Sub(d.pendingSince) >= d.hold {
			d.stable = pressed
			d.baselined = true
			d.hasPending = false
		}
		return false
	}

	if pressed == d.stable {
		d.hasPending = false
		return false
	}
	if !d.hasPending || d.pending != pressed {
		d.setPending(pressed, now)
		return false
	}
	if now.Sub(d.pendingSince) < d.hold {
		return false
	}

	d.stable = pressed
	d.hasPending = false
	return pressed
}

func (d *Debouncer) setPending(pressed bool, now time.Time) {
	d.pending = pressed
	d.pendingSince = now
	d.hasPending = true
}

// Watch polls the button every poll interval until ctx is cancelled,
// calling onPress for each debounced press. Read errors are logged and
// the sample is skipped.
func Watch(ctx context.Context, b Button, poll, debounce time.Duration, log zerolog.Logger, onPress func()) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	d := NewDebouncer(debounce)
	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			pressed, err := b.Pressed()
			if err != nil {
				if !failing {
					log.Warn().Err(err).Msg("button read failed")
					failing = true
				}
				continue
			}
			if failing {
				log.Info().Msg("button readable again")
				failing = false
			}
			if d.Update(pressed, now) {
				log.Debug().Msg("button pressed")
				onPress()
			}
		}
	}
}
