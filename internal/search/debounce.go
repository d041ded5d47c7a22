// Package search provides the fixed-window debouncer in front of remote
// search calls.
package search

import (
	"sync"
	"time"
)

// Debouncer coalesces a burst of triggers into one callback invocation, fired
// with the last value once the window elapses after the last trigger. Cancel
// stops a pending fire; this is timer cancellation only, a callback already
// dispatched is not aborted and its result is the consumer's to discard.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	fn     func(value string)
	timer  *time.Timer
}

// NewDebouncer creates a debouncer firing fn after window of quiet
func NewDebouncer(window time.Duration, fn func(value string)) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Trigger restarts the window with a new value.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.fn(value)
	})
}

// Cancel stops any pending fire.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
