// Package debounce collapses bursts of triggers into a single trailing call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delivers the most recent value passed to Trigger once no new
// trigger has arrived for the configured delay. Every trigger restarts the
// delay. Calls to the callback never overlap and are delivered in trigger
// order.
type Debouncer[T any] struct {
	mu         sync.Mutex
	delay      time.Duration
	timer      *time.Timer
	pending    T
	hasPending bool
	stopped    bool
	gen        uint64
	// running counts values taken for delivery whose callback has not
	// returned yet.
	running int

	// runMu serializes callback execution so a flush cannot overtake a
	// timer that already picked up an older value.
	runMu sync.Mutex
	fn    func(T)
}

// New creates a Debouncer invoking fn after delay. A non-positive delay
// makes Trigger call fn synchronously.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
	}
}

// Delay returns the configured debounce window.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Trigger records value as the pending one and (re)starts the delay.
// It is a no-op after Stop.
func (d *Debouncer[T]) Trigger(value T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.pending = value
	d.hasPending = true
	d.gen++

	if d.delay == 0 {
		d.mu.Unlock()
		d.Flush()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
	d.mu.Unlock()
}

// Flush delivers the pending value immediately. It reports whether a value
// was pending.
func (d *Debouncer[T]) Flush() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	value, ok := d.take(0, false)
	if !ok {
		return false
	}
	defer d.done()
	d.fn(value)
	return true
}

// Supersede replaces a value that is still pending, or follows one whose
// callback is running, with value. The replacement is delivered like a
// Trigger. When nothing is pending or running it does nothing and reports
// false.
func (d *Debouncer[T]) Supersede(value T) bool {
	d.mu.Lock()
	if d.stopped || (!d.hasPending && d.running == 0) {
		d.mu.Unlock()
		return false
	}
	d.mu.Unlock()
	d.Trigger(value)
	return true
}

// Pending reports whether a value is waiting to be delivered.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// Stop cancels any pending delivery and ignores future triggers. A callback
// already running is not interrupted.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.pending = zero
	d.hasPending = false
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	value, ok := d.take(gen, true)
	if !ok {
		return
	}
	defer d.done()
	d.fn(value)
}

// take pops the pending value. When checkGen is set, a timer belonging to
// an older trigger gets nothing.
func (d *Debouncer[T]) take(gen uint64, checkGen bool) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if d.stopped || !d.hasPending {
		return zero, false
	}
	if checkGen && gen != d.gen {
		return zero, false
	}

	value := d.pending
	d.pending = zero
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.running++
	return value, true
}

func (d *Debouncer[T]) done() {
	d.mu.Lock()
	d.running--
	d.mu.Unlock()
}
