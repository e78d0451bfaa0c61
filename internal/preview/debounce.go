// Package preview coalesces preview requests and renders single items.
package preview

import (
	"sync"
	"time"
)

// DefaultDelay is how long a request waits for newer ones before firing.
const DefaultDelay = 100 * time.Millisecond

// Debouncer collapses bursts of requests into one delivery of the newest
// request's token, delay after the burst ends.
type Debouncer struct {
	delay time.Duration
	ch    chan uint64

	mu      sync.Mutex
	pending uint64
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, ch: make(chan uint64, 1)}
}

// Request invalidates any pending token and schedules a new one.
func (d *Debouncer) Request() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return d.pending
	}
	d.pending++
	token := d.pending
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(token) })
	return token
}

func (d *Debouncer) fire(token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || token != d.pending {
		return
	}
	// Replace an undelivered older token with this one.
	select {
	case <-d.ch:
	default:
	}
	d.ch <- token
}

// C delivers tokens that survived their delay.
func (d *Debouncer) C() <-chan uint64 {
	return d.ch
}

// Current reports whether token is still the newest request.
func (d *Debouncer) Current(token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return token == d.pending
}

// Stop cancels the pending request. Later calls to Request do nothing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
