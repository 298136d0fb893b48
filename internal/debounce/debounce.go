// Package debounce batches rapid-fire events behind a single delayed
// flush, the same coalescing the teacher's file watcher used to collapse
// a burst of save events into one reindex pass.
package debounce

import (
	"sync"
	"time"
)

// Debouncer accumulates keyed values and delivers them to a Flush
// callback once no new Trigger has arrived for the configured delay.
// Each Trigger for the same key overwrites the previously pending value,
// so only the latest state per key survives to the flush.
type Debouncer[T any] struct {
	mu      sync.Mutex
	pending map[string]T
	delay   time.Duration
	timer   *time.Timer
	onFlush func(map[string]T)
}

// New creates a Debouncer that calls onFlush with the accumulated batch
// once delay has elapsed since the last Trigger. A delay of 0 still
// defers the callback to the next event-loop tick via time.AfterFunc
// rather than calling it synchronously, so callers never observe Trigger
// invoking onFlush inline.
func New[T any](delay time.Duration, onFlush func(map[string]T)) *Debouncer[T] {
	return &Debouncer[T]{
		pending: make(map[string]T),
		delay:   delay,
		onFlush: onFlush,
	}
}

// Trigger records value under key and (re)starts the delay timer.
func (d *Debouncer[T]) Trigger(key string, value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[key] = value
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer[T]) flush() {
	d.mu.Lock()
	batch := d.pending
	d.pending = make(map[string]T)
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	d.onFlush(batch)
}

// Flush delivers any pending batch immediately, bypassing the timer. Used
// on deliberate shutdown paths that want to drain rather than drop
// pending work (the opposite choice from the teacher's watcher, which
// drops pending events on shutdown to avoid a deadlock against Close()).
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	batch := d.pending
	d.pending = make(map[string]T)
	d.mu.Unlock()

	if len(batch) > 0 {
		d.onFlush(batch)
	}
}

// Cancel stops the pending timer and discards any accumulated batch
// without invoking onFlush.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]T)
}
