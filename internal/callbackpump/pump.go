// Package callbackpump provides a thread-safe mailbox for deferring callback
// delivery onto a single caller-controlled thread.
package callbackpump

import (
	"sync"
	"time"
)

// Callback receives a JSON payload string.
type Callback func(payload string)

type item struct {
	cb      Callback
	payload string
}

// Pump is a bounded mailbox of (callback, payload) pairs. Producers enqueue
// from any goroutine; only the caller's goroutine ever invokes callbacks, by
// calling Drain.
type Pump struct {
	mu        sync.Mutex
	items     []item
	notify    chan struct{}
	closed    bool
	onDeliver func()
}

// New returns an empty Pump.
func New() *Pump {
	return &Pump{notify: make(chan struct{}, 1)}
}

// SetOnDeliver installs a hook invoked once per callback dispatched from
// Drain, after the callback returns. Used to feed the CallbacksDelivered
// metric without making this package depend on the metrics package.
func (p *Pump) SetOnDeliver(fn func()) {
	p.mu.Lock()
	p.onDeliver = fn
	p.mu.Unlock()
}

// Enqueue appends a (callback, payload) pair and wakes any waiter blocked in
// Drain. A nil callback is accepted and silently dropped at dispatch time.
func (p *Pump) Enqueue(cb Callback, payload string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.items = append(p.items, item{cb: cb, payload: payload})
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Drain blocks for up to timeout waiting for at least one queued item (or
// until Enqueue wakes it), then dispatches every currently queued callback on
// the calling goroutine. Callbacks are never invoked while the pump's lock is
// held. Drain returns immediately, without waiting, if items are already
// queued.
func (p *Pump) Drain(timeout time.Duration) {
	p.mu.Lock()
	empty := len(p.items) == 0 && !p.closed
	p.mu.Unlock()

	if empty {
		select {
		case <-p.notify:
		case <-time.After(timeout):
		}
	}

	p.mu.Lock()
	pending := p.items
	p.items = nil
	onDeliver := p.onDeliver
	p.mu.Unlock()

	for _, it := range pending {
		if it.cb == nil {
			continue
		}
		it.cb(it.payload)
		if onDeliver != nil {
			onDeliver()
		}
	}
}

// Len reports the number of callbacks currently queued but not yet dispatched.
func (p *Pump) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Close marks the pump closed and wakes any waiter in Drain without
// dispatching the remaining items; used when a Context is torn down so a
// Destroy does not invoke a callback after the owner gave up the reference.
func (p *Pump) Close() {
	p.mu.Lock()
	p.closed = true
	p.items = nil
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}
