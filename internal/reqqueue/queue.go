// Package reqqueue implements the single-in-flight request queue that the S2S
// session dispatches through.
package reqqueue

import (
	"sync"

	"github.com/google/uuid"
)

// Kind distinguishes the three shapes of packet the session engine queues.
// Only the session package interprets Kind when building the outbound
// envelope and when handling the response; the queue itself treats every
// Request identically.
type Kind int

const (
	// KindUser wraps a caller-supplied JSON body.
	KindUser Kind = iota
	// KindAuth is the AUTHENTICATE packet; it always carries packetId 0 and
	// no sessionId, regardless of the queue's position.
	KindAuth
	// KindHeartbeat is the internal HEARTBEAT packet; its response has no
	// caller-visible callback.
	KindHeartbeat
)

// Request is a queued dispatcher request: the caller's JSON body (for
// KindUser), the result callback, and a correlation id used only for log
// lines (never sent on the wire, never consulted for packetId).
type Request struct {
	ID       uuid.UUID
	Kind     Kind
	Body     string
	Callback func(string)

	// AutoTriggered marks a KindAuth request that was started implicitly by
	// autoAuth rather than by an explicit Authenticate call; its Callback is
	// an internal fan-out handler, never invoked directly as a user result.
	AutoTriggered bool
	// Retried marks a KindUser request that has already been resubmitted
	// once after a session-expiry response, so expiry recovery only ever
	// retries a given request a single time.
	Retried bool
}

// Queue is an ordered FIFO of pending Requests with a single in-flight slot.
// Submit and Complete are serialized under one mutex, which is what makes the
// 0->1 dispatch-on-submit and pop-then-dispatch-next transitions race free:
// the head of the queue is read and removed under the same lock acquisition
// that decides whether to dispatch, so a concurrent Submit can never observe
// (and redundantly dispatch) a request another goroutine is already sending.
type Queue struct {
	mu       sync.Mutex
	items    []*Request
	dispatch func(*Request)
}

// New returns an empty Queue. dispatch is invoked (outside the queue's lock)
// whenever a Request becomes the new head and should be sent.
func New(dispatch func(*Request)) *Queue {
	return &Queue{dispatch: dispatch}
}

// Submit appends req to the tail. If the queue was empty, req becomes the
// head and is dispatched immediately.
func (q *Queue) Submit(req *Request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	becameHead := len(q.items) == 1
	q.mu.Unlock()

	if becameHead {
		q.dispatch(req)
	}
}

// Complete pops the current head (the caller must already have enqueued its
// callback onto the CallbackPump) and dispatches the new head, if any, before
// returning.
func (q *Queue) Complete() {
	q.mu.Lock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
	var next *Request
	if len(q.items) > 0 {
		next = q.items[0]
	}
	q.mu.Unlock()

	if next != nil {
		q.dispatch(next)
	}
}

// Drain removes and returns every queued request, in order, leaving the queue
// empty. Used for the auth-failure fan-out and for disconnect().
func (q *Queue) Drain() []*Request {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Len reports the number of requests currently queued, including the head.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
