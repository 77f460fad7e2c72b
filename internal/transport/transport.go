// Package transport declares the HTTP and WebSocket/TCP collaborators the
// core session and RTT engines depend on, and ships the default
// implementations used outside of tests.
package transport

import "context"

// HTTP is a one-shot JSON POST: given a URL and a body, it returns the
// response body bytes or a transport-level error. Connection pooling,
// retries, and cancellation semantics are the concrete implementation's
// concern, not this interface's.
type HTTP interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
}

// WS is a framed duplex stream: connect, send a frame, receive a frame,
// close. Recv returns a nil frame and a nil error on graceful close.
type WS interface {
	Connect(ctx context.Context, url string, headers map[string]string) error
	Send(frame []byte) error
	Recv() ([]byte, error)
	Close() error
}
