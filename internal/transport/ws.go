package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
	pongWait         = 60 * time.Second
	pingInterval     = 30 * time.Second
)

// WebSocket is the default WS collaborator for the "ws"/"wss" protocol,
// backed by gorilla/websocket. It mirrors the dial/ping/deadline discipline
// used for the control-plane signaling socket: a bounded handshake timeout,
// a read deadline renewed on every frame (including pongs), and a background
// ping sender so a half-open connection is detected instead of hanging.
type WebSocket struct {
	dialer websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	stop   chan struct{}
	closed bool
}

// NewWebSocket returns a WebSocket transport ready for Connect.
func NewWebSocket() *WebSocket {
	return &WebSocket{dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout}}
}

// Connect implements WS. headers is mirrored into the handshake request in
// addition to whatever auth was already appended as URL query parameters by
// the caller — duplicating the auth map in both places matches the RTT
// server's acceptance rules.
func (w *WebSocket) Connect(ctx context.Context, rawURL string, headers map[string]string) error {
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("parsing RTT endpoint url: %w", err)
	}

	hdr := http.Header{}
	for k, v := range headers {
		hdr.Set(k, v)
	}

	conn, _, err := w.dialer.DialContext(ctx, rawURL, hdr)
	if err != nil {
		return fmt.Errorf("dialing RTT endpoint: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		conn.Close()
		return fmt.Errorf("setting initial read deadline: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.stop = make(chan struct{})
	w.closed = false
	stop := w.stop
	w.mu.Unlock()

	go w.sendPings(conn, stop)
	return nil
}

// Send implements WS.
func (w *WebSocket) Send(frame []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("RTT transport not connected")
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Recv implements WS. A normal/expected close returns (nil, nil), signalling
// graceful close to the receive loop.
func (w *WebSocket) Recv() ([]byte, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("RTT transport not connected")
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// Close implements WS and is idempotent.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn := w.conn
	stop := w.stop
	w.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn == nil {
		return nil
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "rtt disabled"))
	return conn.Close()
}

func (w *WebSocket) sendPings(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
