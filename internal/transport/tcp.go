package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// TCP is the default WS collaborator for the "tcp" protocol: a plain TCP
// socket carrying newline-delimited JSON frames. The RTT server accepts
// either transport for the same application-level CONNECT/HEARTBEAT
// exchange; TCP is offered for environments where a WebSocket upgrade isn't
// available.
type TCP struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

// NewTCP returns a TCP transport ready for Connect.
func NewTCP() *TCP {
	return &TCP{}
}

// Connect implements WS. headers has no meaning for a raw TCP socket; any
// auth is carried in the first application-level CONNECT frame instead.
func (t *TCP) Connect(ctx context.Context, addr string, _ map[string]string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing RTT endpoint: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.closed = false
	t.mu.Unlock()
	return nil
}

// Send implements WS.
func (t *TCP) Send(frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("RTT transport not connected")
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := conn.Write(append(frame, '\n')); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Recv implements WS. A graceful close (EOF) returns (nil, nil).
func (t *TCP) Recv() ([]byte, error) {
	t.mu.Lock()
	reader := t.reader
	t.mu.Unlock()
	if reader == nil {
		return nil, fmt.Errorf("RTT transport not connected")
	}

	line, err := reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, nil
		}
		return nil, err
	}
	return line[:len(line)-1], nil
}

// Close implements WS and is idempotent.
func (t *TCP) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
