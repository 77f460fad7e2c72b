// Package rtt implements the RTT channel engine: the handshake that asks the
// S2S dispatcher for an event-server endpoint, the long-lived WebSocket/TCP
// connection to that endpoint, the application-level CONNECT/HEARTBEAT
// exchange, per-service subscriber fan-out, and clean shutdown.
package rtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nvidia/brainclouds2s-go/internal/callbackpump"
	"github.com/nvidia/brainclouds2s-go/internal/metrics"
	"github.com/nvidia/brainclouds2s-go/internal/transport"
)

// wire literals owned by the RTT engine itself.
const (
	wireServiceRTTRegistration    = "rttRegistration"
	wireOpRequestSystemConnection = "REQUEST_SYSTEM_CONNECTION"
	wireServiceRTT                = "rtt"
	wireOpConnect                 = "CONNECT"
	wireOpDisconnect              = "DISCONNECT"
	wireOpHeartbeat               = "HEARTBEAT"
	defaultHeartbeatSeconds       = 30
)

// ConnectionStatus is the RTT channel's tagged-variant lifecycle.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connecting
	Connected
	Disconnecting
)

func (s ConnectionStatus) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Requester is the S2S session surface RttHandshake needs: the ability to
// issue a request and to read the current sessionId for the CONNECT frame.
// The session back-reference is weak in spirit — RTT never extends the
// session's lifetime, it only calls into it.
type Requester interface {
	Request(userJSON string, cb func(string))
	SessionID() string
}

// WSDialer builds the transport collaborator for a given RTT protocol
// ("ws" or "tcp"); the default wires gorilla/websocket for "ws" and a raw
// TCP socket for "tcp".
type WSDialer func(protocol string) transport.WS

// Endpoint is one entry from the handshake's endpoint list.
type Endpoint struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	SSL      bool   `json:"ssl"`
}

// Service is the RttHandshake + RttChannel + Subscribers component, exposed
// to callers via Context.GetRttService().
type Service struct {
	appID       string
	platformTag string
	requester   Requester
	pump        *callbackpump.Pump
	dial        WSDialer
	metrics     *metrics.Metrics
	limiter     *FrameLimiter

	mu                       sync.RWMutex
	status                   ConnectionStatus
	connectionID             string
	heartbeatSeconds         int
	auth                     map[string]string
	connectCb                callbackpump.Callback
	conn                     transport.WS
	hbStop                   chan struct{}
	rxDone                   chan struct{}
	hbDone                   chan struct{}
	lastDisconnectReason     string
	lastDisconnectReasonCode int

	sendMu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string]func(string)
}

// New constructs a Service. platformTag is the short system.platform value
// sent in the CONNECT frame (e.g. "go").
func New(appID, platformTag string, requester Requester, pump *callbackpump.Pump, dial WSDialer, m *metrics.Metrics) *Service {
	return &Service{
		appID:            appID,
		platformTag:      platformTag,
		requester:        requester,
		pump:             pump,
		dial:             dial,
		metrics:          m,
		limiter:          NewFrameLimiter(),
		heartbeatSeconds: defaultHeartbeatSeconds,
		subscribers:      make(map[string]func(string)),
	}
}

// GetRttEnabled reports whether the channel is fully connected.
func (s *Service) GetRttEnabled() bool {
	return s.GetConnectionStatus() == Connected
}

// GetConnectionStatus reports the current lifecycle tag.
func (s *Service) GetConnectionStatus() ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// GetRttConnectionId reports the server-assigned connection id, empty until
// the CONNECT handshake completes.
func (s *Service) GetRttConnectionId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionID
}

func wrapConnectCallback(cb func(err error)) callbackpump.Callback {
	if cb == nil {
		return func(string) {}
	}
	return func(payload string) {
		if payload == "" {
			cb(nil)
			return
		}
		cb(fmt.Errorf("%s", payload))
	}
}

func (s *Service) signalSuccess() {
	s.mu.RLock()
	cb := s.connectCb
	s.mu.RUnlock()
	if cb != nil {
		s.pump.Enqueue(cb, "")
	}
}

func (s *Service) signalFailure(message string) {
	s.mu.RLock()
	cb := s.connectCb
	s.mu.RUnlock()
	if cb != nil {
		s.pump.Enqueue(cb, message)
	}
}

func (s *Service) setStatus(status ConnectionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if s.metrics != nil {
		if status == Connected {
			s.metrics.RttConnected.Set(1)
		} else {
			s.metrics.RttConnected.Set(0)
		}
	}
}

// DisableRtt tears the channel down: closes the transport (which unblocks
// the receive loop and wakes the heartbeat loop), joins both, and is
// idempotent — a second call observes status already Disconnected and
// returns immediately.
func (s *Service) DisableRtt() {
	s.mu.Lock()
	if s.status == Disconnected {
		s.mu.Unlock()
		return
	}
	s.status = Disconnecting
	conn := s.conn
	hbStop := s.hbStop
	rxDone := s.rxDone
	hbDone := s.hbDone
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if hbStop != nil {
		close(hbStop)
	}
	if rxDone != nil {
		<-rxDone
	}
	if hbDone != nil {
		<-hbDone
	}

	s.mu.Lock()
	s.status = Disconnected
	s.conn = nil
	s.connectionID = ""
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RttConnected.Set(0)
	}
	slog.Info("rtt channel disabled")
}
