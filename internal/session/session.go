// Package session implements the S2S session engine: lazy/explicit
// authentication, serialized in-flight request dispatch with packet
// sequencing, heartbeat maintenance, session-expiry recovery, and deferred
// callback delivery through a shared callback pump.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvidia/brainclouds2s-go/internal/callbackpump"
	"github.com/nvidia/brainclouds2s-go/internal/metrics"
	"github.com/nvidia/brainclouds2s-go/internal/reqqueue"
	"github.com/nvidia/brainclouds2s-go/internal/transport"
	"github.com/nvidia/brainclouds2s-go/internal/wire"
)

// State is the session's tagged-variant lifecycle. Workers read the current
// tag to decide behavior; transitions are authoritative.
type State int

const (
	Disconnected State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Authenticating:
		return "Authenticating"
	case Authenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

const defaultHeartbeatInterval = 30 * time.Minute

// wire literals the session engine owns itself (not part of the exported
// service/operation constants, which are for caller-built payloads).
const (
	wireServiceAuthenticate = "authenticationV2"
	wireOpAuthenticate      = "AUTHENTICATE"
	wireServiceHeartbeat    = "heartbeat"
	wireOpHeartbeat         = "HEARTBEAT"
)

// Session is the S2S session engine: lazy or explicit authentication,
// serialized packet dispatch, heartbeats, and session-expiry recovery.
type Session struct {
	appID        string
	serverName   string
	serverSecret string
	url          string
	autoAuth     bool

	transport transport.HTTP
	pump      *callbackpump.Pump
	metrics   *metrics.Metrics

	mu                sync.RWMutex
	state             State
	sessionID         string
	packetID          int
	heartbeatInterval time.Duration
	heartbeatDeadline time.Time

	queue *reqqueue.Queue
}

// New constructs a Session. httpTransport and pump are required; m may be nil.
func New(appID, serverName, serverSecret, url string, autoAuth bool, httpTransport transport.HTTP, pump *callbackpump.Pump, m *metrics.Metrics) *Session {
	s := &Session{
		appID:             appID,
		serverName:        serverName,
		serverSecret:      serverSecret,
		url:               url,
		autoAuth:          autoAuth,
		transport:         httpTransport,
		pump:              pump,
		metrics:           m,
		heartbeatInterval: defaultHeartbeatInterval,
	}
	s.queue = reqqueue.New(s.dispatch)
	return s
}

// State reports the current lifecycle tag.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SessionID reports the current opaque session id, empty unless Authenticated.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Authenticate is valid only when State()==Disconnected; otherwise it fails
// locally without contacting the dispatcher.
func (s *Session) Authenticate(cb func(string)) {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		s.pump.Enqueue(cb, wire.SyntheticError(400, "Already authenticated or authenticating"))
		return
	}
	s.state = Authenticating
	s.mu.Unlock()

	req := &reqqueue.Request{ID: uuid.New(), Kind: reqqueue.KindAuth, Callback: cb}
	s.queue.Submit(req)
}

// AuthenticateSync blocks, driving RunCallbacks, until the authenticate
// callback fires or 60 seconds elapse.
func (s *Session) AuthenticateSync() string {
	result := make(chan string, 1)
	s.Authenticate(func(payload string) { result <- payload })
	return s.pollSync(result, "Authenticate timeout")
}

// Request appends userJSON to the request queue, triggering auto-auth first
// if the session is Disconnected and autoAuth is enabled. Malformed JSON
// fails synchronously (through the pump, never the dispatcher) and never
// touches the queue.
func (s *Session) Request(userJSON string, cb func(string)) {
	if !json.Valid([]byte(userJSON)) {
		s.pump.Enqueue(cb, wire.SyntheticError(900, "Failed to parse user json"))
		return
	}

	s.maybeTriggerAutoAuth()

	req := &reqqueue.Request{ID: uuid.New(), Kind: reqqueue.KindUser, Body: userJSON, Callback: cb}
	s.queue.Submit(req)
}

// RequestSync blocks with the same 60-second budget as AuthenticateSync.
func (s *Session) RequestSync(userJSON string) string {
	result := make(chan string, 1)
	s.Request(userJSON, func(payload string) { result <- payload })
	return s.pollSync(result, "Request timeout")
}

func (s *Session) pollSync(result chan string, timeoutMessage string) string {
	deadline := time.Now().Add(60 * time.Second)
	for {
		select {
		case payload := <-result:
			return payload
		default:
		}
		if time.Now().After(deadline) {
			return wire.SyntheticError(900, timeoutMessage)
		}
		s.RunCallbacks(10)
	}
}

// maybeTriggerAutoAuth starts authentication exactly once per Disconnected
// epoch; callers racing to be "the one" that triggers it are serialized by
// the state mutex, so only the first sees state==Disconnected.
func (s *Session) maybeTriggerAutoAuth() {
	if !s.autoAuth {
		return
	}
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return
	}
	s.state = Authenticating
	s.mu.Unlock()

	req := &reqqueue.Request{
		ID:            uuid.New(),
		Kind:          reqqueue.KindAuth,
		AutoTriggered: true,
		Callback:      func(string) {}, // never invoked directly; see onAuthResponse fan-out
	}
	s.queue.Submit(req)
}

// RunCallbacks drains the shared pump on the caller's thread, sending a
// heartbeat first if one is due.
func (s *Session) RunCallbacks(timeoutMs int) {
	s.mu.RLock()
	state := s.state
	deadline := s.heartbeatDeadline
	interval := s.heartbeatInterval
	s.mu.RUnlock()

	budget := time.Duration(timeoutMs) * time.Millisecond

	if state == Authenticated {
		now := time.Now()
		if !now.Before(deadline) {
			s.enqueueHeartbeat()
			s.mu.Lock()
			s.heartbeatDeadline = time.Now().Add(s.heartbeatInterval)
			s.mu.Unlock()
		} else if untilDeadline := deadline.Sub(now); untilDeadline < budget {
			budget = untilDeadline
		}
	}
	if budget < 0 {
		budget = 0
	}

	s.pump.Drain(budget)
}

func (s *Session) enqueueHeartbeat() {
	req := &reqqueue.Request{ID: uuid.New(), Kind: reqqueue.KindHeartbeat}
	s.queue.Submit(req)
}

// disconnect transitions to Disconnected, resets the member packetId and
// sessionId fields (not shadowed locals), and drops every queued request
// without invoking its callback.
func (s *Session) disconnect() {
	s.mu.Lock()
	s.state = Disconnected
	s.packetID = 0
	s.sessionID = ""
	s.mu.Unlock()

	s.queue.Drain()
}

// Disconnect is the package-external spelling used by the owning Context.
func (s *Session) Disconnect() {
	s.disconnect()
}

// dispatch builds the outbound envelope for req and sends it over HTTP on a
// dedicated, one-shot goroutine — the single HTTP-dispatch worker the
// concurrency model allows per outstanding request.
func (s *Session) dispatch(req *reqqueue.Request) {
	envelope := s.buildEnvelope(req)
	if s.metrics != nil {
		s.metrics.PacketsSent.Inc()
	}
	go s.send(req, envelope)
}

func (s *Session) buildEnvelope(req *reqqueue.Request) []byte {
	if req.Kind == reqqueue.KindAuth {
		body, _ := json.Marshal(map[string]any{
			"packetId": 0,
			"messages": []any{map[string]any{
				"service":   wireServiceAuthenticate,
				"operation": wireOpAuthenticate,
				"data": map[string]any{
					"appId":        s.appID,
					"serverName":   s.serverName,
					"serverSecret": s.serverSecret,
				},
			}},
		})
		return body
	}

	var msg json.RawMessage
	if req.Kind == reqqueue.KindHeartbeat {
		msg = json.RawMessage(fmt.Sprintf(`{"service":%q,"operation":%q}`, wireServiceHeartbeat, wireOpHeartbeat))
	} else {
		msg = json.RawMessage(req.Body)
	}

	s.mu.Lock()
	packetID := s.packetID
	s.packetID++
	sessionID := s.sessionID
	s.mu.Unlock()

	body, _ := json.Marshal(map[string]any{
		"packetId":  packetID,
		"sessionId": sessionID,
		"messages":  []json.RawMessage{msg},
	})
	return body
}

// send issues the HTTP round-trip for req and hands the result to onResult.
// onResult reports whether it already took over the queue's head (a
// session-expiry retry, or an auth-failure fan-out both drain the queue
// themselves); only when it did not does send() perform the ordinary
// pop-current/dispatch-next transition via queue.Complete.
func (s *Session) send(req *reqqueue.Request, envelope []byte) {
	ctx := context.Background()
	respBytes, err := s.transport.Post(ctx, s.url, envelope)

	var queueHandled bool
	if err != nil {
		queueHandled = s.onResult(req, wire.MessageResponse{Status: 900}, wire.SyntheticError(900, wire.TransportErrorMessage(err)))
	} else {
		var envlp wire.ResponseEnvelope
		if jsonErr := json.Unmarshal(respBytes, &envlp); jsonErr != nil || len(envlp.MessageResponses) == 0 {
			queueHandled = s.onResult(req, wire.MessageResponse{Status: 900}, wire.SyntheticError(900, "Malformed json"))
		} else {
			msgResp := envlp.MessageResponses[0]
			payload, _ := json.Marshal(msgResp)
			queueHandled = s.onResult(req, msgResp, string(payload))
		}
	}

	if !queueHandled {
		s.queue.Complete()
	}
}

// onResult dispatches a response by request kind and reports whether it
// already took over the queue transition itself (true), or whether the
// caller (send) still needs to perform the ordinary queue.Complete (false).
func (s *Session) onResult(req *reqqueue.Request, msg wire.MessageResponse, payload string) bool {
	switch req.Kind {
	case reqqueue.KindAuth:
		return s.onAuthResult(req, msg, payload)
	case reqqueue.KindHeartbeat:
		if msg.Status != 200 {
			slog.Warn("s2s heartbeat failed, disconnecting", "status", msg.Status)
			s.disconnect()
			return true
		}
		return false
	default:
		return s.onUserResult(req, msg, payload)
	}
}

func (s *Session) onAuthResult(req *reqqueue.Request, msg wire.MessageResponse, payload string) bool {
	if msg.Status == 200 {
		var data struct {
			SessionID        string `json:"sessionId"`
			HeartbeatSeconds int    `json:"heartbeatSeconds"`
		}
		_ = json.Unmarshal(msg.Data, &data)

		s.mu.Lock()
		s.sessionID = data.SessionID
		s.packetID = 1
		if data.HeartbeatSeconds > 0 {
			s.heartbeatInterval = time.Duration(data.HeartbeatSeconds) * time.Second
		}
		s.heartbeatDeadline = time.Now().Add(s.heartbeatInterval)
		s.state = Authenticated
		s.mu.Unlock()

		if !req.AutoTriggered {
			s.pump.Enqueue(req.Callback, payload)
		}
		return false
	}

	// Authentication failed: fan out to every request that queued up
	// behind it before tearing the session back down. req (the auth
	// request) is still the queue's head at this point — send() hasn't
	// invoked queue.Complete yet — so Drain returns it as element 0 along
	// with everything queued behind it; the caller must not also run the
	// ordinary Complete transition afterward.
	s.mu.Lock()
	s.state = Disconnected
	s.packetID = 0
	s.sessionID = ""
	s.mu.Unlock()

	snapshot := s.queue.Drain()
	for i, queued := range snapshot {
		if i == 0 {
			if !req.AutoTriggered {
				s.pump.Enqueue(queued.Callback, payload)
			}
			continue
		}
		s.pump.Enqueue(queued.Callback, payload)
	}
	return true
}

func (s *Session) onUserResult(req *reqqueue.Request, msg wire.MessageResponse, payload string) bool {
	if msg.Status != 200 && msg.ReasonCode == wire.SessionExpiredReasonCode && !req.Retried {
		s.disconnect()

		if !s.autoAuth {
			// Without autoAuth there is nothing to re-authenticate with, so
			// the expiry error surfaces to the caller verbatim instead of
			// being retried.
			s.pump.Enqueue(req.Callback, payload)
			return true
		}

		slog.Info("s2s session expired, re-authenticating and retrying request once")
		retry := &reqqueue.Request{ID: req.ID, Kind: reqqueue.KindUser, Body: req.Body, Callback: req.Callback, Retried: true}
		s.maybeTriggerAutoAuth()
		s.queue.Submit(retry)
		return true
	}

	s.pump.Enqueue(req.Callback, payload)
	return false
}
