package rtt

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nvidia/brainclouds2s-go/internal/transport"
)

// onTransportConnected sends the CONNECT frame and, once the CONNECT reply
// arrives on the receive loop, the channel is Connected and the heartbeat
// loop starts. The receive loop itself is started immediately so the
// CONNECT reply has somewhere to land.
func (s *Service) onTransportConnected(conn transport.WS, ep Endpoint) {
	s.mu.Lock()
	s.conn = conn
	s.rxDone = make(chan struct{})
	s.hbStop = make(chan struct{})
	s.hbDone = make(chan struct{})
	rxDone := s.rxDone
	s.mu.Unlock()

	go s.receiveLoop(conn, rxDone)

	frame := s.buildConnectFrame(ep.Protocol)
	if err := s.sendFrame(conn, frame); err != nil {
		s.setStatus(Disconnected)
		s.signalFailure("Failed to send CONNECT frame")
		_ = conn.Close()
		return
	}
}

// buildConnectFrame builds the application-level CONNECT payload per the
// event server's wire contract: appId, a fixed literal profileId, the
// current S2S sessionId, the auth block copied verbatim from the handshake
// response, and a system block naming the chosen transport protocol and this
// SDK's platform tag.
func (s *Service) buildConnectFrame(protocol string) []byte {
	auth := s.authSnapshot()
	frame, _ := json.Marshal(map[string]any{
		"operation": wireOpConnect,
		"service":   wireServiceRTT,
		"data": map[string]any{
			"appId":     s.appID,
			"profileId": "s",
			"sessionId": s.requester.SessionID(),
			"auth":      auth,
			"system": map[string]any{
				"protocol": protocol,
				"platform": s.platformTag,
			},
		},
	})
	return frame
}

// sendFrame serializes writes to the transport; gorilla/websocket and a raw
// TCP socket both forbid concurrent writers.
func (s *Service) sendFrame(conn transport.WS, frame []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return conn.Send(frame)
}

// SendRtt lets a caller publish an application frame over an already
// connected channel (e.g. a chat or relay send). It is rejected outright
// outside of Connected.
func (s *Service) SendRtt(service, operation string, data map[string]any) bool {
	s.mu.RLock()
	conn := s.conn
	status := s.status
	s.mu.RUnlock()
	if status != Connected || conn == nil {
		return false
	}

	frame, _ := json.Marshal(map[string]any{
		"service":   service,
		"operation": operation,
		"data":      data,
	})
	return s.sendFrame(conn, frame) == nil
}

func (s *Service) receiveLoop(conn transport.WS, done chan struct{}) {
	defer close(done)
	for {
		frame, err := conn.Recv()
		if err != nil {
			s.onChannelLost(err.Error())
			return
		}
		if frame == nil {
			s.onChannelLost("RTT connection closed by server")
			return
		}
		s.handleFrame(frame)
	}
}

func (s *Service) onChannelLost(reason string) {
	s.mu.Lock()
	wasConnecting := s.status == Connecting
	s.status = Disconnected
	if s.lastDisconnectReason == "" {
		s.lastDisconnectReason = reason
	}
	reasonCode := s.lastDisconnectReasonCode
	loggedReason := s.lastDisconnectReason
	s.mu.Unlock()

	if wasConnecting {
		s.signalFailure(reason)
		return
	}
	slog.Info("rtt channel lost", "reason", loggedReason, "reason_code", reasonCode)
}

type rttFrame struct {
	Service   string          `json:"service"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

// handleFrame dispatches one inbound application frame: the CONNECT reply
// completes the handshake and starts the heartbeat loop; DISCONNECT just
// records the server's reason for the eventual loop-exit log, since the
// server closes the underlying connection itself; HEARTBEAT replies are
// discarded (they only exist to keep the read deadline alive); everything
// else is a subscriber event, gated by the per-service frame limiter so a
// flood on one service cannot starve the others or the caller's callback
// thread.
func (s *Service) handleFrame(raw []byte) {
	var f rttFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		slog.Warn("rtt frame decode failed", "error", err)
		return
	}

	switch {
	case f.Operation == wireOpConnect:
		s.onConnectReply(f.Data)
		return
	case f.Operation == wireOpDisconnect:
		s.onServerDisconnect(f.Data)
		return
	case f.Operation == wireOpHeartbeat:
		return
	}

	if !s.limiter.Allow(f.Service) {
		slog.Warn("rtt frame dropped by rate limiter", "service", f.Service)
		return
	}

	s.subMu.RLock()
	cb, ok := s.subscribers[f.Service]
	s.subMu.RUnlock()
	if !ok {
		return
	}
	s.pump.Enqueue(cb, string(f.Data))
}

func (s *Service) onConnectReply(data json.RawMessage) {
	var body struct {
		ConnectionID     string `json:"cxId"`
		HeartbeatSeconds int    `json:"heartbeatSeconds"`
	}
	_ = json.Unmarshal(data, &body)

	s.mu.Lock()
	s.connectionID = body.ConnectionID
	if body.HeartbeatSeconds > 0 {
		s.heartbeatSeconds = body.HeartbeatSeconds
	}
	hbStop := s.hbStop
	hbDone := s.hbDone
	interval := time.Duration(s.heartbeatSeconds) * time.Second
	s.mu.Unlock()

	s.setStatus(Connected)
	go s.heartbeatLoop(interval, hbStop, hbDone)
	s.signalSuccess()
}

// onServerDisconnect records why the server is about to drop the channel.
// It does not tear anything down itself: the server closes the underlying
// connection, and receiveLoop's next Recv() failure drives onChannelLost,
// which logs the reason recorded here.
func (s *Service) onServerDisconnect(data json.RawMessage) {
	var body struct {
		ReasonCode int    `json:"reason_code"`
		Reason     string `json:"reason"`
	}
	_ = json.Unmarshal(data, &body)

	s.mu.Lock()
	s.lastDisconnectReason = body.Reason
	s.lastDisconnectReasonCode = body.ReasonCode
	s.mu.Unlock()
}

func (s *Service) heartbeatLoop(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	if interval <= 0 {
		interval = defaultHeartbeatSeconds * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame, _ := json.Marshal(map[string]any{
		"service":   wireServiceRTT,
		"operation": wireOpHeartbeat,
	})

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			if err := s.sendFrame(conn, frame); err != nil {
				slog.Warn("rtt heartbeat send failed", "error", err)
				return
			}
		}
	}
}
