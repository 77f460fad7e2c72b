package rtt_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nvidia/brainclouds2s-go/internal/callbackpump"
	"github.com/nvidia/brainclouds2s-go/internal/fakes"
	"github.com/nvidia/brainclouds2s-go/internal/rtt"
	"github.com/nvidia/brainclouds2s-go/internal/transport"
)

// stubRequester answers the handshake REQUEST_SYSTEM_CONNECTION with a
// canned endpoint list and reports a fixed sessionId.
type stubRequester struct {
	sessionID         string
	handshakeResponse string
}

func (r *stubRequester) Request(_ string, cb func(string)) {
	cb(r.handshakeResponse)
}

func (r *stubRequester) SessionID() string { return r.sessionID }

func handshakeOK() string {
	body, _ := json.Marshal(map[string]any{
		"status": 200,
		"data": map[string]any{
			"endpoints": []map[string]any{
				{"host": "events.example", "port": 443, "protocol": "ws", "ssl": true},
				{"host": "events.example", "port": 8001, "protocol": "tcp", "ssl": false},
			},
			"auth": map[string]string{"token": "rtt-token-1"},
		},
	})
	return string(body)
}

func connectFrame(connectionID string) []byte {
	frame, _ := json.Marshal(map[string]any{
		"operation": "CONNECT",
		"service":   "rtt",
		"data": map[string]any{
			"cxId":             connectionID,
			"heartbeatSeconds": 30,
		},
	})
	return frame
}

func chatFrame(channelID string) []byte {
	frame, _ := json.Marshal(map[string]any{
		"operation": "EVENT",
		"service":   "chat",
		"data": map[string]any{
			"channelId": channelID,
			"text":      "hi",
		},
	})
	return frame
}

func TestEnableRttHappyPathAndSubscriberFanOut(t *testing.T) {
	requester := &stubRequester{sessionID: "sess-rtt", handshakeResponse: handshakeOK()}
	pump := callbackpump.New()

	ws := fakes.NewWS()
	dial := func(protocol string) transport.WS {
		return ws
	}

	svc := rtt.New("app1", "go", requester, pump, dial, nil)

	connectResult := make(chan error, 1)
	svc.EnableRtt(func(err error) { connectResult <- err }, true)

	// The handshake dialed our fake transport; the server now replies with
	// the CONNECT ack, which flips the channel to Connected.
	ws.PushFrame(connectFrame("cx-1"))

	deadline := time.Now().Add(2 * time.Second)
	for svc.GetConnectionStatus() != rtt.Connected && time.Now().Before(deadline) {
		pump.Drain(10 * time.Millisecond)
	}
	pump.Drain(10 * time.Millisecond)

	select {
	case err := <-connectResult:
		if err != nil {
			t.Fatalf("enableRtt callback error: %v", err)
		}
	default:
		t.Fatalf("connect callback never fired")
	}

	if !svc.GetRttEnabled() {
		t.Fatalf("GetRttEnabled() = false, want true")
	}
	if svc.GetRttConnectionId() == "" {
		t.Fatalf("GetRttConnectionId() is empty")
	}

	chatEvents := make(chan string, 1)
	svc.RegisterRttCallback("chat", func(payload string) { chatEvents <- payload })

	ws.PushFrame(chatFrame("20001:sy:test"))

	deadline = time.Now().Add(2 * time.Second)
	for len(chatEvents) == 0 && time.Now().Before(deadline) {
		pump.Drain(10 * time.Millisecond)
	}

	select {
	case payload := <-chatEvents:
		var svcCheck struct {
			ChannelID string `json:"channelId"`
		}
		if err := json.Unmarshal([]byte(payload), &svcCheck); err != nil {
			t.Fatalf("decoding chat payload: %v", err)
		}
		if svcCheck.ChannelID != "20001:sy:test" {
			t.Fatalf("channelId = %q, want 20001:sy:test", svcCheck.ChannelID)
		}
	default:
		t.Fatalf("chat subscriber never invoked")
	}

	svc.DisableRtt()
	if svc.GetConnectionStatus() != rtt.Disconnected {
		t.Fatalf("status after DisableRtt = %v, want Disconnected", svc.GetConnectionStatus())
	}
}
