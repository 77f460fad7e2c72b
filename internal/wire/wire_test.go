package wire_test

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"

	"github.com/nvidia/brainclouds2s-go/internal/wire"
)

func TestSyntheticErrorShapeMatchesMessageResponse(t *testing.T) {
	payload := wire.SyntheticError(900, "Failed to parse user json")

	var resp wire.MessageResponse
	// SyntheticError's shape is a subset of MessageResponse (status+message);
	// decode the message separately since MessageResponse has no Message field.
	var withMessage struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(payload), &withMessage); err != nil {
		t.Fatalf("decoding synthetic error: %v", err)
	}
	if withMessage.Status != 900 {
		t.Fatalf("status = %d, want 900", withMessage.Status)
	}
	if withMessage.Message != "Failed to parse user json" {
		t.Fatalf("message = %q", withMessage.Message)
	}

	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("decoding as MessageResponse: %v", err)
	}
	if resp.Status != 900 {
		t.Fatalf("MessageResponse.Status = %d, want 900", resp.Status)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestTransportErrorMessageRecognizesTimeouts(t *testing.T) {
	if got := wire.TransportErrorMessage(timeoutError{}); got != "Operation timed out" {
		t.Fatalf("got %q, want Operation timed out", got)
	}
	if got := wire.TransportErrorMessage(os.ErrDeadlineExceeded); got != "Operation timed out" {
		t.Fatalf("got %q, want Operation timed out", got)
	}
	if got := wire.TransportErrorMessage(errors.New("connection refused")); got != "connection refused" {
		t.Fatalf("got %q, want connection refused", got)
	}
}

func TestResponseEnvelopeRoundTrip(t *testing.T) {
	raw := []byte(`{"packetId":3,"messageResponses":[{"status":200,"data":{"ok":true}}]}`)
	var envelope wire.ResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshalling: %v", err)
	}
	if envelope.PacketID != 3 {
		t.Fatalf("PacketID = %d, want 3", envelope.PacketID)
	}
	if len(envelope.MessageResponses) != 1 || envelope.MessageResponses[0].Status != 200 {
		t.Fatalf("unexpected MessageResponses: %+v", envelope.MessageResponses)
	}
}
