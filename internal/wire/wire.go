// Package wire defines the JSON shapes exchanged with the dispatcher and RTT
// event server, and the synthetic local-error envelope used whenever a
// failure never reaches the wire at all.
package wire

import (
	"encoding/json"
	"errors"
	"net"
	"os"
)

// MessageResponse is one element of a ResponseEnvelope's messageResponses.
type MessageResponse struct {
	Status     int             `json:"status"`
	ReasonCode int             `json:"reason_code,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ResponseEnvelope is the dispatcher's canonical response shape. Only field 0
// of MessageResponses and the top-level PacketID are consumed by the core.
type ResponseEnvelope struct {
	PacketID         int               `json:"packetId"`
	MessageResponses []MessageResponse `json:"messageResponses"`
}

// SessionExpiredReasonCode is the dispatcher's SERVER_SESSION_EXPIRED code.
const SessionExpiredReasonCode = 40365

// SyntheticError renders a local, never-hit-the-wire failure in the same
// shape a real MessageResponse would take, using the 900-range status
// convention reserved for client-local failures.
func SyntheticError(status int, message string) string {
	b, _ := json.Marshal(struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}{Status: status, Message: message})
	return string(b)
}

// TransportErrorMessage maps a transport-level error to the human-readable
// message conventions the dispatcher client uses for status-900 failures:
// a recognizable "Operation timed out" for deadline/timeout errors, the raw
// error text otherwise.
func TransportErrorMessage(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Operation timed out"
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return "Operation timed out"
	}
	return err.Error()
}
