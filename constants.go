package brainclouds2s

// Service names and operations a caller builds requests against. These
// mirror the dispatcher and event-server wire vocabulary; the AUTHENTICATE
// packet body itself is built internally against the versioned
// authenticationV2 wire literal (see internal/session), not this constant.
const (
	ServiceAuthentication  = "authentication"
	ServiceRTTRegistration = "rttRegistration"
	ServiceRTT             = "rtt"
	ServiceChat            = "chat"
	ServiceMessaging       = "messaging"
	ServiceLobby           = "lobby"
	ServiceRelay           = "relay"
	ServiceScript          = "script"
	ServiceEntity          = "entity"
)

const (
	OperationAuthenticate            = "AUTHENTICATE"
	OperationRequestSystemConnection = "REQUEST_SYSTEM_CONNECTION"
	OperationConnect                 = "CONNECT"
	OperationDisconnect              = "DISCONNECT"
	OperationHeartbeat               = "HEARTBEAT"
	OperationRun                     = "RUN"
)

// SessionExpiredReasonCode is the dispatcher reason_code signaling that the
// session backing a request has expired server-side.
const SessionExpiredReasonCode = 40365
