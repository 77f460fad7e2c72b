// Package brainclouds2s is a server-to-server (S2S) and real-time (RTT)
// client library for brainCloud game-backend services: lazy or explicit
// authentication, serialized request dispatch with packet sequencing,
// heartbeat maintenance, session-expiry recovery, and an RTT event channel
// layered on top of the same S2S session.
package brainclouds2s

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nvidia/brainclouds2s-go/internal/callbackpump"
	"github.com/nvidia/brainclouds2s-go/internal/metrics"
	"github.com/nvidia/brainclouds2s-go/internal/rtt"
	"github.com/nvidia/brainclouds2s-go/internal/session"
	"github.com/nvidia/brainclouds2s-go/internal/transport"
)

const defaultHTTPTimeout = 15 * time.Second

// Options configures a new Context. AppID, ServerName, ServerSecret, and URL
// are required; everything else has a working default.
type Options struct {
	AppID        string
	ServerName   string
	ServerSecret string
	URL          string

	// AutoAuth enables implicit authentication on first Request and
	// automatic retry-after-reauth on session expiry. Defaults to true.
	AutoAuth *bool

	// PlatformTag is the short system.platform value this SDK reports to the
	// RTT event server in the CONNECT frame. Defaults to "go".
	PlatformTag string

	// HTTPTimeout bounds each dispatcher round trip. Defaults to 15s.
	HTTPTimeout time.Duration

	// Registerer, if non-nil, receives the library's prometheus instruments.
	Registerer prometheus.Registerer

	// Transport overrides the default net/http-backed HTTP collaborator;
	// tests supply a fake here.
	Transport transport.HTTP

	// RttDialer overrides the default gorilla/websocket / net.Dial-backed
	// WS collaborator; tests supply a fake here.
	RttDialer rtt.WSDialer
}

// Context is the library's single entry point: it owns the S2S session, the
// RTT channel, and the shared callback pump both drain through.
type Context struct {
	session *session.Session
	rtt     *rtt.Service
	pump    *callbackpump.Pump
	metrics *metrics.Metrics

	logEnabled bool
}

// NewContext constructs a Context. It does not contact the dispatcher;
// call Authenticate or Request (with AutoAuth) to do that.
func NewContext(opts Options) *Context {
	autoAuth := true
	if opts.AutoAuth != nil {
		autoAuth = *opts.AutoAuth
	}
	platformTag := opts.PlatformTag
	if platformTag == "" {
		platformTag = "go"
	}
	httpTimeout := opts.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = defaultHTTPTimeout
	}

	m := metrics.New(opts.Registerer)

	pump := callbackpump.New()
	pump.SetOnDeliver(func() { m.CallbacksDelivered.Inc() })

	httpTransport := opts.Transport
	if httpTransport == nil {
		httpTransport = transport.NewHTTPClient(httpTimeout)
	}

	sess := session.New(opts.AppID, opts.ServerName, opts.ServerSecret, opts.URL, autoAuth, httpTransport, pump, m)

	dial := opts.RttDialer
	if dial == nil {
		dial = defaultDialer()
	}
	rttService := rtt.New(opts.AppID, platformTag, sess, pump, dial, m)

	return &Context{session: sess, rtt: rttService, pump: pump, metrics: m}
}

func defaultDialer() rtt.WSDialer {
	return func(protocol string) transport.WS {
		if protocol == "tcp" {
			return transport.NewTCP()
		}
		return transport.NewWebSocket()
	}
}

// SetLogEnabled toggles whether the Context's own lifecycle events (connect,
// disconnect, reauthentication) are logged via log/slog. Disabled by
// default; the library never installs a global handler, only gates its own
// calls to the default slog logger.
func (c *Context) SetLogEnabled(enabled bool) {
	c.logEnabled = enabled
}

func (c *Context) logInfo(msg string, args ...any) {
	if c.logEnabled {
		slog.Info(msg, args...)
	}
}

// Authenticate starts an explicit authentication exchange. Valid only when
// not already Authenticated or Authenticating.
func (c *Context) Authenticate(cb func(jsonResponse string)) {
	c.logInfo("s2s authenticate requested")
	c.session.Authenticate(cb)
}

// AuthenticateSync blocks (driving RunCallbacks itself) until Authenticate's
// callback would have fired, or until a 60-second deadline.
func (c *Context) AuthenticateSync() string {
	return c.session.AuthenticateSync()
}

// Request submits a user-composed JSON request body, triggering implicit
// authentication first if AutoAuth is enabled and the session is currently
// disconnected.
func (c *Context) Request(jsonRequest string, cb func(jsonResponse string)) {
	c.session.Request(jsonRequest, cb)
}

// RequestSync blocks with the same budget as AuthenticateSync.
func (c *Context) RequestSync(jsonRequest string) string {
	return c.session.RequestSync(jsonRequest)
}

// RunCallbacks drains every callback queued on the shared pump, on the
// calling goroutine, waiting up to timeoutMs if none are queued yet. Callers
// are expected to invoke this periodically (a game server's tick loop is the
// idiomatic caller) since it is also what drives the session's heartbeat and
// delivers RTT subscriber events.
func (c *Context) RunCallbacks(timeoutMs int) {
	c.session.RunCallbacks(timeoutMs)
}

// GetRttService returns the RTT channel component.
func (c *Context) GetRttService() *rtt.Service {
	return c.rtt
}

// GetSessionID reports the current S2S session id, empty unless
// authenticated.
func (c *Context) GetSessionID() string {
	return c.session.SessionID()
}

// Destroy disables the RTT channel if active, disconnects the S2S session,
// and closes the callback pump so no further callback is invoked after this
// call returns.
func (c *Context) Destroy() {
	c.rtt.DisableRtt()
	c.session.Disconnect()
	c.pump.Close()
	c.logInfo("s2s context destroyed")
}

// GetS2SVersion reports this SDK's version string.
func (c *Context) GetS2SVersion() string {
	return "1.0.0"
}
