package rtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// EnableRtt implements the RttHandshake component: it asks the S2S session
// for an event-server endpoint, picks a transport, and opens the socket.
// connectCb fires exactly once, with err==nil on rttConnectSuccess or a
// non-nil err carrying the rttConnectFailure message.
func (s *Service) EnableRtt(connectCb func(err error), useWebSocket bool) {
	s.mu.Lock()
	if s.status != Disconnected {
		s.mu.Unlock()
		return
	}
	s.status = Connecting
	s.connectCb = wrapConnectCallback(connectCb)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RttReconnects.Inc()
	}

	reqBody, _ := json.Marshal(map[string]any{
		"service":   wireServiceRTTRegistration,
		"operation": wireOpRequestSystemConnection,
	})
	s.requester.Request(string(reqBody), func(payload string) {
		s.onHandshakeResponse(payload, useWebSocket)
	})
}

func (s *Service) onHandshakeResponse(payload string, useWebSocket bool) {
	var resp struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil || resp.Status != 200 {
		s.setStatus(Disconnected)
		s.signalFailure(payload)
		return
	}

	var data struct {
		Endpoints []Endpoint        `json:"endpoints"`
		Auth      map[string]string `json:"auth"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		s.setStatus(Disconnected)
		s.signalFailure(payload)
		return
	}

	endpoint, ok := selectEndpoint(data.Endpoints, useWebSocket)
	if !ok {
		s.setStatus(Disconnected)
		s.signalFailure("No endpoint available")
		return
	}

	s.mu.Lock()
	s.auth = data.Auth
	s.mu.Unlock()

	s.connect(endpoint)
}

// selectEndpoint chooses among candidate endpoints preferring SSL-capable
// entries for WebSocket; the plain-TCP-first preference for the TCP branch
// is intentional and matches the upstream dispatcher's own selection order.
func selectEndpoint(endpoints []Endpoint, useWebSocket bool) (Endpoint, bool) {
	find := func(pred func(Endpoint) bool) (Endpoint, bool) {
		for _, e := range endpoints {
			if pred(e) {
				return e, true
			}
		}
		return Endpoint{}, false
	}

	if useWebSocket {
		if e, ok := find(func(e Endpoint) bool { return e.Protocol == "ws" && e.SSL }); ok {
			return e, true
		}
		return find(func(e Endpoint) bool { return e.Protocol == "ws" })
	}

	if e, ok := find(func(e Endpoint) bool { return e.Protocol == "tcp" && !e.SSL }); ok {
		return e, true
	}
	return find(func(e Endpoint) bool { return e.Protocol == "tcp" && e.SSL })
}

func (s *Service) connect(ep Endpoint) {
	conn := s.dial(ep.Protocol)

	url, headers := buildDialTarget(ep, s.authSnapshot())

	if err := conn.Connect(context.Background(), url, headers); err != nil {
		s.setStatus(Disconnected)
		s.signalFailure(fmt.Sprintf("Failed to connect to RTT Event server: %s:%d", ep.Host, ep.Port))
		return
	}

	s.onTransportConnected(conn, ep)
}

func (s *Service) authSnapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auth := make(map[string]string, len(s.auth))
	for k, v := range s.auth {
		auth[k] = v
	}
	return auth
}

// buildDialTarget composes the WebSocket URL as scheme + host[:port] + "?"
// + auth map encoded as query parameters, and mirrors
// the same auth map as handshake headers; duplicating it in both places
// matches the event server's acceptance rules. For TCP, the target is a
// plain host:port and headers are unused (auth travels in the CONNECT frame
// body instead).
func buildDialTarget(ep Endpoint, auth map[string]string) (string, map[string]string) {
	if ep.Protocol != "ws" {
		return fmt.Sprintf("%s:%d", ep.Host, ep.Port), nil
	}

	scheme := "ws://"
	if ep.SSL {
		scheme = "wss://"
	}

	query := ""
	for k, v := range auth {
		if query != "" {
			query += "&"
		}
		query += fmt.Sprintf("%s=%s", k, v)
	}

	url := fmt.Sprintf("%s%s:%d", scheme, ep.Host, ep.Port)
	if query != "" {
		url += "?" + query
	}
	return url, auth
}
