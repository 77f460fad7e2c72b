package brainclouds2s_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	brainclouds2s "github.com/nvidia/brainclouds2s-go"
	"github.com/nvidia/brainclouds2s-go/internal/fakes"
	"github.com/nvidia/brainclouds2s-go/internal/transport"
)

func TestContextHappyAuthThenScript(t *testing.T) {
	http := fakes.NewHTTP()
	http.QueueResponse([]byte(`{"packetId":0,"messageResponses":[{"status":200,"data":{"sessionId":"sess-ctx","heartbeatSeconds":1800}}]}`))
	http.QueueResponseFunc(func(body []byte) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"packetId":%d,"messageResponses":[{"status":200,"data":{"response":42}}]}`, fakes.PacketID(body))), nil
	})

	autoAuth := false
	ctx := brainclouds2s.NewContext(brainclouds2s.Options{
		AppID:        "app1",
		ServerName:   "server1",
		ServerSecret: "secret1",
		URL:          "http://dispatcher.example/s2sdispatcher",
		AutoAuth:     &autoAuth,
		Transport:    http,
	})
	defer ctx.Destroy()

	authResult := ctx.AuthenticateSync()
	if !statusIs(t, authResult, 200) {
		t.Fatalf("authenticate result: %s", authResult)
	}

	reqResult := ctx.RequestSync(`{"service":"script","operation":"RUN","data":{"scriptName":"AddTwoNumbers"}}`)
	if !statusIs(t, reqResult, 200) {
		t.Fatalf("request result: %s", reqResult)
	}
}

func TestContextRunCallbacksDeliversQueuedResults(t *testing.T) {
	http := fakes.NewHTTP()
	http.QueueResponse([]byte(`{"packetId":0,"messageResponses":[{"status":200,"data":{"sessionId":"sess-ctx2","heartbeatSeconds":1800}}]}`))
	http.QueueResponseFunc(func(body []byte) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"packetId":%d,"messageResponses":[{"status":200,"data":{}}]}`, fakes.PacketID(body))), nil
	})

	autoAuth := true
	ctx := brainclouds2s.NewContext(brainclouds2s.Options{
		AppID:        "app1",
		ServerName:   "server1",
		ServerSecret: "secret1",
		URL:          "http://dispatcher.example/s2sdispatcher",
		AutoAuth:     &autoAuth,
		Transport:    http,
	})
	defer ctx.Destroy()

	result := make(chan string, 1)
	ctx.Request(`{"service":"time","operation":"READ","data":{}}`, func(payload string) { result <- payload })

	deadline := time.Now().Add(2 * time.Second)
	for len(result) == 0 && time.Now().Before(deadline) {
		ctx.RunCallbacks(10)
	}

	select {
	case payload := <-result:
		if !statusIs(t, payload, 200) {
			t.Fatalf("result: %s", payload)
		}
	default:
		t.Fatalf("callback never fired")
	}
}

func TestContextDestroyIsIdempotentAndStopsRtt(t *testing.T) {
	http := fakes.NewHTTP()
	ws := fakes.NewWS()

	autoAuth := true
	ctx := brainclouds2s.NewContext(brainclouds2s.Options{
		AppID:        "app1",
		ServerName:   "server1",
		ServerSecret: "secret1",
		URL:          "http://dispatcher.example/s2sdispatcher",
		AutoAuth:     &autoAuth,
		Transport:    http,
		RttDialer:    func(string) transport.WS { return ws },
	})

	ctx.Destroy()
	ctx.Destroy() // must not panic or double-close
}

func statusIs(t *testing.T, payload string, want int) bool {
	t.Helper()
	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		t.Fatalf("decoding %q: %v", payload, err)
	}
	return resp.Status == want
}
