// Package fakes provides deterministic HTTP and WS test doubles used by the
// session and rtt package tests, grounded on the same interfaces the real
// net/http and gorilla/websocket-backed collaborators implement.
package fakes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HTTP is a scripted transport.HTTP: each Post call pops the next queued
// responder, in order. A responder may return a canned response or an
// error. If the queue runs dry, Post blocks forever is avoided; it instead
// returns an error, so a badly-written test fails fast instead of hanging.
type HTTP struct {
	mu         sync.Mutex
	responders []func(body []byte) ([]byte, error)
	requests   [][]byte
}

// NewHTTP returns an empty scripted HTTP double.
func NewHTTP() *HTTP {
	return &HTTP{}
}

// QueueResponse appends a responder that returns resp unconditionally.
func (h *HTTP) QueueResponse(resp []byte) {
	h.mu.Lock()
	h.responders = append(h.responders, func([]byte) ([]byte, error) { return resp, nil })
	h.mu.Unlock()
}

// QueueResponseFunc appends a responder computed from the request body, so a
// test can echo the packetId back in the response.
func (h *HTTP) QueueResponseFunc(fn func(body []byte) ([]byte, error)) {
	h.mu.Lock()
	h.responders = append(h.responders, fn)
	h.mu.Unlock()
}

// QueueError appends a responder that fails with err.
func (h *HTTP) QueueError(err error) {
	h.mu.Lock()
	h.responders = append(h.responders, func([]byte) ([]byte, error) { return nil, err })
	h.mu.Unlock()
}

// Post implements transport.HTTP.
func (h *HTTP) Post(_ context.Context, _ string, body []byte) ([]byte, error) {
	h.mu.Lock()
	h.requests = append(h.requests, body)
	if len(h.responders) == 0 {
		h.mu.Unlock()
		return nil, fmt.Errorf("fakes.HTTP: no responder queued for request %s", body)
	}
	next := h.responders[0]
	h.responders = h.responders[1:]
	h.mu.Unlock()
	return next(body)
}

// Requests returns every request body Post has seen so far, in order.
func (h *HTTP) Requests() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.requests))
	copy(out, h.requests)
	return out
}

// PacketID extracts the packetId field from a request body captured by
// Requests; it panics on malformed input since it is a test helper.
func PacketID(body []byte) int {
	var envelope struct {
		PacketID int `json:"packetId"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		panic(err)
	}
	return envelope.PacketID
}

// WS is a scripted transport.WS: Connect either succeeds or fails per
// ConnectErr; Send records every frame sent; Recv serves frames from an
// in-process channel that a test feeds with PushFrame, and returns (nil,
// nil) once Close or CloseGracefully is called.
type WS struct {
	ConnectErr error

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	frames chan []byte
}

// NewWS returns a WS double ready for Connect.
func NewWS() *WS {
	return &WS{frames: make(chan []byte, 16)}
}

// Connect implements transport.WS.
func (w *WS) Connect(context.Context, string, map[string]string) error {
	return w.ConnectErr
}

// Send implements transport.WS.
func (w *WS) Send(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("fakes.WS: send on closed connection")
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	w.sent = append(w.sent, cp)
	return nil
}

// Recv implements transport.WS: it blocks until PushFrame or Close is called.
func (w *WS) Recv() ([]byte, error) {
	frame, ok := <-w.frames
	if !ok {
		return nil, nil
	}
	return frame, nil
}

// Close implements transport.WS and is idempotent.
func (w *WS) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.frames)
	return nil
}

// PushFrame delivers frame to the next Recv call.
func (w *WS) PushFrame(frame []byte) {
	w.frames <- frame
}

// SentFrames returns every frame Send has recorded so far, in order.
func (w *WS) SentFrames() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.sent))
	copy(out, w.sent)
	return out
}
