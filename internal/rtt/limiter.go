package rtt

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultFrameRate  = 20 // frames/sec sustained, per service
	defaultFrameBurst = 50
)

// FrameLimiter guards inbound RTT frame dispatch per service name with a
// token-bucket limiter, so a misbehaving or compromised event server cannot
// flood a single subscriber's callback.
type FrameLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFrameLimiter returns an empty FrameLimiter; per-service limiters are
// created lazily on first use.
func NewFrameLimiter() *FrameLimiter {
	return &FrameLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a frame for service may be dispatched now.
func (f *FrameLimiter) Allow(service string) bool {
	f.mu.Lock()
	l, ok := f.limiters[service]
	if !ok {
		l = rate.NewLimiter(rate.Limit(defaultFrameRate), defaultFrameBurst)
		f.limiters[service] = l
	}
	f.mu.Unlock()
	return l.Allow()
}
