package callbackpump_test

import (
	"sync"
	"testing"
	"time"

	"github.com/nvidia/brainclouds2s-go/internal/callbackpump"
)

func TestDrainDispatchesQueuedCallbacksOnCallerGoroutine(t *testing.T) {
	p := callbackpump.New()

	var got []string
	var mu sync.Mutex
	p.Enqueue(func(payload string) {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	}, "one")
	p.Enqueue(func(payload string) {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	}, "two")

	p.Drain(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v, want [one two]", got)
	}
}

func TestDrainWaitsForEnqueueFromAnotherGoroutine(t *testing.T) {
	p := callbackpump.New()

	result := make(chan string, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Enqueue(func(payload string) { result <- payload }, "late")
	}()

	start := time.Now()
	p.Drain(time.Second)
	if time.Since(start) > 900*time.Millisecond {
		t.Fatalf("Drain took too long, didn't wake on Enqueue")
	}

	select {
	case payload := <-result:
		if payload != "late" {
			t.Fatalf("payload = %q, want late", payload)
		}
	default:
		t.Fatalf("callback never dispatched")
	}
}

func TestDrainTimesOutWhenEmpty(t *testing.T) {
	p := callbackpump.New()
	start := time.Now()
	p.Drain(30 * time.Millisecond)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("Drain returned early after %v", elapsed)
	}
}

func TestNilCallbackIsSilentlyDropped(t *testing.T) {
	p := callbackpump.New()
	p.Enqueue(nil, "ignored")
	p.Drain(time.Second) // must not panic
}

func TestCloseStopsFurtherDelivery(t *testing.T) {
	p := callbackpump.New()
	p.Close()

	fired := false
	p.Enqueue(func(string) { fired = true }, "x")
	p.Drain(10 * time.Millisecond)

	if fired {
		t.Fatalf("callback fired after Close")
	}
}

func TestOnDeliverHookFiresOncePerCallback(t *testing.T) {
	p := callbackpump.New()
	var count int
	p.SetOnDeliver(func() { count++ })

	p.Enqueue(func(string) {}, "a")
	p.Enqueue(func(string) {}, "b")
	p.Drain(time.Second)

	if count != 2 {
		t.Fatalf("onDeliver fired %d times, want 2", count)
	}
}
