package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTicker_InvokesCallback(t *testing.T) {
	s := NewTicker()
	var calls atomic.Int64

	h := s.Schedule(5*time.Millisecond, func() {
		calls.Add(1)
	})
	defer h.Cancel()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d calls before deadline", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTicker_CancelStopsInvocations(t *testing.T) {
	s := NewTicker()
	var calls atomic.Int64

	h := s.Schedule(5*time.Millisecond, func() {
		calls.Add(1)
	})

	// Let it run briefly, then cancel and watch for further calls.
	time.Sleep(30 * time.Millisecond)
	h.Cancel()
	h.Cancel() // second cancel is a no-op

	time.Sleep(20 * time.Millisecond)
	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("callback fired after Cancel: %d -> %d", after, calls.Load())
	}
}

func TestTicker_CallbacksNeverOverlap(t *testing.T) {
	s := NewTicker()
	var inside atomic.Int64
	var overlapped atomic.Bool

	body := func() {
		if inside.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(2 * time.Millisecond)
		inside.Add(-1)
	}

	h1 := s.Schedule(3*time.Millisecond, body)
	h2 := s.Schedule(3*time.Millisecond, body)

	time.Sleep(100 * time.Millisecond)
	h1.Cancel()
	h2.Cancel()

	if overlapped.Load() {
		t.Error("callbacks from two handles ran concurrently")
	}
}

func TestTicker_CancelFromWithinCallback(t *testing.T) {
	s := NewTicker()
	var calls atomic.Int64
	var h Handle
	var mu sync.Mutex

	mu.Lock()
	h = s.Schedule(5*time.Millisecond, func() {
		calls.Add(1)
		mu.Lock() // wait until h is visible
		mu.Unlock()
		h.Cancel()
	})
	mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want exactly 1 after self-cancel", got)
	}
}

func TestManual_TickAndCancel(t *testing.T) {
	s := NewManual()
	var a, b int

	ha := s.Schedule(100*time.Millisecond, func() { a++ })
	s.Schedule(500*time.Millisecond, func() { b++ })

	s.Tick(0)
	s.Tick(0)
	s.Tick(1)
	if a != 2 || b != 1 {
		t.Errorf("a=%d b=%d, want 2 and 1", a, b)
	}

	ha.Cancel()
	s.Tick(0)
	if a != 2 {
		t.Errorf("cancelled callback fired: a=%d", a)
	}
	if !s.Cancelled(0) || s.Cancelled(1) {
		t.Errorf("Cancelled flags wrong: %v %v", s.Cancelled(0), s.Cancelled(1))
	}
	if s.Interval(1) != 500*time.Millisecond {
		t.Errorf("Interval(1) = %v", s.Interval(1))
	}
}
