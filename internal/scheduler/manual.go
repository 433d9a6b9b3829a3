package scheduler

import "time"

// Manual is a Scheduler driven by explicit Tick calls instead of wall
// time, so tests can step the acquisition loop deterministically.
type Manual struct {
	handles []*manualHandle
}

// NewManual creates an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Schedule registers a callback; it only runs when Tick is called.
func (s *Manual) Schedule(interval time.Duration, fn func()) Handle {
	h := &manualHandle{fn: fn, interval: interval}
	s.handles = append(s.handles, h)
	return h
}

// Tick fires the idx-th registered callback once, in registration order,
// if it has not been cancelled.
func (s *Manual) Tick(idx int) {
	if idx < 0 || idx >= len(s.handles) {
		return
	}
	h := s.handles[idx]
	if !h.cancelled {
		h.fn()
	}
}

// Handles returns how many callbacks have been registered.
func (s *Manual) Handles() int {
	return len(s.handles)
}

// Cancelled reports whether the idx-th callback has been cancelled.
func (s *Manual) Cancelled(idx int) bool {
	if idx < 0 || idx >= len(s.handles) {
		return false
	}
	return s.handles[idx].cancelled
}

// Interval returns the period the idx-th callback was registered with.
func (s *Manual) Interval(idx int) time.Duration {
	if idx < 0 || idx >= len(s.handles) {
		return 0
	}
	return s.handles[idx].interval
}

type manualHandle struct {
	fn        func()
	interval  time.Duration
	cancelled bool
}

func (h *manualHandle) Cancel() {
	h.cancelled = true
}
