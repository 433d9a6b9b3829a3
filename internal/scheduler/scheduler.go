// Package scheduler provides the periodic-callback facility the
// acquisition core runs on, decoupled from any particular host's timer
// machinery.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler invokes callbacks at a fixed period until cancelled.
// Callbacks registered on the same scheduler never run concurrently with
// each other, preserving the single-threaded cooperative model the
// acquisition core assumes.
type Scheduler interface {
	Schedule(interval time.Duration, fn func()) Handle
}

// Handle cancels one scheduled callback. Cancel only signals: an
// invocation already past its cancellation check may still finish, but a
// cancelled handle never starts a new one. Cancel is safe to call from
// within a callback and more than once.
type Handle interface {
	Cancel()
}

// Ticker is the wall-clock Scheduler used in production.
type Ticker struct {
	mu sync.Mutex // serializes all callback invocations
}

// NewTicker creates a ticker-backed scheduler.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Schedule starts a periodic callback at the given interval.
func (s *Ticker) Schedule(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				select {
				case <-h.stop:
					// Cancelled while waiting for a slot.
					s.mu.Unlock()
					return
				default:
				}
				fn()
				s.mu.Unlock()
			}
		}
	}()

	return h
}

type tickerHandle struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}
