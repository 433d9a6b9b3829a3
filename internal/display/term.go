// Package display renders acquisition snapshots on a terminal.
package display

import (
	"fmt"
	"io"
	"sync"
)

// Term prints one status line per channel each time a full snapshot
// round arrives. It implements the acquire display sink.
type Term struct {
	w     io.Writer
	names []string

	mu      sync.Mutex
	pending map[int]stats
}

type stats struct {
	last     float64
	min, max float64
	count    int
}

func NewTerm(w io.Writer, channelNames []string) *Term {
	return &Term{
		w:       w,
		names:   channelNames,
		pending: make(map[int]stats),
	}
}

// Render buffers the per-channel summary and flushes a line for every
// channel once the round is complete. Channels arrive in index order,
// so the last index closes the round.
func (t *Term) Render(channelIndex int, samples []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if channelIndex < 0 || channelIndex >= len(t.names) {
		return
	}
	t.pending[channelIndex] = summarize(samples)

	if channelIndex != len(t.names)-1 {
		return
	}
	for i, name := range t.names {
		s, ok := t.pending[i]
		if !ok || s.count == 0 {
			fmt.Fprintf(t.w, "%-8s        --\n", name)
			continue
		}
		fmt.Fprintf(t.w, "%-8s %10.4f  min %10.4f  max %10.4f  (%d pts)\n",
			name, s.last, s.min, s.max, s.count)
	}
	fmt.Fprintln(t.w)
	t.pending = make(map[int]stats)
}

func summarize(samples []float64) stats {
	s := stats{count: len(samples)}
	if s.count == 0 {
		return s
	}
	s.last = samples[len(samples)-1]
	s.min, s.max = samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	return s
}
