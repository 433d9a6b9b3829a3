package daq

import (
	"errors"
	"testing"
	"time"
)

func startedSim(t *testing.T, rate float64) *SimClient {
	t.Helper()
	c := NewSimClient()
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.StreamStart(100, 2, []int{0, 2}, rate); err != nil {
		t.Fatalf("StreamStart: %v", err)
	}
	return c
}

func TestSimClient_RequiresOpenAndStreaming(t *testing.T) {
	c := NewSimClient()
	if err := c.StreamStart(100, 2, []int{0, 2}, 1000); err == nil {
		t.Error("StreamStart before Open succeeded")
	}
	if _, _, _, err := c.StreamRead(); err == nil {
		t.Error("StreamRead before StreamStart succeeded")
	}
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := c.StreamStart(100, 2, []int{0}, 1000); err == nil {
		t.Error("StreamStart with mismatched addresses succeeded")
	}
}

func TestSimClient_ImmediateReadHasNoScans(t *testing.T) {
	c := startedSim(t, 1) // 1 Hz: no scan can elapse immediately
	if _, _, _, err := c.StreamRead(); !errors.Is(err, ErrNoScans) {
		t.Errorf("err = %v, want ErrNoScans", err)
	}
}

func TestSimClient_ProducesInterleavedScans(t *testing.T) {
	c := startedSim(t, 10000)
	time.Sleep(20 * time.Millisecond)

	samples, _, _, err := c.StreamRead()
	if err != nil {
		t.Fatalf("StreamRead: %v", err)
	}
	if len(samples) == 0 || len(samples)%2 != 0 {
		t.Fatalf("got %d samples, want a positive multiple of 2", len(samples))
	}

	// First scan is t=0: ch0 = sin(0) = 0, ch1 = 1.5*sin(0) = 0.
	if samples[0] != 0 || samples[1] != 0 {
		t.Errorf("first scan = [%g %g], want [0 0]", samples[0], samples[1])
	}

	// Channel amplitudes stay within their configured envelopes.
	for i := 0; i < len(samples); i += 2 {
		if v := samples[i]; v < -1 || v > 1 {
			t.Fatalf("ch0 sample %g out of [-1, 1]", v)
		}
		if v := samples[i+1]; v < -1.5 || v > 1.5 {
			t.Fatalf("ch1 sample %g out of [-1.5, 1.5]", v)
		}
	}
}

func TestSimClient_ScanClockAdvancesWithoutGaps(t *testing.T) {
	c := startedSim(t, 10000)
	time.Sleep(10 * time.Millisecond)

	first, _, _, err := c.StreamRead()
	if err != nil {
		t.Fatalf("first StreamRead: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second, _, _, err := c.StreamRead()
	if err != nil {
		t.Fatalf("second StreamRead: %v", err)
	}

	// The waveform runs off a monotonic scan index: the index after two
	// reads equals the total scans handed out, with no resets between.
	total := uint64((len(first) + len(second)) / 2)
	if c.scanIndex != total {
		t.Errorf("scan index = %d after %d scans read", c.scanIndex, total)
	}
}
