package daq

import (
	"fmt"
	"math"
	"time"
)

// SimClient is a hardware-free Client that synthesizes per-channel sine
// waves at the configured sample rate. Scan production is driven by wall
// clock, so the poll loop sees the same cadence a real device produces:
// short polls return ErrNoScans, long gaps return larger blocks.
type SimClient struct {
	open      bool
	streaming bool

	numChannels int
	sampleRate  float64
	addresses   []int

	lastRead  time.Time
	scanIndex uint64
}

// NewSimClient creates a simulated device.
func NewSimClient() *SimClient {
	return &SimClient{}
}

// Open marks the simulated resource acquired.
func (c *SimClient) Open() error {
	c.open = true
	return nil
}

// WriteConfig accepts any register writes.
func (c *SimClient) WriteConfig(names []string, values []float64) error {
	if !c.open {
		return fmt.Errorf("daq: sim device not open")
	}
	if len(names) != len(values) {
		return fmt.Errorf("daq: config names/values length mismatch: %d vs %d", len(names), len(values))
	}
	return nil
}

// StreamStart begins synthesizing scans.
func (c *SimClient) StreamStart(scansPerRead, numChannels int, addresses []int, sampleRate float64) error {
	if !c.open {
		return fmt.Errorf("daq: sim device not open")
	}
	if numChannels <= 0 || len(addresses) != numChannels {
		return fmt.Errorf("daq: %d addresses for %d channels", len(addresses), numChannels)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("daq: sample rate must be > 0, got %g", sampleRate)
	}
	c.numChannels = numChannels
	c.sampleRate = sampleRate
	c.addresses = addresses
	c.scanIndex = 0
	c.lastRead = time.Now()
	c.streaming = true
	return nil
}

// StreamRead returns every scan elapsed since the previous read.
func (c *SimClient) StreamRead() ([]float64, int, int, error) {
	if !c.streaming {
		return nil, 0, 0, fmt.Errorf("daq: sim device not streaming")
	}

	now := time.Now()
	scans := int(now.Sub(c.lastRead).Seconds() * c.sampleRate)
	if scans == 0 {
		return nil, 0, 0, ErrNoScans
	}
	c.lastRead = c.lastRead.Add(time.Duration(float64(scans) / c.sampleRate * float64(time.Second)))

	samples := make([]float64, scans*c.numChannels)
	for s := 0; s < scans; s++ {
		t := float64(c.scanIndex) / c.sampleRate
		c.scanIndex++
		for ch := 0; ch < c.numChannels; ch++ {
			// One sine per channel, 1 Hz apart, with channel-proportional
			// amplitude so traces are distinguishable on a display.
			freq := 1.0 + float64(ch)
			samples[s*c.numChannels+ch] = (1.0 + 0.5*float64(ch)) * math.Sin(2*math.Pi*freq*t)
		}
	}
	return samples, 0, 0, nil
}

// StreamStop ends synthesis.
func (c *SimClient) StreamStop() error {
	if !c.open {
		return fmt.Errorf("daq: sim device not open")
	}
	c.streaming = false
	return nil
}

// Close releases the simulated resource.
func (c *SimClient) Close() error {
	c.open = false
	c.streaming = false
	return nil
}
