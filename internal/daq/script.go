package daq

import "fmt"

// ScriptRead is one pre-planned answer from a ScriptClient.
type ScriptRead struct {
	Samples       []float64
	DeviceBacklog int
	DriverBacklog int
	Err           error
}

// ScriptClient replays a fixed sequence of StreamRead results, letting the
// acquisition state machine be exercised without hardware. Once the script
// is exhausted every further read reports ErrNoScans. All calls are
// recorded so tests can assert on the command sequence.
type ScriptClient struct {
	Reads []ScriptRead

	// Fault injection for the start sequence.
	OpenErr        error
	WriteConfigErr error
	StreamStartErr error
	StreamStopErr  error
	CloseErr       error

	// Recorded state.
	Opened       bool
	Closed       bool
	Started      bool
	Stopped      bool
	ConfigNames  []string
	ConfigValues []float64
	ScansPerRead int
	NumChannels  int
	Addresses    []int
	SampleRate   float64
	ReadCalls    int

	next int
}

// Open records the call and returns the scripted fault, if any.
func (c *ScriptClient) Open() error {
	if c.OpenErr != nil {
		return c.OpenErr
	}
	c.Opened = true
	return nil
}

// WriteConfig records the register writes.
func (c *ScriptClient) WriteConfig(names []string, values []float64) error {
	if c.WriteConfigErr != nil {
		return c.WriteConfigErr
	}
	c.ConfigNames = append(c.ConfigNames, names...)
	c.ConfigValues = append(c.ConfigValues, values...)
	return nil
}

// StreamStart records the stream geometry.
func (c *ScriptClient) StreamStart(scansPerRead, numChannels int, addresses []int, sampleRate float64) error {
	if c.StreamStartErr != nil {
		return c.StreamStartErr
	}
	if !c.Opened {
		return fmt.Errorf("daq: script device not open")
	}
	c.Started = true
	c.ScansPerRead = scansPerRead
	c.NumChannels = numChannels
	c.Addresses = addresses
	c.SampleRate = sampleRate
	return nil
}

// StreamRead returns the next scripted result.
func (c *ScriptClient) StreamRead() ([]float64, int, int, error) {
	c.ReadCalls++
	if c.next >= len(c.Reads) {
		return nil, 0, 0, ErrNoScans
	}
	r := c.Reads[c.next]
	c.next++
	if r.Err != nil {
		return nil, 0, 0, r.Err
	}
	return r.Samples, r.DeviceBacklog, r.DriverBacklog, nil
}

// StreamStop records the stop.
func (c *ScriptClient) StreamStop() error {
	c.Stopped = true
	return c.StreamStopErr
}

// Close records the close.
func (c *ScriptClient) Close() error {
	c.Closed = true
	return c.CloseErr
}
