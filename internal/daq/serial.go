package daq

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.bug.st/serial"
)

const (
	frameSync = 0xA5

	// readTimeout keeps StreamRead non-blocking: a drained port returns
	// zero bytes within this window instead of stalling the poll loop.
	readTimeout = 5 * time.Millisecond
)

// frameHeader precedes every data frame on the wire. All multi-byte fields
// are little-endian, matching the sample payload.
type frameHeader struct {
	ScanCount     uint16
	DeviceBacklog uint16
	DriverBacklog uint16
}

// SerialClient talks to a DAQ unit attached over USB-CDC. Commands go out
// as short ASCII lines; sample data comes back as sync-framed blocks of
// little-endian float32 values.
type SerialClient struct {
	portName string
	baudRate int

	port        serial.Port
	numChannels int
	headerBuf   []byte
	payloadBuf  []byte

	// Scans consumed during resync and never delivered. The log file
	// cannot contain them, so the loss is reported, not hidden.
	droppedScans int64
}

// NewSerialClient creates an unopened client for the given port.
func NewSerialClient(portName string, baudRate int) *SerialClient {
	return &SerialClient{
		portName:  portName,
		baudRate:  baudRate,
		headerBuf: make([]byte, 1+6), // sync + frameHeader
	}
}

// Open opens the serial port and clears any stale input.
func (c *SerialClient) Open() error {
	if c.port != nil {
		return nil
	}
	mode := &serial.Mode{BaudRate: c.baudRate}
	port, err := serial.Open(c.portName, mode)
	if err != nil {
		return fmt.Errorf("daq: open %s: %w", c.portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("daq: set read timeout on %s: %w", c.portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return fmt.Errorf("daq: reset input buffer on %s: %w", c.portName, err)
	}
	c.port = port
	slog.Debug("serial device opened", "port", c.portName, "baud", c.baudRate)
	return nil
}

// WriteConfig sends one CFG line per register.
func (c *SerialClient) WriteConfig(names []string, values []float64) error {
	if c.port == nil {
		return fmt.Errorf("daq: device not open")
	}
	if len(names) != len(values) {
		return fmt.Errorf("daq: config names/values length mismatch: %d vs %d", len(names), len(values))
	}
	for i, name := range names {
		line := fmt.Sprintf("CFG %s %g\r\n", name, values[i])
		if err := c.writeLine(line); err != nil {
			return fmt.Errorf("daq: write config %s: %w", name, err)
		}
	}
	return nil
}

// StreamStart issues the free-running start command with the scan geometry.
func (c *SerialClient) StreamStart(scansPerRead, numChannels int, addresses []int, sampleRate float64) error {
	if c.port == nil {
		return fmt.Errorf("daq: device not open")
	}
	if numChannels <= 0 || len(addresses) != numChannels {
		return fmt.Errorf("daq: %d addresses for %d channels", len(addresses), numChannels)
	}

	line := fmt.Sprintf("STR %d %d %g", scansPerRead, numChannels, sampleRate)
	for _, addr := range addresses {
		line += fmt.Sprintf(" %d", addr)
	}
	line += "\r\n"
	if err := c.writeLine(line); err != nil {
		return fmt.Errorf("daq: stream start: %w", err)
	}

	c.numChannels = numChannels
	c.payloadBuf = make([]byte, scansPerRead*numChannels*4)
	slog.Debug("serial stream started", "port", c.portName, "scans_per_read", scansPerRead, "channels", numChannels, "sample_rate", sampleRate)
	return nil
}

// StreamRead drains one buffered frame. A port with no pending frame
// returns ErrNoScans within the read timeout.
func (c *SerialClient) StreamRead() ([]float64, int, int, error) {
	if c.port == nil {
		return nil, 0, 0, fmt.Errorf("daq: device not open")
	}

	// First byte decides between "no data" and a frame in flight.
	n, err := c.port.Read(c.headerBuf[:1])
	if err != nil {
		return nil, 0, 0, fmt.Errorf("daq: read frame sync: %w", err)
	}
	if n == 0 {
		return nil, 0, 0, ErrNoScans
	}
	if c.headerBuf[0] != frameSync {
		if err := c.resync(); err != nil {
			return nil, 0, 0, err
		}
		return nil, 0, 0, ErrNoScans
	}

	if err := c.readFull(c.headerBuf[1:]); err != nil {
		return nil, 0, 0, fmt.Errorf("daq: read frame header: %w", err)
	}
	var hdr frameHeader
	if err := binary.Read(bytes.NewReader(c.headerBuf[1:]), binary.LittleEndian, &hdr); err != nil {
		return nil, 0, 0, fmt.Errorf("daq: decode frame header: %w", err)
	}

	want := int(hdr.ScanCount) * c.numChannels * 4
	if want > len(c.payloadBuf) {
		c.payloadBuf = make([]byte, want)
	}
	if err := c.readFull(c.payloadBuf[:want]); err != nil {
		return nil, 0, 0, fmt.Errorf("daq: read frame payload: %w", err)
	}

	samples := make([]float64, int(hdr.ScanCount)*c.numChannels)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(c.payloadBuf[i*4:])
		samples[i] = float64(math.Float32frombits(bits))
	}
	return samples, int(hdr.DeviceBacklog), int(hdr.DriverBacklog), nil
}

// StreamStop issues the stop command.
func (c *SerialClient) StreamStop() error {
	if c.port == nil {
		return fmt.Errorf("daq: device not open")
	}
	if err := c.writeLine("STP\r\n"); err != nil {
		return fmt.Errorf("daq: stream stop: %w", err)
	}
	return nil
}

// Close closes the serial port.
func (c *SerialClient) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	if err != nil {
		return fmt.Errorf("daq: close %s: %w", c.portName, err)
	}
	return nil
}

// DroppedScans reports how many scans have been discarded while
// recovering frame sync since the port was opened.
func (c *SerialClient) DroppedScans() int64 {
	return c.droppedScans
}

// writeLine writes a full command line, looping on short writes.
func (c *SerialClient) writeLine(line string) error {
	buf := []byte(line)
	for len(buf) > 0 {
		n, err := c.port.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// readFull loops until buf is filled. A zero-byte read mid-frame means the
// device stalled inside a frame, which is a hard protocol fault.
func (c *SerialClient) readFull(buf []byte) error {
	count := 0
	for count < len(buf) {
		n, err := c.port.Read(buf[count:])
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("timed out mid-frame after %d of %d bytes", count, len(buf))
		}
		count += n
	}
	return nil
}

// resync discards bytes until the next sync marker so one corrupted frame
// does not poison every read after it. The frame found at the marker is
// consumed whole, since its payload boundary is the only safe place to
// resume; its scans are counted as dropped.
func (c *SerialClient) resync() error {
	one := make([]byte, 1)
	for {
		n, err := c.port.Read(one)
		if err != nil {
			return fmt.Errorf("daq: resync: %w", err)
		}
		if n == 0 {
			// Port drained without finding a marker; next poll retries.
			slog.Warn("serial frame out of sync, no marker found", "port", c.portName, "total_dropped_scans", c.droppedScans)
			return nil
		}
		if one[0] == frameSync {
			// Put the frame back together on the next read by consuming
			// the rest of it now.
			if err := c.readFull(c.headerBuf[1:]); err != nil {
				return fmt.Errorf("daq: resync header: %w", err)
			}
			var hdr frameHeader
			if err := binary.Read(bytes.NewReader(c.headerBuf[1:]), binary.LittleEndian, &hdr); err != nil {
				return fmt.Errorf("daq: resync header decode: %w", err)
			}
			skip := int(hdr.ScanCount) * c.numChannels * 4
			if skip > len(c.payloadBuf) {
				c.payloadBuf = make([]byte, skip)
			}
			if err := c.readFull(c.payloadBuf[:skip]); err != nil {
				return fmt.Errorf("daq: resync payload: %w", err)
			}
			c.droppedScans += int64(hdr.ScanCount)
			slog.Warn("serial frame out of sync, frame discarded",
				"port", c.portName, "dropped_scans", hdr.ScanCount, "total_dropped_scans", c.droppedScans)
			return nil
		}
	}
}
