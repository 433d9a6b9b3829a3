package daq

import "errors"

// ErrNoScans is returned by StreamRead when the device buffer held no
// complete scan. It is the one transient condition a caller tolerates;
// every other error is terminal for the stream.
var ErrNoScans = errors.New("daq: no scans returned")

// Client is the capability contract for a streaming acquisition device.
// Implementations must keep StreamRead non-blocking: when no data is
// buffered it returns ErrNoScans immediately instead of waiting.
type Client interface {
	// Open acquires the device resource.
	Open() error

	// WriteConfig applies named configuration registers before streaming.
	WriteConfig(names []string, values []float64) error

	// StreamStart puts the device in free-running acquisition mode.
	StreamStart(scansPerRead, numChannels int, addresses []int, sampleRate float64) error

	// StreamRead drains whatever complete scans the device has buffered.
	// The returned block is flat and scan-major; its length is always a
	// multiple of the configured channel count. The two backlog counts
	// report samples still queued device-side and driver-side.
	StreamRead() (samples []float64, deviceBacklog, driverBacklog int, err error)

	// StreamStop halts acquisition; the connection stays open.
	StreamStop() error

	// Close releases the device resource.
	Close() error
}
