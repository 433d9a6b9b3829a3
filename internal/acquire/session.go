package acquire

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/openlabdaq/daqcapture/internal/binlog"
	"github.com/openlabdaq/daqcapture/internal/daq"
	"github.com/openlabdaq/daqcapture/internal/ring"
	"github.com/openlabdaq/daqcapture/internal/scheduler"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle      State = "IDLE"
	StateStreaming State = "STREAMING"
	StateError     State = "ERROR"
)

// Sink consumes read-only snapshots of the per-channel display buffers.
// Render is called at most once per refresh tick per channel, possibly
// with fewer than capacity samples before the buffer first fills.
type Sink interface {
	Render(channelIndex int, samples []float64)
}

// Params is the fixed configuration of one session. Nothing here changes
// while streaming.
type Params struct {
	SampleRate        float64
	PollInterval      time.Duration
	DisplayRefresh    time.Duration
	Decimation        int
	DisplayBufferSize int
	ChannelNames      []string
	ChannelAddresses  []int

	// Device registers written before the stream starts.
	ConfigNames  []string
	ConfigValues []float64
}

// LogOpener creates the binary log and metadata sidecar for a run
// starting at the given time. The session owns the returned writer.
type LogOpener func(start time.Time) (*binlog.Writer, error)

// Stats is a point-in-time view of session telemetry.
type Stats struct {
	State         State
	StartTime     time.Time
	TotalScans    int64
	ScansPerPoll  int
	EffectiveRate float64 // scans/s over the last whole rolling window
	DeviceBacklog int     // device-side samples not yet transferred
	DriverBacklog int     // driver-side samples not yet drained
	LastError     string
}

// Session orchestrates one acquisition run: it owns the device resource,
// the binary log writer, the per-channel display rings and the two
// periodic callbacks that drive them. All state transitions go through
// the session; the presentation layer only holds a reference and calls
// methods.
type Session struct {
	params  Params
	device  daq.Client
	sched   scheduler.Scheduler
	sink    Sink
	openLog LogOpener

	mu            sync.RWMutex
	state         State
	lastErr       error
	writer        *binlog.Writer
	demux         *Demux
	rings         []*ring.Buffer[float64]
	scansPerPoll  int
	startTime     time.Time
	totalScans    int64
	deviceBacklog int
	driverBacklog int

	// Rolling 1-second throughput window.
	windowStart   time.Time
	windowScans   int64
	effectiveRate float64

	ingestHandle  scheduler.Handle
	displayHandle scheduler.Handle
}

// NewSession builds an idle session. The channel set and buffer
// capacities are fixed for the session's lifetime.
func NewSession(params Params, device daq.Client, sched scheduler.Scheduler, sink Sink, openLog LogOpener) (*Session, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("acquire: sample rate must be > 0, got %g", params.SampleRate)
	}
	if params.PollInterval <= 0 || params.DisplayRefresh <= 0 {
		return nil, fmt.Errorf("acquire: poll and refresh intervals must be > 0")
	}
	if len(params.ChannelNames) == 0 || len(params.ChannelNames) != len(params.ChannelAddresses) {
		return nil, fmt.Errorf("acquire: %d channel names for %d addresses", len(params.ChannelNames), len(params.ChannelAddresses))
	}
	if len(params.ConfigNames) != len(params.ConfigValues) {
		return nil, fmt.Errorf("acquire: %d config names for %d values", len(params.ConfigNames), len(params.ConfigValues))
	}

	demux, err := NewDemux(len(params.ChannelNames), params.Decimation)
	if err != nil {
		return nil, err
	}

	rings := make([]*ring.Buffer[float64], len(params.ChannelNames))
	for i := range rings {
		rings[i], err = ring.New[float64](params.DisplayBufferSize)
		if err != nil {
			return nil, err
		}
	}

	return &Session{
		params:  params,
		device:  device,
		sched:   sched,
		sink:    sink,
		openLog: openLog,
		state:   StateIdle,
		demux:   demux,
		rings:   rings,
	}, nil
}

// Start runs the open → configure → stream-start sequence and registers
// the ingest and display callbacks. Any failure releases everything
// acquired so far and leaves the session Idle.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("acquire: can only start from idle, current: %s", s.state)
	}

	for _, b := range s.rings {
		b.Reset()
	}
	s.totalScans = 0
	s.deviceBacklog = 0
	s.driverBacklog = 0
	s.windowScans = 0
	s.windowStart = time.Time{}
	s.effectiveRate = 0
	s.lastErr = nil

	if err := s.device.Open(); err != nil {
		return fmt.Errorf("acquire: open device: %w", err)
	}

	// Both output files must exist before any device command is issued.
	start := time.Now()
	writer, err := s.openLog(start)
	if err != nil {
		s.device.Close()
		return fmt.Errorf("acquire: open log: %w", err)
	}

	if len(s.params.ConfigNames) > 0 {
		if err := s.device.WriteConfig(s.params.ConfigNames, s.params.ConfigValues); err != nil {
			writer.Abort()
			s.device.Close()
			return fmt.Errorf("acquire: write device config: %w", err)
		}
	}

	// Computed once; never recomputed mid-session.
	scansPerPoll := int(math.Round(s.params.SampleRate * s.params.PollInterval.Seconds()))
	if scansPerPoll < 1 {
		scansPerPoll = 1
	}

	if err := s.device.StreamStart(scansPerPoll, len(s.params.ChannelNames), s.params.ChannelAddresses, s.params.SampleRate); err != nil {
		writer.Abort()
		s.device.Close()
		return fmt.Errorf("acquire: start stream: %w", err)
	}

	s.writer = writer
	s.scansPerPoll = scansPerPoll
	s.startTime = start
	s.state = StateStreaming

	s.ingestHandle = s.sched.Schedule(s.params.PollInterval, s.onIngestPoll)
	s.displayHandle = s.sched.Schedule(s.params.DisplayRefresh, s.onDisplayRefresh)

	slog.Info("acquisition started",
		"sample_rate", s.params.SampleRate,
		"channels", len(s.params.ChannelNames),
		"scans_per_poll", scansPerPoll,
		"poll_interval", s.params.PollInterval,
		"display_refresh", s.params.DisplayRefresh)
	return nil
}

// onIngestPoll drains the device buffer once: log first, then counters,
// then the display rings. "No scans yet" is the one tolerated transient.
func (s *Session) onIngestPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return
	}

	block, deviceBacklog, driverBacklog, err := s.device.StreamRead()
	if errors.Is(err, daq.ErrNoScans) {
		return
	}
	if err != nil {
		s.failLocked(fmt.Errorf("acquire: stream read: %w", err))
		return
	}
	if len(block) == 0 {
		return
	}

	if err := s.writer.Append(block); err != nil {
		s.failLocked(fmt.Errorf("acquire: log append: %w", err))
		return
	}

	scans := int64(len(block) / len(s.params.ChannelNames))
	s.totalScans += scans
	s.deviceBacklog = deviceBacklog
	s.driverBacklog = driverBacklog
	s.updateWindow(scans)

	for ch, seq := range s.demux.Split(block) {
		s.rings[ch].Append(seq)
	}
}

// updateWindow advances the 1-second rolling throughput window.
func (s *Session) updateWindow(scans int64) {
	now := time.Now()
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	s.windowScans += scans
	if elapsed := now.Sub(s.windowStart); elapsed >= time.Second {
		s.effectiveRate = float64(s.windowScans) / elapsed.Seconds()
		s.windowScans = 0
		s.windowStart = now
	}
}

// onDisplayRefresh hands read-only snapshots to the sink. It never writes
// session state, so a skipped or coalesced refresh has no correctness
// impact.
func (s *Session) onDisplayRefresh() {
	s.mu.RLock()
	if s.state != StateStreaming {
		s.mu.RUnlock()
		return
	}
	snapshots := make([][]float64, len(s.rings))
	for i, b := range s.rings {
		snapshots[i] = b.Snapshot()
	}
	s.mu.RUnlock()

	for ch, snap := range snapshots {
		s.sink.Render(ch, snap)
	}
}

// Stop cancels both callbacks, best-effort stops the device, finalizes
// the files and returns to Idle. Stopping a session that is not streaming
// performs no I/O and raises no fault.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return nil
	}

	s.cancelCallbacksLocked()
	s.releaseDeviceLocked()

	err := s.writer.Close()
	s.writer = nil
	s.state = StateIdle

	slog.Info("acquisition stopped", "total_scans", s.totalScans, "duration", time.Since(s.startTime).Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("acquire: finalize log: %w", err)
	}
	return nil
}

// Reset clears a terminal Error back to Idle so a new Start may be
// attempted.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateError {
		return fmt.Errorf("acquire: can only reset from error, current: %s", s.state)
	}
	s.state = StateIdle
	s.lastErr = nil
	return nil
}

// failLocked is the fatal stream-fault path: cancel timers, best-effort
// device teardown, finalize files, transition to Error. The log is left
// exactly as written; it is internally consistent up to the last
// successful append.
func (s *Session) failLocked(err error) {
	slog.Error("acquisition fault", "error", err, "total_scans", s.totalScans)

	s.cancelCallbacksLocked()
	s.releaseDeviceLocked()

	if s.writer != nil {
		if cerr := s.writer.Close(); cerr != nil {
			slog.Warn("log finalization failed after fault", "error", cerr)
		}
		s.writer = nil
	}

	s.lastErr = err
	s.state = StateError
}

// cancelCallbacksLocked cancels both periodic callbacks before any shared
// resource is touched, so a late tick never observes a closed handle.
func (s *Session) cancelCallbacksLocked() {
	if s.ingestHandle != nil {
		s.ingestHandle.Cancel()
		s.ingestHandle = nil
	}
	if s.displayHandle != nil {
		s.displayHandle.Cancel()
		s.displayHandle = nil
	}
}

// releaseDeviceLocked is fire-and-forget: finalization must complete
// regardless of what state the device is in.
func (s *Session) releaseDeviceLocked() {
	if err := s.device.StreamStop(); err != nil {
		slog.Warn("device stream stop failed", "error", err)
	}
	if err := s.device.Close(); err != nil {
		slog.Warn("device close failed", "error", err)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stats returns a copy of the session telemetry.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		State:         s.state,
		StartTime:     s.startTime,
		TotalScans:    s.totalScans,
		ScansPerPoll:  s.scansPerPoll,
		EffectiveRate: s.effectiveRate,
		DeviceBacklog: s.deviceBacklog,
		DriverBacklog: s.driverBacklog,
	}
	if s.lastErr != nil {
		stats.LastError = s.lastErr.Error()
	}
	return stats
}
