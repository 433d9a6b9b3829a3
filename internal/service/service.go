package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openlabdaq/daqcapture/internal/acquire"
	"github.com/openlabdaq/daqcapture/internal/binlog"
	"github.com/openlabdaq/daqcapture/internal/config"
	"github.com/openlabdaq/daqcapture/internal/daq"
	"github.com/openlabdaq/daqcapture/internal/scheduler"
)

// Service is the core acquisition service interface.
type Service interface {
	// Streaming operations
	StartStream(runName string) error
	StopStream() error
	ResetError() error
	GetStatus() (acquire.Stats, *StreamSession)

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Run file operations
	ListRuns() ([]RunInfo, error)
	GetRunInfo(name string) (*RunInfo, error)

	// Error tracking
	GetLastError() string

	Cleanup()
}

// StreamSession describes the run currently being captured.
type StreamSession struct {
	RunName      string    `json:"run_name"`
	StartTime    time.Time `json:"start_time"`
	DataFile     string    `json:"data_file"`
	MetaFile     string    `json:"meta_file"`
	ChannelNames []string  `json:"channel_names"`
	SampleRate   float64   `json:"sample_rate"`
}

// RunInfo describes a completed run on disk.
type RunInfo struct {
	Name         string    `json:"name"`
	DataFile     string    `json:"data_file"`
	MetaFile     string    `json:"meta_file"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	TotalScans   int64     `json:"total_scans"`
	DurationS    float64   `json:"duration_s"`
}

// CaptureService is the main service implementation.
type CaptureService struct {
	configFile string
	sched      scheduler.Scheduler
	sink       acquire.Sink

	// mu guards the cfg/device/session triple, which LoadProfile
	// replaces as a unit.
	mu      sync.RWMutex
	cfg     *config.Config
	device  daq.Client
	session *acquire.Session

	// Current run, guarded separately so GetStatus never blocks on
	// the session mutex longer than a Stats read.
	runMutex sync.RWMutex
	run      *StreamSession

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New wires a service from a loaded configuration. The device backend
// is chosen from the config (serial, sim, or auto).
func New(cfg *config.Config, configFile string) (*CaptureService, error) {
	device, err := daq.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newWith(cfg, configFile, device, scheduler.NewTicker(), nopSink{})
}

// NewWithSink is New with a display sink attached.
func NewWithSink(cfg *config.Config, configFile string, sink acquire.Sink) (*CaptureService, error) {
	device, err := daq.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newWith(cfg, configFile, device, scheduler.NewTicker(), sink)
}

func newWith(cfg *config.Config, configFile string, device daq.Client, sched scheduler.Scheduler, sink acquire.Sink) (*CaptureService, error) {
	s := &CaptureService{
		cfg:        cfg,
		configFile: configFile,
		device:     device,
		sched:      sched,
		sink:       sink,
	}
	session, err := acquire.NewSession(sessionParams(cfg), device, sched, sink, s.openRunLog)
	if err != nil {
		return nil, err
	}
	s.session = session
	return s, nil
}

// current returns the cfg/session pair in effect, so callers never hold
// the swap lock across session calls.
func (s *CaptureService) current() (*config.Config, *acquire.Session) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.session
}

func sessionParams(cfg *config.Config) acquire.Params {
	return acquire.Params{
		SampleRate:        cfg.Acquisition.SampleRate,
		PollInterval:      time.Duration(cfg.Acquisition.PollIntervalMs) * time.Millisecond,
		DisplayRefresh:    time.Duration(cfg.Acquisition.DisplayRefreshMs) * time.Millisecond,
		Decimation:        cfg.Acquisition.Decimation,
		DisplayBufferSize: cfg.Acquisition.DisplayBufferSize,
		ChannelNames:      cfg.ChannelNames(),
		ChannelAddresses:  cfg.ChannelAddresses(),
		ConfigNames:       cfg.RegisterNames(),
		ConfigValues:      cfg.RegisterValues(),
	}
}

// openRunLog creates the data and metadata files for the pending run.
// The run record set up by StartStream names the files.
func (s *CaptureService) openRunLog(start time.Time) (*binlog.Writer, error) {
	cfg, _ := s.current()

	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	if s.run == nil {
		return nil, fmt.Errorf("service: no run prepared")
	}
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stem := fmt.Sprintf("%s_%s", CleanRunName(s.run.RunName), start.Format("20060102_150405"))
	s.run.StartTime = start
	s.run.DataFile = filepath.Join(cfg.Output.Directory, stem+".bin")
	s.run.MetaFile = filepath.Join(cfg.Output.Directory, stem+".meta")

	return binlog.Create(s.run.DataFile, s.run.MetaFile, binlog.Meta{
		Start:        start,
		SampleRate:   cfg.Acquisition.SampleRate,
		ChannelNames: cfg.ChannelNames(),
		SampleWidth:  cfg.Acquisition.SampleWidth,
	})
}

// StartStream begins a capture run (IDLE -> STREAMING).
func (s *CaptureService) StartStream(runName string) error {
	slog.Debug("Service.StartStream called", "run_name", runName)
	s.clearLastError()

	cfg, session := s.current()
	if strings.TrimSpace(runName) == "" {
		runName = "run"
	}
	s.runMutex.Lock()
	s.run = &StreamSession{
		RunName:      runName,
		ChannelNames: cfg.ChannelNames(),
		SampleRate:   cfg.Acquisition.SampleRate,
	}
	s.runMutex.Unlock()

	err := session.Start()
	if err != nil {
		slog.Error("Service.StartStream failed", "error", err)
		s.setLastError(fmt.Sprintf("Failed to start streaming: %v", err))
		s.runMutex.Lock()
		s.run = nil
		s.runMutex.Unlock()
	}
	return err
}

// StopStream ends the current run (STREAMING -> IDLE). Calling it while
// idle is harmless.
func (s *CaptureService) StopStream() error {
	_, session := s.current()
	err := session.Stop()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop streaming: %v", err))
		return err
	}
	s.clearLastError()
	s.runMutex.Lock()
	s.run = nil
	s.runMutex.Unlock()
	return nil
}

// ResetError acknowledges a fault (ERROR -> IDLE).
func (s *CaptureService) ResetError() error {
	_, session := s.current()
	if err := session.Reset(); err != nil {
		return err
	}
	s.clearLastError()
	s.runMutex.Lock()
	s.run = nil
	s.runMutex.Unlock()
	return nil
}

// GetStatus returns the session statistics and, while streaming, the
// current run record. A session fault is mirrored into the service's
// last-error so callers see it through GetLastError as well.
func (s *CaptureService) GetStatus() (acquire.Stats, *StreamSession) {
	_, session := s.current()
	stats := session.Stats()

	if stats.State == acquire.StateError && stats.LastError != "" {
		s.setLastError(fmt.Sprintf("Stream fault: %s", stats.LastError))
	}

	s.runMutex.RLock()
	defer s.runMutex.RUnlock()
	if s.run == nil || stats.State != acquire.StateStreaming {
		return stats, nil
	}
	run := *s.run
	return stats, &run
}

// LoadProfile replaces the configuration and rebuilds the session.
// Refused unless the session is idle: a streaming session would lose its
// run, and an errored one must be acknowledged first.
func (s *CaptureService) LoadProfile(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state := s.session.State(); state != acquire.StateIdle {
		return fmt.Errorf("cannot switch profiles while session is %s", state)
	}

	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}
	device, err := daq.NewClient(newCfg)
	if err != nil {
		return err
	}
	session, err := acquire.NewSession(sessionParams(newCfg), device, s.sched, s.sink, s.openRunLog)
	if err != nil {
		return err
	}

	s.cfg = newCfg
	s.device = device
	s.session = session
	return nil
}

// GetConfig returns the current configuration.
func (s *CaptureService) GetConfig() *config.Config {
	cfg, _ := s.current()
	return cfg
}

// ListRuns returns the captured runs in the output directory, newest
// first.
func (s *CaptureService) ListRuns() ([]RunInfo, error) {
	cfg, _ := s.current()
	outDir := cfg.Output.Directory
	files, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var runs []RunInfo
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".bin") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		name := strings.TrimSuffix(file.Name(), ".bin")
		run := RunInfo{
			Name:         name,
			DataFile:     filepath.Join(outDir, file.Name()),
			MetaFile:     filepath.Join(outDir, name+".meta"),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
		}
		if meta, err := binlog.ParseMeta(run.MetaFile); err == nil {
			run.TotalScans = meta.TotalScans
			run.DurationS = meta.Duration
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ModTime.After(runs[j].ModTime)
	})
	return runs, nil
}

// GetRunInfo looks up a single run by its file stem.
func (s *CaptureService) GetRunInfo(name string) (*RunInfo, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Name == name {
			return &run, nil
		}
	}
	return nil, fmt.Errorf("run not found: %s", name)
}

// GetLastError returns the last error message (thread-safe).
func (s *CaptureService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *CaptureService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err
}

func (s *CaptureService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// Cleanup stops any active stream and releases the device.
func (s *CaptureService) Cleanup() {
	_, session := s.current()
	if err := session.Stop(); err != nil {
		slog.Warn("Cleanup stop failed", "error", err)
	}
}

// nopSink discards display snapshots.
type nopSink struct{}

func (nopSink) Render(int, []float64) {}

// CleanRunName reduces a run name to the filename-safe form the run
// files are created with.
func CleanRunName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' {
			result.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
	if cleaned == "" {
		cleaned = "run"
	}
	return cleaned
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
