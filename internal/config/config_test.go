package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daqcapture.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadWithProfile_DefaultProfile(t *testing.T) {
	path := writeConfigFile(t, `
configs:
  default:
    acquisition:
      sample_rate: 2000
      sample_width: 4
    device:
      backend: sim
    channels:
      - name: AIN0
        address: 0
      - name: AIN2
        address: 4
    output:
      directory: /tmp/daq
`)

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("LoadWithProfile: %v", err)
	}

	if cfg.Acquisition.SampleRate != 2000 {
		t.Errorf("sample_rate = %g, want 2000", cfg.Acquisition.SampleRate)
	}
	if cfg.Acquisition.SampleWidth != 4 {
		t.Errorf("sample_width = %d, want 4", cfg.Acquisition.SampleWidth)
	}
	// Unset fields inherit the built-in defaults.
	if cfg.Acquisition.PollIntervalMs != 100 {
		t.Errorf("poll_interval_ms = %d, want built-in 100", cfg.Acquisition.PollIntervalMs)
	}
	if cfg.Acquisition.DisplayBufferSize != 5000 {
		t.Errorf("display_buffer_size = %d, want built-in 5000", cfg.Acquisition.DisplayBufferSize)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[1].Name != "AIN2" || cfg.Channels[1].Address != 4 {
		t.Errorf("channels incorrect: %+v", cfg.Channels)
	}
}

func TestLoadWithProfile_ProfileInheritsFromDefault(t *testing.T) {
	path := writeConfigFile(t, `
active_config: bench
configs:
  default:
    acquisition:
      sample_rate: 1000
      decimation: 5
    device:
      backend: sim
    channels:
      - name: AIN0
        address: 0
    output:
      directory: /tmp/daq
  bench:
    acquisition:
      sample_rate: 10000
`)

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("LoadWithProfile: %v", err)
	}

	if cfg.Acquisition.SampleRate != 10000 {
		t.Errorf("sample_rate = %g, want profile-specific 10000", cfg.Acquisition.SampleRate)
	}
	if cfg.Acquisition.Decimation != 5 {
		t.Errorf("decimation = %d, want inherited 5", cfg.Acquisition.Decimation)
	}
	if len(cfg.Channels) != 1 || cfg.Channels[0].Name != "AIN0" {
		t.Errorf("channels not inherited: %+v", cfg.Channels)
	}
	if cfg.Output.Directory != "/tmp/daq" {
		t.Errorf("output.directory = %s, want inherited /tmp/daq", cfg.Output.Directory)
	}
}

func TestLoadWithProfile_ExplicitProfileFlagWins(t *testing.T) {
	path := writeConfigFile(t, `
active_config: default
configs:
  default:
    device:
      backend: sim
    channels:
      - name: AIN0
        address: 0
    output:
      directory: /tmp/daq
  highrate:
    acquisition:
      sample_rate: 50000
`)

	cfg, err := LoadWithProfile(path, "highrate")
	if err != nil {
		t.Fatalf("LoadWithProfile: %v", err)
	}
	if cfg.Acquisition.SampleRate != 50000 {
		t.Errorf("sample_rate = %g, want 50000 from highrate profile", cfg.Acquisition.SampleRate)
	}
}

func TestLoadWithProfile_UnknownProfile(t *testing.T) {
	path := writeConfigFile(t, `
configs:
  default:
    device:
      backend: sim
    channels:
      - name: AIN0
        address: 0
    output:
      directory: /tmp/daq
`)

	if _, err := LoadWithProfile(path, "nope"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Device.Backend = "sim"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero sample rate", func(c *Config) { c.Acquisition.SampleRate = 0 }, "sample_rate"},
		{"negative poll interval", func(c *Config) { c.Acquisition.PollIntervalMs = -1 }, "poll_interval_ms"},
		{"zero refresh", func(c *Config) { c.Acquisition.DisplayRefreshMs = 0 }, "display_refresh_ms"},
		{"zero decimation", func(c *Config) { c.Acquisition.Decimation = 0 }, "decimation"},
		{"bad width", func(c *Config) { c.Acquisition.SampleWidth = 2 }, "sample_width"},
		{"zero buffer", func(c *Config) { c.Acquisition.DisplayBufferSize = 0 }, "display_buffer_size"},
		{"bad backend", func(c *Config) { c.Device.Backend = "usb" }, "backend"},
		{"serial without port", func(c *Config) { c.Device.Backend = "serial"; c.Device.Port = "" }, "device.port"},
		{"no channels", func(c *Config) { c.Channels = nil }, "channel"},
		{"unnamed channel", func(c *Config) { c.Channels[0].Name = "" }, "name"},
		{"duplicate name", func(c *Config) { c.Channels[1].Name = c.Channels[0].Name }, "duplicate name"},
		{"duplicate address", func(c *Config) { c.Channels[1].Address = c.Channels[0].Address }, "duplicate address"},
		{"negative address", func(c *Config) { c.Channels[0].Address = -2 }, "address"},
		{"no output dir", func(c *Config) { c.Output.Directory = "" }, "output.directory"},
		{"unnamed register", func(c *Config) {
			c.Device.Registers = []Register{{Name: "", Value: 10}}
		}, "registers"},
		{"duplicate register", func(c *Config) {
			c.Device.Registers = []Register{{Name: "AIN_ALL_RANGE", Value: 10}, {Name: "AIN_ALL_RANGE", Value: 1}}
		}, "duplicate register"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestChannelAccessors(t *testing.T) {
	cfg := Default()
	names := cfg.ChannelNames()
	addrs := cfg.ChannelAddresses()
	if len(names) != 2 || names[0] != "AIN0" || names[1] != "AIN1" {
		t.Errorf("ChannelNames = %v", names)
	}
	if len(addrs) != 2 || addrs[0] != 0 || addrs[1] != 2 {
		t.Errorf("ChannelAddresses = %v", addrs)
	}
}

func TestRegisterAccessorsAndMerge(t *testing.T) {
	path := writeConfigFile(t, `
active_config: ranged
configs:
  default:
    device:
      backend: sim
      registers:
        - name: AIN_ALL_RANGE
          value: 10
    output:
      directory: /tmp/daq
  ranged:
    device:
      registers:
        - name: AIN_ALL_RANGE
          value: 1
        - name: STREAM_RESOLUTION_INDEX
          value: 2
`)

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("LoadWithProfile: %v", err)
	}

	// A profile that lists registers replaces the whole set.
	names := cfg.RegisterNames()
	values := cfg.RegisterValues()
	if len(names) != 2 || names[0] != "AIN_ALL_RANGE" || names[1] != "STREAM_RESOLUTION_INDEX" {
		t.Errorf("RegisterNames = %v", names)
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Errorf("RegisterValues = %v", values)
	}
}
