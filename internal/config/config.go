package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is a fully-resolved acquisition configuration for one session.
type Config struct {
	Acquisition AcquisitionConfig `mapstructure:"acquisition" yaml:"acquisition"`
	Device      DeviceConfig      `mapstructure:"device" yaml:"device"`
	Channels    []Channel         `mapstructure:"channels" yaml:"channels"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
}

type AcquisitionConfig struct {
	SampleRate        float64 `mapstructure:"sample_rate" yaml:"sample_rate"`                 // Hz
	PollIntervalMs    int     `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`       // ingest drain period
	DisplayRefreshMs  int     `mapstructure:"display_refresh_ms" yaml:"display_refresh_ms"`   // display snapshot period
	Decimation        int     `mapstructure:"decimation" yaml:"decimation"`                   // keep every Nth scan for display
	DisplayBufferSize int     `mapstructure:"display_buffer_size" yaml:"display_buffer_size"` // per-channel ring capacity
	SampleWidth       int     `mapstructure:"sample_width" yaml:"sample_width"`               // bytes per logged value: 4 or 8
}

type DeviceConfig struct {
	Backend   string     `mapstructure:"backend" yaml:"backend"` // "serial", "sim", "auto"
	Port      string     `mapstructure:"port" yaml:"port"`
	BaudRate  int        `mapstructure:"baud_rate" yaml:"baud_rate"`
	Registers []Register `mapstructure:"registers" yaml:"registers,omitempty"`
}

// Register is a named device setting written once before streaming
// starts, e.g. an input range or a filter setting.
type Register struct {
	Name  string  `mapstructure:"name" yaml:"name"`
	Value float64 `mapstructure:"value" yaml:"value"`
}

// Channel binds a display name to the device's fixed channel address.
type Channel struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Address int    `mapstructure:"address" yaml:"address"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// RootConfig is the on-disk file shape: named profiles plus a selector.
type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

var defaultConfig = Config{
	Acquisition: AcquisitionConfig{
		SampleRate:        1000,
		PollIntervalMs:    100,
		DisplayRefreshMs:  500,
		Decimation:        1,
		DisplayBufferSize: 5000,
		SampleWidth:       8,
	},
	Device: DeviceConfig{
		Backend:  "auto",
		BaudRate: 460800,
	},
	Channels: []Channel{
		{Name: "AIN0", Address: 0},
		{Name: "AIN1", Address: 2},
	},
	Output: OutputConfig{
		Directory: filepath.Join(os.Getenv("HOME"), "Data", "daqcapture"),
	},
}

// Default returns a copy of the built-in configuration, used when no file
// is given.
func Default() *Config {
	cfg := defaultConfig
	cfg.Channels = make([]Channel, len(defaultConfig.Channels))
	copy(cfg.Channels, defaultConfig.Channels)
	return &cfg
}

// LoadWithProfile reads the config file, selects a profile (flag override,
// then active_config, then "default") and resolves it against the default
// profile so sparse profiles inherit the rest.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := readRootConfig(configFile)
	if err != nil {
		return nil, err
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	// Merge with the default profile unless we already are the default.
	if configName != "default" {
		if base, ok := rootConfig.Configs["default"]; ok {
			selected = mergeConfigs(base, selected)
		}
	}

	resolved := mergeConfigs(Default(), selected)
	resolved.Output.Directory = expandPath(resolved.Output.Directory)

	if err := Validate(resolved); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return resolved, nil
}

// readRootConfig parses and shape-checks the file.
func readRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("DAQCAPTURE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("config file %s defines no profiles under 'configs'", configFile)
	}

	return &rootConfig, nil
}

// mergeConfigs fills unset fields of profile from base. Channels are
// all-or-nothing: a profile that lists any channel replaces the whole set,
// since a partial channel list has no meaningful merge.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{}
	if base != nil {
		*result = *base
		result.Channels = make([]Channel, len(base.Channels))
		copy(result.Channels, base.Channels)
		result.Device.Registers = make([]Register, len(base.Device.Registers))
		copy(result.Device.Registers, base.Device.Registers)
	}
	if profile == nil {
		return result
	}

	if profile.Acquisition.SampleRate != 0 {
		result.Acquisition.SampleRate = profile.Acquisition.SampleRate
	}
	if profile.Acquisition.PollIntervalMs != 0 {
		result.Acquisition.PollIntervalMs = profile.Acquisition.PollIntervalMs
	}
	if profile.Acquisition.DisplayRefreshMs != 0 {
		result.Acquisition.DisplayRefreshMs = profile.Acquisition.DisplayRefreshMs
	}
	if profile.Acquisition.Decimation != 0 {
		result.Acquisition.Decimation = profile.Acquisition.Decimation
	}
	if profile.Acquisition.DisplayBufferSize != 0 {
		result.Acquisition.DisplayBufferSize = profile.Acquisition.DisplayBufferSize
	}
	if profile.Acquisition.SampleWidth != 0 {
		result.Acquisition.SampleWidth = profile.Acquisition.SampleWidth
	}

	if profile.Device.Backend != "" {
		result.Device.Backend = profile.Device.Backend
	}
	if profile.Device.Port != "" {
		result.Device.Port = profile.Device.Port
	}
	if profile.Device.BaudRate != 0 {
		result.Device.BaudRate = profile.Device.BaudRate
	}
	if len(profile.Device.Registers) > 0 {
		result.Device.Registers = make([]Register, len(profile.Device.Registers))
		copy(result.Device.Registers, profile.Device.Registers)
	}

	if len(profile.Channels) > 0 {
		result.Channels = make([]Channel, len(profile.Channels))
		copy(result.Channels, profile.Channels)
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
	}

	return result
}

// Validate checks a resolved configuration for values the session cannot
// run with.
func Validate(cfg *Config) error {
	if cfg.Acquisition.SampleRate <= 0 {
		return fmt.Errorf("acquisition.sample_rate must be > 0, got %g", cfg.Acquisition.SampleRate)
	}
	if cfg.Acquisition.PollIntervalMs <= 0 {
		return fmt.Errorf("acquisition.poll_interval_ms must be > 0, got %d", cfg.Acquisition.PollIntervalMs)
	}
	if cfg.Acquisition.DisplayRefreshMs <= 0 {
		return fmt.Errorf("acquisition.display_refresh_ms must be > 0, got %d", cfg.Acquisition.DisplayRefreshMs)
	}
	if cfg.Acquisition.Decimation < 1 {
		return fmt.Errorf("acquisition.decimation must be >= 1, got %d", cfg.Acquisition.Decimation)
	}
	if cfg.Acquisition.DisplayBufferSize <= 0 {
		return fmt.Errorf("acquisition.display_buffer_size must be > 0, got %d", cfg.Acquisition.DisplayBufferSize)
	}
	if cfg.Acquisition.SampleWidth != 4 && cfg.Acquisition.SampleWidth != 8 {
		return fmt.Errorf("acquisition.sample_width must be 4 or 8, got %d", cfg.Acquisition.SampleWidth)
	}

	switch cfg.Device.Backend {
	case "serial", "sim", "auto":
	default:
		return fmt.Errorf("device.backend must be 'serial', 'sim' or 'auto', got: %s", cfg.Device.Backend)
	}
	if cfg.Device.Backend == "serial" && cfg.Device.Port == "" {
		return fmt.Errorf("device.port is required for the serial backend")
	}
	seenRegs := make(map[string]bool)
	for i, reg := range cfg.Device.Registers {
		if reg.Name == "" {
			return fmt.Errorf("device.registers[%d] must have a name", i)
		}
		if seenRegs[reg.Name] {
			return fmt.Errorf("device.registers[%d]: duplicate register '%s'", i, reg.Name)
		}
		seenRegs[reg.Name] = true
	}

	if len(cfg.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	seenNames := make(map[string]bool)
	seenAddrs := make(map[int]bool)
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d] must have a name", i)
		}
		if seenNames[ch.Name] {
			return fmt.Errorf("channels[%d]: duplicate name '%s'", i, ch.Name)
		}
		seenNames[ch.Name] = true
		if ch.Address < 0 {
			return fmt.Errorf("channels[%d] '%s': address must be >= 0, got %d", i, ch.Name, ch.Address)
		}
		if seenAddrs[ch.Address] {
			return fmt.Errorf("channels[%d] '%s': duplicate address %d", i, ch.Name, ch.Address)
		}
		seenAddrs[ch.Address] = true
	}

	if cfg.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}

	return nil
}

// ChannelNames returns the channel names in configured order.
func (c *Config) ChannelNames() []string {
	names := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		names[i] = ch.Name
	}
	return names
}

// ChannelAddresses returns the channel addresses in configured order.
func (c *Config) ChannelAddresses() []int {
	addrs := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		addrs[i] = ch.Address
	}
	return addrs
}

// RegisterNames returns the device register names in configured order.
func (c *Config) RegisterNames() []string {
	names := make([]string, len(c.Device.Registers))
	for i, reg := range c.Device.Registers {
		names[i] = reg.Name
	}
	return names
}

// RegisterValues returns the device register values in configured order.
func (c *Config) RegisterValues() []float64 {
	values := make([]float64, len(c.Device.Registers))
	for i, reg := range c.Device.Registers {
		values[i] = reg.Value
	}
	return values
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
