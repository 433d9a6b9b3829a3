package daq

import (
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/openlabdaq/daqcapture/internal/config"
)

// BackendType identifies a device client implementation.
type BackendType string

const (
	BackendTypeSerial BackendType = "serial"
	BackendTypeSim    BackendType = "sim"
	BackendTypeAuto   BackendType = "auto"
)

// NewClient creates the device client selected by the configuration.
func NewClient(cfg *config.Config) (Client, error) {
	switch determineBackend(cfg) {
	case BackendTypeSerial:
		if cfg.Device.Port == "" {
			return nil, fmt.Errorf("daq: serial backend requires device.port")
		}
		return NewSerialClient(cfg.Device.Port, cfg.Device.BaudRate), nil
	case BackendTypeSim:
		return NewSimClient(), nil
	default:
		return nil, fmt.Errorf("daq: unknown backend: %s", cfg.Device.Backend)
	}
}

// determineBackend resolves "auto": serial when a port is configured,
// simulator otherwise.
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Device.Backend) {
	case "serial":
		return BackendTypeSerial
	case "sim":
		return BackendTypeSim
	case "auto", "":
		if cfg.Device.Port != "" {
			return BackendTypeSerial
		}
		return BackendTypeSim
	}
	return BackendType(cfg.Device.Backend)
}

// ListPorts returns the serial ports present on this machine, candidates
// for device.port.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("daq: list serial ports: %w", err)
	}
	return ports, nil
}
