// Package serialport adapts github.com/tarm/serial to the minimal
// io.ReadWriteCloser the duofern Transport needs, so Transport can be
// exercised against an in-memory fake in tests without touching real
// hardware.
package serialport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Port is the surface Transport depends on.
type Port interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
}

// Config holds the parameters of spec.md §4.1: 115200 baud, 8-N-1, a USB
// CDC transceiver at a fixed device path.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultConfig returns the fixed framing spec.md §4.1 mandates; only the
// device path varies between installations.
func DefaultConfig(device string) Config {
	return Config{Device: device, Baud: 115200, ReadTimeout: 100 * time.Millisecond}
}

// Open opens the native serial port.
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serialport: device path required")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Device, err)
	}
	return port, nil
}
