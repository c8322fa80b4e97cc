// Package serial opens the board's USB CDC port for the diagnostic link.
package serial

import (
	"errors"
	"io"
	"time"
)

// Port is an open serial connection.
type Port interface {
	io.ReadWriteCloser

	Flush() error
}

// Config describes the port to open.
type Config struct {
	Device string

	// Baud is ignored by USB CDC but still passed to the driver.
	Baud int

	// ReadTimeout bounds each Read; zero blocks.
	ReadTimeout time.Duration
}

const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

var ErrNoDevice = errors.New("serial device not set")

func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Validate fills zero fields and rejects an empty device.
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	return nil
}
