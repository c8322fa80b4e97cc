// Command ps2mon attaches to a board's diagnostic port and logs what the
// keyboard firmware reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ps2key/host/config"
	"ps2key/host/logging"
	"ps2key/host/monitor"
	"ps2key/host/serial"
	"ps2key/protocol"
)

var (
	configPath = flag.String("config", "", "TOML config file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	level      = flag.String("level", "", "Log level (overrides config)")
	format     = flag.String("format", "", "Log format: console or json")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init("ps2mon", cfg.Log.Level, cfg.Log.Format)
	logger.Info().Str("device", cfg.Serial.Device).Str("link", protocol.Version).Msg("connecting")

	port, err := serial.Open(&cfg.Serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	if err := port.Flush(); err != nil {
		logger.Warn().Err(err).Msg("flush failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := monitor.New(port, logger)
	err = m.Run(ctx)
	m.Summary()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *format != "" {
		cfg.Log.Format = *format
	}
	return cfg, nil
}
