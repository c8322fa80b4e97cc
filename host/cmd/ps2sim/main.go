// Command ps2sim runs the keyboard firmware core against a simulated PC host
// and logs the diagnostic frames it produces, exactly as ps2mon would show
// them for a real board.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ps2key/core"
	"ps2key/host/config"
	"ps2key/host/logging"
	"ps2key/host/monitor"
	"ps2key/protocol"
	"ps2key/sim"
)

const settleTicks = 1 << 20

var (
	configPath = flag.String("config", "", "TOML config file")
	level      = flag.String("level", "", "Log level (overrides config)")
	format     = flag.String("format", "", "Log format: console or json")
	knocks     = flag.Int("knocks", -1, "Number of sensor knocks to simulate")
	typeHex    = flag.String("type-hex", "", "Comma separated bytes to type as hex digits, e.g. 5A,1C")
	dumpTrace  = flag.Bool("dump-trace", false, "Print the trace ring at the end")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init("ps2sim", cfg.Log.Level, cfg.Log.Format)
	core.SetDebugWriter(func(s string) { logger.Info().Str("src", "firmware").Msg(s) })
	core.SetDebugEnabled(*dumpTrace)

	if err := run(cfg.Sim, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(sc config.Sim, logger zerolog.Logger) error {
	rig := sim.NewRig(sc.Keyboard)
	if sc.PollEvery > 0 {
		rig.PollEvery = sc.PollEvery
	}
	kb := rig.Keyboard

	reg := kb.Interpreter().Registry()
	logger.Debug().
		Int("count", reg.Count()).
		Str("dictionary", reg.GetDictionary()).
		Msg("commands")

	// Trace events travel the same framed link a board uses
	pr, pw := io.Pipe()
	out := protocol.NewScratchOutput()
	reporter := protocol.NewReporter(out)
	reporter.SetFlushCallback(func() {
		pw.Write(out.Result())
		out.Reset()
	})
	kb.Trace().SetSink(reporter.Report)

	m := monitor.New(pr, logger)
	m.StopOnEOF = true
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	start := time.Now()
	if err := scenario(rig, sc, logger); err != nil {
		pw.CloseWithError(err)
		<-done
		return err
	}
	pw.Close()
	if err := <-done; err != nil {
		return err
	}

	if core.IsDebugEnabled() {
		kb.Trace().Dump()
	}

	st := kb.Engine().Stats()
	logger.Info().
		Hex("host_sent", rig.Host.Sent()).
		Hex("host_received", rig.Host.Received()).
		Uint32("bytes_sent", st.BytesSent).
		Uint32("bytes_received", st.BytesReceived).
		Uint32("device_ms", kb.Clock().Now()).
		Int("ticks", rig.Ticks()).
		Dur("elapsed", time.Since(start)).
		Msg("done")
	m.Summary()
	return nil
}

func scenario(rig *sim.Rig, sc config.Sim, logger zerolog.Logger) error {
	kb := rig.Keyboard
	kb.Start()

	if len(sc.HostScript) > 0 {
		rig.Host.Send(sc.HostScript...)
		if !rig.Settle(settleTicks) {
			return fmt.Errorf("host script % X did not complete", sc.HostScript)
		}
		for _, err := range rig.Host.Errors() {
			logger.Warn().Err(err).Msg("host")
		}
	}

	// Sensor triggers are ignored until power-up ends
	rig.RunMillis(kb.Config().PowerUpHold)

	gap := uint32(sc.KnockGap / time.Millisecond)
	for i := 0; i < sc.Knocks; i++ {
		rig.Knock(5)
		rig.RunMillis(gap)
	}
	if !rig.Settle(settleTicks) {
		return fmt.Errorf("key report did not complete")
	}

	for _, b := range sc.TypeHex {
		if !kb.TypeHex(b) {
			return fmt.Errorf("type-ahead full at 0x%02X", b)
		}
		if !rig.Settle(settleTicks) {
			return fmt.Errorf("typing 0x%02X did not complete", b)
		}
	}
	return nil
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *format != "" {
		cfg.Log.Format = *format
	}
	if *knocks >= 0 {
		cfg.Sim.Knocks = *knocks
	}
	if *typeHex != "" {
		bs, err := parseBytes(*typeHex)
		if err != nil {
			return cfg, err
		}
		cfg.Sim.TypeHex = bs
	}
	return cfg, nil
}

func parseBytes(s string) ([]byte, error) {
	var out []byte
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimPrefix(strings.TrimSpace(f), "0x")
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("parse byte %q: %w", f, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}
