// Package config loads the TOML file shared by the host tools.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"ps2key/core"
	"ps2key/host/serial"
)

// Config is the merged host tool configuration.
type Config struct {
	Serial serial.Config
	Log    Log
	Sim    Sim
}

type Log struct {
	Level  string
	Format string // "console" or "json"
}

// Sim drives the simulator: keyboard tunables plus the scenario to play.
type Sim struct {
	Keyboard   core.Config
	PollEvery  int
	Knocks     int
	KnockGap   time.Duration
	TypeHex    []byte
	HostScript []byte
}

type fileConfig struct {
	Serial struct {
		Device        string `toml:"device"`
		Baud          int    `toml:"baud"`
		ReadTimeout   string `toml:"read_timeout"`
		ReadTimeoutMS int64  `toml:"read_timeout_ms"`
	} `toml:"serial"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Sim struct {
		TickRate     uint32 `toml:"tick_rate"`
		KeyCode      int    `toml:"key_code"`
		KeyHoldMS    uint32 `toml:"key_hold_ms"`
		ParamTimeout uint32 `toml:"param_timeout_ms"`
		ResetDelayMS uint32 `toml:"reset_delay_ms"`
		PowerUpMS    uint32 `toml:"power_up_ms"`
		PollEvery    int    `toml:"poll_every"`
		Knocks       int    `toml:"knocks"`
		KnockGap     string `toml:"knock_gap"`
		KnockNeeded  int    `toml:"knocks_required"`
		KnockWindow  uint32 `toml:"knock_window_ms"`
		KnockMinGap  uint32 `toml:"knock_min_interval_ms"`
		TypeHex      []int  `toml:"type_hex"`
		HostScript   []int  `toml:"host_script"`
	} `toml:"sim"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Serial: *serial.DefaultConfig("/dev/ttyACM0"),
		Log:    Log{Level: "info", Format: "console"},
		Sim: Sim{
			Keyboard:   core.DefaultConfig(),
			PollEvery:  1,
			Knocks:     3,
			KnockGap:   800 * time.Millisecond,
			HostScript: []byte{core.CmdReadID, core.CmdSetLEDs, core.LEDNumLock, core.CmdEcho, core.CmdReset},
		},
	}
}

// Load reads path over the defaults. Only keys present in the file change
// the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("serial", "device") {
		if dev := strings.TrimSpace(raw.Serial.Device); dev != "" {
			cfg.Serial.Device = dev
		}
	}
	if meta.IsDefined("serial", "baud") {
		cfg.Serial.Baud = raw.Serial.Baud
	}
	if meta.IsDefined("serial", "read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Serial.ReadTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse serial.read_timeout: %w", err)
		}
		cfg.Serial.ReadTimeout = d
	}
	if meta.IsDefined("serial", "read_timeout_ms") {
		cfg.Serial.ReadTimeout = time.Duration(raw.Serial.ReadTimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		f := strings.ToLower(strings.TrimSpace(raw.Log.Format))
		if f != "console" && f != "json" {
			return Config{}, fmt.Errorf("log.format: unknown format %q", raw.Log.Format)
		}
		cfg.Log.Format = f
	}

	if err := loadSim(&cfg.Sim, &raw, meta); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadSim(sim *Sim, raw *fileConfig, meta toml.MetaData) error {
	kb := &sim.Keyboard
	in := raw.Sim

	if meta.IsDefined("sim", "tick_rate") {
		if in.TickRate < core.MinTickRate || in.TickRate > core.MaxTickRate {
			return fmt.Errorf("sim.tick_rate %d outside %d..%d", in.TickRate, core.MinTickRate, core.MaxTickRate)
		}
		kb.TickRate = in.TickRate
	}
	if meta.IsDefined("sim", "key_code") {
		code, err := toByte("sim.key_code", in.KeyCode)
		if err != nil {
			return err
		}
		kb.KeyCode = code
	}
	if meta.IsDefined("sim", "key_hold_ms") {
		kb.KeyHold = in.KeyHoldMS
	}
	if meta.IsDefined("sim", "param_timeout_ms") {
		kb.ParamTimeout = in.ParamTimeout
	}
	if meta.IsDefined("sim", "reset_delay_ms") {
		kb.ResetDelay = in.ResetDelayMS
	}
	if meta.IsDefined("sim", "power_up_ms") {
		kb.PowerUpHold = in.PowerUpMS
	}
	if meta.IsDefined("sim", "knocks_required") {
		if in.KnockNeeded < 1 || in.KnockNeeded > 0xFF {
			return fmt.Errorf("sim.knocks_required: %d out of range", in.KnockNeeded)
		}
		kb.Knock.Required = uint8(in.KnockNeeded)
	}
	if meta.IsDefined("sim", "knock_window_ms") {
		kb.Knock.Window = in.KnockWindow
	}
	if meta.IsDefined("sim", "knock_min_interval_ms") {
		kb.Knock.MinInterval = in.KnockMinGap
	}

	if meta.IsDefined("sim", "poll_every") {
		sim.PollEvery = in.PollEvery
	}
	if meta.IsDefined("sim", "knocks") {
		sim.Knocks = in.Knocks
	}
	if meta.IsDefined("sim", "knock_gap") {
		d, err := time.ParseDuration(strings.TrimSpace(in.KnockGap))
		if err != nil {
			return fmt.Errorf("parse sim.knock_gap: %w", err)
		}
		sim.KnockGap = d
	}
	if meta.IsDefined("sim", "type_hex") {
		bs, err := toBytes("sim.type_hex", in.TypeHex)
		if err != nil {
			return err
		}
		sim.TypeHex = bs
	}
	if meta.IsDefined("sim", "host_script") {
		bs, err := toBytes("sim.host_script", in.HostScript)
		if err != nil {
			return err
		}
		sim.HostScript = bs
	}
	return nil
}

func toByte(key string, v int) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%s: %d is not a byte", key, v)
	}
	return byte(v), nil
}

func toBytes(key string, in []int) ([]byte, error) {
	out := make([]byte, 0, len(in))
	for i, v := range in {
		b, err := toByte(fmt.Sprintf("%s[%d]", key, i), v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
