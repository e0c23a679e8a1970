// Package config loads polyga settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
)

// File is the on-disk configuration layout.
type File struct {
	GA         ga.Config        `toml:"ga"`
	Controller ControllerConfig `toml:"controller"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

// ControllerConfig holds run controller settings.
type ControllerConfig struct {
	Interval Duration `toml:"interval"`
	Patience int      `toml:"patience"`
	Goal     string   `toml:"goal"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr                 string `toml:"addr"`
	DataDir              string `toml:"data_dir"`
	CheckpointOnConverge bool   `toml:"checkpoint_on_converge"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings such as "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() File {
	opts := controller.DefaultOptions()
	return File{
		GA: ga.DefaultConfig(),
		Controller: ControllerConfig{
			Interval: Duration{opts.Interval},
			Patience: opts.Patience,
			Goal:     string(opts.Goal),
		},
		Server: ServerConfig{
			Addr:                 ":8080",
			DataDir:              "./data",
			CheckpointOnConverge: true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	md, err := toml.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("Ignoring unknown config keys", "path", path, "keys", strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.GA.Validate(); err != nil {
		return err
	}
	if _, err := ga.ParseGoal(f.Controller.Goal); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if f.Controller.Interval.Duration <= 0 {
		return errors.New("controller: interval must be positive")
	}
	if f.Controller.Patience <= 0 {
		return errors.New("controller: patience must be positive")
	}
	if _, err := ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Options converts the controller section.
func (f File) Options() controller.Options {
	return controller.Options{
		Interval: f.Controller.Interval.Duration,
		Patience: f.Controller.Patience,
		Goal:     ga.Goal(f.Controller.Goal),
	}
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Write encodes f as TOML to path.
func Write(path string, f File) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer out.Close()

	if err := toml.NewEncoder(out).Encode(f); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
