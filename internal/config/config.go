// Package config loads the footswitch daemon configuration.
//
// Values are layered: Default(), then the YAML file, then a .env file, then
// FOOTSWITCH_* environment variables. Command-line flags are applied last by
// the caller, followed by Validate.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/footswitch/internal/gpio"
)

// ErrNoButtons is returned by Validate when no button is configured.
var ErrNoButtons = errors.New("config: no buttons configured")

// Source kinds.
const (
	SourceGPIO  = "gpio"
	SourceEvdev = "evdev"
)

// Config is the top-level configuration.
type Config struct {
	Broker     string        `yaml:"broker" env:"FOOTSWITCH_BROKER"`
	ClientID   string        `yaml:"client_id" env:"FOOTSWITCH_CLIENT_ID"`
	HTTPAddr   string        `yaml:"http_addr" env:"FOOTSWITCH_HTTP_ADDR"`
	Heartbeat  time.Duration `yaml:"heartbeat" env:"FOOTSWITCH_HEARTBEAT"`
	BufferSize int           `yaml:"buffer_size" env:"FOOTSWITCH_BUFFER_SIZE"` // MQTT messages kept while disconnected

	Logging LoggingConfig `yaml:"logging"`

	Buttons []ButtonConfig `yaml:"buttons"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"FOOTSWITCH_LOG_LEVEL"`
	Format string `yaml:"format" env:"FOOTSWITCH_LOG_FORMAT"` // console or json
}

// ButtonConfig describes one control and its gesture windows.
type ButtonConfig struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"` // gpio (default) or evdev

	// gpio
	Chip      string `yaml:"chip,omitempty"`
	Pin       int    `yaml:"pin,omitempty"`
	ActiveLow bool   `yaml:"active_low,omitempty"`

	// evdev
	Device  string `yaml:"device,omitempty"`
	KeyCode uint16 `yaml:"key_code,omitempty"`
	Grab    bool   `yaml:"grab,omitempty"` // exclusive access to the device

	// Momentary defaults to true.
	Momentary *bool `yaml:"momentary,omitempty"`

	LongPress   time.Duration `yaml:"long_press,omitempty"`
	DoublePress time.Duration `yaml:"double_press,omitempty"`
}

// IsMomentary reports the momentary trait, defaulting to true.
func (b ButtonConfig) IsMomentary() bool {
	return b.Momentary == nil || *b.Momentary
}

// Default returns a fully-populated Config without buttons.
func Default() Config {
	return Config{
		Broker:     "tcp://127.0.0.1:1883",
		ClientID:   "footswitch",
		HTTPAddr:   ":8080",
		Heartbeat:  15 * time.Minute,
		BufferSize: 100,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds a Config from the YAML file at path (skipped when empty), the
// dotenv file at dotenv (skipped when empty or missing) and the environment.
func Load(path, dotenv string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.applyButtonDefaults()
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyButtonDefaults() {
	for i := range c.Buttons {
		b := &c.Buttons[i]
		if b.Source == "" {
			b.Source = SourceGPIO
		}
		if b.Source == SourceGPIO && b.Chip == "" {
			b.Chip = gpio.DefaultChip
		}
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("config: broker is required")
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("config: heartbeat must be >= 0, got %v", c.Heartbeat)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("config: buffer_size must be > 0, got %d", c.BufferSize)
	}
	if len(c.Buttons) == 0 {
		return ErrNoButtons
	}

	seen := make(map[string]bool, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Name == "" {
			return fmt.Errorf("config: button %d: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("config: button %q: duplicate name", b.Name)
		}
		seen[b.Name] = true

		switch b.Source {
		case SourceGPIO:
			if b.Pin < 0 {
				return fmt.Errorf("config: button %q: invalid pin %d", b.Name, b.Pin)
			}
		case SourceEvdev:
			if b.Device == "" {
				return fmt.Errorf("config: button %q: device is required for evdev", b.Name)
			}
			if b.KeyCode == 0 {
				return fmt.Errorf("config: button %q: key_code is required for evdev", b.Name)
			}
		default:
			return fmt.Errorf("config: button %q: unknown source %q (must be gpio or evdev)", b.Name, b.Source)
		}

		if b.LongPress < 0 || b.DoublePress < 0 {
			return fmt.Errorf("config: button %q: gesture windows must be >= 0", b.Name)
		}
	}
	return nil
}
