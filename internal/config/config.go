// Package config loads the controller configuration from a YAML file
// and LATCHD_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete latchd configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Ctrl    CtrlConfig    `mapstructure:"ctrl"`
	Access  AccessConfig  `mapstructure:"access"`
	Console ConsoleConfig `mapstructure:"console"`
	Doors   []DoorConfig  `mapstructure:"doors"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// File receives the JSON log stream; empty logs to stderr
	File string `mapstructure:"file"`
}

// EngineConfig controls the event dispatch core.
type EngineConfig struct {
	// QueueDepth is the event pool capacity shared by all producers
	QueueDepth int `mapstructure:"queue_depth"`
}

// CtrlConfig controls the management port.
type CtrlConfig struct {
	// Device is the stream the port answers on, typically a serial
	// character device; empty disables the port
	Device string `mapstructure:"device"`
}

// AccessConfig controls the access-record table.
type AccessConfig struct {
	// Capacity is the number of record slots
	Capacity int `mapstructure:"capacity"`
	// Provision is a YAML access list loaded into the table at start
	Provision string `mapstructure:"provision"`
}

// ConsoleConfig controls the interactive terminal panel.
type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Card is the card number the swipe key presents
	Card uint32 `mapstructure:"card"`
}

// DoorConfig describes one controlled door.
type DoorConfig struct {
	ID          uint8         `mapstructure:"id"`
	OpenTime    time.Duration `mapstructure:"open_time"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	OpenButton  bool          `mapstructure:"open_button"`
	Sense       bool          `mapstructure:"sense_input"`
}

// Default returns a Config with the stock values: one door with a
// manual-release button, a 5 second hold and a 10 second PIN window.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			QueueDepth: 8,
		},
		Access: AccessConfig{
			Capacity: 64,
		},
		Console: ConsoleConfig{
			Enabled: true,
			Card:    5550123,
		},
		Doors: []DoorConfig{
			{
				ID:          0,
				OpenTime:    5 * time.Second,
				IdleTimeout: 10 * time.Second,
				OpenButton:  true,
			},
		},
	}
}

// SetDefaults registers the scalar defaults with v. The default door
// list is applied after unmarshalling instead, so that a configured
// doors section replaces it rather than merging into it.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)

	v.SetDefault("engine.queue_depth", defaults.Engine.QueueDepth)

	v.SetDefault("ctrl.device", defaults.Ctrl.Device)

	v.SetDefault("access.capacity", defaults.Access.Capacity)
	v.SetDefault("access.provision", defaults.Access.Provision)

	v.SetDefault("console.enabled", defaults.Console.Enabled)
	v.SetDefault("console.card", defaults.Console.Card)
}

// Load reads the configuration into a validated Config. When path is
// empty a latchd.yaml in the working directory is used if present;
// a missing explicit path is an error. LATCHD_* environment variables
// override file values, e.g. LATCHD_LOG_LEVEL=debug.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("LATCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("latchd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if len(cfg.Doors) == 0 {
		cfg.Doors = Default().Doors
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}
