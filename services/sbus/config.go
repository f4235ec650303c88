package sbus

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config configures the adapter and its ambient plumbing.
type Config struct {
	Adapter  AdapterConfig  `yaml:"adapter"`
	Platform PlatformConfig `yaml:"platform"`
	Log      LogConfig      `yaml:"log"`
}

type AdapterConfig struct {
	// Name is the registered bus name.
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	// Number is the bus number, or -1 for none.
	Number int `yaml:"number"`
}

type PlatformConfig struct {
	// Disabled mirrors a globally disabled platform description: load is a no-op.
	Disabled bool `yaml:"disabled"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty => stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Adapter: AdapterConfig{
			Name:    DefaultAdapterName,
			Aliases: []string{"sbus"},
			Number:  -1,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Environment overrides applied by LoadConfig.
const (
	EnvAdapterName      = "SBUS_ADAPTER_NAME"
	EnvPlatformDisabled = "SBUS_PLATFORM_DISABLED"
	EnvLogLevel         = "SBUS_LOG_LEVEL"
	EnvLogFile          = "SBUS_LOG_FILE"
)

// LoadConfig reads path over the defaults (an empty path keeps the defaults),
// applies environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvAdapterName); ok {
		c.Adapter.Name = v
	}
	if v, ok := os.LookupEnv(EnvPlatformDisabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvPlatformDisabled, err)
		}
		c.Platform.Disabled = b
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		c.Log.File = v
	}
	return nil
}

var (
	ErrEmptyName   = errors.New("config: adapter name is empty")
	ErrNumericName = errors.New("config: adapter name or alias is only a number")
	ErrColonInName = errors.New("config: adapter name or alias contains ':'")
	ErrBadNumber   = errors.New("config: adapter number below -1")
)

// Validate enforces the bus registry naming rules.
func (c Config) Validate() error {
	names := append([]string{c.Adapter.Name}, c.Adapter.Aliases...)
	for _, n := range names {
		if n == "" {
			return ErrEmptyName
		}
		if _, err := strconv.Atoi(n); err == nil {
			return ErrNumericName
		}
		if strings.Contains(n, ":") {
			return ErrColonInName
		}
	}
	if c.Adapter.Number < -1 {
		return ErrBadNumber
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return lvl, nil
}
