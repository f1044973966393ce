// Package config loads daemon configuration from the environment (§6) and
// holds the one piece of runtime-mutable state, the pressure ceiling.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds daemon configuration parsed from the environment. Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	SocketPath       string  `env:"LOCALCACHED_SOCKET" envDefault:"/run/localcached.sock"`
	PidPath          string  `env:"LOCALCACHED_PID_FILE"`
	MaxFrameBytes    int     `env:"LOCALCACHED_MAX_FRAME" envDefault:"8388608"`
	PressureHot      float64 `env:"LOCALCACHED_PRESSURE_HOT" envDefault:"0.85"`
	PressureCool     float64 `env:"LOCALCACHED_PRESSURE_COOL" envDefault:"0.80"`
	PubsubCapacity   int     `env:"LOCALCACHED_PUBSUB_CAP" envDefault:"256"`
	PressurePollMs   int     `env:"LOCALCACHED_PRESSURE_POLL_MS" envDefault:"150"`
	MaxConcurrentOps int     `env:"LOCALCACHED_MAX_CONCURRENT_OPS" envDefault:"10000"`
	MetricsAddr      string  `env:"LOCALCACHED_METRICS_ADDR" envDefault:"127.0.0.1:9090"`

	LogLevel  string `env:"LOCALCACHED_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOCALCACHED_LOG_FORMAT" envDefault:"json"`
}

// maxPressureHot is the absolute ceiling a daemon will ever honor, matching
// the server's own enforcement on SET_CONFIG (§4.6).
const maxPressureHot = 0.85
const minPressureHot = 0.01

// Load reads an optional .env file then environment variables (env vars
// take precedence over .env, matching the teacher's LoadConfig), derives
// PidPath when unset, clamps PressureHot, and validates the result.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PidPath == "" {
		cfg.PidPath = derivePidPath(cfg.SocketPath)
	}

	if cfg.PressureHot > maxPressureHot {
		if logger != nil {
			logger.Warn().Float64("requested", cfg.PressureHot).Float64("clamped_to", maxPressureHot).
				Msg("LOCALCACHED_PRESSURE_HOT exceeds ceiling, clamping")
		}
		cfg.PressureHot = maxPressureHot
	}
	if cfg.PressureHot < minPressureHot {
		if logger != nil {
			logger.Warn().Float64("requested", cfg.PressureHot).Float64("clamped_to", minPressureHot).
				Msg("LOCALCACHED_PRESSURE_HOT below floor, clamping")
		}
		cfg.PressureHot = minPressureHot
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if logger != nil {
		logger.Info().Msg("configuration loaded and validated")
	}
	return cfg, nil
}

// derivePidPath replaces socketPath's extension with .pid, per §6.
func derivePidPath(socketPath string) string {
	ext := filepath.Ext(socketPath)
	stem := strings.TrimSuffix(socketPath, ext)
	return stem + ".pid"
}

// Validate checks range and logical invariants.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("LOCALCACHED_SOCKET is required")
	}
	if c.MaxFrameBytes < 1 {
		return fmt.Errorf("LOCALCACHED_MAX_FRAME must be > 0, got %d", c.MaxFrameBytes)
	}
	if c.PubsubCapacity < 1 {
		return fmt.Errorf("LOCALCACHED_PUBSUB_CAP must be > 0, got %d", c.PubsubCapacity)
	}
	if c.PressurePollMs < 1 {
		return fmt.Errorf("LOCALCACHED_PRESSURE_POLL_MS must be > 0, got %d", c.PressurePollMs)
	}
	if c.MaxConcurrentOps < 1 {
		return fmt.Errorf("LOCALCACHED_MAX_CONCURRENT_OPS must be > 0, got %d", c.MaxConcurrentOps)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOCALCACHED_LOG_LEVEL must be one of debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOCALCACHED_LOG_FORMAT must be one of json, pretty (got: %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the resolved configuration as a single structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("socket_path", c.SocketPath).
		Str("pid_path", c.PidPath).
		Int("max_frame_bytes", c.MaxFrameBytes).
		Float64("pressure_hot", c.PressureHot).
		Float64("pressure_cool", c.PressureCool).
		Int("pubsub_capacity", c.PubsubCapacity).
		Int("pressure_poll_ms", c.PressurePollMs).
		Int("max_concurrent_ops", c.MaxConcurrentOps).
		Msg("localcached configuration")
}

// PressureHotBp converts PressureHot to basis points for RuntimeConfig's
// initial value.
func (c *Config) PressureHotBp() uint16 {
	return uint16(c.PressureHot * 10000)
}
