// Package config provides YAML/env configuration loading for axon-ingest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/athulya-anil/axon-ingest/pkg/models"
)

// Processor kinds.
const (
	ProcessorSimulated = "simulated"
	ProcessorHTTP      = "http"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Processor ProcessorConfig `mapstructure:"processor"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":4000"
	Addr string `mapstructure:"addr"`
	// StreamInterval is the push interval of the status event stream
	StreamInterval time.Duration `mapstructure:"stream_interval"`
	// CORSOrigins lists browser origins allowed to call the API; empty allows any
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// SchedulerConfig controls the dispatch loop.
type SchedulerConfig struct {
	// DispatchInterval is the pause after a chunk finishes before the next one starts
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	// UnitTimeout bounds one identifier's processor call; 0 disables it
	UnitTimeout time.Duration `mapstructure:"unit_timeout"`
}

// ProcessorConfig selects and tunes the unit processor.
type ProcessorConfig struct {
	// Kind: simulated or http
	Kind        string        `mapstructure:"kind"`
	Latency     time.Duration `mapstructure:"latency"`
	FailureRate float64       `mapstructure:"failure_rate"`
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig configures the redis-backed submission limiter.
// The limiter is disabled when RedisAddr is empty.
type RateLimitConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// Enabled reports whether a limiter should be installed.
func (r RateLimitConfig) Enabled() bool {
	return strings.TrimSpace(r.RedisAddr) != ""
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":4000",
			StreamInterval: time.Second,
		},
		Scheduler: SchedulerConfig{
			DispatchInterval: models.DefaultDispatchInterval,
			UnitTimeout:      30 * time.Second,
		},
		Processor: ProcessorConfig{
			Kind:    ProcessorSimulated,
			Latency: time.Second,
			Timeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Limit:     10,
			Window:    time.Second,
			KeyPrefix: "rl:",
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise from the first
// axon-ingest.yaml found in the search path. A .env file in the working
// directory is loaded into the process environment first. Environment
// variables use the prefix AXON with `.` replaced by `_`, e.g.
// AXON_SCHEDULER_DISPATCH_INTERVAL=2s.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AXON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.stream_interval", cfg.Server.StreamInterval)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)
	v.SetDefault("scheduler.dispatch_interval", cfg.Scheduler.DispatchInterval)
	v.SetDefault("scheduler.unit_timeout", cfg.Scheduler.UnitTimeout)
	v.SetDefault("processor.kind", cfg.Processor.Kind)
	v.SetDefault("processor.latency", cfg.Processor.Latency)
	v.SetDefault("processor.failure_rate", cfg.Processor.FailureRate)
	v.SetDefault("processor.url", cfg.Processor.URL)
	v.SetDefault("processor.timeout", cfg.Processor.Timeout)
	v.SetDefault("rate_limit.redis_addr", cfg.RateLimit.RedisAddr)
	v.SetDefault("rate_limit.redis_db", cfg.RateLimit.RedisDB)
	v.SetDefault("rate_limit.limit", cfg.RateLimit.Limit)
	v.SetDefault("rate_limit.window", cfg.RateLimit.Window)
	v.SetDefault("rate_limit.key_prefix", cfg.RateLimit.KeyPrefix)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		if envPath := os.Getenv("AXON_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("axon-ingest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".axon-ingest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":4000"
	}
	if c.Server.StreamInterval <= 0 {
		c.Server.StreamInterval = time.Second
	}

	if c.Scheduler.DispatchInterval <= 0 {
		return fmt.Errorf("scheduler.dispatch_interval must be positive, got %s", c.Scheduler.DispatchInterval)
	}
	if c.Scheduler.UnitTimeout < 0 {
		return fmt.Errorf("scheduler.unit_timeout must not be negative, got %s", c.Scheduler.UnitTimeout)
	}

	c.Processor.Kind = strings.ToLower(strings.TrimSpace(c.Processor.Kind))
	switch c.Processor.Kind {
	case ProcessorSimulated:
	case ProcessorHTTP:
		if c.Processor.URL == "" {
			return errors.New("processor.url is required when processor.kind is http")
		}
	default:
		return fmt.Errorf("invalid processor.kind: %q", c.Processor.Kind)
	}
	if c.Processor.FailureRate < 0 || c.Processor.FailureRate > 1 {
		return fmt.Errorf("processor.failure_rate must be within [0, 1], got %v", c.Processor.FailureRate)
	}

	if c.RateLimit.Enabled() {
		if c.RateLimit.Limit < 1 {
			return fmt.Errorf("rate_limit.limit must be positive, got %d", c.RateLimit.Limit)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
		}
	}
	return nil
}
