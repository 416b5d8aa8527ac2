// Package config loads adaptiva settings from an optional YAML file with
// environment overrides on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/panyam/adaptiva/tables"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Limits    tables.Limits   `yaml:"limits"`
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address"`

	// Env is "dev" for colored logs and .env.dev, anything else otherwise.
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LLMConfig struct {
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
}

type RateLimitConfig struct {
	// AnonymousDailyLimit caps suggestions per session per day. A negative
	// value disables the quota.
	AnonymousDailyLimit int `yaml:"anonymous_daily_limit"`

	// BurstPerMinute caps suggestions per client IP per minute. A negative
	// value disables the limiter.
	BurstPerMinute int `yaml:"burst_per_minute"`

	// GlobalDailyLimit caps suggestions per day across all clients. A
	// negative value disables the cap.
	GlobalDailyLimit int `yaml:"global_daily_limit"`
}

type StorageConfig struct {
	// Backend is "file" or "datastore".
	Backend string `yaml:"backend"`

	// ChartsPath is where the file backend keeps saved charts.
	ChartsPath string `yaml:"charts_path"`

	// Project is the Google Cloud project for the datastore backend.
	Project string `yaml:"project"`
}

const (
	BackendFile      = "file"
	BackendDatastore = "datastore"
)

// Default returns the settings used when no file or env overrides exist.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 50 << 20
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Limits.MaxRows == 0 {
		c.Limits.MaxRows = 1_000_000
	}
	if c.Limits.MaxColumns == 0 {
		c.Limits.MaxColumns = 500
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1500
	}
	if c.RateLimit.AnonymousDailyLimit == 0 {
		c.RateLimit.AnonymousDailyLimit = 10
	}
	if c.RateLimit.BurstPerMinute == 0 {
		c.RateLimit.BurstPerMinute = 5
	}
	if c.RateLimit.GlobalDailyLimit == 0 {
		c.RateLimit.GlobalDailyLimit = 1000
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.ChartsPath == "" {
		c.Storage.ChartsPath = "./data/charts"
	}
}

// Load reads path (if non-empty), applies environment overrides and fills
// defaults. A missing file is an error; an empty path is not.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("ADAPTIVA_WEB_PORT", &c.Server.Address)
	str("ADAPTIVA_ENV", &c.Server.Env)
	str("ADAPTIVA_LOG_LEVEL", &c.Server.LogLevel)
	str("OPENAI_MODEL", &c.LLM.Model)
	str("OPENAI_BASE_URL", &c.LLM.BaseURL)
	str("ADAPTIVA_STORAGE_BACKEND", &c.Storage.Backend)
	str("ADAPTIVA_CHARTS_PATH", &c.Storage.ChartsPath)
	str("DATASTORE_PROJECT_ID", &c.Storage.Project)
	if v := getenv("ADAPTIVA_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ADAPTIVA_LLM_TIMEOUT: %w", err)
		}
		c.LLM.Timeout = d
	}
	for key, dst := range map[string]*int{
		"ADAPTIVA_MAX_ROWS":         &c.Limits.MaxRows,
		"ADAPTIVA_MAX_COLUMNS":      &c.Limits.MaxColumns,
		"ADAPTIVA_ANON_DAILY_LIMIT": &c.RateLimit.AnonymousDailyLimit,
		"ADAPTIVA_SUGGEST_BURST":    &c.RateLimit.BurstPerMinute,
		"ADAPTIVA_GLOBAL_LIMIT":     &c.RateLimit.GlobalDailyLimit,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
	case BackendDatastore:
		if c.Storage.Project == "" {
			return fmt.Errorf("storage.project is required for the %s backend", BackendDatastore)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := ParseLevel(c.Server.LogLevel); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c Config) IsDev() bool {
	return c.Server.Env == "dev"
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
