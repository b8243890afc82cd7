// Package config handles hearth configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/ratelimit"
	"github.com/quantumlife/hearth/internal/store"
)

// Environment variables that override file values.
const (
	EnvEnvironment = "HEARTH_ENV"
	EnvDataDir     = "HEARTH_DATA_DIR"
	EnvPassphrase  = "HEARTH_STORAGE_PASSPHRASE"
	EnvRedisAddr   = "HEARTH_REDIS_ADDR"
)

// Config holds all configuration
type Config struct {
	Environment string `json:"environment" yaml:"environment"`

	// Paths
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Server
	Server ServerConfig `json:"server" yaml:"server"`

	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	RateLimits  RateLimitConfig   `json:"rate_limits" yaml:"rate_limits"`
	Performance PerformanceConfig `json:"performance" yaml:"performance"`

	// Features
	Features FeatureConfig `json:"features" yaml:"features"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `json:"port" yaml:"port"`
	Host string `json:"host" yaml:"host"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects the preference backend.
type StorageConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	// Path is relative to DataDir unless absolute. Empty uses the backend's
	// default file name inside DataDir.
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	// Passphrase is never written by Save.
	Passphrase string `json:"passphrase,omitempty" yaml:"passphrase,omitempty"`
}

// Duration is a time.Duration written as "1m30s" in config files.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("%w: duration %q", core.ErrInvalidInput, b)
	}
	*d = Duration(v)
	return nil
}

// BucketConfig mirrors ratelimit.Options.
type BucketConfig struct {
	Window        Duration `json:"window" yaml:"window"`
	MaxRequests   int      `json:"max_requests" yaml:"max_requests"`
	BlockDuration Duration `json:"block_duration" yaml:"block_duration"`
}

// Options converts b.
func (b BucketConfig) Options() ratelimit.Options {
	return ratelimit.Options{
		Window:        time.Duration(b.Window),
		MaxRequests:   b.MaxRequests,
		BlockDuration: time.Duration(b.BlockDuration),
	}
}

func bucketFrom(o ratelimit.Options) BucketConfig {
	return BucketConfig{
		Window:        Duration(o.Window),
		MaxRequests:   o.MaxRequests,
		BlockDuration: Duration(o.BlockDuration),
	}
}

// RateLimitConfig holds the three buckets.
type RateLimitConfig struct {
	Default         BucketConfig `json:"default" yaml:"default"`
	API             BucketConfig `json:"api" yaml:"api"`
	Auth            BucketConfig `json:"auth" yaml:"auth"`
	CleanupInterval Duration     `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// Limits converts c for the store chain.
func (c RateLimitConfig) Limits() store.Limits {
	return store.Limits{
		Default: c.Default.Options(),
		API:     c.API.Options(),
		Auth:    c.Auth.Options(),
	}
}

// PerformanceConfig tunes the performance middleware.
type PerformanceConfig struct {
	SlowActionThreshold Duration `json:"slow_action_threshold" yaml:"slow_action_threshold"`
	MaxMeasures         int      `json:"max_measures" yaml:"max_measures"`
}

// FeatureConfig for feature flags
type FeatureConfig struct {
	// DebugMode starts the app slice with debug mode on.
	DebugMode bool `json:"debug_mode" yaml:"debug_mode"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Environment: string(store.Development),
		DataDir:     filepath.Join(home, ".hearth"),
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Backend: string(kv.BackendSQLite),
		},
		RateLimits: RateLimitConfig{
			Default:         bucketFrom(ratelimit.DefaultOptions),
			API:             bucketFrom(ratelimit.APIOptions),
			Auth:            bucketFrom(ratelimit.AuthOptions),
			CleanupInterval: Duration(ratelimit.DefaultCleanupInterval),
		},
		Performance: PerformanceConfig{
			SlowActionThreshold: Duration(store.DefaultFrameBudget),
			MaxMeasures:         store.DefaultMaxMeasures,
		},
	}
}

// DefaultPath returns the config file inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// Load loads config from file, falling back to defaults. Files ending in
// .json are JSON; anything else is YAML. Environment variables are applied
// last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		dir := cfg.DataDir
		if v := os.Getenv(EnvDataDir); v != "" {
			dir = v
		}
		path = DefaultPath(dir)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Use defaults
	case err != nil:
		return nil, err
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isJSON(path) {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEnvironment); v != "" {
		c.Environment = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvPassphrase); v != "" {
		c.Storage.Passphrase = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Storage.RedisAddr = v
	}
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath(c.DataDir)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	safeCfg := *c
	safeCfg.Storage.Passphrase = ""

	var data []byte
	var err error
	if isJSON(path) {
		data, err = json.MarshalIndent(safeCfg, "", "  ")
	} else {
		data, err = yaml.Marshal(safeCfg)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := store.ParseEnvironment(c.Environment); err != nil {
		return err
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir", core.ErrMissingRequired)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", core.ErrInvalidInput, c.Server.Port)
	}
	switch kv.Backend(c.Storage.Backend) {
	case kv.BackendMemory, kv.BackendFile, kv.BackendSQLite:
	case kv.BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("%w: storage.redis_addr", core.ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: storage.backend %q", core.ErrInvalidInput, c.Storage.Backend)
	}
	for name, b := range map[string]BucketConfig{
		"default": c.RateLimits.Default,
		"api":     c.RateLimits.API,
		"auth":    c.RateLimits.Auth,
	} {
		if b.Window < 0 || b.MaxRequests < 0 || b.BlockDuration < 0 {
			return fmt.Errorf("%w: rate_limits.%s must not be negative", core.ErrInvalidInput, name)
		}
	}
	if c.Performance.SlowActionThreshold < 0 || c.Performance.MaxMeasures < 0 {
		return fmt.Errorf("%w: performance settings must not be negative", core.ErrInvalidInput)
	}
	return nil
}

// Env returns the parsed environment. Call Validate first.
func (c *Config) Env() store.Environment {
	env, _ := store.ParseEnvironment(c.Environment)
	return env
}

// StoragePath resolves Storage.Path against DataDir.
func (c *Config) StoragePath() string {
	p := c.Storage.Path
	if p == "" {
		return c.DataDir
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// KVOptions returns the options for kv.Open.
func (c *Config) KVOptions() kv.Options {
	return kv.Options{
		Backend:    kv.Backend(c.Storage.Backend),
		Path:       c.StoragePath(),
		RedisAddr:  c.Storage.RedisAddr,
		Passphrase: c.Storage.Passphrase,
	}
}
