// Package config implements TOML configuration loading and validation for
// reelsync. Resolution is a three-layer chain: built-in defaults, then the
// config file, then environment variables. CLI flags override on top at the
// command layer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Sync    SyncConfig    `toml:"sync"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig locates and authenticates against the tracking service.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// StorageConfig controls the local database and cache behavior.
type StorageConfig struct {
	DBPath          string `toml:"db_path"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// SyncConfig controls the connectivity polling loop.
type SyncConfig struct {
	ProbeIntervalSeconds int `toml:"probe_interval_seconds"`
}

// LoggingConfig sets the log level: debug, info, warn, or error.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default configuration values.
const (
	defaultBaseURL         = "https://api.reelsync.dev"
	defaultCacheTTLMinutes = 60
	defaultProbeSeconds    = 30
	defaultLogLevel        = "info"
)

// Environment variable overrides, applied after the file layer.
const (
	envToken   = "REELSYNC_TOKEN"
	envBaseURL = "REELSYNC_API_URL"
)

// Validation errors.
var (
	ErrMissingBaseURL = errors.New("config: api.base_url is required")
	ErrMissingDBPath  = errors.New("config: storage.db_path is required")
	ErrBadTTL         = errors.New("config: storage.cache_ttl_minutes must be positive")
	ErrBadInterval    = errors.New("config: sync.probe_interval_seconds must be positive")
	ErrBadLogLevel    = errors.New("config: logging.level must be debug, info, warn, or error")
)

// Default returns the built-in configuration. The database lands under the
// user cache directory; a relative fallback is used if none is resolvable.
func Default() Config {
	dbPath := "reelsync.db"
	if dir, err := os.UserCacheDir(); err == nil {
		dbPath = filepath.Join(dir, "reelsync", "reelsync.db")
	}

	return Config{
		API:     APIConfig{BaseURL: defaultBaseURL},
		Storage: StorageConfig{DBPath: dbPath, CacheTTLMinutes: defaultCacheTTLMinutes},
		Sync:    SyncConfig{ProbeIntervalSeconds: defaultProbeSeconds},
		Logging: LoggingConfig{Level: defaultLogLevel},
	}
}

// DefaultPath returns the expected config file location, or "" if the user
// config directory cannot be resolved.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "reelsync", "config.toml")
}

// Load reads the configuration from path, layering file values over defaults
// and environment variables over both. A missing file is not an error; the
// defaults simply stand.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	if tok := os.Getenv(envToken); tok != "" {
		cfg.API.Token = tok
	}

	if url := os.Getenv(envBaseURL); url != "" {
		cfg.API.BaseURL = url
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingBaseURL
	}

	if c.Storage.DBPath == "" {
		return ErrMissingDBPath
	}

	if c.Storage.CacheTTLMinutes <= 0 {
		return ErrBadTTL
	}

	if c.Sync.ProbeIntervalSeconds <= 0 {
		return ErrBadInterval
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrBadLogLevel
	}

	return nil
}
