// Package config loads client settings from ~/.splitwiser/config.toml,
// with environment variables overriding the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override the file.
const (
	EnvAPIURL   = "SPLITWISER_API_URL"
	EnvHome     = "SPLITWISER_HOME"
	EnvLogLevel = "LOG_LEVEL"
)

const fileName = "config.toml"

// Config is the full client configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Session   SessionConfig   `toml:"session"`
	Groups    GroupsConfig    `toml:"groups"`
	Notify    NotifyConfig    `toml:"notify"`
	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`
	DevServer DevServerConfig `toml:"devserver"`
}

type APIConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

type SessionConfig struct {
	// DBPath is the SQLite file the credential is kept in. Relative paths
	// resolve against the home directory.
	DBPath string `toml:"db_path"`
}

type GroupsConfig struct {
	// MinMembers is how many members a new group needs.
	MinMembers int `toml:"min_members"`
}

type NotifyConfig struct {
	TTL string `toml:"ttl"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. "127.0.0.1:9464".
	Addr string `toml:"addr"`
}

type DevServerConfig struct {
	Addr     string `toml:"addr"`
	Secret   string `toml:"secret"`
	TokenTTL string `toml:"token_ttl"`
	// DBPath persists dev server data. Empty keeps it in memory.
	DBPath string `toml:"db_path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			URL:     "http://127.0.0.1:8000",
			Timeout: "15s",
		},
		Session: SessionConfig{DBPath: "session.db"},
		Groups:  GroupsConfig{MinMembers: 2},
		Notify:  NotifyConfig{TTL: "3s"},
		Log:     LogConfig{Level: "info"},
		DevServer: DevServerConfig{
			Addr:     "127.0.0.1:8000",
			Secret:   "dev-secret-change-me",
			TokenTTL: "30m",
		},
	}
}

// Home returns the settings directory: $SPLITWISER_HOME, else ~/.splitwiser.
func Home() string {
	if home := os.Getenv(EnvHome); home != "" {
		return home
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".splitwiser"
	}
	return filepath.Join(dir, ".splitwiser")
}

// Path returns the config file location inside home.
func Path(home string) string {
	return filepath.Join(home, fileName)
}

// Load reads the config file in home, if present, over the defaults and
// then applies environment overrides. A missing file is not an error.
func Load(home string) (Config, error) {
	cfg := DefaultConfig()

	path := Path(home)
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyEnv()
	if !filepath.IsAbs(cfg.Session.DBPath) {
		cfg.Session.DBPath = filepath.Join(home, cfg.Session.DBPath)
	}
	if cfg.DevServer.DBPath != "" && !filepath.IsAbs(cfg.DevServer.DBPath) {
		cfg.DevServer.DBPath = filepath.Join(home, cfg.DevServer.DBPath)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate checks values that would otherwise fail later at use.
func (c Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if c.Groups.MinMembers < 1 {
		return fmt.Errorf("groups.min_members must be at least 1, got %d", c.Groups.MinMembers)
	}
	for key, value := range map[string]string{
		"api.timeout":         c.API.Timeout,
		"notify.ttl":          c.Notify.TTL,
		"devserver.token_ttl": c.DevServer.TokenTTL,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// APITimeout returns api.timeout as a duration.
func (c Config) APITimeout() time.Duration {
	d, _ := parseDuration(c.API.Timeout)
	return d
}

// NotifyTTL returns notify.ttl as a duration.
func (c Config) NotifyTTL() time.Duration {
	d, _ := parseDuration(c.Notify.TTL)
	return d
}

// TokenTTL returns devserver.token_ttl as a duration.
func (c Config) TokenTTL() time.Duration {
	d, _ := parseDuration(c.DevServer.TokenTTL)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", s)
	}
	return d, nil
}

// Write saves cfg to the config file in home, creating the directory.
func Write(home string, cfg Config) error {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", home, err)
	}
	f, err := os.OpenFile(Path(home), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
