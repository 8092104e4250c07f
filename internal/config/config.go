// Package config loads habitmap settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/keyring"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/utils"
)

type RemoteConfig struct {
	// ConnectionString is a PostgreSQL URI or DSN without a password
	ConnectionString string `yaml:"connection_string,omitempty"`
	JWTSecret        string `yaml:"jwt_secret,omitempty"`
}

type SyncConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RefreshMargin  time.Duration `yaml:"refresh_margin"`
}

type Config struct {
	DataDir   string       `yaml:"data_dir"`
	Backend   string       `yaml:"backend"`
	Namespace string       `yaml:"namespace"`
	Timezone  string       `yaml:"timezone,omitempty"`
	Debug     bool         `yaml:"debug"`
	LogLevel  string       `yaml:"log_level,omitempty"`
	Remote    RemoteConfig `yaml:"remote"`
	Sync      SyncConfig   `yaml:"sync"`

	path string
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir:   constants.DefaultConfigDir,
		Backend:   constants.DefaultBackend,
		Namespace: constants.StorageNamespace,
		Sync: SyncConfig{
			Debounce:       constants.PushDebounce,
			ReconnectDelay: constants.ReconnectDelay,
			PollInterval:   constants.PollInterval,
			RefreshMargin:  constants.SessionRefreshMargin,
		},
	}
}

// DefaultPath is ~/.config/habitmap/config.yaml, or $HABITMAP_CONFIG
func DefaultPath() string {
	if p := os.Getenv(constants.EnvConfig); p != "" {
		return p
	}
	return filepath.Join(constants.DefaultConfigDir, constants.DefaultConfigFile)
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	cfg.path = expanded

	data, err := os.ReadFile(expanded)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", expanded, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("No config file, using defaults", "path", expanded)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", expanded, err)
	}

	cfg.applyEnv()
	if cfg.DataDir, err = ExpandPath(cfg.DataDir); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(constants.EnvDBConnection); v != "" {
		c.Remote.ConnectionString = v
	}
	if v := os.Getenv(constants.EnvJWTSecret); v != "" {
		c.Remote.JWTSecret = v
	}
	if v := os.Getenv(constants.EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// Validate rejects settings the rest of the program cannot run with
func (c *Config) Validate() error {
	switch c.Backend {
	case constants.BackendSQLite, constants.BackendFile, constants.BackendMemory:
	default:
		return fmt.Errorf("invalid backend %q (expected sqlite, file, or memory)", c.Backend)
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return errors.New("namespace cannot be empty")
	}
	if strings.Contains(c.Namespace, ":") {
		return fmt.Errorf("namespace %q must not contain ':'", c.Namespace)
	}
	if _, err := utils.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	for name, d := range map[string]time.Duration{
		"sync.debounce":        c.Sync.Debounce,
		"sync.reconnect_delay": c.Sync.ReconnectDelay,
		"sync.poll_interval":   c.Sync.PollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Sync.RefreshMargin < 0 {
		return fmt.Errorf("sync.refresh_margin cannot be negative")
	}
	return nil
}

// Path is the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Location returns the configured timezone
func (c *Config) Location() *time.Location {
	loc, err := utils.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ConnectionString returns the remote DSN from config or env, falling back
// to the OS keyring. Empty means remote sync is not configured.
func (c *Config) ConnectionString() string {
	if c.Remote.ConnectionString != "" {
		return c.Remote.ConnectionString
	}
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Debug("Keyring lookup failed", "error", err)
		}
		return ""
	}
	return connStr
}

// Save writes the config to its path, creating the directory if needed
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultPath()
	}
	path, err := ExpandPath(c.path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
