package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/keyring"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(constants.EnvDBConnection, "")
	t.Setenv(constants.EnvJWTSecret, "")
	t.Setenv(constants.EnvDebug, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != constants.BackendSQLite || cfg.Namespace != constants.StorageNamespace {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Sync.Debounce != 800*time.Millisecond || cfg.Sync.ReconnectDelay != 3*time.Second {
		t.Errorf("unexpected sync defaults: %+v", cfg.Sync)
	}
	if strings.HasPrefix(cfg.DataDir, "~") {
		t.Errorf("DataDir not expanded: %s", cfg.DataDir)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/habitmap-test
backend: file
namespace: custom-ns
timezone: America/New_York
remote:
  connection_string: postgres://file@localhost/db
sync:
  debounce: 250ms
  reconnect_delay: 5s
  poll_interval: 1m
  refresh_margin: 30s
`)
	t.Setenv(constants.EnvDBConnection, "postgres://env@localhost/db")
	t.Setenv(constants.EnvJWTSecret, "env-secret")
	t.Setenv(constants.EnvDebug, "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend != constants.BackendFile || cfg.Namespace != "custom-ns" || cfg.DataDir != "/tmp/habitmap-test" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Sync.Debounce != 250*time.Millisecond || cfg.Sync.PollInterval != time.Minute {
		t.Errorf("durations not parsed: %+v", cfg.Sync)
	}
	if cfg.Remote.ConnectionString != "postgres://env@localhost/db" || cfg.Remote.JWTSecret != "env-secret" {
		t.Errorf("env overrides not applied: %+v", cfg.Remote)
	}
	if !cfg.Debug {
		t.Error("HABITMAP_DEBUG=true should enable debug")
	}
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("Location = %s", cfg.Location())
	}
	if cfg.Path() != path {
		t.Errorf("Path = %s, want %s", cfg.Path(), path)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "backend: [unclosed"},
		{"unknown backend", "backend: etcd"},
		{"empty namespace", "namespace: \"\""},
		{"namespace with colon", "namespace: a:b"},
		{"bad timezone", "timezone: Mars/Olympus"},
		{"zero debounce", "sync:\n  debounce: 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(constants.EnvDBConnection, "")
	t.Setenv(constants.EnvJWTSecret, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.path = path
	cfg.DataDir = "/tmp/data"
	cfg.Backend = constants.BackendMemory
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Backend != constants.BackendMemory || loaded.DataDir != "/tmp/data" {
		t.Errorf("round trip = %+v", loaded)
	}
}

func TestConnectionStringFallsBackToKeyring(t *testing.T) {
	gokeyring.MockInit()

	cfg := Default()
	if got := cfg.ConnectionString(); got != "" {
		t.Errorf("ConnectionString with nothing configured = %q", got)
	}

	if err := keyring.SetConnectionString("postgres://kr@localhost/db"); err != nil {
		t.Fatalf("SetConnectionString failed: %v", err)
	}
	if got := cfg.ConnectionString(); got != "postgres://kr@localhost/db" {
		t.Errorf("ConnectionString = %q, want keyring value", got)
	}

	cfg.Remote.ConnectionString = "postgres://cfg@localhost/db"
	if got := cfg.ConnectionString(); got != "postgres://cfg@localhost/db" {
		t.Errorf("config value should win, got %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got, _ := ExpandPath("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Errorf("ExpandPath(~/x/y) = %s", got)
	}
	if got, _ := ExpandPath("/abs"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %s", got)
	}
}
