package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/migration"
)

func setupTestBackends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	sqliteKV := NewSQLiteKV(filepath.Join(dir, "test.db"))
	if err := sqliteKV.Open(); err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { sqliteKV.Close() })

	fileKV := NewFileKV(filepath.Join(dir, "nested", "test.json"))
	if err := fileKV.Load(); err != nil {
		t.Fatalf("failed to load file store: %v", err)
	}

	return map[string]KV{
		"memory": NewMemoryKV(),
		"file":   fileKV,
		"sqlite": sqliteKV,
	}
}

func TestKVBackends(t *testing.T) {
	for name, kv := range setupTestBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get("missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
			}

			if err := kv.Set("a", "1"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if err := kv.Set("a", "2"); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			v, ok, err := kv.Get("a")
			if err != nil || !ok || v != "2" {
				t.Errorf("Get(a) = %q, %v, %v; want \"2\"", v, ok, err)
			}

			if err := kv.Remove("a"); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if _, ok, _ := kv.Get("a"); ok {
				t.Error("key still present after Remove")
			}
			if err := kv.Remove("never-set"); err != nil {
				t.Errorf("removing an absent key should succeed, got %v", err)
			}
		})
	}
}

func TestFileKVPersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	first := NewFileKV(path)
	if err := first.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := first.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second := NewFileKV(path)
	if err := second.Load(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if v, ok, _ := second.Get("k"); !ok || v != "v" {
		t.Errorf("reloaded value = %q, %v", v, ok)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestFileKVRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := NewFileKV(path).Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSQLiteKVMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habitmap.db")

	kv := NewSQLiteKV(path)
	if err := kv.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := kv.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	kv.Close()

	reopened := NewSQLiteKV(path)
	if err := reopened.Open(); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	version, err := migration.NewRunner(reopened.GetDB(), nil, migration.SQLite).GetCurrentVersion()
	if err != nil {
		t.Fatalf("GetCurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("schema version = %d, want 1", version)
	}
	if v, ok, _ := reopened.Get("k"); !ok || v != "v" {
		t.Errorf("value lost across reopen: %q, %v", v, ok)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{constants.BackendSQLite, constants.BackendFile, constants.BackendMemory} {
		kv, err := Open(backend, dir)
		if err != nil {
			t.Errorf("Open(%s) failed: %v", backend, err)
			continue
		}
		kv.Close()
	}
	if _, err := Open("etcd", dir); err == nil {
		t.Error("expected error for unknown backend")
	}
}
