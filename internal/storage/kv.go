// Package storage persists account documents in a local key-value store.
package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/julianstephens/habitmap/internal/constants"
)

// KV is the durable local key-value store documents are written to.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open returns the KV for backend, rooted at dataDir
func Open(backend, dataDir string) (KV, error) {
	switch backend {
	case "", constants.BackendSQLite:
		kv := NewSQLiteKV(filepath.Join(dataDir, constants.DefaultDatabaseFile))
		if err := kv.Open(); err != nil {
			return nil, err
		}
		return kv, nil
	case constants.BackendFile:
		kv := NewFileKV(filepath.Join(dataDir, constants.AppName+".json"))
		if err := kv.Load(); err != nil {
			return nil, err
		}
		return kv, nil
	case constants.BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// MemoryKV keeps values in process memory
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
