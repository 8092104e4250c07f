package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/migration"
	"github.com/julianstephens/habitmap/internal/models"
)

// SessionRecord remembers which account was last active on this device.
// Tokens are never stored here; the refresh token lives in the OS keyring.
type SessionRecord struct {
	AccountID  string `json:"accountId"`
	Email      string `json:"email,omitempty"`
	Offline    bool   `json:"offline"`
	SignedInAt string `json:"signedInAt"`
}

// Adapter reads and writes whole documents under "<namespace>:<accountId>"
type Adapter struct {
	kv        KV
	namespace string
	migrator  *migration.Migrator
	now       func() time.Time
}

// AdapterOption configures an Adapter
type AdapterOption func(*Adapter)

// WithNamespace overrides the key prefix
func WithNamespace(ns string) AdapterOption {
	return func(a *Adapter) { a.namespace = ns }
}

// WithMigrator sets the migrator used on load
func WithMigrator(m *migration.Migrator) AdapterOption {
	return func(a *Adapter) { a.migrator = m }
}

// WithAdapterClock sets the clock used to stamp seed documents
func WithAdapterClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

func NewAdapter(kv KV, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		kv:        kv,
		namespace: constants.StorageNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.migrator == nil {
		a.migrator = migration.NewMigrator(migration.WithClock(a.now))
	}
	return a
}

// Key returns the storage key for an account's document
func (a *Adapter) Key(accountID string) string {
	return a.namespace + ":" + accountID
}

// Load returns the account's migrated document. A missing document yields a
// fresh seed; a corrupt one is logged and also replaced by a seed. seeded
// reports either case. Only a failing KV is an error.
func (a *Adapter) Load(accountID string) (doc *models.Document, seeded bool, err error) {
	key := a.Key(accountID)
	raw, ok, err := a.kv.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load document: %w", err)
	}
	if !ok {
		return models.NewDocument(a.now()), true, nil
	}

	doc, err = a.migrator.MigrateJSON([]byte(raw))
	if err != nil {
		if errors.Is(err, migration.ErrInvalidData) {
			logger.Warn("Stored document is corrupt, starting from an empty document", "key", key, "error", err)
			return models.NewDocument(a.now()), true, nil
		}
		return nil, false, err
	}
	return doc, false, nil
}

// Save writes doc for the account
func (a *Adapter) Save(accountID string, doc *models.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := a.kv.Set(a.Key(accountID), string(data)); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Clear deletes the account's local document
func (a *Adapter) Clear(accountID string) error {
	if err := a.kv.Remove(a.Key(accountID)); err != nil {
		return fmt.Errorf("failed to clear document: %w", err)
	}
	return nil
}

// LoadSession returns the last active session record, if any
func (a *Adapter) LoadSession() (SessionRecord, bool, error) {
	raw, ok, err := a.kv.Get(constants.SessionKey)
	if err != nil || !ok {
		return SessionRecord{}, false, err
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.AccountID == "" {
		logger.Warn("Ignoring unreadable session record", "error", err)
		return SessionRecord{}, false, nil
	}
	return rec, true, nil
}

// SaveSession stores rec as the active session
func (a *Adapter) SaveSession(rec SessionRecord) error {
	if rec.SignedInAt == "" {
		rec.SignedInAt = models.FormatTimestamp(a.now())
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return a.kv.Set(constants.SessionKey, string(data))
}

// ClearSession forgets the active session
func (a *Adapter) ClearSession() error {
	return a.kv.Remove(constants.SessionKey)
}
