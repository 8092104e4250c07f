// Package backup keeps rotating JSON snapshots of an account's document
// so that imports and restores can be undone.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/migration"
)

const (
	// MaxBackups is the maximum number of snapshots kept per account
	MaxBackups = 14
	// BackupDirName is the name of the backup directory under the data dir
	BackupDirName = "backups"
	// BackupFilePrefix is the prefix for backup files
	BackupFilePrefix = "habitmap-"
	// BackupFileSuffix is the suffix for backup files
	BackupFileSuffix = ".json"

	timestampLayout = "20060102-150405"
)

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path      string
	Timestamp time.Time
	Size      int64

	seq int
}

// Manager handles backup operations for one account
type Manager struct {
	backupDir string
	now       func() time.Time
}

// NewManager creates a manager storing snapshots in <dataDir>/backups/<accountID>
func NewManager(dataDir, accountID string) *Manager {
	return &Manager{
		backupDir: filepath.Join(dataDir, BackupDirName, accountID),
		now:       time.Now,
	}
}

// GetBackupDir returns the backup directory path
func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

// CreateBackup writes data as a new snapshot and rotates old ones.
// The data must decode as a document of any schema generation.
func (m *Manager) CreateBackup(data []byte) (string, error) {
	if _, err := migration.MigrateJSON(data); err != nil {
		return "", fmt.Errorf("refusing to back up an unreadable document: %w", err)
	}
	if err := os.MkdirAll(m.backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return "", err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if err := m.rotateBackups(); err != nil {
		logger.Warn("Failed to rotate old backups", "dir", m.backupDir, "error", err)
	}
	logger.Debug("Backup created", "path", path)
	return path, nil
}

// nextPath names the snapshot by second, adding a counter on collision
func (m *Manager) nextPath() (string, error) {
	stamp := m.now().UTC().Format(timestampLayout)
	path := filepath.Join(m.backupDir, BackupFilePrefix+stamp+BackupFileSuffix)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if counter > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.backupDir, fmt.Sprintf("%s%s_%d%s", BackupFilePrefix, stamp, counter, BackupFileSuffix))
	}
}

// ListBackups returns all snapshots, newest first
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, BackupFilePrefix) || !strings.HasSuffix(name, BackupFileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, BackupFilePrefix), BackupFileSuffix)
		// Split off the collision counter, if any
		seq := 0
		if base, counter, ok := strings.Cut(stamp, "_"); ok {
			n, err := strconv.Atoi(counter)
			if err != nil {
				continue
			}
			stamp, seq = base, n
		}
		ts, err := time.Parse(timestampLayout, stamp)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(m.backupDir, name),
			Timestamp: ts,
			Size:      info.Size(),
			seq:       seq,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].seq > backups[j].seq
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// rotateBackups removes snapshots beyond the retention limit
func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// ReadBackup returns the raw contents of a snapshot after checking that it
// still decodes as a document
func (m *Manager) ReadBackup(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup file does not exist: %s", path)
		}
		return nil, err
	}
	if _, err := migration.MigrateJSON(data); err != nil {
		return nil, fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}
	return data, nil
}
