package cli

import (
	"fmt"
	"path/filepath"

	"github.com/julianstephens/habitmap/internal/backup"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" default:"1" help:"Snapshot the active document."`
	List    BackupListCmd    `cmd:"" help:"List snapshots for the active account."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the active document with a snapshot."`
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	path, err := ctx.snapshot()
	if err != nil {
		return err
	}
	ctx.printf("✓ Backup created: %s\n", path)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	backups, err := ctx.backups().ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.printf("No backups found in %s\n", ctx.backups().GetBackupDir())
		return nil
	}
	for _, b := range backups {
		ctx.printf("%s  %s  %d bytes\n", b.Timestamp.Local().Format("2006-01-02 15:04:05"), filepath.Base(b.Path), b.Size)
	}
	return nil
}

type BackupRestoreCmd struct {
	Name string `arg:"" optional:"" help:"Backup file name or path; defaults to the newest."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	mgr := ctx.backups()
	path := c.Name
	if path == "" {
		backups, err := mgr.ListBackups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			return fmt.Errorf("no backups found in %s", mgr.GetBackupDir())
		}
		path = backups[0].Path
	} else if filepath.Base(path) == path {
		path = filepath.Join(mgr.GetBackupDir(), path)
	}

	data, err := mgr.ReadBackup(path)
	if err != nil {
		return err
	}
	current, err := ctx.snapshot()
	if err != nil {
		return fmt.Errorf("failed to back up current document before restore: %w", err)
	}
	if err := ctx.App.ImportDocument(data); err != nil {
		return err
	}
	ctx.printf("✓ Restored %s (previous document saved as %s)\n", filepath.Base(path), filepath.Base(current))
	return nil
}

func (c *Context) backups() *backup.Manager {
	return backup.NewManager(c.Config.DataDir, c.App.Status().AccountID)
}

// snapshot writes the active document to the account's backup directory
func (c *Context) snapshot() (string, error) {
	data, err := c.App.Export()
	if err != nil {
		return "", err
	}
	return c.backups().CreateBackup(data)
}
