// Package cli implements the habitmap commands. Each command is a kong
// struct whose Run method receives the shared Context.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/habitmap/internal/app"
	"github.com/julianstephens/habitmap/internal/auth"
	"github.com/julianstephens/habitmap/internal/config"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/remote/postgres"
	"github.com/julianstephens/habitmap/internal/storage"
	habitsync "github.com/julianstephens/habitmap/internal/sync"
)

// closeTimeout bounds the final push when a command exits
const closeTimeout = 10 * time.Second

type Context struct {
	App     *app.App
	Config  *config.Config
	Out     io.Writer
	Offline bool
	// Remote is nil when remote sync is not configured or --offline is set
	Remote *postgres.Store
	// Metrics holds this process's sync counters
	Metrics *prometheus.Registry

	kv storage.KV
}

// NewContext opens local storage and, unless offline, the remote store
func NewContext(cfg *config.Config, offline bool) (*Context, error) {
	kv, err := storage.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}
	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }
	adapter := storage.NewAdapter(kv, storage.WithNamespace(cfg.Namespace), storage.WithAdapterClock(now))

	c := &Context{Config: cfg, Out: os.Stdout, Offline: offline, Metrics: prometheus.NewRegistry(), kv: kv}
	opts := []app.Option{app.WithClock(now)}

	if !offline {
		if connStr := cfg.ConnectionString(); connStr != "" {
			remoteOpts, err := c.connectRemote(connStr)
			if err != nil {
				kv.Close()
				return nil, err
			}
			opts = append(opts, remoteOpts...)
		}
	}

	c.App = app.New(adapter, opts...)
	return c, nil
}

func (c *Context) connectRemote(connStr string) ([]app.Option, error) {
	if err := postgres.ValidateConnString(connStr); err != nil {
		// The keyring is encrypted, so only plaintext sources must omit the password.
		fromKeyring := c.Config.Remote.ConnectionString == ""
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) || !fromKeyring {
			return nil, err
		}
	}
	if c.Config.Remote.JWTSecret == "" {
		return nil, errors.New("remote sync needs a JWT secret: set remote.jwt_secret or HABITMAP_JWT_SECRET")
	}

	store := postgres.New(connStr)
	if err := store.Init(); err != nil {
		return nil, err
	}
	provider, err := auth.NewLocalProvider(store, c.Config.Remote.JWTSecret)
	if err != nil {
		store.Close()
		return nil, err
	}
	c.Remote = store

	syncCfg := c.Config.Sync
	return []app.Option{
		app.WithProvider(provider),
		app.WithRemote(store),
		app.WithSyncOptions(
			habitsync.WithDebounce(syncCfg.Debounce),
			habitsync.WithRefreshMargin(syncCfg.RefreshMargin),
			habitsync.WithMetrics(habitsync.NewMetrics(c.Metrics)),
		),
		app.WithRealtimeOptions(
			habitsync.WithReconnectDelay(syncCfg.ReconnectDelay),
			habitsync.WithPollInterval(syncCfg.PollInterval),
		),
	}, nil
}

// SyncConfigured reports whether a remote store is connected
func (c *Context) SyncConfigured() bool {
	return c.Remote != nil
}

// Activate resumes the last account. Without a remote store, or with
// --offline, a device that never signed in uses the local-only account.
func (c *Context) Activate() error {
	err := c.App.Resume(context.Background())
	if !errors.Is(err, app.ErrNotSignedIn) {
		return err
	}
	if c.Offline || !c.SyncConfigured() {
		return c.App.UseOffline()
	}
	return fmt.Errorf("%w: run 'habitmap signin' or pass --offline", err)
}

// Close flushes the pending push and releases storage
func (c *Context) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if c.App != nil {
		if err := c.App.Close(ctx); err != nil {
			logger.Warn("Final sync failed", "error", err)
		}
	}
	if c.Remote != nil {
		errs = append(errs, c.Remote.Close())
	}
	if c.kv != nil {
		errs = append(errs, c.kv.Close())
	}
	return errors.Join(errs...)
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

// findHabit resolves ref as a habit id, a unique id prefix, or a name
func findHabit(doc *models.Document, ref string) (models.Habit, error) {
	ref = strings.TrimSpace(ref)
	if h, ok := doc.Habit(ref); ok {
		return h, nil
	}

	var matches []models.Habit
	for _, h := range doc.Habits {
		if strings.EqualFold(h.Name, ref) {
			return h, nil
		}
		if len(ref) >= 4 && strings.HasPrefix(h.ID, ref) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("%w: %q", app.ErrHabitNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Habit{}, fmt.Errorf("habit reference %q is ambiguous", ref)
	}
}

// findSubHabit resolves ref as a checkpoint id or name
func findSubHabit(h models.Habit, ref string) (models.SubHabit, error) {
	for _, sub := range h.SubHabits {
		if sub.ID == ref || strings.EqualFold(sub.Name, ref) {
			return sub, nil
		}
	}
	return models.SubHabit{}, fmt.Errorf("habit %q has no checkpoint %q", h.Name, ref)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
