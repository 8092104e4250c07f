// Package app owns the active account's document. Every mutation is applied
// and persisted locally first, then handed to the sync coordinator as a
// debounced push.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/habitmap/internal/auth"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/keyring"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/metrics"
	"github.com/julianstephens/habitmap/internal/migration"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/remote"
	"github.com/julianstephens/habitmap/internal/storage"
	habitsync "github.com/julianstephens/habitmap/internal/sync"
)

var (
	ErrNotSignedIn     = errors.New("not signed in")
	ErrHabitNotFound   = errors.New("habit not found")
	ErrTodoNotFound    = errors.New("todo not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrFutureDate      = errors.New("cannot log a future date")
	ErrSyncUnavailable = errors.New("sync is not available for this account")
)

// App is the application state for one device
type App struct {
	adapter  *storage.Adapter
	provider auth.Provider
	store    remote.Store
	migrator *migration.Migrator
	now      func() time.Time

	syncOpts     []habitsync.Option
	realtimeOpts []habitsync.RealtimeOption

	mu        sync.Mutex
	accountID string
	email     string
	offline   bool
	doc       *models.Document
	coord     *habitsync.Coordinator
	realtime  *habitsync.Realtime
}

// Option configures an App
type Option func(*App)

// WithProvider enables sign-in against provider
func WithProvider(p auth.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithRemote enables sync against store
func WithRemote(store remote.Store) Option {
	return func(a *App) { a.store = store }
}

// WithClock sets the clock; its location decides the local calendar date
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithSyncOptions passes options to every coordinator the App creates
func WithSyncOptions(opts ...habitsync.Option) Option {
	return func(a *App) { a.syncOpts = append(a.syncOpts, opts...) }
}

// WithRealtimeOptions passes options to the realtime watcher
func WithRealtimeOptions(opts ...habitsync.RealtimeOption) Option {
	return func(a *App) { a.realtimeOpts = append(a.realtimeOpts, opts...) }
}

func New(adapter *storage.Adapter, opts ...Option) *App {
	a := &App{
		adapter: adapter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.migrator = migration.NewMigrator(migration.WithClock(a.now))
	return a
}

// Status describes the active account and its sync state
type Status struct {
	AccountID string
	Email     string
	Offline   bool
	SignedIn  bool
	Sync      habitsync.Status
	Realtime  constants.ChannelState
}

// SignUp creates an account and activates it
func (a *App) SignUp(ctx context.Context, email, password string) error {
	if a.provider == nil {
		return ErrSyncUnavailable
	}
	sess, err := a.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	return a.activate(ctx, sess)
}

// SignIn authenticates and activates the account, then reconciles with the
// remote copy.
func (a *App) SignIn(ctx context.Context, email, password string) error {
	if a.provider == nil {
		return ErrSyncUnavailable
	}
	sess, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return a.activate(ctx, sess)
}

// Resume reactivates the account last used on this device. A signed-in
// account whose session cannot be refreshed for reasons other than a bad
// token keeps working locally without sync.
func (a *App) Resume(ctx context.Context) error {
	rec, ok, err := a.adapter.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return ErrNotSignedIn
	}
	if rec.Offline {
		return a.activateLocal(rec.AccountID, "", true)
	}

	token, err := keyring.GetRefreshToken(rec.AccountID)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotSignedIn
	}
	if err != nil || a.provider == nil {
		logger.Warn("Session cannot be refreshed, continuing without sync", "account", rec.AccountID, "error", err)
		return a.activateLocal(rec.AccountID, rec.Email, false)
	}

	sess, err := a.provider.Refresh(ctx, token)
	if errors.Is(err, auth.ErrInvalidToken) {
		_ = keyring.DeleteRefreshToken(rec.AccountID)
		return fmt.Errorf("%w: session expired", ErrNotSignedIn)
	}
	if err != nil {
		logger.Warn("Session refresh failed, continuing without sync", "account", rec.AccountID, "error", err)
		return a.activateLocal(rec.AccountID, rec.Email, false)
	}
	return a.activate(ctx, sess)
}

// UseOffline activates the local-only account. Nothing is ever synced.
func (a *App) UseOffline() error {
	return a.activateLocal(constants.OfflineAccountID, "", true)
}

// SignOut cancels the pending push, stops realtime and drops the in-memory
// document. Results of network calls still in flight are discarded.
func (a *App) SignOut() error {
	a.mu.Lock()
	accountID, offline := a.accountID, a.offline
	coord, rt := a.coord, a.realtime
	a.reset()
	a.mu.Unlock()

	if rt != nil {
		rt.Stop()
	}
	if coord != nil {
		coord.Stop()
	}
	if accountID != "" && !offline {
		if err := keyring.DeleteRefreshToken(accountID); err != nil {
			logger.Warn("Failed to remove refresh token", "error", err)
		}
	}
	return a.adapter.ClearSession()
}

// Close pushes any pending change and stops background work. The session is
// kept so the next run can Resume.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	coord, rt := a.coord, a.realtime
	a.realtime = nil
	a.mu.Unlock()

	if rt != nil {
		rt.Stop()
	}
	if coord == nil {
		return nil
	}
	err := coord.Flush(ctx)
	coord.Stop()
	if errors.Is(err, habitsync.ErrNoSession) {
		return nil
	}
	return err
}

// SyncNow runs a reconcile cycle immediately
func (a *App) SyncNow(ctx context.Context, force bool) (habitsync.Result, error) {
	coord, err := a.coordinator()
	if err != nil {
		return habitsync.Result{}, err
	}
	return coord.PerformSync(ctx, force)
}

// Watch applies remote changes as they arrive until ctx is done
func (a *App) Watch(ctx context.Context) error {
	coord, err := a.coordinator()
	if err != nil {
		return err
	}
	sess, ok := coord.Session()
	if !ok {
		return ErrNotSignedIn
	}

	rt := habitsync.NewRealtime(coord, a.store, a.realtimeOpts...)
	if err := rt.Start(sess.RemoteID); err != nil {
		return err
	}
	a.mu.Lock()
	a.realtime = rt
	a.mu.Unlock()

	<-ctx.Done()

	a.mu.Lock()
	if a.realtime == rt {
		a.realtime = nil
	}
	a.mu.Unlock()
	rt.Stop()
	return nil
}

// Status returns the active account and sync state
func (a *App) Status() Status {
	a.mu.Lock()
	st := Status{
		AccountID: a.accountID,
		Email:     a.email,
		Offline:   a.offline,
		SignedIn:  a.doc != nil,
		Sync:      habitsync.Status{State: constants.SyncDisabled},
		Realtime:  constants.ChannelUnsubscribed,
	}
	coord, rt := a.coord, a.realtime
	a.mu.Unlock()

	if coord != nil {
		st.Sync = coord.Status()
	}
	if rt != nil {
		st.Realtime = rt.State()
	}
	return st
}

// Snapshot returns a copy of the active document, or nil when signed out
func (a *App) Snapshot() *models.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc.Clone()
}

// Engine returns a metrics engine over a snapshot of the active document
func (a *App) Engine() (*metrics.Engine, error) {
	doc := a.Snapshot()
	if doc == nil {
		return nil, ErrNotSignedIn
	}
	return metrics.New(doc, metrics.WithClock(a.now)), nil
}

// Export renders the active document as indented JSON
func (a *App) Export() ([]byte, error) {
	doc := a.Snapshot()
	if doc == nil {
		return nil, ErrNotSignedIn
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ImportDocument migrates a raw JSON document of any schema generation and
// replaces the active document with it.
func (a *App) ImportDocument(data []byte) error {
	imported, err := a.migrator.MigrateJSON(data)
	if err != nil {
		return err
	}
	return a.mutate(func(doc *models.Document) error {
		*doc = *imported
		return nil
	})
}

// SetHeatmapView sets the document-wide default view
func (a *App) SetHeatmapView(view constants.HeatmapView) error {
	if !view.Valid() {
		return fmt.Errorf("%w: unknown view %q", ErrInvalidInput, view)
	}
	return a.mutate(func(doc *models.Document) error {
		doc.Settings.HeatmapView = view
		return nil
	})
}

func (a *App) activate(ctx context.Context, sess auth.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("%w: provider returned an incomplete session", auth.ErrInvalidToken)
	}
	if err := a.activateLocal(sess.AccountID, sess.Email, false); err != nil {
		return err
	}
	a.persistSession(sess)

	if a.store == nil {
		logger.Debug("No remote store configured, sync disabled")
		return nil
	}

	opts := append([]habitsync.Option{
		habitsync.WithClock(a.now),
		habitsync.OnSessionRefresh(a.persistSession),
	}, a.syncOpts...)
	coord := habitsync.NewCoordinator(a.store, a.provider, &accountState{app: a, accountID: sess.AccountID}, opts...)
	coord.Start(sess)

	a.mu.Lock()
	a.coord = coord
	a.mu.Unlock()

	if _, err := coord.PerformSync(ctx, false); err != nil {
		logger.Warn("Initial sync failed", "error", err)
	}
	return nil
}

// activateLocal loads the account's document and makes it active, replacing
// any previous account.
func (a *App) activateLocal(accountID, email string, offline bool) error {
	doc, seeded, err := a.adapter.Load(accountID)
	if err != nil {
		return err
	}
	if seeded {
		logger.Debug("Starting with an empty document", "account", accountID)
	}

	a.mu.Lock()
	coord, rt := a.coord, a.realtime
	a.reset()
	a.accountID = accountID
	a.email = email
	a.offline = offline
	a.doc = doc
	a.mu.Unlock()

	if rt != nil {
		rt.Stop()
	}
	if coord != nil {
		coord.Stop()
	}
	return a.adapter.SaveSession(storage.SessionRecord{AccountID: accountID, Email: email, Offline: offline})
}

func (a *App) persistSession(sess auth.Session) {
	if sess.RefreshToken == "" {
		return
	}
	if err := keyring.SetRefreshToken(sess.AccountID, sess.RefreshToken); err != nil {
		logger.Warn("Failed to store refresh token, next run will need to sign in", "error", err)
	}
}

func (a *App) coordinator() (*habitsync.Coordinator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.doc == nil {
		return nil, ErrNotSignedIn
	}
	if a.coord == nil {
		return nil, ErrSyncUnavailable
	}
	return a.coord, nil
}

// reset clears account state; callers hold mu
func (a *App) reset() {
	a.accountID = ""
	a.email = ""
	a.offline = false
	a.doc = nil
	a.coord = nil
	a.realtime = nil
}

// mutate applies fn to a copy of the document, stamps and persists it, and
// only then makes it active and schedules a push. A failing fn or save leaves
// the active document untouched.
func (a *App) mutate(fn func(doc *models.Document) error) error {
	a.mu.Lock()
	if a.doc == nil {
		a.mu.Unlock()
		return ErrNotSignedIn
	}
	work := a.doc.Clone()
	if err := fn(work); err != nil {
		a.mu.Unlock()
		return err
	}
	work.Touch(a.now())
	if err := a.adapter.Save(a.accountID, work); err != nil {
		a.mu.Unlock()
		return err
	}
	a.doc = work
	coord := a.coord
	a.mu.Unlock()

	if coord != nil {
		coord.SchedulePush()
	}
	return nil
}

// accountState exposes one account's document to its coordinator. It goes
// inert once another account becomes active.
type accountState struct {
	app       *App
	accountID string
}

func (s *accountState) Snapshot() *models.Document {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accountID != s.accountID {
		return nil
	}
	return a.doc.Clone()
}

func (s *accountState) ReplaceIf(doc *models.Document, expected string) (bool, error) {
	a := s.app
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accountID != s.accountID || a.doc == nil || a.doc.Meta.UpdatedAt != expected {
		return false, nil
	}
	if err := a.adapter.Save(a.accountID, doc); err != nil {
		return false, err
	}
	a.doc = doc.Clone()
	return true, nil
}
