// Package sync reconciles the local document with its remote copy under a
// last-writer-wins policy on meta.updatedAt.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/habitmap/internal/auth"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/migration"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/remote"
)

// ErrNoSession means there is no signed-in session to sync with. Cycles that
// hit it are skipped, not failed.
var ErrNoSession = errors.New("no active session")

const defaultSyncTimeout = 30 * time.Second

// LocalState is the owner of the active document
type LocalState interface {
	// Snapshot returns a deep copy of the active document, or nil when no
	// account is active.
	Snapshot() *models.Document
	// ReplaceIf installs and persists doc only while the active document's
	// meta.updatedAt still equals expected, so a local edit made during a
	// pull is never overwritten. It reports whether doc was installed.
	ReplaceIf(doc *models.Document, expected string) (bool, error)
}

// Result describes what one reconcile cycle did
type Result struct {
	Pulled  bool
	Pushed  bool
	Skipped bool
	// Stale is set when the session changed mid-cycle and results were dropped
	Stale bool
}

// Status is an observable snapshot of the coordinator
type Status struct {
	State        constants.SyncStatus
	LastError    error
	LastSyncedAt time.Time
	// LastRemoteAt is the newest remote timestamp observed
	LastRemoteAt time.Time
}

// Coordinator debounces pushes and runs reconcile cycles for one account
type Coordinator struct {
	store    remote.Store
	provider auth.Provider
	local    LocalState
	migrator *migration.Migrator
	metrics  *Metrics

	now           func() time.Time
	refreshMargin time.Duration
	timeout       time.Duration
	onSession     func(auth.Session)

	debounce *Task
	group    singleflight.Group

	mu           sync.Mutex
	session      *auth.Session
	generation   uint64
	state        constants.SyncStatus
	lastErr      error
	lastSyncedAt time.Time
	lastRemoteAt time.Time
}

// Option configures a Coordinator
type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithDebounce sets the push debounce delay
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.debounce = NewTask(d, c.flush) }
}

// WithRefreshMargin refreshes sessions expiring within d
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Coordinator) { c.refreshMargin = d }
}

// WithTimeout bounds debounced background cycles
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithMetrics records cycle outcomes
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithMigrator sets the migrator applied to pulled documents
func WithMigrator(m *migration.Migrator) Option {
	return func(c *Coordinator) { c.migrator = m }
}

// OnSessionRefresh is called with every refreshed session
func OnSessionRefresh(fn func(auth.Session)) Option {
	return func(c *Coordinator) { c.onSession = fn }
}

func NewCoordinator(store remote.Store, provider auth.Provider, local LocalState, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         store,
		provider:      provider,
		local:         local,
		now:           time.Now,
		refreshMargin: constants.SessionRefreshMargin,
		timeout:       defaultSyncTimeout,
		state:         constants.SyncDisabled,
	}
	c.debounce = NewTask(constants.PushDebounce, c.flush)
	for _, opt := range opts {
		opt(c)
	}
	if c.migrator == nil {
		c.migrator = migration.NewMigrator(migration.WithClock(c.now))
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Start binds the coordinator to a signed-in session
func (c *Coordinator) Start(sess auth.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.session = &sess
	c.state = constants.SyncIdle
	c.lastErr = nil
	c.lastRemoteAt = time.Time{}
}

// Stop cancels any pending push and detaches the session. Cycles already in
// flight run to completion but their results are dropped.
func (c *Coordinator) Stop() {
	c.debounce.Disarm()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.session = nil
	c.state = constants.SyncDisabled
}

// Session returns the current session
func (c *Coordinator) Session() (auth.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return auth.Session{}, false
	}
	return *c.session, true
}

// Status returns the coordinator's observable state
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:        c.state,
		LastError:    c.lastErr,
		LastSyncedAt: c.lastSyncedAt,
		LastRemoteAt: c.lastRemoteAt,
	}
}

// SchedulePush (re)starts the debounce timer after a local mutation
func (c *Coordinator) SchedulePush() {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	if c.state != constants.SyncPushing {
		c.state = constants.SyncPendingPush
	}
	c.mu.Unlock()

	c.metrics.Scheduled.Inc()
	c.debounce.Arm()
}

// Flush runs a pending debounced push now, if one is scheduled
func (c *Coordinator) Flush(ctx context.Context) error {
	if !c.debounce.Disarm() {
		return nil
	}
	_, err := c.PerformSync(ctx, false)
	return err
}

func (c *Coordinator) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if _, err := c.PerformSync(ctx, false); err != nil && !errors.Is(err, ErrNoSession) {
		logger.Warn("Background sync failed", "error", err)
	}
}

// PerformSync pulls, reconciles and pushes. Concurrent callers share the
// in-flight cycle and its result, whatever forcePush they passed.
func (c *Coordinator) PerformSync(ctx context.Context, forcePush bool) (Result, error) {
	v, err, _ := c.group.Do("sync", func() (interface{}, error) {
		return c.cycle(ctx, forcePush)
	})
	res, _ := v.(Result)
	return res, err
}

func (c *Coordinator) cycle(ctx context.Context, forcePush bool) (Result, error) {
	start := time.Now()
	defer func() { c.metrics.Duration.Observe(time.Since(start).Seconds()) }()

	c.mu.Lock()
	gen := c.generation
	if c.session == nil {
		c.mu.Unlock()
		c.metrics.Cycles.WithLabelValues(OutcomeSkipped).Inc()
		return Result{Skipped: true}, ErrNoSession
	}
	sess := *c.session
	c.state = constants.SyncPushing
	c.mu.Unlock()

	sess, err := c.ensureSession(ctx, gen, sess)
	if errors.Is(err, ErrNoSession) {
		c.metrics.Cycles.WithLabelValues(OutcomeSkipped).Inc()
		c.mu.Lock()
		if c.generation == gen {
			c.state = constants.SyncIdle
		}
		c.mu.Unlock()
		return Result{Skipped: true}, err
	}
	if err != nil {
		return c.fail(gen, err)
	}

	rec, err := c.store.Pull(ctx, sess.RemoteID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return c.fail(gen, fmt.Errorf("pull failed: %w", err))
	}
	if !c.current(gen) {
		return c.stale()
	}

	var (
		remoteDoc   *models.Document
		remoteAt    time.Time
		remoteHasTS bool
	)
	if rec != nil {
		remoteDoc, remoteAt, remoteHasTS = c.decodeRemote(rec)
		c.observeRemote(gen, remoteAt, remoteHasTS)
	}

	local := c.local.Snapshot()
	if local == nil {
		return c.stale()
	}
	localAt, localHasTS := local.UpdatedAtTime()
	localHas := local.HasMeaningfulContent()
	remoteHas := remoteDoc.HasMeaningfulContent()

	res := Result{}
	if remoteHas && (!localHas || !localHasTS || (remoteHasTS && remoteAt.After(localAt))) {
		replaced, err := c.local.ReplaceIf(remoteDoc, local.Meta.UpdatedAt)
		if err != nil {
			return c.fail(gen, fmt.Errorf("failed to apply remote document: %w", err))
		}
		if replaced {
			logger.Info("Applied newer remote document", "remoteUpdatedAt", rec.UpdatedAt)
			res.Pulled = true
			local = remoteDoc
		}
	} else if !forcePush {
		forcePush = localHas && (rec == nil || !remoteHas || !remoteHasTS || (localHasTS && localAt.After(remoteAt)))
	}

	if forcePush {
		if !c.current(gen) {
			return c.stale()
		}
		stored, err := c.store.Push(ctx, sess.RemoteID, local, local.Meta.UpdatedAt)
		if err != nil {
			return c.fail(gen, fmt.Errorf("push failed: %w", err))
		}
		if t, err := models.ParseTimestamp(stored); err == nil {
			c.observeRemote(gen, t, true)
		}
		res.Pushed = true
	}

	return c.succeed(gen, res)
}

// decodeRemote migrates a pulled record. An undecodable body counts as a
// remote without content so local data is pushed over it.
func (c *Coordinator) decodeRemote(rec *remote.Record) (*models.Document, time.Time, bool) {
	doc, err := c.migrator.MigrateJSON(rec.Body)
	if err != nil {
		logger.Warn("Ignoring unreadable remote document", "remoteId", rec.RemoteID, "error", err)
		doc = nil
	}
	if t, err := models.ParseTimestamp(rec.UpdatedAt); err == nil {
		return doc, t, true
	}
	if t, ok := doc.UpdatedAtTime(); ok {
		return doc, t, true
	}
	return doc, time.Time{}, false
}

func (c *Coordinator) ensureSession(ctx context.Context, gen uint64, sess auth.Session) (auth.Session, error) {
	if !sess.NeedsRefresh(c.now(), c.refreshMargin) {
		return sess, nil
	}
	if c.provider == nil || sess.RefreshToken == "" {
		return sess, fmt.Errorf("session expired: %w", ErrNoSession)
	}

	refreshed, err := c.provider.Refresh(ctx, sess.RefreshToken)
	if errors.Is(err, auth.ErrInvalidToken) {
		return sess, fmt.Errorf("%w: refresh rejected: %w", ErrNoSession, err)
	}
	if err != nil {
		return sess, fmt.Errorf("session refresh failed: %w", err)
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return refreshed, nil
	}
	c.session = &refreshed
	c.mu.Unlock()

	logger.Debug("Session refreshed", "account", refreshed.AccountID)
	if c.onSession != nil {
		c.onSession(refreshed)
	}
	return refreshed, nil
}

// HandleChange reacts to a remote change notification. Notifications no
// newer than the last observed remote timestamp or the local document are
// ignored; anything else triggers a full cycle.
func (c *Coordinator) HandleChange(ctx context.Context, change remote.Change) error {
	at, err := models.ParseTimestamp(change.UpdatedAt)
	if err != nil {
		c.metrics.Realtime.WithLabelValues("malformed").Inc()
		return fmt.Errorf("invalid change timestamp %q: %w", change.UpdatedAt, err)
	}

	c.mu.Lock()
	lastRemote := c.lastRemoteAt
	c.mu.Unlock()

	if !at.After(lastRemote) {
		c.metrics.Realtime.WithLabelValues("ignored").Inc()
		return nil
	}
	if local := c.local.Snapshot(); local != nil {
		if localAt, ok := local.UpdatedAtTime(); ok && !at.After(localAt) {
			c.metrics.Realtime.WithLabelValues("ignored").Inc()
			return nil
		}
	}

	c.metrics.Realtime.WithLabelValues("synced").Inc()
	_, err = c.PerformSync(ctx, false)
	return err
}

func (c *Coordinator) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

func (c *Coordinator) observeRemote(gen uint64, at time.Time, ok bool) {
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation == gen && at.After(c.lastRemoteAt) {
		c.lastRemoteAt = at
	}
}

func (c *Coordinator) stale() (Result, error) {
	c.metrics.Cycles.WithLabelValues(OutcomeStale).Inc()
	return Result{Stale: true}, nil
}

func (c *Coordinator) fail(gen uint64, err error) (Result, error) {
	c.metrics.Cycles.WithLabelValues(OutcomeError).Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return Result{Stale: true}, nil
	}
	c.lastErr = err
	c.state = constants.SyncError
	logger.Warn("Sync failed", "error", err)
	return Result{}, err
}

func (c *Coordinator) succeed(gen uint64, res Result) (Result, error) {
	outcome := OutcomeNoop
	switch {
	case res.Pulled:
		outcome = OutcomePulled
	case res.Pushed:
		outcome = OutcomePushed
	}
	c.metrics.Cycles.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		res.Stale = true
		return res, nil
	}
	c.lastErr = nil
	c.lastSyncedAt = c.now()
	c.state = constants.SyncIdle
	if c.debounce.Pending() {
		c.state = constants.SyncPendingPush
	}
	return res, nil
}
