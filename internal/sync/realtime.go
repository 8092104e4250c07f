package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/remote"
)

// Realtime keeps a change subscription open for the active account and feeds
// notifications to the coordinator. Stores without a change stream are polled
// on a fixed interval instead.
type Realtime struct {
	coord        *Coordinator
	store        remote.Store
	delay        time.Duration
	pollInterval time.Duration

	mu              sync.Mutex
	state           constants.ChannelState
	shouldReconnect bool
	cancel          context.CancelFunc
	done            chan struct{}
	poller          *cron.Cron
}

// RealtimeOption configures a Realtime
type RealtimeOption func(*Realtime)

// WithReconnectDelay sets the fixed delay before resubscribing
func WithReconnectDelay(d time.Duration) RealtimeOption {
	return func(r *Realtime) { r.delay = d }
}

// WithPollInterval sets the poll period used when the store cannot stream
func WithPollInterval(d time.Duration) RealtimeOption {
	return func(r *Realtime) { r.pollInterval = d }
}

func NewRealtime(coord *Coordinator, store remote.Store, opts ...RealtimeOption) *Realtime {
	r := &Realtime{
		coord:        coord,
		store:        store,
		delay:        constants.ReconnectDelay,
		pollInterval: constants.PollInterval,
		state:        constants.ChannelUnsubscribed,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the subscription state
func (r *Realtime) State() constants.ChannelState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Polling reports whether the poll fallback is running
func (r *Realtime) Polling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poller != nil
}

// Start begins watching remoteID. Any previous watch is stopped first.
func (r *Realtime) Start(remoteID string) error {
	r.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	sub, ok := r.store.(remote.Subscriber)
	if !ok {
		return r.startPolling(ctx, cancel)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.shouldReconnect = true
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.run(ctx, sub, remoteID, done)
	return nil
}

// Stop closes the subscription and disables reconnects
func (r *Realtime) Stop() {
	r.mu.Lock()
	r.shouldReconnect = false
	cancel, done, poller := r.cancel, r.done, r.poller
	r.cancel, r.done, r.poller = nil, nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if poller != nil {
		<-poller.Stop().Done()
	}
	if done != nil {
		<-done
	}
	r.setState(constants.ChannelUnsubscribed)
}

func (r *Realtime) startPolling(ctx context.Context, cancel context.CancelFunc) error {
	poller := cron.New()
	spec := fmt.Sprintf("@every %s", r.pollInterval)
	if _, err := poller.AddFunc(spec, func() { r.sync(ctx, "poll") }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule poll: %w", err)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.poller = poller
	r.mu.Unlock()

	poller.Start()
	logger.Debug("Remote store has no change stream, polling", "interval", r.pollInterval)
	return nil
}

func (r *Realtime) run(ctx context.Context, sub remote.Subscriber, remoteID string, done chan struct{}) {
	defer close(done)

	reconnecting := false
	for {
		r.setState(constants.ChannelSubscribing)
		changes, err := sub.Subscribe(ctx, remoteID)
		if err != nil {
			logger.Warn("Realtime subscribe failed", "error", err)
		} else {
			r.setState(constants.ChannelSubscribed)
			if reconnecting {
				// Changes made while disconnected produced no notification.
				r.sync(ctx, "catch-up")
			}
			for change := range changes {
				if err := r.coord.HandleChange(ctx, change); err != nil && !errors.Is(err, ErrNoSession) {
					logger.Warn("Failed to apply remote change", "error", err)
				}
			}
		}

		if ctx.Err() != nil || !r.reconnectAllowed() {
			r.setState(constants.ChannelUnsubscribed)
			return
		}

		r.setState(constants.ChannelReconnecting)
		logger.Info("Realtime channel dropped, reconnecting", "delay", r.delay)
		select {
		case <-ctx.Done():
			r.setState(constants.ChannelUnsubscribed)
			return
		case <-time.After(r.delay):
		}
		reconnecting = true
	}
}

func (r *Realtime) sync(ctx context.Context, reason string) {
	if _, err := r.coord.PerformSync(ctx, false); err != nil && !errors.Is(err, ErrNoSession) {
		logger.Warn("Sync failed", "trigger", reason, "error", err)
	}
}

func (r *Realtime) reconnectAllowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shouldReconnect
}

func (r *Realtime) setState(state constants.ChannelState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}
