package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/remote"
)

const waitFor = 2 * time.Second

func TestRealtimeAppliesRemoteChanges(t *testing.T) {
	store := remote.NewMemoryStore()
	local := newMemState(emptyDoc(testNow.Add(-2 * time.Hour)))
	c := setupTestCoordinator(t, store, local)

	rt := NewRealtime(c, store, WithReconnectDelay(10*time.Millisecond))
	require.NoError(t, rt.Start(testRemoteID))
	defer rt.Stop()

	require.Eventually(t, func() bool {
		return rt.State() == constants.ChannelSubscribed && store.Subscribers(testRemoteID) == 1
	}, waitFor, 5*time.Millisecond)
	assert.False(t, rt.Polling())

	putRemote(t, store, docWithHabit(testNow.Add(-time.Hour), "theirs"))

	require.Eventually(t, func() bool {
		return len(local.Snapshot().Habits) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, "theirs", local.Snapshot().Habits[0].Name)
}

func TestRealtimeReconnectsAndCatchesUp(t *testing.T) {
	store := remote.NewMemoryStore()
	local := newMemState(emptyDoc(testNow.Add(-2 * time.Hour)))
	c := setupTestCoordinator(t, store, local)

	rt := NewRealtime(c, store, WithReconnectDelay(50*time.Millisecond))
	require.NoError(t, rt.Start(testRemoteID))
	defer rt.Stop()

	require.Eventually(t, func() bool { return store.Subscribers(testRemoteID) == 1 }, waitFor, 5*time.Millisecond)

	store.Disconnect()
	// Written while no subscription is open, so only the catch-up sync sees it.
	putRemote(t, store, docWithHabit(testNow.Add(-time.Hour), "missed"))

	require.Eventually(t, func() bool {
		return rt.State() == constants.ChannelSubscribed && store.Subscribers(testRemoteID) == 1
	}, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(local.Snapshot().Habits) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, "missed", local.Snapshot().Habits[0].Name)
}

func TestRealtimeStopDisablesReconnect(t *testing.T) {
	store := remote.NewMemoryStore()
	c := setupTestCoordinator(t, store, newMemState(emptyDoc(testNow)))

	rt := NewRealtime(c, store, WithReconnectDelay(10*time.Millisecond))
	require.NoError(t, rt.Start(testRemoteID))
	require.Eventually(t, func() bool { return store.Subscribers(testRemoteID) == 1 }, waitFor, 5*time.Millisecond)

	rt.Stop()
	assert.Equal(t, constants.ChannelUnsubscribed, rt.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.Subscribers(testRemoteID))
	assert.Equal(t, constants.ChannelUnsubscribed, rt.State())
}

func TestRealtimePollsWithoutChangeStream(t *testing.T) {
	inner := remote.NewMemoryStore()
	store := pollOnlyStore{inner: inner}
	local := newMemState(emptyDoc(testNow.Add(-2 * time.Hour)))
	c := setupTestCoordinator(t, store, local)

	rt := NewRealtime(c, store, WithPollInterval(time.Second))
	require.NoError(t, rt.Start(testRemoteID))
	defer rt.Stop()

	assert.True(t, rt.Polling())
	assert.Equal(t, constants.ChannelUnsubscribed, rt.State())

	putRemote(t, inner, docWithHabit(testNow.Add(-time.Hour), "polled"))
	require.Eventually(t, func() bool {
		return len(local.Snapshot().Habits) == 1
	}, 3*time.Second, 20*time.Millisecond)

	rt.Stop()
	assert.False(t, rt.Polling())
}
