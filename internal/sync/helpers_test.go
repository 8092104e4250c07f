package sync

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/julianstephens/habitmap/internal/auth"
	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/remote"
)

var testNow = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

const testRemoteID = "acct-1"

// memState is an in-memory LocalState
type memState struct {
	mu  sync.Mutex
	doc *models.Document
}

func newMemState(doc *models.Document) *memState {
	return &memState{doc: doc}
}

func (s *memState) Snapshot() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *memState) ReplaceIf(doc *models.Document, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || s.doc.Meta.UpdatedAt != expected {
		return false, nil
	}
	s.doc = doc.Clone()
	return true, nil
}

func (s *memState) set(doc *models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
}

// gatedStore blocks Pull until release is closed
type gatedStore struct {
	*remote.MemoryStore
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	pulls int
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: remote.NewMemoryStore(),
		entered:     make(chan struct{}, 8),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) Pull(ctx context.Context, remoteID string) (*remote.Record, error) {
	g.mu.Lock()
	g.pulls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-g.release
	return g.MemoryStore.Pull(ctx, remoteID)
}

func (g *gatedStore) Pulls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pulls
}

// pollOnlyStore hides the memory store's change stream
type pollOnlyStore struct {
	inner *remote.MemoryStore
}

func (p pollOnlyStore) Pull(ctx context.Context, remoteID string) (*remote.Record, error) {
	return p.inner.Pull(ctx, remoteID)
}

func (p pollOnlyStore) Push(ctx context.Context, remoteID string, doc *models.Document, updatedAt string) (string, error) {
	return p.inner.Push(ctx, remoteID, doc, updatedAt)
}

// fakeProvider only implements Refresh meaningfully
type fakeProvider struct {
	mu        sync.Mutex
	refreshes int
	next      auth.Session
	// refreshErr, when set, is returned by every Refresh
	refreshErr error
}

func (f *fakeProvider) SignUp(context.Context, string, string) (auth.Session, error) {
	return auth.Session{}, auth.ErrInvalidCredentials
}

func (f *fakeProvider) SignIn(context.Context, string, string) (auth.Session, error) {
	return auth.Session{}, auth.ErrInvalidCredentials
}

func (f *fakeProvider) Refresh(_ context.Context, token string) (auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return auth.Session{}, f.refreshErr
	}
	if token == "" {
		return auth.Session{}, auth.ErrInvalidToken
	}
	f.refreshes++
	return f.next, nil
}

func testSession() auth.Session {
	return auth.Session{
		AccountID:    testRemoteID,
		Email:        "ada@example.com",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(time.Hour),
		RemoteID:     testRemoteID,
	}
}

func emptyDoc(at time.Time) *models.Document {
	return models.NewDocument(at)
}

func docWithHabit(at time.Time, name string) *models.Document {
	doc := models.NewDocument(at)
	doc.Habits = append(doc.Habits, models.Habit{
		ID:           "h-" + name,
		Name:         name,
		Color:        constants.PaletteColor(0),
		CreatedAt:    models.FormatTimestamp(at),
		SubHabits:    []models.SubHabit{{ID: "h-" + name + "-sub-1", Name: name}},
		HeatmapView:  constants.DefaultHeatmapView,
		WeeklyTarget: constants.DefaultWeeklyTarget,
	})
	return doc
}

func putRemote(t *testing.T, store *remote.MemoryStore, doc *models.Document) {
	t.Helper()
	body, err := doc.Marshal()
	require.NoError(t, err)
	store.Put(remote.Record{RemoteID: testRemoteID, Body: body, UpdatedAt: doc.Meta.UpdatedAt})
}

func remoteDoc(t *testing.T, store remote.Store) *models.Document {
	t.Helper()
	rec, err := store.Pull(context.Background(), testRemoteID)
	require.NoError(t, err)
	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body, &doc))
	return &doc
}

func setupTestCoordinator(t *testing.T, store remote.Store, local LocalState, opts ...Option) *Coordinator {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithDebounce(20 * time.Millisecond),
	}
	c := NewCoordinator(store, &fakeProvider{}, local, append(base, opts...)...)
	c.Start(testSession())
	t.Cleanup(c.Stop)
	return c
}

// docWithHabits builds a document with one habit per name, each complete on
// the given dates
func docWithHabits(at time.Time, names []string, dates ...string) *models.Document {
	doc := models.NewDocument(at)
	for i, name := range names {
		h := docWithHabit(at, name).Habits[0]
		h.Color = constants.PaletteColor(i)
		doc.Habits = append(doc.Habits, h)
		for _, date := range dates {
			if doc.Entries[date] == nil {
				doc.Entries[date] = map[string]models.Entry{}
			}
			doc.Entries[date][h.ID] = models.Entry{
				SubHabits: map[string]bool{h.SubHabits[0].ID: true},
				UpdatedAt: models.FormatTimestamp(at),
			}
		}
	}
	return doc
}

func marshalDoc(t *testing.T, doc *models.Document) string {
	t.Helper()
	body, err := doc.Marshal()
	require.NoError(t, err)
	return string(body)
}
