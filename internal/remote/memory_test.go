package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/julianstephens/habitmap/internal/models"
)

func TestMemoryStorePullPush(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Pull(ctx, "acct"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Pull on empty store error = %v, want ErrNotFound", err)
	}

	doc := models.NewDocument(time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC))
	ts, err := store.Push(ctx, "acct", doc, doc.Meta.UpdatedAt)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if ts != doc.Meta.UpdatedAt {
		t.Errorf("Push timestamp = %q", ts)
	}

	rec, err := store.Pull(ctx, "acct")
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if rec.UpdatedAt != doc.Meta.UpdatedAt || len(rec.Body) == 0 {
		t.Errorf("record = %+v", rec)
	}
	if store.Pushes() != 1 {
		t.Errorf("Pushes = %d, want 1", store.Pushes())
	}
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemoryStore()

	changes, err := store.Subscribe(ctx, "acct")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	store.Put(Record{RemoteID: "other", Body: []byte(`{}`), UpdatedAt: "2024-06-12T08:00:00.000Z"})
	store.Put(Record{RemoteID: "acct", Body: []byte(`{}`), UpdatedAt: "2024-06-12T09:00:00.000Z"})

	select {
	case c := <-changes:
		if c.RemoteID != "acct" || c.UpdatedAt != "2024-06-12T09:00:00.000Z" {
			t.Errorf("change = %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}

	store.Disconnect()
	if _, ok := <-changes; ok {
		t.Error("channel should be closed after Disconnect")
	}
}

func TestMemoryStoreSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryStore()

	changes, err := store.Subscribe(ctx, "acct")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-changes:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	if n := store.Subscribers("acct"); n != 0 {
		t.Errorf("Subscribers = %d, want 0", n)
	}
}
