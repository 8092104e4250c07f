// Package remote defines the remote document store the sync coordinator
// reconciles against.
package remote

import (
	"context"
	"errors"

	"github.com/julianstephens/habitmap/internal/models"
)

// ErrNotFound is returned by Pull when no document exists for the account
var ErrNotFound = errors.New("remote document not found")

// Record is a document as stored remotely
type Record struct {
	RemoteID string
	// Body is the raw JSON document; callers migrate it before use.
	Body      []byte
	UpdatedAt string
}

// Change announces that a remote document was written
type Change struct {
	RemoteID  string `json:"remoteId"`
	UpdatedAt string `json:"updatedAt"`
}

// Store is an opaque get/put-by-key document store
type Store interface {
	Pull(ctx context.Context, remoteID string) (*Record, error)
	// Push upserts doc and returns the timestamp the store recorded.
	Push(ctx context.Context, remoteID string, doc *models.Document, updatedAt string) (string, error)
}

// Subscriber is implemented by stores that can stream change notifications.
// The returned channel is closed when the subscription drops or ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, remoteID string) (<-chan Change, error)
}
