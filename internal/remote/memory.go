package remote

import (
	"context"
	"sync"

	"github.com/julianstephens/habitmap/internal/models"
)

// MemoryStore is an in-process Store and Subscriber
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	subs    map[string][]chan Change
	pushes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		subs:    make(map[string][]chan Change),
	}
}

func (m *MemoryStore) Pull(ctx context.Context, remoteID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[remoteID]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return &rec, nil
}

func (m *MemoryStore) Push(ctx context.Context, remoteID string, doc *models.Document, updatedAt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := doc.Marshal()
	if err != nil {
		return "", err
	}
	m.Put(Record{RemoteID: remoteID, Body: body, UpdatedAt: updatedAt})

	m.mu.Lock()
	m.pushes++
	m.mu.Unlock()
	return updatedAt, nil
}

// Put writes rec directly and notifies subscribers, as another device would
func (m *MemoryStore) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.RemoteID] = rec
	change := Change{RemoteID: rec.RemoteID, UpdatedAt: rec.UpdatedAt}
	for _, ch := range m.subs[rec.RemoteID] {
		select {
		case ch <- change:
		default:
		}
	}
}

// Pushes counts successful Push calls
func (m *MemoryStore) Pushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushes
}

func (m *MemoryStore) Subscribe(ctx context.Context, remoteID string) (<-chan Change, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan Change, 16)

	m.mu.Lock()
	m.subs[remoteID] = append(m.subs[remoteID], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.drop(remoteID, ch)
	}()
	return ch, nil
}

// Disconnect closes every open subscription, simulating a dropped connection
func (m *MemoryStore) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, chans := range m.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(m.subs, id)
	}
}

// Subscribers reports how many subscriptions are open for remoteID
func (m *MemoryStore) Subscribers(remoteID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[remoteID])
}

func (m *MemoryStore) drop(remoteID string, target chan Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chans := m.subs[remoteID]
	for i, ch := range chans {
		if ch == target {
			m.subs[remoteID] = append(chans[:i], chans[i+1:]...)
			close(ch)
			return
		}
	}
}
