// Package postgres is the PostgreSQL remote document store. Writes fire a
// NOTIFY through a table trigger; Subscribe turns those into change events.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/logger"
	"github.com/julianstephens/habitmap/internal/migration"
	"github.com/julianstephens/habitmap/internal/models"
	"github.com/julianstephens/habitmap/internal/remote"
	"github.com/julianstephens/habitmap/migrations"
)

const (
	listenerMinReconnect = time.Second
	listenerMaxReconnect = time.Minute
)

// Store implements remote.Store, remote.Subscriber and auth.AccountStore
type Store struct {
	connStr string
	db      *sql.DB
}

func New(connStr string) *Store {
	return &Store{
		connStr: withSearchPath(connStr),
	}
}

// Init connects, creates the schema and applies pending migrations
func (s *Store) Init() error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasParam(s.connStr, "sslmode") {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) runMigrations() error {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	runner := migration.NewRunner(s.db, subFS, migration.Postgres)
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Debug(msg)
	})
	return err
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Pull(ctx context.Context, remoteID string) (*remote.Record, error) {
	rec := remote.Record{RemoteID: remoteID}
	err := s.db.QueryRowContext(ctx,
		"SELECT body, updated_at FROM documents WHERE remote_id = $1", remoteID,
	).Scan(&rec.Body, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pull document: %w", err)
	}
	return &rec, nil
}

func (s *Store) Push(ctx context.Context, remoteID string, doc *models.Document, updatedAt string) (string, error) {
	body, err := doc.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	var stored string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (remote_id, body, updated_at, written_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (remote_id) DO UPDATE
		SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at, written_at = now()
		RETURNING updated_at`,
		remoteID, string(body), updatedAt,
	).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to push document: %w", err)
	}
	return stored, nil
}

// Subscribe listens for document writes on the notify channel and forwards
// those for remoteID. The channel closes when the listener disconnects so
// the caller can run its own reconnect policy.
func (s *Store) Subscribe(ctx context.Context, remoteID string) (<-chan remote.Change, error) {
	events := make(chan pq.ListenerEventType, 4)
	listener := pq.NewListener(s.connStr, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("Realtime listener event", "event", ev, "error", err)
			}
			select {
			case events <- ev:
			default:
			}
		})

	if err := listener.Listen(constants.RealtimeNotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen for changes: %w", err)
	}

	out := make(chan remote.Change, 16)
	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev == pq.ListenerEventDisconnected || ev == pq.ListenerEventConnectionAttemptFailed {
					return
				}
			case n := <-listener.Notify:
				if n == nil {
					continue
				}
				var change remote.Change
				if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
					logger.Warn("Ignoring malformed change notification", "payload", n.Extra, "error", err)
					continue
				}
				if change.RemoteID != remoteID {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
