package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitmap/internal/auth"
)

const uniqueViolation = "23505"

func (s *Store) CreateAccount(ctx context.Context, account auth.Account) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)",
		account.ID, strings.ToLower(account.Email), account.PasswordHash, account.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return auth.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1",
		strings.ToLower(email)))
}

func (s *Store) AccountByID(ctx context.Context, id string) (auth.Account, error) {
	return s.scanAccount(s.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM accounts WHERE id = $1", id))
}

func (s *Store) scanAccount(row *sql.Row) (auth.Account, error) {
	var a auth.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return a, nil
}
