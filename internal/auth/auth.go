// Package auth issues and refreshes account sessions. The sync engine only
// depends on the Provider contract; LocalProvider is a self-contained
// implementation backed by bcrypt password hashes and signed JWTs.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// MinPasswordLength is the shortest password SignUp accepts
const MinPasswordLength = 8

// Session is an authenticated session for one account
type Session struct {
	AccountID    string    `json:"accountId"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	// RemoteID keys the account's document in the remote store
	RemoteID string `json:"remoteId"`
}

// Valid reports whether the session carries an access token
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RemoteID != ""
}

// NeedsRefresh reports whether the access token expires within margin of now
func (s Session) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(s.ExpiresAt)
}

// Provider is the auth contract the sync engine needs
type Provider interface {
	SignUp(ctx context.Context, email, password string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
}

// Account is a stored credential record
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore persists accounts. Lookups by email are case-insensitive;
// implementations store emails lower-cased.
type AccountStore interface {
	CreateAccount(ctx context.Context, account Account) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
}
