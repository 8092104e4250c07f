// Package keyring keeps secrets in the OS keyring: the remote database
// connection string and each account's refresh token.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitmap/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the requested key
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

const refreshTokenPrefix = "refresh-token:"

func get(user string) (string, error) {
	secret, err := keyring.Get(constants.AppName, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

func set(user, secret string) error {
	if err := keyring.Set(constants.AppName, user, secret); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func remove(user string) error {
	if err := keyring.Delete(constants.AppName, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// GetConnectionString retrieves the remote database connection string.
// Returns ErrNotFound if none is stored.
func GetConnectionString() (string, error) {
	return get(constants.DefaultKeyringUser)
}

// SetConnectionString stores the remote database connection string
func SetConnectionString(connStr string) error {
	if connStr == "" {
		return errors.New("connection string cannot be empty")
	}
	return set(constants.DefaultKeyringUser, connStr)
}

// DeleteConnectionString removes the stored connection string
func DeleteConnectionString() error {
	return remove(constants.DefaultKeyringUser)
}

// GetRefreshToken returns the refresh token saved for an account
func GetRefreshToken(accountID string) (string, error) {
	return get(refreshTokenPrefix + accountID)
}

// SetRefreshToken saves an account's refresh token, replacing any previous one
func SetRefreshToken(accountID, token string) error {
	if accountID == "" || token == "" {
		return errors.New("account id and token are required")
	}
	return set(refreshTokenPrefix+accountID, token)
}

// DeleteRefreshToken forgets an account's refresh token. A missing token is
// not an error.
func DeleteRefreshToken(accountID string) error {
	if err := remove(refreshTokenPrefix + accountID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
