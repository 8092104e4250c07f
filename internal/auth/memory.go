package auth

import (
	"context"
	"strings"
	"sync"
)

// MemoryAccounts is an in-process AccountStore
type MemoryAccounts struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryAccounts) CreateAccount(_ context.Context, account Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(account.Email)
	if _, ok := m.byEmail[email]; ok {
		return ErrAccountExists
	}
	if _, ok := m.byID[account.ID]; ok {
		return ErrAccountExists
	}
	account.Email = email
	m.byID[account.ID] = account
	m.byEmail[email] = account.ID
	return nil
}

func (m *MemoryAccounts) AccountByEmail(_ context.Context, email string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryAccounts) AccountByID(_ context.Context, id string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}
