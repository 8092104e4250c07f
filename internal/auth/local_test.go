package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func setupTestProvider(t *testing.T, clock *time.Time) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(NewMemoryAccounts(), "test-secret",
		WithBcryptCost(bcrypt.MinCost),
		WithClock(func() time.Time { return *clock }),
		WithTTL(time.Hour, 24*time.Hour),
	)
	if err != nil {
		t.Fatalf("NewLocalProvider failed: %v", err)
	}
	return p
}

func TestNewLocalProviderRequiresSecret(t *testing.T) {
	if _, err := NewLocalProvider(NewMemoryAccounts(), ""); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	now := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
	p := setupTestProvider(t, &now)
	ctx := context.Background()

	sess, err := p.SignUp(ctx, " Ada@Example.com ", "correct horse")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if !sess.Valid() || sess.Email != "ada@example.com" || sess.RemoteID != sess.AccountID {
		t.Errorf("unexpected session: %+v", sess)
	}
	if !sess.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", sess.ExpiresAt)
	}

	if _, err := p.SignUp(ctx, "ada@example.com", "another pass"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate SignUp error = %v, want ErrAccountExists", err)
	}

	again, err := p.SignIn(ctx, "ADA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if again.AccountID != sess.AccountID {
		t.Errorf("SignIn account = %s, want %s", again.AccountID, sess.AccountID)
	}
}

func TestSignUpValidation(t *testing.T) {
	now := time.Now()
	p := setupTestProvider(t, &now)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"bad email", "not-an-email", "long enough", ErrInvalidEmail},
		{"display name form", "Ada <ada@example.com>", "long enough", ErrInvalidEmail},
		{"short password", "ada@example.com", "short", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.SignUp(context.Background(), tt.email, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("SignUp error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	now := time.Now()
	p := setupTestProvider(t, &now)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	for _, tc := range [][2]string{
		{"ada@example.com", "wrong password"},
		{"nobody@example.com", "correct horse"},
		{"garbage", "correct horse"},
	} {
		if _, err := p.SignIn(ctx, tc[0], tc[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("SignIn(%s) error = %v, want ErrInvalidCredentials", tc[0], err)
		}
	}
}

func TestRefresh(t *testing.T) {
	now := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
	p := setupTestProvider(t, &now)
	ctx := context.Background()

	sess, err := p.SignUp(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := p.ParseToken(sess.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired access token error = %v, want ErrInvalidToken", err)
	}

	refreshed, err := p.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.AccountID != sess.AccountID || !refreshed.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("refreshed session = %+v", refreshed)
	}

	if _, err := p.Refresh(ctx, sess.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh with access token error = %v, want ErrInvalidToken", err)
	}

	now = now.Add(48 * time.Hour)
	if _, err := p.Refresh(ctx, refreshed.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired refresh token error = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshRejectsForeignSignature(t *testing.T) {
	now := time.Now()
	p := setupTestProvider(t, &now)
	other, _ := NewLocalProvider(NewMemoryAccounts(), "other-secret", WithBcryptCost(bcrypt.MinCost))

	sess, err := other.SignUp(context.Background(), "eve@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := p.Refresh(context.Background(), sess.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign token error = %v, want ErrInvalidToken", err)
	}
}

func TestSessionNeedsRefresh(t *testing.T) {
	now := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
	s := Session{ExpiresAt: now.Add(2 * time.Minute)}

	if s.NeedsRefresh(now, time.Minute) {
		t.Error("two minutes left with a one minute margin should not need refresh")
	}
	if !s.NeedsRefresh(now, 2*time.Minute) {
		t.Error("expiry exactly at the margin should need refresh")
	}
	if !s.NeedsRefresh(now.Add(time.Hour), 0) {
		t.Error("expired session should need refresh")
	}
}
