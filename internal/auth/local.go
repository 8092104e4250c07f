package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/habitmap/internal/constants"
	"github.com/julianstephens/habitmap/internal/logger"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// Claims are carried by both access and refresh tokens
type Claims struct {
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// LocalProvider authenticates against an AccountStore and signs its own tokens
type LocalProvider struct {
	accounts   AccountStore
	secret     []byte
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
}

// LocalOption configures a LocalProvider
type LocalOption func(*LocalProvider)

// WithClock overrides the time source for token issue and expiry
func WithClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) { p.now = now }
}

// WithTTL sets access and refresh token lifetimes
func WithTTL(access, refresh time.Duration) LocalOption {
	return func(p *LocalProvider) {
		p.accessTTL = access
		p.refreshTTL = refresh
	}
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) LocalOption {
	return func(p *LocalProvider) { p.cost = cost }
}

// NewLocalProvider creates a provider signing tokens with secret
func NewLocalProvider(accounts AccountStore, secret string, opts ...LocalOption) (*LocalProvider, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret is required (set %s)", constants.EnvJWTSecret)
	}
	p := &LocalProvider{
		accounts:   accounts,
		secret:     []byte(secret),
		now:        time.Now,
		accessTTL:  constants.AccessTokenTTL,
		refreshTTL: constants.RefreshTokenTTL,
		cost:       bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < MinPasswordLength {
		return Session{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account := Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.accounts.CreateAccount(ctx, account); err != nil {
		return Session{}, err
	}
	logger.Info("Account created", "account", account.ID)
	return p.issue(account)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	account, err := p.accounts.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return p.issue(account)
}

func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := p.ParseToken(refreshToken)
	if err != nil || claims.TokenType != tokenRefresh {
		return Session{}, ErrInvalidToken
	}
	account, err := p.accounts.AccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	return p.issue(account)
}

// ParseToken validates a token signed by this provider
func (p *LocalProvider) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (p *LocalProvider) issue(account Account) (Session, error) {
	now := p.now()
	expires := now.Add(p.accessTTL)

	access, err := p.sign(account, tokenAccess, now, expires)
	if err != nil {
		return Session{}, err
	}
	refresh, err := p.sign(account, tokenRefresh, now, now.Add(p.refreshTTL))
	if err != nil {
		return Session{}, err
	}

	return Session{
		AccountID:    account.ID,
		Email:        account.Email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expires,
		RemoteID:     account.ID,
	}, nil
}

func (p *LocalProvider) sign(account Account, typ string, issued, expires time.Time) (string, error) {
	claims := Claims{
		Email:     account.Email,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    constants.AppName,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
