// Package tokens owns the single stored LinkedIn credential: the OAuth code
// exchange that creates it and the expiry checks done before publishing.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studio/internal/core"
	"studio/internal/linkedin"
	"studio/internal/logger"
	"studio/internal/metrics"
)

var (
	// ErrNoToken is returned when no LinkedIn account has been connected
	ErrNoToken = errors.New("no linkedin token stored")

	// ErrTokenExpired is returned when the stored token has expired
	ErrTokenExpired = errors.New("linkedin token has expired")
)

// Store persists the credential. persistence.TokenRepository satisfies it.
type Store interface {
	Get(ctx context.Context) (*core.LinkedInToken, error)
	Upsert(ctx context.Context, token *core.LinkedInToken) error
}

// OAuthClient performs the LinkedIn side of the exchange
type OAuthClient interface {
	Exchange(ctx context.Context, code string) (*linkedin.Token, error)
	UserInfo(ctx context.Context, accessToken string) (string, error)
}

// Manager handles the token lifecycle
type Manager struct {
	store   Store
	client  OAuthClient
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager creates a token manager
func NewManager(store Store, client OAuthClient, m *metrics.Metrics) *Manager {
	return &Manager{
		store:   store,
		client:  client,
		metrics: m,
		now:     time.Now,
	}
}

// ExchangeCode trades an authorization code for a token, looks up the
// member's subject and replaces the stored credential
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*core.LinkedInToken, error) {
	tok, err := m.client.Exchange(ctx, code)
	if err != nil {
		m.metrics.IncTokenExchange("error")
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	// A missing subject only prevents publishing, so the token is still kept.
	sub, err := m.client.UserInfo(ctx, tok.AccessToken)
	if err != nil {
		logger.Warn("Failed to fetch LinkedIn userinfo", "error", err)
	}

	token := &core.LinkedInToken{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		Subject:     sub,
		UpdatedAt:   m.now(),
	}
	if err := m.store.Upsert(ctx, token); err != nil {
		m.metrics.IncTokenExchange("error")
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	m.metrics.IncTokenExchange("success")
	logger.Info("LinkedIn account connected", "linkedin_sub", sub, "expires_at", token.ExpiresAt)
	return token, nil
}

// Active returns the stored token, or nil when none exists
func (m *Manager) Active(ctx context.Context) (*core.LinkedInToken, error) {
	token, err := m.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// IsExpired reports whether token is past its expiry
func (m *Manager) IsExpired(token *core.LinkedInToken) bool {
	return token.IsExpired(m.now())
}

// Usable returns the stored token when it can be used for publishing
func (m *Manager) Usable(ctx context.Context) (*core.LinkedInToken, error) {
	token, err := m.Active(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil || token.AccessToken == "" {
		return nil, ErrNoToken
	}
	if m.IsExpired(token) {
		return nil, ErrTokenExpired
	}
	return token, nil
}
