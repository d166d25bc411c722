package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister saves refreshed tokens, typically to the CLI config file.
type ConfigPersister interface {
	UpdateToken(profile, token string, expiresAt time.Time) error
}

// SeedableProvider is a provider that accepts a previously cached token.
type SeedableProvider interface {
	dtcloud.CredentialProvider
	SetToken(token *dtcloud.Token)
}

// ConfigTokenProvider wraps a provider and persists every refreshed token so
// later runs can reuse it until it expires.
type ConfigTokenProvider struct {
	provider  SeedableProvider
	persister ConfigPersister
	profile   string
	mutex     sync.Mutex
	onError   func(error)
}

var _ dtcloud.CredentialProvider = (*ConfigTokenProvider)(nil)

// NewConfigTokenProvider creates a persisting provider. A non-empty
// initialToken is used until it expires.
func NewConfigTokenProvider(provider SeedableProvider, persister ConfigPersister, profile, initialToken string, initialExpiry time.Time) *ConfigTokenProvider {
	if initialToken != "" {
		provider.SetToken(&dtcloud.Token{AccessToken: initialToken, ExpiresAt: initialExpiry})
	}

	return &ConfigTokenProvider{
		provider:  provider,
		persister: persister,
		profile:   profile,
	}
}

// OnPersistError registers a callback for tokens that could not be saved.
// Persisting failures never fail the request.
func (p *ConfigTokenProvider) OnPersistError(fn func(error)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.onError = fn
}

// CurrentToken returns the wrapped provider's token.
func (p *ConfigTokenProvider) CurrentToken() *dtcloud.Token {
	return p.provider.CurrentToken()
}

// Refresh refreshes the wrapped provider and persists the new token.
func (p *ConfigTokenProvider) Refresh(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	err := p.provider.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	token := p.provider.CurrentToken()
	if token == nil {
		return nil
	}

	err = p.persist(token)
	if err != nil && p.onError != nil {
		p.onError(err)
	}

	return nil
}

// TokenExpiry returns the current token's expiration time.
func (p *ConfigTokenProvider) TokenExpiry() time.Time {
	token := p.provider.CurrentToken()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

func (p *ConfigTokenProvider) persist(token *dtcloud.Token) error {
	if p.persister == nil {
		return ErrNoConfigPersister
	}

	err := p.persister.UpdateToken(p.profile, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}

	return nil
}
