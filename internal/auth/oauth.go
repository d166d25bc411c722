package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Static errors for err113 compliance.
var (
	ErrEmptyAccessToken = errors.New("token endpoint returned an empty access token")
)

// TokenSourceProvider adapts an OAuth2 token source to the client's
// credential provider. The first token is fetched lazily on demand.
type TokenSourceProvider struct {
	fetch func(ctx context.Context) (*oauth2.Token, error)
	store *TokenStore
}

var _ dtcloud.CredentialProvider = (*TokenSourceProvider)(nil)

// NewTokenSourceProvider wraps any oauth2.TokenSource. Sources that cache
// tokens, such as oauth2.ReuseTokenSource, only return a new token once the
// cached one expired.
func NewTokenSourceProvider(source oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{
		fetch: func(context.Context) (*oauth2.Token, error) { return source.Token() },
		store: NewTokenStore(),
	}
}

// NewClientCredentialsProvider requests tokens with the client credentials
// grant. Every Refresh performs a new token request.
func NewClientCredentialsProvider(config *clientcredentials.Config) *TokenSourceProvider {
	return &TokenSourceProvider{
		fetch: config.Token,
		store: NewTokenStore(),
	}
}

// CurrentToken returns the last fetched token, or nil before the first Refresh.
func (p *TokenSourceProvider) CurrentToken() *dtcloud.Token {
	return p.store.Get()
}

// Refresh fetches a new token.
func (p *TokenSourceProvider) Refresh(ctx context.Context) error {
	token, err := p.fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch token: %w", err)
	}

	if token.AccessToken == "" {
		return ErrEmptyAccessToken
	}

	p.store.Set(&dtcloud.Token{AccessToken: token.AccessToken, ExpiresAt: token.Expiry})

	return nil
}

// SetToken seeds the provider, e.g. with a token cached from an earlier run.
func (p *TokenSourceProvider) SetToken(token *dtcloud.Token) {
	p.store.Set(token)
}
