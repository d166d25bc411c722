// Package auth provides credential providers for the client.
package auth

import (
	"context"
	"sync"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// TokenStore holds the current token and is safe for concurrent use.
type TokenStore struct {
	mutex sync.RWMutex
	token *dtcloud.Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns a copy of the stored token, or nil.
func (s *TokenStore) Get() *dtcloud.Token {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.token == nil {
		return nil
	}

	token := *s.token

	return &token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *dtcloud.Token) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if token == nil {
		s.token = nil

		return
	}

	stored := *token
	s.token = &stored
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.Set(nil)
}

// StaticTokenProvider serves a fixed bearer token.
type StaticTokenProvider struct {
	token *dtcloud.Token
}

var _ dtcloud.CredentialProvider = (*StaticTokenProvider)(nil)

// NewStaticTokenProvider creates a provider for a token that never changes.
func NewStaticTokenProvider(accessToken string) *StaticTokenProvider {
	return &StaticTokenProvider{token: &dtcloud.Token{AccessToken: accessToken}}
}

// CurrentToken returns the fixed token.
func (p *StaticTokenProvider) CurrentToken() *dtcloud.Token {
	if p.token.AccessToken == "" {
		return nil
	}

	token := *p.token

	return &token
}

// Refresh always fails, a static token cannot be replaced.
func (p *StaticTokenProvider) Refresh(context.Context) error {
	return dtcloud.ErrStaticTokenRefresh
}
