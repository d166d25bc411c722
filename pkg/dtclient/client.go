package dtclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/dtcloud/internal/auth"
	"github.com/fivetwenty-io/dtcloud/internal/client"
	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// New creates a client. The config is copied; unset endpoints and timeouts
// get their defaults.
func New(ctx context.Context, config *dtcloud.Config) (dtcloud.Client, error) {
	if config == nil {
		return nil, dtcloud.ErrConfigRequired
	}

	normalized := *config
	normalized.BaseURL = normalizeEndpoint(config.BaseURL, constants.DefaultBaseURL)
	normalized.EmulatorURL = normalizeEndpoint(config.EmulatorURL, constants.DefaultEmulatorURL)

	if normalized.RequestTimeout == 0 {
		normalized.RequestTimeout = constants.DefaultHTTPTimeout
	}

	if normalized.ResponseTimeout == 0 {
		normalized.ResponseTimeout = constants.DefaultResponseTimeout
	}

	client, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// NewWithToken creates a client for the default endpoints with a fixed token.
func NewWithToken(ctx context.Context, token string) (dtcloud.Client, error) {
	return New(ctx, &dtcloud.Config{Credentials: StaticToken(token)})
}

// NewWithClientCredentials creates a client for the default endpoints that
// obtains tokens with the OAuth2 client credentials grant. An empty tokenURL
// uses the platform's identity endpoint.
func NewWithClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string) (dtcloud.Client, error) {
	return New(ctx, &dtcloud.Config{Credentials: ClientCredentials(clientID, clientSecret, tokenURL)})
}

// StaticToken returns a provider for a token that never changes.
func StaticToken(token string) dtcloud.CredentialProvider {
	return auth.NewStaticTokenProvider(token)
}

// ClientCredentials returns a provider using the OAuth2 client credentials
// grant.
func ClientCredentials(clientID, clientSecret, tokenURL string) dtcloud.CredentialProvider {
	if tokenURL == "" {
		tokenURL = constants.DefaultTokenURL
	}

	return auth.NewClientCredentialsProvider(&clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	})
}

// TokenSource adapts any oauth2.TokenSource, for example one built from an
// oauth2.Config after an authorization code exchange.
func TokenSource(source oauth2.TokenSource) dtcloud.CredentialProvider {
	return auth.NewTokenSourceProvider(source)
}

// normalizeEndpoint applies the default, adds https:// when no scheme is
// given and drops trailing slashes.
func normalizeEndpoint(endpoint, fallback string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = fallback
	}

	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}
