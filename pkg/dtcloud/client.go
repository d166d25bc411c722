package dtcloud

import (
	"context"
	"net/http"
	"time"
)

// Client is the entry point to every resource of the platform.
type Client interface {
	Devices() DevicesClient
	Projects() ProjectsClient
	Organizations() OrganizationsClient
	DataConnectors() DataConnectorsClient
	ServiceAccounts() ServiceAccountsClient
	Members() MembersClient
	Roles() RolesClient
	Events() EventsClient
	Emulator() EmulatorClient
	Streams() StreamsClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Token is a bearer token together with its expiry. A zero ExpiresAt means the
// token does not expire.
type Token struct {
	AccessToken string    `json:"access_token" yaml:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"   yaml:"expires_at"`
}

// tokenExpiryBuffer treats tokens about to expire as already expired.
const tokenExpiryBuffer = 30 * time.Second

// Valid reports whether the token is present and not about to expire.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(tokenExpiryBuffer).Before(t.ExpiresAt)
}

// CredentialProvider supplies bearer tokens. Acquiring them is up to the
// implementation; the client only reads the current token and asks for a
// refresh when none is usable or the server rejected it.
type CredentialProvider interface {
	// CurrentToken returns the token to use, or nil when none is available.
	CurrentToken() *Token
	// Refresh obtains a new token.
	Refresh(ctx context.Context) error
}

// Config represents client configuration.
//
// Values are passed explicitly to the constructors so that several independently
// configured clients can live in one process.
type Config struct {
	// BaseURL is the REST API root, e.g. "https://api.d21s.com/v2".
	BaseURL string
	// EmulatorURL is the emulator API root, e.g. "https://emulator.d21s.com/v2".
	EmulatorURL string

	// Credentials supplies bearer tokens. Nil sends unauthenticated requests.
	Credentials CredentialProvider

	// RequestTimeout bounds each HTTP attempt, including reading the body.
	// Streams ignore it.
	RequestTimeout time.Duration
	// ResponseTimeout bounds the wait for response headers.
	ResponseTimeout time.Duration
	// RateLimitRetryMax limits retries after 429 responses. Zero retries
	// without bound, honoring Retry-After each time.
	RateLimitRetryMax int
	// RequestsPerSecond enables a client-side limiter when positive.
	RequestsPerSecond float64

	// Debug enables request/response logging when a Logger is provided.
	Debug bool
	// Logger is an optional structured logger.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// HTTPClient replaces the underlying *http.Client. Its Timeout applies to
	// REST calls only, streams run on a copy without it.
	HTTPClient *http.Client
}
