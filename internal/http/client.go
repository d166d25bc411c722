package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent    = "dtcloud-go/1.0"
	defaultRetryInitial = 0
	maxLoggedBodyBytes  = 2048
)

// Client executes requests against one API root. It attaches credentials,
// retries rate limited calls and classifies every failure as *dtcloud.Error.
type Client struct {
	baseURL     string
	credentials dtcloud.CredentialProvider
	logger      dtcloud.Logger
	debug       bool
	userAgent   string

	httpClient      *http.Client
	requestTimeout  time.Duration
	responseTimeout time.Duration

	rateLimitRetryMax int
	retryInitial      time.Duration
	limiter           *rate.Limiter

	rest   *retryablehttp.Client
	stream *retryablehttp.Client
}

// Request describes one API call. Path is appended to the client's base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is encoded as JSON unless RawBody is set.
	Body    any
	RawBody []byte
	// Unauthenticated skips the Authorization header.
	Unauthenticated bool
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger dtcloud.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Timeouts configured with
// WithTimeouts are not applied to it. Streams use a copy without the client's
// Timeout so long-lived responses are not cut off.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeouts bounds each REST attempt and the wait for response headers.
// Zero disables the respective limit.
func WithTimeouts(request, response time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = request
		c.responseTimeout = response
	}
}

// WithRetryConfig limits retries after 429 responses and adds initial to every
// fallback delay. A non-positive max retries without bound.
func WithRetryConfig(rateLimitRetryMax int, initial time.Duration) Option {
	return func(c *Client) {
		c.rateLimitRetryMax = rateLimitRetryMax
		c.retryInitial = initial
	}
}

// WithRequestsPerSecond throttles attempts on the client side.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil

			return
		}

		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(rps))))
	}
}

// NewClient creates a client for baseURL. credentials may be nil.
func NewClient(baseURL string, credentials dtcloud.CredentialProvider, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		credentials:  credentials,
		userAgent:    defaultUserAgent,
		retryInitial: defaultRetryInitial,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.rest = client.newRetryClient(client.buildHTTPClient(client.requestTimeout))
	client.stream = client.newRetryClient(client.buildStreamHTTPClient())

	return client
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Logger returns the configured logger, which may be nil.
func (c *Client) Logger() dtcloud.Logger {
	return c.logger
}

func (c *Client) newRetryClient(httpClient *http.Client) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.Logger = nil

	if c.logger != nil && c.debug {
		retryClient.Logger = &leveledLogger{logger: c.logger}
	}

	retryClient.RetryMax = math.MaxInt32
	if c.rateLimitRetryMax > 0 {
		retryClient.RetryMax = c.rateLimitRetryMax
	}

	retryClient.CheckRetry = checkRetry
	retryClient.Backoff = c.backoff
	retryClient.PrepareRetry = c.prepareRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.RequestLogHook = c.logRetry

	return retryClient
}

func (c *Client) buildHTTPClient(timeout time.Duration) *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}

	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}

	transport = transport.Clone()
	transport.ResponseHeaderTimeout = c.responseTimeout

	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) buildStreamHTTPClient() *http.Client {
	if c.httpClient == nil || c.httpClient.Timeout == 0 {
		return c.buildHTTPClient(0)
	}

	streamClient := *c.httpClient
	streamClient.Timeout = 0

	return &streamClient
}

// checkRetry retries only rate limited responses. Transport failures and
// every other status are final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil || resp == nil {
		return false, nil
	}

	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// backoff honors Retry-After and falls back to the call's retry scheme.
func (c *Client) backoff(_, _ time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if delay, ok := dtcloud.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			return delay
		}
	}

	var scheme *RetryScheme
	if resp != nil && resp.Request != nil {
		scheme = retrySchemeFrom(resp.Request.Context())
	}

	if scheme == nil {
		scheme = NewUnboundedRetryScheme(c.retryInitial)
		for range attempt {
			scheme.NextBackoff()
		}
	}

	delay, _ := scheme.NextBackoff()

	return delay
}

// prepareRetry runs after every backoff and before the next attempt.
func (c *Client) prepareRetry(req *http.Request) error {
	err := c.wait(req.Context())
	if err != nil {
		return err
	}

	if req.Header.Get("Authorization") == "" {
		return nil
	}

	token, err := c.bearer(req.Context())
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token)

	return nil
}

func (c *Client) logRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 || c.logger == nil {
		return
	}

	c.logger.Warn("Rate limited, retrying request", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"attempt": attempt,
	})
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	return nil
}

// bearer returns a usable token, refreshing the provider once when it has none.
func (c *Client) bearer(ctx context.Context) (string, error) {
	token := c.credentials.CurrentToken()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := c.credentials.Refresh(ctx)
	if err != nil {
		return "", dtcloud.NewError(dtcloud.KindUnauthorized, "refreshing credentials failed", err)
	}

	token = c.credentials.CurrentToken()
	if !token.Valid() {
		return "", dtcloud.NewError(dtcloud.KindUnauthorized, "", dtcloud.ErrNoCredentials)
	}

	return token.AccessToken, nil
}

// Do executes the request and reads the whole response. For a classified
// failure with a response the returned *Response is still set.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpResp, err := c.execute(ctx, c.rest, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, dtcloud.Classify(0, nil, nil, fmt.Errorf("reading response body: %w", err))
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}

	c.logResponse(httpResp, body)

	if classified := dtcloud.Classify(resp.StatusCode, resp.Headers, body, nil); classified != nil {
		return resp, classified
	}

	return resp, nil
}

// Open executes the request without a request timeout and returns the
// response with its body unread. Non-2xx responses are read, closed and
// returned as classified errors. The caller closes the body.
func (c *Client) Open(ctx context.Context, req *Request) (*http.Response, error) {
	httpResp, err := c.execute(ctx, c.stream, req)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		c.logResponse(httpResp, nil)

		return httpResp, nil
	}

	defer func() { _ = httpResp.Body.Close() }()

	body, _ := io.ReadAll(httpResp.Body)
	c.logResponse(httpResp, body)

	return nil, dtcloud.Classify(httpResp.StatusCode, httpResp.Header, body, nil)
}

// execute sends the request and replays it once with refreshed credentials
// when a token was rejected.
func (c *Client) execute(ctx context.Context, retryClient *retryablehttp.Client, req *Request) (*http.Response, error) {
	httpResp, sentToken, err := c.send(ctx, retryClient, req)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusUnauthorized || !sentToken {
		return httpResp, nil
	}

	_, _ = io.Copy(io.Discard, httpResp.Body)
	_ = httpResp.Body.Close()

	if c.logger != nil {
		c.logger.Info("Token rejected, refreshing credentials", map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
		})
	}

	err = c.credentials.Refresh(ctx)
	if err != nil {
		return nil, dtcloud.NewError(dtcloud.KindUnauthorized, "refreshing credentials failed", err)
	}

	httpResp, _, err = c.send(ctx, retryClient, req)

	return httpResp, err
}

func (c *Client) send(ctx context.Context, retryClient *retryablehttp.Client, req *Request) (*http.Response, bool, error) {
	target, err := c.buildURL(req)
	if err != nil {
		return nil, false, err
	}

	body, err := encodeBody(req)
	if err != nil {
		return nil, false, err
	}

	ctx = withRetryScheme(ctx, NewUnboundedRetryScheme(c.retryInitial))

	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, rawBody)
	if err != nil {
		return nil, false, dtcloud.NewError(dtcloud.KindUnknownError, "building request", errors.Join(dtcloud.ErrInvalidURL, err))
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	sentToken := false

	if c.credentials != nil && !req.Unauthenticated {
		token, err := c.bearer(ctx)
		if err != nil {
			return nil, false, err
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)

		sentToken = true
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	err = c.wait(ctx)
	if err != nil {
		return nil, false, dtcloud.Classify(0, nil, nil, err)
	}

	c.logRequest(httpReq, body)

	//nolint:bodyclose // closed by Do, Open or the stream reader
	httpResp, err := retryClient.Do(httpReq)
	if err != nil {
		return nil, false, asClassified(err)
	}

	return httpResp, sentToken, nil
}

// asClassified keeps errors that were already classified, such as a failed
// credential refresh between retries, and maps everything else to
// ServerUnavailable.
func asClassified(err error) error {
	classified := &dtcloud.Error{}
	if errors.As(err, &classified) {
		return classified
	}

	return dtcloud.Classify(0, nil, nil, err)
}

func (c *Client) buildURL(req *Request) (string, error) {
	parsed, err := url.Parse(c.baseURL + req.Path)
	if err != nil {
		return "", dtcloud.NewError(dtcloud.KindUnknownError, "invalid request URL", errors.Join(dtcloud.ErrInvalidURL, err))
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", dtcloud.NewError(dtcloud.KindUnknownError, "invalid request URL "+c.baseURL+req.Path, dtcloud.ErrInvalidURL)
	}

	if len(req.Query) > 0 {
		parsed.RawQuery = req.Query.Encode()
	}

	return parsed.String(), nil
}

func encodeBody(req *Request) ([]byte, error) {
	if req.RawBody != nil {
		return req.RawBody, nil
	}

	if req.Body == nil {
		return nil, nil
	}

	encoded, err := json.Marshal(req.Body)
	if err != nil {
		return nil, dtcloud.NewError(dtcloud.KindUnknownError, "encoding request body", err)
	}

	return encoded, nil
}

func (c *Client) logRequest(req *retryablehttp.Request, body []byte) {
	if !c.debug || c.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	}

	if len(body) > 0 {
		fields["body"] = truncate(body)
	}

	c.logger.Debug("HTTP Request", fields)
}

func (c *Client) logResponse(resp *http.Response, body []byte) {
	if !c.debug || c.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	if len(body) > 0 {
		fields["body"] = truncate(body)
	}

	c.logger.Debug("HTTP Response", fields)
}

func truncate(body []byte) string {
	if len(body) <= maxLoggedBodyBytes {
		return string(body)
	}

	return string(body[:maxLoggedBodyBytes]) + "..."
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// Send executes the request and decodes the JSON response into T. An empty
// body yields the zero value of T.
func Send[T any](ctx context.Context, client *Client, req *Request) (*T, error) {
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	return Decode[T](resp)
}

// Decode decodes a response body into T.
func Decode[T any](resp *Response) (*T, error) {
	var result T

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return &result, nil
	}

	err := json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, undecodable(resp, err)
	}

	return &result, nil
}
