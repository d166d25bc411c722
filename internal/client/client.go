package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired        = errors.New("base URL is required")
	ErrEmulatorURLRequired    = errors.New("emulator URL is required")
	ErrOrganizationIDRequired = errors.New("organization ID is required")
	ErrResourceIDRequired     = errors.New("resource ID is required")
	ErrParentRequired         = errors.New("parent resource name is required")
)

// Client implements the dtcloud.Client interface.
type Client struct {
	httpClient     *http.Client
	emulatorClient *http.Client
	logger         dtcloud.Logger

	// Resource clients
	devices         dtcloud.DevicesClient
	projects        dtcloud.ProjectsClient
	organizations   dtcloud.OrganizationsClient
	dataConnectors  dtcloud.DataConnectorsClient
	serviceAccounts dtcloud.ServiceAccountsClient
	members         dtcloud.MembersClient
	roles           dtcloud.RolesClient
	events          dtcloud.EventsClient
	emulator        dtcloud.EmulatorClient
	streams         dtcloud.StreamsClient
}

var _ dtcloud.Client = (*Client)(nil)

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *dtcloud.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPClient != nil {
		httpOpts = append(httpOpts, http.WithHTTPClient(config.HTTPClient))
	}

	if config.RequestTimeout > 0 || config.ResponseTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeouts(config.RequestTimeout, config.ResponseTimeout))
	}

	if config.RateLimitRetryMax > 0 {
		httpOpts = append(httpOpts, http.WithRetryConfig(config.RateLimitRetryMax, 0))
	}

	if config.RequestsPerSecond > 0 {
		httpOpts = append(httpOpts, http.WithRequestsPerSecond(config.RequestsPerSecond))
	}

	return httpOpts
}

// New creates a client for the REST API and the emulator.
func New(_ context.Context, config *dtcloud.Config) (*Client, error) {
	if config == nil {
		return nil, dtcloud.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	if config.EmulatorURL == "" {
		return nil, ErrEmulatorURLRequired
	}

	httpOpts := createHTTPClientOptions(config)

	client := NewWithHTTPClients(
		http.NewClient(strings.TrimSuffix(config.BaseURL, "/"), config.Credentials, httpOpts...),
		http.NewClient(strings.TrimSuffix(config.EmulatorURL, "/"), config.Credentials, httpOpts...),
	)
	client.logger = config.Logger

	return client, nil
}

// NewWithHTTPClients creates a client on top of existing HTTP clients.
func NewWithHTTPClients(api, emulator *http.Client) *Client {
	client := &Client{
		httpClient:     api,
		emulatorClient: emulator,
		logger:         api.Logger(),
	}

	client.initializeResourceClients()

	return client
}

func (c *Client) initializeResourceClients() {
	c.devices = NewDevicesClient(c.httpClient)
	c.projects = NewProjectsClient(c.httpClient)
	c.organizations = NewOrganizationsClient(c.httpClient)
	c.dataConnectors = NewDataConnectorsClient(c.httpClient)
	c.serviceAccounts = NewServiceAccountsClient(c.httpClient)
	c.members = NewMembersClient(c.httpClient)
	c.roles = NewRolesClient(c.httpClient)
	c.events = NewEventsClient(c.httpClient)
	c.emulator = NewEmulatorClient(c.emulatorClient)
	c.streams = NewStreamsClient(c.httpClient)
}

// Resource client accessors

// Devices implements dtcloud.Client.Devices.
func (c *Client) Devices() dtcloud.DevicesClient {
	return c.devices
}

// Projects implements dtcloud.Client.Projects.
func (c *Client) Projects() dtcloud.ProjectsClient {
	return c.projects
}

// Organizations implements dtcloud.Client.Organizations.
func (c *Client) Organizations() dtcloud.OrganizationsClient {
	return c.organizations
}

// DataConnectors implements dtcloud.Client.DataConnectors.
func (c *Client) DataConnectors() dtcloud.DataConnectorsClient {
	return c.dataConnectors
}

// ServiceAccounts implements dtcloud.Client.ServiceAccounts.
func (c *Client) ServiceAccounts() dtcloud.ServiceAccountsClient {
	return c.serviceAccounts
}

// Members implements dtcloud.Client.Members.
func (c *Client) Members() dtcloud.MembersClient {
	return c.members
}

// Roles implements dtcloud.Client.Roles.
func (c *Client) Roles() dtcloud.RolesClient {
	return c.roles
}

// Events implements dtcloud.Client.Events.
func (c *Client) Events() dtcloud.EventsClient {
	return c.events
}

// Emulator implements dtcloud.Client.Emulator.
func (c *Client) Emulator() dtcloud.EmulatorClient {
	return c.emulator
}

// Streams implements dtcloud.Client.Streams.
func (c *Client) Streams() dtcloud.StreamsClient {
	return c.streams
}

// requireID rejects empty identifiers before a request is built.
func requireID(value string, sentinel error) error {
	if value == "" {
		return dtcloud.NewError(dtcloud.KindUnknownError, sentinel.Error(), sentinel)
	}

	return nil
}

// projectPath returns "/projects/{projectID}" followed by any extra segments.
func projectPath(projectID string, segments ...string) string {
	return "/" + joinPath(append([]string{dtcloud.ProjectName(projectID)}, segments...)...)
}

func joinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// collect lists every page of req. A zero pageSize uses StandardPageSize.
func collect[T any](ctx context.Context, client *http.Client, req *http.Request, pagingKey string, pageSize int, what string) ([]T, error) {
	if pageSize <= 0 {
		pageSize = constants.StandardPageSize
	}

	items, err := dtcloud.CollectAll(ctx, http.Pages[T](client, req, pagingKey, pageSize), nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", what, err)
	}

	return items, nil
}
