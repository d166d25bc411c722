package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// OrganizationsClient implements the dtcloud.OrganizationsClient interface.
type OrganizationsClient struct {
	httpClient *http_internal.Client
}

// NewOrganizationsClient creates a new OrganizationsClient.
func NewOrganizationsClient(httpClient *http_internal.Client) *OrganizationsClient {
	return &OrganizationsClient{
		httpClient: httpClient,
	}
}

// Get retrieves an organization.
func (c *OrganizationsClient) Get(ctx context.Context, organizationID string) (*dtcloud.Organization, error) {
	err := requireID(organizationID, ErrOrganizationIDRequired)
	if err != nil {
		return nil, err
	}

	organization, err := http_internal.Send[dtcloud.Organization](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   "/" + dtcloud.OrganizationName(organizationID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting organization: %w", err)
	}

	return organization, nil
}

// List retrieves every organization visible to the caller.
func (c *OrganizationsClient) List(ctx context.Context) ([]dtcloud.Organization, error) {
	return collect[dtcloud.Organization](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   "/organizations",
	}, constants.PagingKeyOrganizations, 0, "organizations")
}

// ListPermissions retrieves the caller's permissions in an organization.
func (c *OrganizationsClient) ListPermissions(ctx context.Context, organizationID string) ([]string, error) {
	err := requireID(organizationID, ErrOrganizationIDRequired)
	if err != nil {
		return nil, err
	}

	return collect[string](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   "/" + joinPath(dtcloud.OrganizationName(organizationID), "permissions"),
	}, constants.PagingKeyPermissions, 0, "organization permissions")
}
