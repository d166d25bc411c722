package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// RolesClient implements the dtcloud.RolesClient interface.
type RolesClient struct {
	httpClient *http_internal.Client
}

// NewRolesClient creates a new RolesClient.
func NewRolesClient(httpClient *http_internal.Client) *RolesClient {
	return &RolesClient{
		httpClient: httpClient,
	}
}

// Get retrieves a role such as "project.developer".
func (c *RolesClient) Get(ctx context.Context, roleID string) (*dtcloud.Role, error) {
	err := requireID(roleID, ErrResourceIDRequired)
	if err != nil {
		return nil, err
	}

	role, err := http_internal.Send[dtcloud.Role](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   "/roles/" + roleID,
	})
	if err != nil {
		return nil, fmt.Errorf("getting role: %w", err)
	}

	return role, nil
}

// List retrieves every role.
func (c *RolesClient) List(ctx context.Context) ([]dtcloud.Role, error) {
	return collect[dtcloud.Role](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   "/roles",
	}, constants.PagingKeyRoles, 0, "roles")
}
