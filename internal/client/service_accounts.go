package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// ServiceAccountsClient implements the dtcloud.ServiceAccountsClient interface.
type ServiceAccountsClient struct {
	httpClient *http_internal.Client
}

// NewServiceAccountsClient creates a new ServiceAccountsClient.
func NewServiceAccountsClient(httpClient *http_internal.Client) *ServiceAccountsClient {
	return &ServiceAccountsClient{
		httpClient: httpClient,
	}
}

// createKeyResponse carries the key secret next to the key, it is only
// returned once.
type createKeyResponse struct {
	Key    dtcloud.ServiceAccountKey `json:"key"`
	Secret string                    `json:"secret"`
}

func serviceAccountPath(projectID, serviceAccountID string, segments ...string) string {
	return projectPath(projectID, append([]string{"serviceaccounts", serviceAccountID}, segments...)...)
}

// Get retrieves a service account.
func (c *ServiceAccountsClient) Get(ctx context.Context, projectID, serviceAccountID string) (*dtcloud.ServiceAccount, error) {
	err := requireChild(projectID, serviceAccountID)
	if err != nil {
		return nil, err
	}

	account, err := http_internal.Send[dtcloud.ServiceAccount](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   serviceAccountPath(projectID, serviceAccountID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting service account: %w", err)
	}

	return account, nil
}

// List retrieves every service account of a project.
func (c *ServiceAccountsClient) List(ctx context.Context, projectID string) ([]dtcloud.ServiceAccount, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	return collect[dtcloud.ServiceAccount](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "serviceaccounts"),
	}, constants.PagingKeyServiceAccounts, 0, "service accounts")
}

// Create creates a service account.
func (c *ServiceAccountsClient) Create(ctx context.Context, projectID string, account *dtcloud.ServiceAccount) (*dtcloud.ServiceAccount, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	created, err := http_internal.Send[dtcloud.ServiceAccount](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   projectPath(projectID, "serviceaccounts"),
		Body:   account,
	})
	if err != nil {
		return nil, fmt.Errorf("creating service account: %w", err)
	}

	return created, nil
}

// Update changes the fields named in updateMask.
func (c *ServiceAccountsClient) Update(ctx context.Context, projectID, serviceAccountID string, account *dtcloud.ServiceAccount, updateMask []string) (*dtcloud.ServiceAccount, error) {
	err := requireChild(projectID, serviceAccountID)
	if err != nil {
		return nil, err
	}

	updated, err := http_internal.Send[dtcloud.ServiceAccount](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPatch,
		Path:   serviceAccountPath(projectID, serviceAccountID),
		Query:  updateMaskValues(updateMask),
		Body:   account,
	})
	if err != nil {
		return nil, fmt.Errorf("updating service account: %w", err)
	}

	return updated, nil
}

// Delete deletes a service account.
func (c *ServiceAccountsClient) Delete(ctx context.Context, projectID, serviceAccountID string) error {
	err := requireChild(projectID, serviceAccountID)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Delete(ctx, serviceAccountPath(projectID, serviceAccountID))
	if err != nil {
		return fmt.Errorf("deleting service account: %w", err)
	}

	return nil
}

// CreateKey creates a key. The returned key carries its secret, which cannot
// be retrieved again.
func (c *ServiceAccountsClient) CreateKey(ctx context.Context, projectID, serviceAccountID string) (*dtcloud.ServiceAccountKey, error) {
	err := requireChild(projectID, serviceAccountID)
	if err != nil {
		return nil, err
	}

	resp, err := http_internal.Send[createKeyResponse](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   serviceAccountPath(projectID, serviceAccountID, "keys"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating service account key: %w", err)
	}

	key := resp.Key
	key.Secret = resp.Secret

	return &key, nil
}

// ListKeys retrieves the keys of a service account, without secrets.
func (c *ServiceAccountsClient) ListKeys(ctx context.Context, projectID, serviceAccountID string) ([]dtcloud.ServiceAccountKey, error) {
	err := requireChild(projectID, serviceAccountID)
	if err != nil {
		return nil, err
	}

	return collect[dtcloud.ServiceAccountKey](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   serviceAccountPath(projectID, serviceAccountID, "keys"),
	}, constants.PagingKeyKeys, 0, "service account keys")
}

// DeleteKey deletes a key.
func (c *ServiceAccountsClient) DeleteKey(ctx context.Context, projectID, serviceAccountID, keyID string) error {
	err := requireChild(projectID, serviceAccountID)
	if err != nil {
		return err
	}

	err = requireID(keyID, ErrResourceIDRequired)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Delete(ctx, serviceAccountPath(projectID, serviceAccountID, "keys", keyID))
	if err != nil {
		return fmt.Errorf("deleting service account key: %w", err)
	}

	return nil
}
