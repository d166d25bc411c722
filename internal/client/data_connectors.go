package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// DataConnectorsClient implements the dtcloud.DataConnectorsClient interface.
type DataConnectorsClient struct {
	httpClient *http_internal.Client
}

// NewDataConnectorsClient creates a new DataConnectorsClient.
func NewDataConnectorsClient(httpClient *http_internal.Client) *DataConnectorsClient {
	return &DataConnectorsClient{
		httpClient: httpClient,
	}
}

type metricsResponse struct {
	Metrics dtcloud.DataConnectorMetrics `json:"metrics"`
}

// Get retrieves a data connector.
func (c *DataConnectorsClient) Get(ctx context.Context, projectID, dataConnectorID string) (*dtcloud.DataConnector, error) {
	err := requireChild(projectID, dataConnectorID)
	if err != nil {
		return nil, err
	}

	connector, err := http_internal.Send[dtcloud.DataConnector](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "dataconnectors", dataConnectorID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting data connector: %w", err)
	}

	return connector, nil
}

// List retrieves every data connector of a project.
func (c *DataConnectorsClient) List(ctx context.Context, projectID string) ([]dtcloud.DataConnector, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	return collect[dtcloud.DataConnector](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "dataconnectors"),
	}, constants.PagingKeyDataConnectors, 0, "data connectors")
}

// Create creates a data connector.
func (c *DataConnectorsClient) Create(ctx context.Context, projectID string, connector *dtcloud.DataConnector) (*dtcloud.DataConnector, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	created, err := http_internal.Send[dtcloud.DataConnector](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   projectPath(projectID, "dataconnectors"),
		Body:   connector,
	})
	if err != nil {
		return nil, fmt.Errorf("creating data connector: %w", err)
	}

	return created, nil
}

// Update changes the fields named in updateMask, e.g. "displayName" or
// "httpConfig.url". An empty mask lets the server update every field.
func (c *DataConnectorsClient) Update(ctx context.Context, projectID, dataConnectorID string, connector *dtcloud.DataConnector, updateMask []string) (*dtcloud.DataConnector, error) {
	err := requireChild(projectID, dataConnectorID)
	if err != nil {
		return nil, err
	}

	updated, err := http_internal.Send[dtcloud.DataConnector](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPatch,
		Path:   projectPath(projectID, "dataconnectors", dataConnectorID),
		Query:  updateMaskValues(updateMask),
		Body:   connector,
	})
	if err != nil {
		return nil, fmt.Errorf("updating data connector: %w", err)
	}

	return updated, nil
}

// Delete deletes a data connector.
func (c *DataConnectorsClient) Delete(ctx context.Context, projectID, dataConnectorID string) error {
	err := requireChild(projectID, dataConnectorID)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Delete(ctx, projectPath(projectID, "dataconnectors", dataConnectorID))
	if err != nil {
		return fmt.Errorf("deleting data connector: %w", err)
	}

	return nil
}

// Sync resends the latest event of every device to the connector.
func (c *DataConnectorsClient) Sync(ctx context.Context, projectID, dataConnectorID string) error {
	err := requireChild(projectID, dataConnectorID)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Post(ctx, projectPath(projectID, "dataconnectors", dataConnectorID+":sync"), nil)
	if err != nil {
		return fmt.Errorf("syncing data connector: %w", err)
	}

	return nil
}

// GetMetrics retrieves delivery metrics of a data connector.
func (c *DataConnectorsClient) GetMetrics(ctx context.Context, projectID, dataConnectorID string) (*dtcloud.DataConnectorMetrics, error) {
	err := requireChild(projectID, dataConnectorID)
	if err != nil {
		return nil, err
	}

	resp, err := http_internal.Send[metricsResponse](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "dataconnectors", dataConnectorID+":metrics"),
	})
	if err != nil {
		return nil, fmt.Errorf("getting data connector metrics: %w", err)
	}

	return &resp.Metrics, nil
}

func requireChild(projectID, resourceID string) error {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return err
	}

	return requireID(resourceID, ErrResourceIDRequired)
}

func updateMaskValues(updateMask []string) url.Values {
	if len(updateMask) == 0 {
		return nil
	}

	return url.Values{"update_mask": []string{strings.Join(updateMask, ",")}}
}
