package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// LabelDisplayName is the label holding a device's display name.
const LabelDisplayName = "name"

// DevicesClient implements the dtcloud.DevicesClient interface.
type DevicesClient struct {
	httpClient *http_internal.Client
}

// NewDevicesClient creates a new DevicesClient.
func NewDevicesClient(httpClient *http_internal.Client) *DevicesClient {
	return &DevicesClient{
		httpClient: httpClient,
	}
}

type batchUpdateRequest struct {
	Devices      []string          `json:"devices"`
	AddLabels    map[string]string `json:"addLabels,omitempty"`
	RemoveLabels []string          `json:"removeLabels,omitempty"`
}

type batchUpdateResponse struct {
	BatchErrors []dtcloud.BatchError `json:"batchErrors"`
}

type transferRequest struct {
	Devices []string `json:"devices"`
}

type transferResponse struct {
	TransferErrors []dtcloud.BatchError `json:"transferErrors"`
}

// Get retrieves a single device.
func (c *DevicesClient) Get(ctx context.Context, projectID, deviceID string) (*dtcloud.Device, error) {
	err := requireDevice(projectID, deviceID)
	if err != nil {
		return nil, err
	}

	device, err := http_internal.Send[dtcloud.Device](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "devices", deviceID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting device: %w", err)
	}

	return device, nil
}

// List retrieves every device of a project.
func (c *DevicesClient) List(ctx context.Context, projectID string, opts *dtcloud.DeviceListOptions) ([]dtcloud.Device, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	return collect[dtcloud.Device](ctx, c.httpClient, c.listRequest(projectID, opts), constants.PagingKeyDevices, devicePageSize(opts), "devices")
}

// ListPage retrieves one page of devices.
func (c *DevicesClient) ListPage(ctx context.Context, projectID string, opts *dtcloud.DeviceListOptions, pageToken string) (*dtcloud.PagedResult[dtcloud.Device], error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	page, err := http_internal.GetPage[dtcloud.Device](ctx, c.httpClient, c.listRequest(projectID, opts), constants.PagingKeyDevices, devicePageSize(opts), pageToken)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	return page, nil
}

func (c *DevicesClient) listRequest(projectID string, opts *dtcloud.DeviceListOptions) *http_internal.Request {
	return &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "devices"),
		Query:  opts.Values(),
	}
}

func devicePageSize(opts *dtcloud.DeviceListOptions) int {
	if opts == nil {
		return 0
	}

	return opts.PageSize
}

// BatchUpdateLabels adds and removes labels on several devices at once. Devices
// that could not be updated are reported in the returned batch errors.
func (c *DevicesClient) BatchUpdateLabels(ctx context.Context, projectID string, update *dtcloud.DeviceLabelUpdate) ([]dtcloud.BatchError, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	if update == nil || len(update.DeviceIDs) == 0 {
		return nil, requireID("", dtcloud.ErrDeviceIDRequired)
	}

	request := &batchUpdateRequest{
		Devices:      deviceNames(projectID, update.DeviceIDs),
		AddLabels:    update.AddLabels,
		RemoveLabels: update.RemoveLabels,
	}

	resp, err := http_internal.Send[batchUpdateResponse](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   projectPath(projectID, "devices:batchUpdate"),
		Body:   request,
	})
	if err != nil {
		return nil, fmt.Errorf("updating device labels: %w", err)
	}

	return resp.BatchErrors, nil
}

// SetLabel sets one label on a device and returns the updated device.
func (c *DevicesClient) SetLabel(ctx context.Context, projectID, deviceID, key, value string) (*dtcloud.Device, error) {
	return c.updateOne(ctx, projectID, deviceID, &dtcloud.DeviceLabelUpdate{
		DeviceIDs: []string{deviceID},
		AddLabels: map[string]string{key: value},
	})
}

// RemoveLabel removes one label from a device and returns the updated device.
func (c *DevicesClient) RemoveLabel(ctx context.Context, projectID, deviceID, key string) (*dtcloud.Device, error) {
	return c.updateOne(ctx, projectID, deviceID, &dtcloud.DeviceLabelUpdate{
		DeviceIDs:    []string{deviceID},
		RemoveLabels: []string{key},
	})
}

// SetDisplayName sets the "name" label of a device.
func (c *DevicesClient) SetDisplayName(ctx context.Context, projectID, deviceID, name string) (*dtcloud.Device, error) {
	return c.SetLabel(ctx, projectID, deviceID, LabelDisplayName, name)
}

func (c *DevicesClient) updateOne(ctx context.Context, projectID, deviceID string, update *dtcloud.DeviceLabelUpdate) (*dtcloud.Device, error) {
	err := requireDevice(projectID, deviceID)
	if err != nil {
		return nil, err
	}

	batchErrors, err := c.BatchUpdateLabels(ctx, projectID, update)
	if err != nil {
		return nil, err
	}

	if len(batchErrors) > 0 {
		return nil, fmt.Errorf("updating device labels: %w", batchFailure(batchErrors[0]))
	}

	return c.Get(ctx, projectID, deviceID)
}

// Transfer moves devices from sourceProjectID into projectID.
func (c *DevicesClient) Transfer(ctx context.Context, projectID, sourceProjectID string, deviceIDs []string) ([]dtcloud.BatchError, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	err = requireID(sourceProjectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	resp, err := http_internal.Send[transferResponse](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   projectPath(projectID, "devices:transfer"),
		Body:   &transferRequest{Devices: deviceNames(sourceProjectID, deviceIDs)},
	})
	if err != nil {
		return nil, fmt.Errorf("transferring devices: %w", err)
	}

	return resp.TransferErrors, nil
}

func requireDevice(projectID, deviceID string) error {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return err
	}

	return requireID(deviceID, dtcloud.ErrDeviceIDRequired)
}

func deviceNames(projectID string, deviceIDs []string) []string {
	names := make([]string, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		names = append(names, dtcloud.DeviceName(projectID, id))
	}

	return names
}

// batchFailure turns a per-device batch error into a classified error.
func batchFailure(batchErr dtcloud.BatchError) error {
	classified := dtcloud.NewError(dtcloud.KindForStatus(batchErr.Code), batchErr.Error, nil)
	classified.StatusCode = batchErr.Code
	classified.Code = batchErr.Code
	classified.Help = batchErr.Help

	return classified
}
