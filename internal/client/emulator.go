package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// zeroUpdateTime is how an unset time.Time encodes.
const zeroUpdateTime = "0001-01-01T00:00:00Z"

// EmulatorClient implements the dtcloud.EmulatorClient interface against the
// emulator API root.
type EmulatorClient struct {
	httpClient *http_internal.Client
	now        func() time.Time
}

// NewEmulatorClient creates a new EmulatorClient.
func NewEmulatorClient(httpClient *http_internal.Client) *EmulatorClient {
	return &EmulatorClient{
		httpClient: httpClient,
		now:        time.Now,
	}
}

// CreateDevice creates an emulated device.
func (c *EmulatorClient) CreateDevice(ctx context.Context, projectID string, device *dtcloud.EmulatedDevice) (*dtcloud.EmulatedDevice, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	created, err := http_internal.Send[dtcloud.EmulatedDevice](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   projectPath(projectID, "devices"),
		Body:   device,
	})
	if err != nil {
		return nil, fmt.Errorf("creating emulated device: %w", err)
	}

	return created, nil
}

// DeleteDevice deletes an emulated device.
func (c *EmulatorClient) DeleteDevice(ctx context.Context, projectID, deviceID string) error {
	err := requireDevice(projectID, deviceID)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Delete(ctx, projectPath(projectID, "devices", deviceID))
	if err != nil {
		return fmt.Errorf("deleting emulated device: %w", err)
	}

	return nil
}

// PublishEvent makes an emulated device emit data. An unset updateTime is
// stamped with the current time.
func (c *EmulatorClient) PublishEvent(ctx context.Context, projectID, deviceID string, data dtcloud.EventData) error {
	err := requireDevice(projectID, deviceID)
	if err != nil {
		return err
	}

	payload, err := c.publishPayload(data)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Post(ctx, projectPath(projectID, "devices", deviceID+":publish"), map[string]interface{}{
		data.EventType(): payload,
	})
	if err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}

	return nil
}

func (c *EmulatorClient) publishPayload(data dtcloud.EventData) (map[string]interface{}, error) {
	if data == nil || !publishable(data.EventType()) {
		eventType := "<nil>"
		if data != nil {
			eventType = data.EventType()
		}

		return nil, dtcloud.NewError(dtcloud.KindUnknownError, "cannot publish "+eventType, dtcloud.ErrUnsupportedEvent)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, dtcloud.NewError(dtcloud.KindUnknownError, "encoding event", err)
	}

	var payload map[string]interface{}

	err = json.Unmarshal(raw, &payload)
	if err != nil {
		return nil, dtcloud.NewError(dtcloud.KindUnknownError, "encoding event", err)
	}

	if updateTime, ok := payload["updateTime"].(string); ok && updateTime == zeroUpdateTime {
		payload["updateTime"] = c.now().UTC().Format(time.RFC3339Nano)
	}

	return payload, nil
}

// publishable reports whether the emulator accepts events of eventType.
// Label changes are produced by the platform itself.
func publishable(eventType string) bool {
	return dtcloud.IsKnownEventType(eventType) && eventType != dtcloud.EventTypeLabelsChanged
}
