package client

import (
	"context"
	"net/http"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// EventsClient implements the dtcloud.EventsClient interface.
type EventsClient struct {
	httpClient *http_internal.Client
}

// NewEventsClient creates a new EventsClient.
func NewEventsClient(httpClient *http_internal.Client) *EventsClient {
	return &EventsClient{
		httpClient: httpClient,
	}
}

// List retrieves the event history of a device, oldest first as returned by
// the server. Events of types this client does not know are skipped.
func (c *EventsClient) List(ctx context.Context, projectID, deviceID string, opts *dtcloud.EventListOptions) ([]dtcloud.DeviceEvent, error) {
	err := requireDevice(projectID, deviceID)
	if err != nil {
		return nil, err
	}

	pageSize := 0
	if opts != nil {
		pageSize = opts.PageSize
	}

	events, err := collect[dtcloud.DeviceEvent](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID, "devices", deviceID, "events"),
		Query:  opts.Values(),
	}, constants.PagingKeyEvents, pageSize, "events")
	if err != nil {
		return nil, err
	}

	known := events[:0]

	for _, event := range events {
		if event.Known() {
			known = append(known, event)
		}
	}

	return known, nil
}
