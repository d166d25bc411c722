package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/internal/stream"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// StreamsClient implements the dtcloud.StreamsClient interface.
type StreamsClient struct {
	httpClient *http.Client
}

// NewStreamsClient creates a new StreamsClient.
func NewStreamsClient(httpClient *http.Client) *StreamsClient {
	return &StreamsClient{
		httpClient: httpClient,
	}
}

// Subscribe opens the device event stream of a project. It returns once the
// stream is started; the connection is opened in the background and its
// failures reach handlers.OnError.
func (c *StreamsClient) Subscribe(ctx context.Context, projectID string, opts *dtcloud.StreamOptions, handlers *dtcloud.EventHandlers) (dtcloud.Subscription, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	streamOpts := stream.Options{
		Path:   projectPath(projectID, "devices:stream"),
		Query:  opts.Values(),
		Logger: c.httpClient.Logger(),
	}

	if opts != nil {
		streamOpts.Reconnect = opts.Reconnect
		streamOpts.ReconnectInitial = opts.ReconnectBackoff
	}

	sub, err := stream.Subscribe(ctx, c.httpClient, streamOpts, handlers)
	if err != nil {
		return nil, fmt.Errorf("subscribing to device events: %w", err)
	}

	return sub, nil
}
