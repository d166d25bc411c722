package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// GetPage requests one page of a list endpoint. The items are read from the
// member named pagingKey and the continuation token from nextPageToken.
func GetPage[T any](ctx context.Context, client *Client, req *Request, pagingKey string, pageSize int, pageToken string) (*dtcloud.PagedResult[T], error) {
	paged := *req
	paged.Query = url.Values{}

	for key, values := range req.Query {
		paged.Query[key] = append([]string(nil), values...)
	}

	if pageSize > 0 {
		paged.Query.Set("page_size", strconv.Itoa(pageSize))
	}

	if pageToken != "" {
		paged.Query.Set("page_token", pageToken)
	}

	resp, err := client.Do(ctx, &paged)
	if err != nil {
		return nil, err
	}

	envelope, err := Decode[map[string]json.RawMessage](resp)
	if err != nil {
		return nil, err
	}

	result := &dtcloud.PagedResult[T]{Items: []T{}}

	if raw, ok := (*envelope)["nextPageToken"]; ok {
		err = json.Unmarshal(raw, &result.NextPageToken)
		if err != nil {
			return nil, undecodable(resp, err)
		}
	}

	if raw, ok := (*envelope)[pagingKey]; ok && string(raw) != "null" {
		err = json.Unmarshal(raw, &result.Items)
		if err != nil {
			return nil, undecodable(resp, err)
		}
	}

	return result, nil
}

// Pages returns a fetcher that requests successive pages of req.
func Pages[T any](client *Client, req *Request, pagingKey string, pageSize int) dtcloud.PageFetcher[T] {
	return func(ctx context.Context, pageToken string) (*dtcloud.PagedResult[T], error) {
		return GetPage[T](ctx, client, req, pagingKey, pageSize, pageToken)
	}
}

func undecodable(resp *Response, err error) error {
	return &dtcloud.Error{
		Kind:       dtcloud.KindUnknownError,
		StatusCode: resp.StatusCode,
		Message:    "response body could not be decoded",
		Err:        fmt.Errorf("%w: %w", dtcloud.ErrUndecodableBody, err),
	}
}
