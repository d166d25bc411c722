package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	internalhttp "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestClient creates a client whose REST and emulator roots both point at
// the given handler.
func NewTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := internalhttp.NewClient(server.URL, nil)

	return NewWithHTTPClients(httpClient, httpClient)
}

// TestOperation describes one request/response exchange of a resource client.
type TestOperation struct {
	Name string

	ExpectedMethod string
	ExpectedPath   string
	ExpectedQuery  url.Values
	// ExpectedBody is compared with JSONEq when set.
	ExpectedBody string

	StatusCode int
	Response   string

	Call  func(ctx context.Context, client *Client) (interface{}, error)
	Check func(t *testing.T, result interface{})

	WantKind *dtcloud.ErrorKind
}

func kind(k dtcloud.ErrorKind) *dtcloud.ErrorKind {
	return &k
}

// RunOperationTests runs each operation against a server that checks the
// request and replies with the canned response.
func RunOperationTests(t *testing.T, tests []TestOperation) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			t.Parallel()

			var called atomic.Bool

			client := NewTestClient(t, func(writer http.ResponseWriter, request *http.Request) {
				called.Store(true)

				assert.Equal(t, testCase.ExpectedMethod, request.Method)
				assert.Equal(t, testCase.ExpectedPath, request.URL.Path)

				if testCase.ExpectedQuery != nil {
					assert.Equal(t, testCase.ExpectedQuery, request.URL.Query())
				}

				if testCase.ExpectedBody != "" {
					body, err := io.ReadAll(request.Body)
					assert.NoError(t, err)
					assert.JSONEq(t, testCase.ExpectedBody, string(body))
				}

				status := testCase.StatusCode
				if status == 0 {
					status = http.StatusOK
				}

				writer.Header().Set("Content-Type", "application/json")
				writer.WriteHeader(status)
				_, _ = writer.Write([]byte(testCase.Response))
			})

			result, err := testCase.Call(context.Background(), client)

			if testCase.WantKind != nil {
				require.Error(t, err)
				assert.Equal(t, *testCase.WantKind, dtcloud.KindOf(err))

				return
			}

			require.NoError(t, err)
			assert.True(t, called.Load(), "request was sent")

			if testCase.Check != nil {
				testCase.Check(t, result)
			}
		})
	}
}

// pagedHandler serves pages keyed by page token.
func pagedHandler(t *testing.T, path, pagingKey string, pages map[string][]interface{}, next map[string]string) http.HandlerFunc {
	t.Helper()

	return func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, path, request.URL.Path)
		assert.NotEmpty(t, request.URL.Query().Get("page_size"))

		token := request.URL.Query().Get("page_token")

		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			pagingKey:       pages[token],
			"nextPageToken": next[token],
		})
	}
}
