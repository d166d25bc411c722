package http_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	dthttp "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPage(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests.Add(1)
		assert.Equal(t, "temperature", request.URL.Query().Get("device_types"))
		assert.Equal(t, "2", request.URL.Query().Get("page_size"))
		assert.Equal(t, "abc", request.URL.Query().Get("page_token"))

		_, _ = writer.Write([]byte(`{"devices":[{"name":"projects/p/devices/a"},{"name":"projects/p/devices/b"}],"nextPageToken":"def"}`))
	}))
	defer server.Close()

	client := dthttp.NewClient(server.URL, nil)
	req := &dthttp.Request{
		Method: "GET",
		Path:   "/projects/p/devices",
		Query:  url.Values{"device_types": []string{"temperature"}},
	}

	page, err := dthttp.GetPage[dtcloud.Device](context.Background(), client, req, "devices", 2, "abc")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "b", page.Items[1].ID())
	assert.Equal(t, "def", page.NextPageToken)
	assert.True(t, page.HasNext())
	assert.Equal(t, int32(1), requests.Load())

	// The caller's query is left untouched.
	assert.Empty(t, req.Query.Get("page_token"))
}

func TestGetPage_LastPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Empty(t, request.URL.Query().Get("page_token"))
		_, _ = writer.Write([]byte(`{"projects":[],"nextPageToken":""}`))
	}))
	defer server.Close()

	client := dthttp.NewClient(server.URL, nil)

	page, err := dthttp.GetPage[dtcloud.Project](context.Background(), client, &dthttp.Request{Method: "GET", Path: "/projects"}, "projects", 0, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNext())
}

func TestGetPage_UndecodableItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(`{"projects":"nope"}`))
	}))
	defer server.Close()

	client := dthttp.NewClient(server.URL, nil)

	_, err := dthttp.GetPage[dtcloud.Project](context.Background(), client, &dthttp.Request{Method: "GET", Path: "/projects"}, "projects", 0, "")
	require.Error(t, err)
	assert.Equal(t, dtcloud.KindUnknownError, dtcloud.KindOf(err))
}

func TestPages_CollectAll(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Query().Get("page_token") {
		case "":
			_, _ = writer.Write([]byte(`{"projects":[{"name":"projects/1"},{"name":"projects/2"}],"nextPageToken":"t2"}`))
		case "t2":
			_, _ = writer.Write([]byte(`{"projects":[{"name":"projects/3"}],"nextPageToken":""}`))
		default:
			writer.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := dthttp.NewClient(server.URL, nil)
	fetch := dthttp.Pages[dtcloud.Project](client, &dthttp.Request{Method: "GET", Path: "/projects"}, "projects", 0)

	projects, err := dtcloud.CollectAll(context.Background(), fetch, nil)
	require.NoError(t, err)
	require.Len(t, projects, 3)

	for i, project := range projects {
		assert.Equal(t, fmt.Sprint(i+1), project.ID())
	}
}
