package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/dtcloud/internal/auth"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *dtcloud.Config
		wantErr error
	}{
		{name: "nil config", config: nil, wantErr: dtcloud.ErrConfigRequired},
		{name: "missing base URL", config: &dtcloud.Config{EmulatorURL: "https://emu"}, wantErr: ErrBaseURLRequired},
		{name: "missing emulator URL", config: &dtcloud.Config{BaseURL: "https://api"}, wantErr: ErrEmulatorURLRequired},
		{name: "valid", config: &dtcloud.Config{BaseURL: "https://api/", EmulatorURL: "https://emu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := New(context.Background(), tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, client)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, client.Devices())
			assert.NotNil(t, client.Projects())
			assert.NotNil(t, client.Organizations())
			assert.NotNil(t, client.DataConnectors())
			assert.NotNil(t, client.ServiceAccounts())
			assert.NotNil(t, client.Members())
			assert.NotNil(t, client.Roles())
			assert.NotNil(t, client.Events())
			assert.NotNil(t, client.Emulator())
			assert.NotNil(t, client.Streams())
		})
	}
}

func TestNew_RoutesEmulatorSeparately(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/v2/projects/p1/devices/d1", request.URL.Path)
		assert.Equal(t, "Bearer api-token", request.Header.Get("Authorization"))
		assert.Equal(t, "test-agent", request.Header.Get("User-Agent"))
		_, _ = writer.Write([]byte(`{"name":"projects/p1/devices/d1"}`))
	}))
	defer api.Close()

	emulator := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/v2/projects/p1/devices/emu1", request.URL.Path)
		assert.Equal(t, http.MethodDelete, request.Method)
		writer.WriteHeader(http.StatusOK)
	}))
	defer emulator.Close()

	client, err := New(context.Background(), &dtcloud.Config{
		BaseURL:     api.URL + "/v2/",
		EmulatorURL: emulator.URL + "/v2",
		Credentials: auth.NewStaticTokenProvider("api-token"),
		UserAgent:   "test-agent",
	})
	require.NoError(t, err)

	_, err = client.Devices().Get(context.Background(), "p1", "d1")
	require.NoError(t, err)

	err = client.Emulator().DeleteDevice(context.Background(), "p1", "emu1")
	require.NoError(t, err)
}
