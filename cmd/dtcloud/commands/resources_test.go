package commands

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandGroups(t *testing.T) {
	tests := []struct {
		build       func() *cobra.Command
		use         string
		aliases     []string
		subcommands []string
	}{
		{NewDevicesCommand, "devices", []string{"device", "dev"}, []string{"list", "get", "set-label", "remove-label", "rename"}},
		{NewProjectsCommand, "projects", []string{"project", "proj"}, []string{"list", "get", "create", "delete"}},
		{NewOrgsCommand, "orgs", []string{"organizations", "org"}, []string{"list", "get", "permissions"}},
		{NewEventsCommand, "events", []string{"event"}, []string{"history"}},
		{NewEmulatorCommand, "emulator", []string{"emu"}, []string{"create", "publish", "delete"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			cmd := tt.build()
			assert.Equal(t, tt.use, cmd.Use)
			assert.Equal(t, tt.aliases, cmd.Aliases)
			assert.Len(t, cmd.Commands(), len(tt.subcommands))

			for _, name := range tt.subcommands {
				sub := findSubcommand(cmd, name)
				if assert.NotNil(t, sub, "missing subcommand %s", name) {
					assert.NotNil(t, sub.RunE)
				}
			}
		})
	}
}

func TestStreamCommandFlags(t *testing.T) {
	cmd := NewStreamCommand()
	assert.Equal(t, "stream", cmd.Use)

	flags := []string{"device", "type", "event-type", "label", "reconnect", "count", "nats-url", "nats-prefix", "kafka-brokers", "kafka-topic"}
	for _, flagName := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flagName), "Flag %s should exist", flagName)
	}

	assert.Equal(t, "true", cmd.Flags().Lookup("reconnect").DefValue)
}

func TestDevicesListCommand(t *testing.T) {
	server := apiServer(t, http.MethodGet, "/projects/p1/devices", `{
		"devices": [
			{"name": "projects/p1/devices/d1", "type": "temperature", "labels": {"name": "Fridge"},
			 "reported": {"temperature": {"value": 4.5, "updateTime": "2026-03-01T10:00:00Z"}}},
			{"name": "projects/p1/devices/d2", "type": "touch"}
		],
		"nextPageToken": ""
	}`)

	setupViper(t, map[string]interface{}{
		"api":     server.URL,
		"token":   "test-token",
		"project": "p1",
	})

	out, err := executeCommand(NewDevicesCommand(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Fridge")
	assert.Contains(t, out, "4.50 °C")
	assert.Contains(t, out, "d2")

	viper.Set("output", constants.FormatJSON)

	out, err = executeCommand(NewDevicesCommand(), "list")
	require.NoError(t, err)

	var devices []dtcloud.Device
	require.NoError(t, json.Unmarshal([]byte(out), &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, "d1", devices[0].ID())
}

func TestDevicesListCommand_InvalidLabel(t *testing.T) {
	setupViper(t, map[string]interface{}{"token": "test-token", "project": "p1"})

	_, err := executeCommand(NewDevicesCommand(), "list", "--label", "novalue")
	require.ErrorIs(t, err, constants.ErrInvalidLabel)
}

func TestDevicesGetCommand_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
		_, _ = writer.Write([]byte(`{"error":"device not found","code":404}`))
	}))
	t.Cleanup(server.Close)

	setupViper(t, map[string]interface{}{"api": server.URL, "token": "test-token", "project": "p1"})

	_, err := executeCommand(NewDevicesCommand(), "get", "missing")
	require.Error(t, err)
	assert.True(t, dtcloud.IsNotFound(err))
}

func TestCommands_RequireCredentials(t *testing.T) {
	setupViper(t, map[string]interface{}{"project": "p1"})

	_, err := executeCommand(NewOrgsCommand(), "list")
	require.ErrorIs(t, err, constants.ErrNoCredentials)
}

func TestProjectsGetCommand(t *testing.T) {
	server := apiServer(t, http.MethodGet, "/projects/p9", `{
		"name": "projects/p9", "displayName": "Warehouse",
		"organization": "organizations/o1", "organizationDisplayName": "Acme",
		"sensorCount": 12, "cloudConnectorCount": 1
	}`)

	setupViper(t, map[string]interface{}{"api": server.URL, "token": "test-token", "project": "p1"})

	out, err := executeCommand(NewProjectsCommand(), "get", "p9")
	require.NoError(t, err)
	assert.Contains(t, out, "Warehouse")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "12")
}

func TestOrgsListCommand(t *testing.T) {
	server := apiServer(t, http.MethodGet, "/organizations", `{
		"organizations": [{"name": "organizations/o1", "displayName": "Acme"}],
		"nextPageToken": ""
	}`)

	setupViper(t, map[string]interface{}{"api": server.URL, "token": "test-token"})
	viper.Set("output", constants.FormatYAML)

	out, err := executeCommand(NewOrgsCommand(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "name: organizations/o1")
	assert.Contains(t, out, "display_name: Acme")
}

func TestEventsHistoryCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/projects/p1/devices/d1/events", request.URL.Path)
		assert.Equal(t, []string{"temperature"}, request.URL.Query()["event_types"])

		_, _ = io.WriteString(writer, `{
			"events": [{
				"eventId": "e1", "targetName": "projects/p1/devices/d1", "eventType": "temperature",
				"data": {"temperature": {"value": 21.25, "updateTime": "2026-03-01T10:00:00Z"}},
				"timestamp": "2026-03-01T10:00:00Z"
			}],
			"nextPageToken": ""
		}`)
	}))
	t.Cleanup(server.Close)

	setupViper(t, map[string]interface{}{"api": server.URL, "token": "test-token", "project": "p1"})

	out, err := executeCommand(NewEventsCommand(), "history", "d1", "--type", "temperature")
	require.NoError(t, err)
	assert.Contains(t, out, "Temperature")
	assert.Contains(t, out, "21.25 °C")
}

func TestEmulatorCommands(t *testing.T) {
	var published map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch {
		case request.Method == http.MethodPost && request.URL.Path == "/projects/p1/devices":
			var body dtcloud.EmulatedDevice
			assert.NoError(t, json.NewDecoder(request.Body).Decode(&body))
			assert.Equal(t, "Probe", body.Labels["name"])

			_, _ = io.WriteString(writer, `{"name":"projects/p1/devices/emu1","type":"temperature","labels":{"name":"Probe"}}`)
		case request.Method == http.MethodPost && request.URL.Path == "/projects/p1/devices/emu1:publish":
			assert.NoError(t, json.NewDecoder(request.Body).Decode(&published))

			_, _ = io.WriteString(writer, `{}`)
		case request.Method == http.MethodDelete && request.URL.Path == "/projects/p1/devices/emu1":
			_, _ = io.WriteString(writer, `{}`)
		default:
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	setupViper(t, map[string]interface{}{
		"token":   "test-token",
		"project": "p1",
		"profiles": map[string]interface{}{
			"default": map[string]interface{}{"emulator": server.URL},
		},
	})

	out, err := executeCommand(NewEmulatorCommand(), "create", "--name", "Probe")
	require.NoError(t, err)
	assert.Contains(t, out, "emu1")

	out, err = executeCommand(NewEmulatorCommand(), "publish", "emu1", "--type", "temperature", "--value", "22.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Published temperature event from emu1")
	require.Contains(t, published, "temperature")

	payload, ok := published["temperature"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 22.5, payload["value"], 0.0001)

	out, err = executeCommand(NewEmulatorCommand(), "delete", "emu1")
	require.NoError(t, err)
	assert.Contains(t, out, "emu1 deleted")
}

func TestNewEmulatedDevice(t *testing.T) {
	named := newEmulatedDevice(dtcloud.DeviceTypeTouch, "Door", map[string]string{"room": "A"})
	assert.Equal(t, "Door", named.Labels["name"])
	assert.Equal(t, "A", named.Labels["room"])
	assert.Equal(t, dtcloud.DeviceTypeTouch, named.Type)

	generated := newEmulatedDevice(dtcloud.DeviceTypeTemperature, "", nil)
	assert.True(t, strings.HasPrefix(generated.Labels["name"], "emulated-"))
	assert.Len(t, generated.Labels["name"], len("emulated-")+emulatedNameLength)
}

func TestEventFromFlags(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		value     string
		want      dtcloud.EventData
		wantErr   error
	}{
		{"touch", "touch", "", dtcloud.Touch{}, nil},
		{"temperature", "temperature", "19.5", dtcloud.Temperature{Value: 19.5}, nil},
		{"humidity", "humidity", "40", dtcloud.Humidity{RelativeHumidity: 40}, nil},
		{"object present", "objectPresent", "PRESENT", dtcloud.ObjectPresent{State: dtcloud.StatePresent}, nil},
		{"water present", "waterPresent", "NOT_PRESENT", dtcloud.WaterPresent{State: dtcloud.StateNotPresent}, nil},
		{"touch count", "touchCount", "7", dtcloud.TouchCount{Total: 7}, nil},
		{"object count", "objectPresentCount", "3", dtcloud.ObjectPresentCount{Total: 3}, nil},
		{"battery", "batteryStatus", "80", dtcloud.BatteryStatus{Percentage: 80}, nil},
		{"network", "networkStatus", "55", dtcloud.NetworkStatus{SignalStrength: 55}, nil},
		{"missing value", "temperature", "", nil, constants.ErrEventValueMissing},
		{"unknown type", "co2", "400", nil, constants.ErrUnsupportedEvent},
		{"labels changed", "labelsChanged", "x", nil, constants.ErrUnsupportedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eventFromFlags(tt.eventType, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := eventFromFlags("temperature", "warm")
	require.Error(t, err)

	_, err = eventFromFlags("objectPresent", "maybe")
	require.Error(t, err)
}
