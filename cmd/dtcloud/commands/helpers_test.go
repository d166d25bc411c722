package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		output  string
		want    string
		wantErr bool
	}{
		{"", constants.FormatTable, false},
		{"table", constants.FormatTable, false},
		{"json", constants.FormatJSON, false},
		{"yaml", constants.FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			setupViper(t, map[string]interface{}{"output": tt.output})

			got, err := outputFormat()
			if tt.wantErr {
				require.ErrorIs(t, err, constants.ErrInvalidOutput)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLabels(t *testing.T) {
	labels, err := parseLabels([]string{"room=kitchen", "floor=2", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"room": "kitchen", "floor": "2", "empty": ""}, labels)

	labels, err = parseLabels(nil)
	require.NoError(t, err)
	assert.Nil(t, labels)

	_, err = parseLabels([]string{"=value"})
	require.ErrorIs(t, err, constants.ErrInvalidLabel)

	_, err = parseLabels([]string{"missing"})
	require.ErrorIs(t, err, constants.ErrInvalidLabel)
}

func TestFormatLabels(t *testing.T) {
	assert.Equal(t, "none", formatLabels(nil))
	assert.Equal(t, "a=1, b=2", formatLabels(map[string]string{"b": "2", "a": "1"}))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, constants.NotAvailable, formatTime(time.Time{}))
	assert.Equal(t, "2026-03-01 10:00:00", formatTime(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestEventTypeTitle(t *testing.T) {
	tests := map[string]string{
		"touch":              "Touch",
		"temperature":        "Temperature",
		"objectPresentCount": "Object Present Count",
		"networkStatus":      "Network Status",
	}

	for input, want := range tests {
		assert.Equal(t, want, eventTypeTitle(input), input)
	}
}

func TestSummarizeEvent(t *testing.T) {
	tests := []struct {
		name string
		data dtcloud.EventData
		want string
	}{
		{"touch", dtcloud.Touch{}, "touched"},
		{"temperature", dtcloud.Temperature{Value: 21.5}, "21.50 °C"},
		{"humidity", dtcloud.Humidity{Temperature: 20, RelativeHumidity: 45.5}, "20.00 °C, 45.5 %RH"},
		{"object present", dtcloud.ObjectPresent{State: dtcloud.StatePresent}, "PRESENT"},
		{"touch count", dtcloud.TouchCount{Total: 4}, "count 4"},
		{"battery", dtcloud.BatteryStatus{Percentage: 90}, "battery 90%"},
		{"network", dtcloud.NetworkStatus{SignalStrength: 61}, "signal 61%"},
		{"unknown", nil, constants.NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeEvent(tt.data))
		})
	}
}

func TestLatestReading(t *testing.T) {
	assert.Equal(t, constants.NotAvailable, latestReading(nil))
	assert.Equal(t, "18.00 °C", latestReading(&dtcloud.Reported{
		Temperature: &dtcloud.Temperature{Value: 18},
		Touch:       &dtcloud.Touch{},
	}))
}

func TestHistoryOptions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	opts, err := historyOptions([]string{"touch"}, time.Hour, "", "", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"touch"}, opts.EventTypes)
	assert.Equal(t, now.Add(-time.Hour), opts.StartTime)
	assert.True(t, opts.EndTime.IsZero())

	opts, err = historyOptions(nil, 0, "2026-02-01T00:00:00Z", "2026-02-02T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), opts.StartTime)
	assert.Equal(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), opts.EndTime)

	_, err = historyOptions(nil, 0, "yesterday", "", now)
	require.Error(t, err)
}

func TestCharmLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewCharmLogger(&buf, false)
	logger.Debug("hidden", nil)
	logger.Info("stream opened", map[string]interface{}{"project": "p1"})

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "stream opened")
	assert.Contains(t, buf.String(), "project=p1")

	buf.Reset()

	verbose := NewCharmLogger(&buf, true)
	verbose.Debug("request sent", map[string]interface{}{"b": 2, "a": 1})
	assert.Contains(t, buf.String(), "request sent")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a=1")), bytes.Index(buf.Bytes(), []byte("b=2")))
}

func TestVersionCommand(t *testing.T) {
	setupViper(t, map[string]interface{}{"output": constants.FormatJSON})

	out, err := executeCommand(NewVersionCommand("1.2.3", "abc123", "2026-03-01"))
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.NotEmpty(t, info.GoVersion)
}

func TestStreamCommand_Count(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/projects/p1/devices:stream", request.URL.Path)
		assert.Equal(t, []string{"d1"}, request.URL.Query()["device_ids"])

		writer.Header().Set("Content-Type", "text/event-stream")
		_, _ = writer.Write([]byte(
			"data: {\"result\":{\"event\":{\"eventId\":\"e1\",\"targetName\":\"projects/p1/devices/d1\",\"eventType\":\"temperature\"," +
				"\"data\":{\"temperature\":{\"value\":19.75,\"updateTime\":\"2026-03-01T10:00:00Z\"}},\"timestamp\":\"2026-03-01T10:00:00Z\"}}}\n\n"))

		if flusher, ok := writer.(http.Flusher); ok {
			flusher.Flush()
		}

		<-request.Context().Done()
	}))
	t.Cleanup(server.Close)

	setupViper(t, map[string]interface{}{"api": server.URL, "token": "test-token", "project": "p1"})

	out, err := executeCommand(NewStreamCommand(), "--device", "d1", "--count", "1", "--reconnect=false")
	require.NoError(t, err)
	assert.Contains(t, out, "d1")
	assert.Contains(t, out, "Temperature")
	assert.Contains(t, out, "19.75 °C")
}

func TestStreamCommand_InvalidBroker(t *testing.T) {
	setupViper(t, map[string]interface{}{"token": "test-token", "project": "p1"})

	_, err := executeCommand(NewStreamCommand(), "--nats-url", "nats://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}

func TestEventPrinter(t *testing.T) {
	event := dtcloud.DeviceEvent{
		EventID:   "e1",
		EventType: dtcloud.EventTypeTouch,
		DeviceID:  "d7",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:      dtcloud.Touch{},
	}

	var buf bytes.Buffer

	newEventPrinter(&buf, constants.FormatTable).print(event)
	assert.Contains(t, buf.String(), "d7")
	assert.Contains(t, buf.String(), "touched")

	buf.Reset()

	newEventPrinter(&buf, constants.FormatYAML).print(event)
	assert.Contains(t, buf.String(), "event_id: e1")
}
