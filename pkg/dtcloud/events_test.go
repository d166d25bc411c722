package dtcloud_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const temperatureEvent = `{
	"eventId": "c0p1",
	"targetName": "projects/proj/devices/dev",
	"eventType": "temperature",
	"data": {"temperature": {"value": 21.5, "updateTime": "2026-03-01T10:00:00Z"}},
	"timestamp": "2026-03-01T10:00:00Z"
}`

func TestDeviceEvent_UnmarshalKnown(t *testing.T) {
	t.Parallel()

	var event dtcloud.DeviceEvent

	require.NoError(t, json.Unmarshal([]byte(temperatureEvent), &event))
	assert.Equal(t, "c0p1", event.EventID)
	assert.Equal(t, "dev", event.DeviceID)
	assert.Equal(t, "proj", event.ProjectID)
	assert.Equal(t, dtcloud.EventTypeTemperature, event.EventType)
	assert.True(t, event.Known())

	temperature, ok := event.Data.(dtcloud.Temperature)
	require.True(t, ok)
	assert.InDelta(t, 21.5, temperature.Value, 0.0001)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), temperature.UpdateTime)
}

func TestDeviceEvent_UnmarshalUnknown(t *testing.T) {
	t.Parallel()

	raw := `{"eventId":"x","targetName":"projects/p/devices/d","eventType":"co2","data":{"co2":{"ppm":400}},"timestamp":"2026-03-01T10:00:00Z"}`

	var event dtcloud.DeviceEvent

	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	assert.False(t, event.Known())

	unknown, ok := event.Data.(dtcloud.UnknownEventData)
	require.True(t, ok)
	assert.Equal(t, "co2", unknown.EventType())
	assert.JSONEq(t, `{"ppm":400}`, string(unknown.Raw))
}

func TestDeviceEvent_UnmarshalMalformedPayload(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing payload": `{"eventType":"touch","targetName":"projects/p/devices/d","data":{}}`,
		"wrong shape":     `{"eventType":"temperature","targetName":"projects/p/devices/d","data":{"temperature":{"value":"hot"}}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var event dtcloud.DeviceEvent

			assert.Error(t, json.Unmarshal([]byte(raw), &event))
		})
	}
}

func TestDeviceEvent_MarshalWireForm(t *testing.T) {
	t.Parallel()

	var event dtcloud.DeviceEvent

	require.NoError(t, json.Unmarshal([]byte(temperatureEvent), &event))

	encoded, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, temperatureEvent, string(encoded))
}

func TestKnownEventTypes(t *testing.T) {
	t.Parallel()

	types := dtcloud.KnownEventTypes()
	assert.Len(t, types, 13)
	assert.IsNonDecreasing(t, types)

	for _, eventType := range types {
		assert.True(t, dtcloud.IsKnownEventType(eventType))
	}

	assert.False(t, dtcloud.IsKnownEventType("co2"))
}

func TestEventHandlers_Dispatch(t *testing.T) {
	t.Parallel()

	var (
		temperatures []float64
		touches      int
		all          []string
	)

	handlers := &dtcloud.EventHandlers{
		OnEvent: func(event dtcloud.DeviceEvent) {
			all = append(all, event.EventType)
		},
	}
	handlers.
		OnTemperature(func(deviceID string, data dtcloud.Temperature) {
			assert.Equal(t, "dev", deviceID)

			temperatures = append(temperatures, data.Value)
		}).
		OnTouch(func(string, dtcloud.Touch) {
			touches++
		})

	temperature := dtcloud.DeviceEvent{EventType: dtcloud.EventTypeTemperature, DeviceID: "dev", Data: dtcloud.Temperature{Value: 4}}
	humidity := dtcloud.DeviceEvent{EventType: dtcloud.EventTypeHumidity, DeviceID: "dev", Data: dtcloud.Humidity{RelativeHumidity: 40}}
	unknown := dtcloud.DeviceEvent{EventType: "co2", Data: dtcloud.UnknownEventData{RawType: "co2"}}

	assert.True(t, handlers.Dispatch(temperature))
	assert.True(t, handlers.Dispatch(humidity))
	assert.False(t, handlers.Dispatch(unknown))

	assert.Equal(t, []float64{4}, temperatures)
	assert.Equal(t, 0, touches)
	assert.Equal(t, []string{"temperature", "humidity"}, all)
}

func TestObjectPresent(t *testing.T) {
	t.Parallel()

	assert.True(t, dtcloud.ObjectPresent{State: dtcloud.StatePresent}.Present())
	assert.False(t, dtcloud.ObjectPresent{State: dtcloud.StateNotPresent}.Present())
	assert.True(t, dtcloud.WaterPresent{State: dtcloud.StatePresent}.Present())
}

func TestStreamState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connecting", dtcloud.StreamConnecting.String())
	assert.Equal(t, "open", dtcloud.StreamOpen.String())
	assert.Equal(t, "closed", dtcloud.StreamClosed.String())
}
