package dtcloud

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Event types delivered by streams and the event history.
const (
	EventTypeTouch              = "touch"
	EventTypeTemperature        = "temperature"
	EventTypeObjectPresent      = "objectPresent"
	EventTypeHumidity           = "humidity"
	EventTypeObjectPresentCount = "objectPresentCount"
	EventTypeTouchCount         = "touchCount"
	EventTypeWaterPresent       = "waterPresent"
	EventTypeNetworkStatus      = "networkStatus"
	EventTypeBatteryStatus      = "batteryStatus"
	EventTypeLabelsChanged      = "labelsChanged"
	EventTypeConnectionStatus   = "connectionStatus"
	EventTypeEthernetStatus     = "ethernetStatus"
	EventTypeCellularStatus     = "cellularStatus"
)

// Object and water presence states.
const (
	StatePresent    = "PRESENT"
	StateNotPresent = "NOT_PRESENT"
)

// EventData is the payload of a device event. Every known event type has its
// own implementation; anything else decodes to UnknownEventData.
type EventData interface {
	EventType() string
}

// Touch is emitted when a touch sensor is touched.
type Touch struct {
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// TemperatureSample is one sample of a multi-sample temperature event.
type TemperatureSample struct {
	Value      float64   `json:"value"      yaml:"value"`
	SampleTime time.Time `json:"sampleTime" yaml:"sample_time"`
}

// Temperature is a temperature reading in degrees Celsius.
type Temperature struct {
	Value      float64             `json:"value"             yaml:"value"`
	UpdateTime time.Time           `json:"updateTime"        yaml:"update_time"`
	Samples    []TemperatureSample `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// ObjectPresent reports a proximity sensor state change.
type ObjectPresent struct {
	State      string    `json:"state"      yaml:"state"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// Present reports whether an object is present.
func (o ObjectPresent) Present() bool {
	return o.State == StatePresent
}

// Humidity is a relative humidity reading together with temperature.
type Humidity struct {
	Temperature      float64   `json:"temperature"      yaml:"temperature"`
	RelativeHumidity float64   `json:"relativeHumidity" yaml:"relative_humidity"`
	UpdateTime       time.Time `json:"updateTime"       yaml:"update_time"`
}

// ObjectPresentCount is the accumulated number of presence detections.
type ObjectPresentCount struct {
	Total      int       `json:"total"      yaml:"total"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// TouchCount is the accumulated number of touches.
type TouchCount struct {
	Total      int       `json:"total"      yaml:"total"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// WaterPresent reports a water detector state change.
type WaterPresent struct {
	State      string    `json:"state"      yaml:"state"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// Present reports whether water is present.
func (w WaterPresent) Present() bool {
	return w.State == StatePresent
}

// CloudConnectorSignal is the signal of one cloud connector that heard a sensor.
type CloudConnectorSignal struct {
	ID             string `json:"id"             yaml:"id"`
	SignalStrength int    `json:"signalStrength" yaml:"signal_strength"`
	RSSI           int    `json:"rssi"           yaml:"rssi"`
}

// NetworkStatus is the radio link status of a sensor.
type NetworkStatus struct {
	SignalStrength   int                    `json:"signalStrength"             yaml:"signal_strength"`
	RSSI             int                    `json:"rssi"                       yaml:"rssi"`
	UpdateTime       time.Time              `json:"updateTime"                 yaml:"update_time"`
	CloudConnectors  []CloudConnectorSignal `json:"cloudConnectors,omitempty"  yaml:"cloud_connectors,omitempty"`
	TransmissionMode string                 `json:"transmissionMode,omitempty" yaml:"transmission_mode,omitempty"`
}

// BatteryStatus is the remaining battery percentage.
type BatteryStatus struct {
	Percentage int       `json:"percentage" yaml:"percentage"`
	UpdateTime time.Time `json:"updateTime" yaml:"update_time"`
}

// LabelsChanged lists label changes made to a device.
type LabelsChanged struct {
	Added    map[string]string `json:"added,omitempty"    yaml:"added,omitempty"`
	Modified map[string]string `json:"modified,omitempty" yaml:"modified,omitempty"`
	Removed  []string          `json:"removed,omitempty"  yaml:"removed,omitempty"`
}

// ConnectionStatus reports which uplink a cloud connector is using.
type ConnectionStatus struct {
	Connection string    `json:"connection"          yaml:"connection"`
	Available  []string  `json:"available,omitempty" yaml:"available,omitempty"`
	UpdateTime time.Time `json:"updateTime"          yaml:"update_time"`
}

// InterfaceError is an error reported by a cloud connector network interface.
type InterfaceError struct {
	Code    string `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// EthernetStatus is the ethernet interface status of a cloud connector.
type EthernetStatus struct {
	MACAddress string           `json:"macAddress"       yaml:"mac_address"`
	IPAddress  string           `json:"ipAddress"        yaml:"ip_address"`
	Errors     []InterfaceError `json:"errors,omitempty" yaml:"errors,omitempty"`
	UpdateTime time.Time        `json:"updateTime"       yaml:"update_time"`
}

// CellularStatus is the cellular interface status of a cloud connector.
type CellularStatus struct {
	SignalStrength int              `json:"signalStrength"   yaml:"signal_strength"`
	Errors         []InterfaceError `json:"errors,omitempty" yaml:"errors,omitempty"`
	UpdateTime     time.Time        `json:"updateTime"       yaml:"update_time"`
}

// UnknownEventData keeps the raw payload of an event type this client does not know.
type UnknownEventData struct {
	RawType string          `json:"-"`
	Raw     json.RawMessage `json:"-"`
}

func (Touch) EventType() string              { return EventTypeTouch }
func (Temperature) EventType() string        { return EventTypeTemperature }
func (ObjectPresent) EventType() string      { return EventTypeObjectPresent }
func (Humidity) EventType() string           { return EventTypeHumidity }
func (ObjectPresentCount) EventType() string { return EventTypeObjectPresentCount }
func (TouchCount) EventType() string         { return EventTypeTouchCount }
func (WaterPresent) EventType() string       { return EventTypeWaterPresent }
func (NetworkStatus) EventType() string      { return EventTypeNetworkStatus }
func (BatteryStatus) EventType() string      { return EventTypeBatteryStatus }
func (LabelsChanged) EventType() string      { return EventTypeLabelsChanged }
func (ConnectionStatus) EventType() string   { return EventTypeConnectionStatus }
func (EthernetStatus) EventType() string     { return EventTypeEthernetStatus }
func (CellularStatus) EventType() string     { return EventTypeCellularStatus }

// EventType returns the raw type name.
func (u UnknownEventData) EventType() string { return u.RawType }

type eventDecoder func(raw json.RawMessage) (EventData, error)

func decodeAs[T EventData](raw json.RawMessage) (EventData, error) {
	var data T

	err := json.Unmarshal(raw, &data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", data.EventType(), err)
	}

	return data, nil
}

// eventDecoders is the decode table of the event union. New variants are
// added here and as a type above.
var eventDecoders = map[string]eventDecoder{
	EventTypeTouch:              decodeAs[Touch],
	EventTypeTemperature:        decodeAs[Temperature],
	EventTypeObjectPresent:      decodeAs[ObjectPresent],
	EventTypeHumidity:           decodeAs[Humidity],
	EventTypeObjectPresentCount: decodeAs[ObjectPresentCount],
	EventTypeTouchCount:         decodeAs[TouchCount],
	EventTypeWaterPresent:       decodeAs[WaterPresent],
	EventTypeNetworkStatus:      decodeAs[NetworkStatus],
	EventTypeBatteryStatus:      decodeAs[BatteryStatus],
	EventTypeLabelsChanged:      decodeAs[LabelsChanged],
	EventTypeConnectionStatus:   decodeAs[ConnectionStatus],
	EventTypeEthernetStatus:     decodeAs[EthernetStatus],
	EventTypeCellularStatus:     decodeAs[CellularStatus],
}

// IsKnownEventType reports whether the event type has a dedicated variant.
func IsKnownEventType(eventType string) bool {
	_, ok := eventDecoders[eventType]

	return ok
}

// KnownEventTypes returns every event type with a dedicated variant, sorted.
func KnownEventTypes() []string {
	types := make([]string, 0, len(eventDecoders))
	for eventType := range eventDecoders {
		types = append(types, eventType)
	}

	sort.Strings(types)

	return types
}

// DeviceEvent is one event emitted by a device.
type DeviceEvent struct {
	EventID    string    `yaml:"event_id"`
	TargetName string    `yaml:"target_name"`
	EventType  string    `yaml:"event_type"`
	Timestamp  time.Time `yaml:"timestamp"`
	// DeviceID and ProjectID are extracted from TargetName.
	DeviceID  string    `yaml:"device_id"`
	ProjectID string    `yaml:"project_id"`
	Data      EventData `yaml:"data"`
}

// Known reports whether the event decoded into a dedicated variant.
func (e *DeviceEvent) Known() bool {
	_, unknown := e.Data.(UnknownEventData)

	return e.Data != nil && !unknown
}

type wireEvent struct {
	EventID    string                     `json:"eventId"`
	TargetName string                     `json:"targetName"`
	EventType  string                     `json:"eventType"`
	Data       map[string]json.RawMessage `json:"data"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// UnmarshalJSON decodes the wire form, where the payload sits under
// data.<eventType>.
func (e *DeviceEvent) UnmarshalJSON(raw []byte) error {
	var wire wireEvent

	err := json.Unmarshal(raw, &wire)
	if err != nil {
		return fmt.Errorf("decoding device event: %w", err)
	}

	name := ParseResourceName(wire.TargetName)
	*e = DeviceEvent{
		EventID:    wire.EventID,
		TargetName: wire.TargetName,
		EventType:  wire.EventType,
		Timestamp:  wire.Timestamp,
		DeviceID:   name["devices"],
		ProjectID:  name["projects"],
	}

	payload := wire.Data[wire.EventType]

	decode, ok := eventDecoders[wire.EventType]
	if !ok {
		e.Data = UnknownEventData{RawType: wire.EventType, Raw: payload}

		return nil
	}

	if len(payload) == 0 {
		return fmt.Errorf("%w: %s event without payload", ErrMalformedFrame, wire.EventType)
	}

	e.Data, err = decode(payload)

	return err
}

// MarshalJSON encodes the event in its wire form.
func (e DeviceEvent) MarshalJSON() ([]byte, error) {
	wire := struct {
		EventID    string                 `json:"eventId"`
		TargetName string                 `json:"targetName"`
		EventType  string                 `json:"eventType"`
		Data       map[string]interface{} `json:"data"`
		Timestamp  time.Time              `json:"timestamp"`
	}{
		EventID:    e.EventID,
		TargetName: e.TargetName,
		EventType:  e.EventType,
		Timestamp:  e.Timestamp,
		Data:       map[string]interface{}{},
	}

	switch data := e.Data.(type) {
	case nil:
	case UnknownEventData:
		if len(data.Raw) > 0 {
			wire.Data[e.EventType] = data.Raw
		}
	default:
		wire.Data[e.EventType] = data
	}

	encoded, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding device event: %w", err)
	}

	return encoded, nil
}

// StreamState is the lifecycle state of an event stream.
type StreamState int32

const (
	StreamConnecting StreamState = iota
	StreamOpen
	StreamClosed
)

// String returns the state name.
func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamOpen:
		return "open"
	case StreamClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// EventHandler receives decoded device events.
type EventHandler func(event DeviceEvent)

// EventHandlers is the dispatch table of a stream. Handlers registered for an
// event type run before OnEvent. Events of unknown types reach no handler.
type EventHandlers struct {
	// OnEvent receives every event of a known type.
	OnEvent EventHandler
	// OnError receives stream errors pushed by the server, decode failures and
	// the terminal connection error.
	OnError func(err error)
	// OnStateChange observes lifecycle transitions.
	OnStateChange func(state StreamState)

	byType map[string][]EventHandler
}

// On registers a handler for one event type.
func (h *EventHandlers) On(eventType string, handler EventHandler) *EventHandlers {
	if h.byType == nil {
		h.byType = make(map[string][]EventHandler)
	}

	h.byType[eventType] = append(h.byType[eventType], handler)

	return h
}

func onTyped[T EventData](h *EventHandlers, eventType string, handler func(deviceID string, data T)) *EventHandlers {
	return h.On(eventType, func(event DeviceEvent) {
		if data, ok := event.Data.(T); ok {
			handler(event.DeviceID, data)
		}
	})
}

// OnTouch registers a touch handler.
func (h *EventHandlers) OnTouch(handler func(deviceID string, data Touch)) *EventHandlers {
	return onTyped(h, EventTypeTouch, handler)
}

// OnTemperature registers a temperature handler.
func (h *EventHandlers) OnTemperature(handler func(deviceID string, data Temperature)) *EventHandlers {
	return onTyped(h, EventTypeTemperature, handler)
}

// OnObjectPresent registers an object presence handler.
func (h *EventHandlers) OnObjectPresent(handler func(deviceID string, data ObjectPresent)) *EventHandlers {
	return onTyped(h, EventTypeObjectPresent, handler)
}

// OnHumidity registers a humidity handler.
func (h *EventHandlers) OnHumidity(handler func(deviceID string, data Humidity)) *EventHandlers {
	return onTyped(h, EventTypeHumidity, handler)
}

// OnObjectPresentCount registers an object presence count handler.
func (h *EventHandlers) OnObjectPresentCount(handler func(deviceID string, data ObjectPresentCount)) *EventHandlers {
	return onTyped(h, EventTypeObjectPresentCount, handler)
}

// OnTouchCount registers a touch count handler.
func (h *EventHandlers) OnTouchCount(handler func(deviceID string, data TouchCount)) *EventHandlers {
	return onTyped(h, EventTypeTouchCount, handler)
}

// OnWaterPresent registers a water presence handler.
func (h *EventHandlers) OnWaterPresent(handler func(deviceID string, data WaterPresent)) *EventHandlers {
	return onTyped(h, EventTypeWaterPresent, handler)
}

// OnNetworkStatus registers a network status handler.
func (h *EventHandlers) OnNetworkStatus(handler func(deviceID string, data NetworkStatus)) *EventHandlers {
	return onTyped(h, EventTypeNetworkStatus, handler)
}

// OnBatteryStatus registers a battery status handler.
func (h *EventHandlers) OnBatteryStatus(handler func(deviceID string, data BatteryStatus)) *EventHandlers {
	return onTyped(h, EventTypeBatteryStatus, handler)
}

// OnLabelsChanged registers a labels changed handler.
func (h *EventHandlers) OnLabelsChanged(handler func(deviceID string, data LabelsChanged)) *EventHandlers {
	return onTyped(h, EventTypeLabelsChanged, handler)
}

// OnConnectionStatus registers a connection status handler.
func (h *EventHandlers) OnConnectionStatus(handler func(deviceID string, data ConnectionStatus)) *EventHandlers {
	return onTyped(h, EventTypeConnectionStatus, handler)
}

// OnEthernetStatus registers an ethernet status handler.
func (h *EventHandlers) OnEthernetStatus(handler func(deviceID string, data EthernetStatus)) *EventHandlers {
	return onTyped(h, EventTypeEthernetStatus, handler)
}

// OnCellularStatus registers a cellular status handler.
func (h *EventHandlers) OnCellularStatus(handler func(deviceID string, data CellularStatus)) *EventHandlers {
	return onTyped(h, EventTypeCellularStatus, handler)
}

// Matching returns the handlers an event is delivered to, in call order.
// Events of unknown types match nothing.
func (h *EventHandlers) Matching(event DeviceEvent) []EventHandler {
	if !event.Known() {
		return nil
	}

	matching := make([]EventHandler, 0, len(h.byType[event.EventType])+1)
	matching = append(matching, h.byType[event.EventType]...)

	if h.OnEvent != nil {
		matching = append(matching, h.OnEvent)
	}

	return matching
}

// Dispatch delivers an event to the matching handlers. It returns false when
// the event was dropped because its type is unknown.
func (h *EventHandlers) Dispatch(event DeviceEvent) bool {
	if !event.Known() {
		return false
	}

	for _, handler := range h.Matching(event) {
		handler(event)
	}

	return true
}

// DispatchError delivers an error to OnError, if set.
func (h *EventHandlers) DispatchError(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// DispatchState delivers a state transition to OnStateChange, if set.
func (h *EventHandlers) DispatchState(state StreamState) {
	if h.OnStateChange != nil {
		h.OnStateChange(state)
	}
}
