package dtcloud

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Empty is the canonical result of a successful response without a body.
type Empty struct{}

// PagedResult is one page of a list endpoint. An empty NextPageToken means
// there are no more pages.
type PagedResult[T any] struct {
	Items         []T    `json:"items"                   yaml:"items"`
	NextPageToken string `json:"nextPageToken,omitempty" yaml:"next_page_token,omitempty"`
}

// HasNext reports whether another page can be requested.
func (p *PagedResult[T]) HasNext() bool {
	return p != nil && p.NextPageToken != ""
}

// ResourceName is a parsed resource path such as "projects/p1/devices/d1".
type ResourceName map[string]string

// ParseResourceName splits a resource path into collection/id pairs.
func ParseResourceName(name string) ResourceName {
	parts := strings.Split(strings.Trim(name, "/"), "/")
	parsed := make(ResourceName, len(parts)/2)

	for i := 0; i+1 < len(parts); i += 2 {
		parsed[parts[i]] = parts[i+1]
	}

	return parsed
}

// ProjectName returns the resource name of a project.
func ProjectName(projectID string) string {
	return "projects/" + projectID
}

// OrganizationName returns the resource name of an organization.
func OrganizationName(organizationID string) string {
	return "organizations/" + organizationID
}

// DeviceName returns the resource name of a device.
func DeviceName(projectID, deviceID string) string {
	return "projects/" + projectID + "/devices/" + deviceID
}

// Device types reported by the platform.
const (
	DeviceTypeTemperature        = "temperature"
	DeviceTypeTouch              = "touch"
	DeviceTypeProximity          = "proximity"
	DeviceTypeHumidity           = "humidity"
	DeviceTypeProximityCounter   = "proximityCounter"
	DeviceTypeTouchCounter       = "touchCounter"
	DeviceTypeWaterDetector      = "waterDetector"
	DeviceTypeCloudConnector     = "ccon"
	DeviceTypeCO2                = "co2"
	DeviceTypeDeskOccupancy      = "deskOccupancy"
	DeviceTypeMotion             = "motion"
	DeviceTypeContact            = "contact"
	DeviceTypeTemperatureProbe   = "temperatureProbe"
	DeviceTypeUnknownUnsupported = "unknown"
)

// Device represents a sensor or cloud connector.
type Device struct {
	Name          string            `json:"name"                    yaml:"name"`
	Type          string            `json:"type"                    yaml:"type"`
	ProductNumber string            `json:"productNumber,omitempty" yaml:"product_number,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"        yaml:"labels,omitempty"`
	Reported      *Reported         `json:"reported,omitempty"      yaml:"reported,omitempty"`
}

// ID returns the device identifier.
func (d *Device) ID() string {
	return ParseResourceName(d.Name)["devices"]
}

// ProjectID returns the identifier of the owning project.
func (d *Device) ProjectID() string {
	return ParseResourceName(d.Name)["projects"]
}

// DisplayName returns the "name" label, which the platform uses as display name.
func (d *Device) DisplayName() string {
	return d.Labels["name"]
}

// IsEmulated reports whether the device was created by the emulator.
func (d *Device) IsEmulated() bool {
	return strings.HasPrefix(d.ID(), "emu")
}

// Reported holds the most recent value of every event type a device reports.
type Reported struct {
	Touch              *Touch              `json:"touch,omitempty"              yaml:"touch,omitempty"`
	Temperature        *Temperature        `json:"temperature,omitempty"        yaml:"temperature,omitempty"`
	ObjectPresent      *ObjectPresent      `json:"objectPresent,omitempty"      yaml:"object_present,omitempty"`
	Humidity           *Humidity           `json:"humidity,omitempty"           yaml:"humidity,omitempty"`
	ObjectPresentCount *ObjectPresentCount `json:"objectPresentCount,omitempty" yaml:"object_present_count,omitempty"`
	TouchCount         *TouchCount         `json:"touchCount,omitempty"         yaml:"touch_count,omitempty"`
	WaterPresent       *WaterPresent       `json:"waterPresent,omitempty"       yaml:"water_present,omitempty"`
	NetworkStatus      *NetworkStatus      `json:"networkStatus,omitempty"      yaml:"network_status,omitempty"`
	BatteryStatus      *BatteryStatus      `json:"batteryStatus,omitempty"      yaml:"battery_status,omitempty"`
	ConnectionStatus   *ConnectionStatus   `json:"connectionStatus,omitempty"   yaml:"connection_status,omitempty"`
	EthernetStatus     *EthernetStatus     `json:"ethernetStatus,omitempty"     yaml:"ethernet_status,omitempty"`
	CellularStatus     *CellularStatus     `json:"cellularStatus,omitempty"     yaml:"cellular_status,omitempty"`
}

// DeviceListOptions filters a device listing.
type DeviceListOptions struct {
	Query          string
	DeviceIDs      []string
	DeviceTypes    []string
	ProductNumbers []string
	LabelFilters   map[string]string
	OrderBy        string
	PageSize       int
}

// Values encodes the options as query parameters.
func (o *DeviceListOptions) Values() url.Values {
	values := url.Values{}
	if o == nil {
		return values
	}

	if o.Query != "" {
		values.Set("query", o.Query)
	}

	for _, id := range o.DeviceIDs {
		values.Add("device_ids", id)
	}

	for _, deviceType := range o.DeviceTypes {
		values.Add("device_types", deviceType)
	}

	for _, number := range o.ProductNumbers {
		values.Add("product_numbers", number)
	}

	for _, filter := range LabelFilterValues(o.LabelFilters) {
		values.Add("label_filters", filter)
	}

	if o.OrderBy != "" {
		values.Set("order_by", o.OrderBy)
	}

	return values
}

// LabelFilterValues renders label filters as "key=value", or "key" for an
// empty value meaning "label present". Output is sorted for stable URLs.
func LabelFilterValues(filters map[string]string) []string {
	result := make([]string, 0, len(filters))

	for key, value := range filters {
		if value == "" {
			result = append(result, key)
		} else {
			result = append(result, key+"="+value)
		}
	}

	sort.Strings(result)

	return result
}

// DeviceLabelUpdate describes a batch label change.
type DeviceLabelUpdate struct {
	DeviceIDs    []string
	AddLabels    map[string]string
	RemoveLabels []string
}

// BatchError reports a per-device failure from a batch operation.
type BatchError struct {
	Device string `json:"device" yaml:"device"`
	Code   int    `json:"code"   yaml:"code"`
	Error  string `json:"error"  yaml:"error"`
	Help   string `json:"help"   yaml:"help"`
}

// Project represents a project.
type Project struct {
	Name                    string `json:"name"                              yaml:"name"`
	DisplayName             string `json:"displayName"                       yaml:"display_name"`
	Organization            string `json:"organization"                      yaml:"organization"`
	OrganizationDisplayName string `json:"organizationDisplayName,omitempty" yaml:"organization_display_name,omitempty"`
	SensorCount             int    `json:"sensorCount"                       yaml:"sensor_count"`
	CloudConnectorCount     int    `json:"cloudConnectorCount"               yaml:"cloud_connector_count"`
	Inventory               bool   `json:"inventory"                         yaml:"inventory"`
}

// ID returns the project identifier.
func (p *Project) ID() string {
	return ParseResourceName(p.Name)["projects"]
}

// OrganizationID returns the owning organization identifier.
func (p *Project) OrganizationID() string {
	return ParseResourceName(p.Organization)["organizations"]
}

// ProjectListOptions filters a project listing.
type ProjectListOptions struct {
	OrganizationID string
	Query          string
	PageSize       int
}

// Values encodes the options as query parameters.
func (o *ProjectListOptions) Values() url.Values {
	values := url.Values{}
	if o == nil {
		return values
	}

	if o.OrganizationID != "" {
		values.Set("organization", OrganizationName(o.OrganizationID))
	}

	if o.Query != "" {
		values.Set("query", o.Query)
	}

	return values
}

// ProjectCreateRequest creates a project.
type ProjectCreateRequest struct {
	Organization string `json:"organization" yaml:"organization"`
	DisplayName  string `json:"displayName"  yaml:"display_name"`
}

// ProjectUpdateRequest updates a project.
type ProjectUpdateRequest struct {
	DisplayName string `json:"displayName,omitempty" yaml:"display_name,omitempty"`
}

// Organization represents an organization.
type Organization struct {
	Name        string `json:"name"        yaml:"name"`
	DisplayName string `json:"displayName" yaml:"display_name"`
}

// ID returns the organization identifier.
func (o *Organization) ID() string {
	return ParseResourceName(o.Name)["organizations"]
}

// Data connector statuses.
const (
	DataConnectorActive         = "ACTIVE"
	DataConnectorUserDisabled   = "USER_DISABLED"
	DataConnectorSystemDisabled = "SYSTEM_DISABLED"
)

// DataConnectorHTTPConfig configures an HTTP push data connector.
type DataConnectorHTTPConfig struct {
	URL             string            `json:"url"                       yaml:"url"`
	SignatureSecret string            `json:"signatureSecret,omitempty" yaml:"signature_secret,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"         yaml:"headers,omitempty"`
}

// DataConnector forwards events to an external endpoint.
type DataConnector struct {
	Name        string                   `json:"name,omitempty"        yaml:"name,omitempty"`
	DisplayName string                   `json:"displayName"           yaml:"display_name"`
	Type        string                   `json:"type"                  yaml:"type"`
	Status      string                   `json:"status"                yaml:"status"`
	Events      []string                 `json:"events"                yaml:"events"`
	Labels      []string                 `json:"labels"                yaml:"labels"`
	HTTPConfig  *DataConnectorHTTPConfig `json:"httpConfig,omitempty"  yaml:"http_config,omitempty"`
}

// ID returns the data connector identifier.
func (d *DataConnector) ID() string {
	return ParseResourceName(d.Name)["dataconnectors"]
}

// DataConnectorMetrics summarizes the last 3 hours of deliveries.
type DataConnectorMetrics struct {
	SuccessCount int    `json:"successCount" yaml:"success_count"`
	ErrorCount   int    `json:"errorCount"   yaml:"error_count"`
	Latency99p   string `json:"latency99p"   yaml:"latency_99p"`
}

// ServiceAccount represents a machine identity.
type ServiceAccount struct {
	Name        string    `json:"name,omitempty"       yaml:"name,omitempty"`
	Email       string    `json:"email,omitempty"      yaml:"email,omitempty"`
	DisplayName string    `json:"displayName"          yaml:"display_name"`
	BasicAuth   BasicAuth `json:"basicAuth"            yaml:"basic_auth"`
	CreateTime  time.Time `json:"createTime,omitempty" yaml:"create_time,omitempty"`
	UpdateTime  time.Time `json:"updateTime,omitempty" yaml:"update_time,omitempty"`
}

// BasicAuth toggles basic authentication for a service account.
type BasicAuth struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// ID returns the service account identifier.
func (s *ServiceAccount) ID() string {
	return ParseResourceName(s.Name)["serviceaccounts"]
}

// ServiceAccountKey is a key of a service account. Secret is only returned on creation.
type ServiceAccountKey struct {
	Name       string    `json:"name"             yaml:"name"`
	ID         string    `json:"id"               yaml:"id"`
	Secret     string    `json:"secret,omitempty" yaml:"secret,omitempty"`
	CreateTime time.Time `json:"createTime"       yaml:"create_time"`
}

// Member account types and statuses.
const (
	AccountTypeUser           = "USER"
	AccountTypeServiceAccount = "SERVICE_ACCOUNT"
	MemberStatusAccepted      = "ACCEPTED"
	MemberStatusPending       = "PENDING"
)

// Member is a user or service account with roles in a project or organization.
type Member struct {
	Name        string    `json:"name"                 yaml:"name"`
	DisplayName string    `json:"displayName"          yaml:"display_name"`
	Roles       []string  `json:"roles"                yaml:"roles"`
	Status      string    `json:"status"               yaml:"status"`
	Email       string    `json:"email"                yaml:"email"`
	AccountType string    `json:"accountType"          yaml:"account_type"`
	CreateTime  time.Time `json:"createTime,omitempty" yaml:"create_time,omitempty"`
}

// ID returns the member identifier.
func (m *Member) ID() string {
	return ParseResourceName(m.Name)["members"]
}

// Role is a named set of permissions.
type Role struct {
	Name        string   `json:"name"        yaml:"name"`
	DisplayName string   `json:"displayName" yaml:"display_name"`
	Description string   `json:"description" yaml:"description"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// ID returns the role identifier, e.g. "project.developer".
func (r *Role) ID() string {
	return ParseResourceName(r.Name)["roles"]
}

// EventListOptions filters the event history of a device.
type EventListOptions struct {
	EventTypes []string
	StartTime  time.Time
	EndTime    time.Time
	PageSize   int
}

// Values encodes the options as query parameters.
func (o *EventListOptions) Values() url.Values {
	values := url.Values{}
	if o == nil {
		return values
	}

	for _, eventType := range o.EventTypes {
		values.Add("event_types", eventType)
	}

	if !o.StartTime.IsZero() {
		values.Set("start_time", o.StartTime.UTC().Format(time.RFC3339))
	}

	if !o.EndTime.IsZero() {
		values.Set("end_time", o.EndTime.UTC().Format(time.RFC3339))
	}

	return values
}

// StreamOptions selects which devices and event types a stream delivers.
type StreamOptions struct {
	DeviceIDs      []string
	DeviceTypes    []string
	ProductNumbers []string
	LabelFilters   map[string]string
	EventTypes     []string
	// PingInterval asks the server to send keep-alive pings at this interval.
	PingInterval time.Duration

	// Reconnect re-dials after the connection drops instead of closing the
	// stream. Explicit Close always ends the stream.
	Reconnect bool
	// ReconnectBackoff is added to every reconnect delay.
	ReconnectBackoff time.Duration
}

// Values encodes the options as query parameters.
func (o *StreamOptions) Values() url.Values {
	values := url.Values{}
	if o == nil {
		return values
	}

	for _, id := range o.DeviceIDs {
		values.Add("device_ids", id)
	}

	for _, deviceType := range o.DeviceTypes {
		values.Add("device_types", deviceType)
	}

	for _, number := range o.ProductNumbers {
		values.Add("product_numbers", number)
	}

	for _, filter := range LabelFilterValues(o.LabelFilters) {
		values.Add("label_filters", filter)
	}

	for _, eventType := range o.EventTypes {
		values.Add("event_types", eventType)
	}

	if o.PingInterval > 0 {
		values.Set("ping_interval", strconv.Itoa(int(o.PingInterval/time.Second))+"s")
	}

	return values
}

// EmulatedDevice is a virtual device created through the emulator API.
type EmulatedDevice struct {
	Name   string            `json:"name,omitempty"   yaml:"name,omitempty"`
	Type   string            `json:"type"             yaml:"type"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// ID returns the emulated device identifier.
func (d *EmulatedDevice) ID() string {
	return ParseResourceName(d.Name)["devices"]
}
