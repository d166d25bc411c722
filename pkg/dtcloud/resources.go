package dtcloud

import "context"

// DevicesClient manages the devices of a project.
type DevicesClient interface {
	Get(ctx context.Context, projectID, deviceID string) (*Device, error)
	// List returns every device, following page tokens.
	List(ctx context.Context, projectID string, opts *DeviceListOptions) ([]Device, error)
	// ListPage returns exactly one page.
	ListPage(ctx context.Context, projectID string, opts *DeviceListOptions, pageToken string) (*PagedResult[Device], error)
	BatchUpdateLabels(ctx context.Context, projectID string, update *DeviceLabelUpdate) ([]BatchError, error)
	SetLabel(ctx context.Context, projectID, deviceID, key, value string) (*Device, error)
	RemoveLabel(ctx context.Context, projectID, deviceID, key string) (*Device, error)
	SetDisplayName(ctx context.Context, projectID, deviceID, name string) (*Device, error)
	// Transfer moves devices from another project into projectID.
	Transfer(ctx context.Context, projectID, sourceProjectID string, deviceIDs []string) ([]BatchError, error)
}

// ProjectsClient manages projects.
type ProjectsClient interface {
	Get(ctx context.Context, projectID string) (*Project, error)
	List(ctx context.Context, opts *ProjectListOptions) ([]Project, error)
	ListPage(ctx context.Context, opts *ProjectListOptions, pageToken string) (*PagedResult[Project], error)
	Create(ctx context.Context, request *ProjectCreateRequest) (*Project, error)
	Update(ctx context.Context, projectID string, request *ProjectUpdateRequest) (*Project, error)
	Delete(ctx context.Context, projectID string) error
}

// OrganizationsClient reads organizations.
type OrganizationsClient interface {
	Get(ctx context.Context, organizationID string) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
	ListPermissions(ctx context.Context, organizationID string) ([]string, error)
}

// DataConnectorsClient manages the data connectors of a project.
type DataConnectorsClient interface {
	Get(ctx context.Context, projectID, dataConnectorID string) (*DataConnector, error)
	List(ctx context.Context, projectID string) ([]DataConnector, error)
	Create(ctx context.Context, projectID string, connector *DataConnector) (*DataConnector, error)
	Update(ctx context.Context, projectID, dataConnectorID string, connector *DataConnector, updateMask []string) (*DataConnector, error)
	Delete(ctx context.Context, projectID, dataConnectorID string) error
	// Sync resends the latest event of every device to the connector.
	Sync(ctx context.Context, projectID, dataConnectorID string) error
	GetMetrics(ctx context.Context, projectID, dataConnectorID string) (*DataConnectorMetrics, error)
}

// ServiceAccountsClient manages the service accounts of a project and their keys.
type ServiceAccountsClient interface {
	Get(ctx context.Context, projectID, serviceAccountID string) (*ServiceAccount, error)
	List(ctx context.Context, projectID string) ([]ServiceAccount, error)
	Create(ctx context.Context, projectID string, account *ServiceAccount) (*ServiceAccount, error)
	Update(ctx context.Context, projectID, serviceAccountID string, account *ServiceAccount, updateMask []string) (*ServiceAccount, error)
	Delete(ctx context.Context, projectID, serviceAccountID string) error
	CreateKey(ctx context.Context, projectID, serviceAccountID string) (*ServiceAccountKey, error)
	ListKeys(ctx context.Context, projectID, serviceAccountID string) ([]ServiceAccountKey, error)
	DeleteKey(ctx context.Context, projectID, serviceAccountID, keyID string) error
}

// MembersClient manages members. Parent is a resource name such as
// ProjectName(id) or OrganizationName(id).
type MembersClient interface {
	List(ctx context.Context, parent string) ([]Member, error)
	Add(ctx context.Context, parent string, email string, roles []string) (*Member, error)
	Update(ctx context.Context, parent, memberID string, roles []string) (*Member, error)
	Remove(ctx context.Context, parent, memberID string) error
	GetInviteURL(ctx context.Context, parent, memberID string) (string, error)
}

// RolesClient reads roles.
type RolesClient interface {
	Get(ctx context.Context, roleID string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
}

// EventsClient reads the event history of a device.
type EventsClient interface {
	List(ctx context.Context, projectID, deviceID string, opts *EventListOptions) ([]DeviceEvent, error)
}

// EmulatorClient manages emulated devices.
type EmulatorClient interface {
	CreateDevice(ctx context.Context, projectID string, device *EmulatedDevice) (*EmulatedDevice, error)
	DeleteDevice(ctx context.Context, projectID, deviceID string) error
	// PublishEvent makes an emulated device emit an event.
	PublishEvent(ctx context.Context, projectID, deviceID string, data EventData) error
}

// Subscription is a running event stream.
type Subscription interface {
	// ID identifies the stream in logs.
	ID() string
	State() StreamState
	// Close stops delivery. It is idempotent and safe to call from handlers.
	Close()
	// Done is closed once the stream has shut down.
	Done() <-chan struct{}
	// Wait blocks until the stream has shut down.
	Wait()
}

// StreamsClient opens device event streams.
type StreamsClient interface {
	Subscribe(ctx context.Context, projectID string, opts *StreamOptions, handlers *EventHandlers) (Subscription, error)
}
