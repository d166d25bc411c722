package constants

import "time"

// API roots.
const (
	// DefaultBaseURL is the production REST API root.
	DefaultBaseURL = "https://api.d21s.com/v2"

	// DefaultEmulatorURL is the production emulator API root.
	DefaultEmulatorURL = "https://emulator.d21s.com/v2"

	// DefaultTokenURL is the OAuth2 token endpoint for service accounts.
	DefaultTokenURL = "https://identity.disruptive-technologies.com/oauth2/token"
)

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultResponseTimeout bounds the wait for response headers.
	DefaultResponseTimeout = 20 * time.Second
)

// Pagination.
const (
	// StandardPageSize is the page size used when listing every item.
	StandardPageSize = 100
)

// Paging keys name the member holding the items of a list response.
const (
	PagingKeyDevices         = "devices"
	PagingKeyProjects        = "projects"
	PagingKeyOrganizations   = "organizations"
	PagingKeyDataConnectors  = "dataConnectors"
	PagingKeyServiceAccounts = "serviceAccounts"
	PagingKeyKeys            = "keys"
	PagingKeyMembers         = "members"
	PagingKeyRoles           = "roles"
	PagingKeyPermissions     = "permissions"
	PagingKeyEvents          = "events"
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// None is used when no value is present.
	None = "none"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)
