package constants

import "errors"

// Configuration errors.
var (
	ErrNoCredentials     = errors.New("no credentials configured, use 'dtcloud config set-credentials' or set DTCLOUD_TOKEN")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrUnknownConfigKey  = errors.New("unknown configuration key")
	ErrInvalidOutput     = errors.New("invalid output format")
	ErrProjectRequired   = errors.New("--project flag or default project is required")
	ErrInvalidLabel      = errors.New("labels must be given as key=value")
	ErrUnsupportedEvent  = errors.New("event type cannot be published from the command line")
	ErrEventValueMissing = errors.New("--value is required for this event type")
)
