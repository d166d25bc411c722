package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/dtcloud/internal/auth"
	"github.com/fivetwenty-io/dtcloud/internal/constants"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
	now   func() time.Time
}

var _ auth.ConfigPersister = (*ConfigPersister)(nil)

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{now: time.Now}
}

// UpdateToken caches a refreshed token in the named profile.
func (p *ConfigPersister) UpdateToken(profileName, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	profile, exists := config.Profiles[profileName]
	if !exists {
		return fmt.Errorf("profile '%s': %w", profileName, constants.ErrProfileNotFound)
	}

	profile.Token = token
	profile.TokenExpiresAt = nil

	if !expiresAt.IsZero() {
		profile.TokenExpiresAt = &expiresAt
	}

	now := p.now()
	profile.LastRefreshed = &now

	return saveConfigStruct(config)
}
