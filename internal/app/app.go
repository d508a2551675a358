package app

import (
	domain "github.com/itechstro/lime/internal/domain"
	domaintypes "github.com/itechstro/lime/internal/domain/types"
)

// App is the dependency graph for a single unlocked identity: everything a
// CLI command needs to encrypt, decrypt, and talk to a relay.
type App struct {
	Identity     domaintypes.Identity
	SelfDeviceID domaintypes.Username

	IDs      domain.IdentityService
	Prekey   domain.PreKeyService
	Engine   domain.Engine
	Messages domain.MessageService
	Relay    domain.RelayClient
}
