package db

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoActiveProfile = errors.New("no active profile found")

// Config is the runtime configuration of the active profile.
type Config struct {
	Profile *Profile
	Server  *Server
}

// ServerSettings returns the stored settings, or the defaults when the
// profile has no server row.
func (c *Config) ServerSettings() Server {
	if c.Server == nil {
		return DefaultServer()
	}
	return *c.Server
}

// ActiveConfig loads the configuration for the active profile.
func (db *DB) ActiveConfig(ctx context.Context) (*Config, error) {
	profile, err := db.Profiles().GetActive(ctx)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return nil, ErrNoActiveProfile
		}
		return nil, fmt.Errorf("failed to get active profile: %w", err)
	}

	server, err := db.Servers().Get(ctx, profile.ID)
	if err != nil && !errors.Is(err, ErrServerNotFound) {
		return nil, fmt.Errorf("failed to get server settings: %w", err)
	}

	return &Config{Profile: profile, Server: server}, nil
}
