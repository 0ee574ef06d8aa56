package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Bootstrap creates the default profile and server settings on first run.
// The server gets a fresh UniqueID that stays stable across restarts.
func (db *DB) Bootstrap(ctx context.Context) error {
	needs, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check profiles: %w", err)
	}
	if !needs {
		return nil
	}

	profile := &Profile{Name: "default", IsActive: true}
	if err := db.Profiles().Create(ctx, profile); err != nil {
		return err
	}

	server := DefaultServer()
	server.ProfileID = profile.ID
	server.UniqueID = uuid.NewString()
	if err := db.Servers().Create(ctx, &server); err != nil {
		return err
	}

	log.Info().Str("profile", profile.Name).Str("unique_id", server.UniqueID).Msg("Initialized settings database")
	return nil
}

// NeedsBootstrap returns true if the database needs initial setup.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
