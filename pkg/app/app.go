// Package app wires the YAML configuration and the settings database into
// the pieces both binaries share: logging, the database, and the switch
// drivers.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/alpacaswitch/pkg/config"
	"github.com/urmzd/alpacaswitch/pkg/db"
	"github.com/urmzd/alpacaswitch/pkg/device"
	"github.com/urmzd/alpacaswitch/pkg/kasa"
	"github.com/urmzd/alpacaswitch/pkg/mqtt"
	"github.com/urmzd/alpacaswitch/pkg/relay"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

// SetupLogging points the global logger at out in the configured format
// and sets the global level.
func SetupLogging(cfg config.LoggingConfig, out io.Writer) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch cfg.Format {
	case "", "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return nil
}

// OpenDatabase opens the settings database, migrates it and bootstraps it
// on first run.
func OpenDatabase(ctx context.Context, path string) (*db.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	log.Info().Str("path", database.Path()).Msg("Database opened")

	if err := database.Migrate(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to run database migrations: %w", err), database.Close())
	}

	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to check bootstrap status: %w", err), database.Close())
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, bootstrapping database...")
		if err := database.Bootstrap(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to bootstrap database: %w", err), database.Close())
		}
		log.Info().Msg("Database bootstrapped successfully")
	}

	return database, nil
}

// Drivers builds the switch driver from the configured inventory. The
// returned close function releases serial ports. With nothing configured
// the null driver is used and the roster stays empty.
func Drivers(cfg *config.Config) (device.Driver, func() error) {
	var (
		drivers []device.Driver
		closers []func() error
	)

	if cfg.Kasa.Enabled {
		drivers = append(drivers, kasa.New(kasa.Config{
			BroadcastAddress: cfg.Kasa.BroadcastAddress,
			DiscoveryTimeout: cfg.Kasa.DiscoveryTimeout,
			IOTimeout:        cfg.Kasa.IOTimeout,
			Hosts:            cfg.Kasa.Hosts,
		}))
	}

	if len(cfg.Relays) > 0 {
		boards := make([]relay.Board, 0, len(cfg.Relays))
		for _, b := range cfg.Relays {
			boards = append(boards, relay.Board{Port: b.Port, Channels: b.Channels, Names: b.Names})
		}
		r := relay.New(relay.Config{Boards: boards})
		drivers = append(drivers, r)
		closers = append(closers, r.Close)
	}

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if len(drivers) == 0 {
		log.Warn().Msg("No switch drivers configured, using null driver")
		return device.NewNullDriver(), closeAll
	}
	return device.NewMulti(drivers...), closeAll
}

// RosterConfig converts stored server settings to roster timings.
func RosterConfig(s db.Server) roster.Config {
	return roster.Config{
		DiscoveryInterval: s.DiscoveryInterval,
		PollInterval:      s.PollInterval,
		DeviceTimeout:     s.DeviceTimeout,
	}
}

// MQTTConfig converts the YAML publisher section.
func MQTTConfig(cfg config.MQTTConfig) mqtt.Config {
	return mqtt.Config{
		Broker:      cfg.Broker,
		ClientID:    cfg.ClientID,
		Username:    cfg.Username,
		Password:    cfg.Password,
		QoS:         byte(cfg.QoS),
		TopicPrefix: cfg.TopicPrefix,
	}
}
