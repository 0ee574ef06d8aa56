package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/urmzd/alpacaswitch/pkg/app"
	"github.com/urmzd/alpacaswitch/pkg/config"
	"github.com/urmzd/alpacaswitch/pkg/device/schema"
	switchmcp "github.com/urmzd/alpacaswitch/pkg/mcp"
	"github.com/urmzd/alpacaswitch/pkg/roster"
)

var version = "dev"

func main() {
	var dbPath, configPath string

	cmd := &cobra.Command{
		Use:          "alpacaswitch-mcp",
		Short:        "MCP tools for the switches an alpacaswitch server manages",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), dbPath, configPath)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to database file (default: ~/.config/alpacaswitch/settings.db)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML driver configuration")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Logging must go to stderr; stdout is the MCP transport
	if err := app.SetupLogging(cfg.Logging, os.Stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := app.OpenDatabase(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	active, err := database.ActiveConfig(ctx)
	if err != nil {
		return err
	}

	driver, closeDrivers := app.Drivers(cfg)
	defer func() {
		if err := closeDrivers(); err != nil {
			log.Error().Err(err).Msg("Failed to close switch drivers")
		}
	}()

	// The serving process records transitions; this one only reads them.
	manager := roster.NewManager(driver, app.RosterConfig(active.ServerSettings()))
	go func() {
		if err := manager.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Roster manager stopped")
		}
	}()

	mcpServer := switchmcp.NewServer(manager, database.Events(), schema.NewValidator(), version)

	log.Info().Msg("Starting MCP server on stdio")

	return mcpServer.ServeStdio()
}
