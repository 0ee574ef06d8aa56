package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/urmzd/alpacaswitch/pkg/alpaca"
	"github.com/urmzd/alpacaswitch/pkg/api"
	"github.com/urmzd/alpacaswitch/pkg/app"
	"github.com/urmzd/alpacaswitch/pkg/config"
	"github.com/urmzd/alpacaswitch/pkg/db"
	"github.com/urmzd/alpacaswitch/pkg/discovery"
	"github.com/urmzd/alpacaswitch/pkg/metrics"
	"github.com/urmzd/alpacaswitch/pkg/mqtt"
	"github.com/urmzd/alpacaswitch/pkg/roster"
	"github.com/urmzd/alpacaswitch/pkg/switchapi"

	_ "github.com/urmzd/alpacaswitch/docs"
)

// @title           Alpaca Switch API
// @version         1.0
// @description     ASCOM Alpaca switch device backed by Kasa plugs and USB relay boards

// @host      localhost:11111
// @BasePath  /
// @schemes   http

var version = "dev"

const (
	eventRetention = 7 * 24 * time.Hour
	pruneInterval  = time.Hour
)

type serveOptions struct {
	dbPath        string
	configPath    string
	address       string
	port          int
	discoveryPort int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:          "alpacaswitch",
		Short:        "Alpaca switch server for Kasa plugs and USB relay boards",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dbPath, "db", "", dbFlagUsage)
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML driver configuration")
	flags.StringVar(&opts.address, "address", "", "Bind address for HTTP and discovery (overrides stored setting)")
	flags.IntVar(&opts.port, "port", 0, "Alpaca HTTP port (overrides stored setting)")
	flags.IntVar(&opts.discoveryPort, "discovery-port", 0, "UDP discovery port (overrides stored setting)")

	cmd.AddCommand(newProbeCommand(), newSettingsCommand(), newProfileCommand())
	return cmd
}

// applyFlags overrides stored settings with the flags the user set.
func applyFlags(cmd *cobra.Command, opts *serveOptions, s *db.Server) {
	flags := cmd.Flags()
	if flags.Changed("address") {
		s.Host = opts.address
	}
	if flags.Changed("port") {
		s.ControlPort = opts.port
	}
	if flags.Changed("discovery-port") {
		s.DiscoveryPort = opts.discoveryPort
	}
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := app.SetupLogging(cfg.Logging, os.Stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := app.OpenDatabase(ctx, opts.dbPath)
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
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	server := active.ServerSettings()
	applyFlags(cmd, opts, &server)

	log.Info().
		Str("profile", active.Profile.Name).
		Str("address", server.Address()).
		Int("discovery_port", server.DiscoveryPort).
		Dur("discovery_interval", server.DiscoveryInterval).
		Dur("poll_interval", server.PollInterval).
		Msg("Configuration loaded")

	driver, closeDrivers := app.Drivers(cfg)
	defer func() {
		if err := closeDrivers(); err != nil {
			log.Error().Err(err).Msg("Failed to close switch drivers")
		}
	}()

	collector := metrics.NewCollector(methodNames()...)
	events := database.Events()

	rosterOpts := []roster.Option{
		roster.WithObserver(collector),
		roster.WithStateSink(db.NewEventRecorder(events)),
	}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.Connect(app.MQTTConfig(cfg.MQTT))
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT unavailable, state publishing disabled")
		} else {
			defer pub.Close()
			rosterOpts = append(rosterOpts, roster.WithStateSink(pub))
		}
	}
	manager := roster.NewManager(driver, app.RosterConfig(server), rosterOpts...)

	dispatcher, err := newDispatcher(manager, server, collector)
	if err != nil {
		return err
	}

	router := api.NewRouter(dispatcher, manager, collector.Handler())

	responder := discovery.NewResponder(server.Host, server.DiscoveryPort, server.ControlPort)
	if err := responder.Listen(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx, server.Address()) })
	g.Go(func() error { return responder.Serve(gctx) })
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error { return pruneEvents(gctx, events) })

	err = g.Wait()
	log.Info().Msg("Shutting down...")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newDispatcher declares the Alpaca method table and binds the switch
// handlers to it.
func newDispatcher(manager *roster.Manager, server db.Server, observer alpaca.Observer) (*alpaca.Dispatcher, error) {
	registry, err := alpaca.NewRegistry(alpaca.CommonMethods, alpaca.SwitchMethods)
	if err != nil {
		return nil, err
	}

	info := switchapi.DefaultInfo(version)
	info.Name = server.ServerName
	if err := registry.BindAll(switchapi.New(manager, info).Bindings()); err != nil {
		return nil, err
	}

	dispatcher := alpaca.NewDispatcher(registry,
		alpaca.WithDescription(alpaca.Description{
			ServerName:          server.ServerName,
			Manufacturer:        server.Manufacturer,
			ManufacturerVersion: version,
			Location:            server.Location,
		}),
		alpaca.WithConfiguredDevices(alpaca.ConfiguredDevice{
			DeviceName:   server.ServerName,
			DeviceType:   "Switch",
			DeviceNumber: 0,
			UniqueID:     server.UniqueID,
		}),
		alpaca.WithObserver(observer),
	)
	dispatcher.WarnUnbound()
	return dispatcher, nil
}

// methodNames lists every method the metrics collector labels by name.
func methodNames() []string {
	names := []string{"apiversions", "description", "configureddevices"}
	for _, c := range []alpaca.Category{alpaca.CommonMethods, alpaca.SwitchMethods} {
		for _, m := range c.Methods {
			names = append(names, m.Name)
		}
	}
	return names
}

// pruneEvents trims the switch event log until ctx is cancelled.
func pruneEvents(ctx context.Context, events db.EventStore) error {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := events.Prune(ctx, time.Now().Add(-eventRetention))
			if err != nil {
				log.Warn().Err(err).Msg("Failed to prune switch events")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("Pruned switch events")
			}
		}
	}
}

func newProbeCommand() *cobra.Command {
	var (
		host    string
		port    int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Broadcast an Alpaca discovery probe and list the servers that answer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := net.JoinHostPort(host, strconv.Itoa(port))
			servers, err := discovery.Probe(cmd.Context(), target, timeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, "No Alpaca servers answered")
				return nil
			}
			for _, s := range servers {
				fmt.Fprintf(out, "%s\talpacaport=%d\n", s.Address, s.AlpacaPort)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&host, "host", "255.255.255.255", "Broadcast or unicast address to probe")
	flags.IntVar(&port, "port", discovery.DefaultPort, "UDP discovery port")
	flags.DurationVar(&timeout, "timeout", 2*time.Second, "How long to wait for replies")
	return cmd
}
