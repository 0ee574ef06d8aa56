package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/urmzd/alpacaswitch/pkg/app"
	"github.com/urmzd/alpacaswitch/pkg/db"
)

const dbFlagUsage = "Path to database file (default: ~/.config/alpacaswitch/settings.db)"

type settingsOptions struct {
	name              string
	location          string
	manufacturer      string
	address           string
	port              int
	discoveryPort     int
	discoveryInterval time.Duration
	pollInterval      time.Duration
	deviceTimeout     time.Duration
}

// withDatabase opens the settings database for the duration of fn.
func withDatabase(ctx context.Context, path string, fn func(*db.DB) error) error {
	database, err := app.OpenDatabase(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()
	return fn(database)
}

func newSettingsCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the server settings of the active profile",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", dbFlagUsage)
	cmd.AddCommand(newSettingsShowCommand(&dbPath), newSettingsSetCommand(&dbPath))
	return cmd
}

func newSettingsShowCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "show",
		Short:        "Print the stored server settings",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), *dbPath, func(database *db.DB) error {
				active, err := database.ActiveConfig(cmd.Context())
				if err != nil {
					return err
				}
				printSettings(cmd.OutOrStdout(), active.Profile.Name, active.ServerSettings())
				return nil
			})
		},
	}
}

func printSettings(w io.Writer, profile string, s db.Server) {
	fmt.Fprintf(w, "profile             %s\n", profile)
	fmt.Fprintf(w, "name                %s\n", s.ServerName)
	fmt.Fprintf(w, "manufacturer        %s\n", s.Manufacturer)
	fmt.Fprintf(w, "location            %s\n", s.Location)
	fmt.Fprintf(w, "address             %s\n", s.Address())
	fmt.Fprintf(w, "discovery-port      %d\n", s.DiscoveryPort)
	fmt.Fprintf(w, "discovery-interval  %s\n", s.DiscoveryInterval)
	fmt.Fprintf(w, "poll-interval       %s\n", s.PollInterval)
	fmt.Fprintf(w, "device-timeout      %s\n", s.DeviceTimeout)
	fmt.Fprintf(w, "unique-id           %s\n", s.UniqueID)
}

func newSettingsSetCommand(dbPath *string) *cobra.Command {
	opts := &settingsOptions{}

	cmd := &cobra.Command{
		Use:          "set",
		Short:        "Change stored server settings; unset flags keep their value",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), *dbPath, func(database *db.DB) error {
				return saveSettings(cmd, database, opts)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "", "Server name reported by management/description")
	flags.StringVar(&opts.location, "location", "", "Location reported by management/description")
	flags.StringVar(&opts.manufacturer, "manufacturer", "", "Manufacturer reported by management/description")
	flags.StringVar(&opts.address, "address", "", "Bind address for HTTP and discovery")
	flags.IntVar(&opts.port, "port", 0, "Alpaca HTTP port")
	flags.IntVar(&opts.discoveryPort, "discovery-port", 0, "UDP discovery port")
	flags.DurationVar(&opts.discoveryInterval, "discovery-interval", 0, "Time between switch discovery cycles")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 0, "Time between state poll cycles")
	flags.DurationVar(&opts.deviceTimeout, "device-timeout", 0, "Per-device request timeout")
	return cmd
}

// saveSettings applies the changed flags to the active profile's settings,
// creating the server row if the profile has none yet.
func saveSettings(cmd *cobra.Command, database *db.DB, opts *settingsOptions) error {
	ctx := cmd.Context()
	active, err := database.ActiveConfig(ctx)
	if err != nil {
		return err
	}
	s := active.ServerSettings()

	flags := cmd.Flags()
	if flags.Changed("name") {
		s.ServerName = opts.name
	}
	if flags.Changed("location") {
		s.Location = opts.location
	}
	if flags.Changed("manufacturer") {
		s.Manufacturer = opts.manufacturer
	}
	if flags.Changed("address") {
		s.Host = opts.address
	}
	if flags.Changed("port") {
		s.ControlPort = opts.port
	}
	if flags.Changed("discovery-port") {
		s.DiscoveryPort = opts.discoveryPort
	}
	if flags.Changed("discovery-interval") {
		s.DiscoveryInterval = opts.discoveryInterval
	}
	if flags.Changed("poll-interval") {
		s.PollInterval = opts.pollInterval
	}
	if flags.Changed("device-timeout") {
		s.DeviceTimeout = opts.deviceTimeout
	}
	if err := validateSettings(s); err != nil {
		return err
	}

	if active.Server == nil {
		s.ProfileID = active.Profile.ID
		s.UniqueID = uuid.NewString()
		err = database.Servers().Create(ctx, &s)
	} else {
		err = database.Servers().Update(ctx, &s)
	}
	if err != nil {
		return err
	}

	log.Info().Str("profile", active.Profile.Name).Str("address", s.Address()).Msg("Server settings saved")
	printSettings(cmd.OutOrStdout(), active.Profile.Name, s)
	return nil
}

func validateSettings(s db.Server) error {
	var errs []error
	for name, port := range map[string]int{"port": s.ControlPort, "discovery-port": s.DiscoveryPort} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, port))
		}
	}
	for name, d := range map[string]time.Duration{
		"discovery-interval": s.DiscoveryInterval,
		"poll-interval":      s.PollInterval,
		"device-timeout":     s.DeviceTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}

func newProfileCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage settings profiles",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", dbFlagUsage)
	cmd.AddCommand(
		newProfileListCommand(&dbPath),
		newProfileCreateCommand(&dbPath),
		newProfileUseCommand(&dbPath),
		newProfileDeleteCommand(&dbPath),
	)
	return cmd
}

func newProfileListCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List profiles; the active one is marked with *",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), *dbPath, func(database *db.DB) error {
				profiles, err := database.Profiles().List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range profiles {
					mark := " "
					if p.IsActive {
						mark = "*"
					}
					fmt.Fprintf(out, "%s %s\n", mark, p.Name)
				}
				return nil
			})
		},
	}
}

func newProfileCreateCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "create [name]",
		Short:        "Create a profile with default server settings",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDatabase(ctx, *dbPath, func(database *db.DB) error {
				profile := &db.Profile{Name: args[0]}
				if err := database.Profiles().Create(ctx, profile); err != nil {
					return err
				}
				server := db.DefaultServer()
				server.ProfileID = profile.ID
				server.UniqueID = uuid.NewString()
				if err := database.Servers().Create(ctx, &server); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s\n", profile.Name)
				return nil
			})
		},
	}
}

func newProfileUseCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "use [name]",
		Short:        "Make a profile the active one",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDatabase(ctx, *dbPath, func(database *db.DB) error {
				profile, err := database.Profiles().GetByName(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if err := database.Profiles().SetActive(ctx, profile.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Active profile is now %s\n", profile.Name)
				return nil
			})
		},
	}
}

func newProfileDeleteCommand(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "delete [name]",
		Short:        "Delete an inactive profile and its settings",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDatabase(ctx, *dbPath, func(database *db.DB) error {
				profile, err := database.Profiles().GetByName(ctx, args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if profile.IsActive {
					return fmt.Errorf("%s is the active profile", profile.Name)
				}
				if err := database.Profiles().Delete(ctx, profile.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", profile.Name)
				return nil
			})
		},
	}
}
