package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/app"
	"github.com/soyeahso/enso/internal/config"
	"github.com/soyeahso/enso/internal/logging"
)

var (
	cfgFile  string
	homeDir  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enso",
		Short: "enso settings engine",
		Long:  "enso owns the EnsoAI settings document: it loads, migrates and persists it, and serves it to the desktop host over a local gateway.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeDir != "" {
				paths = config.PathsAt(homeDir)
			} else {
				var err error
				paths, err = config.ResolvePaths()
				if err != nil {
					return err
				}
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "warn"
			}
			if !logging.ValidLevel(level) {
				return fmt.Errorf("invalid log level %q", level)
			}
			log = logging.New(cmd.ErrOrStderr(), level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <home>/config.yaml)")
	cmd.PersistentFlags().StringVar(&homeDir, "home", "", "data directory (default $ENSO_HOME or $XDG_CONFIG_HOME/enso)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSettingsCmd())
	cmd.AddCommand(newAgentsCmd())
	cmd.AddCommand(newTodoCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads and validates the config file.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// openApp opens the engine for a one-shot command. Startup detection and
// the legacy import are left to the commands that ask for them.
func openApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts = append([]app.Option{app.WithStartupDetection(false), app.WithoutLegacyMigration()}, opts...)
	return app.Open(ctx, cfg, paths, log, opts...)
}

// withApp opens the engine, runs fn and closes it, keeping fn's error.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	if err := a.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
