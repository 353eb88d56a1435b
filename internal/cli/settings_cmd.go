package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/app"
	"github.com/soyeahso/enso/internal/migrate"
	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/storage"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit the settings document",
	}

	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsPathCmd())
	cmd.AddCommand(newSettingsMigrateCmd())
	cmd.AddCommand(newSettingsWatchCmd())

	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				raw := a.Store.Snapshot().ToRaw()
				if asJSON {
					return printJSON(cmd, raw)
				}
				return printValue(cmd, raw)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print one setting, e.g. editor.tabSize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Store.Get(args[0])
				if err != nil {
					return err
				}
				return printValue(cmd, v)
			})
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Change one setting; invalid values keep the current one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				effective, err := a.Store.Apply(args[0], parseValue(args[1]))
				if err != nil {
					return err
				}
				if err := a.Store.Flush(ctx); err != nil {
					return err
				}
				if n := a.Store.WriteFailures(); n > 0 {
					return fmt.Errorf("settings were not saved (%d failed write(s))", n)
				}
				fmt.Fprintf(out(cmd), "Set %s = %v\n", args[0], effective)
				return nil
			})
		},
	}
}

func newSettingsPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where settings are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			switch cfg.Storage.Backend {
			case "sqlite":
				fmt.Fprintf(out(cmd), "%s (sqlite, key %s)\n", cfg.DatabaseFile(paths), cfg.Storage.Key)
			case "memory":
				fmt.Fprintln(out(cmd), "(memory)")
			default:
				fmt.Fprintln(out(cmd), cfg.SettingsFile(paths))
			}
			return nil
		},
	}
}

func newSettingsMigrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the stored settings and report what changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun {
				return withApp(cmd, func(ctx context.Context, a *app.App) error {
					if err := a.Store.Flush(ctx); err != nil {
						return err
					}
					return printReport(cmd, a.Report, nil)
				})
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, database, err := app.OpenBackend(cfg, paths, log)
			if err != nil {
				return err
			}
			defer backend.Close()
			if database != nil {
				defer database.Close()
			}

			blob, err := storage.NewAdapter(backend, cfg.Storage.Key).Read(cmd.Context())
			if err != nil {
				return err
			}
			state, _ := blob["state"].(map[string]any)
			_, report := migrate.Migrate(state, settings.Defaults(cfg.Platform))
			cleaned := migrate.StripLegacy(state, report)
			return printReport(cmd, report, cleaned)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	return cmd
}

func printReport(cmd *cobra.Command, report migrate.Report, cleaned map[string]any) error {
	w := out(cmd)
	switch {
	case report.FirstRun:
		fmt.Fprintln(w, "No stored settings; defaults apply.")
		return nil
	case !report.Changed():
		fmt.Fprintln(w, "Settings are current.")
		return nil
	}
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if cleaned != nil {
		fmt.Fprintf(w, "%d top-level key(s) remain after cleanup.\n", len(cleaned))
	}
	return nil
}

func newSettingsWatchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow changes other processes make to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Backend != "file" {
				return fmt.Errorf("watch needs the file backend, not %q", cfg.Storage.Backend)
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			backend := storage.NewFileBackend(cfg.SettingsFile(paths))
			defaults := settings.Defaults(cfg.Platform)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out(cmd), "Watching %s\n", backend.Path())
			return backend.Watch(ctx, cfg.Storage.Key, debounce,
				func(blob map[string]any) {
					state, _ := blob["state"].(map[string]any)
					snap, report := migrate.Migrate(state, defaults)
					fmt.Fprintf(out(cmd), "%s changed: theme=%s language=%s agents=%d migrated=%t\n",
						time.Now().Format(time.TimeOnly), snap.Theme, snap.Language,
						len(snap.AgentSettings), report.Changed())
				},
				func(err error) {
					log.Warn().Err(err).Msg("reading settings")
				})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", storage.DefaultDebounce, "quiet period before reporting a change")
	return cmd
}
