package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/app"
	"github.com/soyeahso/enso/internal/config"
	"github.com/soyeahso/enso/internal/gateway"
	"github.com/soyeahso/enso/internal/store"
	"github.com/soyeahso/enso/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show paths, configuration and settings summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := out(cmd)
			fmt.Fprintf(w, "enso %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(w, "Home:     %s\n", paths.Base)
			fmt.Fprintf(w, "Config:   %s\n", paths.Config)
			fmt.Fprintf(w, "Logs:     %s\n", paths.Logs)
			fmt.Fprintln(w)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(w, "Config:   error loading: %v\n", err)
				return nil
			}
			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(w, "Validation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(w, "  - %s\n", issue)
				}
				return nil
			}

			fmt.Fprintf(w, "Storage:  backend=%s key=%s\n", cfg.Storage.Backend, cfg.Storage.Key)
			if cfg.Gateway.Enabled {
				fmt.Fprintf(w, "Gateway:  %s auth=%s tls=%t\n",
					gateway.ResolveBindAddr(cfg.Gateway), cfg.Gateway.Auth.Mode, cfg.Gateway.TLS.Enabled)
			} else {
				fmt.Fprintln(w, "Gateway:  disabled")
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				snap := a.Store.Snapshot()
				def, ok := store.DefaultAgent(snap)
				if !ok {
					def = "(none)"
				}
				enabled := 0
				for _, e := range gateway.ListAgents(snap) {
					if e.Enabled {
						enabled++
					}
				}
				fmt.Fprintf(w, "Settings: theme=%s language=%s firstRun=%t\n", snap.Theme, snap.Language, a.Report.FirstRun)
				fmt.Fprintf(w, "Agents:   %d enabled, default %s\n", enabled, def)
				if a.Report.NeedsCleanup() {
					fmt.Fprintf(w, "Legacy:   %d key(s) cleaned up\n", len(a.Report.LegacyKeys))
				}

				repos, err := a.Todos.Repos(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Todos:    %d repo(s)\n", len(repos))
				return nil
			})
		},
	}
}
