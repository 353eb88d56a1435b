package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/enso/internal/app"
	"github.com/soyeahso/enso/internal/legacy"
)

func newServeCmd() *cobra.Command {
	var (
		port     int
		bind     string
		noDetect bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the settings engine and the host gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			root, closer, err := app.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()
			if logLevel != "" {
				root = root.WithLevel(logLevel)
			}
			log = root

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []app.Option
			if noDetect {
				opts = append(opts, app.WithStartupDetection(false))
			}
			a, err := app.Open(ctx, cfg, paths, log, opts...)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := a.Close(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("shutdown")
				}
			}()

			if a.Legacy.Status == legacy.StatusFailed {
				log.Warn().Str("error", a.Legacy.Error).Msg("legacy todo import failed, will retry on next start")
			}

			if !cfg.Gateway.Enabled {
				log.Info().Msg("gateway disabled, running headless")
				<-ctx.Done()
				return nil
			}
			return a.Gateway().Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&noDetect, "no-detect", false, "skip agent detection at startup")

	return cmd
}
