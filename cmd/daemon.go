package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/authguard/config"
	"github.com/angeloszaimis/authguard/internal/httpserver"
	"github.com/angeloszaimis/authguard/internal/refresher"
	"github.com/angeloszaimis/authguard/pkg/logger"
)

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Keep the credential cache warm and serve metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.Annotatef(refresher.ErrInvalidInterval, "--interval %s", interval)
			}

			a, err := newApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.fetcher()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a.cfg.WatchChanges(func(next *config.Config) {
				a.level.Set(logger.ParseLevel(next.LogLevel))
				a.logger.Info("Configuration reloaded", slog.String("log_level", next.LogLevel))
			})

			var wg sync.WaitGroup
			errCh := make(chan error, 2)

			if a.cfg.MetricsAddress != "" {
				srv, err := httpserver.New(a.cfg.MetricsAddress, setupRouter(a.recorder), a.logger)
				if err != nil {
					return err
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := srv.Run(ctx); err != nil {
						errCh <- err
						cancel()
					}
				}()
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := refresher.Run(ctx, f, interval, a.logger); err != nil {
					errCh <- err
					cancel()
				}
			}()

			<-ctx.Done()
			a.logger.Info("Shutting down gracefully...")
			wg.Wait()

			select {
			case err := <-errCh:
				return err
			default:
				return nil
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often to check the cached credentials")
	return cmd
}
