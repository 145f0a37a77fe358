package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/systmms/rolecreds/internal/config"
	"github.com/systmms/rolecreds/internal/metrics"
	"github.com/systmms/rolecreds/internal/notify"
)

const shutdownTimeout = 5 * time.Second

func NewWatchCommand(cfg *config.Config) *cobra.Command {
	var (
		flags       sourceFlags
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep credentials rotated until interrupted",
		Long: `Select a credentials source and keep its credentials rotated until
SIGINT or SIGTERM. Rotations and failures are logged; with metrics enabled,
rotation metrics and a /health endpoint are served over HTTP.

Examples:
  rolecreds watch
  rolecreds watch --metrics-addr 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serverConfig := metrics.DefaultServerConfig()
			enabled := false
			if cfg.Settings != nil {
				serverConfig = cfg.Settings.Metrics.ServerConfig
				enabled = cfg.Settings.Metrics.Enabled
			}
			if metricsAddr != "" {
				serverConfig.Address = metricsAddr
				enabled = true
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			rotationMetrics := metrics.NewRotationMetrics(reg)

			// Deliveries outlive ctx so the final events are not cut off.
			events, err := newNotifier(context.WithoutCancel(ctx), cfg, rotationMetrics)
			if err != nil {
				return err
			}
			if events != nil {
				defer events.Stop()
			}

			resolver, err := newResolver(ctx, cfg, flags, rotationMetrics, events)
			if err != nil {
				return err
			}
			sel, err := resolver.Select(ctx)
			if err != nil {
				return noSourceError(err)
			}
			provider := sel.Provider
			cfg.Logger.Info("Watching %s credentials", sel.Source)
			if events != nil {
				event := notify.SnapshotEvent(notify.EventSelected, provider.Credentials(), time.Now())
				event.Source = sel.Source
				events.Send(event)
			}

			g, gctx := errgroup.WithContext(ctx)

			var server *metrics.Server
			if enabled {
				server = metrics.NewServer(serverConfig, reg, func() bool {
					return provider.Credentials().Valid()
				})
				if err := server.Listen(); err != nil {
					provider.Stop()
					provider.Wait()
					return err
				}
				cfg.Logger.Info("Serving metrics on %s%s", server.Addr(), serverConfig.Path)
				g.Go(server.Serve)
			}

			g.Go(func() error {
				<-gctx.Done()
				provider.Stop()
				if server == nil {
					return nil
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			provider.Wait()
			cfg.Logger.Info("Stopped watching %s credentials", sel.Source)
			return err
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve metrics on this address (enables metrics)")

	return cmd
}
