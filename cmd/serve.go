package cmd

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bnema/qr-session-keeper/internal/adapters/httpapi"
	"github.com/spf13/cobra"
)

func newServeCmd(app *app) *cobra.Command {
	var (
		listen          string
		monitorInterval time.Duration
		refreshInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the periodic monitor and refresh sweeps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("listen") {
				listen = app.config.GetString("server.listen")
			}
			if !cmd.Flags().Changed("monitor-interval") {
				monitorInterval = app.config.GetDuration("monitor.interval")
			}
			if !cmd.Flags().Changed("refresh-interval") {
				refreshInterval = app.config.GetDuration("refresh.interval")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, app, listen, monitorInterval, refreshInterval)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", httpapi.DefaultListenAddress, "HTTP listen address (default: server.listen)")
	cmd.Flags().DurationVar(&monitorInterval, "monitor-interval", 0, "Liveness sweep interval, 0 disables (default: monitor.interval)")
	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "Page refresh interval, 0 disables (default: refresh.interval)")

	return cmd
}

func runServe(ctx context.Context, app *app, listen string, monitorInterval, refreshInterval time.Duration) error {
	server := httpapi.NewServer(httpapi.Config{
		ListenAddress:       listen,
		MaxChallengeTimeout: app.config.GetDuration("challenge.timeout"),
	}, httpapi.Deps{
		Service:    app.service,
		Challenges: app.challenges,
		Validator:  app.validator,
		Probe:      app.probe,
		Gatherer:   app.metrics,
	}, app.logger.With().Str("component", "http").Logger())

	var wg sync.WaitGroup
	if monitorInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runEvery(ctx, app, "monitor", monitorInterval, func(ctx context.Context) error {
				_, err := app.monitor.Sweep(ctx)
				return err
			})
		}()
	}
	if refreshInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runEvery(ctx, app, "refresh", refreshInterval, func(ctx context.Context) error {
				_, err := app.refresher.Sweep(ctx)
				return err
			})
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = errors.Join(err, server.Shutdown(shutdownCtx))
	wg.Wait()
	app.release()

	return err
}

// runEvery calls sweep once per interval until ctx is done. A failed sweep is
// logged and the loop continues.
func runEvery(ctx context.Context, app *app, name string, interval time.Duration, sweep func(context.Context) error) {
	logger := app.logger.With().Str("loop", name).Dur("interval", interval).Logger()
	logger.Info().Msg("periodic sweep started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("periodic sweep stopped")
			return
		case <-ticker.C:
			if err := sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("periodic sweep failed")
			}
		}
	}
}
