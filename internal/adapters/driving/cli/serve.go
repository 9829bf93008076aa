package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbsync/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/kbsync/internal/config"
	"github.com/custodia-labs/kbsync/internal/logger"
)

var (
	serveAddr  string
	serveNoAPI bool
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the HTTP trigger server",
	Long: `Runs the fetch and publish stages on their cron schedules until
interrupted.

Unless --no-http is given, an HTTP server also listens on --addr:
  GET|POST /fetch[?full=true]   run a fetch cycle now
  GET|POST /publish             run a publish cycle now
  GET      /status              stage status as JSON
  GET      /healthz             liveness
  GET      /metrics             Prometheus metrics

Edits to the config file reschedule the tasks without a restart.`,
	Annotations: servicesAnnotation,
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default from config, :8080)")
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-http", false, "run the scheduler only")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload schedules when the config file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if taskScheduler == nil || fetchService == nil || publishService == nil {
		return errors.New("services not configured")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 3)
	running := 0

	running++
	go func() {
		errCh <- wrapErr("scheduler", taskScheduler.Start(ctx))
	}()

	if !serveNoAPI {
		addr := serveAddr
		if addr == "" && appConfig != nil {
			addr = appConfig.ServerAddr
		}
		if addr == "" {
			addr = config.DefaultServerAddr
		}
		srv := httpapi.New(fetchService, publishService, httpapi.WithMetrics("kbsync"))
		cmd.Printf("HTTP triggers listening on %s\n", addr)
		running++
		go func() {
			errCh <- wrapErr("http server", srv.Listen(ctx, addr))
		}()
	}

	if serveWatch && configStore != nil {
		running++
		go func() {
			// A watcher failure only disables hot reload.
			err := wrapErr("config watcher", config.Watch(ctx, configStore.Path(), 0, func() {
				reloadSchedule(ctx)
			}))
			if err != nil {
				logger.Warn("Schedules will not reload on config changes: %v", err)
			}
			errCh <- nil
		}()
	}

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")

	var firstErr error
	for ; running > 0; running-- {
		err := <-errCh
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		// A failing component takes the others down with it.
		cancel()
	}

	if err := taskScheduler.Stop(); err != nil {
		logger.Warn("Error stopping scheduler: %v", err)
	}
	return firstErr
}

// reloadSchedule re-reads the config file and applies its schedules.
func reloadSchedule(ctx context.Context) {
	if err := configStore.Load(); err != nil {
		logger.Error("Reload config: %v", err)
		return
	}
	cfg := config.Load(configStore, nil)
	if err := taskScheduler.Reschedule(ctx, cfg.SchedulerConfig()); err != nil {
		logger.Error("Apply new schedule: %v", err)
		return
	}
	logger.Info("Schedules reloaded: fetch %q, publish %q",
		cfg.Scheduler.FetchSchedule, cfg.Scheduler.PublishSchedule)
}

func wrapErr(what string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
