package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"noticeboard/internal/sweep"
	"noticeboard/pkg/banner"
	"noticeboard/pkg/config"
	"noticeboard/pkg/logger"
	"noticeboard/pkg/progressor"
	"noticeboard/pkg/state"
	"noticeboard/pkg/store"
	"noticeboard/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg       *config.Config
	retention time.Duration
	version   string

	srv         *http.Server
	sweepCancel context.CancelFunc
}

// New validates the config and opens the store. It does not start the
// sweep scheduler or the HTTP server; call Run to start those and block
// until shutdown.
func New(cfg *config.Config, version string) (*App, error) {
	retention, err := config.ParsePeriod(cfg.Retention.Period)
	if err != nil {
		return nil, err
	}

	dirs, err := state.Ensure(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("invalid runtime layout under %s: %w", cfg.DBPath(), err)
	}
	telemetry.SetOutputDir(dirs.Telemetry)

	if err := store.Open(dirs.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dirs.Store, err)
	}

	if _, err := progressor.Run(context.Background(), version); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &App{cfg: cfg, retention: retention, version: version}, nil
}

// Run starts the sweep scheduler and the HTTP server, and blocks until ctx
// is cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Retention.Enabled {
		cancel, err := sweep.Start(ctx, sweep.Options{
			Enabled:  true,
			Cron:     a.cfg.Retention.Cron,
			Period:   a.retention,
			DryRun:   a.cfg.Retention.DryRun,
			LeaseDir: state.Resolve(a.cfg.DBPath()).Sweep,
		})
		if err != nil {
			return fmt.Errorf("invalid retention config: %w", err)
		}
		a.sweepCancel = cancel
	} else {
		// admin sweeps still want period/dry-run settings
		sweep.SetOptions(sweep.Options{Period: a.retention, DryRun: a.cfg.Retention.DryRun})
	}

	banner.Print(a.cfg, a.version)

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.stop()
		return nil
	case err := <-errCh:
		a.stop()
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (a *App) stop() {
	if a.sweepCancel != nil {
		a.sweepCancel()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Error("http_shutdown_failed", "error", err.Error())
		}
	}
	store.LogStats()
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err.Error())
	}
	logger.Info("server_stopped")
}
