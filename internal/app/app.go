// Package app wires the feeder, its scheduler and the HTTP API into one process.
package app

import (
	"context"
	"fmt"

	"datafeeder/internal/config"
	"datafeeder/internal/feeder"
	"datafeeder/internal/logger"
	"datafeeder/internal/scheduler"
	"datafeeder/internal/store/fetchlog"
	feedhttp "datafeeder/internal/transport/http/feed"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      *config.Config
	feeder   *feeder.Feeder
	ticker   *scheduler.AlignedScheduler
	http     *feedhttp.Server
	fetchLog *fetchlog.Store
	Summary  *StartupSummary
}

func newApp(cfg *config.Config, fd *feeder.Feeder, ticker *scheduler.AlignedScheduler, srv *feedhttp.Server, fl *fetchlog.Store, summary *StartupSummary) *App {
	return &App{cfg: cfg, feeder: fd, ticker: ticker, http: srv, fetchLog: fl, Summary: summary}
}

// NewApp builds every dependency without starting anything.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg)
}

// Run serves HTTP immediately and, alongside it, bootstraps then polls until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.feeder == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, gctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(gctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		err := a.feeder.Run(gctx, a.ticker.Start)
		if err != nil && gctx.Err() != nil {
			return nil
		}
		return err
	})
	return group.Wait()
}

// Ready reports whether bootstrap has completed.
func (a *App) Ready() bool {
	return a != nil && a.feeder != nil && a.feeder.Ready()
}

func (a *App) close() {
	if a.fetchLog != nil {
		if err := a.fetchLog.Close(); err != nil {
			logger.Warnf("fetchlog: close failed: %v", err)
		}
	}
}
