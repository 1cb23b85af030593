package daemon

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dtesync/internal/config"
	"dtesync/internal/contingency"
	"dtesync/internal/engine"
	"dtesync/internal/logging"
)

// Run starts the daemon in the foreground and blocks until ctx is cancelled.
// It owns the full lifecycle: store, engine, lock, API server, shutdown.
func Run(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := contingency.Open(cfg)
	if err != nil {
		return fmt.Errorf("open contingency store: %w", err)
	}

	eng, err := engine.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create engine: %w", err)
	}

	d, err := New(cfg, store, eng, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	apiServer := NewAPIServer(cfg, d, logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if apiServer == nil {
			<-groupCtx.Done()
			return nil
		}
		if err := apiServer.Start(); err != nil {
			return err
		}
		<-groupCtx.Done()
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		if apiServer == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	logger.Info("daemon shutting down")
	return err
}
