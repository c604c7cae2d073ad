package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/forge3d/assetsync/internal/model"
)

const defaultMetricsListen = ":9464"

func launchConfig(cfg model.Config) LaunchConfig {
	return LaunchConfig{
		Binary:        cfg.Worker.Binary,
		Script:        cfg.Worker.Script,
		Catalog:       cfg.Catalog.File,
		Categories:    cfg.Catalog.Categories,
		ShutdownGrace: model.Duration(cfg.Worker.ShutdownGrace, defaultShutdownGrace),
	}
}

func senderConfig(w model.Worker) SenderConfig {
	return SenderConfig{
		PollInterval: model.Duration(w.PollInterval, defaultPollInterval),
		IdleBudget:   model.Duration(w.IdleTimeout, defaultIdleBudget),
		MaxRetries:   w.MaxRetries,
	}
}

// ClientFromConfig builds the production client with logging collaborators;
// extra options may override them.
func ClientFromConfig(cfg model.Config, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithReporter(LogReporter{}),
		WithNotifier(LogNotifier{}),
		WithSenderTiming(senderConfig(cfg.Worker)),
		WithHandshakeTimeout(model.Duration(cfg.Worker.HandshakeTimeout, defaultHandshakeTimeout)),
	}
	return NewClient(NewSupervisorFactory(launchConfig(cfg)), append(base, opts...)...)
}

// enqueueCatalog reads the catalog file and queues one job per asset.
func enqueueCatalog(ctx context.Context, client *Client, cfg model.Config) (int, error) {
	f, err := os.Open(cfg.Catalog.File)
	if err != nil {
		return 0, fmt.Errorf("opening catalog: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	catalog, err := model.LoadCatalog(f)
	if err != nil {
		return 0, err
	}
	if len(catalog.Assets) == 0 {
		return 0, nil
	}

	if err := client.EnsureReady(ctx); err != nil {
		return 0, err
	}
	for _, job := range catalog.Assets {
		if err := client.QueueAsset(job); err != nil {
			return 0, fmt.Errorf("queueing %s: %w", job.Name, err)
		}
	}
	return len(catalog.Assets), nil
}

// SyncOnce runs one batch over the whole catalog, waits for the batch to
// drain and returns its final counters. Implements the CLI sync command.
func SyncOnce(ctx context.Context, cfg model.Config) (Counters, error) {
	done := make(chan Counters, 1)
	client := ClientFromConfig(cfg, WithCompletion(func(c Counters) {
		select {
		case done <- c:
		default:
		}
	}))
	defer func() {
		_ = client.Close(context.WithoutCancel(ctx))
	}()

	queued, err := enqueueCatalog(ctx, client, cfg)
	if err != nil {
		return Counters{}, err
	}
	if queued == 0 {
		slog.InfoContext(ctx, "catalog is empty, nothing to sync")
		return Counters{}, nil
	}

	select {
	case c := <-done:
		return c, nil
	case <-ctx.Done():
		client.CancelBatch()
		return client.Counters(), ctx.Err()
	}
}

// RunTimer runs scheduled batches until ctx is cancelled. Implements the
// CLI run command in timer mode.
func RunTimer(ctx context.Context, cfg model.Config) error {
	if cfg.Service.Mode != model.ServiceModeTimer {
		return fmt.Errorf("timer service requires mode %q, got %q", model.ServiceModeTimer, cfg.Service.Mode)
	}

	opts := []ClientOption{
		WithCompletion(func(c Counters) {
			slog.InfoContext(ctx, "batch complete",
				"queued", c.Queued, "succeeded", c.Succeeded, "failed", c.Failed)
		}),
	}

	var metricsSrv *http.Server
	if cfg.Service.MetricsEnabled() {
		collector := NewPrometheusCollector("")
		opts = append(opts, WithCollector(collector))

		listen := cfg.Service.Metrics.Listen
		if listen == "" {
			listen = defaultMetricsListen
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: listen, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "metrics endpoint failed", "error", err)
			}
		}()
	}

	client := ClientFromConfig(cfg, opts...)

	scheduler, err := NewScheduler(cfg.Service.Schedule, func() {
		if _, err := enqueueCatalog(ctx, client, cfg); err != nil {
			slog.ErrorContext(ctx, "scheduled batch failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		slog.ErrorContext(ctx, "shutting down scheduler failed", "error", err)
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return client.Close(context.WithoutCancel(ctx))
}
