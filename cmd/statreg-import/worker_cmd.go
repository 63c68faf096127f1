package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/statreg/modules/dataupload/infrastructure/notify"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/searchindex"
	"github.com/iota-uz/statreg/pkg/logging"
	"github.com/iota-uz/statreg/pkg/metrics"
	"github.com/iota-uz/statreg/pkg/outbox"
)

func newWorkerCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the import queue worker until interrupted",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			defer cfg.Unload()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.OpenTelemetry.Enabled {
				shutdown := logging.SetupTracing(ctx, cfg.OpenTelemetry.ServiceName, cfg.OpenTelemetry.TempoURL)
				defer shutdown()
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return runWorker(a.context(ctx), a)
		},
	}
}

func runWorker(ctx context.Context, a *app) error {
	cfg := a.cfg
	table, err := outbox.ParseTable(cfg.Outbox.Table)
	if err != nil {
		return withCode(exitValidation, err)
	}

	relay, err := outbox.NewRelay(a.pool, table, searchindex.NewDispatcher(a.index), outbox.RelayOptions{
		PollInterval:    cfg.Outbox.RelayPollInterval,
		BatchSize:       cfg.Outbox.RelayBatchSize,
		LockTTL:         cfg.Outbox.RelayLockTTL,
		MaxAttempts:     cfg.Outbox.RelayMaxAttempts,
		SingleActive:    cfg.Outbox.RelaySingleActive,
		LastErrorMaxLen: cfg.Outbox.LastErrorMaxBytes,
		DispatchTimeout: cfg.Outbox.RelayDispatchTimeout,
		Logger:          a.logger,
	})
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("outbox relay: %w", err))
	}
	cleaner, err := outbox.NewCleaner(a.pool, table, outbox.CleanerOptions{
		Enabled:       cfg.Outbox.CleanerEnabled,
		Interval:      cfg.Outbox.CleanerInterval,
		Retention:     cfg.Outbox.CleanerRetention,
		DeadRetention: cfg.Outbox.CleanerDeadRetention,
		MaxAttempts:   cfg.Outbox.RelayMaxAttempts,
		Logger:        a.logger,
	})
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("outbox cleaner: %w", err))
	}

	controllers := []metrics.Controller{
		metrics.NewHealthController(map[string]metrics.Check{
			"postgres":     a.pool.Ping,
			"search_index": a.index.Ping,
		}),
	}
	if cfg.Prometheus.Enabled {
		controllers = append(controllers, metrics.NewMetricsController(cfg.Prometheus.Path, prometheus.DefaultGatherer, a.logger))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.worker.Run(ctx) })
	g.Go(func() error { return a.worker.RunReclaimer(ctx) })
	if cfg.Outbox.RelayEnabled {
		g.Go(func() error { return relay.Run(ctx) })
	}
	if cfg.Outbox.CleanerEnabled {
		g.Go(func() error { return cleaner.Run(ctx) })
	}
	if cfg.AMQP.URL != "" {
		listener := notify.NewAMQPListener(cfg.AMQP.URL, cfg.AMQP.Queue, notify.Options{Logger: a.logger})
		g.Go(func() error { return listener.Run(ctx, a.worker.Wake) })
	}
	g.Go(func() error { return reloadPolicyOnHangup(ctx, a) })
	g.Go(func() error {
		return metrics.Serve(ctx, cfg.Prometheus.OpsAddr, metrics.NewRouter(controllers...), a.logger)
	})

	a.logger.Info("import worker started")
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		a.logger.Info("import worker stopped")
		return nil
	}
	return err
}

// reloadPolicyOnHangup re-reads the authz policy file on SIGHUP.
func reloadPolicyOnHangup(ctx context.Context, a *app) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hup:
			if err := a.perms.ReloadPolicy(ctx); err != nil {
				a.logger.WithError(err).Warn("failed to reload authz policy")
			}
		}
	}
}
