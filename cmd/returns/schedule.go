package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hypervisorReturns/internal/config"
	"hypervisorReturns/internal/metrics"
	"hypervisorReturns/internal/returns"
	"hypervisorReturns/internal/scheduler"
	"hypervisorReturns/internal/telemetry"
)

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	runNow, _ := cmd.Flags().GetBool("run-now")
	pairs := config.ChainProtocols(cfg)
	if len(pairs) == 0 {
		return errNoChains
	}

	ctx, stop := signalContext()
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OtelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	feeder, closeFeeder, err := buildFeeder(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer closeFeeder()

	feed := func(ctx context.Context, periods []int) error {
		return feeder.Feed(ctx, returns.Triples(pairs, periods)).Err()
	}

	sched := scheduler.New(cfg.TaskTimeout, logger.Named("scheduler"))
	for _, entry := range scheduler.FeedEntries(cfg.Schedules, feed) {
		if err := sched.Add(entry); err != nil {
			return err
		}
		if next, ok := sched.Next(entry.Name, time.Now()); ok {
			logger.Info("feed scheduled",
				zap.String("name", entry.Name),
				zap.String("spec", entry.Spec),
				zap.Time("next", next),
			)
		}
	}

	if runNow {
		for _, entry := range sched.Entries() {
			if err := sched.RunNow(ctx, entry.Name); err != nil {
				logger.Error("startup run failed", zap.String("name", entry.Name), zap.Error(err))
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		grace := cfg.TaskTimeout
		if grace <= 0 {
			grace = 30 * time.Second
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return sched.Stop(stopCtx)
	})

	logger.Info("scheduler running", zap.Int("pairs", len(pairs)), zap.String("metrics_addr", cfg.MetricsAddr))
	return g.Wait()
}
