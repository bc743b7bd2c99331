package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypervisorReturns/internal/cache"
	"hypervisorReturns/internal/config"
	"hypervisorReturns/internal/registry"
	"hypervisorReturns/internal/storage"
	"hypervisorReturns/internal/summary"
)

func runRecords(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	filter, err := config.FilterFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline := summary.NewPipeline(store, registry.New(store, logger), logger)
	records, err := pipeline.Records(ctx, filter)
	if err != nil {
		return err
	}

	sink := storage.NewJsonlWriter(os.Stdout)
	if outPath != "" {
		sink = storage.NewJsonlSink(outPath)
	}
	if err := sink.PutRecords(records); err != nil {
		return err
	}

	logger.Debug("records queried",
		zap.String("chain", filter.Chain),
		zap.Int("period", filter.Period),
		zap.Int("records", len(records)),
		zap.String("out", outPath),
	)
	return nil
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	filter, err := config.FilterFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var querier summary.Querier = summary.NewPipeline(store, registry.New(store, logger), logger)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		querier = cache.NewSummaryCache(rdb, querier, cfg.CacheTTL, logger.Named("cache"))
	}

	summaries, err := querier.Query(ctx, filter)
	if err != nil {
		return err
	}
	return storage.NewJsonlWriter(os.Stdout).PutSummaries(summaries)
}
