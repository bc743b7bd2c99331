package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypervisorReturns/internal/cache"
	"hypervisorReturns/internal/chain"
	"hypervisorReturns/internal/config"
	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/notify"
	"hypervisorReturns/internal/returns"
	"hypervisorReturns/internal/storage"
	"hypervisorReturns/internal/storage/postgres"
	"hypervisorReturns/internal/telemetry"
	"hypervisorReturns/internal/upstream"
)

var errNoChains = errors.New("no chains configured")

func runFeed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chainName, _ := cmd.Flags().GetString("chain")
	protocol, _ := cmd.Flags().GetString("protocol")
	pairs, err := selectPairs(cfg, strings.TrimSpace(chainName), strings.TrimSpace(protocol))
	if err != nil {
		return err
	}
	periods := cfg.Periods
	if len(periods) == 0 {
		periods = returns.DefaultPeriods
	}
	triples := returns.Triples(pairs, periods)

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

	logger.Info("feed start",
		zap.Int("pairs", len(pairs)),
		zap.Ints("periods", periods),
		zap.Int("triples", len(triples)),
		zap.String("upstream", cfg.UpstreamURL),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	results := feeder.Feed(ctx, triples)
	for _, r := range results {
		if r.Err != nil {
			logger.Error("triple failed", zap.String("triple", r.Triple.String()), zap.Error(r.Err))
			continue
		}
		logger.Info("triple written",
			zap.String("triple", r.Triple.String()),
			zap.Int("records", r.Records),
			zap.Uint64("block", r.Block),
		)
	}
	return results.Err()
}

// selectPairs narrows the configured pairs to chain and protocol, when given.
func selectPairs(cfg config.Config, chainName, protocol string) ([]model.ChainProtocol, error) {
	all := config.ChainProtocols(cfg)
	if chainName == "" && protocol == "" {
		if len(all) == 0 {
			return nil, errNoChains
		}
		return all, nil
	}

	var out []model.ChainProtocol
	for _, p := range all {
		if chainName != "" && p.Chain != chainName {
			continue
		}
		if protocol != "" && p.Protocol != protocol {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		if chainName == "" {
			return nil, fmt.Errorf("protocol %q is not configured on any chain", protocol)
		}
		if protocol == "" {
			return nil, fmt.Errorf("chain %q has no configured protocols", chainName)
		}
		// An explicit pair is fed even when the chain table does not list it.
		out = append(out, model.ChainProtocol{Chain: chainName, Protocol: protocol})
	}
	return out, nil
}

// buildFeeder wires RPC clients, the calculator client, the writer, state and
// listeners into a Feeder. The returned func releases every connection.
func buildFeeder(ctx context.Context, cfg config.Config, store *postgres.Store, logger *zap.Logger) (*returns.Feeder, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	clients, err := chain.Dial(ctx, config.RPCs(cfg), chain.RetryConfig{
		MaxRetries: cfg.RPCRetries,
		BaseDelay:  cfg.RPCBackoff,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, clients.Close)

	calc, err := upstream.NewClient(upstream.Config{
		BaseURL:  cfg.UpstreamURL,
		Timeout:  cfg.UpstreamTimeout,
		RetryMax: cfg.UpstreamRetries,
		RPS:      cfg.UpstreamRPS,
		Breaker:  upstream.DefaultBreakerConfig(),
	}, logger.Named("upstream"))
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	writer := storage.NewWriter(storage.WriterConfig{
		ChunkSize:   cfg.WriteChunkSize,
		Concurrency: cfg.WriteConcurrency,
	}, store, logger.Named("writer"))

	var listeners []returns.Listener
	if cfg.NATSURL != "" {
		pub, err := notify.Connect(cfg.NATSURL, cfg.NATSSubjectPrefix, logger.Named("notify"))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close nats", zap.Error(err))
			}
		})
		listeners = append(listeners, pub)
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		listeners = append(listeners, cache.NewSummaryCache(rdb, nil, cfg.CacheTTL, logger.Named("cache")))
	}

	merger := returns.NewMerger(calc, calc, clients, logger.Named("merge"))
	feeder := returns.NewFeeder(merger, writer, logger,
		returns.WithState(stateStore(cfg, store)),
		returns.WithListeners(listeners...),
	)
	return feeder, closeAll, nil
}
