package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hypervisorReturns/internal/config"
	"hypervisorReturns/internal/storage"
	"hypervisorReturns/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "returns",
		Short:        "Hypervisor returns feeder and summary queries",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")

	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Fetch calculator results and persist merged records",
		RunE:  runFeed,
	}
	addFeedFlags(feedCmd)
	feedCmd.Flags().String("chain", "", "only feed this chain (default: every configured chain)")
	feedCmd.Flags().String("protocol", "", "only feed this protocol")
	root.AddCommand(feedCmd)

	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Print stored records as JSON lines",
		RunE:  runRecords,
	}
	addFilterFlags(recordsCmd)
	recordsCmd.Flags().String("out", "", "append to this JSONL file instead of stdout")
	root.AddCommand(recordsCmd)

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print per-address average returns",
		RunE:  runSummary,
	}
	addFilterFlags(summaryCmd)
	summaryCmd.Flags().String("redis-addr", "", "Redis address for the summary cache")
	summaryCmd.Flags().Duration("cache-ttl", 5*time.Minute, "summary cache TTL")
	root.AddCommand(summaryCmd)

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily, weekly and monthly feeds until interrupted",
		RunE:  runSchedule,
	}
	addFeedFlags(scheduleCmd)
	scheduleCmd.Flags().String("metrics-addr", ":9100", "Prometheus listen address")
	scheduleCmd.Flags().Duration("task-timeout", 30*time.Minute, "timeout of one scheduled run")
	scheduleCmd.Flags().Bool("run-now", false, "run every entry once at startup")
	root.AddCommand(scheduleCmd)

	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage static hypervisor metadata",
	}
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Read hypervisor metadata on chain and store it",
		RunE:  runRegistrySync,
	}
	syncCmd.Flags().String("chain", "", "chain name")
	syncCmd.Flags().String("protocol", "", "protocol name")
	syncCmd.Flags().StringSlice("address", nil, "hypervisor addresses (comma-separated)")
	syncCmd.Flags().Int("rpc-retries", 5, "maximum RPC retry attempts")
	syncCmd.Flags().Duration("rpc-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	registryCmd.AddCommand(syncCmd)
	root.AddCommand(registryCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last fed block of every configured triple",
		RunE:  runStatus,
	}
	statusCmd.Flags().String("state-file", "", "local feed state file (default: Postgres)")
	statusCmd.Flags().Int("rpc-retries", 1, "maximum RPC retry attempts")
	root.AddCommand(statusCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE:  runMigrate,
	}
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFeedFlags(cmd *cobra.Command) {
	cmd.Flags().String("periods", "", "periods in days (comma-separated, default 1,7,30)")
	cmd.Flags().String("upstream-url", "", "calculator base URL")
	cmd.Flags().Duration("upstream-timeout", 30*time.Second, "calculator request timeout")
	cmd.Flags().Float64("upstream-rps", 5, "calculator requests per second (0 disables the limit)")
	cmd.Flags().Int("upstream-retries", 3, "calculator retry attempts")
	cmd.Flags().Int("rpc-retries", 5, "maximum RPC retry attempts")
	cmd.Flags().Duration("rpc-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	cmd.Flags().String("state-file", "", "local feed state file (default: Postgres)")
	cmd.Flags().String("redis-addr", "", "Redis address; cached summaries are invalidated after writes")
	cmd.Flags().String("nats-url", "", "NATS URL for written notifications")
	cmd.Flags().String("nats-subject-prefix", "returns.written", "NATS subject prefix")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP trace endpoint (host:port)")
	cmd.Flags().Int("write-concurrency", 4, "concurrent write chunks")
	cmd.Flags().Int("write-chunk-size", 500, "records per write chunk")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("chain", "", "chain name (required)")
	cmd.Flags().Int("period", 0, "period in days (0 means any)")
	cmd.Flags().String("address", "", "hypervisor address")
	cmd.Flags().String("protocol", "", "protocol name")
}

// setup loads the config and builds the logger shared by every subcommand.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*postgres.Store, error) {
	if cfg.PGDSN == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	logger.Debug("postgres connected", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	return store, nil
}

// stateStore prefers the local state file when one is configured.
func stateStore(cfg config.Config, store *postgres.Store) storage.StateStore {
	if cfg.StateFile != "" {
		return &storage.FileStateStore{Path: cfg.StateFile}
	}
	return store
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema applied", zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
