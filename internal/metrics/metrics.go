package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	// Feed metrics
	FeedTriplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_feed_triples_total",
			Help: "Feed runs per chain, protocol and period",
		},
		[]string{"chain", "protocol", "period", "status"},
	)

	FeedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "returns_feed_duration_seconds",
			Help:    "Duration of one merge and write of a (chain, protocol, period) triple",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "protocol"},
	)

	RecordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_records_written_total",
			Help: "Metric records upserted",
		},
		[]string{"chain", "period"},
	)

	ImpermanentDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "returns_impermanent_dropped_total",
			Help: "Impermanent divergence entries without a matching fee-yield entry",
		},
	)

	// Read metrics
	SummaryQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "returns_summary_queries_total",
			Help: "Summary queries by outcome",
		},
		[]string{"status"},
	)
)

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusOK
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
