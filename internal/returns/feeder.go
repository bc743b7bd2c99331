package returns

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"hypervisorReturns/internal/metrics"
	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/storage"
	"hypervisorReturns/internal/telemetry"
)

// Feeder runs merge then write for (chain, protocol, period) triples.
type Feeder struct {
	merger    *Merger
	writer    RecordWriter
	state     storage.StateStore
	listeners []Listener
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Feeder.
type Option func(*Feeder)

// WithState records the last fed block of every successful triple.
func WithState(state storage.StateStore) Option {
	return func(f *Feeder) { f.state = state }
}

// WithListeners registers listeners told about every persisted triple.
func WithListeners(listeners ...Listener) Option {
	return func(f *Feeder) { f.listeners = append(f.listeners, listeners...) }
}

func NewFeeder(merger *Merger, writer RecordWriter, logger *zap.Logger, opts ...Option) *Feeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Feeder{
		merger: merger,
		writer: writer,
		logger: logger,
		tracer: telemetry.Tracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WritePeriod merges and persists one triple.
func (f *Feeder) WritePeriod(ctx context.Context, chain, protocol string, days int) error {
	res := f.run(ctx, uuid.NewString(), Triple{Chain: chain, Protocol: protocol, Period: days})
	return res.Err
}

// WriteAll feeds every period of one (chain, protocol) pair concurrently.
func (f *Feeder) WriteAll(ctx context.Context, chain, protocol string, periods []int) Results {
	ctx, span := f.tracer.Start(ctx, "returns.WriteAll", trace.WithAttributes(
		attribute.String("chain", chain),
		attribute.String("protocol", protocol),
		attribute.Int("periods", len(periods)),
	))
	results := f.Feed(ctx, Triples([]model.ChainProtocol{{Chain: chain, Protocol: protocol}}, periods))
	telemetry.End(span, results.Err())
	return results
}

// Feed runs every triple concurrently and waits for all of them. A failed
// triple neither cancels nor rolls back the others; every outcome is returned.
func (f *Feeder) Feed(ctx context.Context, triples []Triple) Results {
	runID := uuid.NewString()
	results := make(Results, len(triples))

	var wg sync.WaitGroup
	for i, t := range triples {
		wg.Add(1)
		go func(i int, t Triple) {
			defer wg.Done()
			results[i] = f.run(ctx, runID, t)
		}(i, t)
	}
	wg.Wait()

	failed := results.Failed()
	f.logger.Info("feed complete",
		zap.String("run_id", runID),
		zap.Int("triples", len(results)),
		zap.Int("failed", len(failed)),
	)
	return results
}

func (f *Feeder) run(ctx context.Context, runID string, t Triple) (res TripleResult) {
	res.Triple = t
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "returns.WritePeriod", trace.WithAttributes(telemetry.Triple(t.Chain, t.Protocol, t.Period)...))
	log := f.logger.With(
		zap.String("run_id", runID),
		zap.String("chain", t.Chain),
		zap.String("protocol", t.Protocol),
		zap.Int("period", t.Period),
	)

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("feed %s panicked: %v", t, r)
		}
		metrics.FeedTriplesTotal.WithLabelValues(t.Chain, t.Protocol, strconv.Itoa(t.Period), metrics.Status(res.Err)).Inc()
		metrics.FeedDuration.WithLabelValues(t.Chain, t.Protocol).Observe(time.Since(start).Seconds())
		if res.Err != nil {
			log.Error("feed failed", zap.Error(res.Err))
		}
		telemetry.End(span, res.Err)
	}()

	merged, err := f.merger.Merge(ctx, t.Chain, t.Protocol, t.Period)
	if err != nil {
		res.Err = err
		return res
	}
	res.Block = merged.Block

	n, err := f.writer.Write(ctx, merged.Records)
	if err != nil {
		res.Err = fmt.Errorf("write records: %w", err)
		return res
	}
	res.Records = n
	metrics.RecordsWrittenTotal.WithLabelValues(t.Chain, strconv.Itoa(t.Period)).Add(float64(n))

	if f.state != nil {
		if err := f.state.SaveState(ctx, storage.FeedStateName(t.Chain, t.Protocol, t.Period), merged.Block); err != nil {
			log.Warn("save feed state", zap.Error(err))
		}
	}

	ev := model.WrittenEvent{
		RunID:     runID,
		Chain:     t.Chain,
		Protocol:  t.Protocol,
		Period:    t.Period,
		Block:     merged.Block,
		Records:   n,
		WrittenAt: f.now().UTC(),
	}
	for _, l := range f.listeners {
		if err := l.Written(ctx, ev); err != nil {
			log.Warn("feed listener", zap.Error(err))
		}
	}

	log.Info("feed written",
		zap.Uint64("block", merged.Block),
		zap.Int("records", n),
		zap.Int("dropped", merged.Dropped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}
