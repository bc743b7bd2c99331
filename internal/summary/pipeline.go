// Package summary turns stored metric records into per-address, per-period averages.
package summary

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"hypervisorReturns/internal/metrics"
	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/storage"
	"hypervisorReturns/internal/telemetry"
)

// Resolver resolves one registry entry per address.
type Resolver interface {
	Resolve(ctx context.Context, chain string, addresses []string) (map[string]model.Hypervisor, error)
}

// Querier answers summary queries.
type Querier interface {
	Query(ctx context.Context, filter model.Filter) ([]model.AverageSummary, error)
}

// Pipeline reads records from a store and aggregates them in process.
// It never writes.
type Pipeline struct {
	store    storage.RecordStore
	resolver Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewPipeline(store storage.RecordStore, resolver Resolver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		resolver: resolver,
		logger:   logger,
		tracer:   telemetry.Tracer(),
	}
}

// Query returns one summary per address matching filter, sorted by address.
// No matching records gives an empty result.
func (p *Pipeline) Query(ctx context.Context, filter model.Filter) (out []model.AverageSummary, err error) {
	ctx, span := p.tracer.Start(ctx, "summary.Query", trace.WithAttributes(
		attribute.String("chain", filter.Chain),
		attribute.Int("period", filter.Period),
		attribute.String("protocol", filter.Protocol),
	))
	defer func() {
		metrics.SummaryQueriesTotal.WithLabelValues(metrics.Status(err)).Inc()
		telemetry.End(span, err)
	}()

	if err := filter.Validate(); err != nil {
		return nil, &storage.QueryError{Op: "summary", Err: err}
	}
	filter = filter.Normalized()

	records, err := p.store.QueryRecords(ctx, filter)
	if err != nil {
		return nil, wrapQuery("summary records", err)
	}
	if len(records) == 0 {
		return []model.AverageSummary{}, nil
	}

	meta := map[string]model.Hypervisor{}
	if p.resolver != nil {
		meta, err = p.resolver.Resolve(ctx, filter.Chain, distinctAddresses(records))
		if err != nil {
			return nil, wrapQuery("summary metadata", err)
		}
	}

	rows := Filter(Join(records, meta), filter)
	SortByBlock(rows)
	groups := GroupByAddress(GroupByAddressPeriod(rows))
	out = Attach(groups, meta, filter.Chain)

	p.logger.Debug("summary computed",
		zap.String("chain", filter.Chain),
		zap.Int("period", filter.Period),
		zap.String("protocol", filter.Protocol),
		zap.Int("records", len(records)),
		zap.Int("matched", len(rows)),
		zap.Int("addresses", len(out)),
	)
	return out, nil
}

// Records returns the stored records matching filter by ascending block,
// keeping the store's order among equal blocks. A protocol filter is
// resolved through the registry like in Query.
func (p *Pipeline) Records(ctx context.Context, filter model.Filter) ([]model.MetricRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, &storage.QueryError{Op: "records", Err: err}
	}
	filter = filter.Normalized()

	records, err := p.store.QueryRecords(ctx, filter)
	if err != nil {
		return nil, wrapQuery("records", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	meta := map[string]model.Hypervisor{}
	if filter.Protocol != "" && p.resolver != nil {
		meta, err = p.resolver.Resolve(ctx, filter.Chain, distinctAddresses(records))
		if err != nil {
			return nil, wrapQuery("records metadata", err)
		}
	}
	rows := Filter(Join(records, meta), filter)
	SortByBlock(rows)

	out := make([]model.MetricRecord, len(rows))
	for i, row := range rows {
		out[i] = row.Record
	}
	return out, nil
}

// QueryHypervisor is the single-address variant of Query.
func (p *Pipeline) QueryHypervisor(ctx context.Context, chain, address string, period int) (model.AverageSummary, bool, error) {
	out, err := p.Query(ctx, model.Filter{Chain: chain, Address: address, Period: period})
	if err != nil || len(out) == 0 {
		return model.AverageSummary{}, false, err
	}
	return out[0], true, nil
}

func distinctAddresses(records []model.MetricRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, rec := range records {
		if _, ok := seen[rec.Address]; ok {
			continue
		}
		seen[rec.Address] = struct{}{}
		out = append(out, rec.Address)
	}
	sort.Strings(out)
	return out
}

func wrapQuery(op string, err error) error {
	var qe *storage.QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &storage.QueryError{Op: op, Err: err}
}
