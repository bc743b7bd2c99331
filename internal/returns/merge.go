package returns

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"hypervisorReturns/internal/metrics"
	"hypervisorReturns/internal/model"
)

var errMissingBlock = errors.New("snapshot has no reference block")

// Merged is the merge output of one triple.
type Merged struct {
	Block     uint64
	Timestamp uint64
	// Records are keyed by normalised address.
	Records map[string]model.MetricRecord
	// Dropped counts impermanent entries without a fee-yield entry.
	Dropped int
}

// Merger combines fee-yield and impermanent-divergence results into records.
type Merger struct {
	fees   FeeYieldSource
	imp    ImpermanentSource
	blocks BlockTimer
	logger *zap.Logger
}

func NewMerger(fees FeeYieldSource, imp ImpermanentSource, blocks BlockTimer, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{fees: fees, imp: imp, blocks: blocks, logger: logger}
}

// Merge builds one record per fee-yield position and attaches impermanent
// divergence to positions already present. Impermanent-only positions are
// dropped. Any calculator failure fails the whole merge.
func (m *Merger) Merge(ctx context.Context, chain, protocol string, days int) (Merged, error) {
	t := Triple{Chain: chain, Protocol: protocol, Period: days}
	if err := t.Validate(); err != nil {
		return Merged{}, err
	}
	upstreamErr := func(source string, err error) error {
		return &UpstreamError{Chain: chain, Protocol: protocol, Period: days, Source: source, Err: err}
	}

	feeSnap, err := m.fees.FeeYield(ctx, chain, protocol, days)
	if err != nil {
		return Merged{}, upstreamErr(SourceFeeYield, err)
	}
	impSnap, err := m.imp.Impermanent(ctx, chain, protocol, days)
	if err != nil {
		return Merged{}, upstreamErr(SourceImpermanent, err)
	}

	block := feeSnap.Block
	if block == 0 {
		return Merged{}, upstreamErr(SourceFeeYield, errMissingBlock)
	}
	ts := feeSnap.Timestamp
	if ts == 0 {
		if m.blocks == nil {
			return Merged{}, upstreamErr(SourceBlockTime, fmt.Errorf("no block timer for block %d", block))
		}
		ts, err = m.blocks.BlockTimestamp(ctx, chain, block)
		if err != nil {
			return Merged{}, upstreamErr(SourceBlockTime, err)
		}
	}

	out := Merged{
		Block:     block,
		Timestamp: ts,
		Records:   make(map[string]model.MetricRecord, len(feeSnap.Entries)),
	}
	origin := make(map[string]string, len(feeSnap.Entries))

	for _, raw := range sortedKeys(feeSnap.Entries) {
		entry := feeSnap.Entries[raw]
		rec, err := model.NewMetricRecord(chain, raw, entry.Symbol, block, ts, days)
		if err != nil {
			return Merged{}, upstreamErr(SourceFeeYield, fmt.Errorf("entry %q: %w", raw, err))
		}
		if prev, ok := origin[rec.Address]; ok {
			m.logger.Warn("identity collision",
				zap.String("id", rec.ID),
				zap.String("previous", prev),
				zap.String("address", raw),
			)
		}
		origin[rec.Address] = raw
		rec.Fees = &model.Fees{
			FeeApr:     entry.FeeApr,
			FeeApy:     entry.FeeApy,
			HasOutlier: entry.HasOutlier,
		}
		out.Records[rec.Address] = rec
	}

	attached := make(map[string]string, len(impSnap.Entries))
	for _, raw := range sortedKeys(impSnap.Entries) {
		addr := model.NormalizeAddress(raw)
		rec, ok := out.Records[addr]
		if !ok {
			out.Dropped++
			continue
		}
		if prev, ok := attached[addr]; ok {
			m.logger.Warn("identity collision",
				zap.String("id", rec.ID),
				zap.String("previous", prev),
				zap.String("address", raw),
			)
		}
		attached[addr] = raw
		imp := impSnap.Entries[raw]
		rec.Impermanent = &imp
		out.Records[addr] = rec
	}

	if out.Dropped > 0 {
		metrics.ImpermanentDroppedTotal.Add(float64(out.Dropped))
		m.logger.Debug("impermanent entries without fee yield dropped",
			zap.String("chain", chain),
			zap.String("protocol", protocol),
			zap.Int("period", days),
			zap.Int("dropped", out.Dropped),
		)
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
