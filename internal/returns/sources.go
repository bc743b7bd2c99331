package returns

import (
	"context"

	"hypervisorReturns/internal/model"
)

// FeeYieldSource computes fee yield per position for a window.
type FeeYieldSource interface {
	FeeYield(ctx context.Context, chain, protocol string, days int) (model.FeeYieldSnapshot, error)
}

// ImpermanentSource computes impermanent divergence per position for a window.
type ImpermanentSource interface {
	Impermanent(ctx context.Context, chain, protocol string, days int) (model.ImpermanentSnapshot, error)
}

// BlockTimer resolves a block's timestamp.
type BlockTimer interface {
	BlockTimestamp(ctx context.Context, chain string, block uint64) (uint64, error)
}

// Listener is told about every persisted triple.
type Listener interface {
	Written(ctx context.Context, ev model.WrittenEvent) error
}

// RecordWriter persists a merged record map.
type RecordWriter interface {
	Write(ctx context.Context, records map[string]model.MetricRecord) (int, error)
}
