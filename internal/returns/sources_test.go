package returns

import (
	"context"

	"hypervisorReturns/internal/model"
)

type feeFunc func(ctx context.Context, chain, protocol string, days int) (model.FeeYieldSnapshot, error)

func (f feeFunc) FeeYield(ctx context.Context, chain, protocol string, days int) (model.FeeYieldSnapshot, error) {
	return f(ctx, chain, protocol, days)
}

type impFunc func(ctx context.Context, chain, protocol string, days int) (model.ImpermanentSnapshot, error)

func (f impFunc) Impermanent(ctx context.Context, chain, protocol string, days int) (model.ImpermanentSnapshot, error) {
	return f(ctx, chain, protocol, days)
}

type timerFunc func(ctx context.Context, chain string, block uint64) (uint64, error)

func (f timerFunc) BlockTimestamp(ctx context.Context, chain string, block uint64) (uint64, error) {
	return f(ctx, chain, block)
}

func staticFees(snap model.FeeYieldSnapshot) feeFunc {
	return func(context.Context, string, string, int) (model.FeeYieldSnapshot, error) {
		return snap, nil
	}
}

func staticImp(snap model.ImpermanentSnapshot) impFunc {
	return func(context.Context, string, string, int) (model.ImpermanentSnapshot, error) {
		return snap, nil
	}
}

func feeEntry(symbol string, apr float64) model.FeeYield {
	return model.FeeYield{Symbol: symbol, FeeApr: model.Float(apr), FeeApy: model.Float(apr * 1.1)}
}

func impEntry(usd float64) model.Impermanent {
	return model.Impermanent{
		VsHodlUSD:       model.Float(usd),
		VsHodlDeposited: model.Float(usd / 2),
		VsHodlToken0:    model.Float(usd / 3),
		VsHodlToken1:    model.Float(usd / 4),
	}
}
