package returns

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"hypervisorReturns/internal/model"
)

func TestMergePartialCompleteness(t *testing.T) {
	fees := staticFees(model.FeeYieldSnapshot{
		Block:     18000000,
		Timestamp: 1700000000,
		Entries: map[string]model.FeeYield{
			"0xA": feeEntry("WETH-USDC", 0.1),
			"0xB": feeEntry("WBTC-WETH", 0.2),
		},
	})
	imp := staticImp(model.ImpermanentSnapshot{Entries: map[string]model.Impermanent{
		"0xB": impEntry(-1),
		"0xC": impEntry(-2),
	}})

	m := NewMerger(fees, imp, nil, zaptest.NewLogger(t))
	merged, err := m.Merge(context.Background(), "ethereum", "uniswapv3", 7)
	require.NoError(t, err)

	require.Len(t, merged.Records, 2)
	assert.Equal(t, 1, merged.Dropped)
	assert.NotContains(t, merged.Records, "0xc")

	a := merged.Records["0xa"]
	require.NotNil(t, a.Fees)
	assert.Nil(t, a.Impermanent)
	assert.Equal(t, "ethereum_0xa_18000000_7", a.ID)
	assert.Equal(t, "WETH-USDC", a.Symbol)
	assert.Equal(t, uint64(1700000000), a.Timestamp)
	assert.Equal(t, 7, a.Period)

	b := merged.Records["0xb"]
	require.NotNil(t, b.Fees)
	require.NotNil(t, b.Impermanent)
	assert.InDelta(t, -1, *b.Impermanent.VsHodlUSD, 1e-12)
	assert.InDelta(t, 0.2, *b.Fees.FeeApr, 1e-12)
}

func TestMergeResolvesTimestampFromBlock(t *testing.T) {
	fees := staticFees(model.FeeYieldSnapshot{Block: 42, Entries: map[string]model.FeeYield{"0xa": feeEntry("A-B", 0.1)}})
	imp := staticImp(model.ImpermanentSnapshot{})
	var asked uint64
	timer := timerFunc(func(_ context.Context, chain string, block uint64) (uint64, error) {
		assert.Equal(t, "polygon", chain)
		asked = block
		return 999, nil
	})

	merged, err := NewMerger(fees, imp, timer, nil).Merge(context.Background(), "polygon", "quickswap", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), asked)
	assert.Equal(t, uint64(999), merged.Timestamp)
	assert.Equal(t, uint64(999), merged.Records["0xa"].Timestamp)
}

func TestMergeUpstreamFailures(t *testing.T) {
	boom := errors.New("calculator unavailable")
	okFees := staticFees(model.FeeYieldSnapshot{Block: 1, Timestamp: 1, Entries: map[string]model.FeeYield{"0xa": feeEntry("A-B", 0.1)}})
	okImp := staticImp(model.ImpermanentSnapshot{})
	failFees := feeFunc(func(context.Context, string, string, int) (model.FeeYieldSnapshot, error) {
		return model.FeeYieldSnapshot{}, boom
	})
	failImp := impFunc(func(context.Context, string, string, int) (model.ImpermanentSnapshot, error) {
		return model.ImpermanentSnapshot{}, boom
	})
	failTimer := timerFunc(func(context.Context, string, uint64) (uint64, error) { return 0, boom })

	cases := []struct {
		name   string
		merger *Merger
		source string
	}{
		{"fee yield", NewMerger(failFees, okImp, nil, nil), SourceFeeYield},
		{"impermanent", NewMerger(okFees, failImp, nil, nil), SourceImpermanent},
		{"block time", NewMerger(staticFees(model.FeeYieldSnapshot{Block: 5, Entries: map[string]model.FeeYield{}}), okImp, failTimer, nil), SourceBlockTime},
	}
	for _, tc := range cases {
		merged, err := tc.merger.Merge(context.Background(), "ethereum", "uniswapv3", 1)
		var ue *UpstreamError
		require.ErrorAs(t, err, &ue, tc.name)
		assert.Equal(t, tc.source, ue.Source, tc.name)
		assert.Equal(t, "ethereum", ue.Chain)
		assert.ErrorIs(t, err, boom, tc.name)
		assert.Nil(t, merged.Records, tc.name)
	}
}

func TestMergeMalformedSnapshot(t *testing.T) {
	noBlock := staticFees(model.FeeYieldSnapshot{Entries: map[string]model.FeeYield{"0xa": feeEntry("A-B", 0.1)}})
	_, err := NewMerger(noBlock, staticImp(model.ImpermanentSnapshot{}), nil, nil).Merge(context.Background(), "ethereum", "uniswapv3", 1)
	assert.ErrorIs(t, err, errMissingBlock)

	badAddress := staticFees(model.FeeYieldSnapshot{Block: 1, Timestamp: 1, Entries: map[string]model.FeeYield{"0x_a": feeEntry("A-B", 0.1)}})
	_, err = NewMerger(badAddress, staticImp(model.ImpermanentSnapshot{}), nil, nil).Merge(context.Background(), "ethereum", "uniswapv3", 1)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
}

func TestMergeRejectsInvalidTriple(t *testing.T) {
	m := NewMerger(staticFees(model.FeeYieldSnapshot{}), staticImp(model.ImpermanentSnapshot{}), nil, nil)

	_, err := m.Merge(context.Background(), "ethereum", "uniswapv3", 0)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = m.Merge(context.Background(), "", "uniswapv3", 1)
	assert.ErrorIs(t, err, ErrEmptyChain)
}

func TestMergeIdentityCollisionWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	fees := staticFees(model.FeeYieldSnapshot{
		Block:     7,
		Timestamp: 70,
		Entries: map[string]model.FeeYield{
			"0xAB": feeEntry("UPPER", 0.1),
			"0xab": feeEntry("lower", 0.2),
		},
	})

	merged, err := NewMerger(fees, staticImp(model.ImpermanentSnapshot{}), nil, zap.New(core)).Merge(context.Background(), "ethereum", "uniswapv3", 1)
	require.NoError(t, err)
	require.Len(t, merged.Records, 1)
	assert.Equal(t, "lower", merged.Records["0xab"].Symbol)

	warnings := logs.FilterMessage("identity collision").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "ethereum_0xab_7_1", warnings[0].ContextMap()["id"])
}
