package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hypervisorReturns/internal/model"
)

type countingQuerier struct {
	calls atomic.Int32
}

func (q *countingQuerier) Query(_ context.Context, f model.Filter) ([]model.AverageSummary, error) {
	q.calls.Add(1)
	return []model.AverageSummary{{
		Address:    "0xa",
		Hypervisor: model.HypervisorInfo{Address: "0xa", Chain: f.Chain},
		Returns:    map[string]model.Window{"1": {Period: 1, AvFeeApr: model.Float(0.5)}},
	}}, nil
}

func setup(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestKey(t *testing.T) {
	assert.Equal(t, "summary:ethereum:7:uniswapv3:0xab", Key(model.Filter{Chain: "ethereum", Period: 7, Protocol: "uniswapv3", Address: "0xAB"}))
	assert.Equal(t, "summary:polygon:0::", Key(model.Filter{Chain: "polygon"}))
}

func TestSummaryCacheReadThrough(t *testing.T) {
	mr, rdb := setup(t)
	next := &countingQuerier{}
	c := NewSummaryCache(rdb, next, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()
	filter := model.Filter{Chain: "ethereum"}

	first, err := c.Query(ctx, filter)
	require.NoError(t, err)
	second, err := c.Query(ctx, filter)
	require.NoError(t, err)

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(Key(filter)))

	mr.FastForward(2 * time.Minute)
	_, err = c.Query(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestSummaryCacheInvalidatesChain(t *testing.T) {
	mr, rdb := setup(t)
	next := &countingQuerier{}
	c := NewSummaryCache(rdb, next, time.Minute, nil)
	ctx := context.Background()

	_, err := c.Query(ctx, model.Filter{Chain: "ethereum", Period: 1})
	require.NoError(t, err)
	_, err = c.Query(ctx, model.Filter{Chain: "polygon", Period: 1})
	require.NoError(t, err)

	require.NoError(t, c.Written(ctx, model.WrittenEvent{Chain: "ethereum", Period: 1}))

	assert.False(t, mr.Exists(Key(model.Filter{Chain: "ethereum", Period: 1})))
	assert.True(t, mr.Exists(Key(model.Filter{Chain: "polygon", Period: 1})))
}

func TestSummaryCacheFallsThroughWhenRedisDown(t *testing.T) {
	mr, rdb := setup(t)
	next := &countingQuerier{}
	c := NewSummaryCache(rdb, next, time.Minute, nil)
	mr.Close()

	out, err := c.Query(context.Background(), model.Filter{Chain: "ethereum"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestSummaryCacheRejectsGlobChains(t *testing.T) {
	mr, rdb := setup(t)
	next := &countingQuerier{}
	c := NewSummaryCache(rdb, next, time.Minute, nil)
	ctx := context.Background()

	_, err := c.Query(ctx, model.Filter{Chain: "ethereum", Period: 1})
	require.NoError(t, err)
	_, err = c.Query(ctx, model.Filter{Chain: "eth*", Period: 1})
	require.NoError(t, err)
	assert.False(t, mr.Exists(Key(model.Filter{Chain: "eth*", Period: 1})))

	for _, chain := range []string{"eth*", "e?hereum", "[e]thereum", `eth\`} {
		err := c.Written(ctx, model.WrittenEvent{Chain: chain, Period: 1})
		require.ErrorIs(t, err, ErrUnsafeChain, chain)
	}
	assert.True(t, mr.Exists(Key(model.Filter{Chain: "ethereum", Period: 1})))

	_, err = c.Query(ctx, model.Filter{Chain: "eth*", Period: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(3), next.calls.Load())
}
