package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeEth struct {
	failures int
	calls    int
	times    map[uint64]uint64
}

func (f *fakeEth) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rate limited")
	}
	ts, ok := f.times[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return &types.Header{Number: number, Time: ts}, nil
}

func (f *fakeEth) BlockNumber(context.Context) (uint64, error) {
	return 42, nil
}

func (f *fakeEth) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func TestBlockTimestampCachesAndRetries(t *testing.T) {
	eth := &fakeEth{failures: 2, times: map[uint64]uint64{100: 1700000000}}
	c := newClient(eth, RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond})

	ts, err := c.BlockTimestamp(context.Background(), 100)
	if err != nil {
		t.Fatalf("block timestamp: %v", err)
	}
	if ts != 1700000000 {
		t.Fatalf("unexpected timestamp %d", ts)
	}
	if eth.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", eth.calls)
	}

	if _, err := c.BlockTimestamp(context.Background(), 100); err != nil {
		t.Fatalf("cached lookup: %v", err)
	}
	if eth.calls != 3 {
		t.Fatalf("expected cached lookup, got %d calls", eth.calls)
	}
}

func TestBlockTimestampGivesUp(t *testing.T) {
	eth := &fakeEth{times: map[uint64]uint64{}}
	c := newClient(eth, RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond})

	_, err := c.BlockTimestamp(context.Background(), 7)
	if !errors.Is(err, ethereum.NotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if eth.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", eth.calls)
	}
}

func TestClientsUnknownChain(t *testing.T) {
	cs := &Clients{byChain: map[string]*Client{}}
	if _, err := cs.BlockTimestamp(context.Background(), "ethereum", 1); err == nil {
		t.Fatalf("expected error for unknown chain")
	}

	cs.byChain["ethereum"] = newClient(&fakeEth{times: map[uint64]uint64{1: 12}}, RetryConfig{})
	ts, err := cs.BlockTimestamp(context.Background(), "ethereum", 1)
	if err != nil || ts != 12 {
		t.Fatalf("unexpected result ts=%d err=%v", ts, err)
	}
}

func TestLatestBlockNumber(t *testing.T) {
	c := newClient(&fakeEth{}, RetryConfig{})
	head, err := c.LatestBlockNumber(context.Background())
	if err != nil {
		t.Fatalf("latest block: %v", err)
	}
	if head != 42 {
		t.Fatalf("unexpected head %d", head)
	}
}
