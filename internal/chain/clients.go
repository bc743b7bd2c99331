package chain

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Clients holds one RPC client per named chain.
type Clients struct {
	byChain map[string]*Client
	logger  *zap.Logger
}

// Dial connects to every chain with a non-empty RPC URL.
func Dial(ctx context.Context, rpcs map[string]string, retry RetryConfig, logger *zap.Logger) (*Clients, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cs := &Clients{byChain: make(map[string]*Client), logger: logger}

	names := make([]string, 0, len(rpcs))
	for name := range rpcs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		url := rpcs[name]
		if url == "" {
			continue
		}
		client, err := NewClient(ctx, url, retry)
		if err != nil {
			cs.Close()
			return nil, fmt.Errorf("connect rpc %s: %w", name, err)
		}
		cs.byChain[name] = client
		logger.Debug("rpc connected", zap.String("chain", name))
	}
	return cs, nil
}

// Get returns the client for chain.
func (cs *Clients) Get(chain string) (*Client, bool) {
	if cs == nil {
		return nil, false
	}
	c, ok := cs.byChain[chain]
	return c, ok
}

// BlockTimestamp resolves a block timestamp on chain.
func (cs *Clients) BlockTimestamp(ctx context.Context, chain string, block uint64) (uint64, error) {
	c, ok := cs.Get(chain)
	if !ok {
		return 0, fmt.Errorf("no rpc configured for chain %q", chain)
	}
	return c.BlockTimestamp(ctx, block)
}

// Close closes every client.
func (cs *Clients) Close() {
	if cs == nil {
		return
	}
	for _, c := range cs.byChain {
		c.Close()
	}
}
