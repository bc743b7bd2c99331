package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypervisorReturns/internal/chain"
	"hypervisorReturns/internal/config"
	"hypervisorReturns/internal/returns"
	"hypervisorReturns/internal/storage"
)

type feedStatus struct {
	Triple    string `json:"triple"`
	LastBlock uint64 `json:"last_block,omitempty"`
	Fed       bool   `json:"fed"`
	Head      uint64 `json:"head,omitempty"`
	Lag       uint64 `json:"lag,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	periods := cfg.Periods
	if len(periods) == 0 {
		periods = returns.DefaultPeriods
	}
	triples := returns.Triples(config.ChainProtocols(cfg), periods)

	ctx, stop := signalContext()
	defer stop()

	var state storage.StateStore
	if cfg.StateFile != "" {
		state = &storage.FileStateStore{Path: cfg.StateFile}
	} else {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		state = store
	}

	clients, err := chain.Dial(ctx, config.RPCs(cfg), chain.RetryConfig{
		MaxRetries: cfg.RPCRetries,
		BaseDelay:  cfg.RPCBackoff,
	}, logger)
	if err != nil {
		return err
	}
	defer clients.Close()

	heads := make(map[string]uint64)
	for _, t := range triples {
		if _, ok := heads[t.Chain]; ok {
			continue
		}
		heads[t.Chain] = 0
		client, ok := clients.Get(t.Chain)
		if !ok {
			continue
		}
		head, err := client.LatestBlockNumber(ctx)
		if err != nil {
			logger.Warn("latest block", zap.String("chain", t.Chain), zap.Error(err))
			continue
		}
		heads[t.Chain] = head
	}

	enc := json.NewEncoder(os.Stdout)
	for _, t := range triples {
		block, ok, err := state.LoadState(ctx, storage.FeedStateName(t.Chain, t.Protocol, t.Period))
		if err != nil {
			return err
		}
		st := feedStatus{Triple: t.String(), LastBlock: block, Fed: ok, Head: heads[t.Chain]}
		if ok && st.Head > block {
			st.Lag = st.Head - block
		}
		if err := enc.Encode(st); err != nil {
			return err
		}
	}
	return nil
}
