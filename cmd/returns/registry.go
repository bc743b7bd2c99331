package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypervisorReturns/internal/chain"
	"hypervisorReturns/internal/config"
	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/registry"
)

func runRegistrySync(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	chainName, _ := cmd.Flags().GetString("chain")
	protocol, _ := cmd.Flags().GetString("protocol")
	addresses, _ := cmd.Flags().GetStringSlice("address")
	chainName = strings.TrimSpace(chainName)
	protocol = strings.TrimSpace(protocol)
	if chainName == "" {
		return model.ErrEmptyChain
	}
	if protocol == "" {
		return fmt.Errorf("protocol is required")
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	rpc := config.RPCs(cfg)[chainName]
	if rpc == "" {
		return fmt.Errorf("no rpc configured for chain %q", chainName)
	}

	ctx, stop := signalContext()
	defer stop()

	client, err := chain.NewClient(ctx, rpc, chain.RetryConfig{
		MaxRetries: cfg.RPCRetries,
		BaseDelay:  cfg.RPCBackoff,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	onchain := registry.NewOnChain(client, logger.Named("onchain"))
	entries := make([]model.Hypervisor, 0, len(addresses))
	for _, addr := range addresses {
		h, err := onchain.Fetch(ctx, chainName, protocol, strings.TrimSpace(addr))
		if err != nil {
			return fmt.Errorf("fetch hypervisor %s: %w", addr, err)
		}
		entries = append(entries, h)
		logger.Info("hypervisor resolved",
			zap.String("address", h.Address),
			zap.String("symbol", h.Symbol),
			zap.String("pool", h.Pool),
		)
	}

	return registry.New(store, logger).Sync(ctx, entries)
}
