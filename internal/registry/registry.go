package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hypervisorReturns/internal/model"
	"hypervisorReturns/internal/storage"
)

// Registry resolves static hypervisor metadata from a store.
type Registry struct {
	store  storage.HypervisorStore
	logger *zap.Logger
}

func New(store storage.HypervisorStore, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Resolve returns at most one entry per address, picked with Pick.
// Addresses without any entry are absent from the result.
func (r *Registry) Resolve(ctx context.Context, chain string, addresses []string) (map[string]model.Hypervisor, error) {
	out := make(map[string]model.Hypervisor, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	entries, err := r.store.Hypervisors(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("load hypervisors: %w", err)
	}

	byAddress := make(map[string][]model.Hypervisor)
	for _, h := range entries {
		addr := model.NormalizeAddress(h.Address)
		byAddress[addr] = append(byAddress[addr], h)
	}
	for addr, candidates := range byAddress {
		if len(candidates) > 1 {
			r.logger.Debug("multiple registry entries",
				zap.String("address", addr),
				zap.Int("candidates", len(candidates)),
			)
		}
		if h, ok := Pick(candidates, chain); ok {
			out[addr] = h
		}
	}
	return out, nil
}

// Sync upserts entries into the registry.
func (r *Registry) Sync(ctx context.Context, hypervisors []model.Hypervisor) error {
	if err := r.store.UpsertHypervisors(ctx, hypervisors); err != nil {
		return fmt.Errorf("upsert hypervisors: %w", err)
	}
	r.logger.Info("registry synced", zap.Int("hypervisors", len(hypervisors)))
	return nil
}

// Pick chooses one entry among candidates for the same address: an entry on
// chain wins over others, then the most recently updated, then the first.
func Pick(candidates []model.Hypervisor, chain string) (model.Hypervisor, bool) {
	best := -1
	for i, h := range candidates {
		if best < 0 {
			best = i
			continue
		}
		cur := candidates[best]
		sameChain, curSameChain := h.Chain == chain, cur.Chain == chain
		switch {
		case sameChain && !curSameChain:
			best = i
		case sameChain == curSameChain && h.UpdatedAt.After(cur.UpdatedAt):
			best = i
		}
	}
	if best < 0 {
		return model.Hypervisor{}, false
	}
	return candidates[best], true
}
