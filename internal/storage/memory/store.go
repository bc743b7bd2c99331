// Package memory is an in-process ReturnsStore for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hypervisorReturns/internal/model"
)

// Store keeps records, hypervisors and feed state in maps.
type Store struct {
	mu          sync.RWMutex
	records     map[string]model.MetricRecord
	hypervisors map[string]model.Hypervisor
	state       map[string]uint64

	// FailUpsert, when set, is returned by UpsertRecords.
	FailUpsert error
	// FailQuery, when set, is returned by QueryRecords.
	FailQuery error
}

func NewStore() *Store {
	return &Store{
		records:     make(map[string]model.MetricRecord),
		hypervisors: make(map[string]model.Hypervisor),
		state:       make(map[string]uint64),
	}
}

func (s *Store) UpsertRecords(ctx context.Context, records []model.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpsert != nil {
		return s.FailUpsert
	}
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record without id for %s on %s", rec.Address, rec.Chain)
		}
	}
	for _, rec := range records {
		s.records[rec.ID] = cloneRecord(rec)
	}
	return nil
}

// QueryRecords returns matches ordered by block, then ID.
func (s *Store) QueryRecords(ctx context.Context, filter model.Filter) ([]model.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailQuery != nil {
		return nil, s.FailQuery
	}

	filter = filter.Normalized()
	out := make([]model.MetricRecord, 0)
	for _, rec := range s.records {
		if filter.MatchRecord(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block < out[j].Block
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Hypervisors(ctx context.Context, addresses []string) ([]model.Hypervisor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		wanted[model.NormalizeAddress(addr)] = struct{}{}
	}
	out := make([]model.Hypervisor, 0, len(addresses))
	for _, h := range s.hypervisors {
		if _, ok := wanted[h.Address]; ok {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Address != out[j].Address {
			return out[i].Address < out[j].Address
		}
		return out[i].Chain < out[j].Chain
	})
	return out, nil
}

func (s *Store) UpsertHypervisors(ctx context.Context, hypervisors []model.Hypervisor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hypervisors {
		h.Address = model.NormalizeAddress(h.Address)
		if h.UpdatedAt.IsZero() {
			h.UpdatedAt = time.Now().UTC()
		}
		s.hypervisors[h.Chain+"/"+h.Address] = h
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.state[name]
	return block, ok, nil
}

func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[name] = block
	return nil
}

func cloneRecord(rec model.MetricRecord) model.MetricRecord {
	if rec.Fees != nil {
		fees := *rec.Fees
		fees.FeeApr = cloneFloat(fees.FeeApr)
		fees.FeeApy = cloneFloat(fees.FeeApy)
		rec.Fees = &fees
	}
	if rec.Impermanent != nil {
		imp := *rec.Impermanent
		imp.VsHodlUSD = cloneFloat(imp.VsHodlUSD)
		imp.VsHodlDeposited = cloneFloat(imp.VsHodlDeposited)
		imp.VsHodlToken0 = cloneFloat(imp.VsHodlToken0)
		imp.VsHodlToken1 = cloneFloat(imp.VsHodlToken1)
		rec.Impermanent = &imp
	}
	return rec
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
