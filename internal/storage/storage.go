package storage

import (
	"context"
	"fmt"

	"hypervisorReturns/internal/model"
)

// RecordStore persists metric records by identity.
type RecordStore interface {
	// UpsertRecords writes records atomically, replacing any with the same ID.
	UpsertRecords(ctx context.Context, records []model.MetricRecord) error
	// QueryRecords returns stored records matching the record-level filter fields,
	// ordered by block then ID.
	QueryRecords(ctx context.Context, filter model.Filter) ([]model.MetricRecord, error)
}

// HypervisorStore holds static hypervisor metadata.
type HypervisorStore interface {
	// Hypervisors returns every entry for the given addresses, on any chain.
	Hypervisors(ctx context.Context, addresses []string) ([]model.Hypervisor, error)
	UpsertHypervisors(ctx context.Context, hypervisors []model.Hypervisor) error
}

// StateStore remembers the last block fed per named feed.
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
}

// ReturnsStore is the full durable store.
type ReturnsStore interface {
	RecordStore
	HypervisorStore
	StateStore
}

// QueryError wraps a failed store read.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
