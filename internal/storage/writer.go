package storage

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hypervisorReturns/internal/model"
)

const (
	defaultChunkSize   = 500
	defaultConcurrency = 4
)

// WriterConfig controls how a record map is split across concurrent upserts.
type WriterConfig struct {
	ChunkSize   int
	Concurrency int
}

// Writer upserts record maps in concurrent chunks.
// Chunks hold disjoint identities, so their order does not matter.
type Writer struct {
	cfg    WriterConfig
	store  RecordStore
	logger *zap.Logger
}

func NewWriter(cfg WriterConfig, store RecordStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Writer{cfg: cfg, store: store, logger: logger}
}

// Write upserts every record and returns how many were written.
// A failed chunk fails the call; chunks already committed stay committed.
func (w *Writer) Write(ctx context.Context, records map[string]model.MetricRecord) (int, error) {
	if w.store == nil {
		return 0, fmt.Errorf("store is nil")
	}
	if len(records) == 0 {
		return 0, nil
	}

	ordered := make([]model.MetricRecord, 0, len(records))
	for _, rec := range records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for start := 0; start < len(ordered); start += w.cfg.ChunkSize {
		end := start + w.cfg.ChunkSize
		if end > len(ordered) {
			end = len(ordered)
		}
		chunk := ordered[start:end]
		g.Go(func() error {
			if err := w.store.UpsertRecords(gctx, chunk); err != nil {
				return fmt.Errorf("upsert records %s..%s: %w", chunk[0].ID, chunk[len(chunk)-1].ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	w.logger.Debug("records written", zap.Int("records", len(ordered)))
	return len(ordered), nil
}
