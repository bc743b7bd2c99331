package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"hypervisorReturns/internal/model"
)

// JsonlSink appends records and summaries to a JSONL file, or to a writer.
type JsonlSink struct {
	path string
	w    io.Writer
	mu   sync.Mutex
}

// NewJsonlSink appends to the file at path.
func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// NewJsonlWriter writes to w, e.g. stdout.
func NewJsonlWriter(w io.Writer) *JsonlSink {
	return &JsonlSink{w: w}
}

// PutRecords writes each record as one JSON line.
func (s *JsonlSink) PutRecords(records []model.MetricRecord) error {
	items := make([]any, len(records))
	for i := range records {
		items[i] = records[i]
	}
	return s.put(items)
}

// PutSummaries writes each summary as one JSON line.
func (s *JsonlSink) PutSummaries(summaries []model.AverageSummary) error {
	items := make([]any, len(summaries))
	for i := range summaries {
		items[i] = summaries[i]
	}
	return s.put(items)
}

func (s *JsonlSink) put(items []any) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.w
	if out == nil {
		dir := filepath.Dir(s.path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	writer := bufio.NewWriter(out)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal line: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
