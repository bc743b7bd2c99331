package returns

import (
	"errors"
	"fmt"

	"hypervisorReturns/internal/model"
)

var (
	ErrEmptyChain    = model.ErrEmptyChain
	ErrInvalidPeriod = model.ErrInvalidPeriod
)

// Calculator sources named in UpstreamError.
const (
	SourceFeeYield    = "fee_yield"
	SourceImpermanent = "impermanent"
	SourceBlockTime   = "block_time"
)

// UpstreamError reports a failed or malformed calculator result for one triple.
type UpstreamError struct {
	Chain    string
	Protocol string
	Period   int
	Source   string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s for %s/%s/%d: %v", e.Source, e.Chain, e.Protocol, e.Period, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// TripleResult is the outcome of feeding one triple.
type TripleResult struct {
	Triple  Triple
	Records int
	Block   uint64
	Err     error
}

// Results holds one outcome per requested triple, in request order.
type Results []TripleResult

// Failed returns the results that carry an error.
func (rs Results) Failed() Results {
	var out Results
	for _, r := range rs {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Err joins every per-triple error, each prefixed with its triple. Nil when all succeeded.
func (rs Results) Err() error {
	var errs []error
	for _, r := range rs {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Triple, r.Err))
		}
	}
	return errors.Join(errs...)
}
