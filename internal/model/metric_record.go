package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyChain is returned when a chain name is missing.
	ErrEmptyChain = errors.New("chain is required")
	// ErrInvalidChain is returned for chain names that cannot be part of an identity.
	ErrInvalidChain = errors.New("invalid chain")
	// ErrInvalidPeriod is returned for non-positive period lengths.
	ErrInvalidPeriod = errors.New("period must be a positive number of days")
	// ErrInvalidAddress is returned for empty or unencodable addresses.
	ErrInvalidAddress = errors.New("invalid address")
)

// identitySeparator joins the identity fields. Chains and addresses must not contain it.
const identitySeparator = "_"

// Fees is the fee-yield part of a record. Nil fields were not reported upstream.
type Fees struct {
	FeeApr     *float64 `json:"feeApr"`
	FeeApy     *float64 `json:"feeApy"`
	HasOutlier bool     `json:"hasOutlier"`
}

// Impermanent is the impermanent-divergence part of a record.
type Impermanent struct {
	VsHodlUSD       *float64 `json:"vs_hodl_usd"`
	VsHodlDeposited *float64 `json:"vs_hodl_deposited"`
	VsHodlToken0    *float64 `json:"vs_hodl_token0"`
	VsHodlToken1    *float64 `json:"vs_hodl_token1"`
}

// MetricRecord is one position's returns for one period at one block.
type MetricRecord struct {
	ID          string       `json:"id"`
	Chain       string       `json:"chain"`
	Period      int          `json:"period"`
	Address     string       `json:"address"`
	Symbol      string       `json:"symbol"`
	Block       uint64       `json:"block"`
	Timestamp   uint64       `json:"timestamp"`
	Fees        *Fees        `json:"fees,omitempty"`
	Impermanent *Impermanent `json:"impermanent,omitempty"`
}

// RecordID returns the storage identity of (chain, address, block, period).
func RecordID(chain, address string, block uint64, period int) string {
	return fmt.Sprintf("%s_%s_%d_%d", chain, address, block, period)
}

// ValidateIdentity checks that the identity fields encode without ambiguity.
func ValidateIdentity(chain, address string, period int) error {
	if chain == "" {
		return ErrEmptyChain
	}
	if strings.Contains(chain, identitySeparator) {
		return fmt.Errorf("chain %q contains %q: %w", chain, identitySeparator, ErrInvalidChain)
	}
	if address == "" || strings.Contains(address, identitySeparator) {
		return fmt.Errorf("address %q: %w", address, ErrInvalidAddress)
	}
	if period <= 0 {
		return fmt.Errorf("period %d: %w", period, ErrInvalidPeriod)
	}
	return nil
}

// NewMetricRecord builds a fee-less record with its identity filled in.
// The address is normalised before the identity is computed.
func NewMetricRecord(chain, address, symbol string, block, timestamp uint64, period int) (MetricRecord, error) {
	address = NormalizeAddress(address)
	if err := ValidateIdentity(chain, address, period); err != nil {
		return MetricRecord{}, err
	}
	return MetricRecord{
		ID:        RecordID(chain, address, block, period),
		Chain:     chain,
		Period:    period,
		Address:   address,
		Symbol:    symbol,
		Block:     block,
		Timestamp: timestamp,
	}, nil
}

// NormalizeAddress lowercases and trims an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
