package model

// FeeYield is one position's entry in a fee-yield computation.
type FeeYield struct {
	Symbol     string   `json:"symbol"`
	FeeApr     *float64 `json:"feeApr"`
	FeeApy     *float64 `json:"feeApy"`
	HasOutlier bool     `json:"hasOutlier"`
}

// FeeYieldSnapshot is a fee-yield computation pinned to a reference block.
// Timestamp is zero when the calculator did not report it.
type FeeYieldSnapshot struct {
	Block     uint64              `json:"current_block"`
	Timestamp uint64              `json:"timestamp,omitempty"`
	Entries   map[string]FeeYield `json:"hypervisors"`
}

// ImpermanentSnapshot is an impermanent-divergence computation.
type ImpermanentSnapshot struct {
	Block   uint64                 `json:"current_block,omitempty"`
	Entries map[string]Impermanent `json:"hypervisors"`
}
