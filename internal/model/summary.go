package model

import "strconv"

// HypervisorInfo is the metadata attached to an AverageSummary.
type HypervisorInfo struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Chain    string `json:"chain"`
	Pool     string `json:"pool"`
	Protocol string `json:"protocol"`
}

// Window aggregates every record of one address and period.
// Averages are nil when no record carried the field.
type Window struct {
	Period               int      `json:"period"`
	MinTimestamp         uint64   `json:"min_timestamp"`
	MaxTimestamp         uint64   `json:"max_timestamp"`
	MinBlock             uint64   `json:"min_block"`
	MaxBlock             uint64   `json:"max_block"`
	AvFeeApr             *float64 `json:"av_feeApr"`
	AvFeeApy             *float64 `json:"av_feeApy"`
	AvImpVsHodlUSD       *float64 `json:"av_imp_vs_hodl_usd"`
	AvImpVsHodlDeposited *float64 `json:"av_imp_vs_hodl_deposited"`
	AvImpVsHodlToken0    *float64 `json:"av_imp_vs_hodl_token0"`
	AvImpVsHodlToken1    *float64 `json:"av_imp_vs_hodl_token1"`
}

// AverageSummary is the per-address result of a summary query.
type AverageSummary struct {
	Address    string            `json:"address"`
	Hypervisor HypervisorInfo    `json:"hypervisor"`
	Returns    map[string]Window `json:"returns"`
}

// PeriodLabel is the key of a period in AverageSummary.Returns.
func PeriodLabel(period int) string {
	return strconv.Itoa(period)
}
