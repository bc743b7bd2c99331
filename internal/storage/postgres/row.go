package postgres

import "hypervisorReturns/internal/model"

// recordRow is the column layout of one returns row, in recordColumns order.
// The has_* flags tell an absent metric group from one whose values are all null.
type recordRow struct {
	ID        string
	Chain     string
	Period    int
	Address   string
	Symbol    string
	Block     int64
	Timestamp int64

	HasFees    bool
	FeeApr     *float64
	FeeApy     *float64
	HasOutlier bool

	HasImpermanent bool
	ImpUSD         *float64
	ImpDeposited   *float64
	ImpToken0      *float64
	ImpToken1      *float64
}

func rowFromRecord(r model.MetricRecord) recordRow {
	row := recordRow{
		ID:        r.ID,
		Chain:     r.Chain,
		Period:    r.Period,
		Address:   r.Address,
		Symbol:    r.Symbol,
		Block:     int64(r.Block),
		Timestamp: int64(r.Timestamp),
	}
	if r.Fees != nil {
		row.HasFees = true
		row.FeeApr, row.FeeApy, row.HasOutlier = r.Fees.FeeApr, r.Fees.FeeApy, r.Fees.HasOutlier
	}
	if r.Impermanent != nil {
		row.HasImpermanent = true
		row.ImpUSD, row.ImpDeposited = r.Impermanent.VsHodlUSD, r.Impermanent.VsHodlDeposited
		row.ImpToken0, row.ImpToken1 = r.Impermanent.VsHodlToken0, r.Impermanent.VsHodlToken1
	}
	return row
}

func (row recordRow) record() model.MetricRecord {
	r := model.MetricRecord{
		ID:        row.ID,
		Chain:     row.Chain,
		Period:    row.Period,
		Address:   row.Address,
		Symbol:    row.Symbol,
		Block:     uint64(row.Block),
		Timestamp: uint64(row.Timestamp),
	}
	if row.HasFees {
		r.Fees = &model.Fees{FeeApr: row.FeeApr, FeeApy: row.FeeApy, HasOutlier: row.HasOutlier}
	}
	if row.HasImpermanent {
		r.Impermanent = &model.Impermanent{
			VsHodlUSD:       row.ImpUSD,
			VsHodlDeposited: row.ImpDeposited,
			VsHodlToken0:    row.ImpToken0,
			VsHodlToken1:    row.ImpToken1,
		}
	}
	return r
}

// args are the insert arguments $1..$16.
func (row recordRow) args() []any {
	return []any{
		row.ID, row.Chain, row.Period, row.Address, row.Symbol, row.Block, row.Timestamp,
		row.HasFees, row.FeeApr, row.FeeApy, row.HasOutlier,
		row.HasImpermanent, row.ImpUSD, row.ImpDeposited, row.ImpToken0, row.ImpToken1,
	}
}

// scanTargets are the destinations of a select over recordColumns.
func (row *recordRow) scanTargets() []any {
	return []any{
		&row.ID, &row.Chain, &row.Period, &row.Address, &row.Symbol, &row.Block, &row.Timestamp,
		&row.HasFees, &row.FeeApr, &row.FeeApy, &row.HasOutlier,
		&row.HasImpermanent, &row.ImpUSD, &row.ImpDeposited, &row.ImpToken0, &row.ImpToken1,
	}
}
