package postgres

import (
	"fmt"
	"strings"

	"hypervisorReturns/internal/model"
)

const recordColumns = `id, chain, period, address, symbol, block_number, block_ts,
	has_fees, fee_apr, fee_apy, fee_has_outlier,
	has_impermanent, imp_vs_hodl_usd, imp_vs_hodl_deposited, imp_vs_hodl_token0, imp_vs_hodl_token1`

// buildRecordQuery renders a filtered select over returns, ordered by block.
func buildRecordQuery(filter model.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	add("chain = $%d", filter.Chain)
	if filter.Period != 0 {
		add("period = $%d", filter.Period)
	}
	if filter.Address != "" {
		add("address = $%d", filter.Address)
	}

	query := "SELECT " + recordColumns + " FROM returns WHERE " +
		strings.Join(conds, " AND ") + " ORDER BY block_number ASC, id ASC"
	return query, args
}
