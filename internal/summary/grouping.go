package summary

import (
	"sort"

	"hypervisorReturns/internal/model"
)

// Joined is a stored record with the registry entry resolved for its address.
type Joined struct {
	Record     model.MetricRecord
	Hypervisor model.Hypervisor
	Found      bool
}

// PeriodGroup is the aggregate of one (address, period).
type PeriodGroup struct {
	Address string
	Period  int
	Window  model.Window
}

// AddressGroup holds every period window of one address.
type AddressGroup struct {
	Address string
	Returns map[string]model.Window
}

// Join attaches at most one registry entry per record.
func Join(records []model.MetricRecord, meta map[string]model.Hypervisor) []Joined {
	out := make([]Joined, len(records))
	for i, rec := range records {
		h, ok := meta[rec.Address]
		out[i] = Joined{Record: rec, Hypervisor: h, Found: ok}
	}
	return out
}

// Filter keeps rows matching f. Protocol is matched against the joined entry,
// so rows without registry metadata never match a protocol filter.
func Filter(rows []Joined, f model.Filter) []Joined {
	out := make([]Joined, 0, len(rows))
	for _, row := range rows {
		if !f.MatchRecord(row.Record) {
			continue
		}
		if f.Protocol != "" && (!row.Found || row.Hypervisor.Protocol != f.Protocol) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// SortByBlock orders rows by ascending block, keeping the input order of ties.
func SortByBlock(rows []Joined) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Record.Block < rows[j].Record.Block
	})
}

type groupKey struct {
	address string
	period  int
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

type windowAcc struct {
	window                   model.Window
	apr, apy                 mean
	usd, dep, token0, token1 mean
}

func newWindowAcc(rec model.MetricRecord) *windowAcc {
	return &windowAcc{window: model.Window{
		Period:       rec.Period,
		MinTimestamp: rec.Timestamp,
		MaxTimestamp: rec.Timestamp,
		MinBlock:     rec.Block,
		MaxBlock:     rec.Block,
	}}
}

func (a *windowAcc) add(rec model.MetricRecord) {
	w := &a.window
	if rec.Timestamp < w.MinTimestamp {
		w.MinTimestamp = rec.Timestamp
	}
	if rec.Timestamp > w.MaxTimestamp {
		w.MaxTimestamp = rec.Timestamp
	}
	if rec.Block < w.MinBlock {
		w.MinBlock = rec.Block
	}
	if rec.Block > w.MaxBlock {
		w.MaxBlock = rec.Block
	}
	if rec.Fees != nil {
		a.apr.add(rec.Fees.FeeApr)
		a.apy.add(rec.Fees.FeeApy)
	}
	if rec.Impermanent != nil {
		a.usd.add(rec.Impermanent.VsHodlUSD)
		a.dep.add(rec.Impermanent.VsHodlDeposited)
		a.token0.add(rec.Impermanent.VsHodlToken0)
		a.token1.add(rec.Impermanent.VsHodlToken1)
	}
}

func (a *windowAcc) result() model.Window {
	w := a.window
	w.AvFeeApr = a.apr.value()
	w.AvFeeApy = a.apy.value()
	w.AvImpVsHodlUSD = a.usd.value()
	w.AvImpVsHodlDeposited = a.dep.value()
	w.AvImpVsHodlToken0 = a.token0.value()
	w.AvImpVsHodlToken1 = a.token1.value()
	return w
}

// GroupByAddressPeriod computes min/max bounds and null-ignoring means per
// (address, period). Groups come out in order of first appearance.
func GroupByAddressPeriod(rows []Joined) []PeriodGroup {
	accs := make(map[groupKey]*windowAcc)
	order := make([]groupKey, 0)
	for _, row := range rows {
		key := groupKey{address: row.Record.Address, period: row.Record.Period}
		acc, ok := accs[key]
		if !ok {
			acc = newWindowAcc(row.Record)
			accs[key] = acc
			order = append(order, key)
		}
		acc.add(row.Record)
	}

	out := make([]PeriodGroup, 0, len(order))
	for _, key := range order {
		out = append(out, PeriodGroup{
			Address: key.address,
			Period:  key.period,
			Window:  accs[key].result(),
		})
	}
	return out
}

// GroupByAddress regroups period windows by address, keyed by period label.
// Output is sorted by address.
func GroupByAddress(groups []PeriodGroup) []AddressGroup {
	index := make(map[string]int)
	out := make([]AddressGroup, 0)
	for _, g := range groups {
		i, ok := index[g.Address]
		if !ok {
			i = len(out)
			index[g.Address] = i
			out = append(out, AddressGroup{Address: g.Address, Returns: make(map[string]model.Window)})
		}
		out[i].Returns[model.PeriodLabel(g.Period)] = g.Window
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Attach builds the final summaries with registry metadata. Addresses without
// an entry keep only their address and chain.
func Attach(groups []AddressGroup, meta map[string]model.Hypervisor, chain string) []model.AverageSummary {
	out := make([]model.AverageSummary, 0, len(groups))
	for _, g := range groups {
		info := model.HypervisorInfo{Address: g.Address, Chain: chain}
		if h, ok := meta[g.Address]; ok {
			info = h.Info()
		}
		out = append(out, model.AverageSummary{
			Address:    g.Address,
			Hypervisor: info,
			Returns:    g.Returns,
		})
	}
	return out
}
