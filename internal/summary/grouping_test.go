package summary

import (
	"math"
	"reflect"
	"testing"

	"hypervisorReturns/internal/model"
)

func rec(address string, period int, block uint64, apr *float64) model.MetricRecord {
	r := model.MetricRecord{
		ID:        model.RecordID("ethereum", address, block, period),
		Chain:     "ethereum",
		Period:    period,
		Address:   address,
		Block:     block,
		Timestamp: block * 12,
	}
	r.Fees = &model.Fees{FeeApr: apr}
	return r
}

func joined(records ...model.MetricRecord) []Joined {
	return Join(records, nil)
}

func approx(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: expected %v, got nil", name, want)
	}
	if math.Abs(*got-want) > 1e-12 {
		t.Fatalf("%s: expected %v, got %v", name, want, *got)
	}
}

func TestAverageIgnoresMissingValues(t *testing.T) {
	rows := joined(
		rec("x", 7, 1, model.Float(0.1)),
		rec("x", 7, 2, model.Float(0.2)),
		rec("x", 7, 3, nil),
	)

	groups := GroupByAddressPeriod(rows)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	approx(t, "av_feeApr", groups[0].Window.AvFeeApr, 0.15)
	if groups[0].Window.AvFeeApy != nil {
		t.Fatalf("expected nil av_feeApy, got %v", *groups[0].Window.AvFeeApy)
	}
}

func TestRecordsWithoutImpermanentDoNotCount(t *testing.T) {
	a := rec("x", 1, 1, model.Float(0.1))
	a.Impermanent = &model.Impermanent{VsHodlUSD: model.Float(-4), VsHodlToken0: model.Float(1)}
	b := rec("x", 1, 2, model.Float(0.3))

	w := GroupByAddressPeriod(joined(a, b))[0].Window
	approx(t, "av_imp_vs_hodl_usd", w.AvImpVsHodlUSD, -4)
	approx(t, "av_imp_vs_hodl_token0", w.AvImpVsHodlToken0, 1)
	if w.AvImpVsHodlDeposited != nil {
		t.Fatalf("expected nil deposited average")
	}
	approx(t, "av_feeApr", w.AvFeeApr, 0.2)
}

func TestWindowBounds(t *testing.T) {
	rows := joined(
		rec("x", 1, 30, model.Float(0)),
		rec("x", 1, 10, model.Float(0)),
		rec("x", 1, 20, model.Float(0)),
	)
	w := GroupByAddressPeriod(rows)[0].Window
	if w.MinBlock != 10 || w.MaxBlock != 30 {
		t.Fatalf("unexpected block bounds %d..%d", w.MinBlock, w.MaxBlock)
	}
	if w.MinTimestamp != 120 || w.MaxTimestamp != 360 {
		t.Fatalf("unexpected timestamp bounds %d..%d", w.MinTimestamp, w.MaxTimestamp)
	}
	if w.Period != 1 {
		t.Fatalf("unexpected period %d", w.Period)
	}
}

func TestGroupingShape(t *testing.T) {
	rows := joined(
		rec("x", 1, 1, model.Float(0.1)),
		rec("x", 7, 1, model.Float(0.2)),
		rec("y", 1, 1, model.Float(0.3)),
	)

	groups := GroupByAddress(GroupByAddressPeriod(rows))
	if len(groups) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(groups))
	}
	if groups[0].Address != "x" || groups[1].Address != "y" {
		t.Fatalf("unexpected order: %s, %s", groups[0].Address, groups[1].Address)
	}
	if _, ok := groups[0].Returns["1"]; !ok {
		t.Fatalf("x missing period 1")
	}
	if _, ok := groups[0].Returns["7"]; !ok {
		t.Fatalf("x missing period 7")
	}
	if len(groups[1].Returns) != 1 {
		t.Fatalf("y should only have period 1, got %v", groups[1].Returns)
	}
	if _, ok := groups[1].Returns["7"]; ok {
		t.Fatalf("y must not carry an empty period 7")
	}
}

func TestSortByBlockIsStable(t *testing.T) {
	a := rec("a", 1, 5, nil)
	b := rec("b", 1, 1, nil)
	c := rec("c", 1, 5, nil)
	d := rec("d", 1, 3, nil)
	rows := joined(a, b, c, d)

	SortByBlock(rows)

	var got []string
	for _, row := range rows {
		got = append(got, row.Record.Address)
	}
	want := []string{"b", "d", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestFilterProtocolUsesMetadata(t *testing.T) {
	meta := map[string]model.Hypervisor{
		"x": {Address: "x", Chain: "ethereum", Protocol: "uniswapv3"},
		"y": {Address: "y", Chain: "ethereum", Protocol: "quickswap"},
	}
	rows := Join([]model.MetricRecord{
		rec("x", 1, 1, nil),
		rec("y", 1, 1, nil),
		rec("z", 1, 1, nil),
	}, meta)

	got := Filter(rows, model.Filter{Chain: "ethereum", Protocol: "quickswap"})
	if len(got) != 1 || got[0].Record.Address != "y" {
		t.Fatalf("unexpected filter result %+v", got)
	}

	all := Filter(rows, model.Filter{Chain: "ethereum"})
	if len(all) != 3 {
		t.Fatalf("expected unfiltered rows to keep unregistered addresses, got %d", len(all))
	}
}

func TestAttachMetadata(t *testing.T) {
	meta := map[string]model.Hypervisor{
		"x": {Address: "x", Chain: "ethereum", Symbol: "WETH-USDC", Pool: "0xpool", Protocol: "uniswapv3"},
	}
	groups := []AddressGroup{
		{Address: "x", Returns: map[string]model.Window{}},
		{Address: "y", Returns: map[string]model.Window{}},
	}

	got := Attach(groups, meta, "ethereum")
	want := []model.AverageSummary{
		{
			Address:    "x",
			Hypervisor: model.HypervisorInfo{Symbol: "WETH-USDC", Address: "x", Chain: "ethereum", Pool: "0xpool", Protocol: "uniswapv3"},
			Returns:    map[string]model.Window{},
		},
		{
			Address:    "y",
			Hypervisor: model.HypervisorInfo{Address: "y", Chain: "ethereum"},
			Returns:    map[string]model.Window{},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected summaries %+v", got)
	}
}
