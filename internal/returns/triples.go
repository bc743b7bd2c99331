package returns

import (
	"fmt"
	"sort"

	"hypervisorReturns/internal/model"
)

// DefaultPeriods are the reporting windows fed when none are configured.
var DefaultPeriods = []int{1, 7, 30}

// Triple identifies one feed: a chain, a protocol and a period in days.
type Triple struct {
	Chain    string `json:"chain"`
	Protocol string `json:"protocol"`
	Period   int    `json:"period"`
}

func (t Triple) String() string {
	return fmt.Sprintf("%s/%s/%d", t.Chain, t.Protocol, t.Period)
}

// Validate checks the triple can produce records.
func (t Triple) Validate() error {
	if t.Chain == "" {
		return ErrEmptyChain
	}
	if t.Protocol == "" {
		return fmt.Errorf("protocol is required")
	}
	if t.Period <= 0 {
		return fmt.Errorf("period %d: %w", t.Period, ErrInvalidPeriod)
	}
	return nil
}

// Triples crosses pairs with periods. Duplicates are removed and the
// output is ordered by chain, protocol, then period.
func Triples(pairs []model.ChainProtocol, periods []int) []Triple {
	seen := make(map[Triple]struct{})
	out := make([]Triple, 0, len(pairs)*len(periods))
	for _, pair := range pairs {
		for _, period := range periods {
			t := Triple{Chain: pair.Chain, Protocol: pair.Protocol, Period: period}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Chain != b.Chain {
			return a.Chain < b.Chain
		}
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		return a.Period < b.Period
	})
	return out
}
