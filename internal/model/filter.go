package model

// Filter selects stored records. Zero values mean "any", except Chain which is required.
// Protocol only applies where registry metadata is joined.
type Filter struct {
	Chain    string `json:"chain"`
	Period   int    `json:"period,omitempty"`
	Address  string `json:"address,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}

// Validate checks required fields.
func (f Filter) Validate() error {
	if f.Chain == "" {
		return ErrEmptyChain
	}
	if f.Period < 0 {
		return ErrInvalidPeriod
	}
	return nil
}

// Normalized returns a copy with the address normalised.
func (f Filter) Normalized() Filter {
	f.Address = NormalizeAddress(f.Address)
	return f
}

// MatchRecord reports whether r satisfies the record-level fields of f.
func (f Filter) MatchRecord(r MetricRecord) bool {
	if r.Chain != f.Chain {
		return false
	}
	if f.Period != 0 && r.Period != f.Period {
		return false
	}
	if f.Address != "" && r.Address != f.Address {
		return false
	}
	return true
}
