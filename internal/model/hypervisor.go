package model

import "time"

// Hypervisor is the static registry entry for a liquidity position.
type Hypervisor struct {
	Address   string    `json:"address"`
	Chain     string    `json:"chain"`
	Symbol    string    `json:"symbol"`
	Pool      string    `json:"pool"`
	Protocol  string    `json:"protocol"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Info returns the descriptive part of the entry as embedded in summaries.
func (h Hypervisor) Info() HypervisorInfo {
	return HypervisorInfo{
		Symbol:   h.Symbol,
		Address:  h.Address,
		Chain:    h.Chain,
		Pool:     h.Pool,
		Protocol: h.Protocol,
	}
}

// ChainProtocol is a supported (chain, protocol) pair.
type ChainProtocol struct {
	Chain    string `json:"chain"`
	Protocol string `json:"protocol"`
}
