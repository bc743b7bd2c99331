package model

import "time"

// WrittenEvent describes one persisted (chain, protocol, period) feed.
type WrittenEvent struct {
	RunID     string    `json:"run_id"`
	Chain     string    `json:"chain"`
	Protocol  string    `json:"protocol"`
	Period    int       `json:"period"`
	Block     uint64    `json:"block"`
	Records   int       `json:"records"`
	WrittenAt time.Time `json:"written_at"`
}
