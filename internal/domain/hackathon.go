package domain

import (
	"strings"
	"time"
)

// ZeroAddress is the null asset/winner address, rejected everywhere an
// address is required.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// IsZeroAddress reports whether addr is empty or the canonical zero address.
func IsZeroAddress(addr string) bool {
	return addr == "" || strings.EqualFold(addr, ZeroAddress)
}

// Hackathon is one escrowed prize pool. TotalPrizePool and Token are fixed
// at creation; TotalAllocated never exceeds TotalPrizePool.
type Hackathon struct {
	ID             int64     `json:"id"`
	Token          string    `json:"token"`
	TotalPrizePool int64     `json:"total_prize_pool"`
	Active         bool      `json:"active"`
	TotalAllocated int64     `json:"total_allocated"`
	Organizer      string    `json:"organizer"`
	CreatedAt      time.Time `json:"created_at"`
}

// Allocation is a judge-assigned prize owed to one winner within one
// hackathon. Once Claimed flips to true the record is immutable.
type Allocation struct {
	HackathonID int64  `json:"hackathon_id"`
	Winner      string `json:"winner"`
	Amount      int64  `json:"amount"`
	Claimed     bool   `json:"claimed"`
}

// HackathonInfo is the view shape returned by getHackathonInfo.
type HackathonInfo struct {
	TotalPrizePool int64  `json:"total_prize_pool"`
	Token          string `json:"token"`
	Active         bool   `json:"active"`
	TotalAllocated int64  `json:"total_allocated"`
}

// LedgerStats is the global counter view.
type LedgerStats struct {
	HackathonCount   int64 `json:"hackathon_count"`
	TotalDistributed int64 `json:"total_distributed"`
	Paused           bool  `json:"paused"`
}
