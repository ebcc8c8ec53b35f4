package domain

import "time"

// CreateHackathonRequest is the body of POST /api/v1/hackathons.
type CreateHackathonRequest struct {
	Token          string `json:"token"`
	TotalPrizePool int64  `json:"total_prize_pool"`
}

// CreateHackathonResponse echoes the created record.
type CreateHackathonResponse struct {
	HackathonID    int64  `json:"hackathon_id"`
	Token          string `json:"token"`
	TotalPrizePool int64  `json:"total_prize_pool"`
	Organizer      string `json:"organizer"`
}

// SetPrizesRequest is the body of POST /api/v1/hackathons/{id}/prizes.
// Winners and Amounts are parallel arrays.
type SetPrizesRequest struct {
	Winners []string `json:"winners"`
	Amounts []int64  `json:"amounts"`
}

// SetPrizesResponse reports the allocation total after the call.
type SetPrizesResponse struct {
	HackathonID    int64 `json:"hackathon_id"`
	TotalAllocated int64 `json:"total_allocated"`
}

// ClaimPrizeResponse reports a successful winner-initiated claim.
type ClaimPrizeResponse struct {
	HackathonID int64     `json:"hackathon_id"`
	Winner      string    `json:"winner"`
	Amount      int64     `json:"amount"`
	ClaimedAt   time.Time `json:"claimed_at"`
}

// BatchDistributeRequest is the body of POST /api/v1/hackathons/{id}/distribute.
type BatchDistributeRequest struct {
	Winners []string `json:"winners"`
}

// BatchDistributeResponse lists the winners actually paid; entries skipped
// because they had no allocation or had already claimed are omitted.
type BatchDistributeResponse struct {
	HackathonID int64    `json:"hackathon_id"`
	Paid        []string `json:"paid"`
	TotalPaid   int64    `json:"total_paid"`
}

// EmergencyWithdrawRequest is the body of POST /api/v1/admin/emergency-withdraw.
type EmergencyWithdrawRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// RoleRequest is the body of the admin grant/revoke endpoints.
type RoleRequest struct {
	Role    Role   `json:"role"`
	Address string `json:"address"`
}

// CanClaimResponse is the view shape of GET .../claimable/{address}.
type CanClaimResponse struct {
	HackathonID int64  `json:"hackathon_id"`
	Winner      string `json:"winner"`
	CanClaim    bool   `json:"can_claim"`
	Amount      int64  `json:"amount"`
}

// PrizeAmountResponse is the view shape of GET .../prizes/{address}.
type PrizeAmountResponse struct {
	HackathonID int64  `json:"hackathon_id"`
	Winner      string `json:"winner"`
	Amount      int64  `json:"amount"`
	Claimed     bool   `json:"claimed"`
}
