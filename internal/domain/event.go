package domain

import "time"

// EventType identifies a ledger event for off-chain consumers.
type EventType string

const (
	EventHackathonCreated     EventType = "hackathon_created"
	EventPrizesSet            EventType = "prizes_set"
	EventPrizeClaimed         EventType = "prize_claimed"
	EventHackathonDeactivated EventType = "hackathon_deactivated"
	EventEmergencyWithdraw    EventType = "emergency_withdraw"
	EventPaused               EventType = "paused"
	EventUnpaused             EventType = "unpaused"
)

// LedgerEvent is one journal entry. HackathonID is nil for events that are
// not scoped to a single hackathon (emergency withdraw, pause/unpause).
type LedgerEvent struct {
	ID          int64          `json:"id"`
	HackathonID *int64         `json:"hackathon_id,omitempty"`
	Type        EventType      `json:"type"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewHackathonEvent builds an event scoped to a hackathon.
func NewHackathonEvent(t EventType, hackathonID int64, payload map[string]any) LedgerEvent {
	id := hackathonID
	return LedgerEvent{
		HackathonID: &id,
		Type:        t,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewGlobalEvent builds an event with no hackathon scope.
func NewGlobalEvent(t EventType, payload map[string]any) LedgerEvent {
	return LedgerEvent{
		Type:      t,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
