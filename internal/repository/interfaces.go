package repository

import (
	"context"

	"prizeledger/internal/domain"
)

// LedgerRepository journals committed ledger state and events to durable
// storage and loads them back at startup. The engine's in-memory state is
// authoritative; the journal follows it.
type LedgerRepository interface {
	SaveHackathon(ctx context.Context, h domain.Hackathon) error
	SaveAllocations(ctx context.Context, allocs []domain.Allocation) error
	AppendEvent(ctx context.Context, e domain.LedgerEvent) error
	EventsByHackathon(ctx context.Context, hackathonID int64, limit int) ([]domain.LedgerEvent, error)
	LoadHackathons(ctx context.Context) ([]domain.Hackathon, error)
	LoadAllocations(ctx context.Context) ([]domain.Allocation, error)
}
