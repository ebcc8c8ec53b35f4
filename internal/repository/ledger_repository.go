package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"prizeledger/internal/domain"
	"prizeledger/pkg/database"
)

type PostgresLedgerRepository struct {
	db *database.PostgresDB
}

func NewPostgresLedgerRepository(db *database.PostgresDB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// SaveHackathon upserts one hackathon record.
func (r *PostgresLedgerRepository) SaveHackathon(ctx context.Context, h domain.Hackathon) error {
	query := `
		INSERT INTO hackathons (id, token, total_prize_pool, active, total_allocated, organizer)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			total_allocated = EXCLUDED.total_allocated,
			updated_at = NOW()
	`

	_, err := r.db.Pool.Exec(ctx, query,
		h.ID,
		h.Token,
		h.TotalPrizePool,
		h.Active,
		h.TotalAllocated,
		h.Organizer,
	)
	if err != nil {
		return fmt.Errorf("failed to save hackathon: %w", err)
	}
	return nil
}

// SaveAllocations upserts the given allocation records.
func (r *PostgresLedgerRepository) SaveAllocations(ctx context.Context, allocs []domain.Allocation) error {
	query := `
		INSERT INTO allocations (hackathon_id, winner, amount, claimed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hackathon_id, winner) DO UPDATE SET
			amount = EXCLUDED.amount,
			claimed = EXCLUDED.claimed,
			updated_at = NOW()
	`

	for _, a := range allocs {
		if _, err := r.db.Pool.Exec(ctx, query, a.HackathonID, a.Winner, a.Amount, a.Claimed); err != nil {
			return fmt.Errorf("failed to save allocation for %s: %w", a.Winner, err)
		}
	}
	return nil
}

// AppendEvent appends one journal entry.
func (r *PostgresLedgerRepository) AppendEvent(ctx context.Context, e domain.LedgerEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode event payload: %w", err)
	}

	query := `
		INSERT INTO ledger_events (hackathon_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Pool.Exec(ctx, query, e.HackathonID, string(e.Type), payload, e.CreatedAt); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventsByHackathon returns up to limit journal entries for one hackathon,
// oldest first.
func (r *PostgresLedgerRepository) EventsByHackathon(ctx context.Context, hackathonID int64, limit int) ([]domain.LedgerEvent, error) {
	query := `
		SELECT id, hackathon_id, event_type, payload, created_at
		FROM ledger_events
		WHERE hackathon_id = $1
		ORDER BY id ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, hackathonID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var e domain.LedgerEvent
		var eventType string
		var payload []byte
		if err := rows.Scan(&e.ID, &e.HackathonID, &eventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.EventType(eventType)
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// LoadHackathons returns every hackathon record, ordered by id.
func (r *PostgresLedgerRepository) LoadHackathons(ctx context.Context) ([]domain.Hackathon, error) {
	query := `
		SELECT id, token, total_prize_pool, active, total_allocated, organizer, created_at
		FROM hackathons
		ORDER BY id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query hackathons: %w", err)
	}
	defer rows.Close()

	var hackathons []domain.Hackathon
	for rows.Next() {
		var h domain.Hackathon
		if err := rows.Scan(
			&h.ID,
			&h.Token,
			&h.TotalPrizePool,
			&h.Active,
			&h.TotalAllocated,
			&h.Organizer,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hackathon: %w", err)
		}
		hackathons = append(hackathons, h)
	}

	return hackathons, rows.Err()
}

// LoadAllocations returns every allocation record.
func (r *PostgresLedgerRepository) LoadAllocations(ctx context.Context) ([]domain.Allocation, error) {
	query := `
		SELECT hackathon_id, winner, amount, claimed
		FROM allocations
		ORDER BY hackathon_id ASC, winner ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []domain.Allocation
	for rows.Next() {
		var a domain.Allocation
		if err := rows.Scan(&a.HackathonID, &a.Winner, &a.Amount, &a.Claimed); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocs = append(allocs, a)
	}

	return allocs, rows.Err()
}
