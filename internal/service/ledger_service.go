package service

import (
	"context"
	"encoding/json"
	"time"

	"prizeledger/internal/domain"
	"prizeledger/internal/ledger"
	"prizeledger/internal/repository"
	"prizeledger/pkg/logger"
	"prizeledger/pkg/redis"
)

// LedgerService fronts the ledger engine with durable journaling and Redis
// view caching. The engine's in-memory state stays authoritative; journal
// and cache failures are logged and never fail the operation, matching the
// rule that a side channel must not corrupt the ledger.
type LedgerService struct {
	ledger *ledger.Ledger
	repo   repository.LedgerRepository // nil in journal-less mode
	redis  *redis.Client               // nil when caching is disabled
	log    *logger.Logger
}

// NewLedgerService wires the service and registers it as the engine's
// event sink.
func NewLedgerService(led *ledger.Ledger, repo repository.LedgerRepository, redisClient *redis.Client, log *logger.Logger) *LedgerService {
	s := &LedgerService{
		ledger: led,
		repo:   repo,
		redis:  redisClient,
		log:    log,
	}
	led.OnEvent(s.journalEvent)
	return s
}

// RestoreFromJournal rebuilds the engine state from the journal. Called
// once at startup, before the service receives traffic.
func (s *LedgerService) RestoreFromJournal(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	hackathons, err := s.repo.LoadHackathons(ctx)
	if err != nil {
		return err
	}
	allocs, err := s.repo.LoadAllocations(ctx)
	if err != nil {
		return err
	}
	s.ledger.Restore(hackathons, allocs)
	s.log.WithFields(map[string]interface{}{
		"hackathons":  len(hackathons),
		"allocations": len(allocs),
	}).Info("ledger state restored from journal")
	return nil
}

// CreateHackathon escrows a new prize pool for the calling organizer.
func (s *LedgerService) CreateHackathon(ctx context.Context, caller string, req *domain.CreateHackathonRequest) (*domain.CreateHackathonResponse, error) {
	h, err := s.ledger.CreateHackathon(ctx, caller, req.Token, req.TotalPrizePool)
	if err != nil {
		return nil, err
	}

	s.saveHackathon(*h)
	s.invalidate(s.keyStats())

	return &domain.CreateHackathonResponse{
		HackathonID:    h.ID,
		Token:          h.Token,
		TotalPrizePool: h.TotalPrizePool,
		Organizer:      h.Organizer,
	}, nil
}

// SetPrizes records allocations for the calling judge.
func (s *LedgerService) SetPrizes(ctx context.Context, caller string, hackathonID int64, req *domain.SetPrizesRequest) (*domain.SetPrizesResponse, error) {
	h, updated, err := s.ledger.SetPrizes(ctx, caller, hackathonID, req.Winners, req.Amounts)
	if err != nil {
		return nil, err
	}

	s.saveHackathon(*h)
	s.saveAllocations(updated)
	keys := []string{s.keyHackathonInfo(hackathonID)}
	for _, a := range updated {
		keys = append(keys, s.keyPrizeAmount(hackathonID, a.Winner))
	}
	s.invalidate(keys...)

	return &domain.SetPrizesResponse{
		HackathonID:    hackathonID,
		TotalAllocated: h.TotalAllocated,
	}, nil
}

// ClaimPrize pays the calling winner their pending allocation.
func (s *LedgerService) ClaimPrize(ctx context.Context, caller string, hackathonID int64) (*domain.ClaimPrizeResponse, error) {
	alloc, err := s.ledger.ClaimPrize(ctx, caller, hackathonID)
	if err != nil {
		return nil, err
	}

	s.saveAllocations([]domain.Allocation{*alloc})
	s.invalidate(s.keyPrizeAmount(hackathonID, alloc.Winner), s.keyStats())

	return &domain.ClaimPrizeResponse{
		HackathonID: hackathonID,
		Winner:      alloc.Winner,
		Amount:      alloc.Amount,
		ClaimedAt:   time.Now().UTC(),
	}, nil
}

// BatchDistribute pushes pending allocations to the listed winners on
// behalf of the organizer. Allocations paid before a mid-batch failure are
// journaled even when the batch itself returns an error.
func (s *LedgerService) BatchDistribute(ctx context.Context, caller string, hackathonID int64, req *domain.BatchDistributeRequest) (*domain.BatchDistributeResponse, error) {
	paid, totalPaid, err := s.ledger.BatchDistribute(ctx, caller, hackathonID, req.Winners)

	if len(paid) > 0 {
		allocs := make([]domain.Allocation, 0, len(paid))
		keys := []string{s.keyStats()}
		for _, w := range paid {
			amount, claimed, viewErr := s.ledger.PrizeAmount(hackathonID, w)
			if viewErr == nil && claimed {
				allocs = append(allocs, domain.Allocation{
					HackathonID: hackathonID,
					Winner:      w,
					Amount:      amount,
					Claimed:     true,
				})
			}
			keys = append(keys, s.keyPrizeAmount(hackathonID, w))
		}
		s.saveAllocations(allocs)
		s.invalidate(keys...)
	}

	if err != nil {
		return nil, err
	}

	return &domain.BatchDistributeResponse{
		HackathonID: hackathonID,
		Paid:        paid,
		TotalPaid:   totalPaid,
	}, nil
}

// DeactivateHackathon closes a hackathon on behalf of the organizer.
func (s *LedgerService) DeactivateHackathon(ctx context.Context, caller string, hackathonID int64) error {
	h, err := s.ledger.DeactivateHackathon(ctx, caller, hackathonID)
	if err != nil {
		return err
	}

	s.saveHackathon(*h)
	s.invalidate(s.keyHackathonInfo(hackathonID))
	return nil
}

// EmergencyWithdraw moves funds out of custody for the admin.
func (s *LedgerService) EmergencyWithdraw(ctx context.Context, caller string, req *domain.EmergencyWithdrawRequest) error {
	return s.ledger.EmergencyWithdraw(ctx, caller, req.Token, req.To, req.Amount)
}

// Pause freezes the fund-moving operations.
func (s *LedgerService) Pause(caller string) error {
	if err := s.ledger.Pause(caller); err != nil {
		return err
	}
	s.invalidate(s.keyStats())
	return nil
}

// Unpause lifts the pause flag.
func (s *LedgerService) Unpause(caller string) error {
	if err := s.ledger.Unpause(caller); err != nil {
		return err
	}
	s.invalidate(s.keyStats())
	return nil
}

// GetHackathonInfo returns the hackathon view, cache-aside.
func (s *LedgerService) GetHackathonInfo(ctx context.Context, hackathonID int64) (*domain.HackathonInfo, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, s.keyHackathonInfo(hackathonID)); err == nil && cached != "" {
			var info domain.HackathonInfo
			if err := json.Unmarshal([]byte(cached), &info); err == nil {
				return &info, nil
			}
		}
	}

	info, err := s.ledger.HackathonInfo(hackathonID)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(s.keyHackathonInfo(hackathonID), info, redis.TTLHackathonInfo)
	return info, nil
}

// GetPrizeAmount returns the per-winner allocation view, cache-aside.
func (s *LedgerService) GetPrizeAmount(ctx context.Context, hackathonID int64, winner string) (*domain.PrizeAmountResponse, error) {
	key := s.keyPrizeAmount(hackathonID, winner)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key); err == nil && cached != "" {
			var resp domain.PrizeAmountResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				return &resp, nil
			}
		}
	}

	amount, claimed, err := s.ledger.PrizeAmount(hackathonID, winner)
	if err != nil {
		return nil, err
	}

	resp := &domain.PrizeAmountResponse{
		HackathonID: hackathonID,
		Winner:      winner,
		Amount:      amount,
		Claimed:     claimed,
	}
	s.cacheJSON(key, resp, redis.TTLPrizeAmount)
	return resp, nil
}

// CanClaim reports current claim eligibility. Never cached: the answer
// gates user-visible claim buttons and must be fresh.
func (s *LedgerService) CanClaim(ctx context.Context, hackathonID int64, winner string) *domain.CanClaimResponse {
	amount := int64(0)
	if a, _, err := s.ledger.PrizeAmount(hackathonID, winner); err == nil {
		amount = a
	}
	return &domain.CanClaimResponse{
		HackathonID: hackathonID,
		Winner:      winner,
		CanClaim:    s.ledger.CanClaim(hackathonID, winner),
		Amount:      amount,
	}
}

// GetStats returns the global counters, cache-aside.
func (s *LedgerService) GetStats(ctx context.Context) *domain.LedgerStats {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, s.keyStats()); err == nil && cached != "" {
			var stats domain.LedgerStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats
			}
		}
	}

	stats := s.ledger.Stats()
	s.cacheJSON(s.keyStats(), &stats, redis.TTLStats)
	return &stats
}

// GetEvents returns journaled events for one hackathon.
func (s *LedgerService) GetEvents(ctx context.Context, hackathonID int64, limit int) ([]domain.LedgerEvent, error) {
	if s.repo == nil {
		return []domain.LedgerEvent{}, nil
	}
	events, err := s.repo.EventsByHackathon(ctx, hackathonID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.LedgerEvent{}
	}
	return events, nil
}

// journalEvent is the engine's event sink.
func (s *LedgerService) journalEvent(e domain.LedgerEvent) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.AppendEvent(ctx, e); err != nil {
		s.log.WithError(err).WithField("event_type", e.Type).Warn("failed to journal ledger event")
	}
}

func (s *LedgerService) saveHackathon(h domain.Hackathon) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.SaveHackathon(ctx, h); err != nil {
		s.log.WithError(err).WithField("hackathon_id", h.ID).Warn("failed to journal hackathon")
	}
}

func (s *LedgerService) saveAllocations(allocs []domain.Allocation) {
	if s.repo == nil || len(allocs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.SaveAllocations(ctx, allocs); err != nil {
		s.log.WithError(err).Warn("failed to journal allocations")
	}
}

func (s *LedgerService) cacheJSON(key string, v any, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Written synchronously so an invalidation issued after this call can
	// never race a stale write.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.redis.Set(ctx, key, string(data), ttl)
}

func (s *LedgerService) invalidate(keys ...string) {
	if s.redis == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.redis.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).Warn("failed to invalidate cache keys")
	}
}

func (s *LedgerService) keyHackathonInfo(id int64) string {
	if s.redis == nil {
		return ""
	}
	return s.redis.KeyBuilder.KeyHackathonInfo(id)
}

func (s *LedgerService) keyPrizeAmount(id int64, winner string) string {
	if s.redis == nil {
		return ""
	}
	return s.redis.KeyBuilder.KeyPrizeAmount(id, winner)
}

func (s *LedgerService) keyStats() string {
	if s.redis == nil {
		return ""
	}
	return s.redis.KeyBuilder.KeyStats()
}
