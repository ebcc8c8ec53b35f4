package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prizeledger/internal/authz"
	"prizeledger/internal/domain"
	"prizeledger/internal/token"
	apperrors "prizeledger/pkg/errors"
	"prizeledger/pkg/logger"
)

const (
	escrow    = "0x000000000000000000000000000000000000e5c0"
	usdc      = "0x00000000000000000000000000000000000005dc"
	admin     = "0x00000000000000000000000000000000000000ad"
	organizer = "0x000000000000000000000000000000000000006f"
	judge     = "0x000000000000000000000000000000000000007e"
	pauser    = "0x00000000000000000000000000000000000000fa"
	winner1   = "0x0000000000000000000000000000000000000111"
	winner2   = "0x0000000000000000000000000000000000000222"
	winner3   = "0x0000000000000000000000000000000000000333"
	outsider  = "0x0000000000000000000000000000000000000999"
)

const prizePool = int64(100000)

type fixture struct {
	ledger *Ledger
	bank   *token.Bank
	auth   *authz.Registry
	events []domain.LedgerEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := authz.NewRegistry(admin)
	require.NoError(t, reg.Grant(admin, domain.RoleOrganizer, organizer))
	require.NoError(t, reg.Grant(admin, domain.RoleJudge, judge))
	require.NoError(t, reg.Grant(admin, domain.RolePauser, pauser))

	bank := token.NewBank()
	bank.Mint(usdc, organizer, prizePool*2)
	bank.Approve(usdc, organizer, escrow, prizePool*2)

	f := &fixture{bank: bank, auth: reg}
	f.ledger = New(escrow, bank, reg, logger.NewNop())
	f.ledger.OnEvent(func(e domain.LedgerEvent) {
		f.events = append(f.events, e)
	})
	return f
}

// createHackathon is a shorthand for the common fixture step.
func (f *fixture) createHackathon(t *testing.T) int64 {
	t.Helper()
	h, err := f.ledger.CreateHackathon(context.Background(), organizer, usdc, prizePool)
	require.NoError(t, err)
	return h.ID
}

func (f *fixture) lastEvent() domain.LedgerEvent {
	return f.events[len(f.events)-1]
}

func TestCreateHackathon(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a hackathon and escrows the pool", func(t *testing.T) {
		f := newFixture(t)

		h, err := f.ledger.CreateHackathon(ctx, organizer, usdc, prizePool)
		require.NoError(t, err)
		assert.Equal(t, int64(0), h.ID)
		assert.Equal(t, usdc, h.Token)
		assert.Equal(t, prizePool, h.TotalPrizePool)
		assert.True(t, h.Active)
		assert.Equal(t, int64(0), h.TotalAllocated)
		assert.Equal(t, organizer, h.Organizer)

		assert.Equal(t, prizePool, f.bank.BalanceOf(usdc, escrow))
		assert.Equal(t, prizePool, f.bank.BalanceOf(usdc, organizer))

		stats := f.ledger.Stats()
		assert.Equal(t, int64(1), stats.HackathonCount)
		assert.Equal(t, int64(0), stats.TotalDistributed)

		e := f.lastEvent()
		assert.Equal(t, domain.EventHackathonCreated, e.Type)
		assert.Equal(t, organizer, e.Payload["organizer"])
	})

	t.Run("assigns sequential ids", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 1000)
		require.NoError(t, err)
		second, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), first.ID)
		assert.Equal(t, int64(1), second.ID)
	})

	t.Run("rejects zero token address", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateHackathon(ctx, organizer, domain.ZeroAddress, prizePool)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
	})

	t.Run("rejects zero prize pool", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 0)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidPrizePool))
	})

	t.Run("rejects negative prize pool", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateHackathon(ctx, organizer, usdc, -1)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidPrizePool))
	})

	t.Run("rejects caller without organizer role", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.CreateHackathon(ctx, outsider, usdc, prizePool)
		assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	})

	t.Run("fails atomically when the escrow pull fails", func(t *testing.T) {
		f := newFixture(t)
		f.bank.Approve(usdc, organizer, escrow, 0)

		_, err := f.ledger.CreateHackathon(ctx, organizer, usdc, prizePool)
		require.True(t, apperrors.IsKind(err, apperrors.KindTransferFailed))
		assert.ErrorIs(t, err, token.ErrInsufficientAllowance)
		assert.Equal(t, int64(0), f.ledger.Stats().HackathonCount)
	})

	t.Run("rejected while paused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.ledger.Pause(pauser))

		_, err := f.ledger.CreateHackathon(ctx, organizer, usdc, prizePool)
		assert.True(t, apperrors.IsKind(err, apperrors.KindContractPaused))
	})
}

func TestSetPrizes(t *testing.T) {
	ctx := context.Background()

	t.Run("records allocations within the pool", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		h, allocs, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1, winner2}, []int64{50000, 30000})
		require.NoError(t, err)
		assert.Equal(t, int64(80000), h.TotalAllocated)
		assert.Len(t, allocs, 2)

		amount, claimed, err := f.ledger.PrizeAmount(id, winner1)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), amount)
		assert.False(t, claimed)

		e := f.lastEvent()
		assert.Equal(t, domain.EventPrizesSet, e.Type)
	})

	t.Run("rejects mismatched array lengths", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1, winner2}, []int64{50000})
		assert.True(t, apperrors.IsKind(err, apperrors.KindArrayLengthMismatch))
	})

	t.Run("rejects empty arrays", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, judge, id, nil, nil)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("rejects zero winner address", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{domain.ZeroAddress}, []int64{1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidAddress))
	})

	t.Run("allocating exactly the pool succeeds", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		h, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{prizePool})
		require.NoError(t, err)
		assert.Equal(t, prizePool, h.TotalAllocated)
	})

	t.Run("allocating one unit over the pool fails", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{prizePool + 1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindExceedsPrizePool))
	})

	t.Run("re-allocation replaces the pending amount", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{60000})
		require.NoError(t, err)

		// 60000 pending + replacing with 70000 must not read as 130000.
		h, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{70000})
		require.NoError(t, err)
		assert.Equal(t, int64(70000), h.TotalAllocated)

		amount, _, err := f.ledger.PrizeAmount(id, winner1)
		require.NoError(t, err)
		assert.Equal(t, int64(70000), amount)
	})

	t.Run("duplicate winner within one call overwrites", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		h, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1, winner1}, []int64{90000, 20000})
		require.NoError(t, err)
		assert.Equal(t, int64(20000), h.TotalAllocated)
	})

	t.Run("rejects a winner who has already claimed", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{10000})
		require.NoError(t, err)
		_, err = f.ledger.ClaimPrize(ctx, winner1, id)
		require.NoError(t, err)

		_, _, err = f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{20000})
		assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyClaimed))

		// Accounting untouched by the rejected call.
		info, err := f.ledger.HackathonInfo(id)
		require.NoError(t, err)
		assert.Equal(t, int64(10000), info.TotalAllocated)
	})

	t.Run("rejects unknown hackathon", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.ledger.SetPrizes(ctx, judge, 42, []string{winner1}, []int64{1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotFound))
	})

	t.Run("rejects deactivated hackathon", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)
		_, err := f.ledger.DeactivateHackathon(ctx, organizer, id)
		require.NoError(t, err)

		_, _, err = f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotActive))
	})

	t.Run("rejects caller without judge role", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, _, err := f.ledger.SetPrizes(ctx, organizer, id, []string{winner1}, []int64{1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	})
}

func TestClaimPrize(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, int64) {
		f := newFixture(t)
		id := f.createHackathon(t)
		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1, winner2}, []int64{50000, 30000})
		require.NoError(t, err)
		return f, id
	}

	t.Run("pays the caller exactly once", func(t *testing.T) {
		f, id := setup(t)

		alloc, err := f.ledger.ClaimPrize(ctx, winner1, id)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), alloc.Amount)
		assert.True(t, alloc.Claimed)

		assert.Equal(t, int64(50000), f.bank.BalanceOf(usdc, winner1))
		assert.Equal(t, prizePool-50000, f.bank.BalanceOf(usdc, escrow))
		assert.Equal(t, int64(50000), f.ledger.Stats().TotalDistributed)
		assert.False(t, f.ledger.CanClaim(id, winner1))

		e := f.lastEvent()
		assert.Equal(t, domain.EventPrizeClaimed, e.Type)
		assert.Equal(t, winner1, e.Payload["winner"])
	})

	t.Run("second claim fails with AlreadyClaimed", func(t *testing.T) {
		f, id := setup(t)

		_, err := f.ledger.ClaimPrize(ctx, winner1, id)
		require.NoError(t, err)
		_, err = f.ledger.ClaimPrize(ctx, winner1, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyClaimed))
		assert.Equal(t, int64(50000), f.bank.BalanceOf(usdc, winner1))
	})

	t.Run("caller without allocation fails", func(t *testing.T) {
		f, id := setup(t)
		_, err := f.ledger.ClaimPrize(ctx, outsider, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindNoPrizeAllocated))
	})

	t.Run("deactivated hackathon blocks claiming", func(t *testing.T) {
		f, id := setup(t)
		_, err := f.ledger.DeactivateHackathon(ctx, organizer, id)
		require.NoError(t, err)

		_, err = f.ledger.ClaimPrize(ctx, winner2, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotActive))
	})

	t.Run("rejected while paused", func(t *testing.T) {
		f, id := setup(t)
		require.NoError(t, f.ledger.Pause(pauser))

		_, err := f.ledger.ClaimPrize(ctx, winner1, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindContractPaused))
	})

	t.Run("unknown hackathon fails", func(t *testing.T) {
		f, _ := setup(t)
		_, err := f.ledger.ClaimPrize(ctx, winner1, 42)
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotFound))
	})
}

// brokenToken fails every outbound transfer to exercise rollback.
type brokenToken struct {
	token.Token
	fail bool
}

func (b *brokenToken) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	if b.fail {
		return errors.New("token endpoint unreachable")
	}
	return b.Token.Transfer(ctx, asset, from, to, amount)
}

func TestClaimPrize_TransferFailureRollsBack(t *testing.T) {
	ctx := context.Background()

	reg := authz.NewRegistry(admin)
	require.NoError(t, reg.Grant(admin, domain.RoleOrganizer, organizer))
	require.NoError(t, reg.Grant(admin, domain.RoleJudge, judge))

	bank := token.NewBank()
	bank.Mint(usdc, organizer, prizePool)
	bank.Approve(usdc, organizer, escrow, prizePool)
	broken := &brokenToken{Token: bank}

	led := New(escrow, broken, reg, logger.NewNop())
	h, err := led.CreateHackathon(ctx, organizer, usdc, prizePool)
	require.NoError(t, err)
	_, _, err = led.SetPrizes(ctx, judge, h.ID, []string{winner1}, []int64{50000})
	require.NoError(t, err)

	broken.fail = true
	_, err = led.ClaimPrize(ctx, winner1, h.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindTransferFailed))

	// The failed claim must leave no trace: the allocation is still
	// claimable and nothing was counted as distributed.
	assert.Equal(t, int64(0), led.Stats().TotalDistributed)
	assert.True(t, led.CanClaim(h.ID, winner1))

	broken.fail = false
	alloc, err := led.ClaimPrize(ctx, winner1, h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), alloc.Amount)
	assert.Equal(t, int64(50000), bank.BalanceOf(usdc, winner1))
}

// reentrantToken calls back into ClaimPrize from inside Transfer, the way
// a malicious token contract would re-enter the claim path.
type reentrantToken struct {
	token.Token
	ledger      *Ledger
	hackathonID int64
	winner      string
	attempted   bool
	reentryErr  error
	transfers   int
}

func (m *reentrantToken) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	if !m.attempted {
		m.attempted = true
		_, m.reentryErr = m.ledger.ClaimPrize(ctx, m.winner, m.hackathonID)
	}
	m.transfers++
	return m.Token.Transfer(ctx, asset, from, to, amount)
}

func TestClaimPrize_ReentrantClaimPaysOnce(t *testing.T) {
	ctx := context.Background()

	reg := authz.NewRegistry(admin)
	require.NoError(t, reg.Grant(admin, domain.RoleOrganizer, organizer))
	require.NoError(t, reg.Grant(admin, domain.RoleJudge, judge))

	bank := token.NewBank()
	bank.Mint(usdc, organizer, prizePool)
	bank.Approve(usdc, organizer, escrow, prizePool)
	malicious := &reentrantToken{Token: bank, winner: winner1}

	led := New(escrow, malicious, reg, logger.NewNop())
	malicious.ledger = led

	h, err := led.CreateHackathon(ctx, organizer, usdc, prizePool)
	require.NoError(t, err)
	malicious.hackathonID = h.ID
	_, _, err = led.SetPrizes(ctx, judge, h.ID, []string{winner1}, []int64{50000})
	require.NoError(t, err)

	_, err = led.ClaimPrize(ctx, winner1, h.ID)
	require.NoError(t, err)

	// The nested claim must have observed the committed claimed flag.
	assert.True(t, malicious.attempted)
	require.Error(t, malicious.reentryErr)
	assert.True(t, apperrors.IsKind(malicious.reentryErr, apperrors.KindAlreadyClaimed))

	assert.Equal(t, int64(50000), bank.BalanceOf(usdc, winner1))
	assert.Equal(t, int64(50000), led.Stats().TotalDistributed)
}

func TestBatchDistribute(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, int64) {
		f := newFixture(t)
		id := f.createHackathon(t)
		_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1, winner2}, []int64{50000, 30000})
		require.NoError(t, err)
		return f, id
	}

	t.Run("pays every eligible winner", func(t *testing.T) {
		f, id := setup(t)

		paid, total, err := f.ledger.BatchDistribute(ctx, organizer, id, []string{winner1, winner2})
		require.NoError(t, err)
		assert.Equal(t, []string{winner1, winner2}, paid)
		assert.Equal(t, int64(80000), total)
		assert.Equal(t, int64(50000), f.bank.BalanceOf(usdc, winner1))
		assert.Equal(t, int64(30000), f.bank.BalanceOf(usdc, winner2))
		assert.Equal(t, int64(80000), f.ledger.Stats().TotalDistributed)
	})

	t.Run("silently skips claimed and unallocated winners", func(t *testing.T) {
		f, id := setup(t)

		_, err := f.ledger.ClaimPrize(ctx, winner1, id)
		require.NoError(t, err)

		paid, total, err := f.ledger.BatchDistribute(ctx, organizer, id, []string{winner1, winner3, winner2})
		require.NoError(t, err)
		assert.Equal(t, []string{winner2}, paid)
		assert.Equal(t, int64(30000), total)
		assert.Equal(t, int64(50000), f.bank.BalanceOf(usdc, winner1))
	})

	t.Run("re-invocation over a processed list is a no-op", func(t *testing.T) {
		f, id := setup(t)

		_, _, err := f.ledger.BatchDistribute(ctx, organizer, id, []string{winner1, winner2})
		require.NoError(t, err)
		paid, total, err := f.ledger.BatchDistribute(ctx, organizer, id, []string{winner1, winner2})
		require.NoError(t, err)
		assert.Empty(t, paid)
		assert.Equal(t, int64(0), total)
		assert.Equal(t, int64(80000), f.ledger.Stats().TotalDistributed)
	})

	t.Run("fails on deactivated hackathon", func(t *testing.T) {
		f, id := setup(t)
		_, err := f.ledger.DeactivateHackathon(ctx, organizer, id)
		require.NoError(t, err)

		_, _, err = f.ledger.BatchDistribute(ctx, organizer, id, []string{winner1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotActive))
	})

	t.Run("requires the organizer role", func(t *testing.T) {
		f, id := setup(t)
		_, _, err := f.ledger.BatchDistribute(ctx, judge, id, []string{winner1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	})

	t.Run("rejected while paused", func(t *testing.T) {
		f, id := setup(t)
		require.NoError(t, f.ledger.Pause(pauser))

		_, _, err := f.ledger.BatchDistribute(ctx, organizer, id, []string{winner1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindContractPaused))
	})
}

func TestBatchDistribute_TransferFailureKeepsEarlierPayments(t *testing.T) {
	ctx := context.Background()

	reg := authz.NewRegistry(admin)
	require.NoError(t, reg.Grant(admin, domain.RoleOrganizer, organizer))
	require.NoError(t, reg.Grant(admin, domain.RoleJudge, judge))

	bank := token.NewBank()
	bank.Mint(usdc, organizer, prizePool)
	bank.Approve(usdc, organizer, escrow, prizePool)

	failOn := &selectiveToken{Token: bank, failFor: winner2}
	led := New(escrow, failOn, reg, logger.NewNop())

	h, err := led.CreateHackathon(ctx, organizer, usdc, prizePool)
	require.NoError(t, err)
	_, _, err = led.SetPrizes(ctx, judge, h.ID, []string{winner1, winner2}, []int64{50000, 30000})
	require.NoError(t, err)

	paid, total, err := led.BatchDistribute(ctx, organizer, h.ID, []string{winner1, winner2})
	require.True(t, apperrors.IsKind(err, apperrors.KindTransferFailed))
	assert.Equal(t, []string{winner1}, paid)
	assert.Equal(t, int64(50000), total)

	// winner1 stays paid; winner2's failed mark was rolled back and the
	// batch can be re-run once the transfer path recovers.
	assert.Equal(t, int64(50000), led.Stats().TotalDistributed)
	assert.True(t, led.CanClaim(h.ID, winner2))
	assert.False(t, led.CanClaim(h.ID, winner1))

	failOn.failFor = ""
	paid, total, err = led.BatchDistribute(ctx, organizer, h.ID, []string{winner1, winner2})
	require.NoError(t, err)
	assert.Equal(t, []string{winner2}, paid)
	assert.Equal(t, int64(30000), total)
	assert.Equal(t, int64(80000), led.Stats().TotalDistributed)
}

// selectiveToken fails transfers to one specific recipient.
type selectiveToken struct {
	token.Token
	failFor string
}

func (s *selectiveToken) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	if s.failFor != "" && to == s.failFor {
		return errors.New("token endpoint unreachable")
	}
	return s.Token.Transfer(ctx, asset, from, to, amount)
}

func TestDeactivateHackathon(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivation is terminal", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		h, err := f.ledger.DeactivateHackathon(ctx, organizer, id)
		require.NoError(t, err)
		assert.False(t, h.Active)
		assert.Equal(t, domain.EventHackathonDeactivated, f.lastEvent().Type)

		_, err = f.ledger.DeactivateHackathon(ctx, organizer, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotActive))
	})

	t.Run("requires the organizer role", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)

		_, err := f.ledger.DeactivateHackathon(ctx, judge, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	})

	t.Run("works while paused", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)
		require.NoError(t, f.ledger.Pause(pauser))

		_, err := f.ledger.DeactivateHackathon(ctx, organizer, id)
		assert.NoError(t, err)
	})
}

func TestEmergencyWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds out of custody", func(t *testing.T) {
		f := newFixture(t)
		f.createHackathon(t)

		require.NoError(t, f.ledger.EmergencyWithdraw(ctx, admin, usdc, outsider, 10000))
		assert.Equal(t, int64(10000), f.bank.BalanceOf(usdc, outsider))
		assert.Equal(t, prizePool-10000, f.bank.BalanceOf(usdc, escrow))
		assert.Equal(t, domain.EventEmergencyWithdraw, f.lastEvent().Type)
	})

	t.Run("admin only", func(t *testing.T) {
		f := newFixture(t)
		f.createHackathon(t)

		err := f.ledger.EmergencyWithdraw(ctx, organizer, usdc, outsider, 10000)
		assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	})

	t.Run("validates inputs", func(t *testing.T) {
		f := newFixture(t)
		f.createHackathon(t)

		err := f.ledger.EmergencyWithdraw(ctx, admin, domain.ZeroAddress, outsider, 1)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))

		err = f.ledger.EmergencyWithdraw(ctx, admin, usdc, domain.ZeroAddress, 1)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidAddress))

		err = f.ledger.EmergencyWithdraw(ctx, admin, usdc, outsider, 0)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("works while paused", func(t *testing.T) {
		f := newFixture(t)
		f.createHackathon(t)
		require.NoError(t, f.ledger.Pause(pauser))

		assert.NoError(t, f.ledger.EmergencyWithdraw(ctx, admin, usdc, outsider, 1))
	})
}

func TestPauseUnpause(t *testing.T) {
	t.Run("requires the pauser role", func(t *testing.T) {
		f := newFixture(t)
		err := f.ledger.Pause(organizer)
		assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))
	})

	t.Run("pause and unpause round trip", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.ledger.Pause(pauser))
		assert.True(t, f.ledger.Paused())

		require.NoError(t, f.ledger.Unpause(pauser))
		assert.False(t, f.ledger.Paused())
	})

	t.Run("double pause and spurious unpause fail", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.ledger.Pause(pauser))
		assert.Error(t, f.ledger.Pause(pauser))

		require.NoError(t, f.ledger.Unpause(pauser))
		assert.Error(t, f.ledger.Unpause(pauser))
	})

	t.Run("views stay available while paused", func(t *testing.T) {
		f := newFixture(t)
		id := f.createHackathon(t)
		require.NoError(t, f.ledger.Pause(pauser))

		info, err := f.ledger.HackathonInfo(id)
		require.NoError(t, err)
		assert.Equal(t, prizePool, info.TotalPrizePool)
		assert.True(t, f.ledger.Stats().Paused)
	})
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.createHackathon(t)
	_, _, err := f.ledger.SetPrizes(ctx, judge, id, []string{winner1}, []int64{50000})
	require.NoError(t, err)

	t.Run("canClaim tracks eligibility", func(t *testing.T) {
		assert.True(t, f.ledger.CanClaim(id, winner1))
		assert.False(t, f.ledger.CanClaim(id, winner2))
		assert.False(t, f.ledger.CanClaim(42, winner1))
	})

	t.Run("prize amount is zero for unallocated winners", func(t *testing.T) {
		amount, claimed, err := f.ledger.PrizeAmount(id, winner2)
		require.NoError(t, err)
		assert.Equal(t, int64(0), amount)
		assert.False(t, claimed)
	})

	t.Run("hackathon info for unknown id fails", func(t *testing.T) {
		_, err := f.ledger.HackathonInfo(42)
		assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotFound))
	})
}

// TestLedgerLifecycle walks the full scenario: create with a 100000 pool,
// allocate 50000/30000, claim, double-claim, deactivate, over-allocate.
func TestLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	h, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 100000)
	require.NoError(t, err)
	info, err := f.ledger.HackathonInfo(h.ID)
	require.NoError(t, err)
	assert.Equal(t, &domain.HackathonInfo{TotalPrizePool: 100000, Token: usdc, Active: true, TotalAllocated: 0}, info)

	_, _, err = f.ledger.SetPrizes(ctx, judge, h.ID, []string{winner1, winner2}, []int64{50000, 30000})
	require.NoError(t, err)
	amount, _, err := f.ledger.PrizeAmount(h.ID, winner1)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)
	info, err = f.ledger.HackathonInfo(h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80000), info.TotalAllocated)

	alloc, err := f.ledger.ClaimPrize(ctx, winner1, h.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), alloc.Amount)
	assert.Equal(t, int64(50000), f.bank.BalanceOf(usdc, winner1))
	assert.False(t, f.ledger.CanClaim(h.ID, winner1))
	assert.Equal(t, int64(50000), f.ledger.Stats().TotalDistributed)

	_, err = f.ledger.ClaimPrize(ctx, winner1, h.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyClaimed))

	_, err = f.ledger.DeactivateHackathon(ctx, organizer, h.ID)
	require.NoError(t, err)
	_, err = f.ledger.ClaimPrize(ctx, winner2, h.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindHackathonNotActive))

	fresh, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 100000)
	require.NoError(t, err)
	_, _, err = f.ledger.SetPrizes(ctx, judge, fresh.ID, []string{winner3}, []int64{100001})
	assert.True(t, apperrors.IsKind(err, apperrors.KindExceedsPrizePool))
}

// TestLedgerInvariants drives a mixed operation sequence and checks the
// global accounting identities after every step.
func TestLedgerInvariants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	type step func() // each step may fail; invariants must hold regardless

	var ids []int64
	claimed := map[string]int64{} // "id:winner" -> amount paid

	checkInvariants := func() {
		t.Helper()
		var sumClaimed int64
		for _, amt := range claimed {
			sumClaimed += amt
		}
		assert.Equal(t, sumClaimed, f.ledger.Stats().TotalDistributed)
		for _, id := range ids {
			info, err := f.ledger.HackathonInfo(id)
			require.NoError(t, err)
			assert.LessOrEqual(t, info.TotalAllocated, info.TotalPrizePool)
		}
	}

	steps := []step{
		func() {
			h, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 40000)
			require.NoError(t, err)
			ids = append(ids, h.ID)
		},
		func() {
			_, _, _ = f.ledger.SetPrizes(ctx, judge, ids[0], []string{winner1, winner2}, []int64{25000, 15000})
		},
		func() {
			_, _, _ = f.ledger.SetPrizes(ctx, judge, ids[0], []string{winner1}, []int64{50000}) // exceeds, rejected
		},
		func() {
			if _, err := f.ledger.ClaimPrize(ctx, winner1, ids[0]); err == nil {
				claimed["0:"+winner1] = 25000
			}
		},
		func() {
			_, _, _ = f.ledger.SetPrizes(ctx, judge, ids[0], []string{winner2}, []int64{10000}) // replace down
		},
		func() {
			h, err := f.ledger.CreateHackathon(ctx, organizer, usdc, 60000)
			require.NoError(t, err)
			ids = append(ids, h.ID)
		},
		func() {
			_, _, _ = f.ledger.SetPrizes(ctx, judge, ids[1], []string{winner3}, []int64{60000})
		},
		func() {
			paid, _, err := f.ledger.BatchDistribute(ctx, organizer, ids[1], []string{winner3, winner1})
			require.NoError(t, err)
			for _, w := range paid {
				claimed["1:"+w] = 60000
			}
		},
		func() {
			if _, err := f.ledger.ClaimPrize(ctx, winner2, ids[0]); err == nil {
				claimed["0:"+winner2] = 10000
			}
		},
	}

	for i, s := range steps {
		s()
		checkInvariants()
		_ = i
	}

	// Final cross-check against token balances: escrow holds what was
	// pooled minus what was paid out.
	var sumClaimed int64
	for _, amt := range claimed {
		sumClaimed += amt
	}
	assert.Equal(t, int64(40000+60000)-sumClaimed, f.bank.BalanceOf(usdc, escrow))
}

func TestRestore(t *testing.T) {
	f := newFixture(t)

	hackathons := []domain.Hackathon{
		{ID: 0, Token: usdc, TotalPrizePool: 100000, Active: true, TotalAllocated: 80000, Organizer: organizer},
		{ID: 1, Token: usdc, TotalPrizePool: 50000, Active: false, TotalAllocated: 50000, Organizer: organizer},
	}
	allocations := []domain.Allocation{
		{HackathonID: 0, Winner: winner1, Amount: 50000, Claimed: true},
		{HackathonID: 0, Winner: winner2, Amount: 30000, Claimed: false},
		{HackathonID: 1, Winner: winner3, Amount: 50000, Claimed: true},
	}

	f.ledger.Restore(hackathons, allocations)

	stats := f.ledger.Stats()
	assert.Equal(t, int64(2), stats.HackathonCount)
	assert.Equal(t, int64(100000), stats.TotalDistributed)

	assert.False(t, f.ledger.CanClaim(0, winner1))
	assert.True(t, f.ledger.CanClaim(0, winner2))
	assert.False(t, f.ledger.CanClaim(1, winner3))

	amount, claimedFlag, err := f.ledger.PrizeAmount(0, winner1)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)
	assert.True(t, claimedFlag)
}
