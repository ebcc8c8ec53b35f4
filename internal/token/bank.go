package token

import (
	"context"
	"fmt"
	"sync"
)

// Bank is an in-memory multi-asset Token implementation with balances and
// allowances. It stands in for the external funding-token contract in dev
// mode and tests; production deployments inject a real asset client.
type Bank struct {
	mu         sync.Mutex
	balances   map[string]map[string]int64            // asset -> holder -> balance
	allowances map[string]map[string]map[string]int64 // asset -> owner -> spender -> allowance
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances:   make(map[string]map[string]int64),
		allowances: make(map[string]map[string]map[string]int64),
	}
}

// Mint credits amount of asset to holder.
func (b *Bank) Mint(asset, holder string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[asset] == nil {
		b.balances[asset] = make(map[string]int64)
	}
	b.balances[asset][holder] += amount
}

// Approve lets spender move up to amount of owner's asset.
func (b *Bank) Approve(asset, owner, spender string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allowances[asset] == nil {
		b.allowances[asset] = make(map[string]map[string]int64)
	}
	if b.allowances[asset][owner] == nil {
		b.allowances[asset][owner] = make(map[string]int64)
	}
	b.allowances[asset][owner][spender] = amount
}

// BalanceOf returns holder's balance of asset.
func (b *Bank) BalanceOf(asset, holder string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[asset][holder]
}

// Allowance returns what spender may still move of owner's asset.
func (b *Bank) Allowance(asset, owner, spender string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowances[asset][owner][spender]
}

// Transfer moves amount of asset from `from` to `to`.
func (b *Bank) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, from, to, amount)
}

// TransferFrom moves amount of asset from owner to `to`, consuming the
// allowance owner granted to spender.
func (b *Bank) TransferFrom(ctx context.Context, asset, spender, owner, to string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	allowed := b.allowances[asset][owner][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s allowed %d of %s, needs %d", ErrInsufficientAllowance, spender, allowed, asset, amount)
	}
	if err := b.move(asset, owner, to, amount); err != nil {
		return err
	}
	b.allowances[asset][owner][spender] = allowed - amount
	return nil
}

// move performs the balance update. Caller holds the lock.
func (b *Bank) move(asset, from, to string, amount int64) error {
	holders := b.balances[asset]
	if holders == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	if holders[from] < amount {
		return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientBalance, from, holders[from], asset, amount)
	}
	holders[from] -= amount
	holders[to] += amount
	return nil
}
