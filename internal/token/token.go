package token

import (
	"context"
	"errors"
)

// Transfer failures surfaced by any Token implementation.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownAsset          = errors.New("unknown asset")
)

// Token moves units of external fungible assets between accounts. The
// ledger treats any returned error as a hard failure of the enclosing
// operation. Implementations may hand control to arbitrary code, so
// callers must commit their own state before invoking a transfer.
type Token interface {
	// Transfer moves amount of asset from the caller-owned account to `to`.
	Transfer(ctx context.Context, asset, from, to string, amount int64) error

	// TransferFrom moves amount of asset from `owner` to `to`, spending the
	// allowance `owner` granted to `spender`.
	TransferFrom(ctx context.Context, asset, spender, owner, to string, amount int64) error
}
