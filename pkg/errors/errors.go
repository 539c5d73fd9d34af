// Package errors defines the rejection taxonomy shared by the pool, position,
// and insurance services. Every rejection leaves state exactly as it was
// before the call; callers may retry after correcting the condition.
package errors

import (
	"errors"
	"fmt"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
	New    = errors.New
)

var (
	// ErrInvalidInput rejects non-positive amounts, assets that do not
	// belong to the pool, or malformed requests. Checked before any state
	// change.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDeposit rejects a position open with bad amounts or assets.
	ErrInvalidDeposit = fmt.Errorf("%w: invalid deposit", ErrInvalidInput)

	// ErrInsufficientLiquidity rejects a swap or withdrawal that would
	// drain a reserve below the configured floor.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrOracleUnavailable rejects an operation that needs a usable price
	// when none exists (no data, stale, or below confidence threshold).
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrStalePrice signals the latest snapshot is older than the
	// configured max age.
	ErrStalePrice = errors.New("stale price")

	// ErrStaleQuote rejects execution of a quote older than the configured
	// max quote age.
	ErrStaleQuote = errors.New("stale quote")

	// ErrInsufficientData is the volatility sentinel for windows with fewer
	// than the configured minimum of usable snapshots. Callers fall back to
	// the base fee and skip rebalance triggers.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNoData signals an empty snapshot window for the pair.
	ErrNoData = errors.New("no data")

	// ErrPoolNotFound signals an unknown pool ID.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPositionNotFound signals an unknown position ID.
	ErrPositionNotFound = errors.New("position not found")

	// ErrPositionNotActive rejects mutation of a closed or pending
	// position.
	ErrPositionNotActive = errors.New("position not active")

	// ErrNotOwner rejects an operation by an account that does not own the
	// position.
	ErrNotOwner = errors.New("not position owner")

	// ErrWithdrawalPending signals the withdrawal cooldown has not elapsed
	// yet; the position stays in PendingWithdrawal until it has.
	ErrWithdrawalPending = errors.New("withdrawal cooldown pending")

	// ErrCustody wraps a custody transfer failure. Custody runs before the
	// ledger commit, so the failure never leaves ledger state inconsistent.
	ErrCustody = errors.New("custody transfer failed")
)
