// Package models defines the core domain types shared across the pool,
// position, and insurance services.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetPair identifies a trading pair. Price is always the base asset
// denominated in the quote asset.
type AssetPair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// String returns the canonical "BASE/QUOTE" form used for cache keys.
func (p AssetPair) String() string {
	return p.Base + "/" + p.Quote
}

// Pool holds the reserve accounting for one trading pair. Real reserves are
// custodied balances; virtual reserves exist only to pair single-sided
// liquidity and are never transferable.
type Pool struct {
	ID              uuid.UUID       `json:"id"`
	AssetA          string          `json:"asset_a"`
	AssetB          string          `json:"asset_b"`
	RealReserveA    decimal.Decimal `json:"real_reserve_a"`
	RealReserveB    decimal.Decimal `json:"real_reserve_b"`
	VirtualReserveA decimal.Decimal `json:"virtual_reserve_a"`
	VirtualReserveB decimal.Decimal `json:"virtual_reserve_b"`
	TotalShares     decimal.Decimal `json:"total_shares"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Pair returns the pool's asset pair, base priced in quote.
func (p *Pool) Pair() AssetPair {
	return AssetPair{Base: p.AssetA, Quote: p.AssetB}
}

// HasAsset reports whether the asset belongs to this pool.
func (p *Pool) HasAsset(asset string) bool {
	return asset == p.AssetA || asset == p.AssetB
}

// OtherAsset returns the counterpart asset of the pool.
func (p *Pool) OtherAsset(asset string) string {
	if asset == p.AssetA {
		return p.AssetB
	}
	return p.AssetA
}

// EffectiveReserve returns real+virtual reserve for the given asset, the
// quantity the constant-product pricing operates on.
func (p *Pool) EffectiveReserve(asset string) decimal.Decimal {
	if asset == p.AssetA {
		return p.RealReserveA.Add(p.VirtualReserveA)
	}
	return p.RealReserveB.Add(p.VirtualReserveB)
}

// RealReserve returns the custodied reserve for the given asset.
func (p *Pool) RealReserve(asset string) decimal.Decimal {
	if asset == p.AssetA {
		return p.RealReserveA
	}
	return p.RealReserveB
}

// PositionKind distinguishes the two liquidity variants. They are modeled as
// a tagged variant so each keeps its own invariant fields.
type PositionKind int

const (
	DualSided PositionKind = iota
	SingleSided
)

func (k PositionKind) String() string {
	switch k {
	case DualSided:
		return "dual_sided"
	case SingleSided:
		return "single_sided"
	}
	return "unknown"
}

// PositionStatus is the position lifecycle state.
type PositionStatus int

const (
	PositionActive PositionStatus = iota
	PositionPendingWithdrawal
	PositionClosed
)

func (s PositionStatus) String() string {
	switch s {
	case PositionActive:
		return "active"
	case PositionPendingWithdrawal:
		return "pending_withdrawal"
	case PositionClosed:
		return "closed"
	}
	return "unknown"
}

// Position is a liquidity position owned by exactly one account.
//
// For SingleSided positions SyntheticAmount is the virtual counterpart
// quantity minted at deposit (or last re-pairing) time; it is bookkeeping
// only and never redeemable. DualSided positions carry DepositedA and
// DepositedB and no synthetic fields.
type Position struct {
	ID     uuid.UUID      `json:"id"`
	Owner  string         `json:"owner"`
	PoolID uuid.UUID      `json:"pool_id"`
	Kind   PositionKind   `json:"kind"`
	Status PositionStatus `json:"status"`

	// DualSided fields.
	DepositedA decimal.Decimal `json:"deposited_a"`
	DepositedB decimal.Decimal `json:"deposited_b"`

	// SingleSided fields.
	DepositedAsset  string          `json:"deposited_asset,omitempty"`
	DepositedAmount decimal.Decimal `json:"deposited_amount"`
	SyntheticAmount decimal.Decimal `json:"synthetic_amount"`

	EntryPrice  decimal.Decimal `json:"entry_price"`
	ShareOfPool decimal.Decimal `json:"share_of_pool"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
}

// PriceSnapshot is one oracle reading, immutable once recorded.
type PriceSnapshot struct {
	Pair       AssetPair       `json:"pair"`
	Price      decimal.Decimal `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
	Confidence decimal.Decimal `json:"confidence"`
}

// SwapQuote is a derived, never-stored pricing result. It is valid only for
// the oracle snapshot and reserve state it was computed from; execution
// re-validates both.
type SwapQuote struct {
	PoolID     uuid.UUID       `json:"pool_id"`
	AssetIn    string          `json:"asset_in"`
	AssetOut   string          `json:"asset_out"`
	AmountIn   decimal.Decimal `json:"amount_in"`
	AmountOut  decimal.Decimal `json:"amount_out"`
	FeeBps     decimal.Decimal `json:"fee_bps"`
	FeeAmount  decimal.Decimal `json:"fee_amount"`
	Volatility decimal.Decimal `json:"volatility"`
	SnapshotAt time.Time       `json:"snapshot_at"`
	QuotedAt   time.Time       `json:"quoted_at"`
}

// SwapResult reports an executed swap.
type SwapResult struct {
	PoolID       uuid.UUID       `json:"pool_id"`
	AssetIn      string          `json:"asset_in"`
	AssetOut     string          `json:"asset_out"`
	AmountIn     decimal.Decimal `json:"amount_in"`
	AmountOut    decimal.Decimal `json:"amount_out"`
	FeeAmount    decimal.Decimal `json:"fee_amount"`
	InsuranceCut decimal.Decimal `json:"insurance_cut"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// RebalanceEvent is an append-only audit record of a virtual-reserve
// adjustment.
type RebalanceEvent struct {
	ID              uuid.UUID       `json:"id"`
	PoolID          uuid.UUID       `json:"pool_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Reason          string          `json:"reason"`
	Price           decimal.Decimal `json:"price"`
	VirtualReserveA decimal.Decimal `json:"virtual_reserve_a"`
	VirtualReserveB decimal.Decimal `json:"virtual_reserve_b"`
}

// ClaimOutcome reports an insurance claim settlement. Paid may be less than
// Requested when the fund is exhausted; that is an expected outcome, not an
// error.
type ClaimOutcome struct {
	PositionID uuid.UUID       `json:"position_id"`
	Owner      string          `json:"owner"`
	Requested  decimal.Decimal `json:"requested"`
	Paid       decimal.Decimal `json:"paid"`
	SettledAt  time.Time       `json:"settled_at"`
}
