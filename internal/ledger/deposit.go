package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/dmath"
	"github.com/nexafin/poolrisk/pkg/errors"
)

// DualDepositResult reports the share issuance for a dual-sided deposit.
type DualDepositResult struct {
	Shares decimal.Decimal
}

// SingleDepositResult reports the accounting for a single-sided deposit.
type SingleDepositResult struct {
	Shares     decimal.Decimal
	Synthetic  decimal.Decimal
	EntryPrice decimal.Decimal
}

// DepositDual adds both real reserves and issues shares. For a non-empty
// pool, shares are proportional to the minimum of the two deposit/reserve
// ratios, so depositing at a skewed ratio cannot mint shares against value
// the depositor did not provide. The first deposit into an empty pool issues
// sqrt(amountA * amountB) shares.
func (s *Service) DepositDual(poolID uuid.UUID, amountA, amountB decimal.Decimal) (DualDepositResult, error) {
	if !amountA.IsPositive() || !amountB.IsPositive() {
		return DualDepositResult{}, errors.ErrInvalidInput
	}
	ps, err := s.poolState(poolID)
	if err != nil {
		return DualDepositResult{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	pool := &ps.pool

	var shares decimal.Decimal
	if pool.TotalShares.IsZero() {
		shares = dmath.Sqrt(amountA.Mul(amountB))
	} else {
		if !pool.RealReserveA.IsPositive() || !pool.RealReserveB.IsPositive() {
			// Shares exist but one real reserve is drained; a dual deposit
			// at any ratio would misprice the claim.
			return DualDepositResult{}, errors.ErrInsufficientLiquidity
		}
		ratioA := amountA.DivRound(pool.RealReserveA, dmath.Precision)
		ratioB := amountB.DivRound(pool.RealReserveB, dmath.Precision)
		shares = pool.TotalShares.Mul(decimal.Min(ratioA, ratioB))
	}

	pool.RealReserveA = pool.RealReserveA.Add(amountA)
	pool.RealReserveB = pool.RealReserveB.Add(amountB)
	pool.TotalShares = pool.TotalShares.Add(shares)

	s.logger.Debug("Dual-sided deposit committed",
		zap.String("pool_id", poolID.String()),
		zap.String("amount_a", amountA.String()),
		zap.String("amount_b", amountB.String()),
		zap.String("shares", shares.String()))
	return DualDepositResult{Shares: shares}, nil
}

// DepositSingle adds one real reserve and mints a synthetic counterpart on
// the virtual reserve of the other side, priced at the latest non-stale
// oracle snapshot. Shares are issued against the real contribution only.
func (s *Service) DepositSingle(positionID, poolID uuid.UUID, asset string, amount decimal.Decimal) (SingleDepositResult, error) {
	if !amount.IsPositive() {
		return SingleDepositResult{}, errors.ErrInvalidInput
	}
	ps, err := s.poolState(poolID)
	if err != nil {
		return SingleDepositResult{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	pool := &ps.pool
	if !pool.HasAsset(asset) {
		return SingleDepositResult{}, errors.ErrInvalidInput
	}

	snap, err := s.usablePrice(pool)
	if err != nil {
		return SingleDepositResult{}, err
	}
	price := snap.Price

	// Synthetic counterpart and deposit value, both in the other asset's
	// units. Price is AssetA denominated in AssetB.
	var synthetic, value decimal.Decimal
	if asset == pool.AssetA {
		synthetic = amount.Mul(price)
		value = synthetic
	} else {
		synthetic = amount.DivRound(price, dmath.Precision)
		value = amount
	}

	var shares decimal.Decimal
	if pool.TotalShares.IsZero() {
		shares = value
	} else {
		realValue := pool.RealReserveA.Mul(price).Add(pool.RealReserveB)
		if !realValue.IsPositive() {
			return SingleDepositResult{}, errors.ErrInsufficientLiquidity
		}
		shares = pool.TotalShares.Mul(value).DivRound(realValue, dmath.Precision)
	}

	if asset == pool.AssetA {
		pool.RealReserveA = pool.RealReserveA.Add(amount)
		pool.VirtualReserveB = pool.VirtualReserveB.Add(synthetic)
	} else {
		pool.RealReserveB = pool.RealReserveB.Add(amount)
		pool.VirtualReserveA = pool.VirtualReserveA.Add(synthetic)
	}
	pool.TotalShares = pool.TotalShares.Add(shares)
	if ps.baseline.IsZero() {
		ps.baseline = price
	}

	ps.singles[positionID] = &singleEntry{
		asset:        asset,
		realAmount:   amount,
		synthetic:    synthetic,
		pairingPrice: price,
	}

	s.logger.Debug("Single-sided deposit committed",
		zap.String("pool_id", poolID.String()),
		zap.String("position_id", positionID.String()),
		zap.String("asset", asset),
		zap.String("amount", amount.String()),
		zap.String("synthetic", synthetic.String()),
		zap.String("shares", shares.String()))
	return SingleDepositResult{Shares: shares, Synthetic: synthetic, EntryPrice: price}, nil
}

// DualWithdrawal reports the reserves returned for burned shares.
type DualWithdrawal struct {
	AmountA decimal.Decimal
	AmountB decimal.Decimal
}

// WithdrawDual burns shares and returns the proportional real reserves.
// Burning every outstanding share empties the pool; a partial withdrawal
// must leave both reserves above the configured floor.
func (s *Service) WithdrawDual(poolID uuid.UUID, sharesBurn decimal.Decimal) (DualWithdrawal, error) {
	if !sharesBurn.IsPositive() {
		return DualWithdrawal{}, errors.ErrInvalidInput
	}
	ps, err := s.poolState(poolID)
	if err != nil {
		return DualWithdrawal{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	pool := &ps.pool
	if sharesBurn.GreaterThan(pool.TotalShares) {
		return DualWithdrawal{}, errors.ErrInvalidInput
	}

	fraction := sharesBurn.DivRound(pool.TotalShares, dmath.Precision)
	outA := pool.RealReserveA.Mul(fraction)
	outB := pool.RealReserveB.Mul(fraction)

	remainingShares := pool.TotalShares.Sub(sharesBurn)
	if remainingShares.IsPositive() {
		minReserve := s.cfg.Current().MinReserve
		if pool.RealReserveA.Sub(outA).LessThan(minReserve) ||
			pool.RealReserveB.Sub(outB).LessThan(minReserve) {
			return DualWithdrawal{}, errors.ErrInsufficientLiquidity
		}
	} else {
		// Emptying the pool: return the reserves exactly, free of rounding
		// residue from the fraction.
		outA = pool.RealReserveA
		outB = pool.RealReserveB
	}

	pool.RealReserveA = pool.RealReserveA.Sub(outA)
	pool.RealReserveB = pool.RealReserveB.Sub(outB)
	pool.TotalShares = remainingShares

	s.logger.Debug("Dual-sided withdrawal committed",
		zap.String("pool_id", poolID.String()),
		zap.String("shares_burned", sharesBurn.String()),
		zap.String("amount_a", outA.String()),
		zap.String("amount_b", outB.String()))
	return DualWithdrawal{AmountA: outA, AmountB: outB}, nil
}

// SingleWithdrawal reports the payout for a single-sided withdrawal.
type SingleWithdrawal struct {
	Asset        string
	AmountOut    decimal.Decimal
	CurrentPrice decimal.Decimal
}

// WithdrawSingle redeems the given fraction of a single-sided pairing. The
// payout follows the position's local constant-product invariant
// (realAmount x synthetic): the real side rebalances to
// realAmount * sqrt(pairingPrice / currentPrice) for an AssetA deposit, and
// the synthetic counterpart is retired proportionally. The other asset's
// real reserve is never touched.
func (s *Service) WithdrawSingle(positionID, poolID uuid.UUID, fraction, sharesBurn decimal.Decimal) (SingleWithdrawal, error) {
	if !fraction.IsPositive() || fraction.GreaterThan(decimal.NewFromInt(1)) || sharesBurn.IsNegative() {
		return SingleWithdrawal{}, errors.ErrInvalidInput
	}
	ps, err := s.poolState(poolID)
	if err != nil {
		return SingleWithdrawal{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	pool := &ps.pool
	entry, ok := ps.singles[positionID]
	if !ok {
		return SingleWithdrawal{}, errors.ErrPositionNotFound
	}

	snap, err := s.usablePrice(pool)
	if err != nil {
		return SingleWithdrawal{}, err
	}
	price := snap.Price

	// Rebalance the position along its own curve from the pairing price to
	// the current price, then pay out the real side of the fraction.
	var ratio decimal.Decimal
	if entry.asset == pool.AssetA {
		ratio = dmath.Sqrt(entry.pairingPrice.DivRound(price, dmath.Precision))
	} else {
		ratio = dmath.Sqrt(price.DivRound(entry.pairingPrice, dmath.Precision))
	}
	amountOut := entry.realAmount.Mul(fraction).Mul(ratio)
	syntheticRetired := entry.synthetic.Mul(fraction)

	minReserve := s.cfg.Current().MinReserve
	real := pool.RealReserve(entry.asset)
	remaining := real.Sub(amountOut)
	if remaining.IsNegative() || (pool.TotalShares.GreaterThan(sharesBurn) && remaining.LessThan(minReserve)) {
		return SingleWithdrawal{}, errors.ErrInsufficientLiquidity
	}

	if entry.asset == pool.AssetA {
		pool.RealReserveA = remaining
		pool.VirtualReserveB = decimal.Max(decimal.Zero, pool.VirtualReserveB.Sub(syntheticRetired))
	} else {
		pool.RealReserveB = remaining
		pool.VirtualReserveA = decimal.Max(decimal.Zero, pool.VirtualReserveA.Sub(syntheticRetired))
	}
	pool.TotalShares = decimal.Max(decimal.Zero, pool.TotalShares.Sub(sharesBurn))

	entry.realAmount = entry.realAmount.Mul(decimal.NewFromInt(1).Sub(fraction))
	entry.synthetic = entry.synthetic.Sub(syntheticRetired)
	if !entry.realAmount.IsPositive() {
		delete(ps.singles, positionID)
	}

	s.logger.Debug("Single-sided withdrawal committed",
		zap.String("pool_id", poolID.String()),
		zap.String("position_id", positionID.String()),
		zap.String("fraction", fraction.String()),
		zap.String("amount_out", amountOut.String()))
	return SingleWithdrawal{Asset: entry.asset, AmountOut: amountOut, CurrentPrice: price}, nil
}
