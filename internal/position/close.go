package position

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

var one = decimal.NewFromInt(1)

// Close withdraws the full position, settles any impermanent-loss claim
// against the insurance fund, and transitions the position to Closed. The
// position always closes regardless of the claim outcome: its liveness never
// depends on fund solvency.
//
// When a withdrawal cooldown is configured, the first call moves the
// position to PendingWithdrawal and returns ErrWithdrawalPending until the
// cooldown has elapsed.
func (m *Manager) Close(ctx context.Context, positionID uuid.UUID) (models.Position, error) {
	st, err := m.state(positionID)
	if err != nil {
		return models.Position{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	pos := &st.pos

	if pos.Status == models.PositionClosed {
		return *pos, errors.ErrPositionNotActive
	}
	cooldown := m.cfg.Current().WithdrawCooldown
	if cooldown > 0 {
		if pos.Status == models.PositionActive {
			pos.Status = models.PositionPendingWithdrawal
			st.requestedAt = time.Now()
			return *pos, errors.ErrWithdrawalPending
		}
		if time.Since(st.requestedAt) < cooldown {
			return *pos, errors.ErrWithdrawalPending
		}
	}

	pool, err := m.ledger.GetPool(pos.PoolID)
	if err != nil {
		return *pos, err
	}

	var redeemed, hold decimal.Decimal
	var havePrice bool

	switch pos.Kind {
	case models.DualSided:
		w, err := m.ledger.WithdrawDual(pos.PoolID, pos.ShareOfPool)
		if err != nil {
			return *pos, err
		}
		m.payout(ctx, pos.Owner, pool.AssetA, w.AmountA)
		m.payout(ctx, pos.Owner, pool.AssetB, w.AmountB)
		if snap, serr := m.cache.Latest(pool.Pair()); serr == nil {
			havePrice = true
			hold = pos.DepositedA.Mul(snap.Price).Add(pos.DepositedB)
			redeemed = w.AmountA.Mul(snap.Price).Add(w.AmountB)
		}
	case models.SingleSided:
		w, err := m.ledger.WithdrawSingle(pos.ID, pos.PoolID, one, pos.ShareOfPool)
		if err != nil {
			return *pos, err
		}
		m.payout(ctx, pos.Owner, w.Asset, w.AmountOut)
		havePrice = true
		if pos.DepositedAsset == pool.AssetA {
			hold = pos.DepositedAmount.Mul(w.CurrentPrice)
			redeemed = w.AmountOut.Mul(w.CurrentPrice)
		} else {
			hold = pos.DepositedAmount
			redeemed = w.AmountOut
		}
	}

	if havePrice {
		loss := decimal.Max(decimal.Zero, hold.Sub(redeemed))
		if loss.IsPositive() {
			outcome := m.fund.Claim(pos.ID, pos.Owner, loss)
			if outcome.Paid.IsPositive() {
				m.payout(ctx, pos.Owner, pool.AssetB, outcome.Paid)
			}
			if m.journal != nil {
				if err := m.journal.AppendClaim(outcome); err != nil {
					m.logger.Error("Failed to journal claim settlement", zap.Error(err))
				}
			}
			m.logger.Info("Impermanent-loss claim settled",
				zap.String("position_id", pos.ID.String()),
				zap.String("requested", outcome.Requested.String()),
				zap.String("paid", outcome.Paid.String()))
		}
	} else {
		m.logger.Warn("No usable price at close, impermanent loss not assessed",
			zap.String("position_id", pos.ID.String()))
	}

	now := time.Now()
	pos.Status = models.PositionClosed
	pos.ShareOfPool = decimal.Zero
	pos.SyntheticAmount = decimal.Zero
	pos.ClosedAt = &now

	m.logger.Info("Position closed",
		zap.String("position_id", pos.ID.String()),
		zap.String("owner", pos.Owner))
	return *pos, nil
}

// PartialWithdraw proportionally reduces the position without closing it.
// Fraction must be in (0, 1).
func (m *Manager) PartialWithdraw(ctx context.Context, positionID uuid.UUID, fraction decimal.Decimal) (models.Position, error) {
	if !fraction.IsPositive() || fraction.GreaterThanOrEqual(one) {
		return models.Position{}, errors.ErrInvalidInput
	}
	st, err := m.state(positionID)
	if err != nil {
		return models.Position{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	pos := &st.pos
	if pos.Status != models.PositionActive {
		return *pos, errors.ErrPositionNotActive
	}

	pool, err := m.ledger.GetPool(pos.PoolID)
	if err != nil {
		return *pos, err
	}

	remaining := one.Sub(fraction)
	sharesBurn := pos.ShareOfPool.Mul(fraction)

	switch pos.Kind {
	case models.DualSided:
		w, err := m.ledger.WithdrawDual(pos.PoolID, sharesBurn)
		if err != nil {
			return *pos, err
		}
		m.payout(ctx, pos.Owner, pool.AssetA, w.AmountA)
		m.payout(ctx, pos.Owner, pool.AssetB, w.AmountB)
		pos.DepositedA = pos.DepositedA.Mul(remaining)
		pos.DepositedB = pos.DepositedB.Mul(remaining)
	case models.SingleSided:
		w, err := m.ledger.WithdrawSingle(pos.ID, pos.PoolID, fraction, sharesBurn)
		if err != nil {
			return *pos, err
		}
		m.payout(ctx, pos.Owner, w.Asset, w.AmountOut)
		pos.DepositedAmount = pos.DepositedAmount.Mul(remaining)
		pos.SyntheticAmount = pos.SyntheticAmount.Mul(remaining)
	}
	pos.ShareOfPool = pos.ShareOfPool.Sub(sharesBurn)

	m.logger.Info("Partial withdrawal",
		zap.String("position_id", pos.ID.String()),
		zap.String("fraction", fraction.String()),
		zap.String("remaining_shares", pos.ShareOfPool.String()))
	return *pos, nil
}

// payout delivers custodied assets to the owner. Ledger state is already
// committed at this point; a custody failure is logged for operator
// reconciliation rather than unwinding the ledger.
func (m *Manager) payout(ctx context.Context, account, asset string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	if err := m.custody.TransferOut(ctx, account, asset, amount); err != nil {
		m.logger.Error("Custody payout failed",
			zap.String("account", account),
			zap.String("asset", asset),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}
