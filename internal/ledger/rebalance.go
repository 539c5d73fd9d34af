package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/dmath"
	"github.com/nexafin/poolrisk/pkg/metrics"
	"github.com/nexafin/poolrisk/pkg/models"
)

// Rebalance re-pairs every open single-sided pairing at the current oracle
// price when the price has diverged from the baseline past the configured
// threshold. Only virtual reserves move; real reserves and shares are never
// touched. A nil event with a nil error means the threshold was not crossed,
// so back-to-back calls with no intervening price change are idempotent.
func (s *Service) Rebalance(poolID uuid.UUID, reason string) (*models.RebalanceEvent, error) {
	ps, err := s.poolState(poolID)
	if err != nil {
		return nil, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	pool := &ps.pool

	snap, err := s.usablePrice(pool)
	if err != nil {
		return nil, err
	}
	price := snap.Price

	if ps.baseline.IsZero() {
		// First observation seeds the baseline without an adjustment.
		ps.baseline = price
		return nil, nil
	}

	divergence := price.DivRound(ps.baseline, dmath.Precision).Sub(decimal.NewFromInt(1)).Abs()
	if divergence.LessThanOrEqual(s.cfg.Current().RebalanceThreshold) {
		return nil, nil
	}

	for _, entry := range ps.singles {
		var repaired decimal.Decimal
		if entry.asset == pool.AssetA {
			repaired = entry.realAmount.Mul(price)
			pool.VirtualReserveB = pool.VirtualReserveB.Sub(entry.synthetic).Add(repaired)
		} else {
			repaired = entry.realAmount.DivRound(price, dmath.Precision)
			pool.VirtualReserveA = pool.VirtualReserveA.Sub(entry.synthetic).Add(repaired)
		}
		entry.synthetic = repaired
		entry.pairingPrice = price
	}
	ps.baseline = price

	event := &models.RebalanceEvent{
		ID:              uuid.New(),
		PoolID:          pool.ID,
		Timestamp:       time.Now(),
		Reason:          reason,
		Price:           price,
		VirtualReserveA: pool.VirtualReserveA,
		VirtualReserveB: pool.VirtualReserveB,
	}
	metrics.Rebalances.WithLabelValues(reason).Inc()
	s.logger.Info("Pool rebalanced",
		zap.String("pool_id", pool.ID.String()),
		zap.String("reason", reason),
		zap.String("price", price.String()),
		zap.String("divergence", divergence.String()),
		zap.Int("repaired_positions", len(ps.singles)))
	return event, nil
}
