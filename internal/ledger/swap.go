package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/dmath"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/metrics"
	"github.com/nexafin/poolrisk/pkg/models"
)

// QuoteSwap prices a swap over the pool's effective reserves (real plus
// virtual) with the constant-product formula, net of the currently active
// fee. The quote carries the oracle snapshot timestamp it was derived from;
// execution rejects quotes older than the configured max quote age.
func (s *Service) QuoteSwap(poolID uuid.UUID, assetIn string, amountIn decimal.Decimal) (models.SwapQuote, error) {
	start := time.Now()
	defer func() {
		metrics.SwapQuoteLatency.Observe(time.Since(start).Seconds())
	}()

	if !amountIn.IsPositive() {
		return models.SwapQuote{}, errors.ErrInvalidInput
	}
	ps, err := s.poolState(poolID)
	if err != nil {
		return models.SwapQuote{}, err
	}

	ps.mu.RLock()
	pool := ps.pool
	ps.mu.RUnlock()

	return s.priceSwap(&pool, assetIn, amountIn)
}

// priceSwap computes a quote against the given pool snapshot. The caller
// decides the consistency level: a copied snapshot for reads, the live
// locked state for execution.
func (s *Service) priceSwap(pool *models.Pool, assetIn string, amountIn decimal.Decimal) (models.SwapQuote, error) {
	if !pool.HasAsset(assetIn) {
		return models.SwapQuote{}, errors.ErrInvalidInput
	}
	assetOut := pool.OtherAsset(assetIn)

	effIn := pool.EffectiveReserve(assetIn)
	effOut := pool.EffectiveReserve(assetOut)
	if !effIn.IsPositive() || !effOut.IsPositive() {
		return models.SwapQuote{}, errors.ErrInsufficientLiquidity
	}

	feeQuote := s.fees.CurrentFee(pool.Pair())
	feeAmount := amountIn.Mul(feeQuote.FeeBps).Div(bpsDenominator)
	effectiveIn := amountIn.Sub(feeAmount)

	// Constant product across effective reserves, pre-fee.
	amountOut := effOut.Mul(effectiveIn).DivRound(effIn.Add(effectiveIn), dmath.Precision)

	// Output is paid from the real reserve; it must not breach the floor.
	minReserve := s.cfg.Current().MinReserve
	if pool.RealReserve(assetOut).Sub(amountOut).LessThan(minReserve) {
		return models.SwapQuote{}, errors.ErrInsufficientLiquidity
	}

	now := time.Now()
	snapshotAt := now
	if snap, err := s.cache.Latest(pool.Pair()); err == nil || errors.Is(err, errors.ErrStalePrice) {
		snapshotAt = snap.Timestamp
	}

	return models.SwapQuote{
		PoolID:     pool.ID,
		AssetIn:    assetIn,
		AssetOut:   assetOut,
		AmountIn:   amountIn,
		AmountOut:  amountOut,
		FeeBps:     feeQuote.FeeBps,
		FeeAmount:  feeAmount,
		Volatility: feeQuote.Volatility,
		SnapshotAt: snapshotAt,
		QuotedAt:   now,
	}, nil
}

// ExecuteSwap settles a previously issued quote. The quote is re-validated
// against the live pool state at commit time: a quote older than the
// configured max age is rejected, and the output amount is recomputed from
// current reserves and the current fee. Commit order is validate, custody,
// then ledger commit, so a custody failure never leaves ledger state
// inconsistent.
func (s *Service) ExecuteSwap(ctx context.Context, account string, quote models.SwapQuote) (models.SwapResult, error) {
	if account == "" || !quote.AmountIn.IsPositive() {
		return models.SwapResult{}, errors.ErrInvalidInput
	}
	if time.Since(quote.QuotedAt) > s.cfg.Current().MaxQuoteAge {
		return models.SwapResult{}, errors.ErrStaleQuote
	}
	ps, err := s.poolState(quote.PoolID)
	if err != nil {
		return models.SwapResult{}, err
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	pool := &ps.pool

	// Re-price against live state; the gap between quote and execution is
	// not atomic.
	live, err := s.priceSwap(pool, quote.AssetIn, quote.AmountIn)
	if err != nil {
		return models.SwapResult{}, err
	}

	// Insurance skim comes out of the collected fee, valued in the quote
	// asset at the pool-implied price so the swap path never blocks on the
	// oracle.
	params := s.cfg.Current()
	skimIn := live.FeeAmount.Mul(params.InsuranceCutBps).Div(bpsDenominator)
	skimValue := skimIn
	feeValue := live.FeeAmount
	if quote.AssetIn == pool.AssetA {
		implied := pool.EffectiveReserve(pool.AssetB).DivRound(pool.EffectiveReserve(pool.AssetA), dmath.Precision)
		skimValue = skimIn.Mul(implied)
		feeValue = live.FeeAmount.Mul(implied)
	}

	// Custody: pull the input leg, deliver the output leg. A failed output
	// leg refunds the input before aborting.
	if err := s.custody.TransferIn(ctx, account, live.AssetIn, live.AmountIn); err != nil {
		return models.SwapResult{}, fmt.Errorf("%w: %v", errors.ErrCustody, err)
	}
	if err := s.custody.TransferOut(ctx, account, live.AssetOut, live.AmountOut); err != nil {
		if refundErr := s.custody.TransferOut(ctx, account, live.AssetIn, live.AmountIn); refundErr != nil {
			s.logger.Error("Swap refund failed after custody abort",
				zap.String("account", account),
				zap.String("asset", live.AssetIn),
				zap.String("amount", live.AmountIn.String()),
				zap.Error(refundErr))
		}
		return models.SwapResult{}, fmt.Errorf("%w: %v", errors.ErrCustody, err)
	}

	// Ledger commit. The skim leaves the pool for the fund; the rest of the
	// fee stays in the pool for LPs.
	if live.AssetIn == pool.AssetA {
		pool.RealReserveA = pool.RealReserveA.Add(live.AmountIn).Sub(skimIn)
		pool.RealReserveB = pool.RealReserveB.Sub(live.AmountOut)
	} else {
		pool.RealReserveB = pool.RealReserveB.Add(live.AmountIn).Sub(skimIn)
		pool.RealReserveA = pool.RealReserveA.Sub(live.AmountOut)
	}
	s.fund.Skim(account, feeValue, params.InsuranceCutBps)

	pair := pool.Pair().String()
	metrics.SwapsExecuted.WithLabelValues(pair).Inc()
	feeFloat, _ := feeValue.Float64()
	metrics.FeesCollected.WithLabelValues(pair).Add(feeFloat)

	s.logger.Info("Swap executed",
		zap.String("pool_id", pool.ID.String()),
		zap.String("account", account),
		zap.String("asset_in", live.AssetIn),
		zap.String("amount_in", live.AmountIn.String()),
		zap.String("asset_out", live.AssetOut),
		zap.String("amount_out", live.AmountOut.String()),
		zap.String("fee_bps", live.FeeBps.String()))

	return models.SwapResult{
		PoolID:       pool.ID,
		AssetIn:      live.AssetIn,
		AssetOut:     live.AssetOut,
		AmountIn:     live.AmountIn,
		AmountOut:    live.AmountOut,
		FeeAmount:    live.FeeAmount,
		InsuranceCut: skimValue,
		ExecutedAt:   time.Now(),
	}, nil
}
