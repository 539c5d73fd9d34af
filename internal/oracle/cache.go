// Package oracle holds the price snapshot cache: the latest oracle reading
// and a bounded rolling window of past readings per asset pair, backing the
// volatility computation used by the fee engine and rebalancer.
package oracle

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/dmath"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/metrics"
	"github.com/nexafin/poolrisk/pkg/models"
)

// Cache is the snapshot store. The oracle feed writes into it
// asynchronously; the ledger and fee engine only ever read committed
// snapshots, so a slow feed can never block a swap.
type Cache struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	cfg     config.Provider
	windows map[string][]models.PriceSnapshot // keyed by pair string, oldest first
}

// NewCache creates an empty snapshot cache.
func NewCache(logger *zap.Logger, cfg config.Provider) *Cache {
	return &Cache{
		logger:  logger,
		cfg:     cfg,
		windows: make(map[string][]models.PriceSnapshot),
	}
}

// Record appends a snapshot for the pair, evicting the oldest entry once the
// window is full. Out-of-order timestamps and low-confidence readings are
// dropped, not stored.
func (c *Cache) Record(snap models.PriceSnapshot) error {
	params := c.cfg.Current()

	if !snap.Price.IsPositive() {
		metrics.SnapshotsRejected.WithLabelValues("invalid_price").Inc()
		return errors.ErrInvalidInput
	}
	if snap.Confidence.LessThan(params.MinConfidence) {
		metrics.SnapshotsRejected.WithLabelValues("low_confidence").Inc()
		c.logger.Debug("Snapshot dropped: low confidence",
			zap.String("pair", snap.Pair.String()),
			zap.String("confidence", snap.Confidence.String()))
		return errors.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := snap.Pair.String()
	window := c.windows[key]
	if n := len(window); n > 0 && !snap.Timestamp.After(window[n-1].Timestamp) {
		metrics.SnapshotsRejected.WithLabelValues("out_of_order").Inc()
		return errors.ErrInvalidInput
	}

	window = append(window, snap)
	if len(window) > params.SnapshotWindow {
		window = window[len(window)-params.SnapshotWindow:]
	}
	c.windows[key] = window
	return nil
}

// Latest returns the most recent snapshot for the pair. It returns
// errors.ErrNoData for an empty window and errors.ErrStalePrice when the
// newest snapshot is older than the configured max age; in the stale case
// the snapshot is still returned for callers that only need a reference
// point.
func (c *Cache) Latest(pair models.AssetPair) (models.PriceSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	window := c.windows[pair.String()]
	if len(window) == 0 {
		return models.PriceSnapshot{}, errors.ErrNoData
	}
	snap := window[len(window)-1]
	if time.Since(snap.Timestamp) > c.cfg.Current().MaxPriceAge {
		return snap, errors.ErrStalePrice
	}
	return snap, nil
}

// Volatility returns the coefficient of variation (population standard
// deviation normalized by the mean) over the non-stale window entries.
// It returns errors.ErrInsufficientData when fewer than the configured
// minimum of usable snapshots exist; callers treat that as "use base fee,
// skip rebalance triggers".
func (c *Cache) Volatility(pair models.AssetPair) (decimal.Decimal, error) {
	params := c.cfg.Current()
	cutoff := time.Now().Add(-params.MaxPriceAge)

	c.mu.RLock()
	defer c.mu.RUnlock()

	window := c.windows[pair.String()]
	prices := make([]decimal.Decimal, 0, len(window))
	for _, snap := range window {
		if snap.Timestamp.Before(cutoff) {
			continue
		}
		prices = append(prices, snap.Price)
	}
	if len(prices) < params.MinSnapshots {
		return decimal.Zero, errors.ErrInsufficientData
	}

	n := decimal.NewFromInt(int64(len(prices)))
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	mean := sum.DivRound(n, volatilityPrecision)
	if mean.IsZero() {
		return decimal.Zero, errors.ErrInsufficientData
	}

	variance := decimal.Zero
	for _, p := range prices {
		d := p.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.DivRound(n, volatilityPrecision)

	stddev := dmath.Sqrt(variance)
	return stddev.DivRound(mean, volatilityPrecision), nil
}

const volatilityPrecision = dmath.Precision
