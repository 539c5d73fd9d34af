// Package fee derives the active trade fee from current volatility and the
// configured bounds.
package fee

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/dmath"
	"github.com/nexafin/poolrisk/internal/oracle"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

// Engine computes per-quote fees. Fees are never cached: every call reads
// the latest volatility and the configuration current at call time, so a
// governance change takes effect on the next quote.
type Engine struct {
	logger *zap.Logger
	cfg    config.Provider
	cache  *oracle.Cache
}

// Quote is a fee computation result, valid only for the volatility reading
// it was derived from.
type Quote struct {
	FeeBps     decimal.Decimal
	Volatility decimal.Decimal
}

// NewEngine creates a fee engine reading volatility from the given cache.
func NewEngine(logger *zap.Logger, cfg config.Provider, cache *oracle.Cache) *Engine {
	return &Engine{logger: logger, cfg: cfg, cache: cache}
}

// CurrentFee returns clamp(base + sensitivity * volatility, base, max) in
// basis points. The insufficient-data sentinel from the cache falls back to
// exactly the base fee.
func (e *Engine) CurrentFee(pair models.AssetPair) Quote {
	params := e.cfg.Current()

	vol, err := e.cache.Volatility(pair)
	if err != nil {
		if !errors.Is(err, errors.ErrInsufficientData) {
			e.logger.Warn("Volatility unavailable, using base fee",
				zap.String("pair", pair.String()), zap.Error(err))
		}
		return Quote{FeeBps: params.BaseFeeBps, Volatility: decimal.Zero}
	}

	raw := params.BaseFeeBps.Add(params.SensitivityBps.Mul(vol))
	return Quote{
		FeeBps:     dmath.Clamp(raw, params.BaseFeeBps, params.MaxFeeBps),
		Volatility: vol,
	}
}
