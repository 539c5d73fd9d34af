// Package rebalance drives virtual-reserve adjustments: on a cron schedule
// and after each ingested price snapshot. Rebalancing is best-effort risk
// reduction; a skipped run changes the size of eventual impermanent-loss
// claims, not the safety of the ledger.
package rebalance

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/audit"
	"github.com/nexafin/poolrisk/internal/ledger"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

const (
	ReasonScheduled       = "scheduled"
	ReasonPriceDivergence = "price_divergence"
)

// Rebalancer runs threshold-gated rebalances against the pool ledger and
// journals every emitted event.
type Rebalancer struct {
	logger  *zap.Logger
	ledger  *ledger.Service
	journal *audit.Store
	cron    *cron.Cron
}

// New creates a rebalancer.
func New(logger *zap.Logger, led *ledger.Service, journal *audit.Store) *Rebalancer {
	return &Rebalancer{
		logger:  logger,
		ledger:  led,
		journal: journal,
		cron:    cron.New(),
	}
}

// Start registers the cron schedule and begins running it.
func (r *Rebalancer) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, func() { r.RunAll(ReasonScheduled) }); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("Rebalancer started", zap.String("schedule", schedule))
	return nil
}

// Stop halts the cron schedule.
func (r *Rebalancer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Rebalancer stopped")
}

// RunAll invokes MaybeRebalance on every pool.
func (r *Rebalancer) RunAll(reason string) {
	for _, pool := range r.ledger.ListPools() {
		r.maybeRebalance(pool, reason)
	}
}

// OnSnapshot triggers a divergence check on every pool trading the pair of
// the newly ingested snapshot.
func (r *Rebalancer) OnSnapshot(pair models.AssetPair) {
	for _, pool := range r.ledger.ListPools() {
		if pool.Pair() == pair {
			r.maybeRebalance(pool, ReasonPriceDivergence)
		}
	}
}

func (r *Rebalancer) maybeRebalance(pool models.Pool, reason string) {
	event, err := r.ledger.Rebalance(pool.ID, reason)
	if err != nil {
		// An unusable oracle only skips the run.
		if !errors.Is(err, errors.ErrOracleUnavailable) {
			r.logger.Error("Rebalance failed",
				zap.String("pool_id", pool.ID.String()), zap.Error(err))
		}
		return
	}
	if event == nil {
		return
	}
	if r.journal != nil {
		if err := r.journal.AppendRebalance(*event); err != nil {
			r.logger.Error("Failed to journal rebalance event",
				zap.String("event_id", event.ID.String()), zap.Error(err))
		}
	}
}
