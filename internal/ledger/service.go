// Package ledger owns pool balance accounting: real and virtual reserves,
// share issuance, and constant-product swap pricing. All mutations of one
// pool are serialized through that pool's lock; operations on different
// pools proceed independently.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/custody"
	"github.com/nexafin/poolrisk/internal/fee"
	"github.com/nexafin/poolrisk/internal/insurance"
	"github.com/nexafin/poolrisk/internal/oracle"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

var bpsDenominator = decimal.NewFromInt(10000)

// singleEntry is the ledger-side pairing record for one open single-sided
// position. The synthetic side is bookkeeping only; it is re-paired by the
// rebalancer and retired on withdrawal, never transferred.
type singleEntry struct {
	asset        string
	realAmount   decimal.Decimal
	synthetic    decimal.Decimal
	pairingPrice decimal.Decimal // price at deposit or last re-pairing
}

// poolState is one independently lockable pool.
type poolState struct {
	mu       sync.RWMutex
	pool     models.Pool
	singles  map[uuid.UUID]*singleEntry // keyed by position ID
	baseline decimal.Decimal            // rebalance baseline price; zero until first observed
}

// Service implements the pool ledger.
type Service struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	cfg     config.Provider
	cache   *oracle.Cache
	fees    *fee.Engine
	fund    *insurance.Fund
	custody custody.Capability
	pools   map[uuid.UUID]*poolState
}

// NewService creates a pool ledger.
func NewService(logger *zap.Logger, cfg config.Provider, cache *oracle.Cache, fees *fee.Engine, fund *insurance.Fund, cust custody.Capability) *Service {
	return &Service{
		logger:  logger,
		cfg:     cfg,
		cache:   cache,
		fees:    fees,
		fund:    fund,
		custody: cust,
		pools:   make(map[uuid.UUID]*poolState),
	}
}

// CreatePool registers a pool for the asset pair. Pools are created once by
// configuration and never destroyed, only emptied.
func (s *Service) CreatePool(assetA, assetB string) (models.Pool, error) {
	if assetA == "" || assetB == "" || assetA == assetB {
		return models.Pool{}, errors.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ps := range s.pools {
		if ps.pool.AssetA == assetA && ps.pool.AssetB == assetB {
			return models.Pool{}, errors.ErrInvalidInput
		}
	}

	pool := models.Pool{
		ID:        uuid.New(),
		AssetA:    assetA,
		AssetB:    assetB,
		CreatedAt: time.Now(),
	}
	s.pools[pool.ID] = &poolState{
		pool:    pool,
		singles: make(map[uuid.UUID]*singleEntry),
	}
	s.logger.Info("Pool created",
		zap.String("pool_id", pool.ID.String()),
		zap.String("pair", pool.Pair().String()))
	return pool, nil
}

// GetPool returns a snapshot copy of the pool state. Reads never observe a
// partially applied update.
func (s *Service) GetPool(poolID uuid.UUID) (models.Pool, error) {
	ps, err := s.poolState(poolID)
	if err != nil {
		return models.Pool{}, err
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.pool, nil
}

// ListPools returns snapshot copies of every pool.
func (s *Service) ListPools() []models.Pool {
	s.mu.RLock()
	states := make([]*poolState, 0, len(s.pools))
	for _, ps := range s.pools {
		states = append(states, ps)
	}
	s.mu.RUnlock()

	pools := make([]models.Pool, 0, len(states))
	for _, ps := range states {
		ps.mu.RLock()
		pools = append(pools, ps.pool)
		ps.mu.RUnlock()
	}
	return pools
}

// PairingPrice returns the current pairing price recorded for a single-sided
// position, which the rebalancer may have moved since deposit.
func (s *Service) PairingPrice(poolID, positionID uuid.UUID) (decimal.Decimal, error) {
	ps, err := s.poolState(poolID)
	if err != nil {
		return decimal.Zero, err
	}
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	entry, ok := ps.singles[positionID]
	if !ok {
		return decimal.Zero, errors.ErrPositionNotFound
	}
	return entry.pairingPrice, nil
}

func (s *Service) poolState(poolID uuid.UUID) (*poolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.pools[poolID]
	if !ok {
		return nil, errors.ErrPoolNotFound
	}
	return ps, nil
}

// usablePrice returns the latest non-stale price for the pool's pair, or
// ErrOracleUnavailable.
func (s *Service) usablePrice(pool *models.Pool) (models.PriceSnapshot, error) {
	snap, err := s.cache.Latest(pool.Pair())
	if err != nil {
		return models.PriceSnapshot{}, errors.ErrOracleUnavailable
	}
	return snap, nil
}
