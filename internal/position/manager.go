// Package position manages liquidity position lifecycle: open, partial
// withdrawal, and close with impermanent-loss claim settlement.
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/audit"
	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/custody"
	"github.com/nexafin/poolrisk/internal/insurance"
	"github.com/nexafin/poolrisk/internal/ledger"
	"github.com/nexafin/poolrisk/internal/oracle"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

// DepositSpec describes the liquidity being supplied when opening a
// position.
type DepositSpec struct {
	Kind models.PositionKind

	// DualSided.
	AmountA decimal.Decimal
	AmountB decimal.Decimal

	// SingleSided.
	Asset  string
	Amount decimal.Decimal
}

// positionState serializes mutations of one position. Operations on
// different positions, and therefore on different pools, proceed
// independently.
type positionState struct {
	mu          sync.Mutex
	pos         models.Position
	requestedAt time.Time // set when the position enters PendingWithdrawal
}

// Manager owns position records and drives the
// Active -> PendingWithdrawal -> Closed lifecycle. The pending state is used
// only when a withdrawal cooldown is configured; otherwise close is direct.
type Manager struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	cfg       config.Provider
	ledger    *ledger.Service
	fund      *insurance.Fund
	cache     *oracle.Cache
	custody   custody.Capability
	journal   *audit.Store
	positions map[uuid.UUID]*positionState
}

// NewManager creates a position manager. The insurance fund is a passed-in
// handle so tests can substitute a deterministic instance.
func NewManager(logger *zap.Logger, cfg config.Provider, led *ledger.Service, fund *insurance.Fund, cache *oracle.Cache, cust custody.Capability, journal *audit.Store) *Manager {
	return &Manager{
		logger:    logger,
		cfg:       cfg,
		ledger:    led,
		fund:      fund,
		cache:     cache,
		custody:   cust,
		journal:   journal,
		positions: make(map[uuid.UUID]*positionState),
	}
}

// Open creates a position against the pool. Commit order is validate,
// custody, then ledger commit; a custody failure aborts with no ledger
// change, and a ledger rejection refunds custody.
func (m *Manager) Open(ctx context.Context, account string, poolID uuid.UUID, spec DepositSpec) (models.Position, error) {
	if account == "" {
		return models.Position{}, errors.ErrInvalidDeposit
	}
	pool, err := m.ledger.GetPool(poolID)
	if err != nil {
		return models.Position{}, err
	}

	switch spec.Kind {
	case models.DualSided:
		return m.openDual(ctx, account, pool, spec)
	case models.SingleSided:
		return m.openSingle(ctx, account, pool, spec)
	default:
		return models.Position{}, errors.ErrInvalidDeposit
	}
}

func (m *Manager) openDual(ctx context.Context, account string, pool models.Pool, spec DepositSpec) (models.Position, error) {
	if !spec.AmountA.IsPositive() || !spec.AmountB.IsPositive() {
		return models.Position{}, errors.ErrInvalidDeposit
	}

	if err := m.custody.TransferIn(ctx, account, pool.AssetA, spec.AmountA); err != nil {
		return models.Position{}, fmt.Errorf("%w: %v", errors.ErrCustody, err)
	}
	if err := m.custody.TransferIn(ctx, account, pool.AssetB, spec.AmountB); err != nil {
		m.refund(ctx, account, pool.AssetA, spec.AmountA)
		return models.Position{}, fmt.Errorf("%w: %v", errors.ErrCustody, err)
	}

	result, err := m.ledger.DepositDual(pool.ID, spec.AmountA, spec.AmountB)
	if err != nil {
		m.refund(ctx, account, pool.AssetA, spec.AmountA)
		m.refund(ctx, account, pool.AssetB, spec.AmountB)
		return models.Position{}, err
	}

	entryPrice := decimal.Zero
	if snap, serr := m.cache.Latest(pool.Pair()); serr == nil {
		entryPrice = snap.Price
	}

	pos := models.Position{
		ID:          uuid.New(),
		Owner:       account,
		PoolID:      pool.ID,
		Kind:        models.DualSided,
		Status:      models.PositionActive,
		DepositedA:  spec.AmountA,
		DepositedB:  spec.AmountB,
		EntryPrice:  entryPrice,
		ShareOfPool: result.Shares,
		OpenedAt:    time.Now(),
	}
	m.store(pos)
	m.logger.Info("Position opened",
		zap.String("position_id", pos.ID.String()),
		zap.String("owner", account),
		zap.String("kind", pos.Kind.String()),
		zap.String("shares", pos.ShareOfPool.String()))
	return pos, nil
}

func (m *Manager) openSingle(ctx context.Context, account string, pool models.Pool, spec DepositSpec) (models.Position, error) {
	if !spec.Amount.IsPositive() || !pool.HasAsset(spec.Asset) {
		return models.Position{}, errors.ErrInvalidDeposit
	}

	if err := m.custody.TransferIn(ctx, account, spec.Asset, spec.Amount); err != nil {
		return models.Position{}, fmt.Errorf("%w: %v", errors.ErrCustody, err)
	}

	positionID := uuid.New()
	result, err := m.ledger.DepositSingle(positionID, pool.ID, spec.Asset, spec.Amount)
	if err != nil {
		m.refund(ctx, account, spec.Asset, spec.Amount)
		return models.Position{}, err
	}

	pos := models.Position{
		ID:              positionID,
		Owner:           account,
		PoolID:          pool.ID,
		Kind:            models.SingleSided,
		Status:          models.PositionActive,
		DepositedAsset:  spec.Asset,
		DepositedAmount: spec.Amount,
		SyntheticAmount: result.Synthetic,
		EntryPrice:      result.EntryPrice,
		ShareOfPool:     result.Shares,
		OpenedAt:        time.Now(),
	}
	m.store(pos)
	m.logger.Info("Position opened",
		zap.String("position_id", pos.ID.String()),
		zap.String("owner", account),
		zap.String("kind", pos.Kind.String()),
		zap.String("synthetic", pos.SyntheticAmount.String()),
		zap.String("shares", pos.ShareOfPool.String()))
	return pos, nil
}

// Get returns a snapshot copy of the position.
func (m *Manager) Get(positionID uuid.UUID) (models.Position, error) {
	st, err := m.state(positionID)
	if err != nil {
		return models.Position{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pos, nil
}

// ListByOwner returns snapshot copies of every position owned by the
// account.
func (m *Manager) ListByOwner(owner string) []models.Position {
	m.mu.RLock()
	states := make([]*positionState, 0, len(m.positions))
	for _, st := range m.positions {
		states = append(states, st)
	}
	m.mu.RUnlock()

	var out []models.Position
	for _, st := range states {
		st.mu.Lock()
		if st.pos.Owner == owner {
			out = append(out, st.pos)
		}
		st.mu.Unlock()
	}
	return out
}

func (m *Manager) store(pos models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[pos.ID] = &positionState{pos: pos}
}

func (m *Manager) state(positionID uuid.UUID) (*positionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.positions[positionID]
	if !ok {
		return nil, errors.ErrPositionNotFound
	}
	return st, nil
}

// refund is best-effort compensation after a failed open; a failure is
// logged, not returned, because the original rejection is the caller-facing
// outcome.
func (m *Manager) refund(ctx context.Context, account, asset string, amount decimal.Decimal) {
	if err := m.custody.TransferOut(ctx, account, asset, amount); err != nil {
		m.logger.Error("Deposit refund failed",
			zap.String("account", account),
			zap.String("asset", asset),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}
