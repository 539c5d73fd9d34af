package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/internal/config"
	"github.com/nexafin/poolrisk/internal/custody"
	"github.com/nexafin/poolrisk/internal/fee"
	"github.com/nexafin/poolrisk/internal/insurance"
	"github.com/nexafin/poolrisk/internal/oracle"
	"github.com/nexafin/poolrisk/pkg/errors"
	"github.com/nexafin/poolrisk/pkg/models"
)

type testEnv struct {
	ledger  *Service
	cache   *oracle.Cache
	fund    *insurance.Fund
	custody *custody.InMemory
	params  config.Params
	pool    models.Pool
}

func testParams() config.Params {
	p := config.DefaultParams()
	p.BaseFeeBps = decimal.Zero // pure constant-product math unless a test overrides
	p.MaxFeeBps = decimal.NewFromInt(100)
	p.MinSnapshots = 3
	p.MaxPriceAge = time.Minute
	p.MaxQuoteAge = 30 * time.Second
	p.MinReserve = decimal.NewFromInt(1)
	p.RebalanceThreshold = decimal.RequireFromString("0.05")
	return p
}

func newTestEnv(t *testing.T, params config.Params) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.Static{P: params}
	cache := oracle.NewCache(logger, cfg)
	fund := insurance.NewFund(logger)
	cust := custody.NewInMemory()
	fees := fee.NewEngine(logger, cfg, cache)
	svc := NewService(logger, cfg, cache, fees, fund, cust)

	pool, err := svc.CreatePool("ETH", "USDC")
	require.NoError(t, err)

	return &testEnv{ledger: svc, cache: cache, fund: fund, custody: cust, params: params, pool: pool}
}

func (e *testEnv) setPrice(t *testing.T, price string) {
	t.Helper()
	require.NoError(t, e.cache.Record(models.PriceSnapshot{
		Pair:       e.pool.Pair(),
		Price:      decimal.RequireFromString(price),
		Timestamp:  time.Now(),
		Confidence: decimal.NewFromInt(1),
	}))
}

func (e *testEnv) seedDual(t *testing.T, amountA, amountB int64) {
	t.Helper()
	_, err := e.ledger.DepositDual(e.pool.ID, decimal.NewFromInt(amountA), decimal.NewFromInt(amountB))
	require.NoError(t, err)
}

func (e *testEnv) poolSnapshot(t *testing.T) models.Pool {
	t.Helper()
	pool, err := e.ledger.GetPool(e.pool.ID)
	require.NoError(t, err)
	return pool
}

func requireDecimalEq(t *testing.T, want, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	tolerance := decimal.New(1, -9)
	require.True(t, want.Sub(got).Abs().LessThanOrEqual(tolerance),
		"want %s, got %s (%v)", want, got, msgAndArgs)
}

func TestCreatePoolRejectsDuplicatesAndBadPairs(t *testing.T) {
	env := newTestEnv(t, testParams())

	_, err := env.ledger.CreatePool("ETH", "USDC")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = env.ledger.CreatePool("ETH", "ETH")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = env.ledger.CreatePool("", "USDC")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDepositDualFirstDepositIssuesGeometricMeanShares(t *testing.T) {
	env := newTestEnv(t, testParams())

	result, err := env.ledger.DepositDual(env.pool.ID, decimal.NewFromInt(1000), decimal.NewFromInt(1000))
	require.NoError(t, err)
	requireDecimalEq(t, decimal.NewFromInt(1000), result.Shares)
}

func TestDepositDualScenarioRoundTrip(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000) // 1000 shares outstanding

	result, err := env.ledger.DepositDual(env.pool.ID, decimal.NewFromInt(100), decimal.NewFromInt(100))
	require.NoError(t, err)
	requireDecimalEq(t, decimal.NewFromInt(100), result.Shares, "10%% of a 1000-share pool")

	w, err := env.ledger.WithdrawDual(env.pool.ID, result.Shares)
	require.NoError(t, err)
	requireDecimalEq(t, decimal.NewFromInt(100), w.AmountA)
	requireDecimalEq(t, decimal.NewFromInt(100), w.AmountB)

	pool := env.poolSnapshot(t)
	requireDecimalEq(t, decimal.NewFromInt(1000), pool.RealReserveA)
	requireDecimalEq(t, decimal.NewFromInt(1000), pool.RealReserveB)
	requireDecimalEq(t, decimal.NewFromInt(1000), pool.TotalShares)
}

func TestDepositDualSkewedRatioIssuesMinimum(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)

	// The B leg only covers 5%, so the deposit cannot mint more than 5%.
	result, err := env.ledger.DepositDual(env.pool.ID, decimal.NewFromInt(100), decimal.NewFromInt(50))
	require.NoError(t, err)
	requireDecimalEq(t, decimal.NewFromInt(50), result.Shares)
}

func TestDepositDualSharesMonotonicInAmount(t *testing.T) {
	prev := decimal.Zero
	for _, amount := range []int64{10, 50, 100, 500, 1000} {
		env := newTestEnv(t, testParams())
		env.seedDual(t, 1000, 1000)
		result, err := env.ledger.DepositDual(env.pool.ID, decimal.NewFromInt(amount), decimal.NewFromInt(amount))
		require.NoError(t, err)
		require.True(t, result.Shares.GreaterThanOrEqual(prev),
			"shares for %d = %s, previous %s", amount, result.Shares, prev)
		prev = result.Shares
	}
}

func TestDepositDualRejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t, testParams())

	_, err := env.ledger.DepositDual(env.pool.ID, decimal.Zero, decimal.NewFromInt(10))
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = env.ledger.DepositDual(env.pool.ID, decimal.NewFromInt(10), decimal.NewFromInt(-1))
	require.ErrorIs(t, err, errors.ErrInvalidInput)

	pool := env.poolSnapshot(t)
	assert.True(t, pool.RealReserveA.IsZero())
	assert.True(t, pool.TotalShares.IsZero())
}

func TestDepositSingleMintsSyntheticCounterpart(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)
	env.setPrice(t, "2")

	before := env.poolSnapshot(t)
	result, err := env.ledger.DepositSingle(uuid.New(), env.pool.ID, "ETH", decimal.NewFromInt(50))
	require.NoError(t, err)

	requireDecimalEq(t, decimal.NewFromInt(100), result.Synthetic, "50 ETH at price 2")
	requireDecimalEq(t, decimal.NewFromInt(2), result.EntryPrice)

	after := env.poolSnapshot(t)
	requireDecimalEq(t, before.RealReserveA.Add(decimal.NewFromInt(50)), after.RealReserveA)
	requireDecimalEq(t, before.RealReserveB, after.RealReserveB, "other real reserve must not move")
	requireDecimalEq(t, decimal.NewFromInt(100), after.VirtualReserveB)
	assert.True(t, after.VirtualReserveA.IsZero())
}

func TestDepositSingleSharesAgainstRealContributionOnly(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)
	env.setPrice(t, "1")

	// Real pool value at price 1 is 2000; a 100-value contribution is 5%.
	result, err := env.ledger.DepositSingle(uuid.New(), env.pool.ID, "USDC", decimal.NewFromInt(100))
	require.NoError(t, err)
	requireDecimalEq(t, decimal.NewFromInt(50), result.Shares)
}

func TestDepositSingleWithoutOracle(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)

	_, err := env.ledger.DepositSingle(uuid.New(), env.pool.ID, "ETH", decimal.NewFromInt(50))
	require.ErrorIs(t, err, errors.ErrOracleUnavailable)

	pool := env.poolSnapshot(t)
	requireDecimalEq(t, decimal.NewFromInt(1000), pool.RealReserveA, "rejection must not mutate reserves")
	assert.True(t, pool.VirtualReserveB.IsZero())
}

func TestDepositSingleStalePriceRejected(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)
	require.NoError(t, env.cache.Record(models.PriceSnapshot{
		Pair:       env.pool.Pair(),
		Price:      decimal.NewFromInt(2),
		Timestamp:  time.Now().Add(-10 * time.Minute),
		Confidence: decimal.NewFromInt(1),
	}))

	_, err := env.ledger.DepositSingle(uuid.New(), env.pool.ID, "ETH", decimal.NewFromInt(50))
	require.ErrorIs(t, err, errors.ErrOracleUnavailable)
}

func TestDepositSingleWrongAsset(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.setPrice(t, "2")

	_, err := env.ledger.DepositSingle(uuid.New(), env.pool.ID, "DOGE", decimal.NewFromInt(50))
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestWithdrawSingleFullAtHigherPrice(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)
	env.setPrice(t, "2")

	positionID := uuid.New()
	result, err := env.ledger.DepositSingle(positionID, env.pool.ID, "ETH", decimal.NewFromInt(50))
	require.NoError(t, err)

	before := env.poolSnapshot(t)
	env.setPrice(t, "3")

	w, err := env.ledger.WithdrawSingle(positionID, env.pool.ID, decimal.NewFromInt(1), result.Shares)
	require.NoError(t, err)
	require.Equal(t, "ETH", w.Asset)

	// The position rebalances along its own curve: 50 * sqrt(2/3).
	want := decimal.NewFromInt(50).Mul(decimal.RequireFromString("0.8164965809277260"))
	requireDecimalEq(t, want, w.AmountOut)

	after := env.poolSnapshot(t)
	requireDecimalEq(t, before.RealReserveB, after.RealReserveB, "other real reserve must not move on withdrawal")
	assert.True(t, after.VirtualReserveB.IsZero(), "synthetic fully retired, got %s", after.VirtualReserveB)
}

func TestWithdrawDualRespectsReserveFloor(t *testing.T) {
	params := testParams()
	params.MinReserve = decimal.NewFromInt(500)
	env := newTestEnv(t, params)
	env.seedDual(t, 1000, 1000)

	// A second provider exists, so the pool cannot be drained to the floor.
	result, err := env.ledger.DepositDual(env.pool.ID, decimal.NewFromInt(100), decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = env.ledger.WithdrawDual(env.pool.ID, decimal.NewFromInt(700))
	require.ErrorIs(t, err, errors.ErrInsufficientLiquidity)

	// Withdrawing the provider's own share stays above the floor.
	_, err = env.ledger.WithdrawDual(env.pool.ID, result.Shares)
	require.NoError(t, err)
}

func TestWithdrawDualEmptiesPoolExactly(t *testing.T) {
	env := newTestEnv(t, testParams())
	env.seedDual(t, 1000, 1000)

	w, err := env.ledger.WithdrawDual(env.pool.ID, decimal.NewFromInt(1000))
	require.NoError(t, err)
	requireDecimalEq(t, decimal.NewFromInt(1000), w.AmountA)
	requireDecimalEq(t, decimal.NewFromInt(1000), w.AmountB)

	pool := env.poolSnapshot(t)
	assert.True(t, pool.RealReserveA.IsZero())
	assert.True(t, pool.RealReserveB.IsZero())
	assert.True(t, pool.TotalShares.IsZero())
}
