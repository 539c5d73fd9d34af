// Package insurance implements the impermanent-loss insurance fund: a single
// fund shared by all pools, credited by a skim of swap fees and debited by
// claims at position closure.
package insurance

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexafin/poolrisk/pkg/metrics"
	"github.com/nexafin/poolrisk/pkg/models"
)

var bpsDenominator = decimal.NewFromInt(10000)

// Fund is the insurance fund. Its mutations are serialized by its own lock,
// independent of any pool lock: a claim never blocks a swap on another pool.
// It is passed to position-closure logic as a handle so tests can substitute
// a deterministic instance.
type Fund struct {
	mu            sync.Mutex
	logger        *zap.Logger
	balance       decimal.Decimal
	contributions map[string]decimal.Decimal // informational; claims are not limited to contributions
}

// NewFund creates an empty fund.
func NewFund(logger *zap.Logger) *Fund {
	return &Fund{
		logger:        logger,
		contributions: make(map[string]decimal.Decimal),
	}
}

// Skim credits the fund with feeValue * cutBps / 10000 and records the
// contribution against the source account. Called on every collected swap
// fee.
func (f *Fund) Skim(source string, feeValue, cutBps decimal.Decimal) decimal.Decimal {
	if !feeValue.IsPositive() || !cutBps.IsPositive() {
		return decimal.Zero
	}
	credit := feeValue.Mul(cutBps).Div(bpsDenominator)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = f.balance.Add(credit)
	f.contributions[source] = f.contributions[source].Add(credit)
	return credit
}

// Claim debits min(loss, balance) and reports the settlement. A partial
// payout under fund exhaustion is the expected outcome, not an error; the
// unpaid remainder is dropped, not queued.
func (f *Fund) Claim(positionID uuid.UUID, owner string, loss decimal.Decimal) models.ClaimOutcome {
	outcome := models.ClaimOutcome{
		PositionID: positionID,
		Owner:      owner,
		Requested:  loss,
		SettledAt:  time.Now(),
	}
	if !loss.IsPositive() {
		return outcome
	}

	f.mu.Lock()
	paid := decimal.Min(loss, f.balance)
	f.balance = f.balance.Sub(paid)
	f.mu.Unlock()

	outcome.Paid = paid
	if paid.LessThan(loss) {
		metrics.InsuranceClaims.WithLabelValues("partial").Inc()
		f.logger.Warn("Insurance claim partially honored",
			zap.String("position_id", positionID.String()),
			zap.String("requested", loss.String()),
			zap.String("paid", paid.String()))
	} else {
		metrics.InsuranceClaims.WithLabelValues("full").Inc()
	}
	return outcome
}

// Balance returns the current fund balance.
func (f *Fund) Balance() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance
}

// Contribution returns the informational contribution recorded for the
// account.
func (f *Fund) Contribution(account string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contributions[account]
}
