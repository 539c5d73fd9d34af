package insurance

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSkimCreditsCut(t *testing.T) {
	f := NewFund(zap.NewNop())
	credit := f.Skim("alice", decimal.NewFromInt(100), decimal.NewFromInt(1000)) // 10%
	assert.True(t, credit.Equal(decimal.NewFromInt(10)), "credit = %s", credit)
	assert.True(t, f.Balance().Equal(decimal.NewFromInt(10)))
	assert.True(t, f.Contribution("alice").Equal(decimal.NewFromInt(10)))
}

func TestSkimIgnoresNonPositive(t *testing.T) {
	f := NewFund(zap.NewNop())
	f.Skim("alice", decimal.Zero, decimal.NewFromInt(1000))
	f.Skim("alice", decimal.NewFromInt(-5), decimal.NewFromInt(1000))
	assert.True(t, f.Balance().IsZero())
}

func TestClaimPartialPayoutOnExhaustion(t *testing.T) {
	f := NewFund(zap.NewNop())
	f.Skim("alice", decimal.NewFromInt(500), decimal.NewFromInt(1000)) // balance 50

	outcome := f.Claim(uuid.New(), "bob", decimal.NewFromInt(80))
	assert.True(t, outcome.Paid.Equal(decimal.NewFromInt(50)), "paid = %s", outcome.Paid)
	assert.True(t, outcome.Requested.Equal(decimal.NewFromInt(80)))
	assert.True(t, f.Balance().IsZero(), "balance = %s", f.Balance())
}

func TestClaimFullPayout(t *testing.T) {
	f := NewFund(zap.NewNop())
	f.Skim("alice", decimal.NewFromInt(1000), decimal.NewFromInt(1000)) // balance 100

	outcome := f.Claim(uuid.New(), "bob", decimal.NewFromInt(40))
	assert.True(t, outcome.Paid.Equal(decimal.NewFromInt(40)))
	assert.True(t, f.Balance().Equal(decimal.NewFromInt(60)))
}

func TestClaimOnEmptyFund(t *testing.T) {
	f := NewFund(zap.NewNop())
	outcome := f.Claim(uuid.New(), "bob", decimal.NewFromInt(10))
	assert.True(t, outcome.Paid.IsZero())
	assert.True(t, f.Balance().IsZero())
}

// Balance must stay non-negative for any interleaving of skims and claims.
func TestConcurrentSkimClaimNeverNegative(t *testing.T) {
	f := NewFund(zap.NewNop())

	var wg sync.WaitGroup
	n := 100
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.Skim("lp", decimal.NewFromInt(10), decimal.NewFromInt(5000)) // +5
		}()
		go func() {
			defer wg.Done()
			f.Claim(uuid.New(), "trader", decimal.NewFromInt(7))
		}()
	}
	wg.Wait()

	assert.False(t, f.Balance().IsNegative(), "balance = %s", f.Balance())
}
