package custody

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferInDebitsFundedAccount(t *testing.T) {
	c := NewInMemory()
	c.Fund("alice", "ETH", decimal.NewFromInt(10))

	require.NoError(t, c.TransferIn(context.Background(), "alice", "ETH", decimal.NewFromInt(4)))
	assert.True(t, c.Balance("alice", "ETH").Equal(decimal.NewFromInt(6)))
}

func TestTransferInRejectsOverdraft(t *testing.T) {
	c := NewInMemory()
	c.Fund("alice", "ETH", decimal.NewFromInt(3))

	err := c.TransferIn(context.Background(), "alice", "ETH", decimal.NewFromInt(4))
	require.Error(t, err)
	assert.True(t, c.Balance("alice", "ETH").Equal(decimal.NewFromInt(3)), "failed transfer must not debit")
}

func TestTransferOutCreditsAccount(t *testing.T) {
	c := NewInMemory()
	require.NoError(t, c.TransferOut(context.Background(), "bob", "USDC", decimal.NewFromInt(25)))
	assert.True(t, c.Balance("bob", "USDC").Equal(decimal.NewFromInt(25)))
}

func TestTransfersRejectNonPositiveAmounts(t *testing.T) {
	c := NewInMemory()
	assert.Error(t, c.TransferIn(context.Background(), "alice", "ETH", decimal.Zero))
	assert.Error(t, c.TransferOut(context.Background(), "alice", "ETH", decimal.NewFromInt(-1)))
}

func TestBalancesIsolatedPerAsset(t *testing.T) {
	c := NewInMemory()
	c.Fund("alice", "ETH", decimal.NewFromInt(5))
	assert.True(t, c.Balance("alice", "USDC").IsZero())
	assert.True(t, c.Balance("bob", "ETH").IsZero())
}
