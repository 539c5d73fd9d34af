// Package custody defines the asset transfer capability consumed by the pool
// ledger. Transfers are assumed atomic: each call either fully succeeds or
// fully fails, and the ledger only commits its own state after custody has
// succeeded.
package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Capability moves assets between a user account and pool custody.
type Capability interface {
	// TransferIn moves amount of asset from the account into pool custody.
	TransferIn(ctx context.Context, account, asset string, amount decimal.Decimal) error
	// TransferOut moves amount of asset from pool custody to the account.
	TransferOut(ctx context.Context, account, asset string, amount decimal.Decimal) error
}

// InMemory is a map-backed Capability used by the local server wiring and
// tests. Accounts with no recorded balance are treated as unfunded.
type InMemory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal // account|asset -> balance
}

// NewInMemory creates an empty in-memory custody ledger.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[string]decimal.Decimal)}
}

// Fund credits an account balance directly, bypassing transfer checks.
func (c *InMemory) Fund(account, asset string, amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := account + "|" + asset
	c.balances[key] = c.balances[key].Add(amount)
}

// Balance returns the recorded balance for the account and asset.
func (c *InMemory) Balance(account, asset string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[account+"|"+asset]
}

// TransferIn implements Capability.
func (c *InMemory) TransferIn(_ context.Context, account, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := account + "|" + asset
	if c.balances[key].LessThan(amount) {
		return fmt.Errorf("account %s has insufficient %s balance", account, asset)
	}
	c.balances[key] = c.balances[key].Sub(amount)
	return nil
}

// TransferOut implements Capability.
func (c *InMemory) TransferOut(_ context.Context, account, asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := account + "|" + asset
	c.balances[key] = c.balances[key].Add(amount)
	return nil
}
