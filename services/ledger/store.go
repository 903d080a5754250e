package ledger

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrNotFound is returned when no entry exists for a public key.
	ErrNotFound = errors.New("ledger: no entry for key")
	// ErrNegativeAmount is returned for deposits or restores below zero.
	ErrNegativeAmount = errors.New("ledger: amount must not be negative")
)

// Store maps canonical public keys to balances. At most one entry exists
// per key and balances never go below zero.
type Store interface {
	// Deposit creates the entry or adds amount to it, saturating at
	// math.MaxInt64. It returns the new balance.
	Deposit(ctx context.Context, key string, amount int64) (int64, error)
	// Withdraw removes the entry and returns its balance in one atomic step.
	Withdraw(ctx context.Context, key string) (int64, error)
	// Restore writes the entry back with exactly amount, replacing any entry
	// created in the meantime.
	Restore(ctx context.Context, key string, amount int64) error
	// Peek returns the balance without modifying it.
	Peek(ctx context.Context, key string) (int64, error)
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
