package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrInsufficientCredits is returned when a debit would take a balance below zero
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger tracks prepaid credit balances per user. A balance never goes
// negative: a debit that cannot be covered is rejected as a whole. Unknown
// users have a balance of zero. Implementations must be atomic with respect
// to concurrent calls for the same user.
type Ledger interface {
	// Debit removes n credits from the user's balance. Returns
	// ErrInsufficientCredits without mutating anything when the balance
	// cannot cover n.
	Debit(ctx context.Context, userID string, n int) error

	// Credit adds n credits and returns the new balance.
	Credit(ctx context.Context, userID string, n int) (int, error)

	// Balance returns the current balance, zero for unknown users.
	Balance(ctx context.Context, userID string) (int, error)
}

// MemoryLedger is the default in-process Ledger. Balances do not survive a
// restart.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int),
	}
}

func (l *MemoryLedger) Debit(_ context.Context, userID string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[userID] < n {
		return ErrInsufficientCredits
	}

	l.balances[userID] -= n
	return nil
}

func (l *MemoryLedger) Credit(_ context.Context, userID string, n int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[userID] += n
	return l.balances[userID], nil
}

func (l *MemoryLedger) Balance(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[userID], nil
}
