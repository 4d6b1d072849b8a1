package memory

import (
	"context"
	"sync"

	"signquiz-service/internal/domain"
)

// CoinLedger keeps balances in process memory. Every mutation is a delta
// applied under one lock, so concurrent features never lose updates.
type CoinLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

func NewCoinLedger() *CoinLedger {
	return &CoinLedger{balances: make(map[string]int)}
}

func (l *CoinLedger) GetBalance(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *CoinLedger) Add(_ context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += amount
	return l.balances[userID], nil
}

func (l *CoinLedger) Subtract(_ context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balances[userID]
	if balance < amount {
		return balance, &domain.InsufficientFundsError{Required: amount, Available: balance}
	}
	l.balances[userID] = balance - amount
	return l.balances[userID], nil
}

// ChallengeCounter counts completed challenges in memory.
type ChallengeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewChallengeCounter() *ChallengeCounter {
	return &ChallengeCounter{counts: make(map[string]int)}
}

func (c *ChallengeCounter) Increment(_ context.Context, userID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID]++
	return c.counts[userID], nil
}

// Count returns the number of challenges recorded for userID.
func (c *ChallengeCounter) Count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID]
}
