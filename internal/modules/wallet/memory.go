// Package wallet holds the balance store implementations.
package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = service.ErrInsufficientFunds

// MemoryStore implements service.WalletService in process memory
type MemoryStore struct {
	balances       map[int64]decimal.Decimal
	usernames      map[int64]string
	defaultBalance decimal.Decimal
	mu             sync.RWMutex
}

// NewMemoryStore creates a store where unknown players hold defaultBalance
func NewMemoryStore(defaultBalance float64) *MemoryStore {
	return &MemoryStore{
		balances:       make(map[int64]decimal.Decimal),
		usernames:      make(map[int64]string),
		defaultBalance: decimal.NewFromFloat(defaultBalance),
	}
}

// SetBalance sets the balance for a user (for testing)
func (s *MemoryStore) SetBalance(userID int64, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = decimal.NewFromFloat(balance)
}

func (s *MemoryStore) EnsurePlayer(ctx context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.balances[userID]; !ok {
		s.balances[userID] = s.defaultBalance
	}
	s.usernames[userID] = username
	return nil
}

// GetBalance returns the user's balance
func (s *MemoryStore) GetBalance(ctx context.Context, userID int64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balanceLocked(userID).InexactFloat64(), nil
}

func (s *MemoryStore) balanceLocked(userID int64) decimal.Decimal {
	balance, exists := s.balances[userID]
	if !exists {
		return s.defaultBalance
	}
	return balance
}

// UpdateBalance applies op atomically under the store lock
func (s *MemoryStore) UpdateBalance(ctx context.Context, userID int64, amount float64, op service.BalanceOp) (float64, error) {
	delta := decimal.NewFromFloat(amount)

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balanceLocked(userID)
	switch op {
	case service.BalanceSet:
		balance = delta
	case service.BalanceInc:
		balance = balance.Add(delta)
	case service.BalanceDec:
		if balance.LessThan(delta) {
			return balance.InexactFloat64(), ErrInsufficientFunds
		}
		balance = balance.Sub(delta)
	default:
		return 0, fmt.Errorf("unknown balance op %d", op)
	}

	s.balances[userID] = balance
	return balance.InexactFloat64(), nil
}
