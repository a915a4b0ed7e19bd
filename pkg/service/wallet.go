package service

import (
	"context"
	"errors"
)

// ErrInsufficientFunds is returned by a conditional debit that would go below zero
var ErrInsufficientFunds = errors.New("insufficient funds")

// BalanceOp selects how UpdateBalance applies the amount
type BalanceOp int

const (
	BalanceSet BalanceOp = iota
	BalanceInc
	BalanceDec
)

func (op BalanceOp) String() string {
	switch op {
	case BalanceSet:
		return "set"
	case BalanceInc:
		return "inc"
	case BalanceDec:
		return "dec"
	default:
		return "unknown"
	}
}

// WalletService is the balance store. Implementations must be safe for
// concurrent callers; BalanceDec is atomic and fails with ErrInsufficientFunds
// instead of going negative.
type WalletService interface {
	GetBalance(ctx context.Context, userID int64) (float64, error)
	UpdateBalance(ctx context.Context, userID int64, amount float64, op BalanceOp) (float64, error)
	// EnsurePlayer creates the player with a zero balance on first visit
	EnsurePlayer(ctx context.Context, userID int64, username string) error
}
