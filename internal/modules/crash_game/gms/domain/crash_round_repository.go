package domain

import (
	"context"
)

// CrashRoundRepository defines the interface for round audit persistence
type CrashRoundRepository interface {
	Create(ctx context.Context, round *CrashRound) error
	ListRecent(ctx context.Context, limit int) ([]CrashRound, error)
	FindByHashedSeed(ctx context.Context, hashedServerSeed string, nonce int) (*CrashRound, error)
}
