package crash_game

import (
	"context"

	"github.com/Hollow93/social-casino/pkg/service"
)

// Settlement summarizes one round's resolution
type Settlement struct {
	Bets    int
	Players int
	Staked  float64
	Paid    float64
}

// RoundLedger is what the round scheduler drives, in this order each round
type RoundLedger interface {
	PrepareNewRound(ctx context.Context)
	ActivateAutoBets(ctx context.Context)
	ActivateBets(ctx context.Context)
	ResolveBets(ctx context.Context, crashPoint float64) Settlement
}

// BetService is what the gateway drives on behalf of a connected player
type BetService interface {
	Connect(ctx context.Context, userID int64, conn service.Conn)
	Disconnect(ctx context.Context, userID int64, conn service.Conn)
	PlaceBet(ctx context.Context, userID int64, panel int, amount float64, autoCashoutAt *float64, autoBet bool)
	CashOut(ctx context.Context, userID int64, panel int)
}
