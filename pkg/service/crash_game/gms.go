package crash_game

import "github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"

// RoundClock exposes the round timing the bet ledger needs
type RoundClock interface {
	// BetsOpen is false from launch until the next round is prepared
	BetsOpen() bool
	// LiveMultiplier is the current multiplier; ok is false outside the flight phase
	LiveMultiplier() (multiplier float64, ok bool)
	// RoundID of the round bets are currently placed into
	RoundID() string
}

// SyncSource produces the state snapshot sent to a player right after admission
type SyncSource interface {
	InitialSync() protocol.Outbound
}
