// Package usecase implements the business logic for the crash game GMS module.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/fair"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/machine"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/shopspring/decimal"
)

var ErrInvalidVerifyRequest = errors.New("serverSeed and a positive nonce are required")

// HistoryReader is the part of the state machine the use case reads
type HistoryReader interface {
	History() []domain.RoundInfo
	RetiredSeeds() []domain.RetiredSeed
}

// RoundUseCase records finished rounds and answers fairness queries
type RoundUseCase struct {
	history     HistoryReader
	roundRepo   domain.CrashRoundRepository
	clientSeed  string
	houseEdge   float64
	saveTimeout time.Duration
}

// NewRoundUseCase creates a new round use case. roundRepo may be nil.
func NewRoundUseCase(stateMachine *machine.StateMachine, roundRepo domain.CrashRoundRepository, clientSeed string, houseEdge float64) *RoundUseCase {
	uc := newRoundUseCase(stateMachine, roundRepo, clientSeed, houseEdge)

	// Register event handler to persist finished rounds
	stateMachine.RegisterEventHandler(uc.handleGameEvent)

	return uc
}

func newRoundUseCase(history HistoryReader, roundRepo domain.CrashRoundRepository, clientSeed string, houseEdge float64) *RoundUseCase {
	return &RoundUseCase{
		history:     history,
		roundRepo:   roundRepo,
		clientSeed:  clientSeed,
		houseEdge:   houseEdge,
		saveTimeout: 5 * time.Second,
	}
}

// handleGameEvent handles game events from the state machine
func (uc *RoundUseCase) handleGameEvent(event machine.GameEvent) {
	if event.Type != machine.EventRoundCrashed || uc.roundRepo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), uc.saveTimeout)
	defer cancel()

	info := event.Round
	record := &domain.CrashRound{
		RoundID:          info.RoundID,
		Nonce:            info.Nonce,
		CrashPoint:       info.Multiplier,
		ServerSeed:       event.ServerSeed,
		HashedServerSeed: info.HashedServerSeed,
		StartTime:        info.StartedAt,
		EndTime:          info.EndedAt,
		TotalBets:        event.Settlement.Bets,
		TotalPlayers:     event.Settlement.Players,
		TotalBetAmount:   round2(event.Settlement.Staked),
		TotalPayout:      round2(event.Settlement.Paid),
	}

	if err := uc.roundRepo.Create(ctx, record); err != nil {
		logger.Error(ctx).Err(err).
			Str("round_id", info.RoundID).
			Int("nonce", info.Nonce).
			Msg("Failed to persist crash round")
	}
}

// History returns up to limit finished rounds, most recent first. A round's
// server seed is included once that seed has been retired.
func (uc *RoundUseCase) History(limit int) []domain.RoundInfo {
	entries := uc.history.History()
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// RetiredSeeds returns revealed seeds, most recent first
func (uc *RoundUseCase) RetiredSeeds() []domain.RetiredSeed {
	return uc.history.RetiredSeeds()
}

// VerifyResult is the recomputed outcome, compared to the recorded one when known
type VerifyResult struct {
	fair.Verification
	Recorded *float64 `json:"recorded,omitempty"`
	Match    *bool    `json:"match,omitempty"`
}

// Verify recomputes the crash point of a revealed seed
func (uc *RoundUseCase) Verify(ctx context.Context, serverSeed string, nonce int) (*VerifyResult, error) {
	serverSeed = strings.TrimSpace(serverSeed)
	if serverSeed == "" || nonce <= 0 {
		return nil, ErrInvalidVerifyRequest
	}

	hashed := fair.HashSeed(serverSeed)
	result := &VerifyResult{
		Verification: fair.Verification{
			ServerSeed:       serverSeed,
			HashedServerSeed: hashed,
			ClientSeed:       uc.clientSeed,
			Nonce:            nonce,
			CrashPoint:       fair.CrashPoint(serverSeed, uc.clientSeed, nonce, uc.houseEdge),
		},
	}

	recorded, err := uc.findRecorded(ctx, hashed, nonce)
	if err != nil {
		return nil, fmt.Errorf("lookup recorded round: %w", err)
	}
	if recorded != nil {
		match := *recorded == result.CrashPoint
		result.Recorded = recorded
		result.Match = &match
	}
	return result, nil
}

func (uc *RoundUseCase) findRecorded(ctx context.Context, hashed string, nonce int) (*float64, error) {
	for _, info := range uc.history.History() {
		if info.HashedServerSeed == hashed && info.Nonce == nonce {
			point := info.Multiplier
			return &point, nil
		}
	}
	if uc.roundRepo == nil {
		return nil, nil
	}
	round, err := uc.roundRepo.FindByHashedSeed(ctx, hashed, nonce)
	if err != nil || round == nil {
		return nil, err
	}
	return &round.CrashPoint, nil
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
