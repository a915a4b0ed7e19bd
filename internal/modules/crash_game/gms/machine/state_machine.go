package machine

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/fair"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/Hollow93/social-casino/pkg/service/crash_game"
	"github.com/google/uuid"
)

// EventType identifies a state machine event
type EventType int

const (
	EventRoundStarted EventType = iota
	EventRoundCrashed
	EventMachineStopped
)

// GameEvent is delivered asynchronously to registered handlers
type GameEvent struct {
	Type       EventType
	RoundID    string
	Round      domain.RoundInfo
	Settlement crash_game.Settlement
	// ServerSeed of the crashed round, for the operator's audit record only
	ServerSeed string
}

// EventHandler handles game events
type EventHandler func(event GameEvent)

// StateMachine runs the perpetual WAITING -> ACTIVE -> CRASHED -> COOLDOWN loop.
// It exclusively owns the fairness engine, the current round and the history.
type StateMachine struct {
	mu           sync.RWMutex
	engine       *fair.Engine
	currentRound *domain.Round
	history      *domain.History
	publicSeed   string
	roundCounter int

	// retired seeds, most recent first; pendingReveal goes out with the next round_end
	retired       []domain.RetiredSeed
	retiredLimit  int
	pendingReveal *domain.RetiredSeed

	ledger        crash_game.RoundLedger
	broadcaster   service.Broadcaster
	eventHandlers []EventHandler

	// durations for each phase
	TickInterval     time.Duration
	Countdown        int
	CooldownDuration time.Duration
	FlightDuration   func(crashPoint float64) time.Duration

	now      func() time.Time
	stopping bool
}

// NewStateMachine creates a new state machine
func NewStateMachine(engine *fair.Engine, ledger crash_game.RoundLedger, broadcaster service.Broadcaster, historySize int) *StateMachine {
	if historySize <= 0 {
		historySize = 30
	}
	return &StateMachine{
		engine:           engine,
		history:          domain.NewHistory(historySize),
		publicSeed:       engine.HashedServerSeed(),
		retired:          make([]domain.RetiredSeed, 0),
		retiredLimit:     historySize,
		ledger:           ledger,
		broadcaster:      broadcaster,
		eventHandlers:    make([]EventHandler, 0),
		TickInterval:     time.Second,
		Countdown:        10,
		CooldownDuration: 5 * time.Second,
		FlightDuration:   fair.TimeToReach,
		now:              time.Now,
	}
}

// RegisterEventHandler registers an event handler
func (sm *StateMachine) RegisterEventHandler(handler EventHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.eventHandlers = append(sm.eventHandlers, handler)
}

// emitEvent emits an event to all handlers
func (sm *StateMachine) emitEvent(event GameEvent) {
	sm.mu.RLock()
	handlers := make([]EventHandler, len(sm.eventHandlers))
	copy(handlers, sm.eventHandlers)
	sm.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

// Stop signals the state machine to stop after the current round
func (sm *StateMachine) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stopping = true
}

func (sm *StateMachine) isStopping() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stopping
}

// Start runs rounds until Stop is called or ctx is done
func (sm *StateMachine) Start(ctx context.Context) {
	logger.Info(ctx).Msg("🚀 [GMS] State Machine Started")
	for {
		if sm.isStopping() || ctx.Err() != nil {
			logger.Info(ctx).Msg("🛑 [GMS] State Machine Stopping (Graceful)")
			sm.emitEvent(GameEvent{Type: EventMachineStopped})
			return
		}

		sm.runRound(ctx)
	}
}

// runRound executes a single round. A panic aborts only this round.
func (sm *StateMachine) runRound(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("💥 [GMS] Round aborted by panic, continuing after cooldown")
			sm.wait(ctx, sm.CooldownDuration)
		}
	}()

	//--------------------------------------------
	// Waiting phase
	//--------------------------------------------
	sm.ledger.PrepareNewRound(ctx)

	if seed, rotated := sm.engine.RotateIfExhausted(); rotated {
		sm.retireSeed(seed)
		logger.Info(ctx).
			Str("retired_hashed_server_seed", seed.HashedServerSeed).
			Int("last_nonce", seed.Nonce).
			Str("hashed_server_seed", sm.engine.HashedServerSeed()).
			Msg("🔑 [GMS] Server seed rotated")
	}

	sm.mu.Lock()
	sm.roundCounter++
	sm.publicSeed = sm.engine.HashedServerSeed()
	round := domain.NewRound(uuid.NewString(), sm.publicSeed, sm.Countdown)
	sm.currentRound = round
	roundID := round.RoundID
	sm.mu.Unlock()

	ctx = logger.WithFields(ctx, map[string]interface{}{"round_id": roundID})

	logger.Info(ctx).
		Int("round_counter", sm.roundCounter).
		Int("countdown", sm.Countdown).
		Msg("⏳ [GMS] Waiting for bets")

	for i := sm.Countdown; i > 0; i-- {
		sm.mu.Lock()
		round.Countdown = i
		history := sm.historyMessage()
		sm.mu.Unlock()

		sm.broadcaster.Broadcast(ctx, protocol.Waiting{
			Countdown:        i,
			History:          history,
			HashedServerSeed: round.HashedServerSeed,
		})

		if !sm.wait(ctx, sm.TickInterval) {
			logger.Warn(ctx).Msg("🛑 [GMS] Countdown interrupted, refunding bets")
			sm.ledger.PrepareNewRound(context.WithoutCancel(ctx))
			return
		}
	}

	//--------------------------------------------
	// Launch
	//--------------------------------------------
	sm.ledger.ActivateAutoBets(ctx)

	crashPoint, nonce := sm.engine.CalculateCrashPoint()
	serverSeed := sm.engine.Seed().ServerSeed

	sm.mu.Lock()
	round.Launch(nonce, crashPoint, sm.now())
	startTime := *round.StartTime
	sm.mu.Unlock()

	sm.ledger.ActivateBets(ctx)

	logger.Info(ctx).
		Int("nonce", nonce).
		Float64("crash_point", crashPoint).
		Msg("🟢 [GMS] Round started")

	sm.broadcaster.Broadcast(ctx, protocol.RoundStart{StartTime: unixSeconds(startTime)})
	sm.emitEvent(GameEvent{Type: EventRoundStarted, RoundID: roundID})

	//--------------------------------------------
	// Active phase, no ticks: clients derive the multiplier from startTime
	//--------------------------------------------
	flight := sm.FlightDuration(crashPoint)
	interrupted := !sm.wait(ctx, flight)
	if interrupted {
		logger.Warn(ctx).Dur("flight", flight).Msg("🛑 [GMS] Flight interrupted, crashing now")
		// settlement must still reach the balance store
		ctx = context.WithoutCancel(ctx)
	}

	//--------------------------------------------
	// Crashed phase
	//--------------------------------------------
	sm.mu.Lock()
	round.Crash(sm.now())
	// the seed is still live: neither history nor round_end may carry it
	info := domain.RoundInfo{
		RoundID:          roundID,
		Multiplier:       crashPoint,
		HashedServerSeed: round.HashedServerSeed,
		Nonce:            nonce,
		StartedAt:        startTime,
		EndedAt:          *round.EndTime,
	}
	sm.history.Push(info)
	history := sm.historyMessage()
	reveal := sm.pendingReveal
	sm.pendingReveal = nil
	sm.mu.Unlock()

	logger.Info(ctx).
		Int("nonce", nonce).
		Float64("crash_point", crashPoint).
		Msg("💥 [GMS] Crashed")

	end := protocol.RoundEnd{
		CrashPoint: crashPoint,
		History:    history,
		RoundInfo: protocol.RoundInfo{
			Multiplier:       crashPoint,
			HashedServerSeed: info.HashedServerSeed,
			Nonce:            nonce,
		},
	}
	if reveal != nil {
		end.RetiredSeed = &protocol.RetiredSeed{
			ServerSeed:       reveal.ServerSeed,
			HashedServerSeed: reveal.HashedServerSeed,
			LastNonce:        reveal.LastNonce,
		}
	}
	sm.broadcaster.Broadcast(ctx, end)

	settlement := sm.ledger.ResolveBets(ctx, crashPoint)

	logger.Info(ctx).
		Int("bets", settlement.Bets).
		Int("players", settlement.Players).
		Float64("staked", settlement.Staked).
		Float64("paid", settlement.Paid).
		Msg("📊 [GMS] Bets resolved")

	sm.emitEvent(GameEvent{
		Type:       EventRoundCrashed,
		RoundID:    roundID,
		Round:      info,
		Settlement: settlement,
		ServerSeed: serverSeed,
	})

	//--------------------------------------------
	// Cooldown
	//--------------------------------------------
	sm.mu.Lock()
	round.Cooldown()
	sm.mu.Unlock()

	if !interrupted {
		sm.wait(ctx, sm.CooldownDuration)
	}
}

// retireSeed publishes a rotated-out seed: past rounds in history get their
// seed and the next round_end announces it
func (sm *StateMachine) retireSeed(seed fair.Seed) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	rs := domain.RetiredSeed{
		ServerSeed:       seed.ServerSeed,
		HashedServerSeed: seed.HashedServerSeed,
		LastNonce:        seed.Nonce,
		RetiredAt:        sm.now(),
	}
	sm.history.Reveal(rs.HashedServerSeed, rs.ServerSeed)

	sm.retired = append([]domain.RetiredSeed{rs}, sm.retired...)
	if len(sm.retired) > sm.retiredLimit {
		sm.retired = sm.retired[:sm.retiredLimit]
	}
	sm.pendingReveal = &rs
}

// wait sleeps for d; false means ctx ended first
func (sm *StateMachine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// historyMessage must be called with sm.mu held
func (sm *StateMachine) historyMessage() []protocol.HistoryEntry {
	entries := sm.history.Entries()
	out := make([]protocol.HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = protocol.HistoryEntry{Multiplier: e.Multiplier}
	}
	return out
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// BetsOpen is true while the current round has no start time
func (sm *StateMachine) BetsOpen() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentRound != nil && !sm.currentRound.Started()
}

// LiveMultiplier is the multiplier for a cash-out right now, capped at the crash point
func (sm *StateMachine) LiveMultiplier() (float64, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	r := sm.currentRound
	if r == nil || r.Phase != domain.PhaseActive || r.StartTime == nil {
		return 0, false
	}
	m := fair.MultiplierAt(sm.now().Sub(*r.StartTime))
	if m > r.CrashPoint {
		m = r.CrashPoint
	}
	return m, true
}

// InitialSync is sent to a freshly admitted player
func (sm *StateMachine) InitialSync() protocol.Outbound {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	history := sm.historyMessage()
	r := sm.currentRound
	if r != nil && r.Started() {
		return protocol.RoundStart{
			StartTime:     unixSeconds(*r.StartTime),
			History:       history,
			IsInitialSync: true,
		}
	}

	waiting := protocol.Waiting{
		History:          history,
		HashedServerSeed: sm.publicSeed,
		IsInitialSync:    true,
	}
	if r != nil {
		waiting.Countdown = r.Countdown
	}
	return waiting
}

// History returns finished rounds, most recent first
func (sm *StateMachine) History() []domain.RoundInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.history.Entries()
}

// RetiredSeeds returns seeds that no longer generate rounds, most recent first
func (sm *StateMachine) RetiredSeeds() []domain.RetiredSeed {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]domain.RetiredSeed, len(sm.retired))
	copy(out, sm.retired)
	return out
}

// Phase of the current round
func (sm *StateMachine) Phase() domain.Phase {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.currentRound == nil {
		return domain.PhaseWaiting
	}
	return sm.currentRound.Phase
}

// RoundID of the current round, empty before the first one
func (sm *StateMachine) RoundID() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.currentRound == nil {
		return ""
	}
	return sm.currentRound.RoundID
}
