// Package usecase implements the bet ledger of the crash game GS module.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	analytics "github.com/Hollow93/social-casino/internal/modules/analytics/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/gs/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/Hollow93/social-casino/pkg/service/crash_game"
	"golang.org/x/sync/errgroup"
)

// player holds one user's two bet slots. mu serializes every
// check-flip-credit sequence on them.
type player struct {
	mu    sync.Mutex
	slots domain.Slots
}

// BetLedger owns bets and the connection registry.
//
// Lock order: a player's mu may be held while taking l.mu, never the reverse.
type BetLedger struct {
	mu      sync.RWMutex
	conns   map[int64]service.Conn
	players map[int64]*player

	clock        crash_game.RoundClock
	walletSvc    service.WalletService
	sink         service.EventSink
	betOrderRepo domain.BetOrderRepository

	balanceWorkers int
	now            func() time.Time
}

// NewBetLedger creates a ledger. betOrderRepo and sink may be nil.
func NewBetLedger(walletSvc service.WalletService, sink service.EventSink, betOrderRepo domain.BetOrderRepository) *BetLedger {
	if sink == nil {
		sink = service.NopEventSink{}
	}
	return &BetLedger{
		conns:          make(map[int64]service.Conn),
		players:        make(map[int64]*player),
		walletSvc:      walletSvc,
		sink:           sink,
		betOrderRepo:   betOrderRepo,
		balanceWorkers: 16,
		now:            time.Now,
	}
}

// SetRoundClock sets the round clock (to resolve circular dependency)
func (l *BetLedger) SetRoundClock(clock crash_game.RoundClock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

func (l *BetLedger) roundClock() crash_game.RoundClock {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.clock
}

//--------------------------------------------
// Connection registry
//--------------------------------------------

// Connect registers conn for userID, superseding any previous handle
func (l *BetLedger) Connect(ctx context.Context, userID int64, conn service.Conn) {
	l.mu.Lock()
	_, replaced := l.conns[userID]
	l.conns[userID] = conn
	total := len(l.conns)
	l.mu.Unlock()

	logger.Info(ctx).
		Int64("user_id", userID).
		Bool("replaced", replaced).
		Int("online", total).
		Msg("Player connected")
}

// Disconnect drops the user's handle and bets. A stale handle is ignored
// so a superseded socket cannot tear down its replacement.
// Must not take a player's mu: send failures call it while one is held.
func (l *BetLedger) Disconnect(ctx context.Context, userID int64, conn service.Conn) {
	l.mu.Lock()
	current, ok := l.conns[userID]
	if !ok || (conn != nil && current != conn) {
		l.mu.Unlock()
		return
	}
	delete(l.conns, userID)
	_, hadBets := l.players[userID]
	delete(l.players, userID)
	l.mu.Unlock()

	logger.Info(ctx).
		Int64("user_id", userID).
		Bool("had_bets", hadBets).
		Msg("Player disconnected")
}

// Online returns the number of registered connections
func (l *BetLedger) Online() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.conns)
}

// Broadcast sends msg to every connection. A failed send removes that connection only.
func (l *BetLedger) Broadcast(ctx context.Context, msg protocol.Outbound) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Failed to encode broadcast")
		return
	}

	l.mu.RLock()
	targets := make(map[int64]service.Conn, len(l.conns))
	for userID, conn := range l.conns {
		targets[userID] = conn
	}
	l.mu.RUnlock()

	for userID, conn := range targets {
		if err := conn.Send(payload); err != nil {
			l.dropConn(ctx, userID, conn, err)
		}
	}
}

// SendToUser sends msg to one user if connected
func (l *BetLedger) SendToUser(ctx context.Context, userID int64, msg protocol.Outbound) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		logger.Error(ctx).Err(err).Int64("user_id", userID).Msg("Failed to encode message")
		return
	}

	l.mu.RLock()
	conn := l.conns[userID]
	l.mu.RUnlock()
	if conn == nil {
		return
	}

	if err := conn.Send(payload); err != nil {
		l.dropConn(ctx, userID, conn, err)
	}
}

func (l *BetLedger) dropConn(ctx context.Context, userID int64, conn service.Conn, cause error) {
	logger.Warn(ctx).Err(cause).Int64("user_id", userID).Msg("Send failed, disconnecting")
	conn.Close()
	l.Disconnect(ctx, userID, conn)
}

//--------------------------------------------
// Player operations
//--------------------------------------------

func (l *BetLedger) player(userID int64, create bool) *player {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.players[userID]
	if p == nil && create {
		p = &player{}
		l.players[userID] = p
	}
	return p
}

// snapshotPlayers returns every player with bets
func (l *BetLedger) snapshotPlayers() map[int64]*player {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[int64]*player, len(l.players))
	for userID, p := range l.players {
		out[userID] = p
	}
	return out
}

// PlaceBet stakes amount on panel for the upcoming round. Failures are
// reported to the user as bet_error.
func (l *BetLedger) PlaceBet(ctx context.Context, userID int64, panel int, amount float64, autoCashoutAt *float64, autoBet bool) {
	ctx = logger.WithUser(ctx, userID)

	if err := l.placeBet(ctx, userID, domain.Panel(panel), amount, autoCashoutAt, autoBet); err != nil {
		logger.Info(ctx).
			Err(err).
			Int("panel_id", panel).
			Float64("amount", amount).
			Msg("Bet rejected")
		l.SendToUser(ctx, userID, protocol.BetError{PanelID: panel, Message: domain.UserMessage(err)})
	}
}

func (l *BetLedger) placeBet(ctx context.Context, userID int64, panel domain.Panel, amount float64, autoCashoutAt *float64, autoBet bool) error {
	if !panel.Valid() {
		return domain.ErrInvalidPanel
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.ErrInvalidAmount
	}
	amount = domain.RoundCents(amount)
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if autoCashoutAt != nil && (math.IsNaN(*autoCashoutAt) || *autoCashoutAt < 1) {
		return domain.ErrInvalidAutoCash
	}

	clock := l.roundClock()
	p := l.player(userID, true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if clock == nil || !clock.BetsOpen() {
		return domain.ErrTooLate
	}

	existing, err := p.slots.Get(panel)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrSlotTaken
	}

	balance, err := l.walletSvc.GetBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}

	l.sink.Track(ctx, analytics.EventBetPlaced, userID, map[string]interface{}{
		"amount":          amount,
		"panel_id":        int(panel),
		"current_balance": balance,
		"auto_cashout_at": autoCashoutAt,
	}, "")

	if balance < amount {
		l.trackInsufficient(ctx, userID, amount, balance)
		return domain.ErrInsufficientFunds
	}

	newBalance, err := l.walletSvc.UpdateBalance(ctx, userID, amount, service.BalanceDec)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			l.trackInsufficient(ctx, userID, amount, newBalance)
		}
		return fmt.Errorf("debit: %w", err)
	}

	bet := domain.NewBet(clock.RoundID(), userID, panel, amount, autoCashoutAt, autoBet)
	if err := p.slots.Put(bet); err != nil {
		// unreachable while p.mu is held; refund rather than lose the stake
		l.credit(ctx, userID, amount)
		return err
	}

	logger.Info(ctx).
		Str("bet_id", bet.BetID).
		Int("panel_id", int(panel)).
		Float64("amount", amount).
		Bool("auto_bet", autoBet).
		Float64("balance", newBalance).
		Msg("Bet placed")

	l.SendToUser(ctx, userID, protocol.BetConfirm{PanelID: int(panel)})
	l.SendToUser(ctx, userID, protocol.BalanceUpdate{Balance: newBalance})
	return nil
}

func (l *BetLedger) trackInsufficient(ctx context.Context, userID int64, amount, balance float64) {
	l.sink.Track(ctx, analytics.EventInsufficientFunds, userID, map[string]interface{}{
		"amount_bet": amount,
		"balance":    balance,
	}, "")
}

// credit adds amount and returns the new balance; ok is false when the store failed
func (l *BetLedger) credit(ctx context.Context, userID int64, amount float64) (float64, bool) {
	balance, err := l.walletSvc.UpdateBalance(ctx, userID, amount, service.BalanceInc)
	if err != nil {
		logger.Error(ctx).Err(err).
			Int64("user_id", userID).
			Float64("amount", amount).
			Msg("Failed to credit balance")
		return 0, false
	}
	return balance, true
}

// CashOut settles an active bet at the live multiplier. It is a no-op when
// the bet is not active or the round is not in flight.
func (l *BetLedger) CashOut(ctx context.Context, userID int64, panel int) {
	ctx = logger.WithUser(ctx, userID)

	clock := l.roundClock()
	p := l.player(userID, false)
	if p == nil || clock == nil {
		return
	}

	p.mu.Lock()
	bet, err := p.slots.Find(domain.Panel(panel))
	if err != nil {
		p.mu.Unlock()
		logger.Debug(ctx).Err(err).Int("panel_id", panel).Msg("Cash-out ignored")
		return
	}

	multiplier, running := clock.LiveMultiplier()
	if !running {
		p.mu.Unlock()
		logger.Debug(ctx).Int("panel_id", panel).Msg("Cash-out ignored: round not running")
		return
	}

	win, ok := bet.CashOut(multiplier, domain.CashoutManual, l.now())
	if !ok {
		p.mu.Unlock()
		logger.Debug(ctx).Int("panel_id", panel).Str("status", string(bet.Status)).Msg("Cash-out ignored: bet not active")
		return
	}

	l.sink.Track(ctx, analytics.EventBetWin, userID, map[string]interface{}{
		"bet_amount":   bet.Amount,
		"win_amount":   win,
		"multiplier":   multiplier,
		"cashout_type": string(domain.CashoutManual),
	}, "")

	balance, credited := l.credit(ctx, userID, win)

	cashedOutAt := domain.RoundCents(multiplier)
	l.SendToUser(ctx, userID, protocol.BetResult{PanelID: panel, WinAmount: win, CashedOutAt: &cashedOutAt})
	if credited {
		l.SendToUser(ctx, userID, protocol.BalanceUpdate{Balance: balance})
	}
	order := domain.NewBetOrder(bet)
	p.mu.Unlock()

	logger.Info(ctx).
		Str("bet_id", bet.BetID).
		Int("panel_id", panel).
		Float64("multiplier", multiplier).
		Float64("win", win).
		Msg("Cashed out")

	l.saveOrders(ctx, []*domain.BetOrder{order})
}

//--------------------------------------------
// Round operations, driven by the state machine
//--------------------------------------------

// PrepareNewRound keeps only auto-bets, as unpaid placeholders. Bets a
// failed round left unsettled are refunded.
func (l *BetLedger) PrepareNewRound(ctx context.Context) {
	for userID, p := range l.snapshotPlayers() {
		p.mu.Lock()
		for panel := domain.Panel(0); int(panel) < domain.PanelCount; panel++ {
			bet, _ := p.slots.Get(panel)
			if bet == nil {
				continue
			}

			switch {
			case bet.Status == domain.BetStatusPlaced || bet.Status == domain.BetStatusActive:
				logger.Warn(ctx).
					Int64("user_id", userID).
					Str("bet_id", bet.BetID).
					Str("status", string(bet.Status)).
					Msg("Refunding bet left unsettled by an aborted round")
				p.slots.Clear(panel)
				if balance, ok := l.credit(ctx, userID, bet.Amount); ok {
					l.SendToUser(ctx, userID, protocol.BalanceUpdate{Balance: balance})
				}
			case bet.AutoBet && bet.Settled():
				p.slots.Clear(panel)
				_ = p.slots.Put(bet.Requeue())
			case bet.AutoBet && bet.Status == domain.BetStatusQueued:
				// still waiting to be paid for
			default:
				p.slots.Clear(panel)
			}
		}
		p.mu.Unlock()
	}
}

// ActivateAutoBets debits and promotes queued auto-bets before betting closes.
// A player who can no longer afford one loses the placeholder and gets bet_error.
func (l *BetLedger) ActivateAutoBets(ctx context.Context) {
	clock := l.roundClock()
	roundID := ""
	if clock != nil {
		roundID = clock.RoundID()
	}

	for userID, p := range l.snapshotPlayers() {
		p.mu.Lock()
		p.slots.Each(func(bet *domain.Bet) {
			if bet.Status != domain.BetStatusQueued {
				return
			}
			uctx := logger.WithUser(ctx, userID)

			balance, err := l.walletSvc.UpdateBalance(uctx, userID, bet.Amount, service.BalanceDec)
			if err != nil {
				p.slots.Clear(bet.Panel)
				if errors.Is(err, domain.ErrInsufficientFunds) {
					l.trackInsufficient(uctx, userID, bet.Amount, balance)
				} else {
					logger.Error(uctx).Err(err).Str("bet_id", bet.BetID).Msg("Auto-bet debit failed")
				}
				l.SendToUser(uctx, userID, protocol.BetError{PanelID: int(bet.Panel), Message: domain.UserMessage(err)})
				return
			}

			bet.Promote(roundID, l.now())
			l.sink.Track(uctx, analytics.EventBetPlaced, userID, map[string]interface{}{
				"amount":          bet.Amount,
				"panel_id":        int(bet.Panel),
				"current_balance": balance + bet.Amount,
				"auto_cashout_at": bet.AutoCashoutAt,
				"auto_bet":        true,
			}, "")
			l.SendToUser(uctx, userID, protocol.BetConfirm{PanelID: int(bet.Panel)})
			l.SendToUser(uctx, userID, protocol.BalanceUpdate{Balance: balance})
		})
		p.mu.Unlock()
	}
}

// ActivateBets moves every placed bet into the running round
func (l *BetLedger) ActivateBets(ctx context.Context) {
	activated := 0
	for _, p := range l.snapshotPlayers() {
		p.mu.Lock()
		p.slots.Each(func(bet *domain.Bet) {
			if bet.Activate() {
				activated++
			}
		})
		p.mu.Unlock()
	}
	logger.Debug(ctx).Int("activated", activated).Msg("Bets activated")
}

// ResolveBets settles every still-active bet against crashPoint, then sends
// every connected player their balance.
func (l *BetLedger) ResolveBets(ctx context.Context, crashPoint float64) crash_game.Settlement {
	var (
		summary crash_game.Settlement
		orders  []*domain.BetOrder
	)
	roundID := ""
	if clock := l.roundClock(); clock != nil {
		roundID = clock.RoundID()
	}

	for userID, p := range l.snapshotPlayers() {
		uctx := logger.WithUser(ctx, userID)
		participated := false

		p.mu.Lock()
		p.slots.Each(func(bet *domain.Bet) {
			if bet.Status == domain.BetStatusActive {
				participated = true
				summary.Bets++
				summary.Staked += bet.Amount
				orders = append(orders, l.resolveBet(uctx, userID, bet, crashPoint))
				summary.Paid += bet.WinAmount
				return
			}
			// settled by a manual cash-out during this round
			if bet.Status == domain.BetStatusCashedOut && bet.RoundID == roundID && roundID != "" {
				participated = true
				summary.Bets++
				summary.Staked += bet.Amount
				summary.Paid += bet.WinAmount
			}
		})
		p.mu.Unlock()

		if participated {
			summary.Players++
		}
	}

	l.saveOrders(ctx, orders)
	l.broadcastBalances(ctx)

	summary.Staked = domain.RoundCents(summary.Staked)
	summary.Paid = domain.RoundCents(summary.Paid)
	return summary
}

// resolveBet must be called with the owner's mu held
func (l *BetLedger) resolveBet(ctx context.Context, userID int64, bet *domain.Bet, crashPoint float64) *domain.BetOrder {
	now := l.now()

	if bet.AutoCashoutAt != nil && *bet.AutoCashoutAt <= crashPoint {
		target := *bet.AutoCashoutAt
		win, _ := bet.CashOut(target, domain.CashoutAuto, now)

		l.sink.Track(ctx, analytics.EventBetWin, userID, map[string]interface{}{
			"bet_amount":   bet.Amount,
			"win_amount":   win,
			"multiplier":   target,
			"cashout_type": string(domain.CashoutAuto),
		}, "")
		l.credit(ctx, userID, win)
		l.SendToUser(ctx, userID, protocol.BetResult{PanelID: int(bet.Panel), WinAmount: win, CashedOutAt: &target})
	} else {
		bet.Lose(now)
		l.sink.Track(ctx, analytics.EventBetLoss, userID, map[string]interface{}{
			"bet_amount":  bet.Amount,
			"crash_point": crashPoint,
		}, "")
		l.SendToUser(ctx, userID, protocol.BetResult{PanelID: int(bet.Panel), WinAmount: 0})
	}

	return domain.NewBetOrder(bet)
}

// broadcastBalances reads and sends every connected player's balance
func (l *BetLedger) broadcastBalances(ctx context.Context) {
	l.mu.RLock()
	userIDs := make([]int64, 0, len(l.conns))
	for userID := range l.conns {
		userIDs = append(userIDs, userID)
	}
	l.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(l.balanceWorkers)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			balance, err := l.walletSvc.GetBalance(ctx, userID)
			if err != nil {
				logger.Warn(ctx).Err(err).Int64("user_id", userID).Msg("Failed to read balance")
				return nil
			}
			l.SendToUser(ctx, userID, protocol.BalanceUpdate{Balance: balance})
			return nil
		})
	}
	_ = g.Wait()
}

func (l *BetLedger) saveOrders(ctx context.Context, orders []*domain.BetOrder) {
	if l.betOrderRepo == nil || len(orders) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := l.betOrderRepo.BatchCreate(ctx, orders); err != nil {
		logger.Error(ctx).Err(err).Int("count", len(orders)).Msg("Failed to persist bet orders")
	}
}
