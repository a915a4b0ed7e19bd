// Package usecase implements the business logic for the gateway module.
package usecase

import (
	"context"
	"fmt"

	analytics "github.com/Hollow93/social-casino/internal/modules/analytics/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
	"github.com/Hollow93/social-casino/internal/modules/gateway/domain"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/Hollow93/social-casino/pkg/service/crash_game"
)

// GatewayUseCase routes admitted players to the crash game
type GatewayUseCase struct {
	betSvc    crash_game.BetService
	syncSrc   crash_game.SyncSource
	walletSvc service.WalletService
	sink      service.EventSink
}

var _ domain.GatewayUseCase = (*GatewayUseCase)(nil)

// NewGatewayUseCase creates a new gateway use case
func NewGatewayUseCase(betSvc crash_game.BetService, syncSrc crash_game.SyncSource, walletSvc service.WalletService, sink service.EventSink) *GatewayUseCase {
	if sink == nil {
		sink = service.NopEventSink{}
	}
	return &GatewayUseCase{
		betSvc:    betSvc,
		syncSrc:   syncSrc,
		walletSvc: walletSvc,
		sink:      sink,
	}
}

// Admit records the visit, registers conn and sends the balance and a round snapshot
func (uc *GatewayUseCase) Admit(ctx context.Context, session domain.Session, conn service.Conn) error {
	ctx = logger.WithUser(ctx, session.UserID)

	if err := uc.walletSvc.EnsurePlayer(ctx, session.UserID, session.Username); err != nil {
		logger.Warn(ctx).Err(err).Msg("Failed to record player visit")
	}

	uc.sink.Track(ctx, analytics.EventUserConnect, session.UserID, map[string]interface{}{
		"username": session.Username,
	}, session.Source)

	uc.betSvc.Connect(ctx, session.UserID, conn)

	balance, err := uc.walletSvc.GetBalance(ctx, session.UserID)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("Failed to read balance on connect")
	} else if err := send(conn, protocol.BalanceUpdate{Balance: balance}); err != nil {
		return err
	}

	return send(conn, uc.syncSrc.InitialSync())
}

// HandleMessage decodes one client frame and forwards it to the bet service
func (uc *GatewayUseCase) HandleMessage(ctx context.Context, userID int64, message []byte) error {
	msg, err := protocol.DecodeInbound(message)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	switch m := msg.(type) {
	case protocol.PlaceBet:
		uc.betSvc.PlaceBet(ctx, userID, m.Panel, m.Amount, m.AutoCashoutAt, m.AutoBet)
	case protocol.CashOut:
		uc.betSvc.CashOut(ctx, userID, m.Panel)
	case protocol.Handshake:
		logger.Debug(ctx).Msg("Handshake after admission ignored")
	}
	return nil
}

// Leave unregisters conn
func (uc *GatewayUseCase) Leave(ctx context.Context, userID int64, conn service.Conn) {
	uc.betSvc.Disconnect(ctx, userID, conn)
}

func send(conn service.Conn, msg protocol.Outbound) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := conn.Send(payload); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	return nil
}
