package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
	"github.com/Hollow93/social-casino/internal/modules/gateway/domain"
	"github.com/Hollow93/social-casino/internal/modules/wallet"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	panel  int
	amount float64
	auto   *float64
}

type fakeBets struct {
	calls []call
	conns []service.Conn
}

func (f *fakeBets) Connect(ctx context.Context, userID int64, conn service.Conn) {
	f.conns = append(f.conns, conn)
}

func (f *fakeBets) Disconnect(ctx context.Context, userID int64, conn service.Conn) {
	f.calls = append(f.calls, call{name: "disconnect"})
}

func (f *fakeBets) PlaceBet(ctx context.Context, userID int64, panel int, amount float64, autoCashoutAt *float64, autoBet bool) {
	f.calls = append(f.calls, call{name: "place", panel: panel, amount: amount, auto: autoCashoutAt})
}

func (f *fakeBets) CashOut(ctx context.Context, userID int64, panel int) {
	f.calls = append(f.calls, call{name: "cash_out", panel: panel})
}

type syncFunc func() protocol.Outbound

func (f syncFunc) InitialSync() protocol.Outbound { return f() }

type bufConn struct {
	frames []string
	err    error
}

func (c *bufConn) Send(payload []byte) error {
	if c.err != nil {
		return c.err
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	c.frames = append(c.frames, env.Type)
	return nil
}

func (c *bufConn) Close() {}

type recordingSink struct {
	source   string
	username interface{}
}

func (s *recordingSink) Track(ctx context.Context, eventType string, userID int64, payload map[string]interface{}, source string) {
	s.source = source
	s.username = payload["username"]
}

func TestAdmit(t *testing.T) {
	bets := &fakeBets{}
	store := wallet.NewMemoryStore(0)
	sink := &recordingSink{}
	uc := NewGatewayUseCase(bets, syncFunc(func() protocol.Outbound {
		return protocol.RoundStart{StartTime: 1700000000.5, IsInitialSync: true}
	}), store, sink)

	conn := &bufConn{}
	err := uc.Admit(context.Background(), domain.Session{UserID: 5, Username: "bob", Source: "ads"}, conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"balance_update", "round_start"}, conn.frames)
	assert.Len(t, bets.conns, 1)
	assert.Equal(t, "ads", sink.source)
	assert.Equal(t, "bob", sink.username)

	balance, err := store.GetBalance(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestAdmitSendFailure(t *testing.T) {
	uc := NewGatewayUseCase(&fakeBets{}, syncFunc(func() protocol.Outbound {
		return protocol.Waiting{}
	}), wallet.NewMemoryStore(0), nil)

	err := uc.Admit(context.Background(), domain.Session{UserID: 1}, &bufConn{err: errors.New("gone")})
	assert.Error(t, err)
}

func TestHandleMessageDispatch(t *testing.T) {
	bets := &fakeBets{}
	uc := NewGatewayUseCase(bets, nil, wallet.NewMemoryStore(0), nil)
	ctx := context.Background()

	require.NoError(t, uc.HandleMessage(ctx, 1, []byte(`{"type":"place_bet","panelId":"1","amount":12.5,"autoCashoutAt":2}`)))
	require.NoError(t, uc.HandleMessage(ctx, 1, []byte(`{"type":"cash_out","panelId":0}`)))
	require.NoError(t, uc.HandleMessage(ctx, 1, []byte(`{"action":"handshake","init_data":"x"}`)))

	assert.Error(t, uc.HandleMessage(ctx, 1, []byte(`{"type":"jump"}`)))
	assert.Error(t, uc.HandleMessage(ctx, 1, []byte(`not json`)))
	assert.Error(t, uc.HandleMessage(ctx, 1, []byte(`{"type":"place_bet","panelId":0}`)))

	require.Len(t, bets.calls, 2)
	assert.Equal(t, "place", bets.calls[0].name)
	assert.Equal(t, 1, bets.calls[0].panel)
	assert.Equal(t, 12.5, bets.calls[0].amount)
	require.NotNil(t, bets.calls[0].auto)
	assert.Equal(t, 2.0, *bets.calls[0].auto)
	assert.Equal(t, call{name: "cash_out", panel: 0}, bets.calls[1])

	uc.Leave(ctx, 1, nil)
	assert.Equal(t, "disconnect", bets.calls[2].name)
}
