package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	analytics "github.com/Hollow93/social-casino/internal/modules/analytics/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/gs/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
	"github.com/Hollow93/social-casino/internal/modules/wallet"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu         sync.Mutex
	open       bool
	running    bool
	multiplier float64
	roundID    string
}

func (c *fakeClock) BetsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClock) LiveMultiplier() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multiplier, c.running
}

func (c *fakeClock) RoundID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roundID
}

// launch closes betting and starts the flight
func (c *fakeClock) launch(multiplier float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.running = true
	c.multiplier = multiplier
}

func (c *fakeClock) crash() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

func (c *fakeClock) nextRound(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.running = false
	c.roundID = id
}

type sentMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fakeConn struct {
	mu     sync.Mutex
	msgs   []sentMessage
	fail   bool
	closed bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send buffer full")
	}
	var m sentMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) ofType(t protocol.Type) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, m := range c.msgs {
		if m.Type == string(t) {
			out = append(out, m.Data)
		}
	}
	return out
}

func (c *fakeConn) lastBalance(t *testing.T) float64 {
	t.Helper()
	updates := c.ofType(protocol.TypeBalanceUpdate)
	require.NotEmpty(t, updates)
	var b protocol.BalanceUpdate
	require.NoError(t, json.Unmarshal(updates[len(updates)-1], &b))
	return b.Balance
}

func (c *fakeConn) betErrors(t *testing.T) []protocol.BetError {
	t.Helper()
	var out []protocol.BetError
	for _, raw := range c.ofType(protocol.TypeBetError) {
		var e protocol.BetError
		require.NoError(t, json.Unmarshal(raw, &e))
		out = append(out, e)
	}
	return out
}

func (c *fakeConn) results(t *testing.T) []protocol.BetResult {
	t.Helper()
	var out []protocol.BetResult
	for _, raw := range c.ofType(protocol.TypeBetResult) {
		var r protocol.BetResult
		require.NoError(t, json.Unmarshal(raw, &r))
		out = append(out, r)
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Track(ctx context.Context, eventType string, userID int64, payload map[string]interface{}, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
}

func (s *recordingSink) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders []*domain.BetOrder
}

func (r *memOrderRepo) BatchCreate(ctx context.Context, orders []*domain.BetOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, orders...)
	return nil
}

type fixture struct {
	ledger *BetLedger
	clock  *fakeClock
	wallet *wallet.MemoryStore
	sink   *recordingSink
	orders *memOrderRepo
}

func newFixture() *fixture {
	f := &fixture{
		clock:  &fakeClock{open: true, roundID: "round-1"},
		wallet: wallet.NewMemoryStore(0),
		sink:   &recordingSink{},
		orders: &memOrderRepo{},
	}
	f.ledger = NewBetLedger(f.wallet, f.sink, f.orders)
	f.ledger.SetRoundClock(f.clock)
	return f
}

func (f *fixture) connect(userID int64, balance float64) *fakeConn {
	f.wallet.SetBalance(userID, balance)
	conn := &fakeConn{}
	f.ledger.Connect(context.Background(), userID, conn)
	return conn
}

func (f *fixture) balance(t *testing.T, userID int64) float64 {
	t.Helper()
	b, err := f.wallet.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) bet(userID int64, panel domain.Panel) *domain.Bet {
	p := f.ledger.player(userID, false)
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b, _ := p.slots.Get(panel)
	return b
}

func ptr(v float64) *float64 { return &v }

func TestPlaceBetDebitsBalance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 40, nil, false)

	assert.Equal(t, 60.0, f.balance(t, 1))
	assert.Len(t, conn.ofType(protocol.TypeBetConfirm), 1)
	assert.Equal(t, 60.0, conn.lastBalance(t))

	bet := f.bet(1, 0)
	require.NotNil(t, bet)
	assert.Equal(t, domain.BetStatusPlaced, bet.Status)
	assert.Equal(t, 0.0, bet.WinAmount)
	assert.Nil(t, bet.CashedOutAt)
	assert.Equal(t, "round-1", bet.RoundID)
	assert.Equal(t, 1, f.sink.count(analytics.EventBetPlaced))
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 5)

	f.ledger.PlaceBet(ctx, 1, 1, 10, nil, false)

	assert.Equal(t, 5.0, f.balance(t, 1))
	assert.Nil(t, f.bet(1, 1))
	errs := conn.betErrors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].PanelID)
	assert.Equal(t, "Not enough crystals.", errs[0].Message)
	assert.Equal(t, 1, f.sink.count(analytics.EventInsufficientFunds))
}

func TestPlaceBetRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
	f.ledger.PlaceBet(ctx, 1, 2, 10, nil, false)
	f.ledger.PlaceBet(ctx, 1, -1, 10, nil, false)
	f.ledger.PlaceBet(ctx, 1, 1, -3, nil, false)
	f.ledger.PlaceBet(ctx, 1, 1, 0.001, nil, false)
	f.ledger.PlaceBet(ctx, 1, 1, 10, ptr(0.5), false)

	errs := conn.betErrors(t)
	require.Len(t, errs, 6)
	assert.Equal(t, "Bet for this panel already placed.", errs[0].Message)
	assert.Equal(t, "Invalid panel.", errs[1].Message)
	assert.Equal(t, "Invalid panel.", errs[2].Message)
	assert.Equal(t, "Invalid bet amount.", errs[3].Message)
	assert.Equal(t, "Invalid bet amount.", errs[4].Message)
	assert.Equal(t, "Auto cash-out must be at least 1.00x.", errs[5].Message)
	assert.Equal(t, 90.0, f.balance(t, 1))
}

func TestPlaceBetTooLateOnceStarted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)
	conn2 := f.connect(2, 100)

	f.clock.launch(1.2)
	for _, panel := range []int{0, 1} {
		f.ledger.PlaceBet(ctx, 1, panel, 10, nil, false)
		f.ledger.PlaceBet(ctx, 2, panel, 10, nil, false)
	}

	for _, c := range []*fakeConn{conn, conn2} {
		errs := c.betErrors(t)
		require.Len(t, errs, 2)
		for _, e := range errs {
			assert.Equal(t, "Too late to bet.", e.Message)
		}
	}
	assert.Equal(t, 100.0, f.balance(t, 1))
	assert.Equal(t, 100.0, f.balance(t, 2))
}

func TestResolutionBoundary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 10, ptr(1.5), false)
	f.ledger.PlaceBet(ctx, 1, 1, 10, ptr(3.0), false)
	f.clock.launch(1.0)
	f.ledger.ActivateBets(ctx)
	f.clock.crash()

	summary := f.ledger.ResolveBets(ctx, 2.00)

	win := f.bet(1, 0)
	assert.Equal(t, domain.BetStatusCashedOut, win.Status)
	assert.Equal(t, 15.0, win.WinAmount)
	assert.Equal(t, domain.CashoutAuto, win.CashoutType)

	loss := f.bet(1, 1)
	assert.Equal(t, domain.BetStatusResolved, loss.Status)
	assert.Equal(t, 0.0, loss.WinAmount)

	assert.Equal(t, 95.0, f.balance(t, 1))
	assert.Equal(t, 95.0, conn.lastBalance(t), "final balance is broadcast")

	results := conn.results(t)
	require.Len(t, results, 2)
	byPanel := map[int]protocol.BetResult{}
	for _, r := range results {
		byPanel[r.PanelID] = r
	}
	assert.Equal(t, 15.0, byPanel[0].WinAmount)
	require.NotNil(t, byPanel[0].CashedOutAt)
	assert.Equal(t, 1.5, *byPanel[0].CashedOutAt)
	assert.Equal(t, 0.0, byPanel[1].WinAmount)
	assert.Nil(t, byPanel[1].CashedOutAt)

	assert.Equal(t, 2, summary.Bets)
	assert.Equal(t, 1, summary.Players)
	assert.Equal(t, 20.0, summary.Staked)
	assert.Equal(t, 15.0, summary.Paid)

	f.orders.mu.Lock()
	assert.Len(t, f.orders.orders, 2)
	f.orders.mu.Unlock()
	assert.Equal(t, 1, f.sink.count(analytics.EventBetWin))
	assert.Equal(t, 1, f.sink.count(analytics.EventBetLoss))
}

func TestAutoCashoutBoundaryIsInclusive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect(1, 10)

	f.ledger.PlaceBet(ctx, 1, 0, 10, ptr(2.0), false)
	f.clock.launch(1.0)
	f.ledger.ActivateBets(ctx)
	f.ledger.ResolveBets(ctx, 2.0)

	assert.Equal(t, domain.BetStatusCashedOut, f.bet(1, 0).Status)
	assert.Equal(t, 20.0, f.balance(t, 1))
}

func TestPlacedButNotActivatedBetsAreNotResolved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect(1, 10)

	f.ledger.PlaceBet(ctx, 1, 0, 10, ptr(1.1), false)
	f.ledger.ResolveBets(ctx, 5)

	assert.Equal(t, domain.BetStatusPlaced, f.bet(1, 0).Status)
	assert.Equal(t, 0.0, f.balance(t, 1))
}

func TestManualCashOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)

	// betting phase: nothing to cash out yet
	f.ledger.CashOut(ctx, 1, 0)
	assert.Equal(t, domain.BetStatusPlaced, f.bet(1, 0).Status)

	f.clock.launch(1.5)
	f.ledger.ActivateBets(ctx)
	f.ledger.CashOut(ctx, 1, 0)

	bet := f.bet(1, 0)
	assert.Equal(t, domain.BetStatusCashedOut, bet.Status)
	assert.Equal(t, 15.0, bet.WinAmount)
	assert.Equal(t, 105.0, f.balance(t, 1))

	results := conn.results(t)
	require.Len(t, results, 1)
	assert.Equal(t, 15.0, results[0].WinAmount)
	require.NotNil(t, results[0].CashedOutAt)
	assert.Equal(t, 1.5, *results[0].CashedOutAt)
	assert.Equal(t, 105.0, conn.lastBalance(t))

	// second cash-out and the crash resolution both no-op
	f.ledger.CashOut(ctx, 1, 0)
	f.clock.crash()
	summary := f.ledger.ResolveBets(ctx, 3)
	assert.Equal(t, 105.0, f.balance(t, 1))
	assert.Len(t, conn.results(t), 1)
	assert.Equal(t, 1, summary.Bets)
	assert.Equal(t, 15.0, summary.Paid)

	f.ledger.CashOut(ctx, 1, 7)
	f.ledger.CashOut(ctx, 99, 0)
}

func TestCashOutOnEmptyPanelIsIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
	f.clock.launch(2)
	f.ledger.ActivateBets(ctx)

	f.ledger.CashOut(ctx, 1, 1)

	assert.Nil(t, f.bet(1, 1))
	assert.Equal(t, domain.BetStatusActive, f.bet(1, 0).Status)
	assert.Equal(t, 90.0, f.balance(t, 1))
	assert.Empty(t, conn.results(t))
	assert.Zero(t, f.sink.count(analytics.EventBetWin))
}

func TestCashOutAfterCrashIsIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect(1, 10)

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
	f.clock.launch(1.5)
	f.ledger.ActivateBets(ctx)
	f.clock.crash()

	f.ledger.CashOut(ctx, 1, 0)
	assert.Equal(t, domain.BetStatusActive, f.bet(1, 0).Status)
	assert.Equal(t, 0.0, f.balance(t, 1))
}

func TestCashOutRacesResolutionCreditsOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture()
		ctx := context.Background()
		conn := f.connect(1, 100)

		f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
		f.clock.launch(1.5)
		f.ledger.ActivateBets(ctx)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.ledger.CashOut(ctx, 1, 0)
		}()
		go func() {
			defer wg.Done()
			f.ledger.ResolveBets(ctx, 1.2)
		}()
		wg.Wait()

		balance := f.balance(t, 1)
		assert.Contains(t, []float64{90, 105}, balance)
		assert.Len(t, conn.results(t), 1)
		assert.True(t, f.bet(1, 0).Settled())
	}
}

func TestActivateBetsRacingPlacement(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture()
		ctx := context.Background()
		f.connect(1, 100)

		done := make(chan struct{})
		go func() {
			f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
			close(done)
		}()
		f.clock.launch(1.0)
		f.ledger.ActivateBets(ctx)
		<-done

		// rejected as too late or activated, never left placed
		bet := f.bet(1, 0)
		if bet == nil {
			assert.Equal(t, 100.0, f.balance(t, 1))
			continue
		}
		assert.Equal(t, domain.BetStatusActive, bet.Status)
	}
}

func TestPrepareNewRoundKeepsOnlyAutoBets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 10, ptr(1.5), true)
	f.ledger.PlaceBet(ctx, 1, 1, 10, nil, false)
	f.clock.launch(1.0)
	f.ledger.ActivateBets(ctx)
	f.ledger.ResolveBets(ctx, 2.0)
	assert.Equal(t, 95.0, f.balance(t, 1))

	f.clock.nextRound("round-2")
	f.ledger.PrepareNewRound(ctx)

	assert.Nil(t, f.bet(1, 1))
	queued := f.bet(1, 0)
	require.NotNil(t, queued)
	assert.Equal(t, domain.BetStatusQueued, queued.Status)
	assert.Equal(t, 10.0, queued.Amount)
	require.NotNil(t, queued.AutoCashoutAt)
	assert.Equal(t, 1.5, *queued.AutoCashoutAt)

	// the other panel is free again
	f.ledger.PlaceBet(ctx, 1, 1, 5, nil, false)
	assert.Equal(t, 90.0, f.balance(t, 1))

	confirms := len(conn.ofType(protocol.TypeBetConfirm))
	f.ledger.ActivateAutoBets(ctx)

	promoted := f.bet(1, 0)
	assert.Equal(t, domain.BetStatusPlaced, promoted.Status)
	assert.Equal(t, "round-2", promoted.RoundID)
	assert.Equal(t, 80.0, f.balance(t, 1), "auto-bets are paid for each round")
	assert.Len(t, conn.ofType(protocol.TypeBetConfirm), confirms+1)

	f.clock.launch(1.0)
	f.ledger.ActivateBets(ctx)
	assert.Equal(t, domain.BetStatusActive, f.bet(1, 0).Status)
	assert.Equal(t, domain.BetStatusActive, f.bet(1, 1).Status)
}

func TestAutoBetDroppedWhenUnaffordable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 10)

	f.ledger.PlaceBet(ctx, 1, 0, 10, ptr(5), true)
	f.clock.launch(1.0)
	f.ledger.ActivateBets(ctx)
	f.ledger.ResolveBets(ctx, 1.5)

	f.clock.nextRound("round-2")
	f.ledger.PrepareNewRound(ctx)
	require.NotNil(t, f.bet(1, 0))

	f.ledger.ActivateAutoBets(ctx)

	assert.Nil(t, f.bet(1, 0))
	errs := conn.betErrors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "Not enough crystals.", errs[0].Message)
	assert.Equal(t, 0.0, f.balance(t, 1))
}

func TestPrepareRefundsBetsOfAbortedRound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect(1, 50)

	f.ledger.PlaceBet(ctx, 1, 0, 20, nil, false)
	f.ledger.PlaceBet(ctx, 1, 1, 20, nil, true)
	f.clock.launch(1.0)
	f.ledger.ActivateBets(ctx)
	assert.Equal(t, 10.0, f.balance(t, 1))

	// the round never resolved
	f.clock.nextRound("round-2")
	f.ledger.PrepareNewRound(ctx)

	assert.Equal(t, 50.0, f.balance(t, 1))
	assert.Nil(t, f.bet(1, 0))
	assert.Nil(t, f.bet(1, 1))
}

func TestDisconnectDropsBets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
	require.NotNil(t, f.bet(1, 0))

	f.ledger.Disconnect(ctx, 1, conn)
	assert.Nil(t, f.bet(1, 0))
	assert.Equal(t, 0, f.ledger.Online())
}

func TestReconnectSupersedesAndStaleDisconnectIsIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old := f.connect(1, 100)
	fresh := &fakeConn{}
	f.ledger.Connect(ctx, 1, fresh)

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)
	assert.Empty(t, old.ofType(protocol.TypeBetConfirm))
	assert.Len(t, fresh.ofType(protocol.TypeBetConfirm), 1)

	f.ledger.Disconnect(ctx, 1, old)
	assert.Equal(t, 1, f.ledger.Online())
	assert.NotNil(t, f.bet(1, 0))
	assert.False(t, old.closed, "no teardown notice to the superseded handle")
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	good := f.connect(1, 0)
	bad := f.connect(2, 0)
	other := f.connect(3, 0)
	bad.fail = true

	f.ledger.Broadcast(ctx, protocol.Waiting{Countdown: 5})

	assert.Len(t, good.ofType(protocol.TypeWaiting), 1)
	assert.Len(t, other.ofType(protocol.TypeWaiting), 1)
	assert.True(t, bad.closed)
	assert.Equal(t, 2, f.ledger.Online())

	f.ledger.Broadcast(ctx, protocol.Waiting{Countdown: 4})
	assert.Len(t, good.ofType(protocol.TypeWaiting), 2)
}

func TestSendFailureDuringBetDoesNotDeadlock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	conn := f.connect(1, 100)
	conn.fail = true

	f.ledger.PlaceBet(ctx, 1, 0, 10, nil, false)

	assert.Equal(t, 0, f.ledger.Online())
	assert.True(t, conn.closed)
}

type failingWallet struct {
	service.WalletService
}

func (failingWallet) GetBalance(ctx context.Context, userID int64) (float64, error) {
	return 0, errors.New("store unavailable")
}

func TestWalletFailureBecomesBetError(t *testing.T) {
	conn := &fakeConn{}
	clock := &fakeClock{open: true}
	ledger := NewBetLedger(failingWallet{}, nil, nil)
	ledger.SetRoundClock(clock)
	ledger.Connect(context.Background(), 1, conn)

	ledger.PlaceBet(context.Background(), 1, 0, 10, nil, false)

	errs := conn.betErrors(t)
	require.Len(t, errs, 1)
	assert.Equal(t, "Bet failed, please try again.", errs[0].Message)
}
