package domain

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Panel is one of a player's two bet slots
type Panel int

const PanelCount = 2

func (p Panel) Valid() bool {
	return p >= 0 && int(p) < PanelCount
}

// BetStatus only moves forward: queued -> placed -> active -> cashed_out | resolved
type BetStatus string

const (
	// BetStatusQueued is an auto-bet carried into the next round, not yet paid for
	BetStatusQueued    BetStatus = "queued"
	BetStatusPlaced    BetStatus = "placed"
	BetStatusActive    BetStatus = "active"
	BetStatusCashedOut BetStatus = "cashed_out"
	BetStatusResolved  BetStatus = "resolved"
)

// CashoutType tells how a winning bet was settled
type CashoutType string

const (
	CashoutManual CashoutType = "manual"
	CashoutAuto   CashoutType = "auto"
)

// Bet represents a player's bet on one panel
type Bet struct {
	BetID         string
	RoundID       string
	UserID        int64
	Panel         Panel
	Amount        float64
	AutoCashoutAt *float64
	AutoBet       bool
	Status        BetStatus
	WinAmount     float64
	CashedOutAt   *float64
	CashoutType   CashoutType
	PlacedAt      time.Time
	SettledAt     *time.Time
}

var (
	node *snowflake.Node
	once sync.Once
)

func initSnowflake() {
	var err error
	node, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// NewBet creates a placed bet
func NewBet(roundID string, userID int64, panel Panel, amount float64, autoCashoutAt *float64, autoBet bool) *Bet {
	return &Bet{
		BetID:         generateBetID(),
		RoundID:       roundID,
		UserID:        userID,
		Panel:         panel,
		Amount:        amount,
		AutoCashoutAt: autoCashoutAt,
		AutoBet:       autoBet,
		Status:        BetStatusPlaced,
		PlacedAt:      time.Now(),
	}
}

func generateBetID() string {
	once.Do(initSnowflake)
	return node.Generate().String()
}

// Activate moves a placed bet into the running round
func (b *Bet) Activate() bool {
	if b.Status != BetStatusPlaced {
		return false
	}
	b.Status = BetStatusActive
	return true
}

// CashOut settles an active bet as a win at multiplier. Only the first caller succeeds.
func (b *Bet) CashOut(multiplier float64, kind CashoutType, at time.Time) (float64, bool) {
	if b.Status != BetStatusActive {
		return 0, false
	}
	m := multiplier
	b.Status = BetStatusCashedOut
	b.WinAmount = Payout(b.Amount, multiplier)
	b.CashedOutAt = &m
	b.CashoutType = kind
	b.SettledAt = &at
	return b.WinAmount, true
}

// Lose settles an active bet with no payout
func (b *Bet) Lose(at time.Time) bool {
	if b.Status != BetStatusActive {
		return false
	}
	b.Status = BetStatusResolved
	b.WinAmount = 0
	b.SettledAt = &at
	return true
}

// Settled reports whether the bet reached a terminal status
func (b *Bet) Settled() bool {
	return b.Status == BetStatusCashedOut || b.Status == BetStatusResolved
}

// Requeue carries an auto-bet into the next round as an unpaid placeholder
func (b *Bet) Requeue() *Bet {
	return &Bet{
		BetID:         generateBetID(),
		UserID:        b.UserID,
		Panel:         b.Panel,
		Amount:        b.Amount,
		AutoCashoutAt: b.AutoCashoutAt,
		AutoBet:       true,
		Status:        BetStatusQueued,
	}
}

// Promote turns a paid-for placeholder into a placed bet for roundID
func (b *Bet) Promote(roundID string, at time.Time) bool {
	if b.Status != BetStatusQueued {
		return false
	}
	b.Status = BetStatusPlaced
	b.RoundID = roundID
	b.PlacedAt = at
	return true
}

// Payout is amount*multiplier rounded to cents
func Payout(amount, multiplier float64) float64 {
	return RoundCents(decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(multiplier)).InexactFloat64())
}

// RoundCents rounds half away from zero to two decimals
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Slots holds at most one bet per panel
type Slots struct {
	bets [PanelCount]*Bet
}

// Get returns the bet on panel, nil when the slot is empty
func (s *Slots) Get(p Panel) (*Bet, error) {
	if !p.Valid() {
		return nil, ErrInvalidPanel
	}
	return s.bets[p], nil
}

// Find is Get for callers that need a bet: an empty slot is ErrBetNotFound
func (s *Slots) Find(p Panel) (*Bet, error) {
	b, err := s.Get(p)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBetNotFound
	}
	return b, nil
}

// Put fills an empty slot
func (s *Slots) Put(b *Bet) error {
	if !b.Panel.Valid() {
		return ErrInvalidPanel
	}
	if s.bets[b.Panel] != nil {
		return ErrSlotTaken
	}
	s.bets[b.Panel] = b
	return nil
}

func (s *Slots) Clear(p Panel) {
	if p.Valid() {
		s.bets[p] = nil
	}
}

// Each visits non-empty slots in panel order
func (s *Slots) Each(fn func(b *Bet)) {
	for _, b := range s.bets {
		if b != nil {
			fn(b)
		}
	}
}
