package domain

import "time"

// BetOrderStatus defines the outcome of a settled bet
type BetOrderStatus int

const (
	BetOrderStatusLost BetOrderStatus = 0
	BetOrderStatusWon  BetOrderStatus = 1
)

// BetOrder is the durable record of a settled bet
type BetOrder struct {
	OrderID       string         `gorm:"primaryKey;type:varchar(64)" json:"order_id"`
	UserID        int64          `gorm:"not null;index:idx_bet_orders_user_id" json:"user_id"`
	RoundID       string         `gorm:"type:varchar(64);not null;index:idx_bet_orders_round_id" json:"round_id"`
	Panel         int            `gorm:"type:int;not null" json:"panel"`
	Amount        float64        `gorm:"type:decimal(18,2);not null" json:"amount"`
	AutoCashoutAt *float64       `gorm:"type:decimal(18,2)" json:"auto_cashout_at"`
	CashedOutAt   *float64       `gorm:"type:decimal(18,2)" json:"cashed_out_at"`
	CashoutType   string         `gorm:"type:varchar(16)" json:"cashout_type"`
	Payout        float64        `gorm:"type:decimal(18,2);not null;default:0" json:"payout"`
	Status        BetOrderStatus `gorm:"type:int;not null;default:0;index:idx_bet_orders_status" json:"status"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_bet_orders_created_at" json:"created_at"`
	SettledAt     *time.Time     `json:"settled_at"`
}

// TableName overrides the table name
func (BetOrder) TableName() string {
	return "bet_orders"
}

// NewBetOrder converts a settled bet
func NewBetOrder(b *Bet) *BetOrder {
	order := &BetOrder{
		OrderID:       b.BetID,
		UserID:        b.UserID,
		RoundID:       b.RoundID,
		Panel:         int(b.Panel),
		Amount:        b.Amount,
		AutoCashoutAt: b.AutoCashoutAt,
		CashedOutAt:   b.CashedOutAt,
		CashoutType:   string(b.CashoutType),
		Payout:        b.WinAmount,
		Status:        BetOrderStatusLost,
		CreatedAt:     b.PlacedAt,
		SettledAt:     b.SettledAt,
	}
	if b.Status == BetStatusCashedOut {
		order.Status = BetOrderStatusWon
	}
	return order
}
