package domain

import (
	"context"
	"time"
)

// Event types emitted by the game
const (
	EventUserConnect       = "user_connect"
	EventBetPlaced         = "bet_placed"
	EventInsufficientFunds = "bet_error_insufficient_funds"
	EventBetWin            = "bet_win"
	EventBetLoss           = "bet_loss"
)

// GameEvent is one analytics row
type GameEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType string    `gorm:"index;type:varchar(64);not null" json:"event_type"`
	UserID    *int64    `gorm:"index" json:"user_id"`
	Payload   string    `gorm:"type:text" json:"payload"`
	Source    string    `gorm:"type:varchar(128)" json:"source"`
	CreatedAt time.Time `gorm:"index;autoCreateTime:false" json:"created_at"`
}

// TableName overrides the table name
func (GameEvent) TableName() string {
	return "game_events"
}

// EventRepository persists analytics events
type EventRepository interface {
	InsertBatch(ctx context.Context, events []GameEvent) error
}
