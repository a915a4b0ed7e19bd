package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Player is the balance holder; new players start at zero
type Player struct {
	UserID    int64           `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username  string          `gorm:"type:varchar(64)" json:"username"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balance"`
	FirstSeen time.Time       `gorm:"not null" json:"first_seen"`
	LastSeen  time.Time       `gorm:"not null" json:"last_seen"`
}

// TableName overrides the table name
func (Player) TableName() string {
	return "players"
}
