package domain

import (
	"time"
)

// CrashRound is the audit record of a finished round, seed included
type CrashRound struct {
	RoundID          string    `gorm:"primaryKey;type:varchar(64)" json:"round_id"`
	Nonce            int       `gorm:"not null" json:"nonce"`
	CrashPoint       float64   `gorm:"type:decimal(18,2);not null" json:"crash_point"`
	ServerSeed       string    `gorm:"type:varchar(64);not null" json:"server_seed"`
	HashedServerSeed string    `gorm:"index;type:varchar(64);not null" json:"hashed_server_seed"`
	StartTime        time.Time `gorm:"not null" json:"start_time"`
	EndTime          time.Time `gorm:"not null" json:"end_time"`
	TotalBets        int       `gorm:"default:0" json:"total_bets"`
	TotalPlayers     int       `gorm:"default:0" json:"total_players"`
	TotalBetAmount   float64   `gorm:"type:decimal(18,2);default:0" json:"total_bet_amount"`
	TotalPayout      float64   `gorm:"type:decimal(18,2);default:0" json:"total_payout"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false" json:"created_at"`
}

// TableName overrides the table name
func (CrashRound) TableName() string {
	return "crash_rounds"
}
