package db

import (
	"context"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/gs/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 200

type BetOrderRepository struct {
	db *gorm.DB
}

func NewBetOrderRepository(db *gorm.DB) *BetOrderRepository {
	return &BetOrderRepository{db: db}
}

// BatchCreate inserts settled orders. Re-inserting an order id is a no-op.
func (r *BetOrderRepository) BatchCreate(ctx context.Context, orders []*domain.BetOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&orders, batchSize).Error
}
