package db

import (
	"context"

	"github.com/Hollow93/social-casino/internal/modules/analytics/domain"
	"gorm.io/gorm"
)

type EventRepository struct {
	db        *gorm.DB
	batchSize int
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db, batchSize: 100}
}

func (r *EventRepository) InsertBatch(ctx context.Context, events []domain.GameEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(events, r.batchSize).Error
}
