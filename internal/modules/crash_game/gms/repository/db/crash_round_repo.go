package db

import (
	"context"
	"errors"
	"time"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/domain"
	"gorm.io/gorm"
)

type CrashRoundRepository struct {
	db *gorm.DB
}

func NewCrashRoundRepository(db *gorm.DB) *CrashRoundRepository {
	return &CrashRoundRepository{db: db}
}

func (r *CrashRoundRepository) Create(ctx context.Context, round *domain.CrashRound) error {
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(round).Error
}

func (r *CrashRoundRepository) ListRecent(ctx context.Context, limit int) ([]domain.CrashRound, error) {
	var rounds []domain.CrashRound
	err := r.db.WithContext(ctx).
		Order("end_time DESC").
		Limit(limit).
		Find(&rounds).Error
	return rounds, err
}

// FindByHashedSeed returns nil, nil when no such round was recorded
func (r *CrashRoundRepository) FindByHashedSeed(ctx context.Context, hashedServerSeed string, nonce int) (*domain.CrashRound, error) {
	var round domain.CrashRound
	err := r.db.WithContext(ctx).
		Where("hashed_server_seed = ? AND nonce = ?", hashedServerSeed, nonce).
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}
