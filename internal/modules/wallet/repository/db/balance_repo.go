package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Hollow93/social-casino/internal/modules/wallet/domain"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceRepository implements service.WalletService on the players table.
// Debits are a single conditional UPDATE so concurrent callers cannot overdraw.
type BalanceRepository struct {
	db    *gorm.DB
	reads singleflight.Group
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// EnsurePlayer inserts the player on first visit, otherwise refreshes username and last_seen
func (r *BalanceRepository) EnsurePlayer(ctx context.Context, userID int64, username string) error {
	now := time.Now()
	player := domain.Player{
		UserID:    userID,
		Username:  username,
		Balance:   decimal.Zero,
		FirstSeen: now,
		LastSeen:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "last_seen"}),
	}).Create(&player).Error
}

// GetBalance returns 0 for unknown players. Concurrent reads of one player share a query.
func (r *BalanceRepository) GetBalance(ctx context.Context, userID int64) (float64, error) {
	v, err, _ := r.reads.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		var player domain.Player
		err := r.db.WithContext(ctx).Select("balance").Where("user_id = ?", userID).Take(&player).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0.0, nil
		}
		if err != nil {
			return nil, err
		}
		return player.Balance.InexactFloat64(), nil
	})
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return v.(float64), nil
}

func (r *BalanceRepository) UpdateBalance(ctx context.Context, userID int64, amount float64, op service.BalanceOp) (float64, error) {
	amt := decimal.NewFromFloat(amount).Round(2)
	db := r.db.WithContext(ctx)

	var (
		res    *gorm.DB
		player domain.Player
	)
	returning := clause.Returning{Columns: []clause.Column{{Name: "balance"}}}

	switch op {
	case service.BalanceSet:
		now := time.Now()
		player = domain.Player{UserID: userID, Balance: amt, FirstSeen: now, LastSeen: now}
		res = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance"}),
		}).Create(&player)
		if res.Error != nil {
			return 0, fmt.Errorf("set balance: %w", res.Error)
		}
		return amt.InexactFloat64(), nil

	case service.BalanceInc:
		// one upsert, so concurrent credits to a player not yet stored both land
		now := time.Now()
		player = domain.Player{UserID: userID, Balance: amt, FirstSeen: now, LastSeen: now}
		res = db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance": gorm.Expr("players.balance + excluded.balance"),
			}),
		}, returning).Create(&player)
		if res.Error != nil {
			return 0, fmt.Errorf("credit balance: %w", res.Error)
		}

	case service.BalanceDec:
		res = db.Model(&player).Clauses(returning).
			Where("user_id = ? AND balance >= ?", userID, amt).
			Update("balance", gorm.Expr("balance - ?", amt))
		if res.Error != nil {
			return 0, fmt.Errorf("debit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			current, err := r.GetBalance(ctx, userID)
			if err != nil {
				return 0, err
			}
			return current, service.ErrInsufficientFunds
		}

	default:
		return 0, fmt.Errorf("unknown balance op %d", op)
	}

	return player.Balance.InexactFloat64(), nil
}
