package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Balances are stored as integer cents so Lua arithmetic stays exact.
var debitScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return {0, balance}
end
balance = balance - amount
redis.call('SET', KEYS[1], balance)
return {1, balance}
`)

// BalanceRepository implements service.WalletService on Redis
type BalanceRepository struct {
	rdb *redis.Client
}

func NewBalanceRepository(rdb *redis.Client) *BalanceRepository {
	return &BalanceRepository{rdb: rdb}
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("wallet:balance:%d", userID)
}

func playerKey(userID int64) string {
	return fmt.Sprintf("wallet:player:%d", userID)
}

func toCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

func fromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// EnsurePlayer creates a zero balance on first visit and refreshes the profile hash
func (r *BalanceRepository) EnsurePlayer(ctx context.Context, userID int64, username string) error {
	now := time.Now().Unix()
	pipe := r.rdb.TxPipeline()
	pipe.SetNX(ctx, balanceKey(userID), 0, 0)
	pipe.HSetNX(ctx, playerKey(userID), "first_seen", now)
	pipe.HSet(ctx, playerKey(userID), "username", username, "last_seen", now)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *BalanceRepository) GetBalance(ctx context.Context, userID int64) (float64, error) {
	cents, err := r.rdb.Get(ctx, balanceKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return fromCents(cents), nil
}

func (r *BalanceRepository) UpdateBalance(ctx context.Context, userID int64, amount float64, op service.BalanceOp) (float64, error) {
	key := balanceKey(userID)
	cents := toCents(amount)

	switch op {
	case service.BalanceSet:
		if err := r.rdb.Set(ctx, key, cents, 0).Err(); err != nil {
			return 0, fmt.Errorf("set balance: %w", err)
		}
		return fromCents(cents), nil

	case service.BalanceInc:
		balance, err := r.rdb.IncrBy(ctx, key, cents).Result()
		if err != nil {
			return 0, fmt.Errorf("credit balance: %w", err)
		}
		return fromCents(balance), nil

	case service.BalanceDec:
		res, err := debitScript.Run(ctx, r.rdb, []string{key}, cents).Int64Slice()
		if err != nil {
			return 0, fmt.Errorf("debit balance: %w", err)
		}
		if len(res) != 2 {
			return 0, fmt.Errorf("debit balance: unexpected reply %v", res)
		}
		if res[0] == 0 {
			return fromCents(res[1]), service.ErrInsufficientFunds
		}
		return fromCents(res[1]), nil

	default:
		return 0, fmt.Errorf("unknown balance op %d", op)
	}
}
