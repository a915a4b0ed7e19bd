package redis

import (
	"context"
	"os"
	"testing"

	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a live server: REDIS_TEST_ADDR=localhost:6379 go test ./...
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(1055), toCents(10.55))
	assert.Equal(t, int64(30), toCents(0.1+0.2))
	assert.Equal(t, 10.55, fromCents(1055))
}

func TestRedisBalanceOps(t *testing.T) {
	repo := NewBalanceRepository(setupRedis(t))
	ctx := context.Background()

	require.NoError(t, repo.EnsurePlayer(ctx, 5, "dave"))
	b, err := repo.GetBalance(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, b)

	b, err = repo.UpdateBalance(ctx, 5, 20, service.BalanceSet)
	require.NoError(t, err)
	assert.Equal(t, 20.0, b)

	require.NoError(t, repo.EnsurePlayer(ctx, 5, "dave"))
	b, _ = repo.GetBalance(ctx, 5)
	assert.Equal(t, 20.0, b, "revisit keeps the balance")

	b, err = repo.UpdateBalance(ctx, 5, 2.5, service.BalanceInc)
	require.NoError(t, err)
	assert.Equal(t, 22.5, b)

	b, err = repo.UpdateBalance(ctx, 5, 22.5, service.BalanceDec)
	require.NoError(t, err)
	assert.Equal(t, 0.0, b)

	b, err = repo.UpdateBalance(ctx, 5, 0.01, service.BalanceDec)
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)
	assert.Equal(t, 0.0, b)
}
