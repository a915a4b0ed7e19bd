package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBotID(t *testing.T) {
	id, err := ParseBotID("8111352574:AAGC-secret")
	require.NoError(t, err)
	assert.Equal(t, int64(8111352574), id)

	_, err = ParseBotID("no-colon")
	assert.Error(t, err)

	_, err = ParseBotID("abc:def")
	assert.Error(t, err)
}

func TestLoadGatewayConfigRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, err := LoadGatewayConfig()
	assert.Error(t, err)
}

func TestLoadMonolithConfigDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("CRASH_COOLDOWN", "2s")
	t.Setenv("CRASH_HOUSE_EDGE", "not-a-number")

	cfg, err := LoadMonolithConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(123), cfg.Gateway.Auth.BotID)
	assert.Equal(t, TelegramPublicKeyHex, cfg.Gateway.Auth.PublicKeyHex)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Auth.HandshakeTimeout)
	assert.Equal(t, 0.03, cfg.CrashGame.HouseEdge)
	assert.Equal(t, 2*time.Second, cfg.CrashGame.Cooldown)
	assert.Equal(t, 2000, cfg.CrashGame.SeedCeiling)
	assert.Equal(t, 30, cfg.CrashGame.HistorySize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadMonolithConfigReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TELEGRAM_BOT_TOKEN=777:xyz\nCRASH_COUNTDOWN=3\n"), 0o600))

	// godotenv never overrides variables that are already set
	os.Unsetenv("TELEGRAM_BOT_TOKEN")
	os.Unsetenv("CRASH_COUNTDOWN")
	t.Cleanup(func() {
		os.Unsetenv("TELEGRAM_BOT_TOKEN")
		os.Unsetenv("CRASH_COUNTDOWN")
	})

	cfg, err := LoadMonolithConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, int64(777), cfg.Gateway.Auth.BotID)
	assert.Equal(t, 3, cfg.CrashGame.Countdown)
}
