package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MonolithConfig holds all configuration for the single-process crash server
type MonolithConfig struct {
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Gateway   GatewayConfig
	CrashGame CrashGameConfig
	Analytics AnalyticsConfig
}

// LoadMonolithConfig loads .env files (if present) and then the environment.
func LoadMonolithConfig(envFiles ...string) (*MonolithConfig, error) {
	if len(envFiles) > 0 {
		// Missing files are fine, variables may come from the real environment.
		_ = godotenv.Load(envFiles...)
	}

	gatewayCfg, err := LoadGatewayConfig()
	if err != nil {
		return nil, err
	}

	return &MonolithConfig{
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			File:    getEnv("LOG_FILE", "logs/crash_game/monolith.log"),
			Console: getEnvBool("LOG_CONSOLE", true),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "casino_user"),
			Password: getEnv("DB_PASSWORD", "casino_pass"),
			Name:     getEnv("DB_NAME", "casino_db"),
		},
		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},
		Gateway:   *gatewayCfg,
		CrashGame: *LoadCrashGameConfig(),
		Analytics: AnalyticsConfig{
			QueueSize:     getEnvInt("ANALYTICS_QUEUE_SIZE", 1024),
			BatchSize:     getEnvInt("ANALYTICS_BATCH_SIZE", 100),
			FlushInterval: getEnvDuration("ANALYTICS_FLUSH_INTERVAL", 2*time.Second),
		},
	}, nil
}

// ParseBotID extracts the numeric service id from a bot token ("<id>:<secret>").
func ParseBotID(token string) (int64, error) {
	idPart, _, found := strings.Cut(token, ":")
	if !found {
		return 0, fmt.Errorf("bot token has no id prefix")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bot token id prefix: %w", err)
	}
	return id, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}
