package config

import "time"

// CrashGameConfig holds the round scheduler, fairness and wallet settings
type CrashGameConfig struct {
	HouseEdge       float64
	ClientSeed      string
	SeedCeiling     int
	Countdown       int
	Cooldown        time.Duration
	HistorySize     int
	WalletStore     string  // memory, db, redis
	StartingBalance float64 // memory wallet only
}

// LoadCrashGameConfig loads configuration for the crash game engine
func LoadCrashGameConfig() *CrashGameConfig {
	return &CrashGameConfig{
		HouseEdge:       getEnvFloat("CRASH_HOUSE_EDGE", 0.03),
		ClientSeed:      getEnv("CRASH_CLIENT_SEED", "social-casino-is-awesome-and-fair"),
		SeedCeiling:     getEnvInt("CRASH_SEED_CEILING", 2000),
		Countdown:       getEnvInt("CRASH_COUNTDOWN", 10),
		Cooldown:        getEnvDuration("CRASH_COOLDOWN", 5*time.Second),
		HistorySize:     getEnvInt("CRASH_HISTORY_SIZE", 30),
		WalletStore:     getEnv("WALLET_STORE", "db"),
		StartingBalance: getEnvFloat("WALLET_STARTING_BALANCE", 0),
	}
}
