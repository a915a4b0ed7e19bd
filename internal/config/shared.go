package config

import (
	"fmt"
	"time"
)

// --- Shared Configs ---

type ServerConfig struct {
	Port string
	Name string
}

type LogConfig struct {
	Level   string // debug, info, warn, error
	Format  string // json, console
	File    string
	Console bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

type RedisConfig struct {
	Host string
	Port string
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type AnalyticsConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
}
