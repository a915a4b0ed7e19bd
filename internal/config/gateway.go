package config

import (
	"fmt"
	"time"
)

// TelegramPublicKeyHex is the production Ed25519 key used for third-party initData validation.
const TelegramPublicKeyHex = "e7bf03a2fa4602af4580703d88dda5bb59f32ed8b02a56c187fe7d34caed242d"

type GatewayConfig struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
}

type WebSocketConfig struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

type AuthConfig struct {
	BotToken         string
	BotID            int64
	PublicKeyHex     string
	HandshakeTimeout time.Duration
	MaxAge           time.Duration
	MaxSkew          time.Duration
}

// LoadGatewayConfig loads configuration for the WebSocket gateway.
// TELEGRAM_BOT_TOKEN is mandatory.
func LoadGatewayConfig() (*GatewayConfig, error) {
	token := getEnv("TELEGRAM_BOT_TOKEN", "")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	botID, err := ParseBotID(token)
	if err != nil {
		return nil, err
	}

	return &GatewayConfig{
		Server: ServerConfig{
			Port: getEnv("GATEWAY_SERVER_PORT", "8081"),
			Name: "crash-gateway",
		},
		WebSocket: WebSocketConfig{
			PingInterval:   54 * time.Second,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     getEnvInt("WS_SEND_BUFFER", 256),
		},
		Auth: AuthConfig{
			BotToken:         token,
			BotID:            botID,
			PublicKeyHex:     getEnv("TMA_PUBLIC_KEY_HEX", TelegramPublicKeyHex),
			HandshakeTimeout: getEnvDuration("AUTH_HANDSHAKE_TIMEOUT", 10*time.Second),
			MaxAge:           getEnvDuration("AUTH_MAX_AGE", 24*time.Hour),
			MaxSkew:          getEnvDuration("AUTH_MAX_SKEW", 60*time.Second),
		},
	}, nil
}
