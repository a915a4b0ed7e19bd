package service

import (
	"context"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
)

// Conn is the outbound side of one player's socket
type Conn interface {
	// Send queues an encoded frame; an error means the connection is unusable
	Send(payload []byte) error
	Close()
}

// Broadcaster delivers server messages to connected players
type Broadcaster interface {
	Broadcast(ctx context.Context, msg protocol.Outbound)
	SendToUser(ctx context.Context, userID int64, msg protocol.Outbound)
}
