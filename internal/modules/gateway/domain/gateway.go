package domain

import (
	"context"

	"github.com/Hollow93/social-casino/pkg/service"
)

// Session describes an admitted player
type Session struct {
	UserID   int64
	Username string
	// Source is the deep-link start parameter the player arrived with
	Source string
}

// GatewayUseCase defines the interface for gateway business logic
type GatewayUseCase interface {
	// Admit registers conn for the session and sends the initial state
	Admit(ctx context.Context, session Session, conn service.Conn) error

	// HandleMessage handles a message from a user
	HandleMessage(ctx context.Context, userID int64, message []byte) error

	// Leave unregisters conn; a superseded conn is ignored
	Leave(ctx context.Context, userID int64, conn service.Conn)
}
