package http

import (
	"context"
	"net/http"
	"time"

	authDomain "github.com/Hollow93/social-casino/internal/modules/auth/domain"
	"github.com/Hollow93/social-casino/internal/modules/crash_game/protocol"
	"github.com/Hollow93/social-casino/internal/modules/gateway/domain"
	"github.com/Hollow93/social-casino/internal/modules/gateway/ws"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/Hollow93/social-casino/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler admits WebSocket connections and pumps their frames into the gateway use case
type Handler struct {
	useCase          domain.GatewayUseCase
	manager          *ws.Manager
	authSvc          service.AuthService
	handshakeTimeout time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(useCase domain.GatewayUseCase, manager *ws.Manager, authSvc service.AuthService, handshakeTimeout time.Duration) *Handler {
	return &Handler{
		useCase:          useCase,
		manager:          manager,
		authSvc:          authSvc,
		handshakeTimeout: handshakeTimeout,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the client runs inside a third-party webview
	},
}

// RegisterRoutes mounts the socket endpoint
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket handles websocket requests. It returns when the socket closes.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	ctx := logger.WebSocketContext(c.Request)
	requestID := logger.GetRequestID(ctx)

	logger.Info(ctx).
		Str("remote_addr", c.Request.RemoteAddr).
		Msg("WebSocket connection request")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("WebSocket upgrade failed")
		return
	}

	identity := h.authenticate(ctx, conn, c.Query("initData"))
	if identity == nil {
		logger.Warn(ctx).Msg("Invalid initData, closing connection")
		closePolicyViolation(conn, "Invalid credentials")
		return
	}

	userID := identity.ID
	ctx = logger.WithUser(ctx, userID)
	logger.Info(ctx).
		Str("username", identity.Username).
		Msg("WebSocket connection admitted")

	client, previous := h.manager.Register(ctx, conn, userID)
	go client.WritePump()

	session := domain.Session{UserID: userID, Username: identity.Username, Source: identity.StartParam}
	if err := h.useCase.Admit(ctx, session, client); err != nil {
		logger.Warn(ctx).Err(err).Msg("Initial sync failed")
		client.CloseWithReason(ws.ReasonWriteError, err)
	}
	// closed only after Admit so its Leave is ignored as stale
	if previous != nil {
		previous.CloseWithReason(ws.ReasonReplaced, nil)
	}

	client.ReadPump(func(message []byte) {
		msgCtx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
		msgCtx = logger.WithFields(msgCtx, map[string]interface{}{
			"user_id":       userID,
			"ws_request_id": requestID,
		})

		logger.Debug(msgCtx).
			Int("message_size", len(message)).
			Msg("WebSocket message received")

		if err := h.useCase.HandleMessage(msgCtx, userID, message); err != nil {
			logger.Warn(msgCtx).Err(err).Msg("Malformed message ignored")
		}
	})

	h.useCase.Leave(ctx, userID, client)
}

// authenticate tries the query credential first, then waits for a handshake frame
func (h *Handler) authenticate(ctx context.Context, conn *websocket.Conn, queryInitData string) *authDomain.Identity {
	if queryInitData != "" {
		res := h.authSvc.Validate(queryInitData)
		logger.Info(ctx).Str("reason", string(res.Reason)).Msg("Query initData validation")
		if res.Accepted && res.Identity != nil {
			return res.Identity
		}
	}

	conn.SetReadDeadline(time.Now().Add(h.handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, raw, err := conn.ReadMessage()
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("Handshake not received")
		return nil
	}

	msg, err := protocol.DecodeInbound(raw)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("Handshake malformed")
		return nil
	}
	handshake, ok := msg.(protocol.Handshake)
	if !ok {
		logger.Warn(ctx).Msg("First message was not a handshake")
		return nil
	}

	res := h.authSvc.Validate(handshake.InitData)
	logger.Info(ctx).Str("reason", string(res.Reason)).Msg("Handshake initData validation")
	if res.Accepted && res.Identity != nil {
		return res.Identity
	}
	return nil
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
