package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Hollow93/social-casino/internal/modules/crash_game/gms/usecase"
	"github.com/Hollow93/social-casino/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Handler serves the fairness API
type Handler struct {
	uc *usecase.RoundUseCase
}

// NewHandler creates a new HTTP handler
func NewHandler(uc *usecase.RoundUseCase) *Handler {
	return &Handler{uc: uc}
}

// RegisterRoutes registers the crash routes to the given router group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/history", h.History)
	router.GET("/seeds", h.Seeds)
	router.POST("/verify", h.Verify)
}

type verifyRequest struct {
	ServerSeed string `json:"serverSeed" binding:"required"`
	Nonce      int    `json:"nonce" binding:"required,min=1"`
}

// History returns recent rounds; serverSeed appears once the seed is retired
func (h *Handler) History(c *gin.Context) {
	limit := 30
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, gin.H{"rounds": h.uc.History(limit)})
}

// Seeds lists retired server seeds
func (h *Handler) Seeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"seeds": h.uc.RetiredSeeds()})
}

// Verify recomputes a crash point from a revealed seed
func (h *Handler) Verify(c *gin.Context) {
	ctx := c.Request.Context()

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn(ctx).Err(err).Msg("Verify: invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.uc.Verify(ctx, req.ServerSeed, req.Nonce)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidVerifyRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error(ctx).Err(err).Int("nonce", req.Nonce).Msg("Verify: failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification unavailable"})
		return
	}

	c.JSON(http.StatusOK, res)
}
