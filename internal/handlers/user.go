package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"alive-keeper/internal/models"
)

type SnapshotReader interface {
	Snapshot() models.PlayerSnapshot
}

// PlayerStore holds per-address preferences and history.
type PlayerStore interface {
	GetDecorations(ctx context.Context, address string) (models.DecorationConfig, error)
	SaveDecorations(ctx context.Context, address string, cfg models.DecorationConfig) error
	GetActions(ctx context.Context, address string, limit int64) ([]*models.ActionRecord, error)
}

type UserHandler struct {
	session SessionControl
	store   SnapshotReader
	players PlayerStore
}

func NewUserHandler(session SessionControl, store SnapshotReader, players PlayerStore) *UserHandler {
	return &UserHandler{
		session: session,
		store:   store,
		players: players,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	address := c.GetString("address")
	snap := h.store.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"address":  address,
		"state":    h.session.State(),
		"snapshot": snap,
		"display": gin.H{
			"claimable":     models.FormatTokenCount(snap.ClaimableReward),
			"token_balance": models.FormatTokenCount(snap.TokenBalance),
		},
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	h.session.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (h *UserHandler) GetDecorations(c *gin.Context) {
	cfg, err := h.players.GetDecorations(c.Request.Context(), c.GetString("address"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get decorations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"decorations": cfg,
	})
}

func (h *UserHandler) UpdateDecoration(c *gin.Context) {
	var req struct {
		Layer   models.DecorationLayer `json:"layer" binding:"required"`
		Variant string                 `json:"variant" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	address := c.GetString("address")
	cfg, err := h.players.GetDecorations(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get decorations",
			"details": err.Error(),
		})
		return
	}

	if err := cfg.Set(req.Layer, req.Variant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid decoration",
			"details": err.Error(),
		})
		return
	}

	if err := h.players.SaveDecorations(c.Request.Context(), address, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to save decorations",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"decorations": cfg,
	})
}

func (h *UserHandler) GetActionHistory(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	actions, err := h.players.GetActions(c.Request.Context(), c.GetString("address"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get action history",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"actions": actions,
		"count":   len(actions),
	})
}
