package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"alive-keeper/internal/models"
	"alive-keeper/internal/services"
)

// GameActions is the action gateway.
type GameActions interface {
	CheckIn(ctx context.Context) (models.PlayerSnapshot, error)
	Claim(ctx context.Context) (*services.ClaimResult, error)
	Reconnect(ctx context.Context, mode models.ReconnectMode) (*services.ReconnectResult, error)
	Purchase(ctx context.Context, code models.ItemCode) (*services.PurchaseResult, error)
	Activate(ctx context.Context, referrer string) (*services.ActivationResult, error)
	Items(ctx context.Context) ([]models.CatalogItem, error)
	ReferralStats(ctx context.Context) (*models.ReferralStats, error)
	ReferralList(ctx context.Context) (*models.ReferralList, error)
	EstimatedDailyEarnings() float64
}

// Refresher schedules a reconciliation.
type Refresher interface {
	Trigger(reason string)
}

type GameHandler struct {
	actions   GameActions
	store     SnapshotReader
	refresher Refresher
}

func NewGameHandler(actions GameActions, store SnapshotReader, refresher Refresher) *GameHandler {
	return &GameHandler{
		actions:   actions,
		store:     store,
		refresher: refresher,
	}
}

func (h *GameHandler) CheckIn(c *gin.Context) {
	snap, err := h.actions.CheckIn(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"snapshot": snap,
	})
}

func (h *GameHandler) Claim(c *gin.Context) {
	result, err := h.actions.Claim(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"claim":   result,
	})
}

func (h *GameHandler) Reconnect(c *gin.Context) {
	var req models.ReconnectRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if req.Mode == "" {
		req.Mode = models.ReconnectStandard
	}

	result, err := h.actions.Reconnect(c.Request.Context(), req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reconnect": result,
	})
}

func (h *GameHandler) Activate(c *gin.Context) {
	var req struct {
		Referrer string `json:"referrer"`
	}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.actions.Activate(c.Request.Context(), req.Referrer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"activation": result,
	})
}

func (h *GameHandler) ListItems(c *gin.Context) {
	items, err := h.actions.Items(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	snap := h.store.Snapshot()
	response := make([]gin.H, 0, len(items))
	for _, item := range items {
		response = append(response, gin.H{
			"code":        item.Code,
			"name":        item.Name,
			"description": item.Description,
			"price":       item.Price,
			"max_owned":   item.MaxOwned,
			"owned":       snap.ItemQuantity(item.Code),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   response,
		"count":   len(response),
	})
}

func (h *GameHandler) Purchase(c *gin.Context) {
	var req struct {
		ItemCode models.ItemCode `json:"item_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.actions.Purchase(c.Request.Context(), req.ItemCode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"purchase": result,
	})
}

func (h *GameHandler) GetReferralStats(c *gin.Context) {
	stats, err := h.actions.ReferralStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

func (h *GameHandler) GetReferralList(c *gin.Context) {
	list, err := h.actions.ReferralList(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"referrals": list,
	})
}

func (h *GameHandler) GetDashboard(c *gin.Context) {
	snap := h.store.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"success":                  true,
		"global_stats":             snap.GlobalStats,
		"emission_rate":            snap.EmissionRate,
		"estimated_daily_earnings": h.actions.EstimatedDailyEarnings(),
		"synced_at":                snap.SyncedAt,
	})
}

// Refresh asks for a reconciliation, as when the UI regains focus.
func (h *GameHandler) Refresh(c *gin.Context) {
	h.refresher.Trigger("refocus")
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// bindOptionalJSON binds the body when there is one. An empty body leaves
// obj at its zero value.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
