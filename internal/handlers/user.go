package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

type UserHandler struct {
	engine *services.Engine
}

func NewUserHandler(engine *services.Engine) *UserHandler {
	return &UserHandler{engine: engine}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	profile, err := h.engine.Profile(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.engine.UpdateProfile(c.GetString("user_id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "name": user.Name})
}

func (h *UserHandler) Toggle2FA(c *gin.Context) {
	enabled, err := h.engine.Toggle2FA(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"two_fa_enabled": enabled})
}

func (h *UserHandler) SetPrefs(c *gin.Context) {
	var req services.PrefsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	prefs, err := h.engine.SetPrefs(req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prefs": prefs})
}

func (h *UserHandler) SetUIState(c *gin.Context) {
	var req models.UIState
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.engine.SetUIState(c.GetString("user_id"), req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	balance, err := h.engine.Balance(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

func (h *UserHandler) GetLedger(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > models.MaxLedgerEntries {
		limit = 50
	}

	var kind models.LedgerType
	switch c.Query("type") {
	case string(models.LedgerEarn):
		kind = models.LedgerEarn
	case string(models.LedgerSpend):
		kind = models.LedgerSpend
	}

	entries, err := h.engine.Ledger(c.GetString("user_id"), kind, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *UserHandler) GetNotifications(c *gin.Context) {
	items, unread, err := h.engine.Notifications(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"unread":        unread,
	})
}

func (h *UserHandler) MarkAllRead(c *gin.Context) {
	if err := h.engine.MarkAllRead(c.GetString("user_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) ClearNotifications(c *gin.Context) {
	if err := h.engine.ClearNotifications(c.GetString("user_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
