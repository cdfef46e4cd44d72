package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

// GameHandler serves the earning side: tasks, offers, promo codes,
// referrals and achievements.
type GameHandler struct {
	engine *services.Engine
}

func NewGameHandler(engine *services.Engine) *GameHandler {
	return &GameHandler{engine: engine}
}

func (h *GameHandler) GetTaskStatus(c *gin.Context) {
	status, err := h.engine.TaskStatus(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *GameHandler) RunTask(c *gin.Context) {
	task := models.TaskType(c.Param("type"))
	switch task {
	case models.TaskVideo, models.TaskShort, models.TaskDaily, models.TaskCheckin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown task type"})
		return
	}

	result, err := h.engine.RunTask(c.Request.Context(), c.GetString("user_id"), task)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) GetOffers(c *gin.Context) {
	offers, err := h.engine.Offers(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (h *GameHandler) CompleteOffer(c *gin.Context) {
	result, err := h.engine.CompleteOffer(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) RedeemPromo(c *gin.Context) {
	var req models.PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.engine.RedeemPromo(c.GetString("user_id"), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) SimulateReferral(c *gin.Context) {
	result, err := h.engine.SimulateReferral(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) GetAchievements(c *gin.Context) {
	list, err := h.engine.Achievements(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"achievements": list})
}

func (h *GameHandler) ClaimAchievement(c *gin.Context) {
	reward, err := h.engine.ClaimAchievement(c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reward":  reward,
	})
}

func (h *GameHandler) ClaimAllAchievements(c *gin.Context) {
	total, ids, err := h.engine.ClaimAllAchievements(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   total,
		"claimed": ids,
	})
}
