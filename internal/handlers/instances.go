package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

type InstanceHandler struct {
	engine *services.Engine
}

func NewInstanceHandler(engine *services.Engine) *InstanceHandler {
	return &InstanceHandler{engine: engine}
}

// instanceID maps the "selected" alias onto the current selection.
func instanceID(c *gin.Context) string {
	id := c.Param("id")
	if id == "selected" {
		return ""
	}
	return id
}

// GetCatalog lists plans, regions and images. It needs no session.
func (h *InstanceHandler) GetCatalog(c *gin.Context) {
	plans := make([]models.Plan, 0, len(models.PlanOrder))
	for _, id := range models.PlanOrder {
		plans = append(plans, models.Plans[id])
	}

	c.JSON(http.StatusOK, gin.H{
		"plans":         plans,
		"regions":       models.Regions,
		"images":        models.Images,
		"max_instances": models.MaxInstances,
		"max_running":   models.MaxRunning,
		"min_hours":     models.MinHours,
		"max_hours":     models.MaxHours,
	})
}

func (h *InstanceHandler) GetQuote(c *gin.Context) {
	var q struct {
		Plan  string `form:"plan"`
		Hours int64  `form:"hours"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	hours := models.ClampHours(q.Hours)
	c.JSON(http.StatusOK, gin.H{
		"plan":  models.PlanSpec(q.Plan).ID,
		"hours": hours,
		"cost":  models.InstanceCost(q.Plan, hours),
	})
}

func (h *InstanceHandler) ListInstances(c *gin.Context) {
	resp, err := h.engine.Instances(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req models.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inst, err := h.engine.CreateInstance(c.GetString("user_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"instance": inst,
	})
}

func (h *InstanceHandler) SelectInstance(c *gin.Context) {
	if err := h.engine.SelectInstance(c.GetString("user_id"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "selected_id": c.Param("id")})
}

func (h *InstanceHandler) StartInstance(c *gin.Context) {
	var req models.StartInstanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	inst, err := h.engine.StartInstance(c.GetString("user_id"), instanceID(c), req.Confirm)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "instance": inst})
}

func (h *InstanceHandler) StopInstance(c *gin.Context) {
	inst, err := h.engine.StopInstance(c.GetString("user_id"), instanceID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "instance": inst})
}

func (h *InstanceHandler) ExtendInstance(c *gin.Context) {
	var req models.ExtendInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	inst, err := h.engine.ExtendInstance(c.GetString("user_id"), instanceID(c), req.Hours)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "instance": inst})
}

func (h *InstanceHandler) DestroyInstance(c *gin.Context) {
	if err := h.engine.DestroyInstance(c.GetString("user_id"), instanceID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
