package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

// RemoteSessionHandler exposes real RDP sessions run through the edge
// function.
type RemoteSessionHandler struct {
	engine *services.Engine
}

func NewRemoteSessionHandler(engine *services.Engine) *RemoteSessionHandler {
	return &RemoteSessionHandler{engine: engine}
}

func (h *RemoteSessionHandler) GetOptions(c *gin.Context) {
	opts, err := h.engine.RemoteOptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, opts)
}

func (h *RemoteSessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.engine.RemoteSessions(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *RemoteSessionHandler) StartSession(c *gin.Context) {
	var req models.RemoteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	session, err := h.engine.StartRemoteSession(c.Request.Context(), c.GetString("user_id"), req.OSVersion, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "session": session})
}

func (h *RemoteSessionHandler) SyncSession(c *gin.Context) {
	session, err := h.engine.SyncRemoteSession(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}

func (h *RemoteSessionHandler) CancelSession(c *gin.Context) {
	session, err := h.engine.CancelRemoteSession(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}
