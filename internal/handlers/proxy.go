package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/services"
)

// ProxyHandler is the HTTP surface of the edge function. Every error body
// is {"error": "..."}.
type ProxyHandler struct {
	proxy *services.ProxyService
}

func NewProxyHandler(proxy *services.ProxyService) *ProxyHandler {
	return &ProxyHandler{proxy: proxy}
}

func proxyError(c *gin.Context, err error) {
	var upstream *services.UpstreamError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
	case errors.Is(err, services.ErrMissingInputs),
		errors.Is(err, services.ErrMissingRunID),
		errors.Is(err, services.ErrInvalidRunID):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrWorkflowNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *ProxyHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ProxyHandler) Config(c *gin.Context) {
	opts, err := h.proxy.Config(c.Request.Context())
	if err != nil {
		proxyError(c, err)
		return
	}

	c.JSON(http.StatusOK, opts)
}

func (h *ProxyHandler) Dispatch(c *gin.Context) {
	var req struct {
		OSVersion string `json:"os_version"`
		Language  string `json:"language"`
	}
	// A malformed body counts as empty inputs.
	_ = c.ShouldBindJSON(&req)

	resp, err := h.proxy.Dispatch(c.Request.Context(), req.OSVersion, req.Language)
	if err != nil {
		proxyError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ProxyHandler) Resolve(c *gin.Context) {
	resp, err := h.proxy.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		proxyError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ProxyHandler) Run(c *gin.Context) {
	run, err := h.proxy.Run(c.Request.Context(), c.Param("runId"))
	if err != nil {
		proxyError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", run)
}

func (h *ProxyHandler) Cancel(c *gin.Context) {
	if err := h.proxy.Cancel(c.Request.Context(), c.Param("runId")); err != nil {
		proxyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ProxyHandler) Connection(c *gin.Context) {
	conn, err := h.proxy.Connection(c.Request.Context(), c.Param("runId"))
	if err != nil {
		proxyError(c, err)
		return
	}

	c.Data(http.StatusOK, "application/json", conn)
}

func (h *ProxyHandler) Webhook(c *gin.Context) {
	if !h.proxy.Authorized(c.GetHeader("Authorization")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	body := map[string]interface{}{}
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil || body == nil {
		body = map[string]interface{}{}
	}

	if _, err := h.proxy.StoreConnection(c.Request.Context(), body); err != nil {
		proxyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *ProxyHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

// Register mounts the edge routes on r.
func (h *ProxyHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/config", h.Config)
		api.POST("/dispatch", h.Dispatch)
		api.GET("/dispatch/:id/resolve", h.Resolve)
		api.GET("/runs/:runId", h.Run)
		api.POST("/runs/:runId/cancel", h.Cancel)
		api.GET("/runs/:runId/connection", h.Connection)
		api.POST("/webhook/connection", h.Webhook)
	}
}
