package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/services"
)

const maxImportSize = 8 << 20

type DataHandler struct {
	engine *services.Engine
}

func NewDataHandler(engine *services.Engine) *DataHandler {
	return &DataHandler{engine: engine}
}

func (h *DataHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"remote_enabled": h.engine.RemoteEnabled(),
	})
}

// Export downloads the caller's own account and game state.
func (h *DataHandler) Export(c *gin.Context) {
	data, err := h.engine.ExportUser(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="cloudvps-data.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Import replaces the caller's game state with an exported one.
func (h *DataHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		bindError(c, err)
		return
	}

	if err := h.engine.ImportUser(c.GetString("user_id"), raw); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Imported"})
}

func (h *DataHandler) Reset(c *gin.Context) {
	if err := h.engine.ResetUser(c.GetString("user_id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reset complete"})
}

// AdminExport downloads the whole document, every account included.
func (h *DataHandler) AdminExport(c *gin.Context) {
	data, err := h.engine.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="cloudvps-document.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// AdminImport replaces the whole document with the uploaded one after
// migration.
func (h *DataHandler) AdminImport(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		bindError(c, err)
		return
	}

	if err := h.engine.Import(raw); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Imported"})
}

func (h *DataHandler) AdminReset(c *gin.Context) {
	if err := h.engine.Reset(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reset complete"})
}
