package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handlers) modelsConfig(c *gin.Context) {
	observed := h.coord.LLMState.Models()
	c.JSON(http.StatusOK, gin.H{
		"advertised": h.coord.Overrides.FilterLLMModels(observed),
		"all":        observed,
		"disabled":   h.coord.Overrides.SnapshotModels().Disabled,
	})
}

type modelsToggleRequest struct {
	Model   string `json:"model" binding:"required"`
	Enabled *bool  `json:"enabled"`
}

func (h *handlers) modelsToggle(c *gin.Context) {
	var req modelsToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "malformed request body")
		return
	}
	enabled, err := h.coord.Overrides.ToggleModel(req.Model, req.Enabled)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to persist config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": req.Model, "enabled": enabled})
}

type modelsSetEnabledRequest struct {
	Models map[string]bool `json:"models" binding:"required"`
}

func (h *handlers) modelsSetEnabled(c *gin.Context) {
	var req modelsSetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.coord.Overrides.SetModelsEnabled(req.Models); err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to persist config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
