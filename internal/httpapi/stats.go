package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *handlers) stats(c *gin.Context) {
	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"llm":            h.coord.LLMStats.Snapshot(now),
		"render":         h.coord.RenderStats.Snapshot(now),
		"uptime_seconds": h.coord.UptimeSeconds(),
		"timestamp":      now,
	})
}

func (h *handlers) statsReset(c *gin.Context) {
	h.coord.LLMStats.Reset()
	h.coord.RenderStats.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
