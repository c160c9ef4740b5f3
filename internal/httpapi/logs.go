package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DimaJoyti/node-agent/internal/commlog"
)

func (h *handlers) ringFor(service string) *commlog.Ring {
	switch service {
	case "llm":
		return h.coord.LLMLog
	case "render":
		return h.coord.RenderLog
	default:
		return nil
	}
}

func (h *handlers) logsAll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"llm":    h.coord.LLMLog.Snapshot(),
		"render": h.coord.RenderLog.Snapshot(),
	})
}

func (h *handlers) logsOne(c *gin.Context) {
	ring := h.ringFor(c.Param("service"))
	if ring == nil {
		jsonError(c, http.StatusBadRequest, "unknown service")
		return
	}
	c.JSON(http.StatusOK, ring.Snapshot())
}

func (h *handlers) logsClear(c *gin.Context) {
	ring := h.ringFor(c.Param("service"))
	if ring == nil {
		jsonError(c, http.StatusBadRequest, "unknown service")
		return
	}
	ring.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
