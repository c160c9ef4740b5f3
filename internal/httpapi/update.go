package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// restartDelay gives the HTTP response time to flush before the process
// re-execs (spec.md §4.9 "schedules a restart ~2 s after applying").
const restartDelay = 2 * time.Second

func (h *handlers) updateCheck(c *gin.Context) {
	result, err := h.coord.Updater.Check(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// updateApply implements POST /update/apply: download + apply happen
// synchronously so failures are reported to the caller, but the restart
// itself is deferred to a short-lived background task so the HTTP
// response makes it back to the client first.
func (h *handlers) updateApply(c *gin.Context) {
	if err := h.coord.ApplyUpdate(context.Background()); err != nil {
		jsonError(c, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		time.Sleep(restartDelay)
		h.coord.Restart()
	}()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "restart_scheduled_in_seconds": restartDelay.Seconds()})
}
