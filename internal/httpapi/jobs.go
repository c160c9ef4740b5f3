package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DimaJoyti/node-agent/internal/proxy"
)

func (h *handlers) jobTrackerFor(service string) *proxy.JobTracker {
	switch service {
	case "llm":
		return h.coord.LLMJobs
	case "render":
		return h.coord.RenderJobs
	default:
		return nil
	}
}

type jobStartRequest struct {
	Service       string `json:"service" binding:"required"`
	JobID         string `json:"job_id"`
	Type          string `json:"type"`
	Model         string `json:"model"`
	Workflow      string `json:"workflow"`
	WorkflowNodes int    `json:"workflow_nodes"`
}

// jobStart implements POST /job/start, the manual job-registration path
// used by callers that bypass the reverse proxy entirely.
func (h *handlers) jobStart(c *gin.Context) {
	var req jobStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "malformed request body")
		return
	}
	tracker := h.jobTrackerFor(req.Service)
	if tracker == nil {
		jsonError(c, http.StatusBadRequest, "unknown service")
		return
	}
	job := tracker.ManualStart(req.JobID, req.Type, req.Model, req.WorkflowNodes, time.Now())
	c.JSON(http.StatusOK, job)
}

type jobCompleteRequest struct {
	Service string `json:"service" binding:"required"`
	Status  string `json:"status"`
}

func (h *handlers) jobComplete(c *gin.Context) {
	var req jobCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "malformed request body")
		return
	}
	tracker := h.jobTrackerFor(req.Service)
	if tracker == nil {
		jsonError(c, http.StatusBadRequest, "unknown service")
		return
	}
	status := req.Status
	if status == "" {
		status = "ok"
	}
	job, ok := tracker.Complete(status, time.Now())
	if !ok {
		jsonError(c, http.StatusBadRequest, "no job in progress")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handlers) jobsHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"llm":    h.coord.LLMJobs.History(),
		"render": h.coord.RenderJobs.History(),
	})
}
