package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// canHandleRequest mirrors POST /can-handle's body (spec.md §6).
type canHandleRequest struct {
	JobType    string `json:"job_type"`
	Model      string `json:"model"`
	WorkflowID string `json:"workflow_id"`
	Priority   string `json:"priority"`
}

type canHandleResponse struct {
	CanHandle       bool   `json:"can_handle"`
	Reason          string `json:"reason,omitempty"`
	Score           int    `json:"score"`
	EstimatedWaitMs int    `json:"estimated_wait_ms,omitempty"`
}

// canHandle implements the routing-decision formula from spec.md §4.10.
func (h *handlers) canHandle(c *gin.Context) {
	var req canHandleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "malformed request body")
		return
	}

	var resp canHandleResponse
	switch req.JobType {
	case "render":
		resp = h.scoreRender(req)
	default:
		resp = h.scoreLLM(req)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) scoreLLM(req canHandleRequest) canHandleResponse {
	if !h.coord.LLMState.Available() {
		return canHandleResponse{CanHandle: false, Reason: "llm service unavailable", Score: 0}
	}

	snap := h.coord.LLMStats.Snapshot(time.Now())
	score := 100
	if snap.AvgMs > 10000 {
		score -= 20
	}
	if snap.SuccessRate < 95 {
		score -= 30
	}
	busy := h.coord.LLMJobs.Current() != nil
	if busy {
		score -= 40
	}

	if busy && req.Priority != "high" {
		score = 30
	}
	if score < 0 {
		score = 0
	}
	return canHandleResponse{CanHandle: true, Score: score, EstimatedWaitMs: int(snap.AvgMs)}
}

func (h *handlers) scoreRender(req canHandleRequest) canHandleResponse {
	if !h.coord.RenderState.Available() {
		return canHandleResponse{CanHandle: false, Reason: "render service unavailable", Score: 0}
	}

	hw := h.coord.Hardware()
	if len(hw.GPUs) == 0 {
		return canHandleResponse{CanHandle: false, Reason: "no GPU available", Score: 0}
	}
	gpu := hw.GPUs[0]
	vramPercent := 0.0
	if gpu.VRAMTotalMB > 0 {
		vramPercent = float64(gpu.VRAMUsedMB) / float64(gpu.VRAMTotalMB) * 100
	}
	if vramPercent >= 95 {
		return canHandleResponse{CanHandle: false, Reason: "GPU memory full", Score: 0}
	}

	if req.WorkflowID != "" {
		readiness, ok := h.coord.Workflows.EvaluateReadiness(req.WorkflowID, h.coord.RenderState.Catalog())
		if !ok {
			return canHandleResponse{CanHandle: false, Reason: "unknown workflow", Score: 0}
		}
		if !readiness.AllAvailable {
			return canHandleResponse{CanHandle: false, Reason: "required model slots missing", Score: 0}
		}
	}

	snap := h.coord.RenderStats.Snapshot(time.Now())
	score := 100
	if vramPercent >= 80 {
		score -= 20
	}
	if snap.SuccessRate < 95 {
		score -= 30
	}
	busy := h.coord.RenderJobs.Current() != nil
	if busy {
		score -= 40
	}

	if busy && req.Priority != "high" {
		score = 30
	}
	if score < 0 {
		score = 0
	}
	return canHandleResponse{CanHandle: true, Score: score, EstimatedWaitMs: int(snap.AvgMs)}
}
