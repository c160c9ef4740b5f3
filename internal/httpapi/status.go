package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// statusServiceView is the per-service block of GET /status.
type statusServiceView struct {
	Available     bool        `json:"available"`
	Models        []string    `json:"models,omitempty"`
	AllModels     []string    `json:"all_models,omitempty"`
	Catalog       interface{} `json:"catalog,omitempty"`
	Stats         interface{} `json:"stats"`
	CurrentJob    interface{} `json:"current_job"`
	JobsCompleted int64       `json:"jobs_completed"`
}

func (h *handlers) buildLLMView() statusServiceView {
	now := time.Now()
	observed := h.coord.LLMState.Models()
	return statusServiceView{
		Available:     h.coord.LLMState.Available(),
		Models:        h.coord.Overrides.FilterLLMModels(observed),
		AllModels:     observed,
		Stats:         h.coord.LLMStats.Snapshot(now),
		CurrentJob:    h.coord.LLMJobs.Current(),
		JobsCompleted: h.coord.LLMJobs.CompletedCount(),
	}
}

func (h *handlers) buildRenderView() statusServiceView {
	now := time.Now()
	return statusServiceView{
		Available:     h.coord.RenderState.Available(),
		Catalog:       h.coord.RenderState.Catalog(),
		Stats:         h.coord.RenderStats.Snapshot(now),
		CurrentJob:    h.coord.RenderJobs.Current(),
		JobsCompleted: h.coord.RenderJobs.CompletedCount(),
	}
}

func (h *handlers) status(c *gin.Context) {
	var lastHeartbeat interface{}
	if t := h.coord.Heartbeat.LastHeartbeat(); t != nil {
		lastHeartbeat = *t
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":       h.coord.Identity,
		"llm":            h.buildLLMView(),
		"render":         h.buildRenderView(),
		"hardware":       h.coord.Hardware(),
		"last_heartbeat": lastHeartbeat,
		"uptime_seconds": h.coord.UptimeSeconds(),
		"timestamp":      time.Now(),
	})
}

func (h *handlers) version(c *gin.Context) {
	hash, _ := h.coord.Updater.OwnHash()
	c.JSON(http.StatusOK, gin.H{
		"version":  h.coord.Identity.AgentVersion,
		"hash":     hash,
		"hostname": h.coord.Identity.Hostname,
		"node_id":  h.coord.Identity.NodeID,
	})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  h.coord.Identity.AgentVersion,
		"node_id":  h.coord.Identity.NodeID,
		"hostname": h.coord.Identity.Hostname,
		"llm":      h.coord.LLMState.Available(),
		"render":   h.coord.RenderState.Available(),
	})
}

func (h *handlers) hardware(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Hardware())
}

func (h *handlers) capabilities(c *gin.Context) {
	renderCatalog := h.coord.RenderState.Catalog()
	ready := []string{}
	for _, id := range h.coord.Workflows.IDs() {
		if h.coord.Overrides.IsWorkflowHidden(id) {
			continue
		}
		if readiness, ok := h.coord.Workflows.EvaluateReadiness(id, renderCatalog); ok && readiness.AllAvailable {
			ready = append(ready, id)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"identity": h.coord.Identity,
		"services": gin.H{
			"llm":    h.buildLLMView(),
			"render": h.buildRenderView(),
		},
		"workflows": gin.H{
			"ready": ready,
		},
		"capacity":         h.capacitySummary(),
		"hardware_summary": h.hardwareSummary(),
		"performance":      h.performanceSummary(),
	})
}

func (h *handlers) loadBalanceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node_id":          h.coord.Identity.NodeID,
		"capacity":         h.capacitySummary(),
		"hardware_summary": h.hardwareSummary(),
		"performance":      h.performanceSummary(),
	})
}

func (h *handlers) capacitySummary() gin.H {
	return gin.H{
		"llm_available":    h.coord.LLMState.Available(),
		"llm_busy":         h.coord.LLMJobs.Current() != nil,
		"render_available": h.coord.RenderState.Available(),
		"render_busy":      h.coord.RenderJobs.Current() != nil,
	}
}

func (h *handlers) hardwareSummary() gin.H {
	hw := h.coord.Hardware()
	summary := gin.H{
		"logical_cores":  hw.LogicalCores,
		"ram_total_mb":   hw.RAMTotalMB,
		"has_gpu":        len(hw.GPUs) > 0,
	}
	if len(hw.GPUs) > 0 {
		gpu := hw.GPUs[0]
		summary["gpu_name"] = gpu.Name
		summary["vram_total_mb"] = gpu.VRAMTotalMB
		if gpu.VRAMTotalMB > 0 {
			summary["vram_used_percent"] = float64(gpu.VRAMUsedMB) / float64(gpu.VRAMTotalMB) * 100
		}
	}
	return summary
}

func (h *handlers) performanceSummary() gin.H {
	now := time.Now()
	return gin.H{
		"llm":    h.coord.LLMStats.Snapshot(now),
		"render": h.coord.RenderStats.Snapshot(now),
	}
}
