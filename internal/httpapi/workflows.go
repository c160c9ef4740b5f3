package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type workflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

func (h *handlers) listWorkflows(c *gin.Context) {
	summaries := gin.H{}
	for _, id := range h.coord.Workflows.IDs() {
		if h.coord.Overrides.IsWorkflowHidden(id) {
			continue
		}
		spec, _ := h.coord.Workflows.Get(id)
		summaries[id] = workflowSummary{ID: spec.ID, Name: spec.Name, Description: spec.Description, Kind: string(spec.Kind)}
	}
	c.JSON(http.StatusOK, gin.H{"workflows": summaries})
}

func (h *handlers) getWorkflow(c *gin.Context) {
	id := c.Param("id")
	spec, ok := h.coord.Workflows.Get(id)
	if !ok {
		jsonError(c, http.StatusNotFound, "unknown workflow")
		return
	}
	c.JSON(http.StatusOK, spec)
}

func (h *handlers) downloadWorkflow(c *gin.Context) {
	id := c.Param("id")
	spec, ok := h.coord.Workflows.Get(id)
	if !ok {
		jsonError(c, http.StatusNotFound, "unknown workflow")
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+id+"_api.json\"")
	c.JSON(http.StatusOK, spec.Graph)
}

func (h *handlers) workflowAvailability(c *gin.Context) {
	id := c.Param("id")
	readiness, ok := h.coord.Workflows.EvaluateReadiness(id, h.coord.RenderState.Catalog())
	if !ok {
		jsonError(c, http.StatusNotFound, "unknown workflow")
		return
	}
	c.JSON(http.StatusOK, readiness)
}

func (h *handlers) allWorkflowAvailability(c *gin.Context) {
	catalog := h.coord.RenderState.Catalog()
	out := gin.H{}
	for _, id := range h.coord.Workflows.IDs() {
		if readiness, ok := h.coord.Workflows.EvaluateReadiness(id, catalog); ok {
			out[id] = readiness
		}
	}
	c.JSON(http.StatusOK, out)
}
