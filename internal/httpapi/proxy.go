package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// proxyLLM mounts ANY /proxy/llm/<path>, per spec.md §6.
func (h *handlers) proxyLLM(c *gin.Context) {
	h.coord.Proxy.ServeLLM(c.Writer, c.Request, subpathOf(c))
}

// proxyRender mounts ANY /proxy/render/<path>.
func (h *handlers) proxyRender(c *gin.Context) {
	h.coord.Proxy.ServeRender(c.Writer, c.Request, subpathOf(c))
}

// subpathOf strips gin's leading slash from the `*subpath` wildcard
// parameter, giving the proxy package a bare upstream-relative path.
func subpathOf(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("subpath"), "/")
}
