// Package httpapi implements C10: the full HTTP control-plane surface
// described in spec.md §6, mounted on gin with permissive CORS.
//
// Grounded on the teacher's analytics-dashboard router wiring
// (cmd/analytics-dashboard/main.go: gin.New() + gin.Recovery() +
// rs/cors) for the engine/middleware setup, generalized from one
// dashboard's route group into the agent's full status/mutation/proxy
// surface.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/DimaJoyti/node-agent/internal/agent"
	"github.com/DimaJoyti/node-agent/pkg/logger"
)

// NewRouter builds the gin engine serving every endpoint in spec.md §6.
func NewRouter(coord *agent.Coordinator, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(corsMiddleware())

	h := &handlers{coord: coord, log: log}

	router.GET("/status", h.status)
	router.GET("/version", h.version)
	router.GET("/health", h.health)
	router.GET("/hardware", h.hardware)
	router.GET("/capabilities", h.capabilities)
	router.GET("/load-balance-info", h.loadBalanceInfo)
	router.POST("/can-handle", h.canHandle)

	router.GET("/stats", h.stats)
	router.POST("/stats/reset", h.statsReset)

	router.GET("/workflows", h.listWorkflows)
	router.GET("/workflows/availability", h.allWorkflowAvailability)
	router.GET("/workflows/:id", h.getWorkflow)
	router.GET("/workflows/:id/download", h.downloadWorkflow)
	router.GET("/workflows/:id/availability", h.workflowAvailability)

	router.GET("/models/config", h.modelsConfig)
	router.POST("/models/toggle", h.modelsToggle)
	router.POST("/models/set-enabled", h.modelsSetEnabled)

	router.POST("/job/start", h.jobStart)
	router.POST("/job/complete", h.jobComplete)
	router.GET("/jobs/history", h.jobsHistory)

	router.GET("/logs", h.logsAll)
	router.GET("/logs/:service", h.logsOne)
	router.POST("/logs/:service/clear", h.logsClear)

	router.GET("/update/check", h.updateCheck)
	router.POST("/update/apply", h.updateApply)

	registry := prometheus.NewRegistry()
	registry.MustRegister(newStatsCollector(coord))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.Any("/proxy/llm/*subpath", h.proxyLLM)
	router.Any("/proxy/render/*subpath", h.proxyRender)

	return router
}

type handlers struct {
	coord *agent.Coordinator
	log   *logger.Logger
}

// corsMiddleware adapts rs/cors (the teacher's dependency for
// analytics-dashboard) into gin middleware. rs/cors is built around
// wrapping a terminal http.Handler, so the inner handler here only
// flips a flag: a preflight OPTIONS request never reaches it because
// cors.Handler answers those itself, letting us tell the two cases
// apart without re-entering the gin engine.
func corsMiddleware() gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	passed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return func(ctx *gin.Context) {
		reached := false
		c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			passed.ServeHTTP(w, r)
		})).ServeHTTP(ctx.Writer, ctx.Request)
		if !reached {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log != nil {
			log.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
