package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the API on r:
//
//	POST /v1/evaluate       - Evaluate one observation set
//	POST /v1/sessions       - Run a retry session
//	GET  /v1/sessions       - List stored sessions
//	GET  /v1/sessions/:id   - Stored session with its transitions
//	GET  /healthz           - Health check
//	GET  /metrics           - Prometheus metrics
func RegisterRoutes(r *gin.Engine, handlers *Handlers) {
	v1 := r.Group("/v1")
	{
		v1.POST("/evaluate", handlers.HandleEvaluate)
		v1.POST("/sessions", handlers.HandleRunSession)
		v1.GET("/sessions", handlers.HandleListSessions)
		v1.GET("/sessions/:id", handlers.HandleGetSession)
	}
	r.GET("/healthz", handlers.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewRouter builds a gin engine with recovery and the API routes.
func NewRouter(handlers *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, handlers)
	return r
}
