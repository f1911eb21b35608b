// Package http exposes the enrichment engine as a read-only JSON lookup API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/internal/interfaces/http/handlers"
	"github.com/turtacn/trialscope/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	LookupHandler *handlers.LookupHandler
	HealthHandler *handlers.HealthHandler

	// RateLimiter throttles /api/v1 per client; nil disables it.
	RateLimiter *middleware.RateLimiter

	Logger         logging.Logger
	Metrics        *prometheus.AppMetrics
	MetricsHandler http.Handler

	// Mode is the gin mode: debug, release or test.
	Mode string
}

// NewRouter builds the route tree: global middleware, public probes and
// /metrics, then the rate-limited /api/v1 lookup group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	r.Use(middleware.Metrics(cfg.Metrics))

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Handler())
	}
	registerLookupRoutes(api, cfg.LookupHandler)

	return r
}

// registerLookupRoutes mounts the engine lookups.
func registerLookupRoutes(r *gin.RouterGroup, h *handlers.LookupHandler) {
	if h == nil {
		return
	}
	r.GET("/resolve", h.Resolve)
	r.GET("/profile", h.Profile)
	r.GET("/summary", h.Summary)
	r.GET("/approval-year", h.ApprovalYear)

	mr := r.Group("/molecules/:id")
	mr.GET("/mechanisms", h.Mechanisms)
	mr.GET("/approval", h.Approval)
}
