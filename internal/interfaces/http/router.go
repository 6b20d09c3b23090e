package http

import (
	"github.com/gin-gonic/gin"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
	"github.com/leaselens/leaselens/internal/interfaces/http/handlers"
	"github.com/leaselens/leaselens/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and middleware configuration needed to
// build the full route tree.
type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChatHandler     *handlers.ChatHandler
	HealthHandler   *handlers.HealthHandler

	CORS      middleware.CORSConfig
	Logging   middleware.LoggingConfig
	RateLimit middleware.RateLimitConfig

	// Mode selects the gin mode; empty defaults to release.
	Mode string

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// NewRouter wires global middleware, probe endpoints, and the /api/v1 routes
// into a gin engine ready to hand to the HTTP server.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.Metrics, cfg.Logging))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimit))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")
	if h := cfg.DocumentHandler; h != nil {
		api.POST("/upload", h.Upload)
		api.POST("/analyze/:id", h.Analyze)
		api.GET("/status/:id", h.Status)
		api.GET("/documents", h.List)
		api.GET("/document/:id", h.Get)
		api.DELETE("/document/:id", h.Delete)
	}
	if h := cfg.ChatHandler; h != nil {
		api.POST("/chat", h.Ask)
	}

	return r
}
