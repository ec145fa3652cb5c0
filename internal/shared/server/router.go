package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"submission-backend/internal/shared/config"
	"submission-backend/internal/shared/metrics"
	"submission-backend/internal/shared/server/middleware"
	"submission-backend/internal/shared/server/respond"
	"submission-backend/internal/shared/storage/db"
)

// RouteRegistrar attaches a feature's routes under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps are the feature handlers and probes the router serves.
type RouterDeps struct {
	Routes []RouteRegistrar
	// DB is pinged by the health endpoint when set.
	DB          *sql.DB
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, deps RouterDeps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateRules(cfg),
			GroupFor: middleware.SubmissionGroupFor,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.DB))
	for _, reg := range deps.Routes {
		if reg != nil {
			reg.RegisterRoutes(api)
		}
	}
	return r
}

func rateRules(cfg config.Config) map[string]middleware.RateLimitRule {
	uploads := cfg.UploadRatePerMin
	if uploads <= 0 {
		uploads = 20
	}
	return map[string]middleware.RateLimitRule{
		middleware.RateGroupUpload:  {Rate: float64(uploads) / 60.0, Burst: uploads},
		middleware.RateGroupDefault: {Rate: 20, Burst: 100},
	}
}

func healthHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if database == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true, "db": "memory"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx, database, 2*time.Second); err != nil {
			respond.Error(c, http.StatusServiceUnavailable, "unavailable", "database unreachable", nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "db": "postgres"})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
