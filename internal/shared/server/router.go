package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"exportready-backend/internal/countries"
	"exportready-backend/internal/exportanalysis"
	"exportready-backend/internal/services/health"
	"exportready-backend/internal/shared/config"
	"exportready-backend/internal/shared/metrics"
	"exportready-backend/internal/shared/server/middleware"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/metrics"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	CountryHandler  *countries.Handler
	AnalysisHandler *exportanalysis.Handler
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(healthPath, metricsPath),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateLimitRules(),
			GroupFor: rateLimitGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET(metricsPath, metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})
	registerMeRoutes(api)
	if deps.CountryHandler != nil {
		deps.CountryHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}

	return r
}

// Groups whose requests reach the advisory analyzer get a tighter budget.
func rateLimitRules() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		"ANALYZE": {Rate: 0.5, Burst: 5},
		"DEFAULT": {Rate: 10, Burst: 40},
	}
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return "DEFAULT"
	}
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/v1/export-analysis") {
		return "ANALYZE"
	}
	return "DEFAULT"
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
