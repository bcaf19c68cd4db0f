package http

import (
	"time"

	"rps_arena/internal/config"
	"rps_arena/internal/http/handlers"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

// Deps are the components the routes are served from. Redis and Audit may be nil.
type Deps struct {
	DB      handlers.Pinger
	Redis   *redis.Client
	Matches *service.MatchService
	Auth    *service.AuthService
	Audit   handlers.AuditTrail
	Hub     *ws.Hub
	Version string
}

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

func RegisterRoutes(r *gin.Engine, cfg *config.Config, d Deps) {
	h := handlers.NewHandler(d.Matches, d.Auth, d.Audit)
	health := handlers.NewHealthHandler(d.DB, d.Redis, d.Version)

	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.Redis, "rl", cfg.APIRateLimit, cfg.APIRateWindow))

	authRL := middleware.RateLimit(d.Redis, "auth_rl", authRateLimit, authRateWindow)
	v1.GET("/auth/payload", authRL, h.AuthPayload)
	v1.POST("/auth", authRL, h.Auth)

	// per address, so JWT must run first
	moveRL := middleware.RateLimit(d.Redis, "move_rl", cfg.MoveRateLimit, time.Minute)

	v1.GET("/matches", h.ListMatches)
	matches := v1.Group("/matches")
	matches.Use(middleware.JWT())
	{
		matches.POST("", h.CreateMatch)
		matches.GET("/:id", h.GetMatch)
		matches.POST("/:id/join", h.JoinMatch)
		matches.POST("/:id/move", moveRL, h.SubmitMove)
		matches.POST("/:id/reset", h.ResetMatch)
		matches.POST("/:id/settle", h.SettleMatch)
		matches.GET("/:id/deposits", h.Deposits)
		matches.GET("/:id/audit", h.AuditTrail)
	}
	v1.GET("/me/audit", middleware.JWT(), h.MyAudit)

	if d.Hub != nil {
		r.GET("/ws", ws.HandleWS(d.Hub, cfg.AllowedOrigin))
	}
}

// CORS allows the configured origin, or any origin when none is configured.
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowedOrigin == "" || origin == allowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
