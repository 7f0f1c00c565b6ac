package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/config"
	"github.com/stemsi/exam-practice/internal/handler"
	"github.com/stemsi/exam-practice/internal/logger"
	"github.com/stemsi/exam-practice/internal/middleware"
	"github.com/stemsi/exam-practice/internal/response"
)

// brotliQuality trades ratio for CPU on per-request compression.
const brotliQuality = 5

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil to disable rate limiting.
func SetupRouter(
	auth middleware.TokenValidator,
	limiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(logger.AccessLog(log, response.ContextKeyRequestID, middleware.ContextKeyUserID))

	// Health check.
	router.GET("/health", handlers.Health.Health)

	// ─── 1. Session Group (JWT, Rate Limited) ──────────────────────────
	sessions := router.Group("/api/v1/sessions/:exam_type")
	sessions.Use(middleware.RequireUserJWT(auth))
	if limiter != nil {
		sessions.Use(limiter.Middleware())
	}
	sessions.Use(middleware.NoStore(), middleware.Brotli(brotliQuality, middleware.DefaultCompressMinLength))
	{
		sessions.GET("", handlers.Session.GetSession)
		sessions.DELETE("", handlers.Session.Restart)
		sessions.POST("/answers", handlers.Session.Answer)
		sessions.POST("/navigate", handlers.Session.Navigate)
		sessions.POST("/audio/progress", handlers.Session.AudioProgress)
		sessions.POST("/audio/status", handlers.Session.AudioStatus)
		sessions.POST("/audio/play", handlers.Session.Play)
		sessions.POST("/submit", handlers.Session.Submit)
	}

	// ─── 2. WebSocket Group (Query Token Auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(auth))
	{
		ws.GET("/sessions/:exam_type/stream", handlers.WS.SessionStream)
	}

	return router
}
