package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/handler"
	"github.com/stemsi/tolcsim-backend/internal/metrics"
	"github.com/stemsi/tolcsim-backend/internal/middleware"
	"github.com/stemsi/tolcsim-backend/internal/response"
	"github.com/stemsi/tolcsim-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Catalog *handler.CatalogHandler
	Session *handler.SessionHandler
	Stats   *handler.StatsHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background helpers such as the rate limiter sweeper.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so every response and log line carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.AccessLog(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	// ─── 1. API Group (JWT, Rate Limited, Deadline) ────────────────────
	api := router.Group("/api/v1")
	api.Use(
		limiter.Middleware(),
		middleware.RequireUserJWT(authService),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)
	{
		api.GET("/exam-types", middleware.CacheControl(3600), handlers.Catalog.ListExamTypes)

		sessions := api.Group("/sessions")
		sessions.Use(middleware.NoStore())
		{
			sessions.POST("", handlers.Session.CreateSession)
			sessions.GET("/:id", handlers.Session.GetSession)
			sessions.POST("/:id/sections/:section_id/start", handlers.Session.StartSection)
			sessions.POST("/:id/sections/:section_id/complete", handlers.Session.CompleteSection)
		}
		// Results never change once a session is completed.
		api.GET("/sessions/:id/results", middleware.PrivateCache(300), handlers.Session.GetResults)

		api.GET("/history", middleware.NoStore(), handlers.Session.ListHistory)
		api.GET("/stats", middleware.NoStore(), handlers.Stats.GetStats)
	}

	// ─── 2. WebSocket Group (Query Token Auth) ─────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(limiter.Middleware(), middleware.RequireUserWSAuth(authService))
	{
		wsGroup.GET("/sessions/stream", handlers.WS.SessionStream)
	}

	return router
}
