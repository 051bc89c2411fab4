// Package server assembles the gateway's gin router.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anihub/internal/auth"
	"anihub/internal/catalog"
	"anihub/internal/config"
	"anihub/internal/middleware"
	"anihub/internal/search"
	"anihub/internal/settings"
	"anihub/internal/upstream"
)

type Deps struct {
	Config   config.Config
	DB       *sql.DB
	Provider upstream.Provider
	Store    *settings.Store
	Hub      *settings.Hub
	// Limiter throttles catalog and search routes per client IP; nil disables it.
	Limiter *middleware.IPRateLimiter
	Logger  *zap.Logger
}

// NewRouter wires every gateway route. The returned search handler exposes
// the live socket count.
func NewRouter(d Deps) (*gin.Engine, *search.Handler) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		// config.Validate rejects bad entries; this only fires for hand-built configs
		logger.Error("trusted proxies ignored", zap.Strings("proxies", d.Config.Server.TrustedProxies), zap.Error(err))
	}
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger))

	searchHandler := search.NewHandler(d.Provider.Suggest, d.Config.Search.Debounce, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": d.Config.DBPath})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := d.Hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":         "not_ready",
				"db_error":       err.Error(),
				"ws_clients":     stats.WSClients,
				"search_clients": searchHandler.Connections(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":         "ready",
			"db":             "ok",
			"language":       d.Store.Get(),
			"ws_clients":     stats.WSClients,
			"search_clients": searchHandler.Connections(),
		})
	})

	// Catalog (public, throttled)
	public := router.Group("")
	public.Use(middleware.RateLimit(d.Limiter))
	catalog.NewHandler(d.Provider, logger).RegisterRoutes(public)
	public.GET("/ws/search", searchHandler.WS)

	// Auth
	tokens := auth.TokenService{
		Secret:   []byte(d.Config.Auth.JWTSecret),
		Issuer:   d.Config.Auth.JWTIssuer,
		Duration: d.Config.Auth.JWTDuration,
	}
	authHandler := auth.NewHandler(auth.NewRepo(d.DB), tokens, d.Config.Auth.AdminPasswordHash)
	authHandler.RegisterRoutes(router.Group(""))

	// Settings (PUT is admin only)
	settings.NewHandler(d.Store, d.Hub, authHandler.Guard(), logger).RegisterRoutes(router.Group(""))

	return router, searchHandler
}
