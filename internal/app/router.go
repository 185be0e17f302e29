package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"learnhub.io/notifier/internal/api/handlers"
	"learnhub.io/notifier/internal/api/middleware"
	"learnhub.io/notifier/internal/config"
	"learnhub.io/notifier/internal/metrics"
	"learnhub.io/notifier/internal/pkg/logger"
)

const apiBasePath = "/api/v1"

// defaultAllowedOrigins apply when no origins are configured.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func newRouter(cfg *config.Config, server *handlers.Server, ws gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		metrics.GinMiddleware(),
		cors.New(buildCORSConfig(cfg)),
		middleware.ErrorHandler(),
	)

	router.GET("/health/live", server.GetLiveness)
	router.GET("/health/ready", server.GetReadiness)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if ws != nil {
		// Authenticated by a one-time ticket, not the session token.
		router.GET("/ws", ws)
	}

	api := router.Group(apiBasePath)
	api.Use(middleware.JWTAuth(server.JWTConfig()), middleware.MustOpenAPIValidator(apiBasePath))
	{
		api.GET("/notifications", server.ListNotifications)
		api.GET("/notifications/unread-count", server.GetUnreadCount)
		api.PUT("/notifications/read-all", server.MarkAllNotificationsRead)
		api.GET("/notifications/preferences", server.GetPreferences)
		api.PUT("/notifications/preferences", server.UpdatePreferences)
		api.POST("/notifications/socket-ticket", server.CreateSocketTicket)
		api.PUT("/notifications/:id/read", server.MarkNotificationRead)

		api.POST("/internal/events", middleware.RequirePermission(middleware.PermissionDispatch), server.DispatchEvent)

		admin := api.Group("/admin", middleware.RequirePermission(middleware.PermissionAdmin))
		admin.GET("/log/level", gin.WrapH(logger.LevelHandler()))
		admin.PUT("/log/level", gin.WrapH(logger.LevelHandler()))
	}
	return router
}

// buildCORSConfig derives the CORS policy. A "*" entry only takes effect
// with UnsafeAllowAllOrigins, which also turns credentials off.
func buildCORSConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
		logger.Warn("CORS allows every origin; credentials are disabled")
		return corsCfg
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	corsCfg.AllowOrigins = origins
	return corsCfg
}
