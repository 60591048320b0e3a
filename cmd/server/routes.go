package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"notify-hub.backend/internal/interfaces/http/handlers"
	"notify-hub.backend/internal/interfaces/http/middleware"
)

type routeDeps struct {
	notificationHandler *handlers.NotificationHandler
	tokenHandler        *handlers.TokenHandler
	templateHandler     *handlers.TemplateHandler
	suppressionHandler  *handlers.SuppressionHandler
	adminHandler        *handlers.AdminHandler
	authMiddleware      gin.HandlerFunc
	ping                func(context.Context) error
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	registerHealthRoute(r, d.ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	registerAPIV1Routes(r, d)
	return r
}

func registerHealthRoute(r *gin.Engine, ping func(context.Context) error) {
	r.GET("/health", func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		// Token validation (public; the secret is the credential)
		v1.POST("/tokens/validate", d.tokenHandler.Validate)

		// Service routes (collaborating backends)
		service := v1.Group("")
		service.Use(d.authMiddleware, middleware.RequireService())
		{
			service.POST("/notifications", d.notificationHandler.Notify)
			service.POST("/tokens", d.tokenHandler.Issue)
		}

		// Admin routes (protected)
		admin := v1.Group("")
		admin.Use(d.authMiddleware, middleware.RequireAdmin())
		{
			admin.POST("/tokens/:id/revoke", d.tokenHandler.Revoke)

			admin.GET("/admin/templates/:name", d.templateHandler.GetTemplate)
			admin.PUT("/admin/templates/:name", d.templateHandler.PutTemplate)

			admin.POST("/admin/suppressions", d.suppressionHandler.AddSuppression)
			admin.DELETE("/admin/suppressions", d.suppressionHandler.RemoveSuppression)

			admin.GET("/admin/notifications", d.adminHandler.ListNotifications)
			admin.POST("/admin/notifications/sweep", d.adminHandler.RunSweep)
			admin.GET("/admin/notifications/:id", d.adminHandler.GetNotification)
			admin.POST("/admin/notifications/:id/requeue", d.adminHandler.RequeueNotification)
		}
	}
}
