package main

import (
	"database/sql"
	"net/http"
	"time"

	"intercom-platform/internal/auth"
	"intercom-platform/internal/httpapi"
	"intercom-platform/internal/rbac"
	"intercom-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal
// modules.
func registerRoutes(r *gin.Engine, authManager *auth.Manager, h httpapi.Handlers, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)

	// Private-call signaling. Clients poll these; keep them cheap.
	pc := r.Group("/private-call")
	pc.Use(auth.RequireAccessToken(authManager))
	{
		pc.POST("/invite", h.SendInvitation)
		pc.GET("/incoming/:userId", h.IncomingCalls)
		pc.POST("/accept/:invitationId", h.AcceptInvitation)
		pc.POST("/reject/:invitationId", h.RejectInvitation)
		pc.POST("/cancel/:invitationId", h.CancelInvitation)
		pc.GET("/status/:invitationId/:userId", h.InvitationStatus)
		pc.POST("/end/:invitationId", h.EndCall)
		pc.GET("/stats/:userId", h.CallStats)

		pc.POST("/cleanup", rbac.RequireAnyRole(rbac.RoleAdmin), h.CleanupInvitations)
	}
}
