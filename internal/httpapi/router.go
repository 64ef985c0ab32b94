package httpapi

import (
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register wires every route onto r. Keep this free of business logic.
func Register(r *gin.Engine, h Handlers, webhookLimit *IPRateLimiter) {
	r.Use(ClientIP())

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")

	// Add-on callbacks are unauthenticated; the webhook id is the secret.
	hooks := api.Group("/webhook")
	if webhookLimit != nil {
		hooks.Use(webhookLimit.Middleware())
	}
	hooks.POST("/:webhook_id", h.Webhook)

	api.POST("/auth/token", h.IssueToken)
	api.POST("/auth/refresh", h.RefreshToken)

	protected := api.Group("")
	protected.Use(auth.RequireAccessToken(h.Auth))
	{
		protected.GET("/states", h.ListStates)
		protected.GET("/states/:entity_id", h.GetState)
		protected.GET("/services", h.ListServices)

		services := protected.Group("/services")
		services.Use(rbac.RequireAnyRole(rbac.RoleUser))
		services.POST("/:domain/:service", h.CallService)

		addon := protected.Group("/addon")
		addon.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		addon.GET("/info", h.AddonInfo)
		addon.POST("/restart", h.RestartAddon)

		protected.GET("/audit", rbac.RequireAnyRole(rbac.RoleAdmin), h.ListAudit)
	}
}
