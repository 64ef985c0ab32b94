package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/rbac"
	"ha-sip-bridge/internal/schema"
	"ha-sip-bridge/internal/supervisor"
	"ha-sip-bridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxBodyBytes          = 1 << 20
	headerBootstrapSecret = "X-Bootstrap-Secret"
)

// AddonAdmin is the add-on lifecycle surface exposed to admins.
type AddonAdmin interface {
	AddonInfo(ctx context.Context, slug string) (supervisor.AddonInfo, error)
	RestartAddon(ctx context.Context, slug string) error
}

// HealthCheck reports whether one backend is reachable.
type HealthCheck func(ctx context.Context) error

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: read input, call the host, map errors to status codes.
type Handlers struct {
	Hass            *hass.Hass
	Auth            *auth.Manager
	Addon           AddonAdmin
	AddonSlug       string
	BootstrapSecret string
	Audit           *audit.Service
	EntryID         string
	Health          map[string]HealthCheck
}

// --- Health ---

// Healthz runs every configured backend check. Any failure answers 503 so
// orchestrators stop routing webhooks here.
func (h Handlers) Healthz(c *gin.Context) {
	status := http.StatusOK
	checks := make(gin.H, len(h.Health))
	for name, check := range h.Health {
		if err := check(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "check", name, "err", err)
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}

// --- Webhooks ---

// Webhook delivers the raw body to the handler registered under the id.
// Success is an empty 200.
func (h Handlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.Hass.Webhooks.Handle(c.Request.Context(), c.Param("webhook_id"), body)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, hass.ErrWebhookNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown webhook"})
	default:
		logger.FromGin(c).Warn("webhook rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// --- Services ---

// CallService runs domain.service with the request body as service data.
func (h Handlers) CallService(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	domain, service := c.Param("domain"), c.Param("service")
	err = h.Hass.Services.Call(c.Request.Context(), domain, service, body)

	var se *schema.Error
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, hass.ErrServiceNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown service"})
	case errors.As(err, &se):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": se.Error(), "field": se.Field})
	default:
		logger.FromGin(c).Error("service call failed", "domain", domain, "service", service, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "command delivery failed"})
	}
}

func (h Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": h.Hass.Services.Names()})
}

// --- States ---

func (h Handlers) ListStates(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hass.States.All())
}

func (h Handlers) GetState(c *gin.Context) {
	st, ok := h.Hass.States.Get(c.Param("entity_id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "entity not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// --- Add-on (admin) ---

func (h Handlers) AddonInfo(c *gin.Context) {
	info, err := h.Addon.AddonInfo(c.Request.Context(), h.AddonSlug)
	if err != nil {
		h.supervisorError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h Handlers) RestartAddon(c *gin.Context) {
	if err := h.Addon.RestartAddon(c.Request.Context(), h.AddonSlug); err != nil {
		h.supervisorError(c, err)
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	logger.FromGin(c).Info("add-on restart requested", "addon", h.AddonSlug, "user_id", uid)
	c.JSON(http.StatusOK, gin.H{"status": "restarting"})
}

func (h Handlers) supervisorError(c *gin.Context, err error) {
	logger.FromGin(c).Error("supervisor request failed", "addon", h.AddonSlug, "err", err)
	if errors.Is(err, supervisor.ErrNoToken) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "supervisor not configured"})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "supervisor request failed"})
}

// --- Audit (admin) ---

func (h Handlers) ListAudit(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}
	entryID := c.DefaultQuery("entry_id", h.EntryID)
	events, err := h.Audit.Recent(c.Request.Context(), entryID, limit)
	if err != nil {
		if errors.Is(err, audit.ErrListUnsupported) {
			c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "audit log not readable"})
			return
		}
		logger.FromGin(c).Error("audit list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Auth ---

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// IssueToken mints a token pair for the given identity. It requires the
// bootstrap secret and is disabled when none is configured.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.BootstrapSecret == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "token issuance disabled"})
		return
	}
	got := c.GetHeader(headerBootstrapSecret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.BootstrapSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bootstrap secret"})
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	if !rbac.IsKnown(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken exchanges a refresh token for a new pair with the same
// user and role.
func (h Handlers) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(time.Now(), req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}
