// internal/handlers/handoff/handoff_handler.go
package handoff

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	handoffDomain "fitbridge-service/internal/domain/handoff"
	"fitbridge-service/internal/pkg/response"
	"fitbridge-service/internal/pkg/session"
	authUsecase "fitbridge-service/internal/service/auth"
	handoffUsecase "fitbridge-service/internal/service/handoff"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HandoffHandler struct {
	handoffService *handoffUsecase.Service
	authService    *authUsecase.AuthService
	rateLimiter    *session.RateLimiter
	deepLinkScheme string
	logger         *zap.Logger
}

func NewHandoffHandler(
	handoffService *handoffUsecase.Service,
	authService *authUsecase.AuthService,
	rateLimiter *session.RateLimiter,
	deepLinkScheme string,
	logger *zap.Logger,
) *HandoffHandler {
	return &HandoffHandler{
		handoffService: handoffService,
		authService:    authService,
		rateLimiter:    rateLimiter,
		deepLinkScheme: deepLinkScheme,
		logger:         logger,
	}
}

// ========== OAuth callback ==========

// Callback finishes the browser-side leg: verify the IdP token, ensure the
// identity, stage a pending session, and bounce the browser into the app
// via the deep link. The app may never see that link land (backgrounded,
// relaunched); the pending record is what makes the handoff survivable.
func (h *HandoffHandler) Callback(c *gin.Context) {
	provider := c.Param("provider")
	idToken := c.Query("id_token")
	deviceID := c.Query("device_id")

	if idToken == "" || deviceID == "" {
		response.ValidationError(c, "id_token and device_id are required", nil)
		return
	}

	if err := h.authService.CheckLoginAllowed(c.Request.Context(), c.ClientIP(), deviceID); err != nil {
		response.Error(c, http.StatusTooManyRequests, "too many sign-in attempts", err)
		return
	}

	principal, err := h.authService.VerifyProviderToken(c.Request.Context(), provider, idToken)
	if err != nil {
		h.logger.Error("provider token verification failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		response.Error(c, http.StatusUnauthorized, "sign-in failed", err)
		return
	}

	identity, err := h.authService.EnsureIdentity(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "sign-in failed", err)
		return
	}

	ps, err := h.handoffService.Create(c.Request.Context(), deviceID, identity.ID, provider)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "sign-in failed", err)
		return
	}

	// user_id in the link is diagnostic only; the server is the source of
	// truth when the handle is consumed.
	link := fmt.Sprintf("%s://auth/callback?session_handle=%s&user_id=%d",
		h.deepLinkScheme, url.QueryEscape(ps.SessionHandle), identity.ID)
	c.Redirect(http.StatusFound, link)
}

// ========== Pending session endpoints ==========

// CreatePending stages a pending session. Internal endpoint, service-token
// guarded; exists so out-of-process callback handlers can stage records too.
func (h *HandoffHandler) CreatePending(c *gin.Context) {
	var req handoffDomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	ps, err := h.handoffService.Create(c.Request.Context(), req.DeviceID, req.IdentityID, req.Provider)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to create pending session", err)
		return
	}

	response.Success(c, http.StatusCreated, "pending session created", handoffDomain.CreateResponse{
		SessionHandle: ps.SessionHandle,
		ExpiresAt:     ps.ExpiresAt,
	})
}

// LookupPending answers the reconciliation poller. "Nothing pending" is a
// normal 200 with found:false.
func (h *HandoffHandler) LookupPending(c *gin.Context) {
	var req handoffDomain.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	// A well-behaved poller issues a handful of lookups per foreground
	// event; anything past this budget is a runaway client.
	allowed, err := h.rateLimiter.CheckAPIRateLimit(c.Request.Context(), req.DeviceID, "pending_lookup", 60, time.Minute)
	if err == nil && !allowed {
		response.Error(c, http.StatusTooManyRequests, "too many lookup requests", nil)
		return
	}

	resp, err := h.handoffService.Lookup(c.Request.Context(), req.DeviceID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "lookup failed", err)
		return
	}

	response.Success(c, http.StatusOK, "lookup complete", resp)
}

// ConsumePending materializes a pending session. Every terminal state is a
// 200 with a status discriminator; the client decides what each means.
func (h *HandoffHandler) ConsumePending(c *gin.Context) {
	var req handoffDomain.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	resp, err := h.handoffService.Materialize(
		c.Request.Context(),
		req.SessionHandle,
		c.ClientIP(),
		c.GetHeader("User-Agent"),
	)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "consume failed", err)
		return
	}

	response.Success(c, http.StatusOK, "consume complete", resp)
}
