// internal/middleware/service_token_middleware.go
package middleware

import (
	"crypto/subtle"
	"net/http"

	"fitbridge-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// ServiceToken guards internal endpoints (pending-session create) that only
// the OAuth callback path may call.
func ServiceToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Service-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Error(c, http.StatusForbidden, "service token required", nil)
			return
		}
		c.Next()
	}
}
