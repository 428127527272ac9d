// README: Firebase bearer auth and role gating.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/infra"
)

const (
	ctxUID   = "auth.uid"
	ctxRole  = "auth.role"
	ctxPhone = "auth.phone"
)

// Auth verifies the Authorization bearer token and stashes the caller's
// uid, role, and phone claims on the request context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		fbToken, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, fbToken.UID)
		if role, ok := fbToken.Claims["role"].(string); ok {
			c.Set(ctxRole, role)
		}
		if phone, ok := fbToken.Claims["phone"].(string); ok {
			c.Set(ctxPhone, phone)
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role claim is not in the allowed set.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerRole(c)
		for _, r := range roles {
			if caller == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func CallerPhone(c *gin.Context) string {
	return c.GetString(ctxPhone)
}
