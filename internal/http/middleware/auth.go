// README: Bearer token auth middleware backed by an infra.TokenVerifier.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fareway/internal/infra"
	"fareway/internal/types"
)

const callerUIDKey = "caller_uid"

// Auth rejects requests without a verifiable bearer token and stores the
// caller uid on the gin context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerUIDKey, types.ID(token.UID))
		c.Next()
	}
}

// CallerUID returns the uid set by Auth, or "" on unauthenticated routes.
func CallerUID(c *gin.Context) types.ID {
	v, ok := c.Get(callerUIDKey)
	if !ok {
		return ""
	}
	uid, _ := v.(types.ID)
	return uid
}
