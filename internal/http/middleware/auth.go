// README: Bearer-token auth middleware; resolves the caller identity.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridewire/internal/infra"
)

const identityKey = "ridewire.identity"

// Auth rejects requests without a valid bearer token and stores the
// verified identity in the request context. The token format is entirely
// the verifier's concern.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Caller returns the identity stored by Auth. The zero value means the
// route was registered without the middleware, which is a wiring bug.
func Caller(c *gin.Context) infra.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return infra.Identity{}
	}
	id, _ := v.(infra.Identity)
	return id
}
