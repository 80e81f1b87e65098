package auth

import (
	"net/http"
	"strings"

	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// callerIDKey is the gin context key holding the authenticated caller id
const callerIDKey = "caller_id"

// JWTAuthMiddleware requires a valid "Authorization: Bearer <jwt>" header and
// stores the caller id on the context
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.JSON(sdk.NewErrorResponse(http.StatusUnauthorized, "Authorization header required", nil).AsGinResponse())
			c.Abort()
			return
		}

		claims, err := ValidateJWT(strings.TrimSpace(token), secret)
		if err != nil {
			c.JSON(sdk.NewErrorResponse(http.StatusUnauthorized, "Invalid bearer token", err.Error()).AsGinResponse())
			c.Abort()
			return
		}

		c.Set(callerIDKey, claims.CallerID())
		c.Next()
	}
}

// CallerID returns the authenticated caller id, or "" when the request was not authenticated
func CallerID(c *gin.Context) string {
	return c.GetString(callerIDKey)
}
