package middleware

import (
	"net/http"
	"strings"

	"auctionhouse/internal/services/auth"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireAuth validates the bearer token and injects the caller's user ID
// into the request context.
func RequireAuth(tokens *auth.Service) gin.HandlerFunc {
	return func(ginCtx *gin.Context) {
		tokenStr, ok := strings.CutPrefix(ginCtx.GetHeader("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			ginCtx.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "authorization required"})
			return
		}
		claims, err := tokens.VerifyToken(tokenStr)
		if err != nil {
			ginCtx.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "token is not valid"})
			return
		}
		ginCtx.Set(userIDKey, claims.Subject)
		ginCtx.Next()
	}
}

// UserID returns the authenticated caller's ID, empty when unauthenticated.
func UserID(ginCtx *gin.Context) string { return ginCtx.GetString(userIDKey) }
