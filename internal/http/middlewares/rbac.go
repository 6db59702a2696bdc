package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type RoleLookup interface {
	RoleNameForUser(ctx context.Context, userID int) (string, error)
}

// RequireRole gates admin-only endpoints. The role is fetched fresh on every
// call rather than trusted from the session, so revoking a role takes effect
// immediately.
func (m *SessionMiddleware) RequireRole(roles RoleLookup, required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)

		if !ok || userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		lookupCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		roleName, err := roles.RoleNameForUser(lookupCtx, userID)

		if err != nil || !strings.EqualFold(roleName, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": required + " role required",
				},
			})
			return
		}
		c.Next()
	}
}
