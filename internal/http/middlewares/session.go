package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/session"
)

// SessionReader is kept as a small interface so tests can fake it easily.
type SessionReader interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

type SessionMiddleware struct {
	store      SessionReader
	cookieName string
}

func NewSessionMiddleware(store SessionReader, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{store: store, cookieName: cookieName}
}

const (
	ctxUserIDKey    = "auth.userID"
	ctxRoleIDKey    = "auth.roleID"
	ctxSessionIDKey = "auth.sessionID"
)

// RequireSession rejects any request without a live server-side session.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(m.cookieName)

		if err != nil || sid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Please log in",
				},
			})
			return
		}

		lookupCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sess, err := m.store.Get(lookupCtx, sid)

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Session expired, please log in again",
				},
			})
			return
		}

		SetIdentity(c, sess.UserID, sess.RoleID, sess.ID)

		c.Next()
	}
}

// SetIdentity stashes the resolved session identity on the request context.
func SetIdentity(c *gin.Context, userID, roleID int, sessionID string) {
	c.Set(ctxUserIDKey, userID)
	c.Set(ctxRoleIDKey, roleID)
	c.Set(ctxSessionIDKey, sessionID)
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

func SessionIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxSessionIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
