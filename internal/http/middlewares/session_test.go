package middlewares_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/http/middlewares"
	"github.com/shiftdesk/shiftdesk/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSessionStore struct {
	sessions map[string]session.Session
}

func (f *fakeSessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	s, ok := f.sessions[id]

	if !ok {
		return session.Session{}, session.ErrNotFound
	}

	s.ID = id
	return s, nil
}

type fakeRoleLookup struct {
	roleFn func(userID int) (string, error)
}

func (f *fakeRoleLookup) RoleNameForUser(ctx context.Context, userID int) (string, error) {
	if f.roleFn != nil {
		return f.roleFn(userID)
	}
	return "", errors.New("no role")
}

func guardedRouter(store *fakeSessionStore, extra ...gin.HandlerFunc) *gin.Engine {
	m := middlewares.NewSessionMiddleware(store, "sid")

	r := gin.New()

	chain := append([]gin.HandlerFunc{m.RequireSession()}, extra...)
	chain = append(chain, func(c *gin.Context) {
		userID, _ := middlewares.UserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"userId": userID})
	})

	r.GET("/guarded", chain...)

	return r
}

func TestRequireSession(t *testing.T) {
	store := &fakeSessionStore{
		sessions: map[string]session.Session{
			"live-session": {UserID: 7, RoleID: 2},
		},
	}

	tests := []struct {
		name           string
		cookie         *http.Cookie
		wantStatusCode int
	}{
		{
			name:           "no_cookie",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "expired_session",
			cookie:         &http.Cookie{Name: "sid", Value: "gone-session"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "live_session",
			cookie:         &http.Cookie{Name: "sid", Value: "live-session"},
			wantStatusCode: http.StatusOK,
		},
	}

	r := guardedRouter(store)

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)

			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	store := &fakeSessionStore{
		sessions: map[string]session.Session{
			"admin-session": {UserID: 1, RoleID: 1},
			"staff-session": {UserID: 7, RoleID: 2},
		},
	}

	roles := &fakeRoleLookup{
		roleFn: func(userID int) (string, error) {
			if userID == 1 {
				// role names compare case-insensitively
				return "ADMIN", nil
			}
			return "Supervisor", nil
		},
	}

	m := middlewares.NewSessionMiddleware(store, "sid")

	r := gin.New()
	r.GET("/admin-only", m.RequireSession(), m.RequireRole(roles, "Admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name           string
		cookie         *http.Cookie
		wantStatusCode int
	}{
		{
			name:           "admin_allowed_case_insensitive",
			cookie:         &http.Cookie{Name: "sid", Value: "admin-session"},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "non_admin_forbidden",
			cookie:         &http.Cookie{Name: "sid", Value: "staff-session"},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "no_session",
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)

			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

// revoking the role takes effect on the next request, not at next login
func TestRequireRole_FreshLookupPerCall(t *testing.T) {
	store := &fakeSessionStore{
		sessions: map[string]session.Session{
			"admin-session": {UserID: 1, RoleID: 1},
		},
	}

	currentRole := "Admin"

	roles := &fakeRoleLookup{
		roleFn: func(userID int) (string, error) {
			return currentRole, nil
		},
	}

	m := middlewares.NewSessionMiddleware(store, "sid")

	r := gin.New()
	r.GET("/admin-only", m.RequireSession(), m.RequireRole(roles, "Admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "admin-session"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d before revocation", w.Code)
	}

	currentRole = "Supervisor"

	req2 := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req2.AddCookie(&http.Cookie{Name: "sid", Value: "admin-session"})

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusForbidden {
		t.Fatalf("got status %d after revocation, want %d", w2.Code, http.StatusForbidden)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := middlewares.NewRateLimiter(2, time.Minute)

	r := gin.New()
	r.POST("/login", rl.RateLimiterMiddleware(middlewares.KeyByIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected a Retry-After header")
	}
}
