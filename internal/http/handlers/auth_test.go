package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/role"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/http/handlers"
	"github.com/shiftdesk/shiftdesk/internal/security"
)

type fakeCredentialStore struct {
	getFn      func(username string) (user.User, error)
	rehashFn   func(id int, hash string) error
	rehashedTo string
}

func (f *fakeCredentialStore) GetByUsername(ctx context.Context, username string) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(username)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeCredentialStore) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	f.rehashedTo = hash

	if f.rehashFn != nil {
		return f.rehashFn(id, hash)
	}
	return nil
}

type fakeSessionWriter struct {
	createdFor int
	destroyed  []string
	createFn   func(userID, roleID int) (string, error)
}

func (f *fakeSessionWriter) Create(ctx context.Context, userID, roleID int) (string, error) {
	f.createdFor = userID

	if f.createFn != nil {
		return f.createFn(userID, roleID)
	}
	return "session-id-1", nil
}

func (f *fakeSessionWriter) Destroy(ctx context.Context, id string) error {
	f.destroyed = append(f.destroyed, id)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Env:               "dev",
		SessionCookieName: "sid",
		SessionTTLMinutes: 60,
	}
}

func activeUser(t *testing.T, password string) user.User {
	t.Helper()

	hash, err := security.HashPassword(password)

	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	roleID := 2

	return user.User{
		ID:           7,
		FirstName:    "Ann",
		Username:     "ann_okafor",
		PasswordHash: hash,
		RoleID:       &roleID,
		Status:       user.StatusActive,
	}
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		userSetup      func(t *testing.T, f *fakeCredentialStore)
		roleSetup      func(f *fakeRoleReader)
		wantStatusCode int
		wantCookie     bool
	}{
		{
			name: "success",
			body: `{"username": "ann_okafor", "password": "s3cret-pass"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				u := activeUser(t, "s3cret-pass")
				f.getFn = func(username string) (user.User, error) {
					return u, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCookie:     true,
		},
		{
			name:           "unknown_username",
			body:           `{"username": "ghost", "password": "whatever1"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "wrong_password",
			body: `{"username": "ann_okafor", "password": "not-the-one"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				u := activeUser(t, "s3cret-pass")
				f.getFn = func(username string) (user.User, error) {
					return u, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "inactive_user",
			body: `{"username": "ann_okafor", "password": "s3cret-pass"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				u := activeUser(t, "s3cret-pass")
				u.Status = user.StatusInactive
				f.getFn = func(username string) (user.User, error) {
					return u, nil
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name: "no_role_assigned",
			body: `{"username": "ann_okafor", "password": "s3cret-pass"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				u := activeUser(t, "s3cret-pass")
				u.RoleID = nil
				f.getFn = func(username string) (user.User, error) {
					return u, nil
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name: "inactive_role",
			body: `{"username": "ann_okafor", "password": "s3cret-pass"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				u := activeUser(t, "s3cret-pass")
				f.getFn = func(username string) (user.User, error) {
					return u, nil
				}
			},
			roleSetup: func(f *fakeRoleReader) {
				f.getFn = func(id int) (role.Role, error) {
					return role.Role{ID: id, Status: role.StatusInactive}, nil
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "validation_error",
			body:           `{"username": ""}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// a storage outage is not a credential failure
			name: "user_lookup_outage",
			body: `{"username": "ann_okafor", "password": "s3cret-pass"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				f.getFn = func(username string) (user.User, error) {
					return user.User{}, errors.New("connection refused")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
		{
			name: "role_lookup_outage",
			body: `{"username": "ann_okafor", "password": "s3cret-pass"}`,
			userSetup: func(t *testing.T, f *fakeCredentialStore) {
				u := activeUser(t, "s3cret-pass")
				f.getFn = func(username string) (user.User, error) {
					return u, nil
				}
			},
			roleSetup: func(f *fakeRoleReader) {
				f.getFn = func(id int) (role.Role, error) {
					return role.Role{}, errors.New("connection refused")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			users := &fakeCredentialStore{}
			roles := &fakeRoleReader{}
			sessions := &fakeSessionWriter{}

			if tt.userSetup != nil {
				tt.userSetup(t, users)
			}

			if tt.roleSetup != nil {
				tt.roleSetup(roles)
			}

			h := handlers.NewAuthHandler(users, roles, sessions, testConfig(), discardLogger())
			r := setupRouter(http.MethodPost, "/user/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/user/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			setCookie := w.Header().Get("Set-Cookie")

			if tt.wantCookie && !strings.Contains(setCookie, "sid=") {
				t.Fatalf("expected a session cookie, got %q", setCookie)
			}

			if !tt.wantCookie && strings.Contains(setCookie, "sid=") {
				t.Fatalf("no cookie expected on failure, got %q", setCookie)
			}
		})
	}
}

func TestLoginHandler_LegacyPlaintextUpgrade(t *testing.T) {
	roleID := 2

	legacy := user.User{
		ID:           7,
		FirstName:    "Ann",
		Username:     "ann_okafor",
		PasswordHash: "oldpass123", // imported row, never hashed
		RoleID:       &roleID,
		Status:       user.StatusActive,
	}

	users := &fakeCredentialStore{
		getFn: func(username string) (user.User, error) {
			return legacy, nil
		},
	}

	sessions := &fakeSessionWriter{}

	h := handlers.NewAuthHandler(users, &fakeRoleReader{}, sessions, testConfig(), discardLogger())
	r := setupRouter(http.MethodPost, "/user/login", h.Login)

	req := httptest.NewRequest(http.MethodPost, "/user/login",
		bytes.NewBufferString(`{"username": "ann_okafor", "password": "oldpass123"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if users.rehashedTo == "" {
		t.Fatalf("expected the plaintext credential to be rehashed")
	}

	if !security.IsBcryptHash(users.rehashedTo) {
		t.Fatalf("persisted credential is still not a bcrypt hash: %q", users.rehashedTo)
	}

	if err := security.CheckPassword(users.rehashedTo, "oldpass123"); err != nil {
		t.Fatalf("rehashed credential does not verify: %v", err)
	}

	if sessions.createdFor != legacy.ID {
		t.Fatalf("expected a session for user %d, got %d", legacy.ID, sessions.createdFor)
	}
}

func TestLoginHandler_LegacyRehashPersistFailure(t *testing.T) {
	roleID := 2

	legacy := user.User{
		ID:           7,
		FirstName:    "Ann",
		Username:     "ann_okafor",
		PasswordHash: "oldpass123",
		RoleID:       &roleID,
		Status:       user.StatusActive,
	}

	users := &fakeCredentialStore{
		getFn: func(username string) (user.User, error) {
			return legacy, nil
		},
		rehashFn: func(id int, hash string) error {
			return errors.New("connection refused")
		},
	}

	sessions := &fakeSessionWriter{}

	h := handlers.NewAuthHandler(users, &fakeRoleReader{}, sessions, testConfig(), discardLogger())
	r := setupRouter(http.MethodPost, "/user/login", h.Login)

	req := httptest.NewRequest(http.MethodPost, "/user/login",
		bytes.NewBufferString(`{"username": "ann_okafor", "password": "oldpass123"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// the password verified, so a failed credential upgrade must not
	// lock the user out
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if sessions.createdFor != legacy.ID {
		t.Fatalf("expected a session for user %d, got %d", legacy.ID, sessions.createdFor)
	}
}

func TestLoginHandler_LegacyWrongPassword(t *testing.T) {
	roleID := 2

	legacy := user.User{
		ID:           7,
		Username:     "ann_okafor",
		PasswordHash: "oldpass123",
		RoleID:       &roleID,
		Status:       user.StatusActive,
	}

	users := &fakeCredentialStore{
		getFn: func(username string) (user.User, error) {
			return legacy, nil
		},
	}

	h := handlers.NewAuthHandler(users, &fakeRoleReader{}, &fakeSessionWriter{}, testConfig(), discardLogger())
	r := setupRouter(http.MethodPost, "/user/login", h.Login)

	req := httptest.NewRequest(http.MethodPost, "/user/login",
		bytes.NewBufferString(`{"username": "ann_okafor", "password": "wrongpass"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}

	if users.rehashedTo != "" {
		t.Fatalf("a failed legacy login must not rewrite the credential")
	}
}

func TestLogoutHandler(t *testing.T) {
	sessions := &fakeSessionWriter{}

	h := handlers.NewAuthHandler(&fakeCredentialStore{}, &fakeRoleReader{}, sessions, testConfig(), discardLogger())
	r := setupRouter(http.MethodPost, "/logout", h.Logout)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "session-id-1"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNoContent)
	}

	if len(sessions.destroyed) != 1 || sessions.destroyed[0] != "session-id-1" {
		t.Fatalf("expected session-id-1 to be destroyed, got %v", sessions.destroyed)
	}

	setCookie := w.Header().Get("Set-Cookie")

	if !strings.Contains(setCookie, "sid=") || !strings.Contains(setCookie, "Max-Age=0") {
		t.Fatalf("expected the cookie to be cleared, got %q", setCookie)
	}

	// logging out without a cookie is still a quiet no-op
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/logout", nil))

	if w2.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want %d for cookieless logout", w2.Code, http.StatusNoContent)
	}
}
