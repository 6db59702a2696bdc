package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/domain/outbox"
	"github.com/shiftdesk/shiftdesk/internal/domain/role"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/http/handlers"
	"github.com/shiftdesk/shiftdesk/internal/repo/postgres"
)

type fakeUserStore struct {
	createFn func(p postgres.CreateUserParams) (user.User, error)
	listFn   func() ([]user.User, error)
	updateFn func(id int, p postgres.UpdateUserParams) (user.User, error)
	deleteFn func(id int) error
}

func (f *fakeUserStore) Create(ctx context.Context, p postgres.CreateUserParams) (user.User, error) {
	if f.createFn != nil {
		return f.createFn(p)
	}
	return user.User{ID: 2, FirstName: p.FirstName, Username: p.Username, Email: p.Email}, nil
}

func (f *fakeUserStore) List(ctx context.Context) ([]user.User, error) {
	if f.listFn != nil {
		return f.listFn()
	}
	return []user.User{}, nil
}

func (f *fakeUserStore) Update(ctx context.Context, id int, p postgres.UpdateUserParams) (user.User, error) {
	if f.updateFn != nil {
		return f.updateFn(id, p)
	}
	return user.User{ID: id, Username: p.Username}, nil
}

func (f *fakeUserStore) Delete(ctx context.Context, id int) error {
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return nil
}

type fakeRoleReader struct {
	getFn func(id int) (role.Role, error)
}

func (f *fakeRoleReader) GetByID(ctx context.Context, id int) (role.Role, error) {
	if f.getFn != nil {
		return f.getFn(id)
	}
	return role.Role{ID: id, RoleName: "Supervisor", Status: role.StatusActive}, nil
}

type fakeOutboxWriter struct {
	created []outbox.CreateRequest
}

func (f *fakeOutboxWriter) Create(ctx context.Context, req outbox.CreateRequest) (outbox.Message, error) {
	f.created = append(f.created, req)
	return outbox.New(req), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

const validUserBody = `{
	"firstName": "Ann",
	"lastName": "Okafor",
	"username": "ann_okafor",
	"email": "ann@example.com",
	"phone": "0712345678",
	"password": "s3cret-pass",
	"role": 2
}`

func TestCreateUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		storeSetup     func(*fakeUserStore)
		roleSetup      func(*fakeRoleReader)
		wantStatusCode int
		wantMailCount  int
	}{
		{
			name:           "success",
			body:           validUserBody,
			wantStatusCode: http.StatusCreated,
			wantMailCount:  1,
		},
		{
			name:           "validation_error",
			body:           `{"firstName": ""}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "username_with_symbols",
			body: `{
				"firstName": "Ann",
				"lastName": "Okafor",
				"username": "ann!ok",
				"email": "ann@example.com",
				"phone": "0712345678",
				"password": "s3cret-pass",
				"role": 2
			}`,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "unknown_role",
			body: validUserBody,
			roleSetup: func(f *fakeRoleReader) {
				f.getFn = func(id int) (role.Role, error) {
					return role.Role{}, role.ErrNotFound
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "duplicate_username_or_email",
			body: validUserBody,
			storeSetup: func(f *fakeUserStore) {
				f.createFn = func(p postgres.CreateUserParams) (user.User, error) {
					return user.User{}, user.ErrDuplicate
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			body: validUserBody,
			storeSetup: func(f *fakeUserStore) {
				f.createFn = func(p postgres.CreateUserParams) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			roles := &fakeRoleReader{}
			ob := &fakeOutboxWriter{}

			if tt.storeSetup != nil {
				tt.storeSetup(store)
			}

			if tt.roleSetup != nil {
				tt.roleSetup(roles)
			}

			h := handlers.NewUsersHandler(store, roles, ob, discardLogger())
			r := setupRouter(http.MethodPost, "/user/create", h.Create)

			req := httptest.NewRequest(http.MethodPost, "/user/create", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if len(ob.created) != tt.wantMailCount {
				t.Fatalf("got %d outbox messages, want %d", len(ob.created), tt.wantMailCount)
			}
		})
	}
}

func TestCreateUserHandler_HashesPassword(t *testing.T) {
	var got postgres.CreateUserParams

	store := &fakeUserStore{
		createFn: func(p postgres.CreateUserParams) (user.User, error) {
			got = p
			return user.User{ID: 2, Username: p.Username}, nil
		},
	}

	h := handlers.NewUsersHandler(store, &fakeRoleReader{}, &fakeOutboxWriter{}, discardLogger())
	r := setupRouter(http.MethodPost, "/user/create", h.Create)

	req := httptest.NewRequest(http.MethodPost, "/user/create", bytes.NewBufferString(validUserBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if got.PasswordHash == "s3cret-pass" || got.PasswordHash == "" {
		t.Fatalf("password was not hashed before storage")
	}

	// the response must never leak the hash
	if bytes.Contains(w.Body.Bytes(), []byte(got.PasswordHash)) {
		t.Fatalf("password hash leaked into the response body")
	}
}

func TestListUsersHandler(t *testing.T) {
	store := &fakeUserStore{
		listFn: func() ([]user.User, error) {
			return []user.User{
				{ID: 1, FirstName: "Root", RoleName: "Admin", StatusLabel: "Active"},
				{ID: 2, FirstName: "Ann", RoleName: "Supervisor", StatusLabel: "Inactive"},
			}, nil
		},
	}

	h := handlers.NewUsersHandler(store, &fakeRoleReader{}, &fakeOutboxWriter{}, discardLogger())
	r := setupRouter(http.MethodGet, "/user/", h.List)

	req := httptest.NewRequest(http.MethodGet, "/user/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Users []struct {
			Status string `json:"status"`
			Role   string `json:"role"`
		} `json:"users"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(resp.Users) != 2 || resp.Users[1].Status != "Inactive" {
		t.Fatalf("expected status labels in the listing, got %s", w.Body.String())
	}
}

func TestUpdateUserHandler_ReservedAdmin(t *testing.T) {
	called := false

	store := &fakeUserStore{
		updateFn: func(id int, p postgres.UpdateUserParams) (user.User, error) {
			called = true
			return user.User{}, nil
		},
	}

	h := handlers.NewUsersHandler(store, &fakeRoleReader{}, &fakeOutboxWriter{}, discardLogger())
	r := setupRouter(http.MethodPut, "/user/:id", h.Update)

	body := `{
		"firstName": "Root",
		"lastName": "Admin",
		"username": "root_admin",
		"email": "root@example.com",
		"phone": "0712345678",
		"role": 1,
		"status": 1
	}`

	req := httptest.NewRequest(http.MethodPut, "/user/1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusForbidden, w.Body.String())
	}

	if called {
		t.Fatalf("store must not be touched for the reserved admin row")
	}
}

func TestDeleteUserHandler(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		storeSetup     func(*fakeUserStore)
		wantStatusCode int
	}{
		{
			name:           "success",
			url:            "/user/4",
			wantStatusCode: http.StatusNoContent,
		},
		{
			name:           "reserved_admin",
			url:            "/user/1",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name: "not_found",
			url:  "/user/999",
			storeSetup: func(f *fakeUserStore) {
				f.deleteFn = func(id int) error {
					return user.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "still_assigned",
			url:  "/user/4",
			storeSetup: func(f *fakeUserStore) {
				f.deleteFn = func(id int) error {
					return user.ErrHasAssignment
				}
			},
			wantStatusCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}

			if tt.storeSetup != nil {
				tt.storeSetup(store)
			}

			h := handlers.NewUsersHandler(store, &fakeRoleReader{}, &fakeOutboxWriter{}, discardLogger())
			r := setupRouter(http.MethodDelete, "/user/:id", h.Delete)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
