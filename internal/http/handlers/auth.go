package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/role"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/http/middlewares"
	"github.com/shiftdesk/shiftdesk/internal/security"
)

type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (user.User, error)
	UpdatePasswordHash(ctx context.Context, id int, hash string) error
}

type RoleReader interface {
	GetByID(ctx context.Context, id int) (role.Role, error)
}

type SessionWriter interface {
	Create(ctx context.Context, userID, roleID int) (string, error)
	Destroy(ctx context.Context, id string) error
}

type AuthHandler struct {
	users    CredentialStore
	roles    RoleReader
	sessions SessionWriter
	cfg      config.Config
	log      *slog.Logger
}

func NewAuthHandler(users CredentialStore, roles RoleReader, sessions SessionWriter, cfg config.Config, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		roles:    roles,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByUsername(cctx, req.Username)

	if err != nil {
		// only an unknown username is a credential failure; anything else
		// is a storage problem and must not masquerade as one
		if errors.Is(err, user.ErrNotFound) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
			return
		}

		h.log.Error("login: user lookup failed", "err", err)
		RespondInternal(ctx, "Could not load account")
		return
	}

	if foundUser.Status != user.StatusActive {
		RespondForbidden(ctx, "login_forbidden", "Account is inactive.")
		return
	}

	if foundUser.RoleID == nil {
		RespondForbidden(ctx, "login_forbidden", "Account has no role assigned.")
		return
	}

	assignedRole, err := h.roles.GetByID(cctx, *foundUser.RoleID)

	if err != nil {
		if errors.Is(err, role.ErrNotFound) {
			RespondForbidden(ctx, "login_forbidden", "Account role is inactive.")
			return
		}

		h.log.Error("login: role lookup failed", "roleId", *foundUser.RoleID, "err", err)
		RespondInternal(ctx, "Could not load account")
		return
	}

	if assignedRole.Status != role.StatusActive {
		RespondForbidden(ctx, "login_forbidden", "Account role is inactive.")
		return
	}

	if !h.verifyPassword(cctx, foundUser, req.Password) {
		RespondUnAuthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
		return
	}

	sid, err := h.sessions.Create(cctx, foundUser.ID, *foundUser.RoleID)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setSessionCookie(ctx, sid)

	ctx.JSON(http.StatusOK, gin.H{
		"id":        foundUser.ID,
		"firstName": foundUser.FirstName,
	})
}

// verifyPassword handles both bcrypt rows and plaintext rows imported from the
// legacy system. A legacy credential that checks out is rehashed and persisted
// before we answer. The upgrade is best effort: once the password has verified,
// a failed rehash is logged but must not turn the login into a failure.
func (h *AuthHandler) verifyPassword(ctx context.Context, u user.User, plain string) bool {
	if security.IsBcryptHash(u.PasswordHash) {
		return security.CheckPassword(u.PasswordHash, plain) == nil
	}

	if !security.CheckLegacyPassword(u.PasswordHash, plain) {
		return false
	}

	hash, err := security.HashPassword(plain)

	if err != nil {
		h.log.Error("login: legacy rehash failed", "userId", u.ID, "err", err)
		return true
	}

	if err := h.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		h.log.Error("login: legacy rehash not persisted", "userId", u.ID, "err", err)
	}

	return true
}

// CheckSession runs behind RequireSession, so reaching it means the cookie
// resolved to a live session.
func (h *AuthHandler) CheckSession(ctx *gin.Context) {
	userID, _ := middlewares.UserIDFromContext(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"userId":        userID,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	sid, err := ctx.Cookie(h.cfg.SessionCookieName)

	if err == nil && sid != "" {
		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		// destroy is idempotent; a stale cookie is not an error
		_ = h.sessions.Destroy(cctx, sid)
	}

	h.clearSessionCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, sid string) {
	secure := h.cfg.Env == "prod"

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.cfg.SessionCookieName,
		sid,
		int(h.cfg.SessionTTL().Seconds()),
		"/",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.cfg.SessionCookieName,
		"",
		-1,
		"/",
		"",
		secure,
		true,
	)
}
