// Package http provides the JSON API handlers and router for the task
// manager: login and sessions, account administration, and item and
// project operations.
package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/GTDKeeper/internal/middleware"
	"github.com/atinyakov/GTDKeeper/internal/models"
	"github.com/atinyakov/GTDKeeper/internal/service"
)

// AuthService defines the authentication operations required by the HTTP handlers.
type AuthService interface {
	Login(ctx context.Context, username, password string) (service.LoginResult, error)
	SetPassword(ctx context.Context, username, password string) (service.LoginResult, error)
	Logout(ctx context.Context, token string) error
	IsAdmin(ctx context.Context, username string) (bool, error)

	CreateAccount(ctx context.Context, caller, username string) error
	DeleteAccount(ctx context.Context, caller, username string) error
	ResetPassword(ctx context.Context, caller, username string) error
	ListAccounts(ctx context.Context, caller string) ([]models.AccountSummary, error)
}

// AuthHandler handles login, session and account administration requests.
type AuthHandler struct {
	AuthService AuthService
	Log         *zap.Logger
	// SessionMaxAge is advertised as the cookie Max-Age; zero makes it a
	// browser-session cookie.
	SessionMaxAge time.Duration
	// SecureCookie marks the session cookie Secure, for TLS deployments.
	SecureCookie bool
}

// CredentialsRequest is the body of login and set-password requests.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountRequest names the target of an admin operation.
type AccountRequest struct {
	Username string `json:"username"`
}

// Login handles POST /api/login. On success it sets the session cookie.
// Accounts awaiting a password reset get status NEEDS_SETUP and no cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	if res.NeedsSetup {
		writeResult(w, http.StatusOK, "NEEDS_SETUP", "password setup required", map[string]any{
			"username":           res.Username,
			"needsPasswordSetup": true,
		})
		return
	}
	h.signIn(w, res)
}

// SetPassword handles POST /api/set-password, completing a pending reset.
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.AuthService.SetPassword(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	h.signIn(w, res)
}

// Logout handles POST /api/logout. It always succeeds for the client.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookie); err == nil {
		if err := h.AuthService.Logout(r.Context(), c.Value); err != nil {
			writeError(w, nopIfNil(h.Log), err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.SecureCookie,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Session handles GET /api/session, reporting who the cookie belongs to.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserIDFromContext(r.Context())
	if user == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	isAdmin, err := h.AuthService.IsAdmin(r.Context(), user)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      user,
		"isAdmin":       isAdmin,
	})
}

// ListUsers handles GET /api/admin/users.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetUserIDFromContext(r.Context())
	users, err := h.AuthService.ListAccounts(r.Context(), caller)
	if err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeResult(w, http.StatusOK, "OK", "", map[string]any{"users": users})
}

// CreateUser handles POST /api/admin/create-user.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.AuthService.CreateAccount, http.StatusCreated, "account created")
}

// DeleteUser handles POST /api/admin/delete-user.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.AuthService.DeleteAccount, http.StatusOK, "account deleted")
}

// ResetPassword handles POST /api/admin/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, h.AuthService.ResetPassword, http.StatusOK, "password reset")
}

func (h *AuthHandler) adminAction(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, caller, username string) error,
	code int,
	message string,
) {
	var req AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller := middleware.GetUserIDFromContext(r.Context())
	if err := op(r.Context(), caller, req.Username); err != nil {
		writeError(w, nopIfNil(h.Log), err)
		return
	}
	writeResult(w, code, "OK", message, map[string]any{"username": req.Username})
}

func (h *AuthHandler) signIn(w http.ResponseWriter, res service.LoginResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.SessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.SecureCookie,
	})
	writeResult(w, http.StatusOK, "OK", "", map[string]any{
		"username": res.Username,
		"isAdmin":  res.IsAdmin,
	})
}
