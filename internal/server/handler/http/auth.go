package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/BranchLift/internal/models"
	"github.com/atinyakov/BranchLift/internal/service"
	"go.uber.org/zap"
)

// Views reported by the session endpoints.
const (
	ViewLogin     = "login"
	ViewDashboard = "dashboard"
)

// SessionService defines the session operations required by AuthHandler.
type SessionService interface {
	Register(ctx context.Context, name, email, password, confirmPassword string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	Logout(ctx context.Context) error
	Current() *models.Account
}

// WorkspaceLoader is the part of the workspace AuthHandler drives on
// session changes.
type WorkspaceLoader interface {
	Load(ctx context.Context) (service.Snapshot, error)
	Reset()
}

// AuthHandler handles signup, login, logout and the session readout.
type AuthHandler struct {
	Sessions  SessionService
	Workspace WorkspaceLoader
	Log       *zap.Logger
}

// SignupRequest is the JSON payload of POST /api/signup.
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest is the JSON payload of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes who is logged in and which view to show.
type SessionResponse struct {
	View      string            `json:"view"`
	User      *models.Account   `json:"user"`
	Workspace *service.Snapshot `json:"workspace,omitempty"`
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// started loads the workspace of a freshly started session and answers with
// the dashboard view.
func (h *AuthHandler) started(w http.ResponseWriter, r *http.Request, status int, acc *models.Account) {
	snap, err := h.Workspace.Load(r.Context())
	if err != nil {
		h.logger().Error("failed to load workspace", zap.Int64("account_id", acc.ID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, status, SessionResponse{View: ViewDashboard, User: acc, Workspace: &snap})
}

// Signup handles POST /api/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := h.Sessions.Register(r.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	h.started(w, r, http.StatusCreated, acc)
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := h.Sessions.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.started(w, r, http.StatusOK, acc)
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context()); err != nil {
		h.logger().Error("failed to clear session", zap.Error(err))
		writeError(w, err)
		return
	}
	h.Workspace.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	acc := h.Sessions.Current()
	if acc == nil {
		writeJSON(w, http.StatusOK, SessionResponse{View: ViewLogin})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{View: ViewDashboard, User: acc})
}

// passwordResponse mirrors service.PasswordStrength plus the combined verdict.
type passwordResponse struct {
	service.PasswordStrength
	Strong bool `json:"strong"`
}

// PasswordStrength handles POST /api/password-strength. The front-end calls
// it as the user types to render per-rule feedback.
func (h *AuthHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	p := service.CheckPassword(req.Password)
	writeJSON(w, http.StatusOK, passwordResponse{PasswordStrength: p, Strong: p.Strong()})
}
