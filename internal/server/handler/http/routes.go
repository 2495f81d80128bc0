// Package http provides HTTP routing and middleware configuration
// for the BranchLift service.
package http

import (
	"net/http"

	"github.com/atinyakov/BranchLift/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves
// the BranchLift API under /api.
//
// Routes:
//
//	POST   /api/signup              → authHandler.Signup
//	POST   /api/login               → authHandler.Login
//	POST   /api/logout              → authHandler.Logout
//	GET    /api/session             → authHandler.Session
//	POST   /api/password-strength   → authHandler.PasswordStrength
//	GET    /api/repositories        → workspaceHandler.Repositories      (session required)
//	POST   /api/repositories        → workspaceHandler.AddRepository     (session required)
//	GET    /api/branches            → workspaceHandler.Branches          (session required)
//	GET    /api/environments        → workspaceHandler.Environments      (session required)
//	POST   /api/environments        → workspaceHandler.CreateEnvironment (session required)
//	DELETE /api/environments/{id}   → workspaceHandler.RemoveEnvironment (session required)
//
// Middleware chain (applied in order):
//  1. Recoverer : turns panics into 500s
//  2. AllowContentType("application/json") : rejects non-JSON bodies
//  3. WithRequestLogging(logger) : request id + access log
func NewRouter(
	authHandler *AuthHandler,
	workspaceHandler *WorkspaceHandler,
	sessions middleware.SessionSource,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		r.Post("/password-strength", authHandler.PasswordStrength)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(sessions))

			r.Get("/repositories", workspaceHandler.Repositories)
			r.Post("/repositories", workspaceHandler.AddRepository)
			r.Get("/branches", workspaceHandler.Branches)
			r.Get("/environments", workspaceHandler.Environments)
			r.Post("/environments", workspaceHandler.CreateEnvironment)
			r.Delete("/environments/{id}", workspaceHandler.RemoveEnvironment)
		})
	})

	return r
}
