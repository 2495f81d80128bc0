// Package middleware provides HTTP middlewares for session gating and logging.
package middleware

import (
	"context"
	"net/http"

	"github.com/atinyakov/BranchLift/internal/models"
)

type ctxKey string

const accountKey ctxKey = "account"

// SessionSource reports the account of the active session, or nil.
type SessionSource interface {
	Current() *models.Account
}

// RequireSession rejects requests with 401 unless a session is active.
//
// On success the active account is stored in the request context so it can
// be read downstream with AccountFromContext.
func RequireSession(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := sessions.Current()
			if acc == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"login required"}` + "\n"))
				return
			}
			ctx := context.WithValue(r.Context(), accountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext returns the account stored by RequireSession, or nil.
func AccountFromContext(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(accountKey).(*models.Account)
	return acc
}
