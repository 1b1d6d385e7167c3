package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/skpttrack/tracker/internal/apperr"
	"github.com/skpttrack/tracker/internal/auth"
	"github.com/skpttrack/tracker/internal/models"
)

type ctxKey int

const userKey ctxKey = iota

// TokenVerifier turns a bearer credential into a user id.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// AuthMiddleware admits requests carrying a valid bearer token for an
// existing user and stores that user in the request context.
func AuthMiddleware(verifier TokenVerifier, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			userID, err := verifier.Verify(tok)
			if err != nil {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if db == nil {
				writeError(w, r, apperr.ErrStoreUnavailable)
				return
			}
			user, err := models.GetUserByID(r.Context(), db, userID)
			if errors.Is(err, sql.ErrNoRows) {
				jsonError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err != nil {
				writeError(w, r, apperr.Store("load user", err))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// RequireStore answers 503 while the process runs without a database.
func RequireStore(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if db == nil {
				writeError(w, r, apperr.ErrStoreUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser returns the user AuthMiddleware attached to ctx.
func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}
