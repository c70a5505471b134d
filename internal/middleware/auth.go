package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayush/skillswap/internal/auth"
	"github.com/ayush/skillswap/internal/httpx"
	"github.com/ayush/skillswap/internal/models"
)

// SessionLookup resolves a session cookie to a user id ("" when unknown).
type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (models.UserID, error)
}

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (models.UserID, error)
}

// RequireAuth accepts, in order, an "Authorization: Bearer" token, a
// "token" query parameter (browsers cannot set headers on WebSocket
// upgrades) or the session cookie, and injects the user id into the request
// context.
func RequireAuth(sessions SessionLookup, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, msg := authenticate(r, sessions, tokens)
			if userID == "" {
				httpx.WriteErr(w, http.StatusUnauthorized, httpx.CodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth injects the user id when the request carries valid
// credentials and passes anonymous requests through unchanged.
func OptionalAuth(sessions SessionLookup, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, _ := authenticate(r, sessions, tokens); userID != "" {
				r = r.WithContext(auth.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate returns the caller's id, or "" and the reason it failed.
func authenticate(r *http.Request, sessions SessionLookup, tokens TokenValidator) (models.UserID, string) {
	if tok := bearerToken(r); tok != "" {
		userID, err := tokens.Validate(tok)
		if err != nil {
			return "", "invalid token"
		}
		return userID, ""
	}

	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil {
		return "", "not authenticated"
	}
	userID, err := sessions.Get(r.Context(), cookie.Value)
	if err != nil || userID == "" {
		return "", "session expired"
	}
	return userID, ""
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
