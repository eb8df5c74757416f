package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fernhollow/sprout/internal/auth"
	"github.com/fernhollow/sprout/internal/token"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" for a missing header or malformed scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth validates the bearer session token and populates the caller's
// identity in the request context. Missing, malformed, or failed tokens are
// rejected with 401 without detailing the cause.
func RequireAuth(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.VerifySession(tok)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{
				UserID: claims.UserID(),
				Email:  claims.Email,
				Name:   claims.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth performs the same verification as RequireAuth, but a missing
// or invalid token leaves the request anonymous instead of rejecting it.
// Used by the invite-accept flow, which serves both logged-in and brand-new
// users.
func OptionalAuth(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok != "" {
				if claims, err := tokens.VerifySession(tok); err == nil {
					ctx := auth.WithIdentity(r.Context(), auth.Identity{
						UserID: claims.UserID(),
						Email:  claims.Email,
						Name:   claims.Name,
					})
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": "authentication required",
	})
}
