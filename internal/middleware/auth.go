package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"mrilo/internal/auth"
	"mrilo/internal/httputil"
)

// AuthMiddleware rejects requests without a valid Supabase bearer token and
// puts the user ID and email into the request context.
// A nil verifier rejects every request: authentication is not configured.
func AuthMiddleware(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if verifier == nil {
				httputil.RespondError(w, http.StatusUnauthorized, "authentication is not configured")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			r = httputil.WithUserID(r, claims.GetUserID())
			r = httputil.WithUserEmail(r, claims.Email)
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth attaches the user when a valid token is present and passes
// anonymous requests through unchanged.
func OptionalAuth(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" && verifier != nil {
				if claims, err := verifier.VerifyToken(token); err == nil {
					r = httputil.WithUserID(r, claims.GetUserID())
					r = httputil.WithUserEmail(r, claims.Email)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
