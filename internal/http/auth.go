package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/verimail/internal/security/token"
)

type claimsKey struct{}

// ClaimsFrom returns the access token claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(token.Claims)
	return c, ok
}

// RequireAuth validates the Bearer token and stores its claims in the
// request context. Missing or invalid tokens get a 401 with a
// WWW-Authenticate challenge.
func RequireAuth(iss *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := iss.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
