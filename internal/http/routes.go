package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/verimail/internal/rate"
)

// NewRouter mounts the API behind the standard middleware chain:
// recover, request id, security headers, CORS, rate limit, metrics, log.
func NewRouter(a *API, limiter rate.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", MetricsHandler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/verify-email/start", a.handleVerifyStart)
		r.Get("/verify-email", a.handleVerifyConfirm)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(a.Issuer))
			r.Get("/me", a.handleMe)
		})
	})

	var h http.Handler = r
	h = WithMetrics(h)
	h = WithRateLimit(h, limiter)
	h = WithLogging(h)
	h = WithCORS(h, a.Cfg.Server.CORSAllowedOrigins)
	h = WithSecurityHeaders(h)
	h = WithRequestID(h)
	h = WithRecover(h)
	return h
}
