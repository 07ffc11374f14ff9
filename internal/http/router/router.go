package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/priazovimpact/auth-service/internal/http/handler"
	"github.com/priazovimpact/auth-service/internal/http/middleware"
	"github.com/priazovimpact/auth-service/internal/http/response"
)

type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	PasswordHandler *handler.PasswordHandler
	AccessValidator middleware.AccessValidator
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	loginLimiter := middleware.NewRateLimiter("auth", 10, time.Minute)
	resetLimiter := middleware.NewRateLimiter("password", 5, time.Minute)

	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter.Middleware).Post("/login", dep.AuthHandler.Login)
		r.Post("/refresh", dep.AuthHandler.Refresh)
		r.Post("/logout", dep.AuthHandler.Logout)
	})

	r.Route("/password", func(r chi.Router) {
		r.Use(resetLimiter.Middleware)
		r.Post("/forgot-password", dep.PasswordHandler.Forgot)
		r.Post("/reset-password", dep.PasswordHandler.Reset)
	})

	// The profile CRUD layer mounts its own routes behind this
	// middleware; /me is kept as the canonical example of a protected
	// endpoint.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(dep.AccessValidator))
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			identity, ok := middleware.IdentityFromContext(r.Context())
			if !ok {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
				return
			}
			response.JSON(w, r, http.StatusOK, map[string]any{
				"id":    identity.PrincipalID,
				"email": identity.Email,
				"role":  identity.Role,
			})
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
