package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/priazovimpact/auth-service/internal/http/response"
	"github.com/priazovimpact/auth-service/internal/service"
)

type contextKey string

const identityContextKey contextKey = "identity"

// AccessValidator validates a bearer access token, memoizing signature
// checks. Satisfied by *service.AuthService.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, raw string) (*service.TokenValidation, error)
}

func AuthMiddleware(validator AccessValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token")
				return
			}
			raw := strings.TrimSpace(auth[7:])
			identity, err := validator.ValidateAccess(r.Context(), raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (*service.TokenValidation, bool) {
	v, ok := ctx.Value(identityContextKey).(*service.TokenValidation)
	return v, ok
}
