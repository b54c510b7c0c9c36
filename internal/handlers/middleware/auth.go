package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/handlers/render"
	"github.com/sonht113/recipebook/internal/handlers/userctx"
	"github.com/sonht113/recipebook/internal/logger"
	"github.com/sonht113/recipebook/internal/models"
)

type authenticator interface {
	// Verify the Authorization header value and return the principal.
	// Must return apperrors.ErrTokenMissing if no bearer token present and
	// apperrors.ErrTokenInvalid for every verification failure
	Authenticate(ctx context.Context, authorization string) (models.Principal, error)
}

// AuthMiddleware rejects requests without a valid access token and puts the
// principal into the request context for downstream handlers.
// Missing and invalid tokens carry different messages but the same 401 code.
func AuthMiddleware(auth authenticator, l logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				// Full reason (expired vs malformed) goes to logs only
				l.Debug("Request not authenticated", "error", err, "uri", r.RequestURI)

				switch {
				case errors.Is(err, apperrors.ErrTokenMissing):
					render.ServiceError(w, "Unauthorized: no token provided", http.StatusUnauthorized)
				default:
					render.ServiceError(w, "Unauthorized: invalid or expired token", http.StatusUnauthorized)
				}
				return
			}

			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware puts the principal into the context when a valid
// access token is present and passes the request through anonymously
// otherwise. For public routes whose response depends on who is looking,
// like private recipes visible to their author only.
func OptionalAuthMiddleware(auth authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err == nil {
				r = r.WithContext(userctx.New(r.Context(), principal))
			}

			next.ServeHTTP(w, r)
		})
	}
}
