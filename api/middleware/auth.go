package middleware

import (
	"net/http"
	"strings"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	pkgAuth "github.com/sparrowretail/shelfline-backend/pkg/auth"
	"github.com/sparrowretail/shelfline-backend/pkg/config"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the
// tenant identity from the claims. Every route below this middleware can
// assume tenant.FromContext succeeds.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			tc, err := tenant.New(claims.ShopID, claims.ShopName)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid tenant claims"))
				return
			}

			ctx := tenant.Attach(r.Context(), tc)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"shop_id":    tc.ShopID,
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
