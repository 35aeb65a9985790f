package controllers

import (
	"net/http"
	"strings"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

// requireTenant pulls the tenant seeded by the auth middleware. A missing
// tenant means the route was mounted outside the auth chain; treat it as
// an authorization failure, not a server bug the caller can retry.
func requireTenant(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (tenant.Context, bool) {
	tc, ok := tenant.FromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing"))
		return tenant.Context{}, false
	}
	return tc, true
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
