package controllers

import (
	"net/http"
	"strings"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/summary"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

// ListSummaries returns per-product rollups over the cached projection.
// Supports ?productId= and ?supplierIds=a,b,c narrowing.
func ListSummaries(svc summary.Service, cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		opts := summary.Options{
			ProductID:   strings.TrimSpace(r.URL.Query().Get("productId")),
			SupplierIDs: splitCSV(r.URL.Query().Get("supplierIds")),
		}

		summaries, err := svc.Summaries(r.Context(), tc, opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summaries)
	}
}
