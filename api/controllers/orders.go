package controllers

import (
	"net/http"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/api/validators"
	"github.com/sparrowretail/shelfline-backend/internal/fulfillment"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

type deductRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// DeductForOrder depletes a single product for an external order without
// recording a shop sale.
func DeductForOrder(engine fulfillment.Engine, cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		var req deductRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.DeductForOrder(r.Context(), tc, req.ProductID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
