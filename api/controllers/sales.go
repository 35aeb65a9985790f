package controllers

import (
	"net/http"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/api/validators"
	"github.com/sparrowretail/shelfline-backend/internal/fulfillment"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

type cartLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type recordSaleRequest struct {
	Items []cartLineRequest `json:"items" validate:"required,min=1,dive"`
}

// RecordSale runs the cart through fulfillment. A partial fill is a
// success response; the caller reads fulfilled and shortfall counts.
func RecordSale(engine fulfillment.Engine, cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		var req recordSaleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart := make([]fulfillment.CartLine, 0, len(req.Items))
		for _, line := range req.Items {
			cart = append(cart, fulfillment.CartLine{ProductID: line.ProductID, Quantity: line.Quantity})
		}

		result, err := engine.RecordSale(r.Context(), tc, cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListSales returns the cached sale history for the caller's shop.
func ListSales(cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cache.Sales(tc.ShopID))
	}
}
