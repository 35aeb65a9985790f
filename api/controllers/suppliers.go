package controllers

import (
	"net/http"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/api/validators"
	"github.com/sparrowretail/shelfline-backend/internal/ledger"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

type registerSupplierRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

// RegisterSupplier records a supplier for the caller's shop.
func RegisterSupplier(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		var req registerSupplierRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		supplier, err := svc.RegisterSupplier(r.Context(), tc, req.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, supplier)
	}
}

// ListSuppliers returns the cached supplier roster.
func ListSuppliers(cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cache.Suppliers(tc.ShopID))
	}
}
