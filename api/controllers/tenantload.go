package controllers

import (
	"net/http"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/internal/policy"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

// LoadTenant rebuilds the caller's cached projection from the store and
// seeds the tenant's default policies. Idempotent; safe to call on login.
func LoadTenant(cache *snapshot.Cache, loader hydrator, policies *policy.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		cache.Evict(tc.ShopID)
		if err := loader.Load(r.Context(), tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if policies != nil {
			if err := policies.EnsureDefaults(r.Context(), tc); err != nil {
				logg.Error(logg.WithShopID(r.Context(), tc.ShopID), "seeding default policies", err)
			}
		}

		responses.WriteSuccess(w, map[string]any{
			"loadedAt":  cache.LoadedAt(tc.ShopID),
			"products":  len(cache.Products(tc.ShopID)),
			"stock":     len(cache.Stock(tc.ShopID)),
			"suppliers": len(cache.Suppliers(tc.ShopID)),
			"sales":     len(cache.Sales(tc.ShopID)),
		})
	}
}
