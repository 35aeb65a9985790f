package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/api/validators"
	"github.com/sparrowretail/shelfline-backend/internal/ledger"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
)

// hydrator loads a tenant's projection on first access.
type hydrator interface {
	Load(ctx context.Context, tc tenant.Context) error
}

func ensureLoaded(ctx context.Context, cache *snapshot.Cache, loader hydrator, tc tenant.Context) error {
	if cache.Loaded(tc.ShopID) {
		return nil
	}
	if loader == nil {
		return pkgerrors.New(pkgerrors.CodeStoreUnavailable, "tenant data not loaded")
	}
	return loader.Load(ctx, tc)
}

type createStockRequest struct {
	InventoryUUID  string           `json:"inventoryUuid" validate:"omitempty,uuid"`
	ProductID      string           `json:"productId" validate:"required"`
	ProductName    string           `json:"productName"`
	BatchID        string           `json:"batchId"`
	SupplierID     string           `json:"supplierId"`
	Quantity       int              `json:"quantity" validate:"required,gt=0"`
	ExpirationDate time.Time        `json:"expirationDate"`
	BuyPrice       decimal.Decimal  `json:"buyPrice"`
	SellPrice      *decimal.Decimal `json:"sellPrice,omitempty"`
	Location       string           `json:"location"`
	ScanMetadata   map[string]any   `json:"scanMetadata,omitempty"`
	Images         []string         `json:"images,omitempty"`
	ShareScope     []string         `json:"shareScope,omitempty"`
}

// CreateStock records a single stock entry for the caller's shop.
func CreateStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		var req createStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.PersistEntry(r.Context(), tc, ledger.CreateStockInput{
			InventoryUUID:  req.InventoryUUID,
			ProductID:      req.ProductID,
			ProductName:    req.ProductName,
			BatchID:        req.BatchID,
			SupplierID:     req.SupplierID,
			Quantity:       req.Quantity,
			ExpirationDate: req.ExpirationDate,
			BuyPrice:       req.BuyPrice,
			SellPrice:      req.SellPrice,
			Location:       req.Location,
			ScanMetadata:   req.ScanMetadata,
			Images:         req.Images,
			ShareScope:     req.ShareScope,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// UpdateStock applies a partial update to one stock entry. Unknown fields
// are rejected by the ledger's whitelist, not here.
func UpdateStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		inventoryUUID := strings.TrimSpace(chi.URLParam(r, "uuid"))
		if inventoryUUID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "inventory uuid required"))
			return
		}

		defer io.Copy(io.Discard, r.Body)
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}
		if len(patch) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "empty patch"))
			return
		}

		item, err := svc.UpdateWithExternalData(r.Context(), tc, inventoryUUID, patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// DeleteStock removes one stock entry from the ledger.
func DeleteStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		inventoryUUID := strings.TrimSpace(chi.URLParam(r, "uuid"))
		if inventoryUUID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "inventory uuid required"))
			return
		}
		productID := strings.TrimSpace(r.URL.Query().Get("productId"))

		if err := svc.DeleteEntry(r.Context(), tc, inventoryUUID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": inventoryUUID})
	}
}

// ListStock returns the cached stock projection, optionally narrowed to
// one product. The first call for a tenant hydrates the projection.
func ListStock(cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if productID := strings.TrimSpace(r.URL.Query().Get("productId")); productID != "" {
			responses.WriteSuccess(w, cache.StockByProduct(tc.ShopID, productID))
			return
		}
		responses.WriteSuccess(w, cache.Stock(tc.ShopID))
	}
}

// GetStock returns one cached stock entry by its inventory uuid.
func GetStock(cache *snapshot.Cache, loader hydrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}

		inventoryUUID := strings.TrimSpace(chi.URLParam(r, "uuid"))
		if inventoryUUID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "inventory uuid required"))
			return
		}

		if err := ensureLoaded(r.Context(), cache, loader, tc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, found := cache.StockItem(tc.ShopID, inventoryUUID)
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found"))
			return
		}
		responses.WriteSuccess(w, item)
	}
}
