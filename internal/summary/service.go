package summary

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

// Service derives product rollups from the cache projection on demand.
// Summaries are never persisted.
type Service interface {
	Summaries(ctx context.Context, tc tenant.Context, opts Options) ([]types.ProductSummary, error)
}

// Options narrows the rollup set.
type Options struct {
	ProductID   string
	SupplierIDs []string
}

type service struct {
	cache *snapshot.Cache
}

func NewService(cache *snapshot.Cache) (Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	return &service{cache: cache}, nil
}

func (s *service) Summaries(ctx context.Context, tc tenant.Context, opts Options) ([]types.ProductSummary, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}

	supplierSet := map[string]struct{}{}
	for _, id := range opts.SupplierIDs {
		supplierSet[id] = struct{}{}
	}

	groups := map[string][]types.StockItem{}
	for _, item := range s.cache.Stock(tc.ShopID) {
		if opts.ProductID != "" && item.ProductID != opts.ProductID {
			continue
		}
		if len(supplierSet) > 0 {
			if _, ok := supplierSet[item.SupplierID]; !ok {
				continue
			}
		}
		groups[item.ProductID] = append(groups[item.ProductID], item)
	}

	registered := map[string]struct{}{}
	for _, supplier := range s.cache.Suppliers(tc.ShopID) {
		registered[supplier.ID] = struct{}{}
	}

	summaries := make([]types.ProductSummary, 0, len(groups))
	for productID, items := range groups {
		rolled := s.rollup(tc.ShopID, productID, items)
		if !suppliedByRegistered(rolled, registered) {
			continue
		}
		summaries = append(summaries, rolled)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].ProductID < summaries[j].ProductID
	})
	return summaries, nil
}

// suppliedByRegistered keeps a summary whose stock came from at least one
// supplier in the tenant's registry. Products with no supplier at all stay;
// stock supplied exclusively by de-registered suppliers is hidden.
func suppliedByRegistered(summary types.ProductSummary, registered map[string]struct{}) bool {
	if len(summary.SupplierIDs) == 0 {
		return true
	}
	for _, id := range summary.SupplierIDs {
		if _, ok := registered[id]; ok {
			return true
		}
	}
	return false
}

// rollup computes quantity-weighted aggregates over the product's active
// items. A missing sell price is imputed from the item's buy price before
// weighting, so sparse pricing never skews the average toward zero.
func (s *service) rollup(shopID, productID string, items []types.StockItem) types.ProductSummary {
	out := types.ProductSummary{ProductID: productID, Name: productID}
	if product, ok := s.cache.Product(shopID, productID); ok && product.Name != "" {
		out.Name = product.Name
	}

	costWeighted := decimal.Zero
	sellWeighted := decimal.Zero
	suppliers := map[string]struct{}{}
	batches := map[string]struct{}{}

	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		out.TotalQuantity += item.Quantity
		costWeighted = costWeighted.Add(item.BuyPrice.Mul(qty))
		sellWeighted = sellWeighted.Add(item.EffectiveSellPrice().Mul(qty))
		if out.EarliestExpiration.IsZero() || item.ExpirationDate.Before(out.EarliestExpiration) {
			out.EarliestExpiration = item.ExpirationDate
		}
		if item.SupplierID != "" {
			suppliers[item.SupplierID] = struct{}{}
		}
		if item.BatchID != "" {
			batches[item.BatchID] = struct{}{}
		}
	}

	if out.TotalQuantity > 0 {
		total := decimal.NewFromInt(int64(out.TotalQuantity))
		out.AverageCostPerUnit = costWeighted.Div(total)
		averageSell := sellWeighted.Div(total)
		out.AverageSellPrice = &averageSell
	}
	for id := range suppliers {
		out.SupplierIDs = append(out.SupplierIDs, id)
	}
	sort.Strings(out.SupplierIDs)
	for id := range batches {
		out.Batches = append(out.Batches, id)
	}
	sort.Strings(out.Batches)
	return out
}
