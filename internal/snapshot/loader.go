package snapshot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

type storeScroller interface {
	Available() bool
	EnsureReady(ctx context.Context, collection string) bool
	ScrollAll(ctx context.Context, collection string, filter *vectorstore.Filter) ([]vectorstore.Point, error)
}

// Loader hydrates a tenant projection from the remote store. The five
// collections are drained in parallel; a failure on any one of them fails
// the load so a half-hydrated tenant never looks loaded.
type Loader struct {
	store storeScroller
	cache *Cache
	logg  *logger.Logger
}

func NewLoader(store storeScroller, cache *Cache, logg *logger.Logger) (*Loader, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Loader{store: store, cache: cache, logg: logg}, nil
}

// Load drains the tenant's collections and installs the projection. With no
// store configured the tenant is installed empty, which keeps every read
// path working in degraded mode.
func (l *Loader) Load(ctx context.Context, tc tenant.Context) error {
	if !tc.Valid() {
		return fmt.Errorf("tenant context required")
	}
	ctx = l.logg.WithShopID(ctx, tc.ShopID)

	if l.store == nil || !l.store.Available() {
		l.logg.Warn(ctx, "no store configured, installing empty projection")
		l.cache.Replace(tc.ShopID, LoadResult{})
		return nil
	}

	var (
		mu     sync.Mutex
		result LoadResult
		soft   error
	)
	collect := func(err error) {
		mu.Lock()
		soft = multierr.Append(soft, err)
		mu.Unlock()
	}

	filter := vectorstore.TenantFilter(tc.ShopID)
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		points, err := l.drain(gctx, vectorstore.CollectionProducts, filter)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		for _, point := range points {
			var product types.Product
			if err := point.DecodePayload(&product); err != nil {
				collect(fmt.Errorf("decode product %s: %w", point.ID, err))
				continue
			}
			if product.ID == "" {
				product.ID = point.ID
			}
			mu.Lock()
			result.Products = append(result.Products, product)
			mu.Unlock()
		}
		return nil
	})

	group.Go(func() error {
		points, err := l.drain(gctx, vectorstore.CollectionBatches, filter)
		if err != nil {
			return fmt.Errorf("load batches: %w", err)
		}
		for _, point := range points {
			var batch types.BatchRecord
			if err := point.DecodePayload(&batch); err != nil {
				collect(fmt.Errorf("decode batch %s: %w", point.ID, err))
				continue
			}
			if batch.ID == "" {
				batch.ID = point.ID
			}
			mu.Lock()
			result.Batches = append(result.Batches, batch)
			mu.Unlock()
		}
		return nil
	})

	group.Go(func() error {
		points, err := l.drain(gctx, vectorstore.CollectionItems, filter)
		if err != nil {
			return fmt.Errorf("load stock: %w", err)
		}
		for _, point := range points {
			var item types.StockItem
			if err := point.DecodePayload(&item); err != nil {
				collect(fmt.Errorf("decode stock item %s: %w", point.ID, err))
				continue
			}
			if item.InventoryUUID == "" {
				item.InventoryUUID = point.ID
			}
			mu.Lock()
			result.Stock = append(result.Stock, item)
			mu.Unlock()
		}
		return nil
	})

	group.Go(func() error {
		points, err := l.drain(gctx, vectorstore.CollectionSuppliers, filter)
		if err != nil {
			return fmt.Errorf("load suppliers: %w", err)
		}
		for _, point := range points {
			var supplier types.Supplier
			if err := point.DecodePayload(&supplier); err != nil {
				collect(fmt.Errorf("decode supplier %s: %w", point.ID, err))
				continue
			}
			if supplier.ID == "" {
				supplier.ID = point.ID
			}
			mu.Lock()
			result.Suppliers = append(result.Suppliers, supplier)
			mu.Unlock()
		}
		return nil
	})

	group.Go(func() error {
		points, err := l.drain(gctx, vectorstore.CollectionSales, filter)
		if err != nil {
			return fmt.Errorf("load sales: %w", err)
		}
		for _, point := range points {
			var sale types.SaleTransaction
			if err := point.DecodePayload(&sale); err != nil {
				collect(fmt.Errorf("decode sale %s: %w", point.ID, err))
				continue
			}
			if sale.ID == "" {
				sale.ID = point.ID
			}
			mu.Lock()
			result.Sales = append(result.Sales, sale)
			mu.Unlock()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	if soft != nil {
		// Corrupt payloads are logged and skipped; the rest of the
		// projection is still usable.
		l.logg.Warn(l.logg.WithField(ctx, "error", soft.Error()), "projection loaded with decode errors")
	}

	l.cache.Replace(tc.ShopID, result)
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"products":  len(result.Products),
		"batches":   len(result.Batches),
		"stock":     len(result.Stock),
		"suppliers": len(result.Suppliers),
		"sales":     len(result.Sales),
	}), "tenant projection loaded")
	return nil
}

// drain treats an unready collection as empty so one missing collection
// degrades the projection instead of failing the whole hydration.
func (l *Loader) drain(ctx context.Context, collection string, filter *vectorstore.Filter) ([]vectorstore.Point, error) {
	if !l.store.EnsureReady(ctx, collection) {
		l.logg.Warn(l.logg.WithCollection(ctx, collection), "collection not ready, loading as empty")
		return nil, nil
	}
	return l.store.ScrollAll(ctx, collection, filter)
}
