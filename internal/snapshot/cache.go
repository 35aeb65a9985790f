package snapshot

import (
	"sort"
	"sync"
	"time"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

// Cache is the in-process read projection of the remote store, keyed by
// tenant. It is an optimization only: writes go to the remote store first
// and land here after the store acknowledges them.
type Cache struct {
	mu    sync.RWMutex
	shops map[string]*tenantSnapshot
}

type tenantSnapshot struct {
	products  map[string]types.Product
	batches   map[string]types.BatchRecord
	stock     map[string]types.StockItem
	suppliers map[string]types.Supplier
	sales     map[string]types.SaleTransaction
	loadedAt  time.Time
}

func newTenantSnapshot() *tenantSnapshot {
	return &tenantSnapshot{
		products:  map[string]types.Product{},
		batches:   map[string]types.BatchRecord{},
		stock:     map[string]types.StockItem{},
		suppliers: map[string]types.Supplier{},
		sales:     map[string]types.SaleTransaction{},
	}
}

func NewCache() *Cache {
	return &Cache{shops: map[string]*tenantSnapshot{}}
}

// admissible enforces the cache invariant: only the tenant's own ACTIVE,
// positive-quantity items are ever projected.
func admissible(shopID string, item types.StockItem) bool {
	return item.ShopID == shopID && item.Quantity > 0 && item.Status == enums.StockStatusActive
}

func (c *Cache) snapshotFor(shopID string) *tenantSnapshot {
	snap, ok := c.shops[shopID]
	if !ok {
		snap = newTenantSnapshot()
		c.shops[shopID] = snap
	}
	return snap
}

// Replace installs a freshly loaded projection for the tenant, discarding
// whatever was cached before. Inadmissible stock items are dropped here so
// a polluted upstream page cannot leak across tenants.
func (c *Cache) Replace(shopID string, load LoadResult) {
	snap := newTenantSnapshot()
	for _, product := range load.Products {
		snap.products[product.ID] = product
	}
	for _, batch := range load.Batches {
		if batch.ShopID == shopID {
			snap.batches[batch.ID] = batch
		}
	}
	for _, item := range load.Stock {
		if admissible(shopID, item) {
			snap.stock[item.InventoryUUID] = item
		}
	}
	for _, supplier := range load.Suppliers {
		if supplier.ShopID == shopID {
			snap.suppliers[supplier.ID] = supplier
		}
	}
	for _, sale := range load.Sales {
		if sale.ShopID == shopID {
			snap.sales[sale.ID] = sale
		}
	}
	snap.loadedAt = time.Now().UTC()

	c.mu.Lock()
	c.shops[shopID] = snap
	c.mu.Unlock()
}

// LoadResult is the raw material for one tenant's projection.
type LoadResult struct {
	Products  []types.Product
	Batches   []types.BatchRecord
	Stock     []types.StockItem
	Suppliers []types.Supplier
	Sales     []types.SaleTransaction
}

// Loaded reports whether the tenant's projection has been populated.
func (c *Cache) Loaded(shopID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	return ok && !snap.loadedAt.IsZero()
}

// LoadedAt returns when the tenant projection was last replaced.
func (c *Cache) LoadedAt(shopID string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if snap, ok := c.shops[shopID]; ok {
		return snap.loadedAt
	}
	return time.Time{}
}

// Product returns one catalog entry.
func (c *Cache) Product(shopID, productID string) (types.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return types.Product{}, false
	}
	product, ok := snap.products[productID]
	return product, ok
}

// Products lists the tenant catalog sorted by name.
func (c *Cache) Products(shopID string) []types.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return nil
	}
	out := make([]types.Product, 0, len(snap.products))
	for _, product := range snap.products {
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StockItem returns one cached ledger entry.
func (c *Cache) StockItem(shopID, inventoryUUID string) (types.StockItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return types.StockItem{}, false
	}
	item, ok := snap.stock[inventoryUUID]
	return item, ok
}

// Stock lists every cached item for the tenant, newest first.
func (c *Cache) Stock(shopID string) []types.StockItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return nil
	}
	out := make([]types.StockItem, 0, len(snap.stock))
	for _, item := range snap.stock {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// StockByProduct lists the tenant's cached items for one product.
func (c *Cache) StockByProduct(shopID, productID string) []types.StockItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return nil
	}
	var out []types.StockItem
	for _, item := range snap.stock {
		if item.ProductID == productID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpirationDate.Before(out[j].ExpirationDate)
	})
	return out
}

// Batch returns one delivery record.
func (c *Cache) Batch(shopID, batchID string) (types.BatchRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return types.BatchRecord{}, false
	}
	batch, ok := snap.batches[batchID]
	return batch, ok
}

// Suppliers lists the tenant's registered suppliers sorted by name.
func (c *Cache) Suppliers(shopID string) []types.Supplier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return nil
	}
	out := make([]types.Supplier, 0, len(snap.suppliers))
	for _, supplier := range snap.suppliers {
		out = append(out, supplier)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sales lists the tenant's cached transactions newest first.
func (c *Cache) Sales(shopID string) []types.SaleTransaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.shops[shopID]
	if !ok {
		return nil
	}
	out := make([]types.SaleTransaction, 0, len(snap.sales))
	for _, sale := range snap.sales {
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// PutProduct projects an acknowledged product write.
func (c *Cache) PutProduct(shopID string, product types.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotFor(shopID).products[product.ID] = product
}

// PutBatch projects an acknowledged batch write.
func (c *Cache) PutBatch(shopID string, batch types.BatchRecord) {
	if batch.ShopID != shopID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotFor(shopID).batches[batch.ID] = batch
}

// PutStock projects an acknowledged stock write. Items that no longer meet
// the cache invariant are evicted instead.
func (c *Cache) PutStock(shopID string, item types.StockItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.snapshotFor(shopID)
	if admissible(shopID, item) {
		snap.stock[item.InventoryUUID] = item
		return
	}
	delete(snap.stock, item.InventoryUUID)
}

// RemoveStock evicts a deleted or depleted item.
func (c *Cache) RemoveStock(shopID, inventoryUUID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.shops[shopID]; ok {
		delete(snap.stock, inventoryUUID)
	}
}

// PutSupplier projects an acknowledged supplier write.
func (c *Cache) PutSupplier(shopID string, supplier types.Supplier) {
	if supplier.ShopID != shopID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotFor(shopID).suppliers[supplier.ID] = supplier
}

// PutSale projects an acknowledged sale write.
func (c *Cache) PutSale(shopID string, sale types.SaleTransaction) {
	if sale.ShopID != shopID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotFor(shopID).sales[sale.ID] = sale
}

// Evict drops the whole tenant projection, forcing a reload.
func (c *Cache) Evict(shopID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.shops, shopID)
}
