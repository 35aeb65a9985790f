package snapshot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

type fakeStore struct {
	available bool
	unready   map[string]bool
	points    map[string][]vectorstore.Point
	failOn    map[string]error
}

func (f *fakeStore) Available() bool { return f.available }

func (f *fakeStore) EnsureReady(ctx context.Context, collection string) bool {
	return !f.unready[collection]
}

func (f *fakeStore) ScrollAll(ctx context.Context, collection string, filter *vectorstore.Filter) ([]vectorstore.Point, error) {
	if err := f.failOn[collection]; err != nil {
		return nil, err
	}
	var matched []vectorstore.Point
	for _, point := range f.points[collection] {
		if filter.Matches(point.Payload) {
			matched = append(matched, point)
		}
	}
	return matched, nil
}

func payloadOf(t *testing.T, v any) map[string]any {
	t.Helper()
	payload, err := vectorstore.PayloadOf(v)
	if err != nil {
		t.Fatalf("PayloadOf: %v", err)
	}
	return payload
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

func testTenant(t *testing.T, shopID string) tenant.Context {
	t.Helper()
	tc, err := tenant.New(shopID, "Test Shop")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return tc
}

func TestLoadHydratesTenantProjection(t *testing.T) {
	store := &fakeStore{
		available: true,
		points: map[string][]vectorstore.Point{
			vectorstore.CollectionProducts: {
				{ID: "p1", Payload: payloadOf(t, types.Product{ID: "p1", ShopID: "shop-a", Name: "Milk"})},
			},
			vectorstore.CollectionItems: {
				{ID: "i1", Payload: map[string]any{
					"inventoryUuid": "i1", "shopId": "shop-a", "productId": "p1",
					"quantity": float64(5), "status": "ACTIVE",
				}},
				{ID: "i2", Payload: map[string]any{
					"inventoryUuid": "i2", "shopId": "shop-b", "productId": "p1",
					"quantity": float64(5), "status": "ACTIVE",
				}},
			},
			vectorstore.CollectionSuppliers: {
				{ID: "s1", Payload: map[string]any{"id": "s1", "shopId": "shop-a", "name": "Dairy Co"}},
			},
		},
	}
	cache := NewCache()
	loader, err := NewLoader(store, cache, testLogger())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	if err := loader.Load(context.Background(), testTenant(t, "shop-a")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cache.Loaded("shop-a") {
		t.Fatal("tenant not marked loaded")
	}
	if got := cache.Products("shop-a"); len(got) != 1 || got[0].Name != "Milk" {
		t.Errorf("products = %+v", got)
	}
	if got := cache.Stock("shop-a"); len(got) != 1 || got[0].InventoryUUID != "i1" {
		t.Errorf("stock = %+v", got)
	}
	if got := cache.Suppliers("shop-a"); len(got) != 1 {
		t.Errorf("suppliers = %+v", got)
	}
}

func TestLoadKeepsLedgerWrittenProducts(t *testing.T) {
	// Products written by the ledger's audit path are encoded straight from
	// types.Product; they must survive a full projection rebuild.
	written := types.Product{
		ID:     "p1",
		ShopID: "shop-a",
		Name:   "Milk",
		Audit:  []types.AuditEntry{{Action: "stock_created", Actor: "Corner Store"}},
	}
	store := &fakeStore{
		available: true,
		points: map[string][]vectorstore.Point{
			vectorstore.CollectionProducts: {
				{ID: "point-p1", Payload: payloadOf(t, written)},
			},
		},
	}
	cache := NewCache()
	loader, _ := NewLoader(store, cache, testLogger())

	if err := loader.Load(context.Background(), testTenant(t, "shop-a")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	product, ok := cache.Product("shop-a", "p1")
	if !ok {
		t.Fatal("ledger-written product lost on reload")
	}
	if product.Name != "Milk" || len(product.Audit) != 1 {
		t.Errorf("product = %+v", product)
	}
	if err := loader.Load(context.Background(), testTenant(t, "shop-b")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cache.Products("shop-b"); len(got) != 0 {
		t.Errorf("foreign tenant sees products = %+v", got)
	}
}

func TestLoadFailsWhenACollectionScanFails(t *testing.T) {
	store := &fakeStore{
		available: true,
		failOn:    map[string]error{vectorstore.CollectionItems: errors.New("store down")},
	}
	cache := NewCache()
	loader, _ := NewLoader(store, cache, testLogger())

	if err := loader.Load(context.Background(), testTenant(t, "shop-a")); err == nil {
		t.Fatal("expected load failure")
	}
	if cache.Loaded("shop-a") {
		t.Fatal("failed load must not mark the tenant loaded")
	}
}

func TestLoadUnreadyCollectionIsEmpty(t *testing.T) {
	store := &fakeStore{
		available: true,
		unready:   map[string]bool{vectorstore.CollectionSales: true},
		points: map[string][]vectorstore.Point{
			vectorstore.CollectionProducts: {
				{ID: "p1", Payload: payloadOf(t, types.Product{ID: "p1", ShopID: "shop-a", Name: "Milk"})},
			},
		},
	}
	cache := NewCache()
	loader, _ := NewLoader(store, cache, testLogger())

	if err := loader.Load(context.Background(), testTenant(t, "shop-a")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cache.Sales("shop-a"); len(got) != 0 {
		t.Errorf("sales = %+v", got)
	}
	if got := cache.Products("shop-a"); len(got) != 1 {
		t.Errorf("products = %+v", got)
	}
}

func TestLoadWithoutStoreInstallsEmptyProjection(t *testing.T) {
	cache := NewCache()
	loader, _ := NewLoader(&fakeStore{available: false}, cache, testLogger())

	if err := loader.Load(context.Background(), testTenant(t, "shop-a")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cache.Loaded("shop-a") {
		t.Fatal("degraded load must still mark the tenant loaded")
	}
	if got := cache.Stock("shop-a"); len(got) != 0 {
		t.Errorf("stock = %+v", got)
	}
}
