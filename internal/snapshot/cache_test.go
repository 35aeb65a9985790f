package snapshot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

func activeItem(uuid, shopID, productID string, qty int, exp time.Time) types.StockItem {
	return types.StockItem{
		InventoryUUID:  uuid,
		ShopID:         shopID,
		ProductID:      productID,
		Quantity:       qty,
		ExpirationDate: exp,
		BuyPrice:       decimal.NewFromInt(5),
		Status:         enums.StockStatusActive,
	}
}

func TestReplaceFiltersInadmissibleStock(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	cache.Replace("shop-a", LoadResult{
		Stock: []types.StockItem{
			activeItem("keep", "shop-a", "p1", 3, now),
			{InventoryUUID: "zero", ShopID: "shop-a", ProductID: "p1", Quantity: 0, Status: enums.StockStatusActive},
			{InventoryUUID: "empty", ShopID: "shop-a", ProductID: "p1", Quantity: 4, Status: enums.StockStatusEmpty},
			activeItem("foreign", "shop-b", "p1", 4, now),
		},
	})

	stock := cache.Stock("shop-a")
	if len(stock) != 1 || stock[0].InventoryUUID != "keep" {
		t.Fatalf("cached stock = %+v", stock)
	}
	if got := cache.Stock("shop-b"); got != nil {
		t.Errorf("foreign tenant leaked: %+v", got)
	}
}

func TestStockByProductFEFOOrder(t *testing.T) {
	cache := NewCache()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cache.Replace("shop-a", LoadResult{Stock: []types.StockItem{
		activeItem("late", "shop-a", "p1", 2, base.AddDate(0, 2, 0)),
		activeItem("first", "shop-a", "p1", 2, base),
		activeItem("mid", "shop-a", "p1", 2, base.AddDate(0, 1, 0)),
		activeItem("other", "shop-a", "p2", 2, base),
	}})

	items := cache.StockByProduct("shop-a", "p1")
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	want := []string{"first", "mid", "late"}
	for i, id := range want {
		if items[i].InventoryUUID != id {
			t.Errorf("position %d = %q, want %q", i, items[i].InventoryUUID, id)
		}
	}
}

func TestPutStockEvictsWhenInadmissible(t *testing.T) {
	cache := NewCache()
	cache.Replace("shop-a", LoadResult{Stock: []types.StockItem{
		activeItem("i1", "shop-a", "p1", 3, time.Now()),
	}})

	depleted := activeItem("i1", "shop-a", "p1", 0, time.Now())
	depleted.Status = enums.StockStatusEmpty
	cache.PutStock("shop-a", depleted)

	if _, ok := cache.StockItem("shop-a", "i1"); ok {
		t.Fatal("depleted item still cached")
	}
}

func TestPutAndRemoveStock(t *testing.T) {
	cache := NewCache()
	cache.Replace("shop-a", LoadResult{})
	cache.PutStock("shop-a", activeItem("i1", "shop-a", "p1", 2, time.Now()))
	if _, ok := cache.StockItem("shop-a", "i1"); !ok {
		t.Fatal("item not cached after put")
	}
	cache.RemoveStock("shop-a", "i1")
	if _, ok := cache.StockItem("shop-a", "i1"); ok {
		t.Fatal("item still cached after remove")
	}
}

func TestTenantWriteScoping(t *testing.T) {
	cache := NewCache()
	cache.PutBatch("shop-a", types.BatchRecord{ID: "b1", ShopID: "shop-b"})
	if _, ok := cache.Batch("shop-a", "b1"); ok {
		t.Error("foreign batch accepted")
	}
	cache.PutSupplier("shop-a", types.Supplier{ID: "s1", ShopID: "shop-b"})
	if got := cache.Suppliers("shop-a"); len(got) != 0 {
		t.Error("foreign supplier accepted")
	}
	cache.PutSale("shop-a", types.SaleTransaction{ID: "t1", ShopID: "shop-b"})
	if got := cache.Sales("shop-a"); len(got) != 0 {
		t.Error("foreign sale accepted")
	}
}

func TestLoadedAndEvict(t *testing.T) {
	cache := NewCache()
	if cache.Loaded("shop-a") {
		t.Fatal("unloaded tenant reported loaded")
	}
	cache.Replace("shop-a", LoadResult{})
	if !cache.Loaded("shop-a") {
		t.Fatal("loaded tenant reported unloaded")
	}
	cache.Evict("shop-a")
	if cache.Loaded("shop-a") {
		t.Fatal("evicted tenant reported loaded")
	}
}
