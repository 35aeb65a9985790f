package fulfillment

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/metrics"
	redisclient "github.com/sparrowretail/shelfline-backend/pkg/redis"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

// memLedger applies mutations straight to the cache, standing in for the
// real ledger's store round trip.
type memLedger struct {
	cache   *snapshot.Cache
	shopID  string
	sales   []types.SaleTransaction
	deleted []string
	failUpd error
}

func (m *memLedger) UpdateWithExternalData(ctx context.Context, tc tenant.Context, inventoryUUID string, data map[string]any) (*types.StockItem, error) {
	if m.failUpd != nil {
		return nil, m.failUpd
	}
	item, ok := m.cache.StockItem(tc.ShopID, inventoryUUID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "missing")
	}
	if qty, ok := data["quantity"].(int); ok {
		item.Quantity = qty
	}
	m.cache.PutStock(tc.ShopID, item)
	return &item, nil
}

func (m *memLedger) DeleteEntry(ctx context.Context, tc tenant.Context, inventoryUUID, productID string) error {
	m.deleted = append(m.deleted, inventoryUUID)
	m.cache.RemoveStock(tc.ShopID, inventoryUUID)
	return nil
}

func (m *memLedger) PersistSale(ctx context.Context, tc tenant.Context, sale types.SaleTransaction) (*types.SaleTransaction, error) {
	sale.ID = fmt.Sprintf("sale-%d", len(m.sales)+1)
	sale.Timestamp = time.Now().UTC()
	m.sales = append(m.sales, sale)
	m.cache.PutSale(tc.ShopID, sale)
	return &sale, nil
}

type recordingSink struct {
	events []types.MutationEvent
}

func (r *recordingSink) Offer(ctx context.Context, tc tenant.Context, event types.MutationEvent) {
	r.events = append(r.events, event)
}

func testTenant(t *testing.T) tenant.Context {
	t.Helper()
	tc, err := tenant.New("shop-a", "Corner Store")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return tc
}

func seedMilkShelf(cache *snapshot.Cache) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	priceA := decimal.NewFromInt(15)
	priceB := decimal.NewFromInt(16)
	cache.Replace("shop-a", snapshot.LoadResult{Stock: []types.StockItem{
		{
			InventoryUUID: "milk-late", ShopID: "shop-a", ProductID: "milk",
			Quantity: 10, ExpirationDate: base.AddDate(0, 0, 20),
			BuyPrice: decimal.NewFromInt(11), SellPrice: &priceB,
			Status: enums.StockStatusActive,
		},
		{
			InventoryUUID: "milk-early", ShopID: "shop-a", ProductID: "milk",
			Quantity: 5, ExpirationDate: base.AddDate(0, 0, 5),
			BuyPrice: decimal.NewFromInt(10), SellPrice: &priceA,
			Status: enums.StockStatusActive,
		},
	}})
}

func testEngine(t *testing.T, cache *snapshot.Cache, locker tenantLocker) (Engine, *memLedger, *recordingSink) {
	t.Helper()
	led := &memLedger{cache: cache, shopID: "shop-a"}
	sink := &recordingSink{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	eng, err := NewEngine(cache, led, locker, sink, logg, metrics.NewFulfillmentMetrics(nil))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng, led, sink
}

func TestRecordSaleFEFO(t *testing.T) {
	cache := snapshot.NewCache()
	seedMilkShelf(cache)
	eng, led, sink := testEngine(t, cache, nil)
	tc := testTenant(t)

	result, err := eng.RecordSale(context.Background(), tc, []CartLine{{ProductID: "milk", Quantity: 8}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if result.Fulfilled != 8 || result.Shortfall != 0 {
		t.Fatalf("result = %+v", result)
	}

	// The earliest-expiring batch empties first, at its own price.
	if len(led.sales) != 1 {
		t.Fatalf("sales = %d", len(led.sales))
	}
	items := led.sales[0].Items
	if len(items) != 2 {
		t.Fatalf("sale line items = %+v", items)
	}
	if items[0].Quantity != 5 || !items[0].PriceAtSale.Equal(decimal.NewFromInt(15)) {
		t.Errorf("first step = %+v, want 5 @ 15", items[0])
	}
	if items[1].Quantity != 3 || !items[1].PriceAtSale.Equal(decimal.NewFromInt(16)) {
		t.Errorf("second step = %+v, want 3 @ 16", items[1])
	}
	if want := decimal.NewFromInt(5*15 + 3*16); !led.sales[0].TotalAmount.Equal(want) {
		t.Errorf("total = %v, want %v", led.sales[0].TotalAmount, want)
	}

	// Conservation: 15 on the shelf, 8 sold, 7 left on the later batch.
	if len(led.deleted) != 1 || led.deleted[0] != "milk-early" {
		t.Errorf("deleted = %v", led.deleted)
	}
	left, ok := cache.StockItem(tc.ShopID, "milk-late")
	if !ok || left.Quantity != 7 {
		t.Errorf("remaining = %+v", left)
	}

	var depletions int
	for _, event := range sink.events {
		if event.Type == enums.MutationStockDepleted {
			depletions++
			if event.Item == nil || event.Item.Status != enums.StockStatusEmpty {
				t.Errorf("depletion event item = %+v", event.Item)
			}
		}
	}
	if depletions != 1 {
		t.Errorf("depletion events = %d", depletions)
	}
}

func TestRecordSalePartialShortfall(t *testing.T) {
	cache := snapshot.NewCache()
	seedMilkShelf(cache)
	eng, led, _ := testEngine(t, cache, nil)

	result, err := eng.RecordSale(context.Background(), testTenant(t), []CartLine{{ProductID: "milk", Quantity: 40}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if result.Fulfilled != 15 || result.Shortfall != 25 {
		t.Fatalf("result = %+v", result)
	}
	if got := cache.StockByProduct("shop-a", "milk"); len(got) != 0 {
		t.Errorf("stock left = %+v", got)
	}
	// A partial sale is still a sale for what was taken.
	if len(led.sales) != 1 {
		t.Errorf("sales = %d", len(led.sales))
	}
}

func TestRecordSaleUnknownProduct(t *testing.T) {
	cache := snapshot.NewCache()
	cache.Replace("shop-a", snapshot.LoadResult{})
	eng, led, _ := testEngine(t, cache, nil)

	result, err := eng.RecordSale(context.Background(), testTenant(t), []CartLine{{ProductID: "ghost", Quantity: 3}})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if result.Fulfilled != 0 || result.Shortfall != 3 {
		t.Fatalf("result = %+v", result)
	}
	if len(led.sales) != 0 {
		t.Error("empty fulfillment produced a sale")
	}
}

func TestRecordSaleMultiLineCart(t *testing.T) {
	cache := snapshot.NewCache()
	price := decimal.NewFromInt(4)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cache.Replace("shop-a", snapshot.LoadResult{Stock: []types.StockItem{
		{
			InventoryUUID: "bread-1", ShopID: "shop-a", ProductID: "bread",
			Quantity: 2, ExpirationDate: base, BuyPrice: decimal.NewFromInt(2),
			SellPrice: &price, Status: enums.StockStatusActive,
		},
	}})
	eng, led, _ := testEngine(t, cache, nil)

	result, err := eng.RecordSale(context.Background(), testTenant(t), []CartLine{
		{ProductID: "bread", Quantity: 2},
		{ProductID: "ghost", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if result.Fulfilled != 2 || result.Shortfall != 1 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("lines = %+v", result.Lines)
	}
	if result.Sale == nil || len(led.sales) != 1 {
		t.Error("expected one sale for the fulfilled portion")
	}
}

func TestRecordSaleValidation(t *testing.T) {
	cache := snapshot.NewCache()
	eng, _, _ := testEngine(t, cache, nil)
	tc := testTenant(t)

	cases := []struct {
		name string
		cart []CartLine
	}{
		{"empty cart", nil},
		{"missing product", []CartLine{{Quantity: 1}}},
		{"zero quantity", []CartLine{{ProductID: "milk"}}},
	}
	for _, tcase := range cases {
		t.Run(tcase.name, func(t *testing.T) {
			if _, err := eng.RecordSale(context.Background(), tc, tcase.cart); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestDeductForOrderNoSale(t *testing.T) {
	cache := snapshot.NewCache()
	seedMilkShelf(cache)
	eng, led, _ := testEngine(t, cache, nil)

	result, err := eng.DeductForOrder(context.Background(), testTenant(t), "milk", 6)
	if err != nil {
		t.Fatalf("DeductForOrder: %v", err)
	}
	if result.Fulfilled != 6 || result.Shortfall != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(led.sales) != 0 {
		t.Error("order deduction recorded a sale transaction")
	}
	if left, _ := cache.StockItem("shop-a", "milk-late"); left.Quantity != 9 {
		t.Errorf("remaining late batch = %+v", left)
	}
	if _, ok := cache.StockItem("shop-a", "milk-early"); ok {
		t.Error("earliest batch should be depleted first")
	}
}

type heldLocker struct{}

func (heldLocker) AcquireTenantLock(ctx context.Context, shopID string, ttl time.Duration) (func(), error) {
	return nil, redisclient.ErrLockHeld
}

func TestRecordSaleLockHeldIsConflict(t *testing.T) {
	cache := snapshot.NewCache()
	seedMilkShelf(cache)
	eng, _, _ := testEngine(t, cache, heldLocker{})

	_, err := eng.RecordSale(context.Background(), testTenant(t), []CartLine{{ProductID: "milk", Quantity: 1}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

type downLocker struct{}

func (downLocker) AcquireTenantLock(ctx context.Context, shopID string, ttl time.Duration) (func(), error) {
	return nil, fmt.Errorf("redis unreachable")
}

func TestRecordSaleFallsBackToLocalLock(t *testing.T) {
	cache := snapshot.NewCache()
	seedMilkShelf(cache)
	eng, _, _ := testEngine(t, cache, downLocker{})

	result, err := eng.RecordSale(context.Background(), testTenant(t), []CartLine{{ProductID: "milk", Quantity: 1}})
	if err != nil {
		t.Fatalf("RecordSale with down redis: %v", err)
	}
	if result.Fulfilled != 1 {
		t.Fatalf("result = %+v", result)
	}
}
