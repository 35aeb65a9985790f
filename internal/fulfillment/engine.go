package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/internal/ledger"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/metrics"
	redisclient "github.com/sparrowretail/shelfline-backend/pkg/redis"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

// lockTTL bounds the per-tenant critical section. A crashed holder frees
// the tenant after this long.
const lockTTL = 30 * time.Second

// Engine depletes stock first-expired-first-out. All mutations go through
// the ledger so the write-through and event discipline hold here too.
type Engine interface {
	RecordSale(ctx context.Context, tc tenant.Context, cart []CartLine) (*Result, error)
	DeductForOrder(ctx context.Context, tc tenant.Context, productID string, quantity int) (*Result, error)
}

// CartLine is one requested product position.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Result reports exactly how much of the request was honored. Callers must
// check Shortfall; a partial fulfillment is not an error.
type Result struct {
	Sale      *types.SaleTransaction
	Fulfilled int
	Shortfall int
	Lines     []LineResult
}

// LineResult is the per-product breakdown.
type LineResult struct {
	ProductID string
	Requested int
	Fulfilled int
	Shortfall int
}

type stockLedger interface {
	UpdateWithExternalData(ctx context.Context, tc tenant.Context, inventoryUUID string, data map[string]any) (*types.StockItem, error)
	DeleteEntry(ctx context.Context, tc tenant.Context, inventoryUUID, productID string) error
	PersistSale(ctx context.Context, tc tenant.Context, sale types.SaleTransaction) (*types.SaleTransaction, error)
}

type tenantLocker interface {
	AcquireTenantLock(ctx context.Context, shopID string, ttl time.Duration) (func(), error)
}

type engine struct {
	cache   *snapshot.Cache
	ledger  stockLedger
	locker  tenantLocker
	sink    ledger.EventSink
	logg    *logger.Logger
	metrics *metrics.FulfillmentMetrics

	mu    sync.Mutex
	local map[string]*sync.Mutex
}

// NewEngine constructs the fulfillment engine. The locker may be nil; the
// critical section then falls back to the in-process mutex only.
func NewEngine(cache *snapshot.Cache, stock stockLedger, locker tenantLocker, sink ledger.EventSink, logg *logger.Logger, m *metrics.FulfillmentMetrics) (Engine, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &engine{
		cache:   cache,
		ledger:  stock,
		locker:  locker,
		sink:    sink,
		logg:    logg,
		metrics: m,
		local:   map[string]*sync.Mutex{},
	}, nil
}

func (e *engine) localLock(shopID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.local[shopID]
	if !ok {
		lock = &sync.Mutex{}
		e.local[shopID] = lock
	}
	return lock
}

// lockTenant serializes depletion per tenant. The in-process mutex always
// applies; the distributed lease is layered on top when redis is up. A held
// lease is a conflict the caller should retry.
func (e *engine) lockTenant(ctx context.Context, shopID string) (func(), error) {
	local := e.localLock(shopID)
	local.Lock()

	if e.locker == nil {
		return local.Unlock, nil
	}
	release, err := e.locker.AcquireTenantLock(ctx, shopID, lockTTL)
	if err != nil {
		if errors.Is(err, redisclient.ErrLockHeld) {
			local.Unlock()
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "tenant fulfillment already in progress")
		}
		// Redis being down must not stop sales; the in-process mutex
		// still covers this instance.
		e.logg.Warn(e.logg.WithField(e.logg.WithShopID(ctx, shopID), "error", err.Error()), "distributed lock unavailable, using local lock only")
		return local.Unlock, nil
	}
	return func() {
		release()
		local.Unlock()
	}, nil
}

func validateCart(cart []CartLine) error {
	if len(cart) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for i, line := range cart {
		if line.ProductID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart line %d: product id required", i))
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cart line %d: quantity must be positive", i))
		}
	}
	return nil
}

func (e *engine) RecordSale(ctx context.Context, tc tenant.Context, cart []CartLine) (*Result, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	if err := validateCart(cart); err != nil {
		return nil, err
	}

	unlock, err := e.lockTenant(ctx, tc.ShopID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &Result{}
	var saleItems []types.SaleLineItem
	total := decimal.Zero
	for _, line := range cart {
		lineResult, steps, err := e.depleteProduct(ctx, tc, line.ProductID, line.Quantity)
		if err != nil {
			return nil, err
		}
		result.Lines = append(result.Lines, lineResult)
		result.Fulfilled += lineResult.Fulfilled
		result.Shortfall += lineResult.Shortfall
		for _, step := range steps {
			saleItems = append(saleItems, step)
			total = total.Add(step.PriceAtSale.Mul(decimal.NewFromInt(int64(step.Quantity))))
		}
	}

	if len(saleItems) > 0 {
		sale := types.SaleTransaction{
			ShopID:      tc.ShopID,
			Items:       saleItems,
			TotalAmount: total,
		}
		stamped, err := e.ledger.PersistSale(ctx, tc, sale)
		if err != nil {
			return nil, err
		}
		result.Sale = stamped
	}

	e.metrics.ObserveResult(result.Fulfilled, result.Shortfall)
	return result, nil
}

func (e *engine) DeductForOrder(ctx context.Context, tc tenant.Context, productID string, quantity int) (*Result, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	unlock, err := e.lockTenant(ctx, tc.ShopID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lineResult, _, err := e.depleteProduct(ctx, tc, productID, quantity)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Fulfilled: lineResult.Fulfilled,
		Shortfall: lineResult.Shortfall,
		Lines:     []LineResult{lineResult},
	}
	e.metrics.ObserveResult(result.Fulfilled, result.Shortfall)
	return result, nil
}

// depleteProduct walks the product's stock expiration-ascending and takes
// from each item until the request is covered. Each depletion step records
// the price actually attached to that item's batch.
func (e *engine) depleteProduct(ctx context.Context, tc tenant.Context, productID string, requested int) (LineResult, []types.SaleLineItem, error) {
	items := e.cache.StockByProduct(tc.ShopID, productID)
	remaining := requested
	var steps []types.SaleLineItem

	for _, item := range items {
		if remaining == 0 {
			break
		}
		take := item.Quantity
		if take > remaining {
			take = remaining
		}
		remaining -= take
		steps = append(steps, types.SaleLineItem{
			ProductID:   productID,
			Quantity:    take,
			PriceAtSale: item.EffectiveSellPrice(),
		})

		left := item.Quantity - take
		if left > 0 {
			if _, err := e.ledger.UpdateWithExternalData(ctx, tc, item.InventoryUUID, map[string]any{
				"quantity": left,
			}); err != nil {
				return LineResult{}, nil, err
			}
			continue
		}

		if err := e.ledger.DeleteEntry(ctx, tc, item.InventoryUUID, ""); err != nil {
			return LineResult{}, nil, err
		}
		if e.sink != nil {
			depleted := item
			depleted.Quantity = 0
			depleted.Status = enums.StockStatusEmpty
			e.sink.Offer(ctx, tc, types.MutationEvent{
				Type:   enums.MutationStockDepleted,
				ShopID: tc.ShopID,
				Item:   &depleted,
				Payload: map[string]any{
					"inventoryUuid": item.InventoryUUID,
					"productId":     productID,
				},
			})
		}
	}

	return LineResult{
		ProductID: productID,
		Requested: requested,
		Fulfilled: requested - remaining,
		Shortfall: remaining,
	}, steps, nil
}
