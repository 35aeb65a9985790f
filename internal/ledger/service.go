package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/internal/identity"
	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	pkgerrors "github.com/sparrowretail/shelfline-backend/pkg/errors"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

// defaultShelfLife is applied to batch line items without an explicit
// expiration date.
const defaultShelfLife = 365 * 24 * time.Hour

// maxAuditEntries bounds the per-product action log.
const maxAuditEntries = 25

// Service owns every stock mutation. The remote store is written first;
// the cache and event sink only see acknowledged state.
type Service interface {
	PersistEntry(ctx context.Context, tc tenant.Context, input CreateStockInput) (*types.StockItem, error)
	UpdateWithExternalData(ctx context.Context, tc tenant.Context, inventoryUUID string, data map[string]any) (*types.StockItem, error)
	DeleteEntry(ctx context.Context, tc tenant.Context, inventoryUUID, productID string) error
	CreateFromBatch(ctx context.Context, tc tenant.Context, input BatchInput) (*types.BatchRecord, []types.StockItem, error)
	PersistSale(ctx context.Context, tc tenant.Context, sale types.SaleTransaction) (*types.SaleTransaction, error)
	RegisterSupplier(ctx context.Context, tc tenant.Context, name string) (*types.Supplier, error)
}

// CreateStockInput is the validated payload for a single acquisition. A
// caller-supplied InventoryUUID makes the persist idempotent; the same id
// overwrites the same point in place.
type CreateStockInput struct {
	InventoryUUID  string
	ProductID      string
	ProductName    string
	BatchID        string
	SupplierID     string
	Quantity       int
	ExpirationDate time.Time
	BuyPrice       decimal.Decimal
	SellPrice      *decimal.Decimal
	Location       string
	ScanMetadata   map[string]any
	Images         []string
	ShareScope     []string
}

// BatchInput records one delivery with its line items.
type BatchInput struct {
	SupplierID    string
	DeliveryDate  time.Time
	InvoiceNumber string
	Documents     []string
	LineItems     []BatchLineInput
}

// BatchLineInput is one product position on a delivery.
type BatchLineInput struct {
	ProductID      string
	ProductName    string
	Quantity       int
	Cost           decimal.Decimal
	SellPrice      *decimal.Decimal
	ExpirationDate *time.Time
	Location       string
	ShareScope     []string
}

// EventSink receives acknowledged ledger mutations. Delivery is best
// effort; a sink failure never fails the mutation.
type EventSink interface {
	Offer(ctx context.Context, tc tenant.Context, event types.MutationEvent)
}

type pointStore interface {
	Available() bool
	EnsureReady(ctx context.Context, collection string) bool
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	DeleteByIDs(ctx context.Context, collection string, ids []string) error
	DeleteByFilter(ctx context.Context, collection string, filter *vectorstore.Filter) error
	GetPoint(ctx context.Context, collection, id string) (*vectorstore.Point, error)
}

type service struct {
	store    pointStore
	cache    *snapshot.Cache
	resolver *identity.Resolver
	sink     EventSink
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the ledger. The sink may be nil; the store may be
// an unconfigured client, in which case writes degrade to logged no-ops.
func NewService(store pointStore, cache *snapshot.Cache, resolver *identity.Resolver, sink EventSink, logg *logger.Logger) (Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("vector resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    store,
		cache:    cache,
		resolver: resolver,
		sink:     sink,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) storeReady(ctx context.Context, collection string) (bool, error) {
	if s.store == nil || !s.store.Available() {
		return false, nil
	}
	if !s.store.EnsureReady(ctx, collection) {
		return false, pkgerrors.New(pkgerrors.CodeCollectionNotReady, fmt.Sprintf("collection %q not ready", collection))
	}
	return true, nil
}

func (s *service) emit(ctx context.Context, tc tenant.Context, eventType enums.MutationEventType, item *types.StockItem, payload map[string]any) {
	if s.sink == nil {
		return
	}
	s.sink.Offer(ctx, tc, types.MutationEvent{
		Type:    eventType,
		ShopID:  tc.ShopID,
		Payload: payload,
		Item:    item,
	})
}

func (s *service) PersistEntry(ctx context.Context, tc tenant.Context, input CreateStockInput) (*types.StockItem, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	if strings.TrimSpace(input.ProductID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.BuyPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buy price cannot be negative")
	}

	now := s.now()
	sellPrice := input.SellPrice
	if sellPrice == nil {
		imputed := types.DefaultSellPrice(input.BuyPrice)
		sellPrice = &imputed
	}
	inventoryUUID := strings.TrimSpace(input.InventoryUUID)
	if inventoryUUID == "" {
		inventoryUUID = uuid.NewString()
	}
	item := types.StockItem{
		InventoryUUID:  inventoryUUID,
		ShopID:         tc.ShopID,
		ProductID:      input.ProductID,
		BatchID:        input.BatchID,
		SupplierID:     input.SupplierID,
		Quantity:       input.Quantity,
		ExpirationDate: input.ExpirationDate,
		BuyPrice:       input.BuyPrice,
		SellPrice:      sellPrice,
		Location:       input.Location,
		Status:         enums.StockStatusActive,
		ScanMetadata:   input.ScanMetadata,
		Images:         input.Images,
		ShareScope:     input.ShareScope,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ready, err := s.storeReady(ctx, vectorstore.CollectionItems)
	if err != nil {
		return nil, err
	}
	if !ready {
		s.logg.Warn(s.logg.WithShopID(ctx, tc.ShopID), "store unavailable, stock write dropped")
		return &item, nil
	}

	embedText := input.ProductName
	if embedText == "" {
		embedText = input.ProductID
	}
	point, err := stockPoint(item, s.resolver.ResolveVector(ctx, embedText))
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, vectorstore.CollectionItems, []vectorstore.Point{point}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stock entry")
	}

	s.cache.PutStock(tc.ShopID, item)
	s.auditProduct(ctx, tc, item.ProductID, input.ProductName, "stock_created")
	s.emit(ctx, tc, enums.MutationStockCreated, &item, map[string]any{
		"inventoryUuid": item.InventoryUUID,
		"productId":     item.ProductID,
		"quantity":      item.Quantity,
	})
	return &item, nil
}

// mutableStockFields lists the payload keys an external patch may touch.
// Identity and tenancy fields are never patchable.
var mutableStockFields = map[string]struct{}{
	"quantity":       {},
	"sellPrice":      {},
	"buyPrice":       {},
	"location":       {},
	"expirationDate": {},
	"scanMetadata":   {},
	"images":         {},
	"shareScope":     {},
	"status":         {},
	"supplierId":     {},
	"batchId":        {},
}

func (s *service) UpdateWithExternalData(ctx context.Context, tc tenant.Context, inventoryUUID string, data map[string]any) (*types.StockItem, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	if strings.TrimSpace(inventoryUUID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory uuid required")
	}

	ready, err := s.storeReady(ctx, vectorstore.CollectionItems)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, pkgerrors.New(pkgerrors.CodeStoreUnavailable, "no store configured")
	}

	existing, err := s.store.GetPoint(ctx, vectorstore.CollectionItems, inventoryUUID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stock entry")
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("stock item %s not found", inventoryUUID))
	}
	var item types.StockItem
	if err := existing.DecodePayload(&item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stock entry")
	}
	if item.ShopID != tc.ShopID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("stock item %s not found", inventoryUUID))
	}

	patched := map[string]any{}
	for key, value := range data {
		if _, ok := mutableStockFields[key]; ok {
			patched[key] = value
		}
	}
	if len(patched) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no mutable fields in patch")
	}
	if err := applyPatch(&item, patched); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "apply stock patch")
	}
	if item.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot go negative")
	}
	if item.Quantity == 0 && item.Status == enums.StockStatusActive {
		item.Status = enums.StockStatusEmpty
	}
	item.UpdatedAt = s.now()

	// Metadata-only patch: the point keeps its original vector.
	point, err := stockPoint(item, existing.Vector)
	if err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, vectorstore.CollectionItems, []vectorstore.Point{point}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stock update")
	}

	s.cache.PutStock(tc.ShopID, item)
	s.auditProduct(ctx, tc, item.ProductID, "", "stock_updated")
	s.emit(ctx, tc, enums.MutationStockUpdated, &item, map[string]any{
		"inventoryUuid": item.InventoryUUID,
		"productId":     item.ProductID,
		"quantity":      item.Quantity,
		"patched":       keysOf(patched),
	})
	return &item, nil
}

func (s *service) DeleteEntry(ctx context.Context, tc tenant.Context, inventoryUUID, productID string) error {
	if !tc.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	inventoryUUID = strings.TrimSpace(inventoryUUID)
	productID = strings.TrimSpace(productID)
	if inventoryUUID == "" && productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory uuid or product id required")
	}

	ready, err := s.storeReady(ctx, vectorstore.CollectionItems)
	if err != nil {
		return err
	}
	if ready {
		if inventoryUUID != "" {
			err = s.store.DeleteByIDs(ctx, vectorstore.CollectionItems, []string{inventoryUUID})
		} else {
			filter := vectorstore.TenantFilter(tc.ShopID).And(vectorstore.Condition{Key: "productId", Match: productID})
			err = s.store.DeleteByFilter(ctx, vectorstore.CollectionItems, filter)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stock entry")
		}
	} else {
		s.logg.Warn(s.logg.WithShopID(ctx, tc.ShopID), "store unavailable, stock delete dropped")
	}

	if inventoryUUID != "" {
		if item, ok := s.cache.StockItem(tc.ShopID, inventoryUUID); ok && productID == "" {
			productID = item.ProductID
		}
		s.cache.RemoveStock(tc.ShopID, inventoryUUID)
	} else {
		for _, item := range s.cache.StockByProduct(tc.ShopID, productID) {
			s.cache.RemoveStock(tc.ShopID, item.InventoryUUID)
		}
	}
	s.auditProduct(ctx, tc, productID, "", "stock_deleted")
	s.emit(ctx, tc, enums.MutationStockDeleted, nil, map[string]any{
		"inventoryUuid": inventoryUUID,
		"productId":     productID,
	})
	return nil
}

func (s *service) CreateFromBatch(ctx context.Context, tc tenant.Context, input BatchInput) (*types.BatchRecord, []types.StockItem, error) {
	if !tc.Valid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	if len(input.LineItems) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "batch requires at least one line item")
	}
	delivery := input.DeliveryDate
	if delivery.IsZero() {
		delivery = s.now()
	}
	for i, line := range input.LineItems {
		if strings.TrimSpace(line.ProductID) == "" {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: product id required", i))
		}
		if line.Quantity <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d: quantity must be positive", i))
		}
	}

	now := s.now()
	batch := types.BatchRecord{
		ID:            identity.PointID(tc.ShopID, "batch", input.InvoiceNumber, delivery.Format(time.RFC3339)),
		ShopID:        tc.ShopID,
		SupplierID:    input.SupplierID,
		DeliveryDate:  delivery,
		InvoiceNumber: input.InvoiceNumber,
		Documents:     input.Documents,
	}

	items := make([]types.StockItem, 0, len(input.LineItems))
	points := make([]vectorstore.Point, 0, len(input.LineItems))
	for _, line := range input.LineItems {
		expiration := delivery.Add(defaultShelfLife)
		if line.ExpirationDate != nil {
			expiration = *line.ExpirationDate
		}
		sellPrice := line.SellPrice
		if sellPrice == nil {
			imputed := types.DefaultSellPrice(line.Cost)
			sellPrice = &imputed
		}
		item := types.StockItem{
			InventoryUUID:  uuid.NewString(),
			ShopID:         tc.ShopID,
			ProductID:      line.ProductID,
			BatchID:        batch.ID,
			SupplierID:     input.SupplierID,
			Quantity:       line.Quantity,
			ExpirationDate: expiration,
			BuyPrice:       line.Cost,
			SellPrice:      sellPrice,
			Location:       line.Location,
			Status:         enums.StockStatusActive,
			ShareScope:     line.ShareScope,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		items = append(items, item)
		batch.LineItems = append(batch.LineItems, types.BatchLineItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Cost:      line.Cost,
		})

		embedText := line.ProductName
		if embedText == "" {
			embedText = line.ProductID
		}
		point, err := stockPoint(item, s.resolver.ResolveVector(ctx, embedText))
		if err != nil {
			return nil, nil, err
		}
		points = append(points, point)
	}

	ready, err := s.storeReady(ctx, vectorstore.CollectionItems)
	if err != nil {
		return nil, nil, err
	}
	if !ready {
		s.logg.Warn(s.logg.WithShopID(ctx, tc.ShopID), "store unavailable, batch ingest dropped")
		return &batch, items, nil
	}

	// One upsert for all line items, then the batch record itself.
	if err := s.store.Upsert(ctx, vectorstore.CollectionItems, points); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist batch stock")
	}
	record, err := batchPoint(batch, s.resolver.ResolveVector(ctx, "batch "+batch.InvoiceNumber))
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.Upsert(ctx, vectorstore.CollectionBatches, []vectorstore.Point{record}); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist batch record")
	}

	s.cache.PutBatch(tc.ShopID, batch)
	for i := range items {
		s.cache.PutStock(tc.ShopID, items[i])
		s.auditProduct(ctx, tc, items[i].ProductID, input.LineItems[i].ProductName, "stock_created")
		s.emit(ctx, tc, enums.MutationStockCreated, &items[i], map[string]any{
			"inventoryUuid": items[i].InventoryUUID,
			"productId":     items[i].ProductID,
			"quantity":      items[i].Quantity,
			"batchId":       batch.ID,
		})
	}
	s.emit(ctx, tc, enums.MutationBatchIngested, nil, map[string]any{
		"batchId":   batch.ID,
		"lineItems": len(items),
	})
	return &batch, items, nil
}

func (s *service) PersistSale(ctx context.Context, tc tenant.Context, sale types.SaleTransaction) (*types.SaleTransaction, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	sale.ShopID = tc.ShopID
	if sale.Timestamp.IsZero() {
		sale.Timestamp = s.now()
	}

	ready, err := s.storeReady(ctx, vectorstore.CollectionSales)
	if err != nil {
		return nil, err
	}
	if ready {
		payload, err := vectorstore.PayloadOf(sale)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sale")
		}
		point := vectorstore.Point{
			ID:      sale.ID,
			Vector:  s.resolver.ResolveVector(ctx, "sale "+sale.ID),
			Payload: payload,
		}
		if err := s.store.Upsert(ctx, vectorstore.CollectionSales, []vectorstore.Point{point}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist sale")
		}
	} else {
		s.logg.Warn(s.logg.WithShopID(ctx, tc.ShopID), "store unavailable, sale record dropped")
	}

	s.cache.PutSale(tc.ShopID, sale)
	s.emit(ctx, tc, enums.MutationSaleRecorded, nil, map[string]any{
		"saleId":      sale.ID,
		"totalAmount": sale.TotalAmount.String(),
		"lineItems":   len(sale.Items),
	})
	return &sale, nil
}

func (s *service) RegisterSupplier(ctx context.Context, tc tenant.Context, name string) (*types.Supplier, error) {
	if !tc.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier name required")
	}

	supplier := types.Supplier{
		ID:     identity.PointID(tc.ShopID, "supplier", name),
		ShopID: tc.ShopID,
		Name:   name,
	}

	ready, err := s.storeReady(ctx, vectorstore.CollectionSuppliers)
	if err != nil {
		return nil, err
	}
	if ready {
		payload, err := vectorstore.PayloadOf(supplier)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode supplier")
		}
		point := vectorstore.Point{
			ID:      supplier.ID,
			Vector:  s.resolver.ResolveVector(ctx, name),
			Payload: payload,
		}
		if err := s.store.Upsert(ctx, vectorstore.CollectionSuppliers, []vectorstore.Point{point}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist supplier")
		}
	} else {
		s.logg.Warn(s.logg.WithShopID(ctx, tc.ShopID), "store unavailable, supplier write dropped")
	}

	s.cache.PutSupplier(tc.ShopID, supplier)
	return &supplier, nil
}

// auditProduct appends an action log line to the product record and writes
// it through. Audit is best effort; a failure here never fails the stock
// mutation that produced it.
func (s *service) auditProduct(ctx context.Context, tc tenant.Context, productID, productName, action string) {
	if strings.TrimSpace(productID) == "" {
		return
	}
	product, ok := s.cache.Product(tc.ShopID, productID)
	if !ok {
		product = types.Product{ID: productID}
	}
	// The tenant filter on projection load matches on this field.
	product.ShopID = tc.ShopID
	if product.Name == "" {
		product.Name = productName
	}
	product.Audit = append(product.Audit, types.AuditEntry{
		Action: action,
		Actor:  tc.ShopName,
		At:     s.now(),
	})
	if len(product.Audit) > maxAuditEntries {
		product.Audit = product.Audit[len(product.Audit)-maxAuditEntries:]
	}

	if s.store != nil && s.store.Available() && s.store.EnsureReady(ctx, vectorstore.CollectionProducts) {
		payload, err := vectorstore.PayloadOf(product)
		if err == nil {
			embedText := product.Name
			if embedText == "" {
				embedText = product.ID
			}
			point := vectorstore.Point{
				ID:      identity.PointID(tc.ShopID, "product", product.ID),
				Vector:  s.resolver.ResolveVector(ctx, embedText),
				Payload: payload,
			}
			err = s.store.Upsert(ctx, vectorstore.CollectionProducts, []vectorstore.Point{point})
		}
		if err != nil {
			s.logg.Warn(s.logg.WithShopID(ctx, tc.ShopID), "product audit write failed")
		}
	}
	s.cache.PutProduct(tc.ShopID, product)
}

func stockPoint(item types.StockItem, vector []float32) (vectorstore.Point, error) {
	payload, err := vectorstore.PayloadOf(item)
	if err != nil {
		return vectorstore.Point{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode stock item")
	}
	return vectorstore.Point{ID: item.InventoryUUID, Vector: vector, Payload: payload}, nil
}

func batchPoint(batch types.BatchRecord, vector []float32) (vectorstore.Point, error) {
	payload, err := vectorstore.PayloadOf(batch)
	if err != nil {
		return vectorstore.Point{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode batch record")
	}
	return vectorstore.Point{ID: batch.ID, Vector: vector, Payload: payload}, nil
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}
