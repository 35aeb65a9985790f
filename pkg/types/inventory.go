package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
)

// Product is the tenant-namespaced catalog entry. Stock records reference it
// by id; the embedding (when present) is derived from the product name.
type Product struct {
	ID                string       `json:"id"`
	ShopID            string       `json:"shopId"`
	Name              string       `json:"name"`
	Manufacturer      string       `json:"manufacturer,omitempty"`
	Category          string       `json:"category,omitempty"`
	Description       string       `json:"description,omitempty"`
	DefaultSupplierID string       `json:"defaultSupplierId,omitempty"`
	Images            []string     `json:"images,omitempty"`
	Audit             []AuditEntry `json:"audit,omitempty"`
	Embeddings        []float32    `json:"embeddings,omitempty"`
}

// AuditEntry is one append-only action log line on a product.
type AuditEntry struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor,omitempty"`
	At     time.Time `json:"at"`
}

// BatchRecord captures one delivery event. Immutable after creation except
// for document attachment.
type BatchRecord struct {
	ID            string          `json:"id"`
	ShopID        string          `json:"shopId"`
	SupplierID    string          `json:"supplierId,omitempty"`
	DeliveryDate  time.Time       `json:"deliveryDate"`
	InventoryDate *time.Time      `json:"inventoryDate,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	Documents     []string        `json:"documents,omitempty"`
	LineItems     []BatchLineItem `json:"lineItems"`
}

// BatchLineItem is one product position on a delivery.
type BatchLineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
}

// StockItem is the ledger's unit of truth.
type StockItem struct {
	InventoryUUID  string            `json:"inventoryUuid"`
	ShopID         string            `json:"shopId"`
	ProductID      string            `json:"productId"`
	BatchID        string            `json:"batchId,omitempty"`
	SupplierID     string            `json:"supplierId,omitempty"`
	Quantity       int               `json:"quantity"`
	ExpirationDate time.Time         `json:"expirationDate"`
	BuyPrice       decimal.Decimal   `json:"buyPrice"`
	SellPrice      *decimal.Decimal  `json:"sellPrice,omitempty"`
	Location       string            `json:"location,omitempty"`
	Status         enums.StockStatus `json:"status"`
	ScanMetadata   map[string]any    `json:"scanMetadata,omitempty"`
	Images         []string          `json:"images,omitempty"`
	ShareScope     []string          `json:"shareScope,omitempty"`
	ShareProofHash string            `json:"shareProofHash,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// EffectiveSellPrice returns the explicit sell price, or the imputed default
// of buy price times the standard markup when none was set.
func (s StockItem) EffectiveSellPrice() decimal.Decimal {
	if s.SellPrice != nil {
		return *s.SellPrice
	}
	return DefaultSellPrice(s.BuyPrice)
}

// SharedWith reports whether the item's share scope carries the given tag.
func (s StockItem) SharedWith(tag string) bool {
	for _, scope := range s.ShareScope {
		if scope == tag {
			return true
		}
	}
	return false
}

// defaultMarkup is applied when no explicit sell price exists.
var defaultMarkup = decimal.NewFromFloat(1.4)

// DefaultSellPrice imputes a sell price from a buy price.
func DefaultSellPrice(buy decimal.Decimal) decimal.Decimal {
	return buy.Mul(defaultMarkup)
}

// SaleLineItem records one depletion step of a sale at the price actually
// charged for that batch of stock.
type SaleLineItem struct {
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"priceAtSale"`
}

// SaleTransaction is append-only and produced exclusively by the
// fulfillment engine.
type SaleTransaction struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shopId"`
	Timestamp   time.Time       `json:"timestamp"`
	Items       []SaleLineItem  `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Supplier is a tenant-registered source of stock.
type Supplier struct {
	ID     string `json:"id"`
	ShopID string `json:"shopId"`
	Name   string `json:"name"`
}

// ProductSummary is derived on demand from the cache and never persisted.
type ProductSummary struct {
	ProductID          string           `json:"productId"`
	Name               string           `json:"name"`
	TotalQuantity      int              `json:"totalQuantity"`
	AverageCostPerUnit decimal.Decimal  `json:"averageCostPerUnit"`
	AverageSellPrice   *decimal.Decimal `json:"averageSellPrice,omitempty"`
	EarliestExpiration time.Time        `json:"earliestExpiration"`
	SupplierIDs        []string         `json:"supplierIds"`
	Batches            []string         `json:"batches"`
}

// InventoryOffer is the cross-tenant-visible projection of a stock item,
// published only when sharing is enabled and the item's scope permits it.
type InventoryOffer struct {
	InventoryUUID  string    `json:"inventoryUuid"`
	ProductID      string    `json:"productId"`
	Quantity       int       `json:"quantity"`
	ExpirationDate time.Time `json:"expirationDate"`
	LocationBucket string    `json:"locationBucket,omitempty"`
	ShopID         string    `json:"shopId"`
	ShareScope     []string  `json:"shareScope,omitempty"`
	ProofHash      string    `json:"proofHash,omitempty"`
}
