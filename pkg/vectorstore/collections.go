package vectorstore

// Collection names consumed from the external vector store. Each holds points
// of one logical entity type; payloads must be equality-indexed on at least
// shopId, productId, status and category.
const (
	CollectionProducts     = "products"
	CollectionBatches      = "batches"
	CollectionItems        = "items"
	CollectionSales        = "sales"
	CollectionSuppliers    = "suppliers"
	CollectionShops        = "shops"
	CollectionCustomers    = "customers"
	CollectionDrivers      = "drivers"
	CollectionVisual       = "visual"
	CollectionMarketplace  = "marketplace"
	CollectionDanInventory = "dan_inventory"
)
