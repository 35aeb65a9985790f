package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	"github.com/sparrowretail/shelfline-backend/pkg/outbox"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

// propagate maintains the cross-tenant offer collection. A share-scoped
// item with stock becomes or refreshes an offer; depletion, deletion, a
// cleared share scope or the disabled sharing flag removes it.
func (e *Engine) propagate(ctx context.Context, tc tenant.Context, event types.MutationEvent) {
	switch event.Type {
	case enums.MutationStockCreated, enums.MutationStockUpdated, enums.MutationStockDepleted:
		if event.Item == nil {
			return
		}
		if e.flags.SharingEnabled && shareEligible(*event.Item) {
			e.upsertOffer(ctx, tc, *event.Item)
			return
		}
		e.removeOffer(ctx, tc, event.Item.InventoryUUID)
	case enums.MutationStockDeleted:
		inventoryUUID := event.ItemUUID()
		if inventoryUUID != "" {
			e.removeOffer(ctx, tc, inventoryUUID)
		}
	}
}

func shareEligible(item types.StockItem) bool {
	return len(item.ShareScope) > 0 && item.Quantity > 0 && item.Status == enums.StockStatusActive
}

func (e *Engine) upsertOffer(ctx context.Context, tc tenant.Context, item types.StockItem) {
	offer := types.InventoryOffer{
		InventoryUUID:  item.InventoryUUID,
		ProductID:      item.ProductID,
		Quantity:       item.Quantity,
		ExpirationDate: item.ExpirationDate,
		LocationBucket: item.Location,
		ShopID:         tc.ShopID,
		ShareScope:     item.ShareScope,
	}
	hash, err := proofHash(offer)
	if err != nil {
		e.logg.Error(ctx, "hashing offer", err)
		return
	}
	offer.ProofHash = hash

	if e.store != nil && e.store.Available() && e.store.EnsureReady(ctx, vectorstore.CollectionDanInventory) {
		payload, err := vectorstore.PayloadOf(offer)
		if err != nil {
			e.logg.Error(ctx, "encoding offer", err)
			return
		}
		var vector []float32
		if e.resolver != nil {
			vector = e.resolver.ResolveVector(ctx, offer.ProductID)
		}
		point := vectorstore.Point{ID: offer.InventoryUUID, Vector: vector, Payload: payload}
		if err := e.store.Upsert(ctx, vectorstore.CollectionDanInventory, []vectorstore.Point{point}); err != nil {
			e.logg.Error(ctx, "upserting offer", err)
			return
		}
	}

	e.emitOfferEvent(ctx, tc, enums.EventDanOfferUpserted, offer.InventoryUUID, hash, offer)
}

func (e *Engine) removeOffer(ctx context.Context, tc tenant.Context, inventoryUUID string) {
	if e.store != nil && e.store.Available() && e.store.EnsureReady(ctx, vectorstore.CollectionDanInventory) {
		if err := e.store.DeleteByIDs(ctx, vectorstore.CollectionDanInventory, []string{inventoryUUID}); err != nil {
			e.logg.Error(ctx, "removing offer", err)
			return
		}
	}
	e.emitOfferEvent(ctx, tc, enums.EventDanOfferRemoved, inventoryUUID, "", map[string]any{
		"inventoryUuid": inventoryUUID,
	})
}

func (e *Engine) emitOfferEvent(ctx context.Context, tc tenant.Context, eventType enums.OutboxEventType, inventoryUUID, hash string, data any) {
	if e.txs == nil || e.outbox == nil {
		return
	}
	err := e.txs.WithTx(ctx, func(tx *gorm.DB) error {
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOffer,
			AggregateID:   aggregateUUID(inventoryUUID),
			ShopID:        tc.ShopID,
			ProofHash:     hash,
			Data:          data,
			Version:       1,
		})
	})
	if err != nil {
		e.logg.Error(ctx, "queueing offer event", err)
	}
}
