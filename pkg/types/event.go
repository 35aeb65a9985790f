package types

import "github.com/sparrowretail/shelfline-backend/pkg/enums"

// MutationEvent is built for every ledger mutation tagged for sharing and
// offered to the policy engine. Payload values are addressable by the policy
// condition rules via dotted-path lookup.
type MutationEvent struct {
	Type    enums.MutationEventType `json:"type"`
	ShopID  string                  `json:"shopId"`
	Payload map[string]any          `json:"payload"`
	Item    *StockItem              `json:"item,omitempty"`
}

// ItemUUID returns the inventory uuid the event refers to, from the item
// when attached or the raw payload otherwise.
func (e MutationEvent) ItemUUID() string {
	if e.Item != nil {
		return e.Item.InventoryUUID
	}
	if raw, ok := e.Payload["inventoryUuid"].(string); ok {
		return raw
	}
	return ""
}
