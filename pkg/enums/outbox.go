package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column in outbox_events.
type OutboxAggregateType string

const (
	AggregateStockItem OutboxAggregateType = "stock_item"
	AggregateSale      OutboxAggregateType = "sale"
	AggregateOffer     OutboxAggregateType = "dan_offer"
	AggregatePolicy    OutboxAggregateType = "policy"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateStockItem,
	AggregateSale,
	AggregateOffer,
	AggregatePolicy,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type column in outbox_events.
type OutboxEventType string

const (
	EventDanOfferUpserted OutboxEventType = "dan_offer_upserted"
	EventDanOfferRemoved  OutboxEventType = "dan_offer_removed"
	EventDanEventCreated  OutboxEventType = "dan_event_created"
	EventLowStockWarning  OutboxEventType = "low_stock_warning"
	EventNotification     OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDanOfferUpserted,
	EventDanOfferRemoved,
	EventDanEventCreated,
	EventLowStockWarning,
	EventNotification,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
