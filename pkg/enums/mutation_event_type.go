package enums

import "fmt"

// MutationEventType is the canonical event_type for ledger mutations offered
// to the policy engine and, when share-eligible, to the cross-tenant feed.
type MutationEventType string

const (
	MutationStockCreated  MutationEventType = "stock_created"
	MutationStockUpdated  MutationEventType = "stock_updated"
	MutationStockDepleted MutationEventType = "stock_depleted"
	MutationStockDeleted  MutationEventType = "stock_deleted"
	MutationBatchIngested MutationEventType = "batch_ingested"
	MutationSaleRecorded  MutationEventType = "sale_recorded"
)

var validMutationEventTypes = []MutationEventType{
	MutationStockCreated,
	MutationStockUpdated,
	MutationStockDepleted,
	MutationStockDeleted,
	MutationBatchIngested,
	MutationSaleRecorded,
}

// IsValid reports whether the value matches the canonical mutation event enum.
func (m MutationEventType) IsValid() bool {
	for _, candidate := range validMutationEventTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMutationEventType converts raw input into MutationEventType.
func ParseMutationEventType(value string) (MutationEventType, error) {
	for _, candidate := range validMutationEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mutation event type %q", value)
}
