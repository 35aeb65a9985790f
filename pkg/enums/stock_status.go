package enums

import "fmt"

// StockStatus describes the lifecycle of one stock record.
// Quantity > 0 if and only if the status is ACTIVE; depletion flips the
// record to EMPTY. EXPIRED is set by external review, never by the engine.
type StockStatus string

const (
	StockStatusActive  StockStatus = "ACTIVE"
	StockStatusEmpty   StockStatus = "EMPTY"
	StockStatusExpired StockStatus = "EXPIRED"
)

var validStockStatuses = []StockStatus{
	StockStatusActive,
	StockStatusEmpty,
	StockStatusExpired,
}

// IsValid reports whether the value matches the canonical stock status enum.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts the raw string to StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}
