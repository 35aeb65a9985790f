package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

// applyPatch overlays the whitelisted external fields onto the item. Scan
// metadata is merged key-wise; everything else replaces wholesale.
func applyPatch(item *types.StockItem, patch map[string]any) error {
	if raw, ok := patch["scanMetadata"]; ok {
		incoming, isMap := raw.(map[string]any)
		if !isMap {
			return fmt.Errorf("scanMetadata must be an object")
		}
		if item.ScanMetadata == nil {
			item.ScanMetadata = map[string]any{}
		}
		for key, value := range incoming {
			item.ScanMetadata[key] = value
		}
		delete(patch, "scanMetadata")
		defer func() { patch["scanMetadata"] = raw }()
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	if err := json.Unmarshal(raw, item); err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}
	if !item.Status.IsValid() {
		return fmt.Errorf("invalid status %q", item.Status)
	}
	return nil
}
