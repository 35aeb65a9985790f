package outbox

import (
	"encoding/json"
	"time"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// published verbatim to the shared feed.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	ShopID     string          `json:"shopId"`
	ProofHash  string          `json:"proofHash,omitempty"`
	Data       json.RawMessage `json:"data"`
}
