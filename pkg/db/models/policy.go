package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sparrowretail/shelfline-backend/pkg/enums"
)

// Policy is one tenant-defined condition/action rule evaluated against
// ledger-mutation events.
type Policy struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ShopID     string                  `gorm:"column:shop_id;not null;index"`
	EventType  enums.MutationEventType `gorm:"column:event_type;not null"`
	Conditions json.RawMessage         `gorm:"column:conditions;type:jsonb;not null"`
	Actions    json.RawMessage         `gorm:"column:actions;type:jsonb;not null"`
	Enabled    bool                    `gorm:"column:enabled;not null;default:true"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Policy) TableName() string { return "policies" }

// PolicyRunLog is the immutable record of one evaluation outcome per policy
// per event. Rows beyond the configured cap per tenant are pruned on insert.
type PolicyRunLog struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	PolicyID  uuid.UUID               `gorm:"column:policy_id;type:uuid;not null;index"`
	ShopID    string                  `gorm:"column:shop_id;not null;index"`
	EventType enums.MutationEventType `gorm:"column:event_type;not null"`
	Outcome   enums.PolicyOutcome     `gorm:"column:outcome;not null"`
	Detail    *string                 `gorm:"column:detail"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime;index"`
}

func (PolicyRunLog) TableName() string { return "policy_run_logs" }
