package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sparrowretail/shelfline-backend/pkg/db/models"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
)

// Repository persists policies and their run logs in the relational
// sidecar. The vector store never holds policy state.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &Repository{db: db}, nil
}

// ListEnabled returns the tenant's enabled policies for one event type.
func (r *Repository) ListEnabled(ctx context.Context, shopID string, eventType enums.MutationEventType) ([]models.Policy, error) {
	var policies []models.Policy
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND event_type = ? AND enabled = ?", shopID, eventType, true).
		Order("created_at ASC").
		Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// ListByShop returns every policy for the tenant.
func (r *Repository) ListByShop(ctx context.Context, shopID string) ([]models.Policy, error) {
	var policies []models.Policy
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at ASC").
		Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	return policies, nil
}

// Create stores a new policy row.
func (r *Repository) Create(ctx context.Context, policy *models.Policy) error {
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(policy).Error; err != nil {
		return fmt.Errorf("create policy: %w", err)
	}
	return nil
}

// SeedDefaultLowStock installs the default low-stock policy for a tenant
// that has none. Idempotent; an already-seeded tenant is left alone.
func (r *Repository) SeedDefaultLowStock(ctx context.Context, shopID string, threshold int) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Policy{}).Where("shop_id = ?", shopID).Count(&count).Error; err != nil {
		return fmt.Errorf("count policies: %w", err)
	}
	if count > 0 {
		return nil
	}

	conditions, err := json.Marshal([]Condition{{
		Field:    "item.quantity",
		Operator: enums.OperatorLt,
		Value:    threshold,
	}})
	if err != nil {
		return err
	}
	actions, err := json.Marshal([]Action{{Type: enums.ActionNotify, Params: map[string]any{
		"reason": "low_stock",
	}}})
	if err != nil {
		return err
	}
	return r.Create(ctx, &models.Policy{
		ShopID:     shopID,
		EventType:  enums.MutationStockUpdated,
		Conditions: conditions,
		Actions:    actions,
		Enabled:    true,
	})
}

// InsertRunLog appends an evaluation outcome and prunes the tenant's log
// down to the cap, oldest rows first.
func (r *Repository) InsertRunLog(ctx context.Context, log *models.PolicyRunLog, cap int) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(log).Error; err != nil {
			return fmt.Errorf("insert run log: %w", err)
		}
		if cap <= 0 {
			return nil
		}
		var keep []uuid.UUID
		err := tx.Model(&models.PolicyRunLog{}).
			Where("shop_id = ?", log.ShopID).
			Order("created_at DESC, id DESC").
			Limit(cap).
			Pluck("id", &keep).Error
		if err != nil {
			return fmt.Errorf("select retained run logs: %w", err)
		}
		err = tx.
			Where("shop_id = ? AND id NOT IN ?", log.ShopID, keep).
			Delete(&models.PolicyRunLog{}).Error
		if err != nil {
			return fmt.Errorf("prune run logs: %w", err)
		}
		return nil
	})
}

// ListRunLogs returns the tenant's run log, newest first.
func (r *Repository) ListRunLogs(ctx context.Context, shopID string, limit int) ([]models.PolicyRunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.PolicyRunLog
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return logs, nil
}
