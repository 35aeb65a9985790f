package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/db/models"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	"github.com/sparrowretail/shelfline-backend/pkg/outbox"
)

func (e *Engine) actNotify(ctx context.Context, tc tenant.Context, policy models.Policy, action Action, doc map[string]any) error {
	if e.txs == nil || e.outbox == nil {
		e.logg.Warn(ctx, "notify action dropped, no outbox configured")
		return nil
	}
	reason, _ := action.Params["reason"].(string)
	if reason == "" {
		reason = "policy_triggered"
	}
	eventType := enums.EventNotification
	if reason == "low_stock" {
		eventType = enums.EventLowStockWarning
	}
	return e.txs.WithTx(ctx, func(tx *gorm.DB) error {
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePolicy,
			AggregateID:   policy.ID,
			ShopID:        tc.ShopID,
			Data: map[string]any{
				"reason": reason,
				"event":  doc,
			},
			Version: 1,
		})
	})
}

func (e *Engine) actCreateDanEvent(ctx context.Context, tc tenant.Context, policy models.Policy, action Action, doc map[string]any) error {
	if e.txs == nil || e.outbox == nil {
		e.logg.Warn(ctx, "create_dan_event action dropped, no outbox configured")
		return nil
	}
	hash, err := proofHash(doc)
	if err != nil {
		return err
	}
	data := map[string]any{"event": doc}
	for key, value := range action.Params {
		data[key] = value
	}
	return e.txs.WithTx(ctx, func(tx *gorm.DB) error {
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDanEventCreated,
			AggregateType: enums.AggregatePolicy,
			AggregateID:   policy.ID,
			ShopID:        tc.ShopID,
			ProofHash:     hash,
			Data:          data,
			Version:       1,
		})
	})
}

func (e *Engine) actCallWebhook(ctx context.Context, action Action, doc map[string]any) error {
	url, _ := action.Params["url"].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("webhook action needs a url param")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.webhook.Do(req)
	if err != nil {
		return fmt.Errorf("webhook call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
