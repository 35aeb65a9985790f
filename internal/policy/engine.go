package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sparrowretail/shelfline-backend/internal/identity"
	"github.com/sparrowretail/shelfline-backend/internal/tenant"
	"github.com/sparrowretail/shelfline-backend/pkg/config"
	"github.com/sparrowretail/shelfline-backend/pkg/db/models"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/metrics"
	"github.com/sparrowretail/shelfline-backend/pkg/outbox"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type offerStore interface {
	Available() bool
	EnsureReady(ctx context.Context, collection string) bool
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
	DeleteByIDs(ctx context.Context, collection string, ids []string) error
}

// Engine evaluates tenant policies against ledger mutations and propagates
// share-eligible items to the cross-tenant offer collection. It implements
// the ledger's event sink; nothing here may fail the originating mutation.
type Engine struct {
	repo     *Repository
	txs      txRunner
	outbox   *outbox.Service
	store    offerStore
	resolver *identity.Resolver
	cfg      config.PolicyConfig
	flags    config.FeatureFlagsConfig
	logg     *logger.Logger
	metrics  *metrics.PolicyMetrics
	webhook  *http.Client
	seeded   sync.Map
}

// NewEngine constructs the policy engine. The outbox, tx runner and store
// are optional; missing pieces disable the actions that need them.
func NewEngine(repo *Repository, txs txRunner, ob *outbox.Service, store offerStore, resolver *identity.Resolver, cfg config.PolicyConfig, flags config.FeatureFlagsConfig, logg *logger.Logger, m *metrics.PolicyMetrics) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("policy repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{
		repo:     repo,
		txs:      txs,
		outbox:   ob,
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		flags:    flags,
		logg:     logg,
		metrics:  m,
		webhook:  &http.Client{Timeout: timeout},
	}, nil
}

// EnsureDefaults seeds the tenant's default low-stock policy. Called on
// tenant load and lazily from the event sink, so a tenant that never hits
// the load endpoint still gets the default.
func (e *Engine) EnsureDefaults(ctx context.Context, tc tenant.Context) error {
	if !tc.Valid() {
		return fmt.Errorf("tenant context required")
	}
	if err := e.repo.SeedDefaultLowStock(ctx, tc.ShopID, e.cfg.LowStockThreshold); err != nil {
		return err
	}
	e.seeded.Store(tc.ShopID, struct{}{})
	return nil
}

// Runs returns the tenant's recent evaluation outcomes.
func (e *Engine) Runs(ctx context.Context, tc tenant.Context) ([]models.PolicyRunLog, error) {
	return e.repo.ListRunLogs(ctx, tc.ShopID, e.cfg.RunLogCap)
}

// Offer consumes one acknowledged ledger mutation. Every policy failure is
// logged and swallowed; the mutation already happened.
func (e *Engine) Offer(ctx context.Context, tc tenant.Context, event types.MutationEvent) {
	if !tc.Valid() || !event.Type.IsValid() {
		return
	}
	ctx = e.logg.WithShopID(ctx, tc.ShopID)
	doc := eventDoc(event)

	if _, ok := e.seeded.Load(tc.ShopID); !ok {
		if err := e.EnsureDefaults(ctx, tc); err != nil {
			e.logg.Error(ctx, "seeding default policies", err)
		}
	}

	policies, err := e.repo.ListEnabled(ctx, tc.ShopID, event.Type)
	if err != nil {
		e.logg.Error(ctx, "listing policies for event", err)
	} else {
		for i := range policies {
			e.run(ctx, tc, policies[i], event, doc)
		}
	}

	e.propagate(ctx, tc, event)
}

func (e *Engine) run(ctx context.Context, tc tenant.Context, policy models.Policy, event types.MutationEvent, doc map[string]any) {
	outcome := enums.PolicyOutcomeSkipped
	var detail *string

	var conditions []Condition
	var actions []Action
	err := json.Unmarshal(policy.Conditions, &conditions)
	if err == nil {
		err = json.Unmarshal(policy.Actions, &actions)
	}
	if err == nil {
		var matched bool
		matched, err = evaluate(conditions, doc)
		if err == nil && matched {
			outcome = enums.PolicyOutcomeTriggered
			err = e.execute(ctx, tc, policy, actions, doc)
		}
	}
	if err != nil {
		outcome = enums.PolicyOutcomeError
		message := err.Error()
		detail = &message
		e.logg.Error(ctx, "policy evaluation", err)
	}

	e.metrics.ObserveOutcome(string(event.Type), string(outcome))
	log := models.PolicyRunLog{
		PolicyID:  policy.ID,
		ShopID:    tc.ShopID,
		EventType: event.Type,
		Outcome:   outcome,
		Detail:    detail,
	}
	if err := e.repo.InsertRunLog(ctx, &log, e.cfg.RunLogCap); err != nil {
		e.logg.Error(ctx, "recording policy run", err)
	}
}

func (e *Engine) execute(ctx context.Context, tc tenant.Context, policy models.Policy, actions []Action, doc map[string]any) error {
	for _, action := range actions {
		var err error
		switch action.Type {
		case enums.ActionNotify:
			err = e.actNotify(ctx, tc, policy, action, doc)
		case enums.ActionCreateDanEvent:
			err = e.actCreateDanEvent(ctx, tc, policy, action, doc)
		case enums.ActionTagInventory:
			// Tagging is recorded but applied by a later reconciliation
			// pass; the ledger is not mutated from inside its own sink.
			e.logg.Info(e.logg.WithField(ctx, "policy_id", policy.ID.String()), "tag_inventory action recorded")
		case enums.ActionCallWebhook:
			err = e.actCallWebhook(ctx, action, doc)
		default:
			err = fmt.Errorf("unknown action type %q", action.Type)
		}
		if err != nil {
			return fmt.Errorf("action %s: %w", action.Type, err)
		}
	}
	return nil
}

// eventDoc flattens the mutation into the document conditions evaluate
// against. Item fields live under "item", raw payload under "payload".
func eventDoc(event types.MutationEvent) map[string]any {
	doc := map[string]any{
		"type":    string(event.Type),
		"shopId":  event.ShopID,
		"payload": event.Payload,
	}
	if event.Item != nil {
		raw, err := json.Marshal(event.Item)
		if err == nil {
			var item map[string]any
			if json.Unmarshal(raw, &item) == nil {
				doc["item"] = item
			}
		}
	}
	return doc
}

func aggregateUUID(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	}
	return parsed
}
