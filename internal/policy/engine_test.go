package policy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
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

type sqliteTx struct {
	db *gorm.DB
}

func (s sqliteTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

type fakeOfferStore struct {
	upserts map[string][]vectorstore.Point
	deletes []string
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{upserts: map[string][]vectorstore.Point{}}
}

func (f *fakeOfferStore) Available() bool { return true }
func (f *fakeOfferStore) EnsureReady(ctx context.Context, collection string) bool {
	return true
}
func (f *fakeOfferStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	f.upserts[collection] = append(f.upserts[collection], points...)
	return nil
}
func (f *fakeOfferStore) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	f.deletes = append(f.deletes, ids...)
	return nil
}

type engineFixture struct {
	engine *Engine
	repo   *Repository
	db     *gorm.DB
	store  *fakeOfferStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	return newEngineFixtureWithFlags(t, config.FeatureFlagsConfig{SharingEnabled: true})
}

func newEngineFixtureWithFlags(t *testing.T, flags config.FeatureFlagsConfig) *engineFixture {
	t.Helper()
	db := newTestDB(t)
	repo, err := NewRepository(db)
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	store := newFakeOfferStore()
	engine, err := NewEngine(
		repo,
		sqliteTx{db: db},
		outbox.NewService(outbox.NewRepository(db), logg),
		store,
		identity.NewResolver(nil, 8),
		config.PolicyConfig{RunLogCap: 50, LowStockThreshold: 10, WebhookTimeout: time.Second},
		flags,
		logg,
		metrics.NewPolicyMetrics(nil),
	)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &engineFixture{engine: engine, repo: repo, db: db, store: store}
}

func policyTenant(t *testing.T) tenant.Context {
	t.Helper()
	tc, err := tenant.New("shop-a", "Corner Store")
	if err != nil {
		t.Fatalf("tenant.New: %v", err)
	}
	return tc
}

func stockEvent(eventType enums.MutationEventType, quantity int, scope []string) types.MutationEvent {
	sell := decimal.NewFromInt(14)
	status := enums.StockStatusActive
	if quantity <= 0 {
		status = enums.StockStatusEmpty
	}
	item := &types.StockItem{
		InventoryUUID:  "11111111-2222-3333-4444-555555555555",
		ShopID:         "shop-a",
		ProductID:      "milk",
		Quantity:       quantity,
		ExpirationDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		BuyPrice:       decimal.NewFromInt(10),
		SellPrice:      &sell,
		Status:         status,
		ShareScope:     scope,
	}
	return types.MutationEvent{
		Type:    eventType,
		ShopID:  "shop-a",
		Payload: map[string]any{"inventoryUuid": item.InventoryUUID, "productId": "milk", "quantity": quantity},
		Item:    item,
	}
}

func (f *engineFixture) outboxRows(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := f.db.Where("event_type = ?", eventType).Find(&rows).Error; err != nil {
		t.Fatalf("query outbox: %v", err)
	}
	return rows
}

func TestOfferTriggersLowStockPolicy(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	if err := fx.engine.EnsureDefaults(ctx, tc); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 3, nil))

	logs, err := fx.engine.Runs(ctx, tc)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(logs) != 1 || logs[0].Outcome != enums.PolicyOutcomeTriggered {
		t.Fatalf("run logs = %+v", logs)
	}
	if rows := fx.outboxRows(t, enums.EventLowStockWarning); len(rows) != 1 {
		t.Errorf("low stock outbox rows = %d, want 1", len(rows))
	}
}

func TestOfferSeedsDefaultsLazily(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	// No explicit EnsureDefaults call; the first event on a fresh tenant
	// must still evaluate the default low-stock policy.
	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 3, nil))

	logs, err := fx.engine.Runs(ctx, tc)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(logs) != 1 || logs[0].Outcome != enums.PolicyOutcomeTriggered {
		t.Fatalf("run logs = %+v", logs)
	}
	if rows := fx.outboxRows(t, enums.EventLowStockWarning); len(rows) != 1 {
		t.Errorf("low stock outbox rows = %d, want 1", len(rows))
	}
}

func TestOfferSkipsWhenConditionsFail(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	if err := fx.engine.EnsureDefaults(ctx, tc); err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}

	// Quantity 30 is above the low-stock threshold of 10.
	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 30, nil))

	logs, _ := fx.engine.Runs(ctx, tc)
	if len(logs) != 1 || logs[0].Outcome != enums.PolicyOutcomeSkipped {
		t.Fatalf("run logs = %+v", logs)
	}
	if rows := fx.outboxRows(t, enums.EventLowStockWarning); len(rows) != 0 {
		t.Errorf("skipped policy queued %d events", len(rows))
	}
}

func TestOfferRecordsEvaluationErrors(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	mustPolicy(t, fx.repo, tc.ShopID, enums.MutationStockUpdated,
		[]Condition{{Field: "item.productId", Operator: "between", Value: 1}},
		[]Action{{Type: enums.ActionNotify}})

	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 3, nil))

	logs, _ := fx.engine.Runs(ctx, tc)
	if len(logs) != 1 || logs[0].Outcome != enums.PolicyOutcomeError {
		t.Fatalf("run logs = %+v", logs)
	}
	if logs[0].Detail == nil {
		t.Error("error outcome has no detail")
	}
}

func TestOfferIgnoresOtherEventTypes(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	mustPolicy(t, fx.repo, tc.ShopID, enums.MutationSaleRecorded, nil, []Action{{Type: enums.ActionNotify}})
	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 3, nil))

	logs, _ := fx.engine.Runs(ctx, tc)
	if len(logs) != 0 {
		t.Fatalf("policy for another event type ran: %+v", logs)
	}
}

func TestWebhookAction(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	var called int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	mustPolicy(t, fx.repo, tc.ShopID, enums.MutationStockUpdated, nil,
		[]Action{{Type: enums.ActionCallWebhook, Params: map[string]any{"url": server.URL}}})

	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 3, nil))

	if called != 1 {
		t.Errorf("webhook calls = %d, want 1", called)
	}
	logs, _ := fx.engine.Runs(ctx, tc)
	if len(logs) != 1 || logs[0].Outcome != enums.PolicyOutcomeTriggered {
		t.Fatalf("run logs = %+v", logs)
	}
}

func TestWebhookFailureIsErrorOutcome(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	mustPolicy(t, fx.repo, tc.ShopID, enums.MutationStockUpdated, nil,
		[]Action{{Type: enums.ActionCallWebhook, Params: map[string]any{"url": server.URL}}})

	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockUpdated, 3, nil))

	logs, _ := fx.engine.Runs(ctx, tc)
	if len(logs) != 1 || logs[0].Outcome != enums.PolicyOutcomeError {
		t.Fatalf("run logs = %+v", logs)
	}
}

func TestPropagationUpsertsShareScopedOffer(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockCreated, 5, []string{"dan"}))

	offers := fx.store.upserts[vectorstore.CollectionDanInventory]
	if len(offers) != 1 {
		t.Fatalf("offer upserts = %d", len(offers))
	}
	var offer types.InventoryOffer
	if err := offers[0].DecodePayload(&offer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if offer.ShopID != tc.ShopID || offer.Quantity != 5 || offer.ProofHash == "" {
		t.Errorf("offer = %+v", offer)
	}
	if rows := fx.outboxRows(t, enums.EventDanOfferUpserted); len(rows) != 1 {
		t.Errorf("upserted feed rows = %d", len(rows))
	}
}

func TestPropagationDisabledBySharingFlag(t *testing.T) {
	fx := newEngineFixtureWithFlags(t, config.FeatureFlagsConfig{SharingEnabled: false})
	tc := policyTenant(t)

	fx.engine.Offer(context.Background(), tc, stockEvent(enums.MutationStockCreated, 5, []string{"dan"}))

	if len(fx.store.upserts[vectorstore.CollectionDanInventory]) != 0 {
		t.Error("offer published with sharing disabled")
	}
	if rows := fx.outboxRows(t, enums.EventDanOfferUpserted); len(rows) != 0 {
		t.Errorf("upserted feed rows = %d, want 0", len(rows))
	}
}

func TestPropagationSkipsUnsharedItems(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)

	fx.engine.Offer(context.Background(), tc, stockEvent(enums.MutationStockCreated, 5, nil))

	if len(fx.store.upserts[vectorstore.CollectionDanInventory]) != 0 {
		t.Error("unshared item published an offer")
	}
}

func TestPropagationRemovesDepletedOffer(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)
	ctx := context.Background()

	fx.engine.Offer(ctx, tc, stockEvent(enums.MutationStockDepleted, 0, []string{"dan"}))

	if len(fx.store.deletes) != 1 {
		t.Fatalf("offer deletes = %v", fx.store.deletes)
	}
	if rows := fx.outboxRows(t, enums.EventDanOfferRemoved); len(rows) != 1 {
		t.Errorf("removal feed rows = %d", len(rows))
	}
}

func TestPropagationRemovesDeletedOffer(t *testing.T) {
	fx := newEngineFixture(t)
	tc := policyTenant(t)

	event := types.MutationEvent{
		Type:    enums.MutationStockDeleted,
		ShopID:  tc.ShopID,
		Payload: map[string]any{"inventoryUuid": "11111111-2222-3333-4444-555555555555"},
	}
	fx.engine.Offer(context.Background(), tc, event)

	if len(fx.store.deletes) != 1 {
		t.Fatalf("offer deletes = %v", fx.store.deletes)
	}
}

func TestProofHashDeterministic(t *testing.T) {
	offer := types.InventoryOffer{InventoryUUID: "i1", ProductID: "milk", Quantity: 5, ShopID: "shop-a"}
	a, err := proofHash(offer)
	if err != nil {
		t.Fatalf("proofHash: %v", err)
	}
	b, _ := proofHash(offer)
	if a != b {
		t.Error("equal content hashed differently")
	}
	offer.Quantity = 6
	c, _ := proofHash(offer)
	if a == c {
		t.Error("different content hashed equally")
	}
}
