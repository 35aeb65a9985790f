package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sparrowretail/shelfline-backend/internal/snapshot"
	"github.com/sparrowretail/shelfline-backend/internal/summary"
	"github.com/sparrowretail/shelfline-backend/pkg/auth"
	"github.com/sparrowretail/shelfline-backend/pkg/config"
	"github.com/sparrowretail/shelfline-backend/pkg/enums"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/types"
)

func testRouter(t *testing.T) (http.Handler, *snapshot.Cache, config.JWTConfig) {
	t.Helper()

	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "shelfline-test", ExpirationMinutes: 15}
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		JWT: jwtCfg,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})

	cache := snapshot.NewCache()
	summaries, err := summary.NewService(cache)
	if err != nil {
		t.Fatalf("summary.NewService: %v", err)
	}

	router := NewRouter(Deps{
		Config:    cfg,
		Logger:    logg,
		Cache:     cache,
		Summaries: summaries,
	})
	return router, cache, jwtCfg
}

func mintToken(t *testing.T, cfg config.JWTConfig, shopID string) string {
	t.Helper()
	signed, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		ShopID:   shopID,
		ShopName: "Corner Store",
		Role:     enums.ShopRoleOwner,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}
	return signed
}

func TestHealthzIsPublic(t *testing.T) {
	router, _, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router, _, _ := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stock", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Code != "UNAUTHORIZED" {
		t.Errorf("error code = %q", envelope.Error.Code)
	}
}

func TestProtectedRoutesRejectGarbageToken(t *testing.T) {
	router, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/stock", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListStockServesTenantFromToken(t *testing.T) {
	router, cache, jwtCfg := testRouter(t)

	cache.Replace("shop-a", snapshot.LoadResult{
		Stock: []types.StockItem{{
			InventoryUUID:  "inv-1",
			ShopID:         "shop-a",
			ProductID:      "milk",
			Quantity:       4,
			ExpirationDate: time.Now().Add(48 * time.Hour),
			Status:         enums.StockStatusActive,
		}},
	})
	cache.Replace("shop-b", snapshot.LoadResult{
		Stock: []types.StockItem{{
			InventoryUUID:  "inv-2",
			ShopID:         "shop-b",
			ProductID:      "bread",
			Quantity:       9,
			ExpirationDate: time.Now().Add(24 * time.Hour),
			Status:         enums.StockStatusActive,
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/stock", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, "shop-a"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []types.StockItem `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].ShopID != "shop-a" {
		t.Fatalf("data = %+v", envelope.Data)
	}
}

func TestSummariesEndpoint(t *testing.T) {
	router, cache, jwtCfg := testRouter(t)

	cache.Replace("shop-a", snapshot.LoadResult{
		Stock: []types.StockItem{{
			InventoryUUID:  "inv-1",
			ShopID:         "shop-a",
			ProductID:      "milk",
			Quantity:       4,
			ExpirationDate: time.Now().Add(48 * time.Hour),
			Status:         enums.StockStatusActive,
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/summaries?productId=milk", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, jwtCfg, "shop-a"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []types.ProductSummary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].TotalQuantity != 4 {
		t.Fatalf("summaries = %+v", envelope.Data)
	}
}
